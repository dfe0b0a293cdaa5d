// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package chunking splits document text into overlapping fixed-size windows.
//
// Text is normalized first: every whitespace run collapses to a single space
// and the result is trimmed. Windows are measured in characters (runes), so
// multi-byte text is never cut in the middle of a character.
package chunking

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultSize is the window length in characters.
	DefaultSize = 800
	// DefaultOverlap is the number of characters shared by consecutive windows.
	DefaultOverlap = 100
	// MinContentLength is the shortest normalized text worth ingesting from a crawl.
	MinContentLength = 200
)

// ErrInvalidWindow indicates a size/overlap pair that cannot make progress.
var ErrInvalidWindow = errors.New("invalid chunk window")

// Chunker holds a window configuration.
type Chunker struct {
	size    int
	overlap int
}

// New returns a Chunker. overlap must be smaller than size.
func New(size, overlap int) (*Chunker, error) {
	if err := validateWindow(size, overlap); err != nil {
		return nil, err
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Default returns a Chunker with DefaultSize and DefaultOverlap.
func Default() *Chunker {
	return &Chunker{size: DefaultSize, overlap: DefaultOverlap}
}

// Size returns the configured window length.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split chunks text with the configured window.
func (c *Chunker) Split(text string) []string {
	return split(Normalize(text), c.size, c.overlap)
}

// Split normalizes text and cuts it into windows of at most size characters,
// consecutive windows sharing overlap characters. Blank text yields an empty
// slice.
func Split(text string, size, overlap int) ([]string, error) {
	if err := validateWindow(size, overlap); err != nil {
		return nil, err
	}
	return split(Normalize(text), size, overlap), nil
}

func validateWindow(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: size %d must be positive", ErrInvalidWindow, size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidWindow, overlap, size)
	}
	return nil
}

func split(normalized string, size, overlap int) []string {
	chunks := []string{}
	if normalized == "" {
		return chunks
	}

	runes := []rune(normalized)
	total := len(runes)
	step := size - overlap

	for start := 0; ; start += step {
		if start < 0 {
			start = 0
		}
		end := start + size
		if end > total {
			end = total
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == total {
			break
		}
	}
	return chunks
}

// Normalize collapses whitespace runs into single spaces and trims the result.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// HasMinimumContent reports whether normalized text reaches MinContentLength.
func HasMinimumContent(text string) bool {
	return utf8.RuneCountInString(Normalize(text)) >= MinContentLength
}

// EstimateTokens approximates the token count as one token per four characters.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}
