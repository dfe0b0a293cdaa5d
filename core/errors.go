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

package core

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	// ErrEmptyInput indicates blank text was passed where content is required.
	ErrEmptyInput = errors.New("input text is empty")

	// ErrInsufficientContent indicates a document produced no chunks.
	ErrInsufficientContent = errors.New("insufficient content")

	// ErrProvider matches every ProviderError.
	ErrProvider = errors.New("provider error")

	// ErrInvalidSource indicates a KnowledgeSource failed validation.
	ErrInvalidSource = errors.New("invalid knowledge source")

	// ErrTenantRequired indicates an operation was called without a tenant.
	ErrTenantRequired = errors.New("tenant id is required")

	// ErrInvalidTenantID indicates a tenant id containing control characters.
	ErrInvalidTenantID = errors.New("tenant id contains control characters")

	// ErrInvalidURI indicates a source URI containing control characters.
	ErrInvalidURI = errors.New("uri contains control characters")

	// ErrEmptyLabel indicates the source label is blank.
	ErrEmptyLabel = errors.New("label cannot be empty")

	// ErrInvalidSourceKind indicates an unknown SourceKind value.
	ErrInvalidSourceKind = errors.New("invalid source kind")

	// ErrInvalidSourceStatus indicates an unknown SourceStatus value.
	ErrInvalidSourceStatus = errors.New("invalid source status")
)

// ProviderError wraps a failure reported by an external service such as
// an embedding API, a completion API or a remote vector index.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrProvider) match any ProviderError.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}

// NewProviderError wraps err, returning nil when err is nil.
func NewProviderError(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Op: op, Err: err}
}
