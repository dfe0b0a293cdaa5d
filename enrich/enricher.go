// Package enrich prefixes chunks with a one-sentence context summary so that
// a chunk cut out of its document still embeds close to questions about it.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/lorekeep/ai"
)

// FallbackLength is the number of leading characters used when no summary
// can be generated.
const FallbackLength = 180

const systemPrompt = "You are an assistant that writes retrieval context for document excerpts."

// summaryPrompt asks for one sentence placing the excerpt in its document.
func summaryPrompt(title, chunk string) string {
	return fmt.Sprintf("Here is an excerpt from the document %q. Summarize its content in a single concise "+
		"sentence that clarifies the context for a search engine.\n\nExcerpt:\n%s", title, chunk)
}

// Enricher produces "[Context: <summary>]\n\n<chunk>".
type Enricher struct {
	completer ai.Completer
	enabled   bool
	logger    *slog.Logger
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Enricher) {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
	}
}

// WithEnabled switches model summaries on or off. When off, every summary
// is the fallback.
func WithEnabled(enabled bool) Option {
	return func(e *Enricher) {
		e.enabled = enabled
	}
}

// New creates an Enricher. completer may be nil, which behaves like a
// disabled Enricher.
func New(completer ai.Completer, opts ...Option) *Enricher {
	e := &Enricher{
		completer: completer,
		enabled:   true,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "enricher")
	return e
}

// Enrich returns chunk prefixed with its context summary.
func (e *Enricher) Enrich(ctx context.Context, title, chunk string) string {
	return Format(e.Summarize(ctx, title, chunk), chunk)
}

// Summarize returns a one-sentence summary of chunk. It never fails:
// provider errors and empty answers yield FallbackSummary(chunk).
func (e *Enricher) Summarize(ctx context.Context, title, chunk string) string {
	if !e.enabled || e.completer == nil {
		return FallbackSummary(chunk)
	}

	summary, err := e.completer.Complete(ctx, systemPrompt, summaryPrompt(title, chunk),
		ai.WithTemperature(0.1), ai.WithMaxTokens(120))
	if err != nil {
		e.logger.Warn("summary generation failed, using fallback", "title", title, "err", err)
		return FallbackSummary(chunk)
	}

	summary = collapse(summary)
	if summary == "" {
		e.logger.Debug("empty summary, using fallback", "title", title)
		return FallbackSummary(chunk)
	}
	return summary
}

// Format joins a summary and a chunk the way every stored chunk is laid out.
func Format(summary, chunk string) string {
	return "[Context: " + summary + "]\n\n" + chunk
}

// FallbackSummary is the first FallbackLength characters of chunk with
// whitespace collapsed, or "Context" for a blank chunk.
func FallbackSummary(chunk string) string {
	r := []rune(chunk)
	if len(r) > FallbackLength {
		r = r[:FallbackLength]
	}
	if s := collapse(string(r)); s != "" {
		return s
	}
	return "Context"
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
