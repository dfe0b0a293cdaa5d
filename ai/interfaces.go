package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer produces a single chat completion.
// Implementations must be thread-safe for concurrent use.
type Completer interface {
	// Complete sends a system and a user message and returns the model's reply.
	Complete(ctx context.Context, system, user string, opts ...CompletionOption) (string, error)
}

// CompletionOptions tunes a single completion request.
type CompletionOptions struct {
	Temperature float64
	MaxTokens   int
}

// CompletionOption is a functional option for a completion request.
type CompletionOption func(*CompletionOptions)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) CompletionOption {
	return func(o *CompletionOptions) {
		o.Temperature = t
	}
}

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) CompletionOption {
	return func(o *CompletionOptions) {
		o.MaxTokens = n
	}
}

// ApplyCompletionOptions returns the defaults overridden by opts.
func ApplyCompletionOptions(opts ...CompletionOption) CompletionOptions {
	o := CompletionOptions{Temperature: 0.1}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Completer returns the chat completion service.
	Completer() Completer

	// Close releases resources held by the provider and its services.
	Close() error
}
