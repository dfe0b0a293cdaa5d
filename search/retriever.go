package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/lorekeep/core"
	"github.com/poiesic/lorekeep/embedding"
	"github.com/poiesic/lorekeep/vectorindex"
)

// DefaultTopK is the number of chunks returned when the caller asks for none.
const DefaultTopK = 4

// Retriever finds the stored chunks closest to a question.
type Retriever struct {
	index    vectorindex.Index
	embedder *embedding.Client
	minScore float32
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithMinScore drops matches scoring below score.
// Default is -1, which keeps every match.
func WithMinScore(score float32) Option {
	return func(r *Retriever) error {
		r.minScore = score
		return nil
	}
}

// NewRetriever creates a new retriever.
func NewRetriever(index vectorindex.Index, embedder *embedding.Client, opts ...Option) (*Retriever, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbeddingClientRequired
	}

	r := &Retriever{
		index:    index,
		embedder: embedder,
		minScore: -1,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "retriever")
	return r, nil
}

// Retrieve returns the contents of the topK chunks of tenantID closest to
// question, best first. topK <= 0 means DefaultTopK.
func (r *Retriever) Retrieve(ctx context.Context, tenantID, question string, topK int) ([]string, error) {
	matches, err := r.Search(ctx, tenantID, question, topK)
	if err != nil {
		return nil, err
	}
	contents := make([]string, 0, len(matches))
	for _, m := range matches {
		contents = append(contents, m.Content)
	}
	return contents, nil
}

// Search is Retrieve returning the full matches.
func (r *Retriever) Search(ctx context.Context, tenantID, question string, topK int) ([]vectorindex.Match, error) {
	return r.SearchWithMonitor(ctx, tenantID, question, topK, nil)
}

// SearchWithMonitor is Search reporting each step to monitor.
func (r *Retriever) SearchWithMonitor(ctx context.Context, tenantID, question string, topK int, monitor SearchMonitor) ([]vectorindex.Match, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if err := core.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(question) == "" {
		return nil, core.ErrEmptyInput
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	monitor.Start(tenantID, question)

	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		r.logger.Error("error embedding question", "tenant", tenantID, "err", err)
		return nil, err
	}
	monitor.AfterEmbedding(len(vec))

	matches, err := r.index.Search(ctx, tenantID, vec, topK)
	if err != nil {
		r.logger.Error("error searching vector index", "tenant", tenantID, "err", err)
		return nil, err
	}
	monitor.AfterIndexSearch(matches)

	kept := matches[:0]
	for _, m := range matches {
		if m.Score < r.minScore {
			monitor.BelowMinScore(m)
			continue
		}
		kept = append(kept, m)
	}

	r.logger.Debug("retrieved context", "tenant", tenantID, "matches", len(kept), "topK", topK)
	monitor.Finish(kept)
	return kept, nil
}
