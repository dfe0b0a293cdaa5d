// Package memory is an in-process vector index: one map keyed by vector id,
// searched by a full cosine scan filtered by tenant.
package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/poiesic/lorekeep/core"
	"github.com/poiesic/lorekeep/vectorindex"
)

type entry struct {
	vector   []float32
	metadata vectorindex.Metadata
	content  string
}

// Index implements vectorindex.Index in memory. It is safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	entries map[string]entry
	logger  *slog.Logger
}

var _ vectorindex.Index = (*Index)(nil)

// Option configures an Index.
type Option func(*Index)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Index) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// New returns an empty Index.
func New(opts ...Option) *Index {
	idx := &Index{
		entries: make(map[string]entry),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = idx.logger.With("component", "memory-index")
	return idx
}

// Upsert stores a copy of vector.
func (i *Index) Upsert(_ context.Context, vectorID string, vector []float32, md vectorindex.Metadata, content string) (string, error) {
	if md.TenantID == "" {
		return "", vectorindex.ErrTenantRequired
	}
	if len(vector) == 0 {
		return "", vectorindex.ErrEmptyVector
	}
	if vectorID == "" {
		vectorID = core.NewID()
	}

	v := make([]float32, len(vector))
	copy(v, vector)

	i.mu.Lock()
	i.entries[vectorID] = entry{vector: v, metadata: md, content: content}
	i.mu.Unlock()
	return vectorID, nil
}

// Search scans every entry of tenantID.
func (i *Index) Search(ctx context.Context, tenantID string, vector []float32, topK int) ([]vectorindex.Match, error) {
	if tenantID == "" {
		return nil, vectorindex.ErrTenantRequired
	}
	if topK <= 0 {
		return []vectorindex.Match{}, nil
	}

	i.mu.RLock()
	matches := make([]vectorindex.Match, 0)
	for id, e := range i.entries {
		if e.metadata.TenantID != tenantID {
			continue
		}
		matches = append(matches, vectorindex.Match{
			ID:       id,
			Score:    vectorindex.CosineSimilarity(vector, e.vector),
			Metadata: e.metadata,
			Content:  e.content,
		})
	}
	i.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return vectorindex.SortAndLimit(matches, topK), nil
}

// DeleteBySource removes every entry whose metadata names sourceID.
func (i *Index) DeleteBySource(_ context.Context, tenantID, sourceID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	removed := 0
	for id, e := range i.entries {
		if e.metadata.TenantID == tenantID && e.metadata.KnowledgeSourceID == sourceID {
			delete(i.entries, id)
			removed++
		}
	}
	i.logger.Debug("deleted source vectors", "tenant", tenantID, "source", sourceID, "count", removed)
	return nil
}

// DeleteByTenant removes every entry of tenantID.
func (i *Index) DeleteByTenant(_ context.Context, tenantID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	for id, e := range i.entries {
		if e.metadata.TenantID == tenantID {
			delete(i.entries, id)
		}
	}
	return nil
}

// Len returns the number of stored entries across all tenants.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

// Close drops all entries.
func (i *Index) Close() error {
	i.logger.Debug("dropping in-memory vectors", "count", i.Len())
	i.mu.Lock()
	i.entries = make(map[string]entry)
	i.mu.Unlock()
	return nil
}
