package storage

import (
	"context"

	"github.com/poiesic/lorekeep/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// Repository calls made with the context passed to fn join the transaction.
	// Nested calls join the outer transaction.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close releases resources held by the repository.
	Close() error
}

// SourceRepository provides operations for managing knowledge sources.
type SourceRepository interface {
	Repository

	// CreateSource stores a new source. An empty ID is replaced with a fresh
	// one and CreatedAt/UpdatedAt are set.
	// Returns ErrDuplicateKey if the tenant already has a source with the same URI.
	CreateSource(ctx context.Context, source *core.KnowledgeSource) (*core.KnowledgeSource, error)

	// UpdateSource replaces label, status and metadata of an existing source
	// and refreshes UpdatedAt. Returns ErrNotFound if it doesn't exist.
	UpdateSource(ctx context.Context, source *core.KnowledgeSource) (*core.KnowledgeSource, error)

	// UpdateSourceStatus sets the status and merges metadata into the existing
	// metadata map. Returns ErrNotFound if the source doesn't exist.
	UpdateSourceStatus(ctx context.Context, id string, status core.SourceStatus, metadata map[string]any) error

	// GetSource retrieves a source by ID.
	// Returns ErrNotFound if the source doesn't exist.
	GetSource(ctx context.Context, id string) (*core.KnowledgeSource, error)

	// FindSourceByURI retrieves the tenant's source for uri.
	// Returns ErrNotFound if there is none.
	FindSourceByURI(ctx context.Context, tenantID, uri string) (*core.KnowledgeSource, error)

	// ListSources returns the tenant's sources, newest first.
	ListSources(ctx context.Context, tenantID string) ([]*core.KnowledgeSource, error)

	// DeleteSource removes a source row. It does not touch embedding records.
	// Returns ErrNotFound if the source doesn't exist.
	DeleteSource(ctx context.Context, id string) error
}

// EmbeddingRepository provides operations for managing embedding records.
type EmbeddingRepository interface {
	Repository

	// AddEmbeddingRecords stores records. Empty IDs are replaced with fresh
	// ones and CreatedAt is set when zero.
	AddEmbeddingRecords(ctx context.Context, records ...*core.EmbeddingRecord) ([]*core.EmbeddingRecord, error)

	// GetEmbeddingRecords returns a source's records ordered by chunk index.
	GetEmbeddingRecords(ctx context.Context, sourceID string) ([]*core.EmbeddingRecord, error)

	// VectorIDsForSource returns the vector ids of a source's records.
	VectorIDsForSource(ctx context.Context, sourceID string) ([]string, error)

	// CountEmbeddingRecords returns how many records a source owns.
	CountEmbeddingRecords(ctx context.Context, sourceID string) (int, error)

	// DeleteEmbeddingRecords removes every record of a source and returns the
	// number removed. A source without records is not an error.
	DeleteEmbeddingRecords(ctx context.Context, sourceID string) (int, error)
}

// CheckpointRepository persists progress markers of long-running jobs.
type CheckpointRepository interface {
	// SaveCheckpoint stores the checkpoint for (Job, TenantID), replacing any
	// previous one.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, job, tenantID string) (*core.Checkpoint, error)

	// ClearCheckpoint removes the checkpoint. Missing checkpoints are ignored.
	ClearCheckpoint(ctx context.Context, job, tenantID string) error
}
