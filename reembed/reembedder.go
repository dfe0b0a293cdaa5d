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


package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/lorekeep/ai"
	"github.com/poiesic/lorekeep/core"
	"github.com/poiesic/lorekeep/embedding"
	"github.com/poiesic/lorekeep/storage"
	"github.com/poiesic/lorekeep/vectorindex"
)

// JobName identifies re-embedding checkpoints.
const JobName = "reembed"

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of records embedded per provider request
	BatchSize int

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// Dimension is the length of the stored vectors
	Dimension int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
		Dimension:      embedding.DefaultDimension,
	}
}

// Result summarizes a run.
type Result struct {
	Sources int  // sources finished by this run
	Records int  // records re-embedded by this run
	Resumed bool // the run continued from a checkpoint
	Elapsed time.Duration
}

// Reembedder orchestrates the reembedding of a tenant's records.
type Reembedder struct {
	checkpoints storage.CheckpointRepository
	records     storage.EmbeddingRepository
	config      *Config
	progress    io.Writer
	processor   *BatchProcessor
	iterator    *SourceIterator
	logger      *slog.Logger
}

// Option configures a Reembedder.
type Option func(*Reembedder)

// WithVectorStore routes new vectors through s before they are written, e.g.
// the engine's *embedding.Client so its cache learns the new vectors.
func WithVectorStore(s VectorStore) Option {
	return func(r *Reembedder) {
		r.processor.WithStore(s)
	}
}

// NewReembedder creates a new reembedder.
// checkpoints may be nil, in which case every run starts from the beginning.
// progress: where to write progress output (typically os.Stderr); nil discards it
func NewReembedder(
	sources storage.SourceRepository,
	records storage.EmbeddingRepository,
	checkpoints storage.CheckpointRepository,
	index vectorindex.Index,
	embedder ai.Embedder,
	config *Config,
	progress io.Writer,
	opts ...Option,
) (*Reembedder, error) {
	switch {
	case sources == nil:
		return nil, ErrSourceRepositoryRequired
	case records == nil:
		return nil, ErrEmbeddingRepositoryRequired
	case index == nil:
		return nil, ErrIndexRequired
	case embedder == nil:
		return nil, ErrEmbedderRequired
	}

	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	if config.Dimension <= 0 {
		config.Dimension = defaults.Dimension
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if progress == nil {
		progress = io.Discard
	}

	r := &Reembedder{
		checkpoints: checkpoints,
		records:     records,
		config:      config,
		progress:    progress,
		processor:   NewBatchProcessor(index, embedder, config.Dimension, config.MaxRetries, config.RetryDelay),
		iterator:    NewSourceIterator(sources, records, config.BatchSize),
		logger:      slog.Default().With("component", "reembed"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run re-embeds every record of the tenant's READY sources.
// A checkpoint left by an interrupted run makes Run skip the sources that
// run finished. The checkpoint is cleared once all sources are done.
func (r *Reembedder) Run(ctx context.Context, tenantID string) (*Result, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	var checkpoint *core.Checkpoint
	if r.checkpoints != nil {
		var err error
		if checkpoint, err = r.checkpoints.LoadCheckpoint(ctx, JobName, tenantID); err != nil {
			return nil, fmt.Errorf("failed to load checkpoint: %w", err)
		}
	}

	after, done := "", 0
	result := &Result{}
	if checkpoint != nil {
		after, done = checkpoint.LastSourceID, checkpoint.Processed
		result.Resumed = true
		fmt.Fprintf(r.progress, "Resuming after source %s (%d records already done)\n", after, done)
	}

	sources, err := r.iterator.Sources(ctx, tenantID, after)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	total := done
	for _, source := range sources {
		n, err := r.records.CountEmbeddingRecords(ctx, source.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count records: %w", err)
		}
		total += n
	}

	if total == 0 {
		fmt.Fprintf(r.progress, "No records found for tenant %s (0 records)\n", tenantID)
		r.clearCheckpoint(ctx, tenantID)
		return result, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d records in %d sources (batch size: %d)\n",
		total-done, len(sources), r.iterator.batchSize)

	tracker := NewProgressTracker(r.progress, tenantID, total, r.config.ReportInterval)
	tracker.Start(done)

	for _, source := range sources {
		err := r.iterator.ForEachBatch(ctx, source, func(records []*core.EmbeddingRecord) error {
			if err := r.processor.Process(ctx, source, records); err != nil {
				return fmt.Errorf("failed to process batch: %w", err)
			}
			tracker.Increment(len(records))
			result.Records += len(records)
			return nil
		})
		if err != nil {
			tracker.Finish()
			result.Elapsed = tracker.Elapsed()
			return result, fmt.Errorf("source %s: %w", source.ID, err)
		}
		result.Sources++
		r.saveCheckpoint(ctx, tenantID, source.ID, tracker.Current())
	}

	tracker.Finish()
	r.clearCheckpoint(ctx, tenantID)

	result.Elapsed = tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d records in %v (%.1f records/sec)\n",
		result.Records, result.Elapsed.Round(time.Millisecond), float64(result.Records)/max(result.Elapsed.Seconds(), 1e-9))

	return result, nil
}

func (r *Reembedder) saveCheckpoint(ctx context.Context, tenantID, sourceID string, processed int) {
	if r.checkpoints == nil {
		return
	}
	err := r.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
		Job:          JobName,
		TenantID:     tenantID,
		LastSourceID: sourceID,
		Processed:    processed,
	})
	if err != nil {
		r.logger.Warn("failed to save checkpoint", "tenant", tenantID, "source", sourceID, "err", err)
	}
}

func (r *Reembedder) clearCheckpoint(ctx context.Context, tenantID string) {
	if r.checkpoints == nil {
		return
	}
	if err := r.checkpoints.ClearCheckpoint(ctx, JobName, tenantID); err != nil {
		r.logger.Warn("failed to clear checkpoint", "tenant", tenantID, "err", err)
	}
}
