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

package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/lorekeep/chunking"
	"github.com/poiesic/lorekeep/core"
	"github.com/poiesic/lorekeep/embedding"
	"github.com/poiesic/lorekeep/enrich"
	"github.com/poiesic/lorekeep/storage"
	"github.com/poiesic/lorekeep/vectorindex"
	"github.com/poiesic/lorekeep/workpool"
)

// Document is one unit of content to ingest as a knowledge source.
type Document struct {
	TenantID string
	Label    string
	URI      string // dedup key within the tenant; empty for ad-hoc text
	Kind     core.SourceKind
	Title    string // context for enrichment; defaults to Label
	Body     string
	Metadata map[string]any
}

// Pipeline orchestrates ingestion and deletion of knowledge sources.
type Pipeline struct {
	sources        storage.SourceRepository
	records        storage.EmbeddingRepository
	index          vectorindex.Index
	embedder       *embedding.Client
	enricher       *enrich.Enricher
	chunker        *chunking.Chunker
	maxConcurrency int
	processors     []processor
	locks          *keyedMutex
	logger         *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithMaxConcurrency bounds the workers of each enrich and embed pass.
// Default is workpool.MaxConcurrency.
func WithMaxConcurrency(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			n = 1
		}
		p.maxConcurrency = n
		return nil
	}
}

// WithChunking sets the chunk window.
// Default is chunking.DefaultSize and chunking.DefaultOverlap.
func WithChunking(size, overlap int) Option {
	return func(p *Pipeline) error {
		c, err := chunking.New(size, overlap)
		if err != nil {
			return err
		}
		p.chunker = c
		return nil
	}
}

// WithEnricher sets the chunk enricher.
// Default is an enricher without a completer, which always falls back.
func WithEnricher(e *enrich.Enricher) Option {
	return func(p *Pipeline) error {
		if e != nil {
			p.enricher = e
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	sources storage.SourceRepository,
	records storage.EmbeddingRepository,
	index vectorindex.Index,
	embedder *embedding.Client,
	opts ...Option,
) (*Pipeline, error) {
	if sources == nil {
		return nil, ErrSourceRepositoryRequired
	}
	if records == nil {
		return nil, ErrEmbeddingRepositoryRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbeddingClientRequired
	}

	p := &Pipeline{
		sources:        sources,
		records:        records,
		index:          index,
		embedder:       embedder,
		chunker:        chunking.Default(),
		maxConcurrency: workpool.MaxConcurrency,
		locks:          newKeyedMutex(),
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	if p.enricher == nil {
		p.enricher = enrich.New(nil, enrich.WithLogger(p.logger))
	}
	p.logger = p.logger.With("component", "ingestion")

	// Create processors after options are applied (so they get final config)
	p.processors = []processor{
		newEnrichProcessor(p.enricher, p.maxConcurrency, p.logger),
		newEmbeddingProcessor(records, index, embedder, p.maxConcurrency, p.logger),
	}
	p.logger.Debug("pipeline ready",
		"chunk_size", p.chunker.Size(),
		"chunk_overlap", p.chunker.Overlap(),
		"max_concurrency", p.maxConcurrency)
	return p, nil
}

// Ingest stores doc as a knowledge source and makes it searchable.
//
// A document whose URI matches an existing source of the tenant resets that
// source: its vectors and records are removed and it runs the full pipeline
// again. Ingestion of one (tenant, URI) is serialized within the process.
//
// The source is returned even when ingestion fails, with status FAILED and
// the error recorded in its metadata. A body without usable text fails with
// core.ErrInsufficientContent.
func (p *Pipeline) Ingest(ctx context.Context, doc Document) (*core.KnowledgeSource, error) {
	if err := core.ValidateTenantID(doc.TenantID); err != nil {
		return nil, err
	}
	if err := core.ValidateURI(doc.URI); err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.Label) == "" {
		return nil, core.ErrEmptyLabel
	}
	if doc.Kind == "" {
		doc.Kind = core.SourceKindText
	}
	if err := core.ValidateSourceKind(doc.Kind); err != nil {
		return nil, err
	}

	if doc.URI != "" {
		unlock := p.locks.lock(sourceKey(doc.TenantID, doc.URI))
		defer unlock()
	}

	start := time.Now()
	source, err := p.prepareSource(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("preparing source: %w", err)
	}
	log := p.logger.With("tenant", source.TenantID, "source", source.ID)

	chunks := p.chunker.Split(doc.Body)
	if len(chunks) == 0 {
		p.markFailed(ctx, source, core.ErrInsufficientContent)
		return source, core.ErrInsufficientContent
	}

	title := doc.Title
	if strings.TrimSpace(title) == "" {
		title = doc.Label
	}
	j := &job{source: source, title: title, chunks: chunks}

	for _, proc := range p.processors {
		if err := proc.process(ctx, j); err != nil {
			err = fmt.Errorf("%s pass: %w", proc.name(), err)
			log.Error("ingestion failed", "err", err)
			p.rollback(ctx, source)
			p.markFailed(ctx, source, err)
			return source, err
		}
	}

	if err := p.sources.UpdateSourceStatus(ctx, source.ID, core.SourceStatusReady, nil); err != nil {
		p.rollback(ctx, source)
		p.markFailed(ctx, source, err)
		return source, fmt.Errorf("marking source ready: %w", err)
	}
	source.Status = core.SourceStatusReady

	log.Info("ingested source", "label", source.Label, "chunks", len(j.records), "elapsed", time.Since(start))
	return source, nil
}

// prepareSource creates a PENDING source for doc, or resets the tenant's
// existing source with the same URI.
func (p *Pipeline) prepareSource(ctx context.Context, doc Document) (*core.KnowledgeSource, error) {
	// a concurrent creator in another process can win the unique index; the
	// second attempt then finds and resets its source
	for attempt := 0; attempt < 2; attempt++ {
		if doc.URI != "" {
			existing, err := p.sources.FindSourceByURI(ctx, doc.TenantID, doc.URI)
			if err == nil {
				return p.resetSource(ctx, existing, doc)
			}
			if !errors.Is(err, storage.ErrNotFound) {
				return nil, err
			}
		}

		source, err := p.sources.CreateSource(ctx, &core.KnowledgeSource{
			TenantID: doc.TenantID,
			Label:    doc.Label,
			URI:      core.StringPtr(doc.URI),
			Kind:     doc.Kind,
			Status:   core.SourceStatusPending,
			Metadata: doc.Metadata,
		})
		if errors.Is(err, storage.ErrDuplicateKey) {
			continue
		}
		return source, err
	}
	return nil, storage.ErrDuplicateKey
}

// resetSource removes what an earlier ingestion stored and returns the
// source to PENDING with doc's label and metadata.
func (p *Pipeline) resetSource(ctx context.Context, existing *core.KnowledgeSource, doc Document) (*core.KnowledgeSource, error) {
	p.logger.Info("re-ingesting source", "tenant", existing.TenantID, "source", existing.ID, "previous_status", existing.Status)

	if err := p.index.DeleteBySource(ctx, existing.TenantID, existing.ID); err != nil {
		p.logger.Warn("removing previous vectors failed", "source", existing.ID, "err", err)
	}

	var updated *core.KnowledgeSource
	err := p.sources.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := p.records.DeleteEmbeddingRecords(ctx, existing.ID); err != nil {
			return err
		}
		reset := *existing
		reset.Label = doc.Label
		reset.Status = core.SourceStatusPending
		reset.Metadata = doc.Metadata
		var err error
		updated, err = p.sources.UpdateSource(ctx, &reset)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// rollback removes every vector and record written for source. It runs on a
// context that outlives cancellation of ctx.
func (p *Pipeline) rollback(ctx context.Context, source *core.KnowledgeSource) {
	ctx = context.WithoutCancel(ctx)
	if err := p.index.DeleteBySource(ctx, source.TenantID, source.ID); err != nil {
		p.logger.Warn("rollback: removing vectors failed", "source", source.ID, "err", err)
	}
	if _, err := p.records.DeleteEmbeddingRecords(ctx, source.ID); err != nil {
		p.logger.Error("rollback: removing records failed", "source", source.ID, "err", err)
	}
}

func (p *Pipeline) markFailed(ctx context.Context, source *core.KnowledgeSource, cause error) {
	ctx = context.WithoutCancel(ctx)
	md := map[string]any{
		"error":    cause.Error(),
		"failedAt": time.Now().UTC().Format(time.RFC3339),
	}
	if err := p.sources.UpdateSourceStatus(ctx, source.ID, core.SourceStatusFailed, md); err != nil {
		p.logger.Error("marking source failed", "source", source.ID, "err", err)
		return
	}
	source.Status = core.SourceStatusFailed
	source.Metadata = storage.MergeMetadata(source.Metadata, md)
}

// DeleteSource removes a tenant's source: vectors first, then records and the
// source row in one transaction. A source of another tenant is reported as
// storage.ErrNotFound.
func (p *Pipeline) DeleteSource(ctx context.Context, tenantID, sourceID string) error {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return err
	}
	source, err := p.sources.GetSource(ctx, sourceID)
	if err != nil {
		return err
	}
	if source.TenantID != tenantID {
		return storage.ErrNotFound
	}
	if source.HasURI() {
		unlock := p.locks.lock(sourceKey(tenantID, *source.URI))
		defer unlock()
	}

	if err := p.index.DeleteBySource(ctx, tenantID, sourceID); err != nil {
		p.logger.Warn("removing source vectors failed", "tenant", tenantID, "source", sourceID, "err", err)
	}

	var removed int
	err = p.sources.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if removed, err = p.records.DeleteEmbeddingRecords(ctx, sourceID); err != nil {
			return err
		}
		return p.sources.DeleteSource(ctx, sourceID)
	})
	if err != nil {
		return fmt.Errorf("deleting source %s: %w", sourceID, err)
	}

	p.logger.Info("deleted source", "tenant", tenantID, "source", sourceID, "records", removed)
	return nil
}

// ListSources returns the tenant's sources, newest first, with their record
// counts.
func (p *Pipeline) ListSources(ctx context.Context, tenantID string) ([]core.SourceSummary, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	sources, err := p.sources.ListSources(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	summaries := make([]core.SourceSummary, 0, len(sources))
	for _, source := range sources {
		n, err := p.records.CountEmbeddingRecords(ctx, source.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, core.SourceSummary{KnowledgeSource: source, EmbeddingCount: n})
	}
	return summaries, nil
}

// PurgeTenant removes every source of a tenant and drops its vector
// namespace. It returns the number of sources removed.
func (p *Pipeline) PurgeTenant(ctx context.Context, tenantID string) (int, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return 0, err
	}

	if err := p.index.DeleteByTenant(ctx, tenantID); err != nil {
		p.logger.Warn("dropping tenant vectors failed", "tenant", tenantID, "err", err)
	}

	sources, err := p.sources.ListSources(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	for i, source := range sources {
		err := p.sources.WithTransaction(ctx, func(ctx context.Context) error {
			if _, err := p.records.DeleteEmbeddingRecords(ctx, source.ID); err != nil {
				return err
			}
			return p.sources.DeleteSource(ctx, source.ID)
		})
		if err != nil {
			return i, fmt.Errorf("purging source %s: %w", source.ID, err)
		}
	}

	p.logger.Info("purged tenant", "tenant", tenantID, "sources", len(sources))
	return len(sources), nil
}
