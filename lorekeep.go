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


// Package lorekeep is a multi-tenant knowledge store for retrieval-augmented
// chat assistants.
//
// An Engine ingests text and crawled pages as knowledge sources, splits them
// into overlapping chunks, prefixes every chunk with a short context summary,
// embeds it and keeps it in a tenant-partitioned vector index. Questions are
// answered with the closest chunks of the asking tenant.
//
//	eng, err := lorekeep.Open(lorekeep.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer eng.Close()
//
//	_, err = eng.AddTextSource(ctx, "bot-1", "Opening hours", "We are open 9-17 on weekdays.")
//	chunks, err := eng.RetrieveContext(ctx, "bot-1", "when are you open?")
package lorekeep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/poiesic/lorekeep/ai"
	"github.com/poiesic/lorekeep/ai/openai"
	"github.com/poiesic/lorekeep/core"
	"github.com/poiesic/lorekeep/embedding"
	"github.com/poiesic/lorekeep/embedding/rediscache"
	"github.com/poiesic/lorekeep/enrich"
	"github.com/poiesic/lorekeep/ingestion"
	"github.com/poiesic/lorekeep/prompting"
	"github.com/poiesic/lorekeep/reembed"
	"github.com/poiesic/lorekeep/search"
	"github.com/poiesic/lorekeep/storage"
	"github.com/poiesic/lorekeep/storage/badger"
	"github.com/poiesic/lorekeep/storage/sqlstore"
	"github.com/poiesic/lorekeep/vectorindex"
	"github.com/poiesic/lorekeep/vectorindex/memory"
	"github.com/poiesic/lorekeep/vectorindex/qdrant"
)

// PagesResult is the outcome of IngestPages.
type PagesResult struct {
	*ingestion.PagesResult
	// SystemPrompt is derived from the pages for the tenant's assistant.
	SystemPrompt string `json:"systemPrompt"`
}

// Engine exposes the knowledge store operations.
type Engine struct {
	config      *Config
	sources     storage.SourceRepository
	records     storage.EmbeddingRepository
	checkpoints storage.CheckpointRepository
	index       vectorindex.Index
	provider    ai.AIProvider
	embedder    *embedding.Client
	pipeline    *ingestion.Pipeline
	retriever   *search.Retriever
	prompts     *prompting.Generator
	logger      *slog.Logger

	closers   []func() error
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	provider ai.AIProvider
	index    vectorindex.Index
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithProvider uses provider instead of building one from Config.AI.
// The Engine closes it.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithIndex uses index instead of building one from Config.Index.
// The Engine closes it.
func WithIndex(index vectorindex.Index) Option {
	return func(o *options) {
		o.index = index
	}
}

// Open builds an Engine from cfg. A nil cfg means DefaultConfig().
func Open(cfg *Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	e := &Engine{config: cfg, logger: o.logger.With("component", "engine")}
	if err := e.init(o); err != nil {
		_ = e.closeAll()
		return nil, err
	}
	return e, nil
}

func (e *Engine) init(o *options) error {
	cfg := e.config

	if err := e.openStore(o.logger); err != nil {
		return err
	}

	e.index = o.index
	if e.index == nil {
		idx, err := e.openIndex(o.logger)
		if err != nil {
			return err
		}
		e.index = idx
	}
	e.closers = append(e.closers, e.index.Close)

	e.provider = o.provider
	if e.provider == nil && cfg.AI != nil {
		provider, err := openai.NewProvider(cfg.AI)
		if err != nil {
			return fmt.Errorf("creating AI provider: %w", err)
		}
		e.provider = provider
	}

	var (
		embedder  ai.Embedder
		completer ai.Completer
	)
	if e.provider != nil {
		e.closers = append(e.closers, e.provider.Close)
		embedder = e.provider.Embedder()
		completer = e.provider.Completer()
	}

	clientOpts := []embedding.Option{embedding.WithLogger(o.logger), embedding.WithDimension(cfg.Dimension)}
	if cfg.Cache.RedisAddr != "" && embedder != nil {
		cache, err := rediscache.Connect(context.Background(), cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB,
			rediscache.WithTTL(cfg.Cache.TTL))
		if err != nil {
			return err
		}
		e.closers = append(e.closers, cache.Close)
		clientOpts = append(clientOpts, embedding.WithCache(cache, cacheNamespace(cfg)))
	}
	client, err := embedding.New(embedder, clientOpts...)
	if err != nil {
		return err
	}
	e.embedder = client

	enricher := enrich.New(completer, enrich.WithLogger(o.logger), enrich.WithEnabled(cfg.Enrich))
	e.pipeline, err = ingestion.NewPipeline(e.sources, e.records, e.index, client,
		ingestion.WithChunking(cfg.ChunkSize, cfg.ChunkOverlap),
		ingestion.WithMaxConcurrency(cfg.MaxConcurrency),
		ingestion.WithEnricher(enricher),
		ingestion.WithLogger(o.logger),
	)
	if err != nil {
		return err
	}

	e.retriever, err = search.NewRetriever(e.index, client, search.WithLogger(o.logger))
	if err != nil {
		return err
	}
	e.prompts = prompting.NewGenerator(completer, prompting.WithLogger(o.logger))

	e.logger.Info("engine ready",
		"store", cfg.Store.Driver, "index", cfg.Index.Backend,
		"online", client.Online(), "dimension", client.Dimension())
	return nil
}

func (e *Engine) openStore(logger *slog.Logger) error {
	cfg := e.config.Store
	if cfg.Driver == DriverBadger {
		backend, err := badger.OpenBackend(cfg.Path, cfg.Path == "", badger.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("opening badger store: %w", err)
		}
		e.closers = append(e.closers, backend.Close)
		e.sources = badger.NewSourceRepository(backend)
		e.records = badger.NewEmbeddingRepository(backend)
		e.checkpoints = badger.NewCheckpointRepository(backend)
		return nil
	}

	store, err := sqlstore.Open(cfg.Driver, cfg.DSN, sqlstore.WithLogger(logger))
	if err != nil {
		return err
	}
	e.closers = append(e.closers, store.Close)
	e.sources, e.records, e.checkpoints = store, store, store
	return nil
}

func (e *Engine) openIndex(logger *slog.Logger) (vectorindex.Index, error) {
	cfg := e.config.Index
	if cfg.Backend == IndexQdrant {
		return qdrant.New(qdrant.Config{
			URL:              cfg.QdrantURL,
			APIKey:           cfg.QdrantAPIKey,
			CollectionPrefix: cfg.CollectionPrefix,
			Dimension:        e.config.Dimension,
			Timeout:          cfg.Timeout,
		}, e.records, qdrant.WithLogger(logger))
	}
	return memory.New(memory.WithLogger(logger)), nil
}

// cacheNamespace keeps vectors of different models and dimensions apart.
func cacheNamespace(cfg *Config) string {
	model := "default"
	if cfg.AI != nil {
		model = cfg.AI.EmbeddingModel
	}
	return fmt.Sprintf("%s:%d", model, cfg.Dimension)
}

// Close releases every resource in reverse order of creation.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()
		err = e.closeAll()
	})
	return err
}

func (e *Engine) closeAll() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.logger.Error("error closing resource", "err", err)
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

// enter guards an operation against a concurrent Close.
func (e *Engine) enter() (func(), error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, ErrClosed
	}
	return e.mu.RUnlock, nil
}

// AddTextSource stores content as a TEXT source without URI. The stored body
// is a markdown document titled with label.
func (e *Engine) AddTextSource(ctx context.Context, tenantID, label, content string) (*core.KnowledgeSource, error) {
	leave, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer leave()

	return e.pipeline.Ingest(ctx, ingestion.Document{
		TenantID: tenantID,
		Label:    label,
		Kind:     core.SourceKindText,
		Body:     core.MarkdownDocument(label, content),
	})
}

// IngestPages stores crawled pages and their PDFs and derives a system prompt
// from them. Pages already known by URI are re-ingested in place.
func (e *Engine) IngestPages(ctx context.Context, tenantID string, pages []core.Page) (*PagesResult, error) {
	leave, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer leave()

	res, err := e.pipeline.IngestPages(ctx, tenantID, pages)
	if err != nil {
		if res == nil {
			return nil, err
		}
		return &PagesResult{PagesResult: res}, err
	}
	return &PagesResult{PagesResult: res, SystemPrompt: e.prompts.Generate(ctx, pages)}, nil
}

// DeleteSource removes a source of the tenant with its records and vectors.
// A source owned by another tenant is reported as storage.ErrNotFound.
func (e *Engine) DeleteSource(ctx context.Context, tenantID, sourceID string) error {
	leave, err := e.enter()
	if err != nil {
		return err
	}
	defer leave()

	return e.pipeline.DeleteSource(ctx, tenantID, sourceID)
}

// ListSources returns the tenant's sources, newest first, with their
// embedding counts.
func (e *Engine) ListSources(ctx context.Context, tenantID string) ([]core.SourceSummary, error) {
	leave, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer leave()

	return e.pipeline.ListSources(ctx, tenantID)
}

// RetrieveContext returns the contents of the Config.TopK chunks of the
// tenant closest to question, best first.
func (e *Engine) RetrieveContext(ctx context.Context, tenantID, question string) ([]string, error) {
	leave, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer leave()

	return e.retriever.Retrieve(ctx, tenantID, question, e.config.TopK)
}

// Search returns scored matches. topK <= 0 means Config.TopK. A non-nil
// monitor observes each step.
func (e *Engine) Search(ctx context.Context, tenantID, question string, topK int, monitor search.SearchMonitor) ([]vectorindex.Match, error) {
	leave, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer leave()

	if topK <= 0 {
		topK = e.config.TopK
	}
	return e.retriever.SearchWithMonitor(ctx, tenantID, question, topK, monitor)
}

// PurgeTenant removes every source, record and vector of the tenant and
// returns the number of sources removed.
func (e *Engine) PurgeTenant(ctx context.Context, tenantID string) (int, error) {
	leave, err := e.enter()
	if err != nil {
		return 0, err
	}
	defer leave()

	return e.pipeline.PurgeTenant(ctx, tenantID)
}

// Reembed recomputes every vector of the tenant with the current provider.
// It resumes from the checkpoint of an interrupted run. progress may be nil.
func (e *Engine) Reembed(ctx context.Context, tenantID string, config *reembed.Config, progress io.Writer) (*reembed.Result, error) {
	leave, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer leave()

	if e.provider == nil {
		return nil, ErrOffline
	}
	cfg := reembed.DefaultConfig()
	if config != nil {
		*cfg = *config
	}
	cfg.Dimension = e.config.Dimension

	r, err := reembed.NewReembedder(e.sources, e.records, e.checkpoints, e.index, e.provider.Embedder(), cfg, progress,
		reembed.WithVectorStore(e.embedder))
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, tenantID)
}

// Online reports whether an embedding provider is configured.
func (e *Engine) Online() bool {
	return e.embedder.Online()
}
