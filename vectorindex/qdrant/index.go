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

// Package qdrant implements vectorindex.Index on a Qdrant server.
//
// Every tenant gets its own collection, created on first upsert. Chunk text
// travels in the point payload so search needs no second lookup.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/lorekeep/core"
	"github.com/poiesic/lorekeep/vectorindex"
)

const (
	// DeleteBatchSize is the largest number of point ids sent in one delete call.
	DeleteBatchSize = 1000

	providerName = "qdrant"

	payloadTenant  = "tenantId"
	payloadSource  = "knowledgeSourceId"
	payloadChunk   = "chunkIndex"
	payloadLabel   = "label"
	payloadContent = "content"
)

// ErrInvalidURL is returned for a malformed server URL.
var ErrInvalidURL = errors.New("qdrant: invalid URL")

// Config holds connection settings.
type Config struct {
	URL              string        // e.g. http://localhost:6333
	APIKey           string        // sent as the api-key header when set
	CollectionPrefix string        // collections are named <prefix>_<tenant>
	Dimension        int           // vector size of new collections
	Timeout          time.Duration // per-request HTTP timeout
}

// Index implements vectorindex.Index against Qdrant.
type Index struct {
	client    *client
	prefix    string
	dimension int
	lister    vectorindex.VectorIDLister
	logger    *slog.Logger

	mu      sync.Mutex
	ensured map[string]struct{}
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

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(i *Index) {
		if hc != nil {
			i.client.httpClient = hc
		}
	}
}

// New validates cfg and returns an Index. lister supplies the vector ids of a
// source for DeleteBySource; when nil, deletion filters on the source id
// stored in the payload.
func New(cfg Config, lister vectorindex.VectorIDLister, opts ...Option) (*Index, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		base = "http://localhost:6333"
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, base)
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if cfg.Dimension <= 0 {
		return nil, errors.New("qdrant: dimension must be positive")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	prefix := cfg.CollectionPrefix
	if prefix == "" {
		prefix = "lorekeep"
	}

	idx := &Index{
		client: &client{
			httpClient: &http.Client{Timeout: timeout},
			baseURL:    base,
			apiKey:     strings.TrimSpace(cfg.APIKey),
		},
		prefix:    prefix,
		dimension: cfg.Dimension,
		lister:    lister,
		logger:    slog.Default(),
		ensured:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = idx.logger.With("component", "qdrant-index")
	return idx, nil
}

// CollectionName returns the collection that holds tenantID's vectors.
func (i *Index) CollectionName(tenantID string) string {
	var sb strings.Builder
	for _, r := range tenantID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	name := i.prefix + "_" + sb.String()
	if sb.String() != tenantID {
		// keep distinct tenants distinct after sanitizing
		name += "_" + core.ContentKey(tenantID)[:8]
	}
	return name
}

func (i *Index) ensureCollection(ctx context.Context, name string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.ensured[name]; ok {
		return nil
	}
	exists, err := i.client.collectionExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		if err := i.client.createCollection(ctx, name, i.dimension); err != nil {
			return err
		}
		i.logger.Info("created collection", "collection", name, "dimension", i.dimension)
	}
	i.ensured[name] = struct{}{}
	return nil
}

// Upsert writes one point into the tenant's collection.
func (i *Index) Upsert(ctx context.Context, vectorID string, vector []float32, md vectorindex.Metadata, content string) (string, error) {
	if md.TenantID == "" {
		return "", vectorindex.ErrTenantRequired
	}
	if len(vector) == 0 {
		return "", vectorindex.ErrEmptyVector
	}
	if vectorID == "" {
		vectorID = core.NewID()
	}

	collection := i.CollectionName(md.TenantID)
	if err := i.ensureCollection(ctx, collection); err != nil {
		return "", core.NewProviderError(providerName, "ensure collection", err)
	}

	p := point{
		ID:     vectorID,
		Vector: vector,
		Payload: map[string]any{
			payloadTenant:  md.TenantID,
			payloadSource:  md.KnowledgeSourceID,
			payloadChunk:   md.ChunkIndex,
			payloadLabel:   md.Label,
			payloadContent: content,
		},
	}
	if err := i.client.upsertPoints(ctx, collection, []point{p}); err != nil {
		return "", core.NewProviderError(providerName, "upsert", err)
	}
	return vectorID, nil
}

// Search queries the tenant's collection. A tenant without a collection has
// no entries.
func (i *Index) Search(ctx context.Context, tenantID string, vector []float32, topK int) ([]vectorindex.Match, error) {
	if tenantID == "" {
		return nil, vectorindex.ErrTenantRequired
	}
	if topK <= 0 || len(vector) == 0 {
		return []vectorindex.Match{}, nil
	}

	collection := i.CollectionName(tenantID)
	points, err := i.client.search(ctx, collection, vector, topK, matchFilter(payloadTenant, tenantID))
	if errors.Is(err, errNotFound) {
		return []vectorindex.Match{}, nil
	}
	if err != nil {
		return nil, core.NewProviderError(providerName, "search", err)
	}

	matches := make([]vectorindex.Match, 0, len(points))
	for _, p := range points {
		md := metadataFromPayload(p.Payload)
		if md.TenantID != tenantID {
			continue
		}
		content, _ := p.Payload[payloadContent].(string)
		matches = append(matches, vectorindex.Match{
			ID:       stringifyID(p.ID),
			Score:    float32(p.Score),
			Metadata: md,
			Content:  content,
		})
	}
	return vectorindex.SortAndLimit(matches, topK), nil
}

// DeleteBySource removes a source's points in batches of at most
// DeleteBatchSize ids, then sweeps the collection by the source payload so
// points whose record was never written go too. Failures are logged, never
// returned.
func (i *Index) DeleteBySource(ctx context.Context, tenantID, sourceID string) error {
	collection := i.CollectionName(tenantID)
	log := i.logger.With("tenant", tenantID, "source", sourceID)

	if i.lister != nil {
		i.deleteListed(ctx, collection, sourceID, log)
	}

	if err := i.client.deleteByFilter(ctx, collection, matchFilter(payloadSource, sourceID)); err != nil && !errors.Is(err, errNotFound) {
		log.Warn("deleting source vectors by filter failed", "err", err)
	}
	return nil
}

func (i *Index) deleteListed(ctx context.Context, collection, sourceID string, log *slog.Logger) {
	ids, err := i.lister.VectorIDsForSource(ctx, sourceID)
	if err != nil {
		log.Warn("listing source vector ids failed", "err", err)
		return
	}

	for start := 0; start < len(ids); start += DeleteBatchSize {
		end := min(start+DeleteBatchSize, len(ids))
		if err := i.client.deletePoints(ctx, collection, ids[start:end]); err != nil && !errors.Is(err, errNotFound) {
			log.Warn("deleting vector batch failed", "from", start, "to", end, "err", err)
		}
	}
	log.Debug("deleted source vectors", "count", len(ids))
}

// DeleteByTenant drops the tenant's collection. Failures are logged, never returned.
func (i *Index) DeleteByTenant(ctx context.Context, tenantID string) error {
	collection := i.CollectionName(tenantID)

	i.mu.Lock()
	delete(i.ensured, collection)
	i.mu.Unlock()

	if err := i.client.deleteCollection(ctx, collection); err != nil {
		i.logger.Warn("deleting tenant collection failed", "tenant", tenantID, "err", err)
	}
	return nil
}

// Close releases idle HTTP connections.
func (i *Index) Close() error {
	i.client.httpClient.CloseIdleConnections()
	return nil
}

func metadataFromPayload(payload map[string]any) vectorindex.Metadata {
	md := vectorindex.Metadata{}
	md.TenantID, _ = payload[payloadTenant].(string)
	md.KnowledgeSourceID, _ = payload[payloadSource].(string)
	md.Label, _ = payload[payloadLabel].(string)
	if n, ok := payload[payloadChunk].(float64); ok {
		md.ChunkIndex = int(n)
	}
	return md
}
