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

package embedding

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/poiesic/lorekeep/ai"
	"github.com/poiesic/lorekeep/core"
)

// DefaultDimension is the vector length every Client returns unless configured otherwise.
const DefaultDimension = 1024

// ErrInvalidDimension is returned for a non-positive dimension.
var ErrInvalidDimension = errors.New("embedding dimension must be positive")

// Client turns text into fixed-length vectors. It never fails because of the
// provider: without one, or when the provider errors, it returns the
// deterministic Fallback vector instead.
type Client struct {
	embedder  ai.Embedder
	dimension int
	cache     Cache
	namespace string
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// WithDimension sets the vector length D.
func WithDimension(dim int) Option {
	return func(c *Client) error {
		if dim < 1 {
			return ErrInvalidDimension
		}
		c.dimension = dim
		return nil
	}
}

// WithCache caches provider vectors under namespace, typically the
// embedding model name so a model switch never serves stale vectors.
func WithCache(cache Cache, namespace string) Option {
	return func(c *Client) error {
		c.cache = cache
		c.namespace = namespace
		return nil
	}
}

// New creates a Client. embedder may be nil, in which case every vector is
// the deterministic fallback.
func New(embedder ai.Embedder, opts ...Option) (*Client, error) {
	c := &Client{
		embedder:  embedder,
		dimension: DefaultDimension,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "embedding-client")
	return c, nil
}

// Dimension returns D.
func (c *Client) Dimension() int {
	return c.dimension
}

// Online reports whether a provider is configured.
func (c *Client) Online() bool {
	return c.embedder != nil
}

// Embed returns a vector of exactly Dimension() components for text.
// Blank text returns core.ErrEmptyInput.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, core.ErrEmptyInput
	}

	if c.embedder == nil {
		return Fallback(text, c.dimension), nil
	}

	key := c.cacheKey(text)
	if key != "" {
		vec, err := c.cache.Get(ctx, key)
		switch {
		case err == nil:
			return Normalize(vec, c.dimension), nil
		case !errors.Is(err, ErrCacheMiss):
			c.logger.Debug("embedding cache read failed", "err", err)
		}
	}

	vec, err := c.embedder.EmbedText(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("embedding provider failed, using fallback vector", "err", err)
		return Fallback(text, c.dimension), nil
	}
	if len(vec) == 0 {
		c.logger.Warn("embedding provider returned an empty vector, using fallback vector")
		return Fallback(text, c.dimension), nil
	}

	return c.store(ctx, key, vec), nil
}

// Store shapes a provider vector for text exactly as Embed does and writes
// it to the cache, so vectors computed elsewhere match later Embed calls.
func (c *Client) Store(ctx context.Context, text string, vec []float32) []float32 {
	return c.store(ctx, c.cacheKey(text), vec)
}

func (c *Client) store(ctx context.Context, key string, vec []float32) []float32 {
	vec = Normalize(vec, c.dimension)
	if key != "" {
		if err := c.cache.Set(ctx, key, vec); err != nil {
			c.logger.Debug("embedding cache write failed", "err", err)
		}
	}
	return vec
}

func (c *Client) cacheKey(text string) string {
	if c.cache == nil {
		return ""
	}
	return c.namespace + ":" + core.ContentKey(text)
}
