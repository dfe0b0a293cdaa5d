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


package lorekeep

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/lorekeep/ai"
	"github.com/poiesic/lorekeep/chunking"
	"github.com/poiesic/lorekeep/embedding"
	"github.com/poiesic/lorekeep/search"
	"github.com/poiesic/lorekeep/workpool"
)

// Store drivers. Every other value is handed to the SQL store.
const (
	DriverBadger = "badger"
	DriverSQLite = "sqlite"
)

// Index backends.
const (
	IndexMemory = "memory"
	IndexQdrant = "qdrant"
)

// StoreConfig selects the relational store.
type StoreConfig struct {
	// Driver is "badger" (default), "sqlite", "postgres" or "mysql".
	Driver string
	// Path is the Badger directory. Empty keeps Badger in memory.
	Path string
	// DSN is the connection string of the SQL drivers.
	DSN string
}

// IndexConfig selects the vector index.
type IndexConfig struct {
	// Backend is "memory" (default) or "qdrant".
	Backend          string
	QdrantURL        string
	QdrantAPIKey     string
	CollectionPrefix string
	Timeout          time.Duration
}

// CacheConfig enables the Redis embedding cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// Config holds everything Open needs.
type Config struct {
	Store StoreConfig
	Index IndexConfig
	Cache CacheConfig

	// AI configures the OpenAI-compatible provider. Nil runs offline:
	// embeddings and chunk summaries use their deterministic fallbacks.
	AI *ai.Config

	// Dimension is the vector length D.
	Dimension int

	ChunkSize      int
	ChunkOverlap   int
	MaxConcurrency int

	// Enrich turns chunk summaries on. Without it every chunk gets the
	// fallback summary.
	Enrich bool

	// TopK is the number of chunks RetrieveContext returns.
	TopK int
}

// DefaultConfig returns an offline, in-memory configuration.
func DefaultConfig() *Config {
	return &Config{
		Store:          StoreConfig{Driver: DriverBadger},
		Index:          IndexConfig{Backend: IndexMemory, CollectionPrefix: "lorekeep", Timeout: 10 * time.Second},
		Cache:          CacheConfig{TTL: 7 * 24 * time.Hour},
		Dimension:      embedding.DefaultDimension,
		ChunkSize:      chunking.DefaultSize,
		ChunkOverlap:   chunking.DefaultOverlap,
		MaxConcurrency: workpool.MaxConcurrency,
		Enrich:         true,
		TopK:           search.DefaultTopK,
	}
}

// Validate checks the configuration and fills in zero values with defaults.
func (c *Config) Validate() error {
	defaults := DefaultConfig()

	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Store.Driver == "" {
		c.Store.Driver = DriverBadger
	}
	if c.Store.Driver != DriverBadger && c.Store.DSN == "" {
		return fmt.Errorf("config: store driver %q requires a DSN", c.Store.Driver)
	}

	c.Index.Backend = strings.ToLower(strings.TrimSpace(c.Index.Backend))
	switch c.Index.Backend {
	case "":
		c.Index.Backend = IndexMemory
	case IndexMemory, IndexQdrant:
	default:
		return fmt.Errorf("config: unknown index backend %q", c.Index.Backend)
	}
	if c.Index.CollectionPrefix == "" {
		c.Index.CollectionPrefix = defaults.Index.CollectionPrefix
	}

	if c.Dimension <= 0 {
		c.Dimension = defaults.Dimension
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaults.ChunkSize
	}
	if c.ChunkOverlap < 0 {
		return errors.New("config: chunk overlap cannot be negative")
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("config: chunk overlap %d must be below chunk size %d", c.ChunkOverlap, c.ChunkSize)
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = defaults.MaxConcurrency
	}
	if c.TopK <= 0 {
		c.TopK = defaults.TopK
	}

	if c.AI != nil {
		if err := c.AI.Validate(); err != nil {
			return err
		}
	}
	return nil
}
