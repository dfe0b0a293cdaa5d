package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/lorekeep"
	"github.com/poiesic/lorekeep/ai"
	"github.com/poiesic/lorekeep/chunking"
	"github.com/poiesic/lorekeep/embedding"
	"github.com/poiesic/lorekeep/search"
	"github.com/poiesic/lorekeep/workpool"
	"github.com/urfave/cli/v2"
)

// engineFlags configure the Engine every command opens.
func engineFlags() []cli.Flag {
	def := ai.DefaultConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "store",
			Usage:   "Store driver (badger, sqlite, postgres, mysql)",
			Value:   lorekeep.DriverBadger,
			EnvVars: []string{"LOREKEEP_STORE"},
		},
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to BadgerDB database directory",
			Value:   "./lorekeep_db",
			EnvVars: []string{"LOREKEEP_DB"},
		},
		&cli.StringFlag{
			Name:    "dsn",
			Usage:   "Connection string of the SQL store",
			EnvVars: []string{"LOREKEEP_DSN", "DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "index",
			Usage:   "Vector index (memory, qdrant)",
			Value:   lorekeep.IndexMemory,
			EnvVars: []string{"LOREKEEP_INDEX"},
		},
		&cli.StringFlag{
			Name:    "qdrant-url",
			Usage:   "Qdrant REST endpoint",
			Value:   "http://localhost:6333",
			EnvVars: []string{"QDRANT_URL"},
		},
		&cli.StringFlag{
			Name:    "qdrant-api-key",
			Usage:   "Qdrant API key",
			EnvVars: []string{"QDRANT_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "collection-prefix",
			Usage:   "Prefix of the per-tenant Qdrant collections",
			Value:   "lorekeep",
			EnvVars: []string{"LOREKEEP_COLLECTION_PREFIX"},
		},
		&cli.StringFlag{
			Name:    "redis-addr",
			Usage:   "Redis address of the embedding cache (empty disables it)",
			EnvVars: []string{"REDIS_ADDR"},
		},
		&cli.StringFlag{
			Name:    "redis-password",
			Usage:   "Redis password",
			EnvVars: []string{"REDIS_PASSWORD"},
		},
		&cli.IntFlag{
			Name:    "redis-db",
			Usage:   "Redis database number",
			EnvVars: []string{"REDIS_DB"},
		},
		&cli.DurationFlag{
			Name:    "cache-ttl",
			Usage:   "Lifetime of cached embeddings",
			Value:   7 * 24 * time.Hour,
			EnvVars: []string{"LOREKEEP_CACHE_TTL"},
		},
		&cli.BoolFlag{
			Name:    "offline",
			Usage:   "Run without an AI provider, using fallback embeddings and summaries",
			EnvVars: []string{"LOREKEEP_OFFLINE"},
		},
		&cli.StringFlag{
			Name:    "embedding-host",
			Usage:   "Embedding service host URL",
			Value:   def.EmbeddingHost,
			EnvVars: []string{"LOREKEEP_EMBEDDING_HOST"},
		},
		&cli.StringFlag{
			Name:    "embedding-model",
			Usage:   "Embedding model name",
			Value:   def.EmbeddingModel,
			EnvVars: []string{"LOREKEEP_EMBEDDING_MODEL"},
		},
		&cli.StringFlag{
			Name:    "completion-host",
			Usage:   "Completion service host URL",
			Value:   def.CompletionHost,
			EnvVars: []string{"LOREKEEP_COMPLETION_HOST"},
		},
		&cli.StringFlag{
			Name:    "completion-model",
			Usage:   "Completion model name",
			Value:   def.CompletionModel,
			EnvVars: []string{"LOREKEEP_COMPLETION_MODEL"},
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "API key of the AI provider",
			EnvVars: []string{"OPENAI_API_KEY"},
		},
		&cli.Float64Flag{
			Name:    "requests-per-second",
			Usage:   "Rate limit of AI requests (0 disables it)",
			EnvVars: []string{"LOREKEEP_REQUESTS_PER_SECOND"},
		},
		&cli.IntFlag{
			Name:    "dimension",
			Usage:   "Vector dimension",
			Value:   embedding.DefaultDimension,
			EnvVars: []string{"LOREKEEP_DIMENSION"},
		},
		&cli.IntFlag{
			Name:  "chunk-size",
			Usage: "Chunk size in characters",
			Value: chunking.DefaultSize,
		},
		&cli.IntFlag{
			Name:  "chunk-overlap",
			Usage: "Overlap between consecutive chunks",
			Value: chunking.DefaultOverlap,
		},
		&cli.IntFlag{
			Name:  "max-concurrency",
			Usage: "Maximum concurrent provider calls per ingestion",
			Value: workpool.MaxConcurrency,
		},
		&cli.BoolFlag{
			Name:    "no-enrich",
			Usage:   "Skip LLM chunk summaries",
			EnvVars: []string{"LOREKEEP_NO_ENRICH"},
		},
		&cli.IntFlag{
			Name:  "top-k",
			Usage: "Chunks returned per question",
			Value: search.DefaultTopK,
		},
	}
}

// engineConfig builds the Engine configuration from the global flags.
func engineConfig(c *cli.Context) (*lorekeep.Config, error) {
	cfg := lorekeep.DefaultConfig()
	cfg.Store = lorekeep.StoreConfig{
		Driver: c.String("store"),
		Path:   c.String("db"),
		DSN:    c.String("dsn"),
	}
	cfg.Index.Backend = c.String("index")
	cfg.Index.QdrantURL = c.String("qdrant-url")
	cfg.Index.QdrantAPIKey = c.String("qdrant-api-key")
	cfg.Index.CollectionPrefix = c.String("collection-prefix")
	cfg.Cache = lorekeep.CacheConfig{
		RedisAddr:     c.String("redis-addr"),
		RedisPassword: c.String("redis-password"),
		RedisDB:       c.Int("redis-db"),
		TTL:           c.Duration("cache-ttl"),
	}
	cfg.Dimension = c.Int("dimension")
	cfg.ChunkSize = c.Int("chunk-size")
	cfg.ChunkOverlap = c.Int("chunk-overlap")
	cfg.MaxConcurrency = c.Int("max-concurrency")
	cfg.Enrich = !c.Bool("no-enrich")
	cfg.TopK = c.Int("top-k")

	if !c.Bool("offline") {
		opts := []ai.ConfigOption{
			ai.WithEmbeddingHost(c.String("embedding-host")),
			ai.WithEmbeddingModel(c.String("embedding-model")),
			ai.WithCompletionHost(c.String("completion-host")),
			ai.WithCompletionModel(c.String("completion-model")),
		}
		if key := c.String("api-key"); key != "" {
			opts = append(opts, ai.WithAPIKey(key))
		}
		if rps := c.Float64("requests-per-second"); rps > 0 {
			opts = append(opts, ai.WithRateLimit(rps, max(1, int(rps))))
		}
		cfg.AI = ai.NewConfig(opts...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func openEngine(c *cli.Context) (*lorekeep.Engine, error) {
	cfg, err := engineConfig(c)
	if err != nil {
		return nil, err
	}
	if cfg.Index.Backend == lorekeep.IndexMemory && c.Command.Name != "serve" {
		slog.Warn("the memory index starts empty in every process; use --index qdrant to search across runs")
	}
	eng, err := lorekeep.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return eng, nil
}
