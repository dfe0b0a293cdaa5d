package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/lorekeep"
	"github.com/poiesic/lorekeep/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// run executes the CLI offline against a Badger store in dir.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut

	full := append([]string{"lorekeep", "--log-level", "error", "--offline", "--db", filepath.Join(dir, "db")}, args...)
	err := app.Run(full)
	return out.String(), err
}

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %s not found", name)
	return nil
}

func TestReembedCommandFlags(t *testing.T) {
	cmd := findCommand(t, newApp(), "reembed")

	ints := map[string]int{}
	for _, flag := range cmd.Flags {
		if f, ok := flag.(*cli.IntFlag); ok {
			ints[f.Name] = f.Value
		}
	}
	assert.Equal(t, 100, ints["batch-size"])
	assert.Equal(t, 100, ints["report-interval"])
	assert.Equal(t, 3, ints["max-retries"])

	t.Run("tenant is required", func(t *testing.T) {
		_, err := run(t, t.TempDir(), "reembed")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tenant")
	})

	t.Run("batch-size must be positive", func(t *testing.T) {
		_, err := run(t, t.TempDir(), "reembed", "--tenant", "bot", "--batch-size", "0")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch-size")
	})

	t.Run("needs a provider", func(t *testing.T) {
		_, err := run(t, t.TempDir(), "reembed", "--tenant", "bot")
		require.Error(t, err)
		assert.ErrorIs(t, err, lorekeep.ErrOffline)
	})
}

func TestEngineConfig(t *testing.T) {
	capture := func(args ...string) (*lorekeep.Config, error) {
		var cfg *lorekeep.Config
		app := &cli.App{
			Name:  "test",
			Flags: engineFlags(),
			Action: func(c *cli.Context) error {
				var err error
				cfg, err = engineConfig(c)
				return err
			},
		}
		err := app.Run(append([]string{"test"}, args...))
		return cfg, err
	}

	t.Run("defaults", func(t *testing.T) {
		cfg, err := capture()
		require.NoError(t, err)
		assert.Equal(t, lorekeep.DriverBadger, cfg.Store.Driver)
		assert.Equal(t, "./lorekeep_db", cfg.Store.Path)
		assert.Equal(t, lorekeep.IndexMemory, cfg.Index.Backend)
		assert.True(t, cfg.Enrich)
		require.NotNil(t, cfg.AI)
		assert.Equal(t, "http://localhost:11434/v1", cfg.AI.EmbeddingHost)
	})

	t.Run("offline", func(t *testing.T) {
		cfg, err := capture("--offline", "--no-enrich")
		require.NoError(t, err)
		assert.Nil(t, cfg.AI)
		assert.False(t, cfg.Enrich)
	})

	t.Run("provider and stores", func(t *testing.T) {
		cfg, err := capture(
			"--store", "postgres", "--dsn", "postgres://u:p@db/lorekeep",
			"--index", "qdrant", "--qdrant-url", "http://qdrant:6333",
			"--redis-addr", "redis:6379",
			"--embedding-host", "https://api.example.com", "--embedding-model", "text-embedding-3-large",
			"--api-key", "sk-test", "--requests-per-second", "2.5",
			"--dimension", "3072", "--top-k", "6",
		)
		require.NoError(t, err)
		assert.Equal(t, "postgres", cfg.Store.Driver)
		assert.Equal(t, "postgres://u:p@db/lorekeep", cfg.Store.DSN)
		assert.Equal(t, lorekeep.IndexQdrant, cfg.Index.Backend)
		assert.Equal(t, "http://qdrant:6333", cfg.Index.QdrantURL)
		assert.Equal(t, "redis:6379", cfg.Cache.RedisAddr)
		assert.Equal(t, "https://api.example.com/v1", cfg.AI.EmbeddingHost)
		assert.Equal(t, "text-embedding-3-large", cfg.AI.EmbeddingModel)
		assert.Equal(t, "sk-test", cfg.AI.APIKey)
		assert.Equal(t, 2.5, cfg.AI.RequestsPerSecond)
		assert.Equal(t, 2, cfg.AI.BurstSize)
		assert.Equal(t, 3072, cfg.Dimension)
		assert.Equal(t, 6, cfg.TopK)
	})

	t.Run("sql store needs dsn", func(t *testing.T) {
		_, err := capture("--offline", "--store", "mysql")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("LOREKEEP_INDEX", "qdrant")
		t.Setenv("LOREKEEP_OFFLINE", "true")
		cfg, err := capture()
		require.NoError(t, err)
		assert.Equal(t, lorekeep.IndexQdrant, cfg.Index.Backend)
		assert.Nil(t, cfg.AI)
	})
}

func TestSourceCommands(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "add-text", "--tenant", "bot", "--label", "Hours",
		"We", "are", "open", "from", "nine", "to", "five.")
	require.NoError(t, err)
	fields := strings.Split(strings.TrimSpace(out), "\t")
	require.Len(t, fields, 3)
	sourceID := fields[0]
	assert.Equal(t, string(core.SourceStatusReady), fields[1])

	pages := []core.Page{{
		PageURL:  "https://acme.example/about",
		Title:    "About Acme",
		MainText: strings.Repeat("Acme builds solar inverters in small batches. ", 8),
	}}
	data, err := json.Marshal(pages)
	require.NoError(t, err)
	pagesFile := filepath.Join(dir, "pages.json")
	require.NoError(t, os.WriteFile(pagesFile, data, 0o600))

	out, err = run(t, dir, "ingest-pages", "--tenant", "bot", "--file", pagesFile)
	require.NoError(t, err)
	assert.Contains(t, out, "ingested 1, skipped 0, failed 0")
	assert.Contains(t, out, "System prompt:")

	out, err = run(t, dir, "list-sources", "--tenant", "bot")
	require.NoError(t, err)
	assert.Contains(t, out, sourceID)
	assert.Contains(t, out, "About Acme")
	assert.Contains(t, out, "https://acme.example/about")

	_, err = run(t, dir, "delete-source", "--tenant", "other", sourceID)
	assert.Error(t, err)

	out, err = run(t, dir, "delete-source", "--tenant", "bot", sourceID)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted "+sourceID)

	out, err = run(t, dir, "list-sources", "--tenant", "bot")
	require.NoError(t, err)
	assert.NotContains(t, out, sourceID)

	_, err = run(t, dir, "purge-tenant", "--tenant", "bot")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")

	out, err = run(t, dir, "purge-tenant", "--tenant", "bot", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "purged 1 sources")
}

func TestAddText_NeedsText(t *testing.T) {
	_, err := run(t, t.TempDir(), "add-text", "--tenant", "bot", "--label", "Empty")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text given")
}

func TestIngestPages_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "pages.json")
	require.NoError(t, os.WriteFile(file, []byte("{not json"), 0o600))

	_, err := run(t, dir, "ingest-pages", "--tenant", "bot", "--file", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pages file")
}

func TestRetrieveCommand(t *testing.T) {
	_, err := run(t, t.TempDir(), "retrieve", "--tenant", "bot")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "question is required")

	// the memory index of a fresh process is empty
	out, err := run(t, t.TempDir(), "retrieve", "--tenant", "bot", "--verbose", "what", "are", "your", "hours?")
	require.NoError(t, err)
	assert.Contains(t, out, "no matching chunks")
}

func TestSetupLogger(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", "DEBUG", "WaRn"} {
			t.Run(level, func(t *testing.T) {
				app := &cli.App{
					Name: "test",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:  "log-level",
							Value: "info",
						},
					},
					Before: setupLogger,
					Action: func(c *cli.Context) error {
						return nil
					},
				}

				err := app.Run([]string{"test", "--log-level", level})
				require.NoError(t, err)
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		app := &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "log-level",
					Value: "info",
				},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error {
				return nil
			},
		}

		err := app.Run([]string{"test", "--log-level", "invalid"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("log-level flag has alias -l", func(t *testing.T) {
		app := newApp()
		var level string
		app.Commands = []*cli.Command{{
			Name: "noop",
			Action: func(c *cli.Context) error {
				level = c.String("log-level")
				return nil
			},
		}}

		err := app.Run([]string{"lorekeep", "-l", "warn", "noop"})
		require.NoError(t, err)
		assert.Equal(t, "warn", level)
	})
}
