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


package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/lorekeep/reembed"
	"github.com/urfave/cli/v2"
)

// version is set at build time.
var version = "dev"

func main() {
	// flags read their EnvVars while parsing, so .env must be loaded first;
	// a missing file is fine
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func tenantFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "tenant",
		Aliases:  []string{"t"},
		Usage:    "Tenant (chatbot) id",
		EnvVars:  []string{"LOREKEEP_TENANT"},
		Required: true,
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "lorekeep",
		Usage: "Multi-tenant knowledge store for retrieval-augmented chatbots",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"LOREKEEP_LOG_LEVEL"},
			},
		}, engineFlags()...),
		Version:  version,
		Before:   setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Usage:   "Listen address",
						Value:   ":8080",
						EnvVars: []string{"LOREKEEP_ADDR"},
					},
					&cli.StringSliceFlag{
						Name:    "cors-origin",
						Usage:   "Allowed CORS origin (repeatable, default any)",
						EnvVars: []string{"LOREKEEP_CORS_ORIGINS"},
					},
				},
			},
			{
				Name:      "add-text",
				Usage:     "Add free text as a knowledge source",
				ArgsUsage: "[text]",
				Action:    addTextCommand,
				Flags: []cli.Flag{
					tenantFlag(),
					&cli.StringFlag{
						Name:     "label",
						Usage:    "Source label",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Read the text from a file (- for stdin)",
					},
				},
			},
			{
				Name:   "ingest-pages",
				Usage:  "Ingest crawled pages from a JSON array",
				Action: ingestPagesCommand,
				Flags: []cli.Flag{
					tenantFlag(),
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "JSON file with the pages (- for stdin)",
						Required: true,
					},
				},
			},
			{
				Name:   "list-sources",
				Usage:  "List a tenant's knowledge sources",
				Action: listSourcesCommand,
				Flags:  []cli.Flag{tenantFlag()},
			},
			{
				Name:      "delete-source",
				Usage:     "Delete a knowledge source with its chunks",
				ArgsUsage: "<source-id>",
				Action:    deleteSourceCommand,
				Flags:     []cli.Flag{tenantFlag()},
			},
			{
				Name:      "retrieve",
				Usage:     "Print the chunks closest to a question",
				ArgsUsage: "<question>",
				Action:    retrieveCommand,
				Flags: []cli.Flag{
					tenantFlag(),
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Number of chunks (default --top-k)",
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Trace every retrieval step",
					},
				},
			},
			{
				Name:   "purge-tenant",
				Usage:  "Delete every source and vector of a tenant",
				Action: purgeTenantCommand,
				Flags: []cli.Flag{
					tenantFlag(),
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Confirm the purge",
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Recompute every vector of a tenant with the configured embedding model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					tenantFlag(),
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records to embed per request",
						Value: reembed.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
