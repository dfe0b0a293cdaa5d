package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/lorekeep/api"
	"github.com/poiesic/lorekeep/core"
	"github.com/poiesic/lorekeep/reembed"
	"github.com/poiesic/lorekeep/search"
	"github.com/urfave/cli/v2"
)

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := openEngine(c)
	if err != nil {
		return err
	}
	defer eng.Close()

	gin.SetMode(gin.ReleaseMode)
	srv, err := api.New(eng, api.WithAllowedOrigins(c.StringSlice("cors-origin")...))
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx, c.String("addr"))
}

func addTextCommand(c *cli.Context) error {
	content, err := readInput(c)
	if err != nil {
		return err
	}

	eng, err := openEngine(c)
	if err != nil {
		return err
	}
	defer eng.Close()

	source, err := eng.AddTextSource(c.Context, c.String("tenant"), c.String("label"), content)
	if err != nil {
		return fmt.Errorf("adding text failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\n", source.ID, source.Status, source.Label)
	return nil
}

func ingestPagesCommand(c *cli.Context) error {
	data, err := readFile(c.String("file"), c.App.Reader)
	if err != nil {
		return err
	}
	var pages []core.Page
	if err := json.Unmarshal(data, &pages); err != nil {
		return fmt.Errorf("invalid pages file: %w", err)
	}

	eng, err := openEngine(c)
	if err != nil {
		return err
	}
	defer eng.Close()

	res, err := eng.IngestPages(c.Context, c.String("tenant"), pages)
	if res != nil && res.PagesResult != nil {
		w := c.App.Writer
		for _, source := range res.Sources {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", source.ID, source.Kind, source.Status, source.Label)
		}
		for _, f := range res.Failures {
			fmt.Fprintf(c.App.ErrWriter, "failed: %s: %s\n", f.URI, f.Error)
		}
		fmt.Fprintf(w, "ingested %d, skipped %d, failed %d\n", len(res.Sources), res.Skipped, len(res.Failures))
		if res.SystemPrompt != "" {
			fmt.Fprintf(w, "\nSystem prompt:\n%s\n", res.SystemPrompt)
		}
	}
	if err != nil {
		return fmt.Errorf("ingesting pages failed: %w", err)
	}
	return nil
}

func listSourcesCommand(c *cli.Context) error {
	eng, err := openEngine(c)
	if err != nil {
		return err
	}
	defer eng.Close()

	sources, err := eng.ListSources(c.Context, c.String("tenant"))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTATUS\tCHUNKS\tLABEL\tURI")
	for _, s := range sources {
		uri := ""
		if s.HasURI() {
			uri = *s.URI
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", s.ID, s.Kind, s.Status, s.EmbeddingCount, s.Label, uri)
	}
	return tw.Flush()
}

func deleteSourceCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one source id is required")
	}

	eng, err := openEngine(c)
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.DeleteSource(c.Context, c.String("tenant"), c.Args().First()); err != nil {
		return fmt.Errorf("deleting source failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "deleted %s\n", c.Args().First())
	return nil
}

func retrieveCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return errors.New("a question is required")
	}

	eng, err := openEngine(c)
	if err != nil {
		return err
	}
	defer eng.Close()

	var monitor search.SearchMonitor
	if c.Bool("verbose") {
		monitor = newTraceMonitor(c.App.ErrWriter)
	}
	matches, err := eng.Search(c.Context, c.String("tenant"), question, c.Int("top-k"), monitor)
	if err != nil {
		return err
	}

	if len(matches) == 0 {
		fmt.Fprintln(c.App.Writer, "no matching chunks")
		return nil
	}
	for i, m := range matches {
		fmt.Fprintf(c.App.Writer, "%d: [%0.3f] %s #%d\n%s\n\n", i, m.Score, m.Metadata.Label, m.Metadata.ChunkIndex, m.Content)
	}
	return nil
}

func purgeTenantCommand(c *cli.Context) error {
	if !c.Bool("yes") {
		return fmt.Errorf("refusing to purge tenant %q without --yes", c.String("tenant"))
	}

	eng, err := openEngine(c)
	if err != nil {
		return err
	}
	defer eng.Close()

	n, err := eng.PurgeTenant(c.Context, c.String("tenant"))
	if err != nil {
		return fmt.Errorf("purge failed after %d sources: %w", n, err)
	}
	fmt.Fprintf(c.App.Writer, "purged %d sources\n", n)
	return nil
}

func reembedCommand(c *cli.Context) error {
	config := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := openEngine(c)
	if err != nil {
		return err
	}
	defer eng.Close()

	w := c.App.ErrWriter
	fmt.Fprintf(w, "Tenant: %s\n", c.String("tenant"))
	fmt.Fprintf(w, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(w, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(w)

	res, err := eng.Reembed(ctx, c.String("tenant"), config, w)
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "re-embedded %d records of %d sources in %s\n", res.Records, res.Sources, res.Elapsed)
	return nil
}

// readInput returns the text of add-text from --file or the arguments.
func readInput(c *cli.Context) (string, error) {
	if path := c.String("file"); path != "" {
		data, err := readFile(path, c.App.Reader)
		return string(data), err
	}
	text := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(text) == "" {
		return "", errors.New("no text given; pass it as arguments or with --file")
	}
	return text, nil
}

func readFile(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

