package ingestion

import (
	"context"
	"log/slog"

	"github.com/poiesic/lorekeep/enrich"
	"github.com/poiesic/lorekeep/workpool"
)

// enrichProcessor prefixes every chunk with a context summary.
type enrichProcessor struct {
	enricher       *enrich.Enricher
	maxConcurrency int
	logger         *slog.Logger
}

var _ processor = (*enrichProcessor)(nil)

func newEnrichProcessor(enricher *enrich.Enricher, maxConcurrency int, logger *slog.Logger) *enrichProcessor {
	return &enrichProcessor{
		enricher:       enricher,
		maxConcurrency: maxConcurrency,
		logger:         logger.With("processor", "enrich"),
	}
}

func (ep *enrichProcessor) name() string {
	return "enrich"
}

// process never fails on completion errors; the enricher falls back instead.
func (ep *enrichProcessor) process(ctx context.Context, j *job) error {
	ep.logger.Debug("enriching chunks", "source", j.source.ID, "chunks", len(j.chunks))

	enriched, err := workpool.Map(ctx, j.chunks, ep.maxConcurrency, func(ctx context.Context, _ int, chunk string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return ep.enricher.Enrich(ctx, j.title, chunk), nil
	})
	if err != nil {
		return err
	}
	j.enriched = enriched
	return nil
}
