package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/lorekeep/chunking"
	"github.com/poiesic/lorekeep/core"
	"github.com/poiesic/lorekeep/embedding"
	"github.com/poiesic/lorekeep/storage"
	"github.com/poiesic/lorekeep/vectorindex"
	"github.com/poiesic/lorekeep/workpool"
)

// embeddingProcessor embeds enriched chunks, stores their vectors and writes
// one embedding record per chunk.
type embeddingProcessor struct {
	records        storage.EmbeddingRepository
	index          vectorindex.Index
	embedder       *embedding.Client
	maxConcurrency int
	logger         *slog.Logger
}

var _ processor = (*embeddingProcessor)(nil)

func newEmbeddingProcessor(records storage.EmbeddingRepository, index vectorindex.Index, embedder *embedding.Client, maxConcurrency int, logger *slog.Logger) *embeddingProcessor {
	return &embeddingProcessor{
		records:        records,
		index:          index,
		embedder:       embedder,
		maxConcurrency: maxConcurrency,
		logger:         logger.With("processor", "embeddings"),
	}
}

func (ep *embeddingProcessor) name() string {
	return "embed"
}

// process writes the vector before its record. A failure part way leaves
// both for the pipeline's rollback to remove.
func (ep *embeddingProcessor) process(ctx context.Context, j *job) error {
	if len(j.enriched) != len(j.chunks) {
		return fmt.Errorf("enrichment result mismatch. expected %d, received %d", len(j.chunks), len(j.enriched))
	}
	ep.logger.Debug("embedding chunks", "source", j.source.ID, "chunks", len(j.enriched))

	records, err := workpool.Map(ctx, j.enriched, ep.maxConcurrency, func(ctx context.Context, i int, text string) (*core.EmbeddingRecord, error) {
		vector, err := ep.embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}

		md := vectorindex.Metadata{
			TenantID:          j.source.TenantID,
			KnowledgeSourceID: j.source.ID,
			ChunkIndex:        i,
			Label:             j.source.Label,
		}
		vectorID, err := ep.index.Upsert(ctx, core.NewID(), vector, md, text)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}

		record := &core.EmbeddingRecord{
			KnowledgeSourceID: j.source.ID,
			VectorID:          vectorID,
			ChunkIndex:        i,
			Content:           text,
			TokenCount:        chunking.EstimateTokens(text),
		}
		if _, err := ep.records.AddEmbeddingRecords(ctx, record); err != nil {
			return nil, fmt.Errorf("chunk %d: storing record: %w", i, err)
		}
		return record, nil
	})
	if err != nil {
		return err
	}
	j.records = records
	return nil
}
