package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/lorekeep/ai"
	"github.com/poiesic/lorekeep/core"
	"github.com/poiesic/lorekeep/vectorindex"
)

// BatchProcessor re-embeds batches of records and writes the vectors back to
// the index under the records' vector ids.
type BatchProcessor struct {
	index          vectorindex.Index
	embedder       ai.Embedder
	store          VectorStore
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// dimension: length of the stored vectors
// maxRetries: maximum number of attempts for every provider and index call
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(index vectorindex.Index, embedder ai.Embedder, dimension, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		index:          index,
		embedder:       embedder,
		store:          paddingStore(dimension),
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// WithStore makes the processor shape vectors through s. A nil s keeps
// plain padding to the configured dimension.
func (bp *BatchProcessor) WithStore(s VectorStore) *BatchProcessor {
	if s != nil {
		bp.store = s
	}
	return bp
}

// Process embeds the records' contents in one request and upserts each new
// vector with the source's metadata.
func (bp *BatchProcessor) Process(ctx context.Context, source *core.KnowledgeSource, records []*core.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}

	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = record.Content
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func(ctx context.Context) error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(records) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(records), len(embeddings))
	}

	for i, record := range records {
		if len(embeddings[i]) == 0 {
			return fmt.Errorf("empty embedding for record %s", record.ID)
		}
		vec := bp.store.Store(ctx, record.Content, embeddings[i])
		md := vectorindex.Metadata{
			TenantID:          source.TenantID,
			KnowledgeSourceID: source.ID,
			ChunkIndex:        record.ChunkIndex,
			Label:             source.Label,
		}
		err := RetryWithBackoff(ctx, func(ctx context.Context) error {
			_, err := bp.index.Upsert(ctx, record.VectorID, vec, md, record.Content)
			return err
		}, bp.maxRetries, bp.retryBaseDelay)
		if err != nil {
			return fmt.Errorf("failed to upsert vector %s: %w", record.VectorID, err)
		}
	}

	return nil
}
