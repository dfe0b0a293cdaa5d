package reembed

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/lorekeep/core"
	"github.com/poiesic/lorekeep/storage/badger"
	"github.com/poiesic/lorekeep/vectorindex"
	"github.com/poiesic/lorekeep/vectorindex/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	sources     *badger.SourceRepository
	records     *badger.EmbeddingRepository
	checkpoints *badger.CheckpointRepository
	index       *memory.Index
}

func setupTestDB(t *testing.T) *fixture {
	t.Helper()
	sources, records, checkpoints, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	return &fixture{sources: sources, records: records, checkpoints: checkpoints, index: memory.New()}
}

// addSource stores a source with n records whose vectors are already indexed
// as [0, 1, 0].
func (f *fixture) addSource(t *testing.T, tenantID, id string, status core.SourceStatus, n int) *core.KnowledgeSource {
	t.Helper()
	ctx := context.Background()

	source, err := f.sources.CreateSource(ctx, &core.KnowledgeSource{
		ID: id, TenantID: tenantID, Label: "Label " + id, Kind: core.SourceKindText, Status: status,
	})
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		vectorID := fmt.Sprintf("%s-v%d", id, i)
		content := fmt.Sprintf("chunk %d of %s", i, id)
		_, err := f.index.Upsert(ctx, vectorID, []float32{0, 1, 0}, vectorindex.Metadata{
			TenantID: tenantID, KnowledgeSourceID: id, ChunkIndex: i, Label: source.Label,
		}, content)
		require.NoError(t, err)
		_, err = f.records.AddEmbeddingRecords(ctx, &core.EmbeddingRecord{
			KnowledgeSourceID: id, VectorID: vectorID, ChunkIndex: i, Content: content,
		})
		require.NoError(t, err)
	}
	return source
}

func TestSourceIterator_Sources(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()

	f.addSource(t, "bot", "c", core.SourceStatusReady, 1)
	f.addSource(t, "bot", "a", core.SourceStatusReady, 1)
	f.addSource(t, "bot", "b", core.SourceStatusFailed, 0)
	f.addSource(t, "bot", "d", core.SourceStatusPending, 0)
	f.addSource(t, "other", "e", core.SourceStatusReady, 1)

	it := NewSourceIterator(f.sources, f.records, 0)
	assert.Equal(t, DefaultBatchSize, it.batchSize)

	t.Run("ready sources in id order", func(t *testing.T) {
		got, err := it.Sources(ctx, "bot", "")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "a", got[0].ID)
		assert.Equal(t, "c", got[1].ID)
	})

	t.Run("after id", func(t *testing.T) {
		got, err := it.Sources(ctx, "bot", "a")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "c", got[0].ID)
	})

	t.Run("unknown tenant", func(t *testing.T) {
		got, err := it.Sources(ctx, "nobody", "")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestSourceIterator_ForEachBatch(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	source := f.addSource(t, "bot", "s1", core.SourceStatusReady, 5)

	t.Run("batches in chunk order", func(t *testing.T) {
		it := NewSourceIterator(f.sources, f.records, 2)
		var sizes, chunks []int
		err := it.ForEachBatch(ctx, source, func(records []*core.EmbeddingRecord) error {
			sizes = append(sizes, len(records))
			for _, r := range records {
				chunks = append(chunks, r.ChunkIndex)
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []int{2, 2, 1}, sizes)
		assert.Equal(t, []int{0, 1, 2, 3, 4}, chunks)
	})

	t.Run("stops on error", func(t *testing.T) {
		it := NewSourceIterator(f.sources, f.records, 2)
		calls := 0
		boom := errors.New("boom")
		err := it.ForEachBatch(ctx, source, func([]*core.EmbeddingRecord) error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("canceled context", func(t *testing.T) {
		it := NewSourceIterator(f.sources, f.records, 2)
		cctx, cancel := context.WithCancel(ctx)
		calls := 0
		err := it.ForEachBatch(cctx, source, func([]*core.EmbeddingRecord) error {
			calls++
			cancel()
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})

	t.Run("source without records", func(t *testing.T) {
		empty := f.addSource(t, "bot", "s2", core.SourceStatusReady, 0)
		it := NewSourceIterator(f.sources, f.records, 2)
		calls := 0
		require.NoError(t, it.ForEachBatch(ctx, empty, func([]*core.EmbeddingRecord) error {
			calls++
			return nil
		}))
		assert.Zero(t, calls)
	})
}
