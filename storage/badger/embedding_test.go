package badger

import (
	"context"
	"testing"

	"github.com/poiesic/lorekeep/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingRecords(t *testing.T) {
	_, records, _ := newTestRepos(t)
	ctx := context.Background()

	// inserted out of order on purpose
	added, err := records.AddEmbeddingRecords(ctx,
		&core.EmbeddingRecord{KnowledgeSourceID: "s1", VectorID: "v2", ChunkIndex: 2, Content: "c2"},
		&core.EmbeddingRecord{KnowledgeSourceID: "s1", VectorID: "v0", ChunkIndex: 0, Content: "c0"},
		&core.EmbeddingRecord{KnowledgeSourceID: "s1", VectorID: "v10", ChunkIndex: 10, Content: "c10"},
		&core.EmbeddingRecord{KnowledgeSourceID: "s10", VectorID: "other", ChunkIndex: 0, Content: "x"},
	)
	require.NoError(t, err)
	for _, rec := range added {
		assert.NotEmpty(t, rec.ID)
		assert.False(t, rec.CreatedAt.IsZero())
	}

	t.Run("ordered by chunk index", func(t *testing.T) {
		got, err := records.GetEmbeddingRecords(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []int{0, 2, 10}, []int{got[0].ChunkIndex, got[1].ChunkIndex, got[2].ChunkIndex})
		assert.Equal(t, "c0", got[0].Content)
	})

	t.Run("vector ids", func(t *testing.T) {
		ids, err := records.VectorIDsForSource(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, []string{"v0", "v2", "v10"}, ids)
	})

	t.Run("count", func(t *testing.T) {
		n, err := records.CountEmbeddingRecords(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		n, err = records.CountEmbeddingRecords(ctx, "missing")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("delete leaves other sources", func(t *testing.T) {
		removed, err := records.DeleteEmbeddingRecords(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 3, removed)

		got, err := records.GetEmbeddingRecords(ctx, "s1")
		require.NoError(t, err)
		assert.Empty(t, got)

		n, err := records.CountEmbeddingRecords(ctx, "s10")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		removed, err = records.DeleteEmbeddingRecords(ctx, "s1")
		require.NoError(t, err)
		assert.Zero(t, removed)
	})
}

func TestAddEmbeddingRecords_Empty(t *testing.T) {
	_, records, _ := newTestRepos(t)
	got, err := records.AddEmbeddingRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}
