package reembed

import (
	"context"
	"testing"

	"github.com/poiesic/lorekeep/ai/mock"
	"github.com/poiesic/lorekeep/embedding"
	"github.com/poiesic/lorekeep/ingestion"
	"github.com/poiesic/lorekeep/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The old model maps every text to the same vector, so nothing can be told
// apart. After re-embedding with the new model the question finds the chunk
// sharing its words.
func TestReembed_AfterModelChange(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	const dim = 256

	oldModel := mock.NewMockEmbedder().WithEmbedTextFunc(func(context.Context, string) ([]float32, error) {
		v := make([]float32, dim)
		v[0] = 1
		return v, nil
	})
	oldClient, err := embedding.New(oldModel, embedding.WithDimension(dim))
	require.NoError(t, err)
	pipeline, err := ingestion.NewPipeline(f.sources, f.records, f.index, oldClient)
	require.NoError(t, err)

	for _, doc := range []ingestion.Document{
		{TenantID: "bot", Label: "Returns", Body: "Returned parcels are refunded within five days."},
		{TenantID: "bot", Label: "Jobs", Body: "We hire remote engineers every spring."},
	} {
		_, err := pipeline.Ingest(ctx, doc)
		require.NoError(t, err)
	}

	newModel := mock.NewMockEmbedder().WithDimension(dim)
	newClient, err := embedding.New(newModel, embedding.WithDimension(dim))
	require.NoError(t, err)
	retriever, err := search.NewRetriever(f.index, newClient)
	require.NoError(t, err)

	const question = "when are returned parcels refunded"
	before, err := retriever.Search(ctx, "bot", question, 2)
	require.NoError(t, err)
	require.Len(t, before, 2)
	assert.Equal(t, before[0].Score, before[1].Score, "old vectors are indistinguishable")

	cfg := DefaultConfig()
	cfg.Dimension = dim
	r, err := NewReembedder(f.sources, f.records, f.checkpoints, f.index, newModel, cfg, nil)
	require.NoError(t, err)
	res, err := r.Run(ctx, "bot")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sources)
	assert.Equal(t, 2, res.Records)

	after, err := retriever.Search(ctx, "bot", question, 2)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Contains(t, after[0].Content, "refunded within five days")
	assert.Greater(t, after[0].Score, after[1].Score)
	assert.Equal(t, 2, f.index.Len(), "vectors are replaced in place")
}
