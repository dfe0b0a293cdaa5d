package reembed

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/lorekeep/core"
	"github.com/poiesic/lorekeep/vectorindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEmbedder for testing
type mockEmbedder struct {
	mu             sync.Mutex
	calls          int
	batches        [][]string
	embedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *mockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	out, err := m.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (m *mockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.batches = append(m.batches, texts)
	fn := m.embedTextsFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, texts)
	}
	// Default: return unnormalized vectors for each text
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{1.0, 2.0, 2.0} // magnitude = 3.0
	}
	return result, nil
}

func (m *mockEmbedder) recordsSeen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

type flakyUpsertIndex struct {
	vectorindex.Index
	failures int
}

func (f *flakyUpsertIndex) Upsert(ctx context.Context, id string, v []float32, md vectorindex.Metadata, content string) (string, error) {
	if f.failures > 0 {
		f.failures--
		return "", core.NewProviderError("test", "upsert", errors.New("busy"))
	}
	return f.Index.Upsert(ctx, id, v, md, content)
}

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestBatchProcessor_Process(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	source := f.addSource(t, "bot", "s1", core.SourceStatusReady, 3)
	records, err := f.records.GetEmbeddingRecords(ctx, source.ID)
	require.NoError(t, err)

	embedder := &mockEmbedder{}
	processor := NewBatchProcessor(f.index, embedder, 4, 3, time.Millisecond)
	require.NoError(t, processor.Process(ctx, source, records))

	assert.Equal(t, 1, embedder.calls, "one provider request per batch")
	assert.Equal(t, 3, f.index.Len(), "vectors are replaced, not added")

	matches, err := f.index.Search(ctx, "bot", []float32{1, 2, 2, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	for _, m := range matches {
		assert.InDelta(t, 1.0, m.Score, 1e-5, "every vector must be the new one")
		assert.Equal(t, "s1", m.Metadata.KnowledgeSourceID)
		assert.Equal(t, "Label s1", m.Metadata.Label)
		assert.Contains(t, m.Content, "of s1")
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ID)
	}
	for _, r := range records {
		assert.Contains(t, ids, r.VectorID)
	}
}

func TestBatchProcessor_EmptyBatch(t *testing.T) {
	f := setupTestDB(t)
	embedder := &mockEmbedder{}
	processor := NewBatchProcessor(f.index, embedder, 4, 3, time.Millisecond)

	require.NoError(t, processor.Process(context.Background(), &core.KnowledgeSource{ID: "x"}, nil))
	assert.Zero(t, embedder.calls)
}

func TestBatchProcessor_RetriesProvider(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	source := f.addSource(t, "bot", "s1", core.SourceStatusReady, 2)
	records, err := f.records.GetEmbeddingRecords(ctx, source.ID)
	require.NoError(t, err)

	attempts := 0
	embedder := &mockEmbedder{embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("rate limited")
		}
		return [][]float32{{1, 0}, {0, 1}}, nil
	}}
	processor := NewBatchProcessor(f.index, embedder, 2, 3, time.Millisecond)

	require.NoError(t, processor.Process(ctx, source, records))
	assert.Equal(t, 3, attempts)
}

func TestBatchProcessor_ProviderGivesUp(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	source := f.addSource(t, "bot", "s1", core.SourceStatusReady, 1)
	records, err := f.records.GetEmbeddingRecords(ctx, source.ID)
	require.NoError(t, err)

	embedder := &mockEmbedder{embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("down")
	}}
	processor := NewBatchProcessor(f.index, embedder, 2, 2, time.Millisecond)

	err = processor.Process(ctx, source, records)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, 2, embedder.calls)
}

func TestBatchProcessor_CountMismatch(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	source := f.addSource(t, "bot", "s1", core.SourceStatusReady, 2)
	records, err := f.records.GetEmbeddingRecords(ctx, source.ID)
	require.NoError(t, err)

	embedder := &mockEmbedder{embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 0}}, nil
	}}
	processor := NewBatchProcessor(f.index, embedder, 2, 1, time.Millisecond)

	err = processor.Process(ctx, source, records)
	assert.ErrorContains(t, err, "embedding count mismatch")
}

func TestBatchProcessor_RetriesUpsert(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	source := f.addSource(t, "bot", "s1", core.SourceStatusReady, 1)
	records, err := f.records.GetEmbeddingRecords(ctx, source.ID)
	require.NoError(t, err)

	index := &flakyUpsertIndex{Index: f.index, failures: 2}
	processor := NewBatchProcessor(index, &mockEmbedder{}, 3, 3, time.Millisecond)
	require.NoError(t, processor.Process(ctx, source, records))
	assert.Zero(t, index.failures)

	index.failures = 5
	err = processor.Process(ctx, source, records)
	assert.ErrorIs(t, err, core.ErrProvider)
}
