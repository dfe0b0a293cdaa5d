package search

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/poiesic/lorekeep/ai/mock"
	"github.com/poiesic/lorekeep/core"
	"github.com/poiesic/lorekeep/embedding"
	"github.com/poiesic/lorekeep/vectorindex"
	"github.com/poiesic/lorekeep/vectorindex/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingIndex struct {
	*memory.Index
}

func (f failingIndex) Search(context.Context, string, []float32, int) ([]vectorindex.Match, error) {
	return nil, errors.New("index offline")
}

type recordingMonitor struct {
	steps   []string
	dim     int
	dropped int
	final   []vectorindex.Match
}

func (m *recordingMonitor) Start(_, _ string)  { m.steps = append(m.steps, "start") }
func (m *recordingMonitor) AfterEmbedding(d int) {
	m.steps = append(m.steps, "embed")
	m.dim = d
}
func (m *recordingMonitor) AfterIndexSearch(_ []vectorindex.Match) {
	m.steps = append(m.steps, "search")
}
func (m *recordingMonitor) BelowMinScore(_ vectorindex.Match) { m.dropped++ }
func (m *recordingMonitor) Finish(matches []vectorindex.Match) {
	m.steps = append(m.steps, "finish")
	m.final = matches
}

func newClient(t *testing.T) *embedding.Client {
	t.Helper()
	c, err := embedding.New(mock.NewMockEmbedder().WithDimension(64), embedding.WithDimension(64))
	require.NoError(t, err)
	return c
}

func seed(t *testing.T, index vectorindex.Index, client *embedding.Client, tenant string, chunks ...string) {
	t.Helper()
	ctx := context.Background()
	for i, chunk := range chunks {
		vec, err := client.Embed(ctx, chunk)
		require.NoError(t, err)
		_, err = index.Upsert(ctx, "", vec, vectorindex.Metadata{
			TenantID: tenant, KnowledgeSourceID: "src-" + tenant, ChunkIndex: i, Label: "Doc",
		}, chunk)
		require.NoError(t, err)
	}
}

func TestNewRetriever(t *testing.T) {
	client := newClient(t)
	index := memory.New()

	t.Run("valid configuration", func(t *testing.T) {
		r, err := NewRetriever(index, client, WithLogger(slog.Default()), WithMinScore(0.2))
		require.NoError(t, err)
		assert.Equal(t, float32(0.2), r.minScore)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		r, err := NewRetriever(index, client, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, r.logger)
	})

	t.Run("nil index", func(t *testing.T) {
		_, err := NewRetriever(nil, client)
		assert.Equal(t, ErrIndexRequired, err)
	})

	t.Run("nil embedding client", func(t *testing.T) {
		_, err := NewRetriever(index, nil)
		assert.Equal(t, ErrEmbeddingClientRequired, err)
	})
}

func TestRetrieve(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)
	index := memory.New()
	seed(t, index, client, "bot",
		"[Context: shipping]\n\nWe ship to every country in the European Union within three days.",
		"[Context: refunds]\n\nRefunds are issued to the original payment method.",
		"[Context: support]\n\nSupport is available by email around the clock.",
		"[Context: careers]\n\nWe are hiring backend engineers.",
		"[Context: office]\n\nOur office is in Lisbon.",
	)
	seed(t, index, client, "other", "Refunds are issued to the original payment method.")

	r, err := NewRetriever(index, client)
	require.NoError(t, err)

	t.Run("best match first", func(t *testing.T) {
		got, err := r.Retrieve(ctx, "bot", "how are refunds issued to the payment method", 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Contains(t, got[0], "Refunds are issued")
	})

	t.Run("default top k", func(t *testing.T) {
		got, err := r.Retrieve(ctx, "bot", "shipping", 0)
		require.NoError(t, err)
		assert.Len(t, got, DefaultTopK)
	})

	t.Run("scores descend", func(t *testing.T) {
		matches, err := r.Search(ctx, "bot", "support email", 10)
		require.NoError(t, err)
		require.Len(t, matches, 5)
		for i := 1; i < len(matches); i++ {
			assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
		}
	})

	t.Run("never crosses tenants", func(t *testing.T) {
		matches, err := r.Search(ctx, "other", "refunds", 10)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "other", matches[0].Metadata.TenantID)
	})

	t.Run("unknown tenant is empty", func(t *testing.T) {
		got, err := r.Retrieve(ctx, "nobody", "refunds", 3)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("blank question", func(t *testing.T) {
		_, err := r.Retrieve(ctx, "bot", "   ", 3)
		assert.ErrorIs(t, err, core.ErrEmptyInput)
	})

	t.Run("missing tenant", func(t *testing.T) {
		_, err := r.Retrieve(ctx, "", "refunds", 3)
		assert.ErrorIs(t, err, core.ErrTenantRequired)
	})
}

func TestSearchWithMonitor(t *testing.T) {
	ctx := context.Background()
	client := newClient(t)
	index := memory.New()
	seed(t, index, client, "bot", "alpha beta gamma", "delta epsilon zeta")

	r, err := NewRetriever(index, client, WithMinScore(0.5))
	require.NoError(t, err)

	mon := &recordingMonitor{}
	matches, err := r.SearchWithMonitor(ctx, "bot", "alpha beta gamma", 5, mon)
	require.NoError(t, err)

	assert.Equal(t, []string{"start", "embed", "search", "finish"}, mon.steps)
	assert.Equal(t, 64, mon.dim)
	require.Len(t, matches, 1)
	assert.Equal(t, "alpha beta gamma", matches[0].Content)
	assert.Equal(t, 1, mon.dropped)
	assert.Equal(t, matches, mon.final)
}

func TestRetrieve_IndexFailure(t *testing.T) {
	r, err := NewRetriever(failingIndex{memory.New()}, newClient(t))
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), "bot", "anything", 3)
	assert.EqualError(t, err, "index offline")
}

func TestRetrieve_OfflineEmbedderStillMatchesExactText(t *testing.T) {
	ctx := context.Background()
	client, err := embedding.New(nil, embedding.WithDimension(32))
	require.NoError(t, err)
	index := memory.New()
	seed(t, index, client, "bot", "opening hours", "parking information")

	r, err := NewRetriever(index, client)
	require.NoError(t, err)
	got, err := r.Retrieve(ctx, "bot", "opening hours", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "opening hours", got[0])
}
