package mock

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func TestBagOfWords(t *testing.T) {
	q := BagOfWords("What is the secret phrase?", 256)
	hit := BagOfWords("The secret phrase is pipeline works great.", 256)
	miss := BagOfWords("Opening hours are nine to five on weekdays.", 256)

	assert.Len(t, q, 256)
	assert.Greater(t, dot(q, hit), dot(q, miss))
	assert.InDelta(t, 1.0, dot(hit, hit), 1e-5)
	assert.Equal(t, make([]float32, 8), BagOfWords("  ", 8))
}

func TestMockEmbedder(t *testing.T) {
	ctx := context.Background()
	m := NewMockEmbedder()

	v, err := m.EmbedText(ctx, "hello")
	require.NoError(t, err)
	assert.Len(t, v, DefaultDimension)

	vs, err := m.EmbedTexts(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vs, 2)
	assert.Equal(t, 2, m.CallCount())

	boom := errors.New("boom")
	m.WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) { return nil, boom })
	_, err = m.EmbedText(ctx, "x")
	assert.ErrorIs(t, err, boom)

	m.Reset()
	assert.Zero(t, m.CallCount())
	v, err = m.WithDimension(16).EmbedText(ctx, "x")
	require.NoError(t, err)
	assert.Len(t, v, 16)
}

func TestMockEmbedder_Concurrent(t *testing.T) {
	m := NewMockEmbedder()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.EmbedText(context.Background(), "text")
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, m.CallCount())
}

func TestMockCompleter(t *testing.T) {
	ctx := context.Background()
	c := NewMockCompleter()

	out, err := c.Complete(ctx, "system", "First sentence. Second sentence.")
	require.NoError(t, err)
	assert.Equal(t, "Summary: First sentence", out)
	assert.Equal(t, []string{"First sentence. Second sentence."}, c.Prompts())

	c.WithCompleteFunc(func(ctx context.Context, system, user string) (string, error) { return "fixed", nil })
	out, err = c.Complete(ctx, "s", "u")
	require.NoError(t, err)
	assert.Equal(t, "fixed", out)
	assert.Equal(t, 2, c.CallCount())
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider().(*MockProvider)
	assert.Same(t, p.GetMockEmbedder(), p.Embedder())
	assert.Same(t, p.GetMockCompleter(), p.Completer())
	assert.NoError(t, p.Close())
}
