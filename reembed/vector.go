package reembed

import (
	"context"

	"github.com/poiesic/lorekeep/embedding"
)

// VectorStore shapes a provider vector into what the index stores.
// *embedding.Client implements it and refreshes its cache on the way.
type VectorStore interface {
	Store(ctx context.Context, text string, vec []float32) []float32
}

var _ VectorStore = (*embedding.Client)(nil)

// paddingStore pads or truncates vectors to its length, the same shaping
// ingestion applies, without caching.
type paddingStore int

func (d paddingStore) Store(_ context.Context, _ string, vec []float32) []float32 {
	return embedding.Normalize(vec, int(d))
}
