package embedding

import (
	"context"
	"errors"
)

// ErrCacheMiss is returned by Cache.Get when no vector is stored under a key.
var ErrCacheMiss = errors.New("embedding cache miss")

// Cache stores provider vectors by key. Implementations must be safe for
// concurrent use. Errors are treated as misses by Client.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, error)
	Set(ctx context.Context, key string, vector []float32) error
}
