// Package rediscache stores embedding vectors in Redis.
package rediscache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/poiesic/lorekeep/embedding"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL bounds how long a vector stays cached.
	DefaultTTL = 24 * time.Hour
	// DefaultTimeout bounds every Redis round trip.
	DefaultTimeout = 300 * time.Millisecond

	keyPrefix = "lorekeep:emb:"
)

var errCorruptVector = errors.New("rediscache: stored vector has invalid length")

// Cache implements embedding.Cache on a go-redis client.
type Cache struct {
	client  redis.UniversalClient
	ttl     time.Duration
	timeout time.Duration
}

var _ embedding.Cache = (*Cache)(nil)

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the expiry of cached vectors.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithTimeout sets the per-operation timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New wraps an existing client.
func New(client redis.UniversalClient, opts ...Option) *Cache {
	c := &Cache{client: client, ttl: DefaultTTL, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials addr and pings it before returning.
func Connect(ctx context.Context, addr, password string, db int, opts ...Option) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("rediscache: ping redis %s failed: %w", addr, err)
	}
	return New(client, opts...), nil
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Get returns the vector stored under key or embedding.ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, key string) ([]float32, error) {
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, embedding.ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return decodeVector(data)
}

// Set stores vector under key with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, vector []float32) error {
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	return c.client.Set(ctx, keyPrefix+key, encodeVector(vector), c.ttl).Err()
}

func (c *Cache) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= c.timeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// encodeVector packs float32 components little-endian.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, errCorruptVector
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v, nil
}
