// Package embedding wraps an ai.Embedder with the guarantees the index needs:
// every vector has the same length, and an unavailable provider degrades to
// a deterministic digest-based vector instead of failing ingestion.
//
// Sub-package rediscache provides a Redis-backed Cache.
package embedding
