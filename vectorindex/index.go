// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package vectorindex defines the tenant-partitioned vector index used for
// retrieval, plus helpers shared by its backends.
//
// Backends:
//   - vectorindex/memory: in-process map with a full cosine scan
//   - vectorindex/qdrant: remote Qdrant, one collection per tenant
package vectorindex

import (
	"context"
	"errors"
	"math"
	"sort"
)

var (
	// ErrTenantRequired is returned when an entry or query has no tenant.
	ErrTenantRequired = errors.New("vector index: tenant id is required")

	// ErrEmptyVector is returned when upserting a vector with no components.
	ErrEmptyVector = errors.New("vector index: vector is empty")
)

// Metadata is stored alongside every vector.
type Metadata struct {
	TenantID          string `json:"tenantId"`
	KnowledgeSourceID string `json:"knowledgeSourceId"`
	ChunkIndex        int    `json:"chunkIndex"`
	Label             string `json:"label"`
}

// Match is one search hit.
type Match struct {
	ID       string
	Score    float32
	Metadata Metadata
	Content  string
}

// Index stores vectors partitioned by tenant.
//
// Search never returns entries belonging to a tenant other than the one
// queried. Delete operations are best-effort in remote backends: failures
// are logged and swallowed.
type Index interface {
	// Upsert stores vector under vectorID, generating an id when vectorID is
	// empty, and returns the id used.
	Upsert(ctx context.Context, vectorID string, vector []float32, md Metadata, content string) (string, error)

	// Search returns at most topK entries of tenantID ordered by descending score.
	Search(ctx context.Context, tenantID string, vector []float32, topK int) ([]Match, error)

	// DeleteBySource removes every entry of one knowledge source.
	DeleteBySource(ctx context.Context, tenantID, sourceID string) error

	// DeleteByTenant removes every entry of a tenant.
	DeleteByTenant(ctx context.Context, tenantID string) error

	// Close releases backend resources.
	Close() error
}

// VectorIDLister enumerates the vector ids recorded for a knowledge source.
// Backends that cannot filter by source use it to find what to delete.
type VectorIDLister interface {
	VectorIDsForSource(ctx context.Context, sourceID string) ([]string, error)
}

// CosineSimilarity compares the overlapping prefix of a and b. It returns 0
// when either prefix has zero magnitude.
func CosineSimilarity(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(magA) * math.Sqrt(magB)))
}

// SortAndLimit orders matches by descending score, breaking ties by id,
// and keeps the first topK.
func SortAndLimit(matches []Match, topK int) []Match {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})
	if topK >= 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}
