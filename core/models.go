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

package core

import (
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// NewID returns a fresh random identifier for sources, records and vectors.
func NewID() string {
	return uuid.NewString()
}

// ContentKey returns a deterministic hex key for text content using BLAKE2b.
// Identical content always yields the same key.
func ContentKey(text string) string {
	h, _ := blake2b.New(16, nil) // 16 bytes = 128 bits
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// SourceKind identifies where a knowledge source came from.
type SourceKind string

const (
	// SourceKindURL is a crawled web page.
	SourceKindURL SourceKind = "URL"
	// SourceKindText is free text supplied directly by a user.
	SourceKindText SourceKind = "TEXT"
	// SourceKindFile is a document such as a PDF attachment.
	SourceKindFile SourceKind = "FILE"
)

// SourceStatus tracks a source through the ingestion lifecycle.
type SourceStatus string

const (
	// SourceStatusPending means ingestion has not finished yet.
	SourceStatusPending SourceStatus = "PENDING"
	// SourceStatusReady means every chunk is embedded and searchable.
	SourceStatusReady SourceStatus = "READY"
	// SourceStatusFailed means the last ingestion attempt failed.
	SourceStatusFailed SourceStatus = "FAILED"
)

// KnowledgeSource is one ingested document belonging to a tenant.
type KnowledgeSource struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenantId"`
	Label     string         `json:"label"`
	URI       *string        `json:"uri,omitempty"` // nil for sources without a stable address, such as free text
	Kind      SourceKind     `json:"kind"`
	Status    SourceStatus   `json:"status"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// HasURI reports whether the source carries a dedup key.
func (s *KnowledgeSource) HasURI() bool {
	return s.URI != nil && *s.URI != ""
}

// EmbeddingRecord links one stored chunk to its vector in the index.
type EmbeddingRecord struct {
	ID                string    `json:"id"`
	KnowledgeSourceID string    `json:"knowledgeSourceId"`
	VectorID          string    `json:"vectorId"`
	ChunkIndex        int       `json:"chunkIndex"`
	Content           string    `json:"content"` // enriched chunk text
	TokenCount        int       `json:"tokenCount"`
	CreatedAt         time.Time `json:"createdAt"`
}

// SourceSummary is a source together with the number of records it owns.
type SourceSummary struct {
	*KnowledgeSource
	EmbeddingCount int `json:"embeddingCount"`
}

// Checkpoint records how far a long-running job got for one tenant so a
// restarted run can skip finished work.
type Checkpoint struct {
	Job          string    `json:"job"`
	TenantID     string    `json:"tenantId"`
	LastSourceID string    `json:"lastSourceId"`
	Processed    int       `json:"processed"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
