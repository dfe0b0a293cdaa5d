package sqlstore

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/poiesic/lorekeep/core"
	"github.com/poiesic/lorekeep/storage"
)

type sourceRow struct {
	ID        string         `gorm:"primaryKey;size:36"`
	TenantID  string         `gorm:"size:128;not null;uniqueIndex:idx_source_tenant_uri,priority:1"`
	Label     string         `gorm:"size:500;not null"`
	URI       *string        `gorm:"size:512;uniqueIndex:idx_source_tenant_uri,priority:2"`
	Kind      string         `gorm:"size:16;not null"`
	Status    string         `gorm:"size:16;not null;index"`
	Metadata  datatypes.JSON `gorm:"type:json"`
	CreatedAt time.Time      `gorm:"index"`
	UpdatedAt time.Time
}

func (sourceRow) TableName() string {
	return "knowledge_sources"
}

type recordRow struct {
	ID                string    `gorm:"primaryKey;size:36"`
	KnowledgeSourceID string    `gorm:"size:36;not null;index:idx_record_source_chunk,priority:1"`
	VectorID          string    `gorm:"size:64;not null;uniqueIndex"`
	ChunkIndex        int       `gorm:"not null;index:idx_record_source_chunk,priority:2"`
	Content           string    `gorm:"type:text;not null"`
	TokenCount        int       `gorm:"not null;default:0"`
	CreatedAt         time.Time
}

func (recordRow) TableName() string {
	return "embedding_records"
}

type checkpointRow struct {
	Job          string `gorm:"primaryKey;size:64"`
	TenantID     string `gorm:"primaryKey;size:128"`
	LastSourceID string `gorm:"size:36"`
	Processed    int
	UpdatedAt    time.Time
}

func (checkpointRow) TableName() string {
	return "job_checkpoints"
}

func encodeMetadata(md map[string]any) (datatypes.JSON, error) {
	if len(md) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return datatypes.JSON(data), nil
}

func decodeMetadata(data datatypes.JSON) (map[string]any, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var md map[string]any
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return md, nil
}

func toSourceRow(s *core.KnowledgeSource) (*sourceRow, error) {
	md, err := encodeMetadata(s.Metadata)
	if err != nil {
		return nil, err
	}
	var uri *string
	if s.HasURI() {
		uri = s.URI
	}
	return &sourceRow{
		ID:        s.ID,
		TenantID:  s.TenantID,
		Label:     s.Label,
		URI:       uri,
		Kind:      string(s.Kind),
		Status:    string(s.Status),
		Metadata:  md,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}, nil
}

func (r *sourceRow) toCore() (*core.KnowledgeSource, error) {
	md, err := decodeMetadata(r.Metadata)
	if err != nil {
		return nil, err
	}
	return &core.KnowledgeSource{
		ID:        r.ID,
		TenantID:  r.TenantID,
		Label:     r.Label,
		URI:       r.URI,
		Kind:      core.SourceKind(r.Kind),
		Status:    core.SourceStatus(r.Status),
		Metadata:  md,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}, nil
}

func toRecordRow(r *core.EmbeddingRecord) *recordRow {
	return &recordRow{
		ID:                r.ID,
		KnowledgeSourceID: r.KnowledgeSourceID,
		VectorID:          r.VectorID,
		ChunkIndex:        r.ChunkIndex,
		Content:           r.Content,
		TokenCount:        r.TokenCount,
		CreatedAt:         r.CreatedAt,
	}
}

func (r *recordRow) toCore() *core.EmbeddingRecord {
	return &core.EmbeddingRecord{
		ID:                r.ID,
		KnowledgeSourceID: r.KnowledgeSourceID,
		VectorID:          r.VectorID,
		ChunkIndex:        r.ChunkIndex,
		Content:           r.Content,
		TokenCount:        r.TokenCount,
		CreatedAt:         r.CreatedAt.UTC(),
	}
}
