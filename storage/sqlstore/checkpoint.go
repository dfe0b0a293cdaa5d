package sqlstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm/clause"

	"github.com/poiesic/lorekeep/core"
	"github.com/poiesic/lorekeep/storage"
)

// SaveCheckpoint upserts the checkpoint for (Job, TenantID).
func (s *Store) SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error {
	checkpoint.UpdatedAt = time.Now().UTC()
	row := checkpointRow{
		Job:          checkpoint.Job,
		TenantID:     checkpoint.TenantID,
		LastSourceID: checkpoint.LastSourceID,
		Processed:    checkpoint.Processed,
		UpdatedAt:    checkpoint.UpdatedAt,
	}
	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job"}, {Name: "tenant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_source_id", "processed", "updated_at"}),
	}).Create(&row).Error
	return translate(err)
}

// LoadCheckpoint returns nil, nil if no checkpoint exists.
func (s *Store) LoadCheckpoint(ctx context.Context, job, tenantID string) (*core.Checkpoint, error) {
	var row checkpointRow
	err := translate(s.conn(ctx).Where("job = ? AND tenant_id = ?", job, tenantID).Take(&row).Error)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &core.Checkpoint{
		Job:          row.Job,
		TenantID:     row.TenantID,
		LastSourceID: row.LastSourceID,
		Processed:    row.Processed,
		UpdatedAt:    row.UpdatedAt.UTC(),
	}, nil
}

// ClearCheckpoint removes the checkpoint.
func (s *Store) ClearCheckpoint(ctx context.Context, job, tenantID string) error {
	return translate(s.conn(ctx).Where("job = ? AND tenant_id = ?", job, tenantID).Delete(&checkpointRow{}).Error)
}
