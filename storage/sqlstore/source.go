package sqlstore

import (
	"context"
	"errors"
	"time"

	"github.com/poiesic/lorekeep/core"
	"github.com/poiesic/lorekeep/storage"
)

// CreateSource inserts a new source. The (tenant_id, uri) unique index
// rejects a second source for the same URI.
func (s *Store) CreateSource(ctx context.Context, source *core.KnowledgeSource) (*core.KnowledgeSource, error) {
	if err := core.ValidateKnowledgeSource(source); err != nil {
		return nil, err
	}
	if source.HasURI() {
		_, err := s.FindSourceByURI(ctx, source.TenantID, *source.URI)
		if err == nil {
			return nil, storage.ErrDuplicateKey
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}

	if source.ID == "" {
		source.ID = core.NewID()
	}
	now := time.Now().UTC()
	if source.CreatedAt.IsZero() {
		source.CreatedAt = now
	}
	source.UpdatedAt = now

	row, err := toSourceRow(source)
	if err != nil {
		return nil, err
	}
	if err := s.conn(ctx).Create(row).Error; err != nil {
		return nil, translate(err)
	}
	return source, nil
}

// UpdateSource replaces label, status and metadata.
func (s *Store) UpdateSource(ctx context.Context, source *core.KnowledgeSource) (*core.KnowledgeSource, error) {
	if err := core.ValidateKnowledgeSource(source); err != nil {
		return nil, err
	}
	md, err := encodeMetadata(source.Metadata)
	if err != nil {
		return nil, err
	}

	res := s.conn(ctx).Model(&sourceRow{}).
		Where("id = ?", source.ID).
		Updates(map[string]any{
			"label":      source.Label,
			"status":     string(source.Status),
			"metadata":   md,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, storage.ErrNotFound
	}
	return s.GetSource(ctx, source.ID)
}

// UpdateSourceStatus sets the status and merges metadata in one transaction.
func (s *Store) UpdateSourceStatus(ctx context.Context, id string, status core.SourceStatus, metadata map[string]any) error {
	if err := core.ValidateSourceStatus(status); err != nil {
		return err
	}

	return s.WithTransaction(ctx, func(ctx context.Context) error {
		source, err := s.GetSource(ctx, id)
		if err != nil {
			return err
		}
		updates := map[string]any{
			"status":     string(status),
			"updated_at": time.Now().UTC(),
		}
		if len(metadata) > 0 {
			md, err := encodeMetadata(storage.MergeMetadata(source.Metadata, metadata))
			if err != nil {
				return err
			}
			updates["metadata"] = md
		}
		return translate(s.conn(ctx).Model(&sourceRow{}).Where("id = ?", id).Updates(updates).Error)
	})
}

// GetSource retrieves a source by ID.
func (s *Store) GetSource(ctx context.Context, id string) (*core.KnowledgeSource, error) {
	var row sourceRow
	if err := s.conn(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		return nil, translate(err)
	}
	return row.toCore()
}

// FindSourceByURI retrieves the tenant's source for uri.
func (s *Store) FindSourceByURI(ctx context.Context, tenantID, uri string) (*core.KnowledgeSource, error) {
	var row sourceRow
	if err := s.conn(ctx).Where("tenant_id = ? AND uri = ?", tenantID, uri).Take(&row).Error; err != nil {
		return nil, translate(err)
	}
	return row.toCore()
}

// ListSources returns the tenant's sources, newest first.
func (s *Store) ListSources(ctx context.Context, tenantID string) ([]*core.KnowledgeSource, error) {
	var rows []sourceRow
	err := s.conn(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err)
	}

	sources := make([]*core.KnowledgeSource, 0, len(rows))
	for i := range rows {
		source, err := rows[i].toCore()
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, nil
}

// DeleteSource removes a source row.
func (s *Store) DeleteSource(ctx context.Context, id string) error {
	res := s.conn(ctx).Where("id = ?", id).Delete(&sourceRow{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
