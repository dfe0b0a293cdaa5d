package sqlstore

import (
	"context"
	"time"

	"github.com/poiesic/lorekeep/core"
)

// AddEmbeddingRecords inserts records in one statement.
func (s *Store) AddEmbeddingRecords(ctx context.Context, records ...*core.EmbeddingRecord) ([]*core.EmbeddingRecord, error) {
	if len(records) == 0 {
		return records, nil
	}

	now := time.Now().UTC()
	rows := make([]*recordRow, 0, len(records))
	for _, record := range records {
		if record.ID == "" {
			record.ID = core.NewID()
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = now
		}
		rows = append(rows, toRecordRow(record))
	}

	if err := s.conn(ctx).CreateInBatches(rows, 200).Error; err != nil {
		return nil, translate(err)
	}
	return records, nil
}

// GetEmbeddingRecords returns a source's records ordered by chunk index.
func (s *Store) GetEmbeddingRecords(ctx context.Context, sourceID string) ([]*core.EmbeddingRecord, error) {
	var rows []recordRow
	err := s.conn(ctx).
		Where("knowledge_source_id = ?", sourceID).
		Order("chunk_index ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err)
	}

	records := make([]*core.EmbeddingRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].toCore())
	}
	return records, nil
}

// VectorIDsForSource plucks the vector ids of a source's records.
func (s *Store) VectorIDsForSource(ctx context.Context, sourceID string) ([]string, error) {
	var ids []string
	err := s.conn(ctx).Model(&recordRow{}).
		Where("knowledge_source_id = ?", sourceID).
		Order("chunk_index ASC").
		Pluck("vector_id", &ids).Error
	return ids, translate(err)
}

// CountEmbeddingRecords returns how many records a source owns.
func (s *Store) CountEmbeddingRecords(ctx context.Context, sourceID string) (int, error) {
	var n int64
	err := s.conn(ctx).Model(&recordRow{}).
		Where("knowledge_source_id = ?", sourceID).
		Count(&n).Error
	return int(n), translate(err)
}

// DeleteEmbeddingRecords removes every record of a source.
func (s *Store) DeleteEmbeddingRecords(ctx context.Context, sourceID string) (int, error) {
	res := s.conn(ctx).Where("knowledge_source_id = ?", sourceID).Delete(&recordRow{})
	return int(res.RowsAffected), translate(res.Error)
}
