package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lorekeep/core"
	"github.com/poiesic/lorekeep/storage"
)

// EmbeddingRepository implements storage.EmbeddingRepository for BadgerDB.
// Records are keyed under their source so one prefix scan returns them in
// chunk order.
type EmbeddingRepository struct {
	backend *Backend
}

var _ storage.EmbeddingRepository = (*EmbeddingRepository)(nil)

// NewEmbeddingRepository creates a new EmbeddingRepository.
func NewEmbeddingRepository(backend *Backend) *EmbeddingRepository {
	return &EmbeddingRepository{backend: backend}
}

// Close is a no-op; the backend is closed by its owner.
func (r *EmbeddingRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *EmbeddingRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddEmbeddingRecords stores records in a single transaction.
func (r *EmbeddingRepository) AddEmbeddingRecords(ctx context.Context, records ...*core.EmbeddingRecord) ([]*core.EmbeddingRecord, error) {
	if len(records) == 0 {
		return records, nil
	}

	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, record := range records {
			if record.ID == "" {
				record.ID = core.NewID()
			}
			if record.CreatedAt.IsZero() {
				record.CreatedAt = now
			}

			value, err := storage.MarshalEmbeddingRecord(record)
			if err != nil {
				return err
			}
			key := makeRecordKey(record.KnowledgeSourceID, record.ChunkIndex, record.ID)
			if err := tx.Set(key, value); err != nil {
				return err
			}
		}
		return nil
	}, true)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GetEmbeddingRecords returns a source's records ordered by chunk index.
func (r *EmbeddingRepository) GetEmbeddingRecords(ctx context.Context, sourceID string) ([]*core.EmbeddingRecord, error) {
	var records []*core.EmbeddingRecord
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		return scanPrefix(tx, makePartialRecordKey(sourceID), func(_, val []byte) error {
			record, err := storage.UnmarshalEmbeddingRecord(val)
			if err != nil {
				return err
			}
			records = append(records, record)
			return nil
		})
	}, false)
	return records, err
}

// VectorIDsForSource returns the vector ids of a source's records.
func (r *EmbeddingRepository) VectorIDsForSource(ctx context.Context, sourceID string) ([]string, error) {
	records, err := r.GetEmbeddingRecords(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.VectorID)
	}
	return ids, nil
}

// CountEmbeddingRecords counts keys without decoding values.
func (r *EmbeddingRepository) CountEmbeddingRecords(ctx context.Context, sourceID string) (int, error) {
	var count int
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		count = len(keysWithPrefix(tx, makePartialRecordKey(sourceID)))
		return nil
	}, false)
	return count, err
}

// DeleteEmbeddingRecords removes every record of a source.
func (r *EmbeddingRepository) DeleteEmbeddingRecords(ctx context.Context, sourceID string) (int, error) {
	var removed int
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		keys := keysWithPrefix(tx, makePartialRecordKey(sourceID))
		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		removed = len(keys)
		return nil
	}, true)
	return removed, err
}
