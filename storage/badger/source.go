package badger

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lorekeep/core"
	"github.com/poiesic/lorekeep/storage"
)

// SourceRepository implements storage.SourceRepository for BadgerDB.
type SourceRepository struct {
	backend *Backend
}

var _ storage.SourceRepository = (*SourceRepository)(nil)

// NewSourceRepository creates a new SourceRepository.
func NewSourceRepository(backend *Backend) *SourceRepository {
	return &SourceRepository{backend: backend}
}

// Close is a no-op; the backend is closed by its owner.
func (r *SourceRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *SourceRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// CreateSource stores a new source and its index entries.
func (r *SourceRepository) CreateSource(ctx context.Context, source *core.KnowledgeSource) (*core.KnowledgeSource, error) {
	if err := core.ValidateKnowledgeSource(source); err != nil {
		return nil, err
	}

	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		if source.HasURI() {
			uriKey := makeSourceURIKey(source.TenantID, *source.URI)
			_, err := tx.Get(uriKey)
			if err == nil {
				return storage.ErrDuplicateKey
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
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

		return r.writeSource(tx, source)
	}, true)
	if err != nil {
		return nil, err
	}
	return source, nil
}

// writeSource stores the primary record plus the tenant and URI indices.
func (r *SourceRepository) writeSource(tx *badger.Txn, source *core.KnowledgeSource) error {
	value, err := storage.MarshalSource(source)
	if err != nil {
		return err
	}
	if err := tx.Set(makeSourceKey(source.ID), value); err != nil {
		return err
	}
	if err := tx.Set(makeSourceTenantKey(source.TenantID, source.ID), []byte(source.ID)); err != nil {
		return err
	}
	if source.HasURI() {
		if err := tx.Set(makeSourceURIKey(source.TenantID, *source.URI), []byte(source.ID)); err != nil {
			return err
		}
	}
	return nil
}

// UpdateSource replaces the mutable fields of an existing source.
func (r *SourceRepository) UpdateSource(ctx context.Context, source *core.KnowledgeSource) (*core.KnowledgeSource, error) {
	if err := core.ValidateKnowledgeSource(source); err != nil {
		return nil, err
	}

	var updated *core.KnowledgeSource
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		old, err := r.readSource(tx, source.ID)
		if err != nil {
			return err
		}
		old.Label = source.Label
		old.Status = source.Status
		old.Metadata = source.Metadata
		old.UpdatedAt = time.Now().UTC()
		updated = old
		return r.writeSource(tx, old)
	}, true)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateSourceStatus sets the status and merges metadata.
func (r *SourceRepository) UpdateSourceStatus(ctx context.Context, id string, status core.SourceStatus, metadata map[string]any) error {
	if err := core.ValidateSourceStatus(status); err != nil {
		return err
	}

	return r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		source, err := r.readSource(tx, id)
		if err != nil {
			return err
		}
		source.Status = status
		if len(metadata) > 0 {
			source.Metadata = storage.MergeMetadata(source.Metadata, metadata)
		}
		source.UpdatedAt = time.Now().UTC()
		return r.writeSource(tx, source)
	}, true)
}

// GetSource retrieves a source by ID.
func (r *SourceRepository) GetSource(ctx context.Context, id string) (*core.KnowledgeSource, error) {
	var result *core.KnowledgeSource
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		var err error
		result, err = r.readSource(tx, id)
		return err
	}, false)
	return result, err
}

// FindSourceByURI looks the source up through the URI index.
func (r *SourceRepository) FindSourceByURI(ctx context.Context, tenantID, uri string) (*core.KnowledgeSource, error) {
	var result *core.KnowledgeSource
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		item, err := tx.Get(makeSourceURIKey(tenantID, uri))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		source, err := r.readSource(tx, string(id))
		if err != nil {
			return err
		}
		if source.TenantID != tenantID || source.URI == nil || *source.URI != uri {
			return storage.ErrNotFound
		}
		result = source
		return nil
	}, false)
	return result, err
}

// ListSources returns the tenant's sources, newest first.
func (r *SourceRepository) ListSources(ctx context.Context, tenantID string) ([]*core.KnowledgeSource, error) {
	var sources []*core.KnowledgeSource
	err := r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		var ids []string
		err := scanPrefix(tx, makePartialSourceTenantKey(tenantID), func(_, val []byte) error {
			ids = append(ids, string(val))
			return nil
		})
		if err != nil {
			return err
		}

		for _, id := range ids {
			source, err := r.readSource(tx, id)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if source.TenantID != tenantID {
				continue
			}
			sources = append(sources, source)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(sources, func(a, b *core.KnowledgeSource) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return sources, nil
}

// DeleteSource removes a source and its index entries.
func (r *SourceRepository) DeleteSource(ctx context.Context, id string) error {
	return r.backend.WithTx(ctx, func(tx *badger.Txn) error {
		source, err := r.readSource(tx, id)
		if err != nil {
			return err
		}
		if source.HasURI() {
			if err := tx.Delete(makeSourceURIKey(source.TenantID, *source.URI)); err != nil {
				return err
			}
		}
		if err := tx.Delete(makeSourceTenantKey(source.TenantID, source.ID)); err != nil {
			return err
		}
		return tx.Delete(makeSourceKey(source.ID))
	}, true)
}

// readSource reads a source, returning storage.ErrNotFound when missing.
func (r *SourceRepository) readSource(tx *badger.Txn, id string) (*core.KnowledgeSource, error) {
	item, err := tx.Get(makeSourceKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var source *core.KnowledgeSource
	err = item.Value(func(val []byte) error {
		var err error
		source, err = storage.UnmarshalSource(val)
		return err
	})
	return source, err
}
