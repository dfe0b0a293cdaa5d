package badger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/lorekeep/core"
	"github.com/poiesic/lorekeep/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepos(t *testing.T) (*SourceRepository, *EmbeddingRepository, *CheckpointRepository) {
	t.Helper()
	sources, records, checkpoints, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return sources, records, checkpoints
}

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "db")
	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_PathIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	_, err := OpenBackend(file, false)
	assert.Error(t, err)
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	assert.False(t, backend.IsClosed())
	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())
}

func TestWithTransaction(t *testing.T) {
	sources, records, _ := newTestRepos(t)
	ctx := context.Background()

	t.Run("commit makes every write visible", func(t *testing.T) {
		var id string
		err := sources.WithTransaction(ctx, func(ctx context.Context) error {
			src, err := sources.CreateSource(ctx, &core.KnowledgeSource{
				TenantID: "bot", Label: "doc", Kind: core.SourceKindText, Status: core.SourceStatusPending,
			})
			if err != nil {
				return err
			}
			id = src.ID
			_, err = records.AddEmbeddingRecords(ctx, &core.EmbeddingRecord{KnowledgeSourceID: id, VectorID: "v1"})
			return err
		})
		require.NoError(t, err)

		_, err = sources.GetSource(ctx, id)
		require.NoError(t, err)
		n, err := records.CountEmbeddingRecords(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("error rolls every write back", func(t *testing.T) {
		boom := errors.New("boom")
		var id string
		err := records.WithTransaction(ctx, func(ctx context.Context) error {
			src, err := sources.CreateSource(ctx, &core.KnowledgeSource{
				TenantID: "bot", Label: "doc", Kind: core.SourceKindText, Status: core.SourceStatusPending,
			})
			require.NoError(t, err)
			id = src.ID
			_, err = records.AddEmbeddingRecords(ctx, &core.EmbeddingRecord{KnowledgeSourceID: id, VectorID: "v1"})
			require.NoError(t, err)
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = sources.GetSource(ctx, id)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		n, err := records.CountEmbeddingRecords(ctx, id)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("nested transactions join the outer one", func(t *testing.T) {
		err := sources.WithTransaction(ctx, func(outer context.Context) error {
			return sources.WithTransaction(outer, func(inner context.Context) error {
				assert.Equal(t, outer, inner)
				return nil
			})
		})
		require.NoError(t, err)
	})
}
