package badger

import (
	"context"
	"testing"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lorekeep/core"
	"github.com/poiesic/lorekeep/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSource(tenant, label, uri string) *core.KnowledgeSource {
	kind := core.SourceKindText
	if uri != "" {
		kind = core.SourceKindURL
	}
	return &core.KnowledgeSource{
		TenantID: tenant,
		Label:    label,
		URI:      core.StringPtr(uri),
		Kind:     kind,
		Status:   core.SourceStatusPending,
		Metadata: map[string]any{"lang": "en"},
	}
}

func TestCreateSource(t *testing.T) {
	sources, _, _ := newTestRepos(t)
	ctx := context.Background()

	src, err := sources.CreateSource(ctx, newSource("bot", "Pricing", "https://example.com/pricing"))
	require.NoError(t, err)
	assert.NotEmpty(t, src.ID)
	assert.False(t, src.CreatedAt.IsZero())
	assert.Equal(t, src.CreatedAt, src.UpdatedAt)

	t.Run("duplicate uri within tenant", func(t *testing.T) {
		_, err := sources.CreateSource(ctx, newSource("bot", "Again", "https://example.com/pricing"))
		assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	})

	t.Run("same uri for another tenant", func(t *testing.T) {
		_, err := sources.CreateSource(ctx, newSource("other", "Pricing", "https://example.com/pricing"))
		assert.NoError(t, err)
	})

	t.Run("sources without uri never collide", func(t *testing.T) {
		_, err := sources.CreateSource(ctx, newSource("bot", "Note", ""))
		require.NoError(t, err)
		_, err = sources.CreateSource(ctx, newSource("bot", "Note", ""))
		assert.NoError(t, err)
	})

	t.Run("invalid source", func(t *testing.T) {
		_, err := sources.CreateSource(ctx, newSource("", "x", ""))
		assert.ErrorIs(t, err, core.ErrInvalidSource)
	})
}

func TestFindSourceByURI(t *testing.T) {
	sources, _, _ := newTestRepos(t)
	ctx := context.Background()

	created, err := sources.CreateSource(ctx, newSource("bot", "Docs", "https://example.com/docs"))
	require.NoError(t, err)

	found, err := sources.FindSourceByURI(ctx, "bot", "https://example.com/docs")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "en", found.Metadata["lang"])

	_, err = sources.FindSourceByURI(ctx, "other", "https://example.com/docs")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdateSource(t *testing.T) {
	sources, _, _ := newTestRepos(t)
	ctx := context.Background()

	src, err := sources.CreateSource(ctx, newSource("bot", "Old", "https://example.com/a"))
	require.NoError(t, err)
	created := src.CreatedAt

	updated, err := sources.UpdateSource(ctx, &core.KnowledgeSource{
		ID: src.ID, TenantID: "bot", Label: "New", Kind: core.SourceKindURL,
		Status: core.SourceStatusReady, Metadata: map[string]any{"k": "v"},
	})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Label)
	assert.Equal(t, core.SourceStatusReady, updated.Status)
	assert.Equal(t, created, updated.CreatedAt)
	require.NotNil(t, updated.URI, "uri is immutable")
	assert.Equal(t, "https://example.com/a", *updated.URI)

	_, err = sources.UpdateSource(ctx, &core.KnowledgeSource{
		ID: "missing", TenantID: "bot", Label: "x", Kind: core.SourceKindText, Status: core.SourceStatusReady,
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdateSourceStatus(t *testing.T) {
	sources, _, _ := newTestRepos(t)
	ctx := context.Background()

	src, err := sources.CreateSource(ctx, newSource("bot", "Doc", ""))
	require.NoError(t, err)

	require.NoError(t, sources.UpdateSourceStatus(ctx, src.ID, core.SourceStatusFailed, map[string]any{"error": "boom"}))

	got, err := sources.GetSource(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SourceStatusFailed, got.Status)
	assert.Equal(t, "boom", got.Metadata["error"])
	assert.Equal(t, "en", got.Metadata["lang"])

	assert.ErrorIs(t, sources.UpdateSourceStatus(ctx, "missing", core.SourceStatusReady, nil), storage.ErrNotFound)
	assert.ErrorIs(t, sources.UpdateSourceStatus(ctx, src.ID, "DONE", nil), core.ErrInvalidSourceStatus)
}

func TestListSources(t *testing.T) {
	sources, _, _ := newTestRepos(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, label := range []string{"first", "second", "third"} {
		src := newSource("bot", label, "")
		src.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		_, err := sources.CreateSource(ctx, src)
		require.NoError(t, err)
	}
	_, err := sources.CreateSource(ctx, newSource("other", "foreign", ""))
	require.NoError(t, err)

	list, err := sources.ListSources(ctx, "bot")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "third", list[0].Label)
	assert.Equal(t, "second", list[1].Label)
	assert.Equal(t, "first", list[2].Label)

	list, err = sources.ListSources(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListSources_TenantPrefixIsolation(t *testing.T) {
	sources, _, _ := newTestRepos(t)
	ctx := context.Background()

	_, err := sources.CreateSource(ctx, newSource("bot", "a", ""))
	require.NoError(t, err)
	_, err = sources.CreateSource(ctx, newSource("bot-2", "b", ""))
	require.NoError(t, err)

	list, err := sources.ListSources(ctx, "bot")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].Label)

	t.Run("NUL in tenant is rejected", func(t *testing.T) {
		_, err := sources.CreateSource(ctx, newSource("bot\x00x", "Secret", ""))
		assert.ErrorIs(t, err, core.ErrInvalidTenantID)
	})

	t.Run("NUL in uri is rejected", func(t *testing.T) {
		_, err := sources.CreateSource(ctx, newSource("bot", "Secret", "https://example.com/\x00x"))
		assert.ErrorIs(t, err, core.ErrInvalidURI)
	})

	t.Run("rows of a colliding tenant are not returned", func(t *testing.T) {
		uri := "https://example.com/secret"
		forged := &core.KnowledgeSource{
			ID: "forged", TenantID: "bot\x00x", Label: "Secret", URI: core.StringPtr(uri),
			Kind: core.SourceKindURL, Status: core.SourceStatusReady,
		}
		err := sources.backend.WithTx(ctx, func(tx *badgerdb.Txn) error {
			return sources.writeSource(tx, forged)
		}, true)
		require.NoError(t, err)

		list, err := sources.ListSources(ctx, "bot")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "a", list[0].Label)

		_, err = sources.FindSourceByURI(ctx, "bot", "x\x00"+uri)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestDeleteSource(t *testing.T) {
	sources, _, _ := newTestRepos(t)
	ctx := context.Background()

	src, err := sources.CreateSource(ctx, newSource("bot", "Doc", "https://example.com/x"))
	require.NoError(t, err)

	require.NoError(t, sources.DeleteSource(ctx, src.ID))

	_, err = sources.GetSource(ctx, src.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = sources.FindSourceByURI(ctx, "bot", "https://example.com/x")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	list, err := sources.ListSources(ctx, "bot")
	require.NoError(t, err)
	assert.Empty(t, list)

	// the uri is free again
	_, err = sources.CreateSource(ctx, newSource("bot", "Doc", "https://example.com/x"))
	assert.NoError(t, err)

	assert.ErrorIs(t, sources.DeleteSource(ctx, src.ID), storage.ErrNotFound)
}
