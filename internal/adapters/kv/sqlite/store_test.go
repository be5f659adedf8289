package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/offlinectl/internal/domain"
	"github.com/bnema/offlinectl/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, path string) *Store {
	t.Helper()

	store, err := NewStore(path, mocks.NewFakeClock(time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestStoreUpsertAndGet(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, filepath.Join(t.TempDir(), "db", "offline.db"))
	ctx := context.Background()

	_, err := store.Get(ctx, "offline_queued_actions")
	require.ErrorIs(t, err, domain.ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, "offline_queued_actions", "[]"))
	require.NoError(t, store.Set(ctx, "offline_queued_actions", `[{"id":"1"}]`))

	got, err := store.Get(ctx, "offline_queued_actions")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"1"}]`, got)

	var updatedAt int64
	require.NoError(t, store.db.QueryRow(`SELECT updated_at FROM kv WHERE key = ?`, "offline_queued_actions").Scan(&updatedAt))
	assert.Equal(t, time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC).UnixMilli(), updatedAt)
}

func TestStoreRemoveIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, filepath.Join(t.TempDir(), "offline.db"))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "cache_profile", "{}"))
	require.NoError(t, store.Remove(ctx, "cache_profile"))
	require.NoError(t, store.Remove(ctx, "cache_profile"))

	_, err := store.Get(ctx, "cache_profile")
	require.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "offline.db")
	first, err := NewStore(path, nil)
	require.NoError(t, err)
	require.NoError(t, first.Set(context.Background(), "cache_profile", `{"data":1,"timestamp":1}`))
	require.NoError(t, first.Close())

	second := newTestStore(t, path)
	got, err := second.Get(context.Background(), "cache_profile")
	require.NoError(t, err)
	assert.Equal(t, `{"data":1,"timestamp":1}`, got)
}

func TestStoreHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, filepath.Join(t.TempDir(), "offline.db"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, store.Set(ctx, "k", "v"), context.Canceled)
	_, err := store.Get(ctx, "k")
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, store.Remove(ctx, "k"), context.Canceled)
}
