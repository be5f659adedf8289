package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/bnema/offlinectl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRejectsInvalidKeys(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	testCases := []struct {
		name    string
		key     string
		wantErr string
	}{
		{name: "empty", key: "", wantErr: "kv key is empty"},
		{name: "dot", key: ".", wantErr: "invalid kv key"},
		{name: "dot dot", key: "..", wantErr: "invalid kv key"},
		{name: "temp file name", key: ".kv-cache_profile-1.tmp", wantErr: "invalid kv key"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := store.Set(context.Background(), tc.key, "value")
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestStoreKeepsDistinctKeysInDistinctFiles(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "kv")
	store := NewStore(root)
	ctx := context.Background()
	keys := []string{
		"offline_queued_actions",
		"cache_x/../offline_queued_actions",
		"./offline_queued_actions",
		"offline_queued_actions ",
		" offline_queued_actions",
		"cache_a/b",
		"cache_a%2Fb",
		"../escape",
		"/absolute/path",
		"   ",
	}

	for i, key := range keys {
		require.NoError(t, store.Set(ctx, key, fmt.Sprintf("value-%d", i)), key)
	}

	for i, key := range keys {
		got, err := store.Get(ctx, key)
		require.NoError(t, err, key)
		assert.Equal(t, fmt.Sprintf("value-%d", i), got, key)
	}

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, len(keys))
	for _, entry := range entries {
		assert.False(t, entry.IsDir(), entry.Name())
	}

	_, err = os.Stat(filepath.Join(filepath.Dir(root), "escape"))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, store.Remove(ctx, "cache_x/../offline_queued_actions"))
	got, err := store.Get(ctx, "offline_queued_actions")
	require.NoError(t, err)
	assert.Equal(t, "value-0", got)
}

func TestStoreSetGetRoundTripAndPermissions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewStore(root)
	key := "offline_queued_actions"
	want := `[{"id":"1","type":"a","payload":null,"timestamp":1}]`

	require.NoError(t, store.Set(context.Background(), key, want))

	got, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	info, err := os.Stat(filepath.Join(root, key))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(valueFileMode), info.Mode().Perm())
}

func TestStoreSetReplacesValueWithoutLeavingTempFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewStore(root)

	require.NoError(t, store.Set(context.Background(), "cache_profile", `{"data":1,"timestamp":1}`))
	require.NoError(t, store.Set(context.Background(), "cache_profile", `{"data":2,"timestamp":2}`))

	got, err := store.Get(context.Background(), "cache_profile")
	require.NoError(t, err)
	assert.Equal(t, `{"data":2,"timestamp":2}`, got)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cache_profile", entries[0].Name())
}

func TestStoreGetMissingKeyReturnsNotFound(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())

	_, err := store.Get(context.Background(), "cache_missing")
	require.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestStoreRemoveIsIdempotentWhenKeyMissing(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	key := "offline_queued_actions"

	require.NoError(t, store.Set(context.Background(), key, "[]"))
	require.NoError(t, store.Remove(context.Background(), key))
	require.NoError(t, store.Remove(context.Background(), key))

	_, err := store.Get(context.Background(), key)
	require.ErrorIs(t, err, domain.ErrKeyNotFound)
}
