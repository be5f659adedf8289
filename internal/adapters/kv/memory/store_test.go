package memory

import (
	"context"
	"testing"

	"github.com/bnema/offlinectl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, "cache_profile", `{"data":1}`))
	require.NoError(t, store.Set(ctx, "cache_profile", `{"data":2}`))

	value, err := store.Get(ctx, "cache_profile")
	require.NoError(t, err)
	assert.Equal(t, `{"data":2}`, value)
	assert.ElementsMatch(t, []string{"cache_profile"}, store.Keys())

	require.NoError(t, store.Remove(ctx, "cache_profile"))
	require.NoError(t, store.Remove(ctx, "cache_profile"))

	_, err = store.Get(ctx, "cache_profile")
	require.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestStoreHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewStore()
	require.ErrorIs(t, store.Set(ctx, "k", "v"), context.Canceled)
	_, err := store.Get(ctx, "k")
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, store.Remove(ctx, "k"), context.Canceled)
}
