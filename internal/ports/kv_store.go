package ports

import "context"

// KVStore persists string values under string keys.
// Get returns domain.ErrKeyNotFound (possibly wrapped) when the key is absent.
// Remove of an absent key is not an error.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Remove(ctx context.Context, key string) error
}
