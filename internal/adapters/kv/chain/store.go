package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/offlinectl/internal/domain"
	"github.com/bnema/offlinectl/internal/ports"
)

// Store writes to primary and falls back to a second store when primary fails.
// Reads consult fallback when primary fails or does not have the key.
type Store struct {
	primary  ports.KVStore
	fallback ports.KVStore
}

var _ ports.KVStore = (*Store)(nil)

var (
	errNilPrimaryStore  = errors.New("primary kv store is nil")
	errNilFallbackStore = errors.New("fallback kv store is nil")
)

func NewStore(primary ports.KVStore, fallback ports.KVStore) *Store {
	store, err := NewStoreChecked(primary, fallback)
	if err != nil {
		panic(err)
	}

	return store
}

func NewStoreChecked(primary ports.KVStore, fallback ports.KVStore) (*Store, error) {
	if primary == nil {
		return nil, errNilPrimaryStore
	}
	if fallback == nil {
		return nil, errNilFallbackStore
	}

	return &Store{primary: primary, fallback: fallback}, nil
}

func (s *Store) Set(ctx context.Context, key string, value string) error {
	err := s.primary.Set(ctx, key, value)
	if err == nil {
		// Drop any copy an earlier primary outage left in fallback.
		_ = s.fallback.Remove(ctx, key)
		return nil
	}
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Set(ctx, key, value)
	if fallbackErr == nil {
		return nil
	}

	return fmt.Errorf("primary backend set failed: %w; fallback backend set failed: %w", err, fallbackErr)
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.primary.Get(ctx, key)
	if err == nil {
		return value, nil
	}
	if shouldSkipFallback(err) {
		return "", err
	}

	fallbackValue, fallbackErr := s.fallback.Get(ctx, key)
	if fallbackErr == nil {
		return fallbackValue, nil
	}
	if errors.Is(err, domain.ErrKeyNotFound) && errors.Is(fallbackErr, domain.ErrKeyNotFound) {
		return "", fallbackErr
	}

	return "", fmt.Errorf("primary backend get failed: %w; fallback backend get failed: %w", err, fallbackErr)
}

// Remove deletes key from both backends so a later Get cannot find a stale copy.
func (s *Store) Remove(ctx context.Context, key string) error {
	err := s.primary.Remove(ctx, key)
	if shouldSkipFallback(err) {
		return err
	}

	fallbackErr := s.fallback.Remove(ctx, key)
	switch {
	case err == nil && fallbackErr == nil:
		return nil
	case err == nil:
		return fmt.Errorf("fallback backend remove failed: %w", fallbackErr)
	case fallbackErr == nil:
		return fmt.Errorf("primary backend remove failed: %w", err)
	default:
		return fmt.Errorf("primary backend remove failed: %w; fallback backend remove failed: %w", err, fallbackErr)
	}
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
