package file

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bnema/offlinectl/internal/domain"
	"github.com/bnema/offlinectl/internal/ports"
)

const (
	storeDirMode   = 0o700
	valueFileMode  = 0o600
	tempFilePrefix = ".kv-"
)

// Store keeps one file per key under root. Writes go through a temp file and a
// rename so a reader never sees a partially written value.
type Store struct {
	root string
	mu   sync.RWMutex
}

var _ ports.KVStore = (*Store)(nil)

func NewStore(root string) *Store {
	return &Store{root: filepath.Clean(root)}
}

func (s *Store) Root() string {
	return s.root
}

func (s *Store) Set(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.pathForKey(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, storeDirMode); err != nil {
		return fmt.Errorf("create kv directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, tempFilePrefix+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp kv file %q: %w", key, err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.WriteString(value); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp kv file %q: %w", key, err)
	}

	if err := tempFile.Chmod(valueFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp kv file %q: %w", key, err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp kv file %q: %w", key, err)
	}

	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace kv file %q: %w", key, err)
	}

	cleanup = false
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, err := s.pathForKey(key)
	if err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("kv file %q: %w", key, domain.ErrKeyNotFound)
		}
		return "", fmt.Errorf("read kv file %q: %w", key, err)
	}

	return string(data), nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.pathForKey(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove kv file %q: %w", key, err)
	}

	return nil
}

// pathForKey maps each distinct key to its own file directly under root. Keys are
// path-escaped rather than cleaned, so "k", "k " and "x/../k" never share a file.
func (s *Store) pathForKey(key string) (string, error) {
	if key == "" {
		return "", errors.New("kv key is empty")
	}

	name := url.PathEscape(key)
	if name == "." || name == ".." || strings.HasPrefix(name, tempFilePrefix) {
		return "", fmt.Errorf("invalid kv key %q", key)
	}

	return filepath.Join(s.root, name), nil
}
