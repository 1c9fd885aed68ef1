// Package fsbackend implements a local-filesystem objectstore.Backend,
// useful for local development and for tests that need a real filesystem
// instead of memstore's in-memory map.
package fsbackend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chunkvault/chunkvault/internal/objectstore"
)

// Backend stores each key as a file under root, preserving any "/" in the
// key as a directory separator — the same layout a local zarr store uses.
type Backend struct {
	root string
}

var _ objectstore.Backend = (*Backend)(nil)

// New creates a filesystem backend rooted at root. The directory must
// already exist.
func New(root string) (*Backend, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	return &Backend{root: root}, nil
}

func (b *Backend) pathFor(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(b.root, filepath.FromSlash(key)), nil
}

// Get reads the content stored at key.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	default:
	}

	path, err := b.pathFor(key)
	if err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, true, nil
}

// Set writes value under key, creating any missing parent directories.
func (b *Backend) Set(_ context.Context, key string, value []byte) error {
	path, err := b.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating parent directories for %s: %w", key, err)
	}
	if err := os.WriteFile(path, value, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Erase removes the file backing key. Erasing an absent key succeeds.
func (b *Backend) Erase(_ context.Context, key string) error {
	path, err := b.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", key, err)
	}
	return nil
}

// List walks the tree under root and returns every key whose path starts
// with prefix.
func (b *Backend) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.Walk(b.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(b.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", b.root, err)
	}
	return keys, nil
}
