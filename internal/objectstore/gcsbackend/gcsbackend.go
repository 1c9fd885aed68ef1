// Package gcsbackend implements a Google Cloud Storage objectstore.Backend.
package gcsbackend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/chunkvault/chunkvault/internal/objectstore"
)

// Backend is a Google Cloud Storage objectstore.Backend.
type Backend struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
}

var _ objectstore.Backend = (*Backend)(nil)

// New creates a new GCS backend. The bucket must already exist.
func New(ctx context.Context, bucketName string, opts ...Option) (*Backend, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}

	b := &Backend{
		client: client,
		bucket: client.Bucket(bucketName),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Option configures a Backend.
type Option func(*Backend)

// WithPrefix sets a key prefix applied to every operation.
func WithPrefix(prefix string) Option {
	return func(b *Backend) {
		b.prefix = strings.TrimSuffix(prefix, "/")
		if b.prefix != "" {
			b.prefix += "/"
		}
	}
}

func (b *Backend) objectKey(key string) string {
	return b.prefix + key
}

// Get reads the object for key.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	reader, err := b.bucket.Object(b.objectKey(key)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("opening reader for %s: %w", key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, false, fmt.Errorf("reading object %s: %w", key, err)
	}
	return data, true, nil
}

// Set writes value under key.
func (b *Backend) Set(ctx context.Context, key string, value []byte) error {
	writer := b.bucket.Object(b.objectKey(key)).NewWriter(ctx)
	if _, err := writer.Write(value); err != nil {
		_ = writer.Close()
		return fmt.Errorf("writing object %s: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing writer for %s: %w", key, err)
	}
	return nil
}

// Erase deletes the object for key. Erasing an absent key succeeds.
func (b *Backend) Erase(ctx context.Context, key string) error {
	err := b.bucket.Object(b.objectKey(key)).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("deleting object %s: %w", key, err)
	}
	return nil
}

// List returns every key with the given prefix.
func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	it := b.bucket.Objects(ctx, &storage.Query{Prefix: b.objectKey(prefix)})
	for {
		obj, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing objects under %s: %w", prefix, err)
		}
		keys = append(keys, strings.TrimPrefix(obj.Name, b.prefix))
	}
	return keys, nil
}

// Close releases the underlying GCS client.
func (b *Backend) Close() error {
	return b.client.Close()
}
