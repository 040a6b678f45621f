package blobstore

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

// CachingStore wraps a BlobStore and caches whole blobs on read.
// Writes and deletes go to the inner store and invalidate the entry.
type CachingStore struct {
	inner BlobStore
	cache *ristretto.Cache[string, []byte]
}

// NewCachingStore creates a CachingStore holding at most maxBytes of blob
// content. maxBytes defaults to 64MB if <= 0.
func NewCachingStore(inner BlobStore, maxBytes int64) (*CachingStore, error) {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 1e5,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: cache: %w", err)
	}
	return &CachingStore{inner: inner, cache: c}, nil
}

// Get returns the cached blob or reads it from the inner store.
func (s *CachingStore) Get(ctx context.Context, name string) ([]byte, error) {
	if data, ok := s.cache.Get(name); ok {
		return append([]byte(nil), data...), nil
	}
	data, err := s.inner.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	s.cache.Set(name, append([]byte(nil), data...), int64(len(data))+1)
	return data, nil
}

// Put writes through and invalidates the cached copy.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.cache.Del(name)
	err := s.inner.Put(ctx, name, data)
	s.invalidate(name)
	return err
}

// Delete deletes through and invalidates the cached copy.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.cache.Del(name)
	err := s.inner.Delete(ctx, name)
	s.invalidate(name)
	return err
}

// invalidate drops name and drains the set buffer so a fill queued by an
// earlier Get cannot resurrect the old blob.
func (s *CachingStore) invalidate(name string) {
	s.cache.Del(name)
	s.cache.Wait()
}

// List is not cached.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// Wait blocks until buffered cache writes are applied.
func (s *CachingStore) Wait() {
	s.cache.Wait()
}

// Close releases the cache.
func (s *CachingStore) Close() error {
	s.cache.Close()
	return nil
}
