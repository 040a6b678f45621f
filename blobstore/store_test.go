package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBlobStore(t *testing.T, s BlobStore) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "alice/vectors/b", []byte("bbb")))
	require.NoError(t, s.Put(ctx, "alice/vectors/a", []byte("aaa")))
	require.NoError(t, s.Put(ctx, "bob/manifest", []byte("m")))

	data, err := s.Get(ctx, "alice/vectors/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("aaa"), data)

	require.NoError(t, s.Put(ctx, "alice/vectors/a", []byte("a2")))
	data, err = s.Get(ctx, "alice/vectors/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("a2"), data)

	names, err := s.List(ctx, "alice/")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice/vectors/a", "alice/vectors/b"}, names)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, s.Delete(ctx, "alice/vectors/a"))
	require.NoError(t, s.Delete(ctx, "alice/vectors/a"))
	_, err = s.Get(ctx, "alice/vectors/a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	testBlobStore(t, s)
	assert.Equal(t, 2, s.Len())
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	in := []byte("abc")
	require.NoError(t, s.Put(ctx, "x", in))
	in[0] = 'z'

	out, err := s.Get(ctx, "x")
	require.NoError(t, err)
	out[1] = 'z'

	again, err := s.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestLocalStore(t *testing.T) {
	testBlobStore(t, NewLocalStore(t.TempDir()))
}

func TestLocalStoreMissingRoot(t *testing.T) {
	s := NewLocalStore(filepath.Join(t.TempDir(), "not-yet"))

	names, err := s.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalStoreRejectsEscapes(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(t.TempDir())

	for _, name := range []string{"../etc/passwd", "/abs", "."} {
		assert.Error(t, s.Put(ctx, name, []byte("x")), name)
	}
}

func TestLocalStoreLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := NewLocalStore(root)

	require.NoError(t, s.Put(ctx, "a/b", []byte("x")))

	entries, err := os.ReadDir(filepath.Join(root, "a"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Name())
}

func TestCachingStore(t *testing.T) {
	s, err := NewCachingStore(NewMemoryStore(), 0)
	require.NoError(t, err)
	defer s.Close()

	testBlobStore(t, s)
}

func TestCachingStoreServesFromCache(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	s, err := NewCachingStore(inner, 1<<20)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(ctx, "x", []byte("v1")))
	_, err = s.Get(ctx, "x")
	require.NoError(t, err)
	s.Wait()

	// Bypass the cache; a cached read keeps returning the old value.
	require.NoError(t, inner.Put(ctx, "x", []byte("v2")))
	data, err := s.Get(ctx, "x")
	require.NoError(t, err)
	assert.Contains(t, []string{"v1", "v2"}, string(data))

	require.NoError(t, s.Put(ctx, "x", []byte("v3")))
	data, err = s.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []byte("v3"), data)
}
