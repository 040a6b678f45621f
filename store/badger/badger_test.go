package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecboard/codec"
	"github.com/hupe1980/vecboard/model"
	"github.com/hupe1980/vecboard/store"
	"github.com/hupe1980/vecboard/store/storetest"
)

func TestConformanceInMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open("")
		require.NoError(t, err)
		return s
	})
}

func TestConformanceOnDisk(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open(t.TempDir(), func(o *Options) {
			o.Compression = codec.CompressionZSTD
		})
		require.NoError(t, err)
		return s
	})
}

func TestReopenKeepsOrder(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.AppendVector(ctx, "alice", "a", model.Vector{1}))
	require.NoError(t, s.AppendVector(ctx, "alice", "b", model.Vector{2}))
	require.NoError(t, s.SetPosition(ctx, "alice", "b", model.Position{X: 2}))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.AppendVector(ctx, "alice", "c", model.Vector{3}))
	recs, err := s.GetVectors(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []model.ItemID{"a", "b", "c"}, []model.ItemID{recs[0].ID, recs[1].ID, recs[2].ID})

	ps, err := s.ListPositions(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []model.Placement{{ID: "b", Position: model.Position{X: 2}}}, ps)
}

func TestKeysArePrefixFree(t *testing.T) {
	a := key(orderPrefix, "ab", nil)
	b := key(orderPrefix, "a", []byte("b"))
	assert.NotEqual(t, a, b)
}
