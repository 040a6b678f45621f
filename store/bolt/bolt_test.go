package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/hupe1980/vecboard/codec"
	"github.com/hupe1980/vecboard/model"
	"github.com/hupe1980/vecboard/store"
	"github.com/hupe1980/vecboard/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open(filepath.Join(t.TempDir(), "board.db"))
		require.NoError(t, err)
		return s
	})
}

func TestConformanceCompressed(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open(filepath.Join(t.TempDir(), "board.db"), func(o *Options) {
			o.Compression = codec.CompressionLZ4
		})
		require.NoError(t, err)
		return s
	})
}

func TestSharedDB(t *testing.T) {
	ctx := context.Background()
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "shared.db"), 0o600, nil)
	require.NoError(t, err)
	defer db.Close()

	s := New(db)
	require.NoError(t, s.AppendVector(ctx, model.PublicScope, "a", model.Vector{1, 2}))
	require.NoError(t, s.Close())

	// The caller still owns db.
	recs, err := New(db).GetVectors(ctx, model.PublicScope)
	require.NoError(t, err)
	assert.Equal(t, []model.Record{{ID: "a", Vector: model.Vector{1, 2}}}, recs)
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "board.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.AppendVector(ctx, "alice", "a", model.Vector{1}))
	require.NoError(t, s.SetPosition(ctx, "alice", "a", model.Position{X: -3, Y: 4}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	ps, err := s.ListPositions(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []model.Placement{{ID: "a", Position: model.Position{X: -3, Y: 4}}}, ps)
}
