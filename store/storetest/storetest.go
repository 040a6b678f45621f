// Package storetest provides a conformance suite for store.Store
// implementations.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecboard/model"
	"github.com/hupe1980/vecboard/store"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run exercises the store.Store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("EmptyScope", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		recs, err := s.GetVectors(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, recs)

		ps, err := s.ListPositions(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, ps)
	})

	t.Run("InsertionOrder", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		ids := []model.ItemID{"c", "a", "b", "item-10", "item-2"}
		for i, id := range ids {
			require.NoError(t, s.AppendVector(ctx, "alice", id, model.Vector{float32(i), 0.5, -1}))
		}

		recs, err := s.GetVectors(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, recs, len(ids))
		for i, rec := range recs {
			assert.Equal(t, ids[i], rec.ID)
			assert.Equal(t, model.Vector{float32(i), 0.5, -1}, rec.Vector)
		}
	})

	t.Run("VectorsAreCopied", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		v := model.Vector{1, 2, 3}
		require.NoError(t, s.AppendVector(ctx, "alice", "x", v))
		v[0] = 99

		recs, err := s.GetVectors(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, float32(1), recs[0].Vector[0])
	})

	t.Run("DuplicateAppend", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		require.NoError(t, s.AppendVector(ctx, "alice", "x", model.Vector{1}))
		err := s.AppendVector(ctx, "alice", "x", model.Vector{2})
		assert.ErrorIs(t, err, store.ErrAlreadyExists)

		recs, err := s.GetVectors(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, model.Vector{1}, recs[0].Vector)
	})

	t.Run("SetPositionUnknown", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		err := s.SetPosition(ctx, "alice", "ghost", model.Position{X: 1})
		assert.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, s.AppendVector(ctx, "alice", "x", model.Vector{1}))
		err = s.SetPosition(ctx, "alice", "ghost", model.Position{X: 1})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("Positions", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		for _, id := range []model.ItemID{"a", "b", "c"} {
			require.NoError(t, s.AppendVector(ctx, "alice", id, model.Vector{1, 0}))
		}
		require.NoError(t, s.SetPosition(ctx, "alice", "c", model.Position{X: 3, Y: -3}))
		require.NoError(t, s.SetPosition(ctx, "alice", "a", model.Position{X: 1, Y: -1}))
		require.NoError(t, s.SetPosition(ctx, "alice", "a", model.Position{X: 10.5, Y: -10.25}))

		ps, err := s.ListPositions(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []model.Placement{
			{ID: "a", Position: model.Position{X: 10.5, Y: -10.25}},
			{ID: "c", Position: model.Position{X: 3, Y: -3}},
		}, ps)
	})

	t.Run("ScopesAreIsolated", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		require.NoError(t, s.AppendVector(ctx, model.PublicScope, "x", model.Vector{1}))
		require.NoError(t, s.AppendVector(ctx, "alice", "x", model.Vector{2}))
		require.NoError(t, s.AppendVector(ctx, "alice/bob", "y", model.Vector{3}))
		require.NoError(t, s.SetPosition(ctx, "alice", "x", model.Position{X: 7}))

		pub, err := s.GetVectors(ctx, model.PublicScope)
		require.NoError(t, err)
		assert.Equal(t, []model.Record{{ID: "x", Vector: model.Vector{1}}}, pub)

		nested, err := s.GetVectors(ctx, "alice/bob")
		require.NoError(t, err)
		assert.Equal(t, []model.Record{{ID: "y", Vector: model.Vector{3}}}, nested)

		ps, err := s.ListPositions(ctx, model.PublicScope)
		require.NoError(t, err)
		assert.Empty(t, ps)
	})

	t.Run("Delete", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		for _, id := range []model.ItemID{"a", "b", "c"} {
			require.NoError(t, s.AppendVector(ctx, "alice", id, model.Vector{1}))
			require.NoError(t, s.SetPosition(ctx, "alice", id, model.Position{X: 1}))
		}

		require.NoError(t, s.Delete(ctx, "alice", "b"))
		require.NoError(t, s.Delete(ctx, "alice", "b"))
		require.NoError(t, s.Delete(ctx, "nobody", "b"))

		recs, err := s.GetVectors(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, model.ItemID("a"), recs[0].ID)
		assert.Equal(t, model.ItemID("c"), recs[1].ID)

		ps, err := s.ListPositions(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, ps, 2)

		assert.ErrorIs(t, s.SetPosition(ctx, "alice", "b", model.Position{}), store.ErrNotFound)

		require.NoError(t, s.AppendVector(ctx, "alice", "b", model.Vector{2}))
		recs, err = s.GetVectors(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, recs, 3)
		assert.Equal(t, model.ItemID("b"), recs[2].ID)
	})
}

func open(t *testing.T, newStore Factory) store.Store {
	t.Helper()
	s := newStore(t)
	t.Cleanup(func() { _ = store.Close(s) })
	return s
}
