package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecboard/model"
	"github.com/hupe1980/vecboard/store"
	"github.com/hupe1980/vecboard/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return New()
	})
}

func TestScopesAndClose(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.AppendVector(ctx, "b", "1", model.Vector{1}))
	require.NoError(t, s.AppendVector(ctx, model.PublicScope, "2", model.Vector{1}))
	assert.Equal(t, []model.Scope{model.PublicScope, "b"}, s.Scopes())

	require.NoError(t, store.Close(s))
	_, err := s.GetVectors(ctx, "b")
	assert.ErrorIs(t, err, store.ErrClosed)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().GetVectors(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
