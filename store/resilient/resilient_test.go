package resilient

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecboard/model"
	"github.com/hupe1980/vecboard/store"
	"github.com/hupe1980/vecboard/store/memory"
	"github.com/hupe1980/vecboard/store/storetest"
)

var errTransient = errors.New("connection reset")

// flaky fails the first n calls of every operation with errTransient.
type flaky struct {
	store.Store
	failures atomic.Int64
	calls    atomic.Int64
}

func newFlaky(n int64) *flaky {
	f := &flaky{Store: memory.New()}
	f.failures.Store(n)
	return f
}

func (f *flaky) fail() error {
	f.calls.Add(1)
	if f.failures.Add(-1) >= 0 {
		return errTransient
	}
	return nil
}

func (f *flaky) GetVectors(ctx context.Context, scope model.Scope) ([]model.Record, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.Store.GetVectors(ctx, scope)
}

func (f *flaky) AppendVector(ctx context.Context, scope model.Scope, id model.ItemID, v model.Vector) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.Store.AppendVector(ctx, scope, id, v)
}

func (f *flaky) SetPosition(ctx context.Context, scope model.Scope, id model.ItemID, pos model.Position) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.Store.SetPosition(ctx, scope, id, pos)
}

func fast(o *Options) {
	o.BaseDelay = time.Millisecond
	o.MaxDelay = 2 * time.Millisecond
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return New(memory.New(), fast)
	})
}

func TestRetriesTransientErrors(t *testing.T) {
	ctx := context.Background()
	f := newFlaky(2)
	s := New(f, fast)

	require.NoError(t, s.AppendVector(ctx, "alice", "a", model.Vector{1}))
	assert.Equal(t, int64(3), f.calls.Load())

	recs, err := s.GetVectors(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.ItemID("a"), recs[0].ID)
}

func TestGivesUpAfterMaxRetries(t *testing.T) {
	f := newFlaky(100)
	s := New(f, fast, func(o *Options) {
		o.MaxRetries = 2
		o.FailureThreshold = 100
	})

	err := s.AppendVector(context.Background(), "alice", "a", model.Vector{1})
	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, int64(3), f.calls.Load())
}

func TestContractErrorsAreNotRetried(t *testing.T) {
	ctx := context.Background()
	f := newFlaky(0)
	s := New(f, fast, func(o *Options) { o.FailureThreshold = 1 })

	err := s.SetPosition(ctx, "alice", "missing", model.Position{})
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, int64(1), f.calls.Load())

	require.NoError(t, s.AppendVector(ctx, "alice", "a", model.Vector{1}))
	err = s.AppendVector(ctx, "alice", "a", model.Vector{1})
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	assert.Equal(t, gobreaker.StateClosed, s.State())
}

func TestBreakerOpens(t *testing.T) {
	ctx := context.Background()
	f := newFlaky(100)
	s := New(f, fast, func(o *Options) {
		o.MaxRetries = 0
		o.FailureThreshold = 2
		o.OpenTimeout = time.Hour
	})

	require.ErrorIs(t, s.AppendVector(ctx, "alice", "a", model.Vector{1}), errTransient)
	require.ErrorIs(t, s.AppendVector(ctx, "alice", "a", model.Vector{1}), errTransient)
	assert.Equal(t, gobreaker.StateOpen, s.State())

	calls := f.calls.Load()
	err := s.AppendVector(ctx, "alice", "a", model.Vector{1})
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, calls, f.calls.Load())
}

func TestCancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newFlaky(100)
	s := New(f, func(o *Options) { o.BaseDelay = time.Hour })

	err := s.AppendVector(ctx, "alice", "a", model.Vector{1})
	require.Error(t, err)
	assert.LessOrEqual(t, f.calls.Load(), int64(1))
}
