// Package resilient wraps a store.Store with retries and a circuit breaker.
//
// Transient backend failures are retried with exponential backoff. Repeated
// failures open the breaker so callers fail fast with ErrUnavailable until the
// backend has had time to recover. Contract errors (ErrNotFound,
// ErrAlreadyExists) and caller cancellation are never retried and never count
// against the breaker.
package resilient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/hupe1980/vecboard/model"
	"github.com/hupe1980/vecboard/store"
)

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("resilient: store unavailable")

// Options configures the wrapper.
type Options struct {
	// Name identifies the breaker in logs.
	Name string
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries uint64
	// BaseDelay is the first backoff delay.
	BaseDelay time.Duration
	// MaxDelay caps a single backoff delay.
	MaxDelay time.Duration
	// FailureThreshold is the number of consecutive failed calls that opens
	// the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of probes allowed while half-open.
	HalfOpenRequests uint32
	// Logger receives breaker state changes. Nil disables logging.
	Logger *slog.Logger
}

// DefaultOptions returns production defaults.
func DefaultOptions() Options {
	return Options{
		Name:             "store",
		MaxRetries:       3,
		BaseDelay:        50 * time.Millisecond,
		MaxDelay:         time.Second,
		FailureThreshold: 5,
		OpenTimeout:      10 * time.Second,
		HalfOpenRequests: 1,
	}
}

// Store is a store.Store that retries and sheds load on a failing backend.
type Store struct {
	inner   store.Store
	opts    Options
	breaker *gobreaker.CircuitBreaker[any]
}

var _ store.Store = (*Store)(nil)

// New wraps inner.
func New(inner store.Store, optFns ...func(o *Options)) *Store {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Store{inner: inner, opts: opts}
	s.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: opts.HalfOpenRequests,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || permanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if opts.Logger != nil {
				opts.Logger.Warn("store breaker state changed", "name", name, "from", from.String(), "to", to.String())
			}
		},
	})
	return s
}

// State returns the breaker state.
func (s *Store) State() gobreaker.State {
	return s.breaker.State()
}

// Unwrap returns the wrapped store.
func (s *Store) Unwrap() store.Store {
	return s.inner
}

// Close closes the wrapped store.
func (s *Store) Close() error {
	return store.Close(s.inner)
}

// permanent reports whether err must be returned to the caller as-is.
func permanent(err error) bool {
	return errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, store.ErrAlreadyExists) ||
		errors.Is(err, store.ErrClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (s *Store) backoff() retry.Backoff {
	b := retry.NewExponential(s.opts.BaseDelay)
	if s.opts.MaxDelay > 0 {
		b = retry.WithCappedDuration(s.opts.MaxDelay, b)
	}
	b = retry.WithJitterPercent(10, b)
	return retry.WithMaxRetries(s.opts.MaxRetries, b)
}

func (s *Store) do(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	var out any
	err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		v, err := s.breaker.Execute(func() (any, error) { return fn(ctx) })
		switch {
		case err == nil:
			out = v
			return nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		case permanent(err):
			return err
		default:
			return retry.RetryableError(err)
		}
	})
	return out, err
}

func (s *Store) exec(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := s.do(ctx, func(ctx context.Context) (any, error) { return nil, fn(ctx) })
	return err
}

// GetVectors implements store.Store.
func (s *Store) GetVectors(ctx context.Context, scope model.Scope) ([]model.Record, error) {
	v, err := s.do(ctx, func(ctx context.Context) (any, error) { return s.inner.GetVectors(ctx, scope) })
	if err != nil {
		return nil, err
	}
	recs, _ := v.([]model.Record)
	return recs, nil
}

// AppendVector implements store.Store. A retry after an ambiguous failure
// may observe ErrAlreadyExists for the write that did land.
func (s *Store) AppendVector(ctx context.Context, scope model.Scope, id model.ItemID, vector model.Vector) error {
	return s.exec(ctx, func(ctx context.Context) error { return s.inner.AppendVector(ctx, scope, id, vector) })
}

// SetPosition implements store.Store.
func (s *Store) SetPosition(ctx context.Context, scope model.Scope, id model.ItemID, pos model.Position) error {
	return s.exec(ctx, func(ctx context.Context) error { return s.inner.SetPosition(ctx, scope, id, pos) })
}

// ListPositions implements store.Store.
func (s *Store) ListPositions(ctx context.Context, scope model.Scope) ([]model.Placement, error) {
	v, err := s.do(ctx, func(ctx context.Context) (any, error) { return s.inner.ListPositions(ctx, scope) })
	if err != nil {
		return nil, err
	}
	ps, _ := v.([]model.Placement)
	return ps, nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, scope model.Scope, id model.ItemID) error {
	return s.exec(ctx, func(ctx context.Context) error { return s.inner.Delete(ctx, scope, id) })
}
