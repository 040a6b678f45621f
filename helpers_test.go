package vecboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/vecboard/model"
	"github.com/hupe1980/vecboard/store"
	"github.com/hupe1980/vecboard/store/memory"
)

// instrumented wraps a memory store, tracks concurrent calls and can inject
// delays, failures and blocking points.
type instrumented struct {
	*memory.Store

	delay time.Duration

	active    atomic.Int64
	maxActive atomic.Int64
	getCalls  atomic.Int64

	mu         sync.Mutex
	failAppend error
	// lostAppends makes the next n appends land and then report a timeout.
	lostAppends int
	failSetPos  error
	panicOnGet  bool
	gateGet     chan struct{}
	enteredGet  chan model.Scope
	gateScope   model.Scope
}

func newInstrumented() *instrumented {
	return &instrumented{Store: memory.New()}
}

func (s *instrumented) enter() func() {
	n := s.active.Add(1)
	for {
		m := s.maxActive.Load()
		if n <= m || s.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return func() { s.active.Add(-1) }
}

// block makes GetVectors of scope announce itself on the returned channel
// and wait until release is called.
func (s *instrumented) block(scope model.Scope) (entered <-chan model.Scope, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gateGet = make(chan struct{})
	s.enteredGet = make(chan model.Scope, 16)
	s.gateScope = scope
	gate := s.gateGet
	var once sync.Once
	return s.enteredGet, func() { once.Do(func() { close(gate) }) }
}

func (s *instrumented) GetVectors(ctx context.Context, scope model.Scope) ([]model.Record, error) {
	defer s.enter()()
	s.getCalls.Add(1)

	s.mu.Lock()
	gate, entered, gateScope := s.gateGet, s.enteredGet, s.gateScope
	doPanic := s.panicOnGet
	s.panicOnGet = false
	s.mu.Unlock()

	if doPanic {
		panic("boom")
	}
	if gate != nil && scope == gateScope {
		entered <- scope
		<-gate
	}
	return s.Store.GetVectors(ctx, scope)
}

func (s *instrumented) AppendVector(ctx context.Context, scope model.Scope, id model.ItemID, v model.Vector) error {
	defer s.enter()()
	s.mu.Lock()
	err := s.failAppend
	lost := s.lostAppends > 0
	if lost {
		s.lostAppends--
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if err := s.Store.AppendVector(ctx, scope, id, v); err != nil {
		return err
	}
	if lost {
		return errTimeout
	}
	return nil
}

func (s *instrumented) SetPosition(ctx context.Context, scope model.Scope, id model.ItemID, pos model.Position) error {
	defer s.enter()()
	s.mu.Lock()
	err := s.failSetPos
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.SetPosition(ctx, scope, id, pos)
}

func (s *instrumented) Delete(ctx context.Context, scope model.Scope, id model.ItemID) error {
	defer s.enter()()
	return s.Store.Delete(ctx, scope, id)
}

var _ store.Store = (*instrumented)(nil)

var errTimeout = errors.New("i/o timeout")

func vec(xs ...float32) model.Vector { return xs }
