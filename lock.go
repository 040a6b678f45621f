package vecboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/vecboard/model"
)

// sections hands out the exclusive section guarding snapshot-to-persist.
// Without scoping there is one section for every scope.
type sections struct {
	scoped bool
	global *semaphore.Weighted

	mu       sync.Mutex
	perScope map[model.Scope]*semaphore.Weighted
}

func newSections(scoped bool) *sections {
	return &sections{
		scoped:   scoped,
		global:   semaphore.NewWeighted(1),
		perScope: make(map[model.Scope]*semaphore.Weighted),
	}
}

func (s *sections) get(scope model.Scope) *semaphore.Weighted {
	if !s.scoped {
		return s.global
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sem, ok := s.perScope[scope]
	if !ok {
		sem = semaphore.NewWeighted(1)
		s.perScope[scope] = sem
	}
	return sem
}

// PanicError is returned when an exclusive section panicked. The section is
// released before the error is returned.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("vecboard: section panicked: %v", e.Value)
}

// withSection runs fn inside the scope's exclusive section.
//
// Waiting for the section honours ctx. Once acquired, fn runs to completion
// on a context detached from ctx's cancellation in its own goroutine, and the
// section is always released. If ctx ends first, withSection returns
// ctx.Err() and the section finishes in the background.
func (c *Coordinator) withSection(ctx context.Context, scope model.Scope, fn func(ctx context.Context) error) error {
	sem := c.sections.get(scope)

	start := time.Now()
	if err := sem.Acquire(ctx, 1); err != nil {
		return err
	}
	c.metrics.RecordLockWait(time.Since(start))

	c.inflight.Add(1)
	done := make(chan error, 1)
	detached := context.WithoutCancel(ctx)

	go func() {
		var err error
		defer func() { done <- err }()
		defer c.inflight.Done()
		defer sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Value: r}
			}
		}()
		err = fn(detached)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		select {
		case err := <-done:
			return err
		default:
		}
		c.logger.WarnContext(ctx, "caller left before section completed",
			"scope", scope.String(),
			"error", ctx.Err(),
		)
		return ctx.Err()
	}
}
