package vecboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/vecboard/model"
	"github.com/hupe1980/vecboard/store"
)

var (
	// ErrClosed is returned by operations on a closed Coordinator.
	ErrClosed = errors.New("vecboard: coordinator closed")

	// ErrRateLimited is returned when a recompute exceeds the configured rate.
	// It is retryable.
	ErrRateLimited = errors.New("vecboard: recompute rate limited")

	// ErrRetryable matches every error that a caller may retry unchanged.
	ErrRetryable = errors.New("vecboard: retryable")

	// ErrInvalidScope is returned for scope names that are not valid UTF-8,
	// contain NUL bytes or exceed MaxScopeLength.
	ErrInvalidScope = errors.New("vecboard: invalid scope")

	// ErrInvalidItemID is returned for an empty item id.
	ErrInvalidItemID = errors.New("vecboard: invalid item id")
)

// ErrInvalidVector indicates a caller-supplied vector that cannot be projected.
// It is a caller defect and is not retryable.
type ErrInvalidVector struct {
	ID     model.ItemID
	Reason string
}

func (e *ErrInvalidVector) Error() string {
	return fmt.Sprintf("vecboard: invalid vector for item %q: %s", e.ID, e.Reason)
}

// StoreError wraps a failure of the store collaborator. Nothing of the failed
// operation has been persisted.
//
// The original underlying error can be accessed via errors.Unwrap.
type StoreError struct {
	Op    string
	Scope model.Scope
	cause error
}

func newStoreError(op string, scope model.Scope, cause error) *StoreError {
	return &StoreError{Op: op, Scope: scope, cause: cause}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("vecboard: store %s (scope %s): %v", e.Op, e.Scope, e.cause)
}

func (e *StoreError) Unwrap() error { return e.cause }

// Is reports ErrRetryable for transient failures. Contract violations such as
// a duplicate id are not retryable.
func (e *StoreError) Is(target error) bool {
	return target == ErrRetryable && retryable(e.cause)
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, store.ErrAlreadyExists),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrClosed),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

type rateLimitedError struct{}

func (rateLimitedError) Error() string { return ErrRateLimited.Error() }

func (rateLimitedError) Is(target error) bool {
	return target == ErrRateLimited || target == ErrRetryable
}

// errRateLimited matches both ErrRateLimited and ErrRetryable.
var errRateLimited error = rateLimitedError{}

// EmbedError wraps a failure of the embedder used by InsertCaption.
type EmbedError struct {
	ID    model.ItemID
	cause error
}

func (e *EmbedError) Error() string {
	return fmt.Sprintf("vecboard: embed caption of item %q: %v", e.ID, e.cause)
}

func (e *EmbedError) Unwrap() error { return e.cause }
