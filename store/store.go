package store

import (
	"context"
	"errors"

	"github.com/hupe1980/vecboard/model"
)

var (
	// ErrNotFound is returned when an operation references an unknown item.
	ErrNotFound = errors.New("store: item not found")
	// ErrAlreadyExists is returned when appending an id that already has a vector.
	ErrAlreadyExists = errors.New("store: item already exists")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store: closed")
)

// Store persists vectors and positions per scope.
type Store interface {
	// GetVectors returns the scope's records in insertion order. An unknown
	// scope yields an empty slice.
	GetVectors(ctx context.Context, scope model.Scope) ([]model.Record, error)
	// AppendVector adds a new item at the end of the scope's order.
	AppendVector(ctx context.Context, scope model.Scope, id model.ItemID, vector model.Vector) error
	// SetPosition stores or overwrites the item's position. It returns
	// ErrNotFound if the item has no vector.
	SetPosition(ctx context.Context, scope model.Scope, id model.ItemID, pos model.Position) error
	// ListPositions returns the positioned items of the scope in insertion order.
	ListPositions(ctx context.Context, scope model.Scope) ([]model.Placement, error)
	// Delete removes the item's vector and position. Deleting an unknown item
	// is not an error.
	Delete(ctx context.Context, scope model.Scope, id model.ItemID) error
}

// Closer is implemented by stores that hold resources.
type Closer interface {
	Close() error
}

// Close closes s if it implements Closer.
func Close(s Store) error {
	if c, ok := s.(Closer); ok {
		return c.Close()
	}
	return nil
}

// CopyVector returns an independent copy of v.
func CopyVector(v model.Vector) model.Vector {
	if v == nil {
		return nil
	}
	out := make(model.Vector, len(v))
	copy(out, v)
	return out
}
