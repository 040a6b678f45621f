// Package memory provides an in-process Store.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/hupe1980/vecboard/model"
	"github.com/hupe1980/vecboard/store"
)

type scopeData struct {
	order     []model.ItemID
	vectors   map[model.ItemID]model.Vector
	positions map[model.ItemID]model.Position
}

// Store is a map-backed store.Store. It is safe for concurrent use and
// copies vectors on the way in and out.
type Store struct {
	mu     sync.RWMutex
	scopes map[model.Scope]*scopeData
	closed bool
}

var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{scopes: make(map[model.Scope]*scopeData)}
}

func (s *Store) scope(scope model.Scope, create bool) *scopeData {
	d, ok := s.scopes[scope]
	if !ok && create {
		d = &scopeData{
			vectors:   make(map[model.ItemID]model.Vector),
			positions: make(map[model.ItemID]model.Position),
		}
		s.scopes[scope] = d
	}
	return d
}

// GetVectors implements store.Store.
func (s *Store) GetVectors(ctx context.Context, scope model.Scope) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	d := s.scope(scope, false)
	if d == nil {
		return []model.Record{}, nil
	}
	out := make([]model.Record, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, model.Record{ID: id, Vector: store.CopyVector(d.vectors[id])})
	}
	return out, nil
}

// AppendVector implements store.Store.
func (s *Store) AppendVector(ctx context.Context, scope model.Scope, id model.ItemID, vector model.Vector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	d := s.scope(scope, true)
	if _, ok := d.vectors[id]; ok {
		return store.ErrAlreadyExists
	}
	d.vectors[id] = store.CopyVector(vector)
	d.order = append(d.order, id)
	return nil
}

// SetPosition implements store.Store.
func (s *Store) SetPosition(ctx context.Context, scope model.Scope, id model.ItemID, pos model.Position) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	d := s.scope(scope, false)
	if d == nil {
		return store.ErrNotFound
	}
	if _, ok := d.vectors[id]; !ok {
		return store.ErrNotFound
	}
	d.positions[id] = pos
	return nil
}

// ListPositions implements store.Store.
func (s *Store) ListPositions(ctx context.Context, scope model.Scope) ([]model.Placement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	d := s.scope(scope, false)
	if d == nil {
		return []model.Placement{}, nil
	}
	out := make([]model.Placement, 0, len(d.positions))
	for _, id := range d.order {
		if pos, ok := d.positions[id]; ok {
			out = append(out, model.Placement{ID: id, Position: pos})
		}
	}
	return out, nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, scope model.Scope, id model.ItemID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	d := s.scope(scope, false)
	if d == nil {
		return nil
	}
	if _, ok := d.vectors[id]; !ok {
		return nil
	}
	delete(d.vectors, id)
	delete(d.positions, id)
	d.order = slices.DeleteFunc(d.order, func(x model.ItemID) bool { return x == id })
	return nil
}

// Scopes returns the scopes that currently hold items.
func (s *Store) Scopes() []model.Scope {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Scope, 0, len(s.scopes))
	for scope, d := range s.scopes {
		if len(d.order) > 0 {
			out = append(out, scope)
		}
	}
	slices.Sort(out)
	return out
}

// Close releases the maps. Further calls return store.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.scopes = nil
	return nil
}
