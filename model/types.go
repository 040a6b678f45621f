package model

import (
	"fmt"
	"math"
)

// Scope partitions items and vectors. A projection never mixes scopes.
type Scope string

// PublicScope is the scope of anonymous/public items.
const PublicScope Scope = ""

// String returns a printable representation of the scope.
func (s Scope) String() string {
	if s == PublicScope {
		return "public"
	}
	return string(s)
}

// ItemID is the user-facing stable identifier of a board item.
type ItemID string

// Vector is an embedding vector. Its dimension is fixed by the upstream
// embedding service for the lifetime of a scope's dataset.
type Vector = []float32

// Record is one (id, vector) pair of a snapshot.
type Record struct {
	ID     ItemID
	Vector Vector
}

// Position is a canvas coordinate in canvas units, centered near the origin.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// String returns a string representation of the Position.
func (p Position) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", p.X, p.Y)
}

// IsFinite reports whether both coordinates are finite numbers.
func (p Position) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Distance returns the euclidean distance between p and q.
func (p Position) Distance(q Position) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Placement is an item's stored canvas position.
type Placement struct {
	ID       ItemID   `json:"id"`
	Position Position `json:"position"`
}
