// Package model defines core types used throughout vecboard.
//
// # Identity Types
//
//   - Scope: partition of the item universe (one user, or PublicScope)
//   - ItemID: stable identifier of a board item
//
// # Data Types
//
//   - Record: an item's embedding vector as returned by a snapshot read
//   - Position: 2D canvas coordinate in canvas units
//   - Placement: an item's stored Position
package model
