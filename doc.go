// Package vecboard lays out a personal media board on an infinite 2D canvas.
//
// Every item carries a semantic vector. A Coordinator keeps one store of
// vectors and positions per scope (one user, or the public board) and places
// items so that similar items end up close to each other.
//
// # Quick Start
//
//	c, _ := vecboard.New(memory.New())
//	positions, _ := c.InsertAndProject(ctx, "alice", "item-1", vector)
//	pos := positions[len(positions)-1] // the new item's position
//
// # Insert Path
//
// InsertAndProject takes a snapshot of the scope, drops stored vectors that
// cannot be projected together with the new one, appends the new vector,
// projects everything and persists the new item's vector and position. The
// whole sequence runs inside one exclusive section so concurrent uploads
// never project from a stale snapshot.
//
// Existing items keep their stored positions. RecomputeAll re-lays the whole
// scope from one snapshot:
//
//	n, _ := c.RecomputeAll(ctx, "alice")
//
// # Concurrency
//
// By default one section serialises every operation of the Coordinator.
// WithScopedLocking keys the section by scope. A caller whose context ends
// while its section runs gets ctx.Err() back; the section itself completes
// in the background and is always released.
//
// # Errors
//
// Invalid caller input yields *ErrInvalidVector. Store failures yield
// *StoreError, which matches ErrRetryable unless the failure is a contract
// violation such as a duplicate id. Projection never fails: degenerate input
// falls back to a jittered or circular layout.
//
// # Storage
//
// Package store defines the Store collaborator. Backends live in
// store/memory, store/blob (local disk, MinIO, S3), store/badger, store/bolt,
// store/dynamo and store/redis. store/resilient adds retries and a circuit
// breaker in front of any of them.
package vecboard
