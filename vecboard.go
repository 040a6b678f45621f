package vecboard

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/hupe1980/vecboard/embed"
	"github.com/hupe1980/vecboard/model"
	"github.com/hupe1980/vecboard/projection"
	"github.com/hupe1980/vecboard/store"
)

// DefaultProximityRadius is the canvas radius used by Nearby when no radius
// is given.
const DefaultProximityRadius = 300.0

// Coordinator owns the exclusive section around snapshot, projection and
// persistence of one store. It is safe for concurrent use.
type Coordinator struct {
	store     store.Store
	projector *projection.Projector
	sections  *sections
	recompute singleflight.Group
	limiter   *rate.Limiter
	rewrite   bool
	metrics   MetricsCollector
	logger    *Logger

	// mu orders registrations in inflight against Close.
	mu       sync.RWMutex
	closed   bool
	inflight sync.WaitGroup
}

// New creates a Coordinator on s.
func New(s store.Store, optFns ...Option) (*Coordinator, error) {
	if s == nil {
		return nil, errors.New("vecboard: store is required")
	}
	opts := applyOptions(optFns)

	c := &Coordinator{
		store:     s,
		projector: opts.projector,
		sections:  newSections(opts.scopedLocking),
		rewrite:   opts.rewriteOnInsert,
		metrics:   opts.metricsCollector,
		logger:    opts.logger,
	}
	if opts.recomputeLimit > 0 {
		burst := opts.recomputeBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(opts.recomputeLimit, burst)
	}
	return c, nil
}

// Store returns the underlying store.
func (c *Coordinator) Store() store.Store {
	return c.store
}

// Projector returns the projector used for layouts.
func (c *Coordinator) Projector() *projection.Projector {
	return c.projector
}

// Close rejects new operations and waits for running ones, including
// sections whose callers already returned. It does not close the store.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.inflight.Wait()
	return nil
}

// begin registers an operation on scope until the returned func is called.
func (c *Coordinator) begin(scope model.Scope) (func(), error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	c.inflight.Add(1)
	return c.inflight.Done, nil
}

// InsertAndProject appends vector as item id of scope and lays out the scope
// again. It returns one position per projected item in snapshot order, the
// new item last. Only the new item's position is persisted unless
// WithRewriteOnInsert is set.
//
// Stored records whose vector is empty, non-finite or of a different
// dimension than vector are excluded from the layout and logged. They are
// not deleted.
func (c *Coordinator) InsertAndProject(ctx context.Context, scope model.Scope, id model.ItemID, vector model.Vector) ([]model.Position, error) {
	start := time.Now()
	positions, err := c.insertAndProject(ctx, scope, id, vector)
	c.metrics.RecordInsert(time.Since(start), err)
	c.logger.LogInsert(ctx, scope, id, len(vector), len(positions), err)
	return positions, err
}

func (c *Coordinator) insertAndProject(ctx context.Context, scope model.Scope, id model.ItemID, vector model.Vector) ([]model.Position, error) {
	done, err := c.begin(scope)
	if err != nil {
		return nil, err
	}
	defer done()
	if err := validateItem(id, vector); err != nil {
		return nil, err
	}
	vector = store.CopyVector(vector)

	var positions []model.Position
	err = c.withSection(ctx, scope, func(ctx context.Context) error {
		snapshot, err := c.store.GetVectors(ctx, scope)
		if err != nil {
			return newStoreError("get_vectors", scope, err)
		}
		if slices.ContainsFunc(snapshot, func(r model.Record) bool { return r.ID == id }) {
			return newStoreError("append_vector", scope, store.ErrAlreadyExists)
		}

		kept := c.validated(ctx, scope, snapshot, len(vector))
		vectors := make([][]float32, 0, len(kept)+1)
		for _, rec := range kept {
			vectors = append(vectors, rec.Vector)
		}
		vectors = append(vectors, vector)

		out := c.project(ctx, scope, vectors)
		if len(out) == 0 {
			out = []model.Position{{}}
		}
		last := out[len(out)-1]

		if c.rewrite {
			for i, rec := range kept {
				if err := c.store.SetPosition(ctx, scope, rec.ID, out[i]); err != nil && !errors.Is(err, store.ErrNotFound) {
					return newStoreError("set_position", scope, err)
				}
			}
		}

		if err := c.store.AppendVector(ctx, scope, id, vector); err != nil {
			if !errors.Is(err, store.ErrAlreadyExists) {
				c.discard(ctx, scope, id)
				return newStoreError("append_vector", scope, err)
			}
			// The snapshot showed id absent under the section, so an earlier
			// attempt of this append landed without being acknowledged.
			c.logger.DebugContext(ctx, "append already applied", "scope", scope.String(), "id", id)
		}
		if err := c.store.SetPosition(ctx, scope, id, last); err != nil {
			c.discard(ctx, scope, id)
			return newStoreError("set_position", scope, err)
		}

		positions = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return positions, nil
}

// discard removes a partially written item.
func (c *Coordinator) discard(ctx context.Context, scope model.Scope, id model.ItemID) {
	if err := c.store.Delete(ctx, scope, id); err != nil {
		c.logger.ErrorContext(ctx, "compensating delete failed",
			"scope", scope.String(),
			"id", id,
			"error", err,
		)
	}
}

// InsertCaption embeds caption with e and inserts the result as item id.
func (c *Coordinator) InsertCaption(ctx context.Context, scope model.Scope, id model.ItemID, e embed.Embedder, caption embed.Caption) ([]model.Position, error) {
	vector, err := e.Embed(ctx, caption.Text())
	if err != nil {
		return nil, &EmbedError{ID: id, cause: err}
	}
	return c.InsertAndProject(ctx, scope, id, vector)
}

// RecomputeAll lays out every item of scope from one snapshot and overwrites
// all positions. Records whose vector does not match the scope's majority
// dimension keep their old position. It returns the number of positions
// written.
//
// Concurrent calls for the same scope share one run.
func (c *Coordinator) RecomputeAll(ctx context.Context, scope model.Scope) (int, error) {
	done, err := c.begin(scope)
	if err != nil {
		return 0, err
	}
	defer done()

	ch := c.recompute.DoChan(string(scope), func() (any, error) {
		// The flight may outlive every caller that joined it.
		finish, err := c.begin(scope)
		if err != nil {
			return 0, err
		}
		defer finish()
		if c.limiter != nil && !c.limiter.Allow() {
			return 0, errRateLimited
		}
		start := time.Now()
		n, err := c.recomputeAll(context.WithoutCancel(ctx), scope)
		c.metrics.RecordRecompute(n, time.Since(start), err)
		c.logger.LogRecompute(ctx, scope, n, err)
		return n, err
	})

	select {
	case res := <-ch:
		n, _ := res.Val.(int)
		return n, res.Err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (c *Coordinator) recomputeAll(ctx context.Context, scope model.Scope) (int, error) {
	var written int
	err := c.withSection(ctx, scope, func(ctx context.Context) error {
		snapshot, err := c.store.GetVectors(ctx, scope)
		if err != nil {
			return newStoreError("get_vectors", scope, err)
		}

		kept := c.validated(ctx, scope, snapshot, MajorityDimension(snapshot))
		if len(kept) == 0 {
			return nil
		}
		vectors := make([][]float32, len(kept))
		for i, rec := range kept {
			vectors[i] = rec.Vector
		}

		out := c.project(ctx, scope, vectors)
		for i, rec := range kept {
			err := c.store.SetPosition(ctx, scope, rec.ID, out[i])
			if errors.Is(err, store.ErrNotFound) {
				c.logger.WarnContext(ctx, "item vanished during recompute", "scope", scope.String(), "id", rec.ID)
				continue
			}
			if err != nil {
				return newStoreError("set_position", scope, err)
			}
			written++
		}
		return nil
	})
	return written, err
}

// Remove deletes the vector and position of item id. Removing an unknown item
// is not an error.
func (c *Coordinator) Remove(ctx context.Context, scope model.Scope, id model.ItemID) error {
	start := time.Now()
	err := c.remove(ctx, scope, id)
	c.metrics.RecordRemove(time.Since(start), err)
	c.logger.LogRemove(ctx, scope, id, err)
	return err
}

func (c *Coordinator) remove(ctx context.Context, scope model.Scope, id model.ItemID) error {
	done, err := c.begin(scope)
	if err != nil {
		return err
	}
	defer done()
	if id == "" {
		return ErrInvalidItemID
	}
	return c.withSection(ctx, scope, func(ctx context.Context) error {
		if err := c.store.Delete(ctx, scope, id); err != nil {
			return newStoreError("delete", scope, err)
		}
		return nil
	})
}

// Positions returns the stored positions of scope in insertion order.
func (c *Coordinator) Positions(ctx context.Context, scope model.Scope) ([]model.Placement, error) {
	done, err := c.begin(scope)
	if err != nil {
		return nil, err
	}
	defer done()
	placements, err := c.store.ListPositions(ctx, scope)
	if err != nil {
		return nil, newStoreError("list_positions", scope, err)
	}
	return placements, nil
}

// Nearby returns the stored placements of scope within radius of center,
// nearest first. A radius <= 0 selects DefaultProximityRadius. Nearby does
// not take the exclusive section.
func (c *Coordinator) Nearby(ctx context.Context, scope model.Scope, center model.Position, radius float64) ([]model.Placement, error) {
	if radius <= 0 {
		radius = DefaultProximityRadius
	}
	placements, err := c.Positions(ctx, scope)
	if err != nil {
		return nil, err
	}

	type hit struct {
		p    model.Placement
		dist float64
	}
	hits := make([]hit, 0, len(placements))
	for _, p := range placements {
		if d := p.Position.Distance(center); d <= radius {
			hits = append(hits, hit{p: p, dist: d})
		}
	}
	slices.SortStableFunc(hits, func(a, b hit) int { return cmp.Compare(a.dist, b.dist) })

	out := make([]model.Placement, len(hits))
	for i, h := range hits {
		out[i] = h.p
	}
	return out, nil
}

// validated filters snapshot for a projection of dim-dimensional vectors and
// reports every excluded record.
func (c *Coordinator) validated(ctx context.Context, scope model.Scope, snapshot []model.Record, dim int) []model.Record {
	kept, dropped := Validate(snapshot, dim)
	if dropped.IsEmpty() {
		return kept
	}
	it := dropped.Iterator()
	for it.HasNext() {
		rec := snapshot[it.Next()]
		reason := InvalidReason(rec.Vector, dim)
		c.metrics.RecordDropped(reason)
		c.logger.LogDropped(ctx, scope, rec.ID, reason, len(rec.Vector), dim)
	}
	return kept
}

func (c *Coordinator) project(ctx context.Context, scope model.Scope, vectors [][]float32) []model.Position {
	start := time.Now()
	res := c.projector.Project(vectors)
	c.metrics.RecordProjection(len(vectors), res.Strategy.String(), time.Since(start))
	c.logger.LogProjection(ctx, scope, len(vectors), res.Strategy.String(), res.Err)
	return res.Positions
}
