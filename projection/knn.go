package projection

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecboard/distance"
)

// parallelThreshold is the point count below which the kNN graph is built on
// the calling goroutine.
const parallelThreshold = 64

// knnGraph holds the k nearest neighbors of every point, self included at
// position 0, ordered by ascending distance.
type knnGraph struct {
	indices [][]int
	dists   [][]float64
}

// nearestNeighbors computes the exact kNN graph. Rows are independent, so each
// worker writes only its own rows and the result does not depend on scheduling.
func nearestNeighbors(ctx context.Context, vectors [][]float32, k int, fn distance.Func, workers int) (*knnGraph, error) {
	n := len(vectors)
	g := &knnGraph{
		indices: make([][]int, n),
		dists:   make([][]float64, n),
	}

	row := func(i int) error {
		h := make(neighborHeap, 0, k-1)
		for j := range vectors {
			if i == j {
				continue
			}
			d := fn(vectors[i], vectors[j])
			if math.IsNaN(d) || math.IsInf(d, 0) {
				return fmt.Errorf("%w: distance(%d, %d)", ErrNonFinite, i, j)
			}
			h.offer(candidate{index: j, dist: d}, k-1)
		}

		// Self always comes first, even against exact duplicates.
		idx := make([]int, 1, k)
		ds := make([]float64, 1, k)
		idx[0] = i
		for _, c := range h.sorted() {
			idx = append(idx, c.index)
			ds = append(ds, c.dist)
		}
		g.indices[i] = idx
		g.dists[i] = ds
		return nil
	}

	if n < parallelThreshold || workers <= 1 {
		for i := 0; i < n; i++ {
			if err := row(i); err != nil {
				return nil, err
			}
		}
		return g, nil
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := 0; i < n; i++ {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return row(i)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return g, nil
}

// maxDistance returns the largest non-self neighbor distance in the graph.
func (g *knnGraph) maxDistance() float64 {
	var m float64
	for _, row := range g.dists {
		for _, d := range row[1:] {
			m = max(m, d)
		}
	}
	return m
}
