// Package projection maps an ordered list of embedding vectors to an ordered
// list of 2D canvas positions.
//
// The mapping is pure and total: it never panics and never returns an error to
// the caller. Internal failures degrade to a deterministic circular layout and
// are reported on Result only for diagnostics.
//
// # Policy
//
//   - N = 0: empty result
//   - N = 1: the origin
//   - N = 2: a fixed symmetric pair (-PairOffset, 0), (PairOffset, 0)
//   - N ≥ 3: UMAP-style reduction over a cosine kNN graph, then per-axis
//     recentering and rescaling to a canvas-sized spread
//
// # Usage
//
//	positions := projection.Project(vectors)
//
//	p := projection.New(projection.WithNeighbors(10), projection.WithSeed(7))
//	res := p.Project(vectors)
//	fmt.Println(res.Strategy, res.Positions)
//
// Identical input produces identical output within one release; the fixed
// seed gives no cross-version reproducibility.
package projection
