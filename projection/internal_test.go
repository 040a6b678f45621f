package projection

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecboard/distance"
	"github.com/hupe1980/vecboard/testutil"
)

func TestFitCurve(t *testing.T) {
	a, b := fitCurve(DefaultSpread, DefaultMinDist)

	assert.InDelta(t, fallbackCurveA, a, 0.02)
	assert.InDelta(t, fallbackCurveB, b, 0.02)
}

func TestSmoothKNNDist(t *testing.T) {
	dists := [][]float64{
		{0, 0.5, 1.0, 2.0},
		{0, 0.1, 0.2, 0.3},
	}

	sigmas, rhos := smoothKNNDist(dists, 4)

	target := math.Log2(4)
	for i, row := range dists {
		assert.Equal(t, row[1], rhos[i])

		var psum float64
		for _, d := range row[1:] {
			psum += math.Exp(-math.Max(0, d-rhos[i]) / sigmas[i])
		}
		assert.InDelta(t, target, psum, 1e-4)
	}
}

func TestNearestNeighbors(t *testing.T) {
	vectors := testutil.NewRNG(1).UnitVectors(100, 16)

	serial, err := nearestNeighbors(context.Background(), vectors, 5, distance.Cosine, 1)
	require.NoError(t, err)
	parallel, err := nearestNeighbors(context.Background(), vectors, 5, distance.Cosine, 4)
	require.NoError(t, err)

	assert.Equal(t, serial, parallel)
	for i, row := range serial.indices {
		require.Len(t, row, 5)
		assert.Equal(t, i, row[0])
		assert.Equal(t, 0.0, serial.dists[i][0])
		for m := 2; m < len(row); m++ {
			assert.LessOrEqual(t, serial.dists[i][m-1], serial.dists[i][m])
		}
	}
}

func TestNearestNeighborsDuplicatesKeepSelfFirst(t *testing.T) {
	vectors := testutil.Repeat([]float32{1, 2}, 4)

	g, err := nearestNeighbors(context.Background(), vectors, 3, distance.Cosine, 1)
	require.NoError(t, err)

	for i, row := range g.indices {
		assert.Equal(t, i, row[0])
	}
	assert.Less(t, g.maxDistance(), collapseDistance)
}

func TestFuzzySimplicialSetSymmetric(t *testing.T) {
	vectors := testutil.NewRNG(3).UnitVectors(30, 8)

	g, err := nearestNeighbors(context.Background(), vectors, 6, distance.Cosine, 1)
	require.NoError(t, err)

	e := fuzzySimplicialSet(g, 6)
	require.Positive(t, e.len())

	weights := make(map[edgeKey]float64, e.len())
	for i := range e.weights {
		assert.NotEqual(t, e.head[i], e.tail[i])
		assert.Greater(t, e.weights[i], 0.0)
		assert.LessOrEqual(t, e.weights[i], 1.0)
		weights[edgeKey{e.head[i], e.tail[i]}] = e.weights[i]
	}
	for key, w := range weights {
		assert.Equal(t, w, weights[edgeKey{key.tail, key.head}])
	}

	pruned := e.prune(200)
	assert.LessOrEqual(t, pruned.len(), e.len())
}

func TestPostprocess(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("rescale", func(t *testing.T) {
		raw := [][2]float64{{-1, 2}, {1, 4}, {3, 6}}

		out, jittered := postprocess(raw, cfg)

		assert.False(t, jittered)
		sx, sy := testutil.AxisStd(out)
		assert.InDelta(t, 1000, sx, 1e-3)
		assert.InDelta(t, 1000, sy, 1e-3)
	})

	t.Run("collapsed axis jitters", func(t *testing.T) {
		raw := [][2]float64{{1, 5}, {2, 5}, {3, 5}}

		out, jittered := postprocess(raw, cfg)
		again, _ := postprocess(raw, cfg)

		assert.True(t, jittered)
		assert.Equal(t, out, again)
		assert.True(t, testutil.Distinct(out))
	})
}

func TestNeighborHeapKeepsBest(t *testing.T) {
	h := make(neighborHeap, 0, 3)
	for i, d := range []float64{5, 1, 4, 1, 9, 2} {
		h.offer(candidate{index: i, dist: d}, 3)
	}
	got := h.sorted()
	assert.Equal(t, []candidate{{index: 1, dist: 1}, {index: 3, dist: 1}, {index: 5, dist: 2}}, got)
	assert.Equal(t, 0, h.Len())
}

func TestProjectRecoversFromPanic(t *testing.T) {
	p := New()
	p.reduce = func([][]float32) ([][2]float64, error) {
		panic("index out of range")
	}
	vectors := [][]float32{{1, 0}, {0, 1}, {1, 1}}

	var res Result
	require.NotPanics(t, func() { res = p.Project(vectors) })

	assert.Equal(t, StrategyCircle, res.Strategy)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "index out of range")
	assert.Equal(t, Circle(3, DefaultFallbackRadius), res.Positions)
}
