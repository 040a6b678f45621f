package projection

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecboard/distance"
	"github.com/hupe1980/vecboard/model"
	"github.com/hupe1980/vecboard/testutil"
)

func TestProjectFixedCases(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		res := New().Project(nil)
		require.NotNil(t, res.Positions)
		assert.Empty(t, res.Positions)
		assert.Equal(t, StrategyEmpty, res.Strategy)
	})

	t.Run("single", func(t *testing.T) {
		res := New().Project([][]float32{{0.3, 0.4}})
		assert.Equal(t, []model.Position{{X: 0, Y: 0}}, res.Positions)
		assert.Equal(t, StrategySingle, res.Strategy)
	})

	t.Run("pair", func(t *testing.T) {
		res := New().Project([][]float32{{1, 0}, {0, 1}})
		assert.Equal(t, []model.Position{{X: -500, Y: 0}, {X: 500, Y: 0}}, res.Positions)
		assert.Equal(t, StrategyPair, res.Strategy)
	})

	t.Run("pair offset option", func(t *testing.T) {
		res := New(WithPairOffset(10)).Project([][]float32{{1}, {2}})
		assert.Equal(t, []model.Position{{X: -10}, {X: 10}}, res.Positions)
	})

	t.Run("package level", func(t *testing.T) {
		assert.Empty(t, Project(nil))
		assert.Len(t, Project([][]float32{{1}}), 1)
	})
}

func TestProjectPreservesLengthAndOrder(t *testing.T) {
	rng := testutil.NewRNG(4711)

	for _, n := range []int{3, 4, 7, 16, 40, 90} {
		vectors := rng.UnitVectors(n, 24)

		res := New().Project(vectors)

		require.Len(t, res.Positions, n, "n=%d", n)
		assert.Equal(t, StrategyUMAP, res.Strategy, "n=%d", n)
		assert.NoError(t, res.Err)
		for i, p := range res.Positions {
			assert.True(t, p.IsFinite(), "n=%d i=%d", n, i)
		}
	}
}

func TestProjectThreeVectors(t *testing.T) {
	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}, {1, 1, 0}}

	res := New().Project(vectors)

	require.Len(t, res.Positions, 3)
	assert.Equal(t, StrategyUMAP, res.Strategy)
	for _, p := range res.Positions {
		assert.True(t, p.IsFinite())
	}

	mx, my := testutil.AxisMean(res.Positions)
	assert.InDelta(t, 0, mx, 1e-6)
	assert.InDelta(t, 0, my, 1e-6)

	sx, sy := testutil.AxisStd(res.Positions)
	assert.InDelta(t, DefaultScaleFactor, sx, 1)
	assert.InDelta(t, DefaultScaleFactor, sy, 1)
}

func TestProjectIdenticalVectorsJitter(t *testing.T) {
	vectors := testutil.Repeat([]float32{0.1, 0.2, 0.3, 0.4}, 6)

	res := New().Project(vectors)

	require.Len(t, res.Positions, 6)
	assert.Equal(t, StrategyJitter, res.Strategy)
	assert.True(t, testutil.Distinct(res.Positions))
	for _, p := range res.Positions {
		assert.True(t, p.IsFinite())
	}

	sx, sy := testutil.AxisStd(res.Positions)
	assert.Greater(t, sx, 1.0)
	assert.Greater(t, sy, 1.0)
}

func TestProjectDeterministic(t *testing.T) {
	vectors := testutil.NewRNG(7).ClusteredVectors(90, 32, 3, 0.05)

	first := New().Project(vectors)
	second := New().Project(vectors)
	serial := New(WithWorkers(1)).Project(vectors)
	parallel := New(WithWorkers(8)).Project(vectors)

	assert.Equal(t, first.Positions, second.Positions)
	assert.Equal(t, serial.Positions, parallel.Positions)

	other := New(WithSeed(43)).Project(vectors)
	assert.NotEqual(t, first.Positions, other.Positions)
}

func TestProjectCircleFallback(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	tests := []struct {
		name    string
		vectors [][]float32
	}{
		{"ragged", [][]float32{{1, 0}, {0, 1}, {1}}},
		{"zero dimension", [][]float32{{}, {}, {}}},
		{"nan", [][]float32{{1, 0}, {nan, 1}, {1, 1}}},
		{"inf", [][]float32{{1, 0}, {0, 1}, {inf, 1}, {0, 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New().Project(tt.vectors)

			assert.Equal(t, StrategyCircle, res.Strategy)
			assert.ErrorIs(t, res.Err, ErrInvalidInput)
			assert.Equal(t, Circle(len(tt.vectors), DefaultFallbackRadius), res.Positions)
		})
	}

	t.Run("unknown metric", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Metric = distance.Metric(99)

		res := New(WithConfig(cfg)).Project([][]float32{{1, 0}, {0, 1}, {1, 1}})

		assert.Equal(t, StrategyCircle, res.Strategy)
		assert.Error(t, res.Err)
		assert.Len(t, res.Positions, 3)
	})

	t.Run("non-finite layout", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.LearningRate = math.Inf(1)
		vectors := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 0}, {0, 1, 1}}

		res := New(WithConfig(cfg)).Project(vectors)

		assert.Equal(t, StrategyCircle, res.Strategy)
		assert.ErrorIs(t, res.Err, ErrNonFinite)
		assert.Equal(t, Circle(len(vectors), DefaultFallbackRadius), res.Positions)
	})
}

func TestCircle(t *testing.T) {
	ps := Circle(4, 600)

	want := []model.Position{{X: 600}, {Y: 600}, {X: -600}, {Y: -600}}
	for i := range want {
		assert.InDelta(t, want[i].X, ps[i].X, 1e-9)
		assert.InDelta(t, want[i].Y, ps[i].Y, 1e-9)
	}
	assert.Empty(t, Circle(0, 600))
}

func TestStrategyString(t *testing.T) {
	assert.Equal(t, "umap", StrategyUMAP.String())
	assert.Equal(t, "circle", StrategyCircle.String())
	assert.Equal(t, "Strategy(42)", Strategy(42).String())
}

func TestNewSanitizesConfig(t *testing.T) {
	cfg := New(WithEpochs(-1), WithWorkers(0)).Config()

	assert.Equal(t, DefaultEpochs, cfg.Epochs)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 2, cfg.neighborCount(3))
	assert.Equal(t, 15, cfg.neighborCount(100))
	assert.Equal(t, 2, New(WithNeighbors(1)).Config().neighborCount(50))
}
