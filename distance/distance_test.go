package distance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDot(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 32},
		{"Zero", []float32{0, 0, 0}, []float32{0, 0, 0}, 0},
		{"Mixed", []float32{1, -1, 2}, []float32{1, 1, -2}, -4},
		{"Empty", []float32{}, []float32{}, 0},
		{"Single", []float32{2}, []float32{3}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dot(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}
}

func TestSquaredL2(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 27},
		{"Identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"Mixed", []float32{1, -1}, []float32{-1, 1}, 8},
		{"Empty", []float32{}, []float32{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, SquaredL2(tt.a, tt.b), 1e-9)
			assert.InDelta(t, math.Sqrt(tt.expected), L2(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"Identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 0},
		{"Scaled", []float32{1, 1, 0}, []float32{3, 3, 0}, 0},
		{"Orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 1},
		{"Opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"Diagonal", []float32{1, 0, 0}, []float32{1, 1, 0}, 1 - 1/math.Sqrt2},
		{"BothZero", []float32{0, 0}, []float32{0, 0}, 0},
		{"OneZero", []float32{0, 0}, []float32{1, 0}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Cosine(tt.a, tt.b), 1e-6)
		})
	}
}

func TestNormalizeL2(t *testing.T) {
	v := []float32{3, 4}
	require.True(t, NormalizeL2InPlace(v))
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	_, ok := NormalizeL2Copy([]float32{0, 0})
	assert.False(t, ok)
	assert.False(t, NormalizeL2InPlace(nil))

	src := []float32{0, 2}
	dst, ok := NormalizeL2Copy(src)
	require.True(t, ok)
	assert.Equal(t, []float32{0, 2}, src)
	assert.Equal(t, []float32{0, 1}, dst)
}

func TestParseMetric(t *testing.T) {
	for name, want := range map[string]Metric{
		"cosine":    MetricCosine,
		"COSINE":    MetricCosine,
		"euclidean": MetricL2,
		"l2":        MetricL2,
		"dot":       MetricDot,
	} {
		got, err := ParseMetric(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseMetric("manhattan")
	assert.Error(t, err)
}

func TestProvider(t *testing.T) {
	for _, m := range []Metric{MetricCosine, MetricL2, MetricDot} {
		fn, err := Provider(m)
		require.NoError(t, err)
		assert.NotNil(t, fn)
	}

	_, err := Provider(Metric(42))
	assert.Error(t, err)
	assert.Equal(t, "Unknown(42)", Metric(42).String())
}
