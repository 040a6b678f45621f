package projection

import (
	"math"
	"math/rand/v2"
)

const (
	powerIterations = 100
	initScale       = 10.0
	initNoise       = 1e-4
)

// pcaInit returns an N×2 starting layout from the top two principal components,
// scaled so the largest coordinate is initScale. When the data has no variance
// along two directions, it falls back to a uniform random layout.
func pcaInit(vectors [][]float32, normalize bool, rng *rand.Rand) [][2]float64 {
	n := len(vectors)
	dim := len(vectors[0])

	x := make([][]float64, n)
	for i, v := range vectors {
		row := make([]float64, dim)
		var norm float64
		for d, f := range v {
			row[d] = float64(f)
			norm += row[d] * row[d]
		}
		if normalize && norm > 0 {
			norm = math.Sqrt(norm)
			for d := range row {
				row[d] /= norm
			}
		}
		x[i] = row
	}

	mean := make([]float64, dim)
	for _, row := range x {
		for d, f := range row {
			mean[d] += f
		}
	}
	for d := range mean {
		mean[d] /= float64(n)
	}
	for _, row := range x {
		for d := range row {
			row[d] -= mean[d]
		}
	}

	c1, ok1 := principalComponent(x, nil, rng)
	c2, ok2 := principalComponent(x, c1, rng)
	if !ok1 || !ok2 {
		return randomInit(n, rng)
	}

	out := make([][2]float64, n)
	var maxAbs float64
	for i, row := range x {
		out[i][0] = dot64(row, c1)
		out[i][1] = dot64(row, c2)
		maxAbs = max(maxAbs, math.Abs(out[i][0]), math.Abs(out[i][1]))
	}
	if maxAbs == 0 || math.IsNaN(maxAbs) || math.IsInf(maxAbs, 0) {
		return randomInit(n, rng)
	}

	scale := initScale / maxAbs
	for i := range out {
		out[i][0] = out[i][0]*scale + rng.NormFloat64()*initNoise
		out[i][1] = out[i][1]*scale + rng.NormFloat64()*initNoise
	}
	return out
}

// principalComponent runs power iteration on XᵀX without materialising it.
// A non-nil orth is projected out on every step.
func principalComponent(x [][]float64, orth []float64, rng *rand.Rand) ([]float64, bool) {
	dim := len(x[0])
	v := make([]float64, dim)
	for d := range v {
		v[d] = rng.NormFloat64()
	}

	const eps = 1e-12
	if orth != nil {
		deflate(v, orth)
	}
	if !normalizeInPlace(v) {
		return nil, false
	}

	proj := make([]float64, len(x))
	next := make([]float64, dim)
	for iter := 0; iter < powerIterations; iter++ {
		for i, row := range x {
			proj[i] = dot64(row, v)
		}
		clear(next)
		for i, row := range x {
			for d, f := range row {
				next[d] += f * proj[i]
			}
		}
		if orth != nil {
			deflate(next, orth)
		}

		var norm float64
		for _, f := range next {
			norm += f * f
		}
		if norm < eps {
			return nil, false
		}
		copy(v, next)
		normalizeInPlace(v)
	}
	return v, true
}

func randomInit(n int, rng *rand.Rand) [][2]float64 {
	out := make([][2]float64, n)
	for i := range out {
		out[i][0] = rng.Float64()*2*initScale - initScale
		out[i][1] = rng.Float64()*2*initScale - initScale
	}
	return out
}

func deflate(v, orth []float64) {
	p := dot64(v, orth)
	for d := range v {
		v[d] -= p * orth[d]
	}
}

func normalizeInPlace(v []float64) bool {
	var norm float64
	for _, f := range v {
		norm += f * f
	}
	if norm == 0 || math.IsNaN(norm) {
		return false
	}
	norm = math.Sqrt(norm)
	for d := range v {
		v[d] /= norm
	}
	return true
}

func dot64(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
