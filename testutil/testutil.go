package testutil

import (
	"math"
	"math/rand"
	"sync"

	"github.com/hupe1980/vecboard/distance"
	"github.com/hupe1980/vecboard/model"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// UniformVectors generates random vectors with values in range [0, 1).
// Uses a single backing array.
func (r *RNG) UniformVectors(num int, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = r.rand.Float32()
		}
		vectors[i] = vec
	}

	return vectors
}

// GaussianVectors generates random vectors with values from a standard normal distribution.
func (r *RNG) GaussianVectors(num int, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = float32(r.rand.NormFloat64())
		}
		vectors[i] = vec
	}

	return vectors
}

// UnitVectors generates L2-normalized random vectors (on the hypersphere),
// like sentence embeddings.
func (r *RNG) UnitVectors(num int, dimensions int) [][]float32 {
	vectors := r.GaussianVectors(num, dimensions)
	for _, vec := range vectors {
		distance.NormalizeL2InPlace(vec)
	}
	return vectors
}

// ClusteredVectors generates vectors clustered around random unit centroids.
// Vector i belongs to cluster i % clusters.
func (r *RNG) ClusteredVectors(num, dim, clusters int, spread float32) [][]float32 {
	centroids := r.UnitVectors(clusters, dim)

	r.mu.Lock()
	defer r.mu.Unlock()

	vectors := make([][]float32, num)
	for i := range num {
		centroid := centroids[i%clusters]
		vec := make([]float32, dim)
		for j := range dim {
			vec[j] = centroid[j] + float32(r.rand.NormFloat64())*spread
		}
		vectors[i] = vec
	}

	return vectors
}

// Repeat returns n copies of vec.
func Repeat(vec []float32, n int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = append([]float32(nil), vec...)
	}
	return out
}

// AxisMean returns the per-axis mean of positions.
func AxisMean(positions []model.Position) (x, y float64) {
	if len(positions) == 0 {
		return 0, 0
	}
	for _, p := range positions {
		x += p.X
		y += p.Y
	}
	n := float64(len(positions))
	return x / n, y / n
}

// AxisStd returns the per-axis population standard deviation of positions.
func AxisStd(positions []model.Position) (x, y float64) {
	if len(positions) == 0 {
		return 0, 0
	}
	mx, my := AxisMean(positions)
	for _, p := range positions {
		x += (p.X - mx) * (p.X - mx)
		y += (p.Y - my) * (p.Y - my)
	}
	n := float64(len(positions))
	return math.Sqrt(x / n), math.Sqrt(y / n)
}

// Distinct reports whether no two positions coincide.
func Distinct(positions []model.Position) bool {
	seen := make(map[model.Position]struct{}, len(positions))
	for _, p := range positions {
		if _, ok := seen[p]; ok {
			return false
		}
		seen[p] = struct{}{}
	}
	return true
}
