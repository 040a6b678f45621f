// Package distance provides public API for vector distance calculations.
package distance

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
// Accumulates in float64 to keep long embeddings stable.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// L2 calculates the Euclidean distance between two vectors.
func L2(a, b []float32) float64 {
	return math.Sqrt(SquaredL2(a, b))
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	return math.Sqrt(Dot(v, v))
}

// Cosine calculates the cosine distance 1 - cos(a, b), clamped to [0, 2].
//
// Two zero vectors have distance 0; a zero vector and a non-zero vector have
// distance 1.
func Cosine(a, b []float32) float64 {
	na := Norm(a)
	nb := Norm(b)
	switch {
	case na == 0 && nb == 0:
		return 0
	case na == 0 || nb == 0:
		return 1
	}
	d := 1 - Dot(a, b)/(na*nb)
	if d < 0 {
		return 0
	}
	if d > 2 {
		return 2
	}
	return d
}

// InnerProduct calculates the inner-product distance 1 - a·b, floored at 0.
func InnerProduct(a, b []float32) float64 {
	d := 1 - Dot(a, b)
	if d < 0 {
		return 0
	}
	return d
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm := Norm(v)
	if norm == 0 {
		return false
	}
	inv := float32(1 / norm)
	for i := range v {
		v[i] *= inv
	}
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// Metric represents the distance metric used for vector comparison.
type Metric int

const (
	MetricCosine Metric = iota
	MetricL2
	MetricDot
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "L2"
	case MetricCosine:
		return "Cosine"
	case MetricDot:
		return "Dot"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// ParseMetric returns the metric for a configuration name such as "cosine",
// "euclidean"/"l2" or "dot". Matching is case-insensitive.
func ParseMetric(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cosine", "":
		return MetricCosine, nil
	case "l2", "euclidean":
		return MetricL2, nil
	case "dot", "inner_product":
		return MetricDot, nil
	default:
		return 0, fmt.Errorf("unsupported metric: %q", name)
	}
}

// Func is a function type for distance calculation. Smaller is closer.
type Func func(a, b []float32) float64

// Provider returns the distance function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricCosine:
		return Cosine, nil
	case MetricL2:
		return L2, nil
	case MetricDot:
		return InnerProduct, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}
