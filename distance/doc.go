// Package distance provides vector distance calculations.
//
// # Supported Metrics
//
//   - MetricCosine: cosine distance, 1 - cos(a, b) (default for text embeddings)
//   - MetricL2: Euclidean distance
//   - MetricDot: inner-product distance, 1 - a·b (for pre-normalized vectors)
//
// # Usage
//
//	d := distance.Cosine(a, b)
//	fn, _ := distance.Provider(distance.MetricCosine)
//	normalized, ok := distance.NormalizeL2Copy(vec)
package distance
