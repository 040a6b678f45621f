package projection

import (
	"math"
	"sort"
)

const (
	smoothKNNIterations = 64
	smoothKNNTolerance  = 1e-5
	minKDistScale       = 1e-3
	localConnectivity   = 1.0
)

// smoothKNNDist finds per-point ρ (distance to the nearest non-identical
// neighbor) and σ such that the sum of memberships equals log2(k).
func smoothKNNDist(dists [][]float64, k int) (sigmas, rhos []float64) {
	n := len(dists)
	sigmas = make([]float64, n)
	rhos = make([]float64, n)
	target := math.Log2(float64(k))

	var total float64
	var count int
	for _, row := range dists {
		for _, d := range row {
			total += d
			count++
		}
	}
	meanAll := 0.0
	if count > 0 {
		meanAll = total / float64(count)
	}

	for i, row := range dists {
		var nonZero []float64
		for _, d := range row {
			if d > 0 {
				nonZero = append(nonZero, d)
			}
		}

		if len(nonZero) >= int(localConnectivity) {
			index := int(math.Floor(localConnectivity))
			interp := localConnectivity - float64(index)
			if index > 0 {
				rhos[i] = nonZero[index-1]
				if interp > smoothKNNTolerance {
					rhos[i] += interp * (nonZero[index] - nonZero[index-1])
				}
			} else {
				rhos[i] = interp * nonZero[0]
			}
		} else if len(nonZero) > 0 {
			rhos[i] = nonZero[len(nonZero)-1]
		}

		lo, hi, mid := 0.0, math.Inf(1), 1.0
		for iter := 0; iter < smoothKNNIterations; iter++ {
			var psum float64
			for _, d := range row[1:] {
				if r := d - rhos[i]; r > 0 {
					psum += math.Exp(-r / mid)
				} else {
					psum++
				}
			}

			if math.Abs(psum-target) < smoothKNNTolerance {
				break
			}
			if psum > target {
				hi = mid
				mid = (lo + hi) / 2
			} else {
				lo = mid
				if math.IsInf(hi, 1) {
					mid *= 2
				} else {
					mid = (lo + hi) / 2
				}
			}
		}
		sigmas[i] = mid

		if rhos[i] > 0 {
			var sum float64
			for _, d := range row {
				sum += d
			}
			if floor := minKDistScale * sum / float64(len(row)); sigmas[i] < floor {
				sigmas[i] = floor
			}
		} else if floor := minKDistScale * meanAll; sigmas[i] < floor {
			sigmas[i] = floor
		}
	}
	return sigmas, rhos
}

type edgeKey struct{ head, tail int }

// edges is a weighted graph in coordinate form, sorted by (head, tail).
type edges struct {
	head    []int
	tail    []int
	weights []float64
}

func (e *edges) len() int { return len(e.weights) }

// fuzzySimplicialSet builds the symmetric membership graph using the fuzzy
// union a + b - a·b. Both directions of every pair are present in the result.
func fuzzySimplicialSet(g *knnGraph, k int) *edges {
	sigmas, rhos := smoothKNNDist(g.dists, k)

	directed := make(map[edgeKey]float64, len(g.indices)*k)
	for i, row := range g.indices {
		for m, j := range row {
			if j == i {
				continue
			}
			var w float64
			d := g.dists[i][m]
			if d-rhos[i] <= 0 || sigmas[i] == 0 {
				w = 1
			} else {
				w = math.Exp(-(d - rhos[i]) / sigmas[i])
			}
			directed[edgeKey{i, j}] = w
		}
	}

	sym := make(map[edgeKey]float64, len(directed)*2)
	for key, a := range directed {
		b := directed[edgeKey{key.tail, key.head}]
		w := a + b - a*b
		sym[key] = w
		sym[edgeKey{key.tail, key.head}] = w
	}

	keys := make([]edgeKey, 0, len(sym))
	for key, w := range sym {
		if w > 0 {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].head != keys[b].head {
			return keys[a].head < keys[b].head
		}
		return keys[a].tail < keys[b].tail
	})

	out := &edges{
		head:    make([]int, len(keys)),
		tail:    make([]int, len(keys)),
		weights: make([]float64, len(keys)),
	}
	for i, key := range keys {
		out.head[i] = key.head
		out.tail[i] = key.tail
		out.weights[i] = sym[key]
	}
	return out
}

// prune drops edges too weak to be sampled in nEpochs epochs.
func (e *edges) prune(nEpochs int) *edges {
	var maxW float64
	for _, w := range e.weights {
		maxW = max(maxW, w)
	}
	threshold := maxW / float64(nEpochs)

	out := &edges{}
	for i, w := range e.weights {
		if w < threshold {
			continue
		}
		out.head = append(out.head, e.head[i])
		out.tail = append(out.tail, e.tail[i])
		out.weights = append(out.weights, w)
	}
	return out
}
