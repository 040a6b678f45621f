package projection

import (
	"math"
	"math/rand/v2"
)

const gradientClip = 4.0

type layoutParams struct {
	a, b               float64
	epochs             int
	learningRate       float64
	negativeSampleRate int
	gamma              float64
}

// optimizeLayout moves the embedding in place by stochastic gradient descent
// over the edge set, sampling each edge proportionally to its weight and
// pushing away randomly chosen points.
func optimizeLayout(emb [][2]float64, g *edges, p layoutParams, rng *rand.Rand) {
	n := len(emb)
	m := g.len()
	if m == 0 || n == 0 {
		return
	}

	var maxW float64
	for _, w := range g.weights {
		maxW = max(maxW, w)
	}

	epochsPerSample := make([]float64, m)
	for i, w := range g.weights {
		epochsPerSample[i] = maxW / w
	}
	nextSample := append([]float64(nil), epochsPerSample...)

	negRate := float64(max(p.negativeSampleRate, 1))
	epochsPerNeg := make([]float64, m)
	for i, e := range epochsPerSample {
		epochsPerNeg[i] = e / negRate
	}
	nextNeg := append([]float64(nil), epochsPerNeg...)

	a, b := p.a, p.b
	for epoch := 0; epoch < p.epochs; epoch++ {
		alpha := p.learningRate * (1 - float64(epoch)/float64(p.epochs))
		fe := float64(epoch)

		for e := 0; e < m; e++ {
			if nextSample[e] > fe {
				continue
			}

			j, k := g.head[e], g.tail[e]
			cur, other := &emb[j], &emb[k]

			d2 := sqDist(*cur, *other)
			var coeff float64
			if d2 > 0 {
				coeff = -2 * a * b * math.Pow(d2, b-1) / (a*math.Pow(d2, b) + 1)
			}
			for d := 0; d < 2; d++ {
				grad := clip(coeff * (cur[d] - other[d]))
				cur[d] += grad * alpha
				other[d] -= grad * alpha
			}
			nextSample[e] += epochsPerSample[e]

			if p.negativeSampleRate == 0 {
				continue
			}
			nNeg := int((fe - nextNeg[e]) / epochsPerNeg[e])
			for s := 0; s < nNeg; s++ {
				k := rng.IntN(n)
				if k == j {
					continue
				}
				other := &emb[k]

				d2 := sqDist(*cur, *other)
				if d2 > 0 {
					coeff = 2 * p.gamma * b / ((0.001 + d2) * (a*math.Pow(d2, b) + 1))
				} else {
					coeff = 0
				}
				for d := 0; d < 2; d++ {
					grad := gradientClip
					if coeff > 0 {
						grad = clip(coeff * (cur[d] - other[d]))
					}
					cur[d] += grad * alpha
				}
			}
			nextNeg[e] += float64(nNeg) * epochsPerNeg[e]
		}
	}
}

func sqDist(a, b [2]float64) float64 {
	dx, dy := a[0]-b[0], a[1]-b[1]
	return dx*dx + dy*dy
}

func clip(v float64) float64 {
	if v > gradientClip {
		return gradientClip
	}
	if v < -gradientClip {
		return -gradientClip
	}
	return v
}
