package projection

import (
	"math"
	"math/rand/v2"

	"github.com/hupe1980/vecboard/model"
)

// axisStats returns the per-axis mean and population standard deviation.
func axisStats(raw [][2]float64) (mean, std [2]float64) {
	n := float64(len(raw))
	for _, p := range raw {
		mean[0] += p[0]
		mean[1] += p[1]
	}
	mean[0] /= n
	mean[1] /= n

	for _, p := range raw {
		dx, dy := p[0]-mean[0], p[1]-mean[1]
		std[0] += dx * dx
		std[1] += dy * dy
	}
	std[0] = math.Sqrt(std[0] / n)
	std[1] = math.Sqrt(std[1] / n)
	return mean, std
}

// postprocess recenters and rescales raw points to the canvas. A collapsed
// axis gets seeded Gaussian jitter instead and skips the rescale.
func postprocess(raw [][2]float64, cfg Config) ([]model.Position, bool) {
	mean, std := axisStats(raw)
	out := make([]model.Position, len(raw))

	if std[0] < cfg.CollapseEpsilon || std[1] < cfg.CollapseEpsilon {
		rng := newRand(cfg.Seed, jitterStream)
		for i, p := range raw {
			out[i] = model.Position{
				X: p[0] + rng.NormFloat64()*cfg.JitterSigma,
				Y: p[1] + rng.NormFloat64()*cfg.JitterSigma,
			}
		}
		return out, true
	}

	for i, p := range raw {
		out[i] = model.Position{
			X: (p[0] - mean[0]) / (std[0] + stdEpsilon) * cfg.ScaleFactor,
			Y: (p[1] - mean[1]) / (std[1] + stdEpsilon) * cfg.ScaleFactor,
		}
	}
	return out, false
}

// Stream selectors keep the layout and jitter generators independent.
const (
	layoutStream uint64 = 0x9e3779b97f4a7c15
	jitterStream uint64 = 0xbf58476d1ce4e5b9
)

func newRand(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}
