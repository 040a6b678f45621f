package projection

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/vecboard/distance"
	"github.com/hupe1980/vecboard/model"
)

var (
	// ErrInvalidInput is reported when rows are ragged, zero-dimensional or
	// contain non-finite components.
	ErrInvalidInput = errors.New("projection: invalid input")
	// ErrNonFinite is reported when the reduction produced NaN or Inf values.
	ErrNonFinite = errors.New("projection: non-finite value")
)

// Strategy identifies which branch produced a layout.
type Strategy int

const (
	StrategyEmpty Strategy = iota
	StrategySingle
	StrategyPair
	StrategyUMAP
	StrategyJitter
	StrategyCircle
)

func (s Strategy) String() string {
	switch s {
	case StrategyEmpty:
		return "empty"
	case StrategySingle:
		return "single"
	case StrategyPair:
		return "pair"
	case StrategyUMAP:
		return "umap"
	case StrategyJitter:
		return "jitter"
	case StrategyCircle:
		return "circle"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// Result is the outcome of one projection. Positions always has the same
// length and order as the input. Err is set only for the circle fallback and
// is informational.
type Result struct {
	Positions []model.Position
	Strategy  Strategy
	Err       error
}

// Projector projects vector sets with a fixed configuration. It is safe for
// concurrent use.
type Projector struct {
	cfg    Config
	reduce func(vectors [][]float32) ([][2]float64, error)
}

// New creates a Projector with the default configuration modified by opts.
func New(opts ...Option) *Projector {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	p := &Projector{cfg: cfg.sanitized()}
	p.reduce = p.umap
	return p
}

// Config returns the effective configuration.
func (p *Projector) Config() Config {
	return p.cfg
}

var defaultProjector = New()

// Project maps vectors to canvas positions with the default configuration.
func Project(vectors [][]float32) []model.Position {
	return defaultProjector.Project(vectors).Positions
}

// Project maps vectors to canvas positions. It never panics.
func (p *Projector) Project(vectors [][]float32) (res Result) {
	n := len(vectors)

	switch n {
	case 0:
		return Result{Positions: []model.Position{}, Strategy: StrategyEmpty}
	case 1:
		return Result{Positions: []model.Position{{}}, Strategy: StrategySingle}
	case 2:
		return Result{
			Positions: []model.Position{{X: -p.cfg.PairOffset}, {X: p.cfg.PairOffset}},
			Strategy:  StrategyPair,
		}
	}

	defer func() {
		if r := recover(); r != nil {
			res = p.circle(n, fmt.Errorf("projection: recovered: %v", r))
		}
	}()

	if err := validate(vectors); err != nil {
		return p.circle(n, err)
	}

	raw, err := p.reduce(vectors)
	if err != nil {
		return p.circle(n, err)
	}
	for i, pt := range raw {
		if !finite(pt[0]) || !finite(pt[1]) {
			return p.circle(n, fmt.Errorf("%w: raw point %d", ErrNonFinite, i))
		}
	}

	positions, jittered := postprocess(raw, p.cfg)
	for i, pos := range positions {
		if !pos.IsFinite() {
			return p.circle(n, fmt.Errorf("%w: position %d", ErrNonFinite, i))
		}
	}
	if jittered {
		return Result{Positions: positions, Strategy: StrategyJitter}
	}
	return Result{Positions: positions, Strategy: StrategyUMAP}
}

func (p *Projector) circle(n int, err error) Result {
	return Result{
		Positions: Circle(n, p.cfg.FallbackRadius),
		Strategy:  StrategyCircle,
		Err:       err,
	}
}

// collapseDistance is the largest neighbor distance at which the whole input
// counts as one repeated point.
const collapseDistance = 1e-9

// umap runs the UMAP-style pipeline and returns raw 2D points.
func (p *Projector) umap(vectors [][]float32) ([][2]float64, error) {
	n := len(vectors)
	k := p.cfg.neighborCount(n)

	fn, err := distance.Provider(p.cfg.Metric)
	if err != nil {
		return nil, err
	}

	g, err := nearestNeighbors(context.Background(), vectors, k, fn, p.cfg.Workers)
	if err != nil {
		return nil, err
	}

	// kNN of a fully identical set has only zero distances; the layout has no
	// signal, so all points share the origin and postprocessing jitters them.
	if g.maxDistance() < collapseDistance {
		return make([][2]float64, n), nil
	}

	graph := fuzzySimplicialSet(g, k).prune(p.cfg.Epochs)

	a, b := fitCurve(p.cfg.Spread, p.cfg.MinDist)

	rng := newRand(p.cfg.Seed, layoutStream)
	emb := pcaInit(vectors, p.cfg.Metric == distance.MetricCosine, rng)

	optimizeLayout(emb, graph, layoutParams{
		a:                  a,
		b:                  b,
		epochs:             p.cfg.Epochs,
		learningRate:       p.cfg.LearningRate,
		negativeSampleRate: p.cfg.NegativeSampleRate,
		gamma:              p.cfg.RepulsionStrength,
	}, rng)

	return emb, nil
}

func validate(vectors [][]float32) error {
	dim := len(vectors[0])
	if dim == 0 {
		return fmt.Errorf("%w: zero-dimensional vector at 0", ErrInvalidInput)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, want %d", ErrInvalidInput, i, len(v), dim)
		}
		for _, f := range v {
			if !finite(float64(f)) {
				return fmt.Errorf("%w: vector %d has non-finite component", ErrInvalidInput, i)
			}
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
