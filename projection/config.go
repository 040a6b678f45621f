package projection

import (
	"runtime"

	"github.com/hupe1980/vecboard/distance"
)

// Default tuning constants.
const (
	DefaultNeighbors          = 15
	DefaultMinDist            = 0.1
	DefaultSpread             = 1.0
	DefaultEpochs             = 200
	DefaultLearningRate       = 1.0
	DefaultNegativeSampleRate = 5
	DefaultRepulsionStrength  = 1.0
	DefaultSeed               = 42

	DefaultScaleFactor     = 1000.0
	DefaultJitterSigma     = 200.0
	DefaultFallbackRadius  = 600.0
	DefaultPairOffset      = 500.0
	DefaultCollapseEpsilon = 1e-6

	// stdEpsilon keeps the rescale finite for tiny but non-collapsed spreads.
	stdEpsilon = 1e-8
)

// Config holds the projection parameters. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	// NNeighbors is the configured neighbor count; the effective count is
	// clamped to [2, N-1].
	NNeighbors int
	// MinDist controls how tightly the layout packs neighboring points.
	MinDist float64
	// Spread is the effective scale of embedded points.
	Spread float64
	// Metric is the input-space distance.
	Metric distance.Metric
	// Epochs is the number of layout optimisation epochs.
	Epochs int
	// LearningRate is the initial SGD step size.
	LearningRate float64
	// NegativeSampleRate is the number of negative samples per positive sample.
	NegativeSampleRate int
	// RepulsionStrength weights negative samples.
	RepulsionStrength float64
	// Seed makes the layout repeatable.
	Seed uint64

	// ScaleFactor is the canvas spread (in canvas units) of one standard deviation.
	ScaleFactor float64
	// JitterSigma is the standard deviation of the jitter added to collapsed layouts.
	JitterSigma float64
	// FallbackRadius is the radius of the circular failure layout.
	FallbackRadius float64
	// PairOffset is the horizontal offset of each point of a two-item layout.
	PairOffset float64
	// CollapseEpsilon is the per-axis standard deviation below which a layout
	// counts as collapsed.
	CollapseEpsilon float64

	// Workers bounds the goroutines used for the kNN graph.
	Workers int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		NNeighbors:         DefaultNeighbors,
		MinDist:            DefaultMinDist,
		Spread:             DefaultSpread,
		Metric:             distance.MetricCosine,
		Epochs:             DefaultEpochs,
		LearningRate:       DefaultLearningRate,
		NegativeSampleRate: DefaultNegativeSampleRate,
		RepulsionStrength:  DefaultRepulsionStrength,
		Seed:               DefaultSeed,
		ScaleFactor:        DefaultScaleFactor,
		JitterSigma:        DefaultJitterSigma,
		FallbackRadius:     DefaultFallbackRadius,
		PairOffset:         DefaultPairOffset,
		CollapseEpsilon:    DefaultCollapseEpsilon,
		Workers:            runtime.GOMAXPROCS(0),
	}
}

// Option configures a Projector.
type Option func(*Config)

// WithNeighbors sets the configured neighbor count.
func WithNeighbors(n int) Option {
	return func(c *Config) {
		c.NNeighbors = n
	}
}

// WithMinDist sets the minimum-distance parameter.
func WithMinDist(d float64) Option {
	return func(c *Config) {
		c.MinDist = d
	}
}

// WithMetric sets the input-space distance metric.
func WithMetric(m distance.Metric) Option {
	return func(c *Config) {
		c.Metric = m
	}
}

// WithEpochs sets the number of optimisation epochs.
func WithEpochs(n int) Option {
	return func(c *Config) {
		c.Epochs = n
	}
}

// WithSeed sets the random seed.
func WithSeed(seed uint64) Option {
	return func(c *Config) {
		c.Seed = seed
	}
}

// WithScaleFactor sets the canvas scale factor.
func WithScaleFactor(f float64) Option {
	return func(c *Config) {
		c.ScaleFactor = f
	}
}

// WithJitterSigma sets the jitter magnitude for collapsed layouts.
func WithJitterSigma(sigma float64) Option {
	return func(c *Config) {
		c.JitterSigma = sigma
	}
}

// WithFallbackRadius sets the circle radius of the failure layout.
func WithFallbackRadius(r float64) Option {
	return func(c *Config) {
		c.FallbackRadius = r
	}
}

// WithPairOffset sets the offset D0 of the two-item layout.
func WithPairOffset(d float64) Option {
	return func(c *Config) {
		c.PairOffset = d
	}
}

// WithWorkers bounds kNN parallelism. Values below 1 mean one worker.
func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}

func (c Config) sanitized() Config {
	d := DefaultConfig()
	if c.Epochs <= 0 {
		c.Epochs = d.Epochs
	}
	if c.LearningRate <= 0 {
		c.LearningRate = d.LearningRate
	}
	if c.NegativeSampleRate < 0 {
		c.NegativeSampleRate = 0
	}
	if c.Spread <= 0 {
		c.Spread = d.Spread
	}
	if c.MinDist < 0 {
		c.MinDist = 0
	}
	if c.CollapseEpsilon <= 0 {
		c.CollapseEpsilon = d.CollapseEpsilon
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	return c
}

// neighborCount returns the effective neighbor count for n points.
func (c Config) neighborCount(n int) int {
	return max(2, min(c.NNeighbors, n-1))
}
