package vecboard

import (
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/hupe1980/vecboard/projection"
)

type options struct {
	projector        *projection.Projector
	projectionOpts   []projection.Option
	metricsCollector MetricsCollector
	logger           *Logger
	scopedLocking    bool
	rewriteOnInsert  bool
	recomputeLimit   rate.Limit
	recomputeBurst   int
}

// Option configures a Coordinator.
type Option func(*options)

// WithProjector sets the projector used for every layout. It takes precedence
// over WithProjectionOptions.
func WithProjector(p *projection.Projector) Option {
	return func(o *options) {
		o.projector = p
	}
}

// WithProjectionOptions configures the default projector.
//
// Example:
//
//	c, _ := vecboard.New(s, vecboard.WithProjectionOptions(
//	    projection.WithNeighbors(10),
//	    projection.WithSeed(7),
//	))
func WithProjectionOptions(opts ...projection.Option) Option {
	return func(o *options) {
		o.projectionOpts = append(o.projectionOpts, opts...)
	}
}

// WithScopedLocking keys the exclusive section by scope instead of using one
// section for the whole Coordinator. Operations on different scopes then run
// in parallel; operations on one scope stay strictly serial.
func WithScopedLocking() Option {
	return func(o *options) {
		o.scopedLocking = true
	}
}

// WithRewriteOnInsert makes InsertAndProject persist the freshly projected
// positions of every existing item, not only the new one. The default keeps
// existing items where they are until the next RecomputeAll.
//
// Existing positions are written before the new item is appended. If the
// insert fails afterwards, those rewritten positions stay; only the new item
// is rolled back.
func WithRewriteOnInsert(enabled bool) Option {
	return func(o *options) {
		o.rewriteOnInsert = enabled
	}
}

// WithRecomputeLimit throttles RecomputeAll to limit runs per second with
// the given burst. Excess calls fail with ErrRateLimited.
func WithRecomputeLimit(limit rate.Limit, burst int) Option {
	return func(o *options) {
		o.recomputeLimit = limit
		o.recomputeBurst = burst
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &vecboard.BasicMetricsCollector{}
//	c, _ := vecboard.New(s, vecboard.WithMetricsCollector(metrics))
//	// ... use c ...
//	stats := metrics.GetStats()
//	fmt.Printf("Inserts: %d, Avg latency: %dns\n", stats.InsertCount, stats.InsertAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.projector == nil {
		o.projector = projection.New(o.projectionOpts...)
	}
	return o
}
