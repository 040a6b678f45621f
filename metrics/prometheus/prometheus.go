// Package prometheus exports coordinator metrics to Prometheus.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/vecboard"
)

// Collector implements vecboard.MetricsCollector with Prometheus metrics.
type Collector struct {
	opLatency   *prometheus.HistogramVec
	projections *prometheus.HistogramVec
	updated     prometheus.Counter
	dropped     *prometheus.CounterVec
	lockWait    prometheus.Histogram
}

var _ vecboard.MetricsCollector = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg. A nil
// reg selects prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vecboard_operation_duration_seconds",
			Help:    "Latency of coordinator operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "status"}),
		projections: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vecboard_projection_duration_seconds",
			Help:    "Latency of projections by strategy",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"strategy"}),
		updated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vecboard_recompute_positions_total",
			Help: "Positions written by full recomputes",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vecboard_dropped_records_total",
			Help: "Stored records excluded from a projection",
		}, []string{"reason"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vecboard_section_wait_seconds",
			Help:    "Time spent waiting for the exclusive section",
			Buckets: prometheus.DefBuckets,
		}),
	}

	for _, m := range []prometheus.Collector{c.opLatency, c.projections, c.updated, c.dropped, c.lockWait} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordInsert implements vecboard.MetricsCollector.
func (c *Collector) RecordInsert(d time.Duration, err error) {
	c.opLatency.WithLabelValues("insert", status(err)).Observe(d.Seconds())
}

// RecordRecompute implements vecboard.MetricsCollector.
func (c *Collector) RecordRecompute(updated int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("recompute", status(err)).Observe(d.Seconds())
	c.updated.Add(float64(updated))
}

// RecordProjection implements vecboard.MetricsCollector.
func (c *Collector) RecordProjection(_ int, strategy string, d time.Duration) {
	c.projections.WithLabelValues(strategy).Observe(d.Seconds())
}

// RecordDropped implements vecboard.MetricsCollector.
func (c *Collector) RecordDropped(reason string) {
	c.dropped.WithLabelValues(reason).Inc()
}

// RecordLockWait implements vecboard.MetricsCollector.
func (c *Collector) RecordLockWait(d time.Duration) {
	c.lockWait.Observe(d.Seconds())
}

// RecordRemove implements vecboard.MetricsCollector.
func (c *Collector) RecordRemove(d time.Duration, err error) {
	c.opLatency.WithLabelValues("remove", status(err)).Observe(d.Seconds())
}
