package vecboard

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; see
// package metrics/prometheus for a Prometheus implementation.
type MetricsCollector interface {
	// RecordInsert is called after each InsertAndProject.
	// duration is the total time taken, err is nil if successful.
	RecordInsert(duration time.Duration, err error)

	// RecordRecompute is called after each RecomputeAll that ran.
	// updated is the number of positions written.
	RecordRecompute(updated int, duration time.Duration, err error)

	// RecordProjection is called for every projection with the number of
	// vectors and the strategy that produced the layout.
	RecordProjection(vectors int, strategy string, duration time.Duration)

	// RecordDropped is called once per stored record excluded from a
	// projection.
	RecordDropped(reason string)

	// RecordLockWait is called with the time spent waiting for the
	// exclusive section.
	RecordLockWait(duration time.Duration)

	// RecordRemove is called after each Remove.
	RecordRemove(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(time.Duration, error)           {}
func (NoopMetricsCollector) RecordRecompute(int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordProjection(int, string, time.Duration) {}
func (NoopMetricsCollector) RecordDropped(string)                        {}
func (NoopMetricsCollector) RecordLockWait(time.Duration)                {}
func (NoopMetricsCollector) RecordRemove(time.Duration, error)           {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	InsertCount        atomic.Int64
	InsertErrors       atomic.Int64
	InsertTotalNanos   atomic.Int64
	RecomputeCount     atomic.Int64
	RecomputeErrors    atomic.Int64
	RecomputeUpdated   atomic.Int64
	ProjectionCount    atomic.Int64
	ProjectionVectors  atomic.Int64
	ProjectionNanos    atomic.Int64
	DroppedCount       atomic.Int64
	LockWaitTotalNanos atomic.Int64
	RemoveCount        atomic.Int64
	RemoveErrors       atomic.Int64

	mu         sync.Mutex
	strategies map[string]int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(duration time.Duration, err error) {
	b.InsertCount.Add(1)
	b.InsertTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.InsertErrors.Add(1)
	}
}

// RecordRecompute implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRecompute(updated int, duration time.Duration, err error) {
	b.RecomputeCount.Add(1)
	b.RecomputeUpdated.Add(int64(updated))
	if err != nil {
		b.RecomputeErrors.Add(1)
	}
}

// RecordProjection implements MetricsCollector.
func (b *BasicMetricsCollector) RecordProjection(vectors int, strategy string, duration time.Duration) {
	b.ProjectionCount.Add(1)
	b.ProjectionVectors.Add(int64(vectors))
	b.ProjectionNanos.Add(duration.Nanoseconds())

	b.mu.Lock()
	if b.strategies == nil {
		b.strategies = make(map[string]int64)
	}
	b.strategies[strategy]++
	b.mu.Unlock()
}

// RecordDropped implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDropped(string) {
	b.DroppedCount.Add(1)
}

// RecordLockWait implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLockWait(duration time.Duration) {
	b.LockWaitTotalNanos.Add(duration.Nanoseconds())
}

// RecordRemove implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRemove(duration time.Duration, err error) {
	b.RemoveCount.Add(1)
	if err != nil {
		b.RemoveErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	b.mu.Lock()
	strategies := make(map[string]int64, len(b.strategies))
	for k, v := range b.strategies {
		strategies[k] = v
	}
	b.mu.Unlock()

	return BasicMetricsStats{
		InsertCount:      b.InsertCount.Load(),
		InsertErrors:     b.InsertErrors.Load(),
		InsertAvgNanos:   avg(b.InsertTotalNanos.Load(), b.InsertCount.Load()),
		RecomputeCount:   b.RecomputeCount.Load(),
		RecomputeErrors:  b.RecomputeErrors.Load(),
		RecomputeUpdated: b.RecomputeUpdated.Load(),
		ProjectionCount:  b.ProjectionCount.Load(),
		ProjectionAvgLen: avg(b.ProjectionVectors.Load(), b.ProjectionCount.Load()),
		Strategies:       strategies,
		DroppedCount:     b.DroppedCount.Load(),
		LockWaitNanos:    b.LockWaitTotalNanos.Load(),
		RemoveCount:      b.RemoveCount.Load(),
		RemoveErrors:     b.RemoveErrors.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InsertCount      int64
	InsertErrors     int64
	InsertAvgNanos   int64
	RecomputeCount   int64
	RecomputeErrors  int64
	RecomputeUpdated int64
	ProjectionCount  int64
	ProjectionAvgLen int64
	Strategies       map[string]int64
	DroppedCount     int64
	LockWaitNanos    int64
	RemoveCount      int64
	RemoveErrors     int64
}
