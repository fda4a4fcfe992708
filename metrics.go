package relidx

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    insertCounter prometheus.Counter
//	    scanHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordInsert(duration time.Duration, err error) {
//	    p.insertCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordInsert is called after each entry insertion.
	// duration is the total time taken, err is nil if successful.
	RecordInsert(duration time.Duration, err error)

	// RecordDelete is called after each entry deletion.
	RecordDelete(duration time.Duration, err error)

	// RecordScanKey is called after each point lookup.
	// matches is the number of locations returned.
	RecordScanKey(matches int, duration time.Duration, err error)

	// RecordScan is called after each range or full scan.
	// matches is the number of entries returned.
	RecordScan(matches int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(time.Duration, error)       {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)       {}
func (NoopMetricsCollector) RecordScanKey(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordScan(int, time.Duration, error)    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	InsertCount       atomic.Int64
	InsertErrors      atomic.Int64
	InsertTotalNanos  atomic.Int64
	DeleteCount       atomic.Int64
	DeleteErrors      atomic.Int64
	DeleteTotalNanos  atomic.Int64
	ScanKeyCount      atomic.Int64
	ScanKeyErrors     atomic.Int64
	ScanKeyMatches    atomic.Int64
	ScanKeyTotalNanos atomic.Int64
	ScanCount         atomic.Int64
	ScanErrors        atomic.Int64
	ScanMatches       atomic.Int64
	ScanTotalNanos    atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(duration time.Duration, err error) {
	b.InsertCount.Add(1)
	b.InsertTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.InsertErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(duration time.Duration, err error) {
	b.DeleteCount.Add(1)
	b.DeleteTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordScanKey implements MetricsCollector.
func (b *BasicMetricsCollector) RecordScanKey(matches int, duration time.Duration, err error) {
	b.ScanKeyCount.Add(1)
	b.ScanKeyMatches.Add(int64(matches))
	b.ScanKeyTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ScanKeyErrors.Add(1)
	}
}

// RecordScan implements MetricsCollector.
func (b *BasicMetricsCollector) RecordScan(matches int, duration time.Duration, err error) {
	b.ScanCount.Add(1)
	b.ScanMatches.Add(int64(matches))
	b.ScanTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ScanErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InsertCount:    b.InsertCount.Load(),
		InsertErrors:   b.InsertErrors.Load(),
		InsertAvgNanos: avgNanos(b.InsertTotalNanos.Load(), b.InsertCount.Load()),
		DeleteCount:    b.DeleteCount.Load(),
		DeleteErrors:   b.DeleteErrors.Load(),
		DeleteAvgNanos: avgNanos(b.DeleteTotalNanos.Load(), b.DeleteCount.Load()),
		ScanKeyCount:   b.ScanKeyCount.Load(),
		ScanKeyErrors:  b.ScanKeyErrors.Load(),
		ScanKeyMatches: b.ScanKeyMatches.Load(),
		ScanCount:      b.ScanCount.Load(),
		ScanErrors:     b.ScanErrors.Load(),
		ScanMatches:    b.ScanMatches.Load(),
	}
}

func avgNanos(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InsertCount    int64
	InsertErrors   int64
	InsertAvgNanos int64
	DeleteCount    int64
	DeleteErrors   int64
	DeleteAvgNanos int64
	ScanKeyCount   int64
	ScanKeyErrors  int64
	ScanKeyMatches int64
	ScanCount      int64
	ScanErrors     int64
	ScanMatches    int64
}
