package measx

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordOpen is called after a reader attempted to map a file.
	// kind is "series" or "session".
	RecordOpen(kind string, duration time.Duration, err error)

	// RecordFetch is called after each extraction with the clamped shape.
	RecordFetch(rows, cols int, duration time.Duration)

	// RecordDownload is called after a remote blob was staged locally.
	// bytes is zero on a cache hit.
	RecordDownload(bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordOpen(string, time.Duration, error)    {}
func (NoopMetricsCollector) RecordFetch(int, int, time.Duration)        {}
func (NoopMetricsCollector) RecordDownload(int64, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	OpenCount       atomic.Int64
	OpenErrors      atomic.Int64
	FetchCount      atomic.Int64
	FetchValues     atomic.Int64
	FetchTotalNanos atomic.Int64
	DownloadCount   atomic.Int64
	DownloadBytes   atomic.Int64
	DownloadErrors  atomic.Int64
}

// RecordOpen implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOpen(_ string, _ time.Duration, err error) {
	b.OpenCount.Add(1)
	if err != nil {
		b.OpenErrors.Add(1)
	}
}

// RecordFetch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFetch(rows, cols int, duration time.Duration) {
	b.FetchCount.Add(1)
	b.FetchValues.Add(int64(rows) * int64(cols))
	b.FetchTotalNanos.Add(duration.Nanoseconds())
}

// RecordDownload implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDownload(bytes int64, _ time.Duration, err error) {
	b.DownloadCount.Add(1)
	b.DownloadBytes.Add(bytes)
	if err != nil {
		b.DownloadErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	s := BasicMetricsStats{
		OpenCount:      b.OpenCount.Load(),
		OpenErrors:     b.OpenErrors.Load(),
		FetchCount:     b.FetchCount.Load(),
		FetchValues:    b.FetchValues.Load(),
		DownloadCount:  b.DownloadCount.Load(),
		DownloadBytes:  b.DownloadBytes.Load(),
		DownloadErrors: b.DownloadErrors.Load(),
	}
	if s.FetchCount > 0 {
		s.FetchAvgNanos = b.FetchTotalNanos.Load() / s.FetchCount
	}
	return s
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	OpenCount      int64
	OpenErrors     int64
	FetchCount     int64
	FetchValues    int64
	FetchAvgNanos  int64
	DownloadCount  int64
	DownloadBytes  int64
	DownloadErrors int64
}
