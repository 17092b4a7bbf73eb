package processor

import (
	"sync/atomic"
	"time"
)

// ServiceMetrics counts processed events for the periodic report. The
// prometheus counters are incremented where the work happens; this is
// the cheap in-process view the log reporter reads.
type ServiceMetrics struct {
	totalProcessed  int64
	totalFailed     int64
	totalDurationNs int64
	startedNs       int64
}

func NewServiceMetrics() *ServiceMetrics {
	return &ServiceMetrics{
		startedNs: time.Now().UnixNano(),
	}
}

func (m *ServiceMetrics) RecordSuccess(duration time.Duration) {
	atomic.AddInt64(&m.totalProcessed, 1)
	atomic.AddInt64(&m.totalDurationNs, int64(duration))
}

func (m *ServiceMetrics) RecordFailure() {
	atomic.AddInt64(&m.totalFailed, 1)
}

type MetricsSnapshot struct {
	Processed     int64
	Failed        int64
	RatePerSecond float64
	AvgDuration   time.Duration
	Uptime        time.Duration
}

func (m *ServiceMetrics) Snapshot() MetricsSnapshot {
	processed := atomic.LoadInt64(&m.totalProcessed)
	failed := atomic.LoadInt64(&m.totalFailed)
	durationNs := atomic.LoadInt64(&m.totalDurationNs)
	startedNs := atomic.LoadInt64(&m.startedNs)

	uptime := time.Since(time.Unix(0, startedNs))

	rate := 0.0
	if secs := uptime.Seconds(); secs > 0 {
		rate = float64(processed) / secs
	}

	avgDuration := time.Duration(0)
	if processed > 0 {
		avgDuration = time.Duration(durationNs / processed)
	}

	return MetricsSnapshot{
		Processed:     processed,
		Failed:        failed,
		RatePerSecond: rate,
		AvgDuration:   avgDuration,
		Uptime:        uptime,
	}
}
