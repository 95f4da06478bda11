package instrumentation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the sentinel. A nil *Metrics
// records nothing.
type Metrics struct {
	FetchTotal        *prometheus.CounterVec
	FetchLatency      prometheus.Histogram
	QuotesMerged      prometheus.Counter
	SnapshotSize      prometheus.Gauge
	AlertsFired       *prometheus.CounterVec
	NotifyFailures    *prometheus.CounterVec
	TaskErrors        *prometheus.CounterVec
	LastRefreshUnixTs prometheus.Gauge
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FetchTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "watchsentinel_fetch_total",
			Help: "Quote fetches by source and result",
		}, []string{"source", "result"}),

		FetchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "watchsentinel_fetch_latency_ms",
			Help:    "Time to fetch one round of quotes in milliseconds",
			Buckets: []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}),

		QuotesMerged: f.NewCounter(prometheus.CounterOpts{
			Name: "watchsentinel_quotes_merged_total",
			Help: "Quotes merged into the snapshot",
		}),

		SnapshotSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "watchsentinel_snapshot_size",
			Help: "Number of instruments in the current quote snapshot",
		}),

		AlertsFired: f.NewCounterVec(prometheus.CounterOpts{
			Name: "watchsentinel_alerts_fired_total",
			Help: "Alerts that transitioned to fired, by alert type",
		}, []string{"type"}),

		NotifyFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "watchsentinel_notification_failures_total",
			Help: "Failed notification deliveries by channel",
		}, []string{"channel"}),

		TaskErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "watchsentinel_task_errors_total",
			Help: "Errors caught from scheduled tasks",
		}, []string{"task"}),

		LastRefreshUnixTs: f.NewGauge(prometheus.GaugeOpts{
			Name: "watchsentinel_last_refresh_timestamp_seconds",
			Help: "Unix time of the last successful quote refresh",
		}),
	}
}

// RecordFetch records one fetch round.
func (m *Metrics) RecordFetch(source string, took time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.FetchTotal.WithLabelValues(source, result).Inc()
	m.FetchLatency.Observe(float64(took.Milliseconds()))
}

// RecordMerge records a successful merge of n quotes into a snapshot of size.
func (m *Metrics) RecordMerge(n, size int, at time.Time) {
	if m == nil {
		return
	}
	m.QuotesMerged.Add(float64(n))
	m.SnapshotSize.Set(float64(size))
	m.LastRefreshUnixTs.Set(float64(at.Unix()))
}

// RecordSnapshotSize updates the snapshot gauge, e.g. after GC.
func (m *Metrics) RecordSnapshotSize(size int) {
	if m == nil {
		return
	}
	m.SnapshotSize.Set(float64(size))
}

// RecordAlertFired increments the fired counter.
func (m *Metrics) RecordAlertFired(alertType string) {
	if m == nil {
		return
	}
	m.AlertsFired.WithLabelValues(alertType).Inc()
}

// RecordNotifyFailure increments the delivery failure counter.
func (m *Metrics) RecordNotifyFailure(channel string) {
	if m == nil {
		return
	}
	m.NotifyFailures.WithLabelValues(channel).Inc()
}

// RecordTaskError increments the task error counter.
func (m *Metrics) RecordTaskError(task string) {
	if m == nil {
		return
	}
	m.TaskErrors.WithLabelValues(task).Inc()
}
