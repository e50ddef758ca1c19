// Package metrics exposes Prometheus instrumentation for the report
// service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	EditsTotal    *prometheus.CounterVec
	SessionsOpen  prometheus.Gauge
	SavesTotal    *prometheus.CounterVec
	SaveDuration  prometheus.Histogram

	AssistRequestsTotal *prometheus.CounterVec
	AssistStaleTotal    prometheus.Counter
	AssistDuration      *prometheus.HistogramVec

	ExportsTotal *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide metrics, registering the collectors on
// first use. Registration on the default registry can happen only once.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = newMetrics()
	})
	return defaultMetrics
}

func newMetrics() *Metrics {
	m := &Metrics{}

	m.HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenprint_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "status"},
	)
	m.HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "greenprint_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	m.EditsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenprint_document_edits_total",
			Help: "Total number of accepted document edits",
		},
		[]string{"operation"},
	)
	m.SessionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "greenprint_editor_sessions_open",
			Help: "Number of currently open editing sessions",
		},
	)
	m.SavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenprint_saves_total",
			Help: "Total number of save attempts",
		},
		[]string{"status"},
	)
	m.SaveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "greenprint_save_duration_seconds",
			Help:    "Duration of save round trips in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.AssistRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenprint_assist_requests_total",
			Help: "Total number of AI assist requests",
		},
		[]string{"kind", "status"},
	)
	m.AssistStaleTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "greenprint_assist_stale_results_total",
			Help: "Assist results discarded because the target changed",
		},
	)
	m.AssistDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "greenprint_assist_duration_seconds",
			Help:    "Duration of assist round trips in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	m.ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenprint_exports_total",
			Help: "Total number of document exports",
		},
		[]string{"format", "status"},
	)

	return m
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(route, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordSave records one save attempt.
func (m *Metrics) RecordSave(status string, duration time.Duration) {
	m.SavesTotal.WithLabelValues(status).Inc()
	m.SaveDuration.Observe(duration.Seconds())
}

// RecordAssist records one assist round trip.
func (m *Metrics) RecordAssist(kind, status string, duration time.Duration) {
	m.AssistRequestsTotal.WithLabelValues(kind, status).Inc()
	m.AssistDuration.WithLabelValues(kind).Observe(duration.Seconds())
}
