// Package metrics holds the Prometheus collectors for linglenz.
//
// All Record* methods are safe to call on a nil *Metrics, so components can
// be constructed without instrumentation in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for linglenz.
type Metrics struct {
	registry *prometheus.Registry

	// Correction gateway
	CorrectionAttempts        *prometheus.CounterVec
	CorrectionAttemptDuration *prometheus.HistogramVec
	CorrectionExhausted       prometheus.Counter
	CorrectionCache           *prometheus.CounterVec

	// Analysis
	EntriesResolved *prometheus.CounterVec
	EntriesInFlight prometheus.Gauge
	Retries         *prometheus.CounterVec

	// Capture
	CaptureActive   prometheus.Gauge
	CaptureSegments *prometheus.CounterVec

	// Sessions
	SessionTransitions *prometheus.CounterVec

	// HTTP
	HTTPRequests       *prometheus.CounterVec
	HTTPRequestLatency *prometheus.HistogramVec
	EventStreamClients prometheus.Gauge
}

// New creates a Metrics instance with all collectors registered on a private registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "linglenz"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CorrectionAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "correction",
			Name:      "attempts_total",
			Help:      "Correction backend attempts by model and outcome",
		}, []string{"model", "outcome"}),
		CorrectionAttemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "correction",
			Name:      "attempt_duration_seconds",
			Help:      "Correction backend attempt duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"model"}),
		CorrectionExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "correction",
			Name:      "exhausted_total",
			Help:      "Requests for which every model in the waterfall failed",
		}),
		CorrectionCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "correction",
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by result",
		}, []string{"result"}),
		EntriesResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "entries_resolved_total",
			Help:      "Mistake entries reaching done or error, by source",
		}, []string{"source", "status"}),
		EntriesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "entries_in_flight",
			Help:      "Entries currently waiting on the correction gateway",
		}),
		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "retries_total",
			Help:      "Analysis retries by kind",
		}, []string{"kind"}),
		CaptureActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "active",
			Help:      "Number of active microphone captures",
		}),
		CaptureSegments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "segments_total",
			Help:      "Audio segments by processing outcome",
		}, []string{"outcome"}),
		SessionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "transitions_total",
			Help:      "Class session status changes by target status",
		}, []string{"status"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP API requests by route and status code",
		}, []string{"route", "code"}),
		HTTPRequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		EventStreamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "event_stream_clients",
			Help:      "Connected session event stream clients",
		}),
	}

	m.registry.MustRegister(
		m.CorrectionAttempts,
		m.CorrectionAttemptDuration,
		m.CorrectionExhausted,
		m.CorrectionCache,
		m.EntriesResolved,
		m.EntriesInFlight,
		m.Retries,
		m.CaptureActive,
		m.CaptureSegments,
		m.SessionTransitions,
		m.HTTPRequests,
		m.HTTPRequestLatency,
		m.EventStreamClients,
	)

	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordAttempt records one correction backend attempt.
func (m *Metrics) RecordAttempt(model, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.CorrectionAttempts.WithLabelValues(model, outcome).Inc()
	m.CorrectionAttemptDuration.WithLabelValues(model).Observe(d.Seconds())
}

// RecordExhausted records a request for which every model failed.
func (m *Metrics) RecordExhausted() {
	if m == nil {
		return
	}
	m.CorrectionExhausted.Inc()
}

// RecordCacheLookup records a result cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CorrectionCache.WithLabelValues(result).Inc()
}

// RecordEntryResolved records an entry reaching a final state.
func (m *Metrics) RecordEntryResolved(source, status string) {
	if m == nil {
		return
	}
	m.EntriesResolved.WithLabelValues(source, status).Inc()
}

// RecordInFlight adjusts the in-flight gauge by delta.
func (m *Metrics) RecordInFlight(delta int) {
	if m == nil {
		return
	}
	m.EntriesInFlight.Add(float64(delta))
}

// RecordRetry records an automatic or manual retry.
func (m *Metrics) RecordRetry(kind string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(kind).Inc()
}

// RecordCaptureActive adjusts the active capture gauge by delta.
func (m *Metrics) RecordCaptureActive(delta int) {
	if m == nil {
		return
	}
	m.CaptureActive.Add(float64(delta))
}

// RecordSegment records the outcome of one audio segment.
func (m *Metrics) RecordSegment(outcome string) {
	if m == nil {
		return
	}
	m.CaptureSegments.WithLabelValues(outcome).Inc()
}

// RecordSessionTransition records a class session entering status.
func (m *Metrics) RecordSessionTransition(status string) {
	if m == nil {
		return
	}
	m.SessionTransitions.WithLabelValues(status).Inc()
}

// RecordHTTP records a completed HTTP request.
func (m *Metrics) RecordHTTP(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.HTTPRequestLatency.WithLabelValues(route).Observe(d.Seconds())
}

// RecordStreamClients adjusts the connected event stream gauge by delta.
func (m *Metrics) RecordStreamClients(delta int) {
	if m == nil {
		return
	}
	m.EventStreamClients.Add(float64(delta))
}
