// Package metrics exposes the service's Prometheus collectors. A Metrics
// value owns its own registry; package-level helpers record against the
// instance installed with SetGlobal and are no-ops until one is.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds every collector the service records.
type Metrics struct {
	EventsIngestedTotal *prometheus.CounterVec
	EventsRejectedTotal *prometheus.CounterVec
	ImportRunsTotal     *prometheus.CounterVec
	ReportDuration      *prometheus.HistogramVec
	CacheRequestsTotal  *prometheus.CounterVec
	SnapshotsTotal      *prometheus.CounterVec
	LoginAttemptsTotal  *prometheus.CounterVec
	RateLimitedTotal    *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrorsTotal     *prometheus.CounterVec
	SuppressedTotal     prometheus.Counter

	registry *prometheus.Registry
}

// New creates a Metrics instance with every collector registered, plus the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		EventsIngestedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sgi_events_ingested_total",
				Help: "Events stored, by ingestion source and event kind",
			},
			[]string{"source", "kind"},
		),
		EventsRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sgi_events_rejected_total",
				Help: "Raw records dropped by the normalizer",
			},
			[]string{"source"},
		),
		ImportRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sgi_import_runs_total",
				Help: "S3 import runs by outcome",
			},
			[]string{"outcome"},
		),
		ReportDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sgi_report_duration_seconds",
				Help:    "Time to build a report, including event loading",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"report"},
		),
		CacheRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sgi_report_cache_requests_total",
				Help: "Report cache lookups by result",
			},
			[]string{"result"},
		),
		SnapshotsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sgi_snapshots_total",
				Help: "Report snapshots archived by outcome",
			},
			[]string{"outcome"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sgi_login_attempts_total",
				Help: "Dashboard login attempts by outcome",
			},
			[]string{"outcome"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sgi_rate_limited_total",
				Help: "Requests rejected by a rate limiter",
			},
			[]string{"limiter"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sgi_http_requests_total",
				Help: "HTTP requests by method, route and status",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sgi_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sgi_http_errors_total",
				Help: "HTTP error responses by class",
			},
			[]string{"error_type"},
		),
		SuppressedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sgi_recipients_suppressed_total",
				Help: "Recipients added to the suppression list",
			},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.EventsIngestedTotal,
		m.EventsRejectedTotal,
		m.ImportRunsTotal,
		m.ReportDuration,
		m.CacheRequestsTotal,
		m.SnapshotsTotal,
		m.LoginAttemptsTotal,
		m.RateLimitedTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPErrorsTotal,
		m.SuppressedTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetGlobal installs m as the instance the package helpers record to.
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the installed instance, or nil.
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// AddEventsIngested records n stored events of one kind from source.
func AddEventsIngested(source, kind string, n int) {
	if m := Global(); m != nil && n > 0 {
		m.EventsIngestedTotal.WithLabelValues(source, kind).Add(float64(n))
	}
}

// AddEventsRejected records n records the normalizer dropped.
func AddEventsRejected(source string, n int) {
	if m := Global(); m != nil && n > 0 {
		m.EventsRejectedTotal.WithLabelValues(source).Add(float64(n))
	}
}

// IncImportRun records one S3 import run.
func IncImportRun(outcome string) {
	if m := Global(); m != nil {
		m.ImportRunsTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveReport records how long a report took.
func ObserveReport(report string, seconds float64) {
	if m := Global(); m != nil {
		m.ReportDuration.WithLabelValues(report).Observe(seconds)
	}
}

// IncCache records a cache hit or miss.
func IncCache(hit bool) {
	m := Global()
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheRequestsTotal.WithLabelValues(result).Inc()
}

// IncSnapshot records one snapshot attempt.
func IncSnapshot(outcome string) {
	if m := Global(); m != nil {
		m.SnapshotsTotal.WithLabelValues(outcome).Inc()
	}
}

// IncLogin records one login attempt.
func IncLogin(outcome string) {
	if m := Global(); m != nil {
		m.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
	}
}

// IncRateLimited records a request rejected by limiter.
func IncRateLimited(limiter string) {
	if m := Global(); m != nil {
		m.RateLimitedTotal.WithLabelValues(limiter).Inc()
	}
}

// AddSuppressed records recipients added to the suppression list.
func AddSuppressed(n int) {
	if m := Global(); m != nil && n > 0 {
		m.SuppressedTotal.Add(float64(n))
	}
}
