package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
// A nil *Metrics is valid; every Record method is a no-op on it.
type Metrics struct {
	// Scraper metrics
	ScraperRequestsTotal   *prometheus.CounterVec
	ScraperDurationSeconds *prometheus.HistogramVec

	// Session / login metrics
	SessionResolutionsTotal *prometheus.CounterVec
	LoginAttemptsTotal      *prometheus.CounterVec

	// Extraction metrics
	RecordsParsedTotal  *prometheus.CounterVec
	SchemaMismatchTotal *prometheus.CounterVec

	// Rate limiter metrics
	RateLimiterWaitDuration prometheus.Histogram

	// Sync metrics
	SyncTotal    *prometheus.CounterVec
	SyncDuration prometheus.Histogram
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		ScraperRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "openct_scraper_requests_total",
				Help: "Total number of CMS HTTP requests by method and status",
			},
			[]string{"method", "status"}, // status: 2xx, 3xx, 4xx, 5xx, error
		),

		ScraperDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "openct_scraper_duration_seconds",
				Help:    "CMS HTTP request duration in seconds by method",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"method"},
		),

		SessionResolutionsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "openct_session_resolutions_total",
				Help: "Login URL resolutions by outcome",
			},
			[]string{"result"}, // result: static, dynamic, fallback
		),

		LoginAttemptsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "openct_login_attempts_total",
				Help: "Login attempts by institution and result",
			},
			[]string{"institution", "result"}, // result: success, auth_failed, form_missing, transport_error
		),

		RecordsParsedTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "openct_records_parsed_total",
				Help: "Records produced by the table extractors",
			},
			[]string{"institution", "kind"}, // kind: class, grade
		),

		SchemaMismatchTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "openct_schema_mismatch_total",
				Help: "Pages where the configured table id was not found",
			},
			[]string{"institution", "kind"},
		),

		RateLimiterWaitDuration: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "openct_rate_limiter_wait_duration_seconds",
				Help:    "Time spent waiting for the outbound rate limiter",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
		),

		SyncTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "openct_sync_total",
				Help: "Sync runs by institution and status",
			},
			[]string{"institution", "status"}, // status: success, error
		),

		SyncDuration: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "openct_sync_duration_seconds",
				Help:    "Duration of a full login-fetch-store sync",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
			},
		),
	}

	return m
}

// RecordScraperRequest records an outbound request with status class
func (m *Metrics) RecordScraperRequest(method, status string, duration float64) {
	if m == nil {
		return
	}
	m.ScraperRequestsTotal.WithLabelValues(method, status).Inc()
	m.ScraperDurationSeconds.WithLabelValues(method).Observe(duration)
}

// RecordSessionResolution records how a login URL was resolved
func (m *Metrics) RecordSessionResolution(result string) {
	if m == nil {
		return
	}
	m.SessionResolutionsTotal.WithLabelValues(result).Inc()
}

// RecordLogin records a login attempt outcome
func (m *Metrics) RecordLogin(institution, result string) {
	if m == nil {
		return
	}
	m.LoginAttemptsTotal.WithLabelValues(institution, result).Inc()
}

// RecordParsed records extracted records
func (m *Metrics) RecordParsed(institution, kind string, count int) {
	if m == nil {
		return
	}
	m.RecordsParsedTotal.WithLabelValues(institution, kind).Add(float64(count))
}

// RecordSchemaMismatch records a table-id miss
func (m *Metrics) RecordSchemaMismatch(institution, kind string) {
	if m == nil {
		return
	}
	m.SchemaMismatchTotal.WithLabelValues(institution, kind).Inc()
}

// RecordRateLimiterWait records time spent waiting for rate limiter
func (m *Metrics) RecordRateLimiterWait(duration float64) {
	if m == nil {
		return
	}
	m.RateLimiterWaitDuration.Observe(duration)
}

// RecordSync records a sync run
func (m *Metrics) RecordSync(institution, status string, duration float64) {
	if m == nil {
		return
	}
	m.SyncTotal.WithLabelValues(institution, status).Inc()
	m.SyncDuration.Observe(duration)
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
// Short-lived CLI runs use this instead of an HTTP /metrics endpoint.
func WriteTextfile(registry *prometheus.Registry, path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, registry)
}
