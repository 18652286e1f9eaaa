package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	AuthzDecisionsTotal  *prometheus.CounterVec
	AuthzDeniedTotal     *prometheus.CounterVec
	DiagnosticReadsTotal prometheus.Counter

	// Permission cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Business metrics, sampled periodically by the server process
	WeddingsTotal           prometheus.Gauge
	PendingInvitationsTotal prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "veil_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "veil_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "veil_authz_decisions_total",
				Help: "Authorization decisions by role, capability and outcome",
			},
			[]string{"role", "capability", "allowed"},
		),
		AuthzDeniedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "veil_authz_denied_total",
				Help: "Denied authorization checks by capability",
			},
			[]string{"capability"},
		),
		DiagnosticReadsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "veil_diagnostic_reads_total",
				Help: "Reads of the open diagnostic collections",
			},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "veil_cache_hits_total",
				Help: "Permission cache hits by layer",
			},
			[]string{"layer"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "veil_cache_misses_total",
				Help: "Permission cache misses by layer",
			},
			[]string{"layer"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "veil_db_connections_active",
				Help: "Active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "veil_db_connections_idle",
				Help: "Idle database connections",
			},
		),
		WeddingsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "veil_weddings_total",
				Help: "Total number of active weddings",
			},
		),
		PendingInvitationsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "veil_pending_invitations_total",
				Help: "Invitations awaiting acceptance",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthzDecisionsTotal,
		m.AuthzDeniedTotal,
		m.DiagnosticReadsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.WeddingsTotal,
		m.PendingInvitationsTotal,
	)

	return m
}

// RecordDecision records one authorization decision.
func (m *Metrics) RecordDecision(role, capability string, allowed bool) {
	if role == "" {
		role = "none"
	}
	m.AuthzDecisionsTotal.WithLabelValues(role, capability, strconv.FormatBool(allowed)).Inc()
	if !allowed {
		m.AuthzDeniedTotal.WithLabelValues(capability).Inc()
	}
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// statusRecorder captures the response status for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware records request count and latency per route.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
