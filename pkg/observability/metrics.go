package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the access-control service.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Access decision metrics
	AccessChecksTotal    *prometheus.CounterVec
	RoleSwitchesTotal    *prometheus.CounterVec
	BanGuardTrippedTotal prometheus.Counter

	// Permission catalog metrics
	PermissionDropsTotal prometheus.Counter

	// Upstream CRM metrics
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec
	StaleCredentialTotal    prometheus.Counter

	// Directory cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accessgate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "accessgate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AccessChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accessgate_access_checks_total",
				Help: "Total number of page access decisions",
			},
			[]string{"decision"},
		),
		RoleSwitchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accessgate_role_switches_total",
				Help: "Total number of role switch attempts",
			},
			[]string{"target_role", "status"},
		),
		BanGuardTrippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "accessgate_ban_guard_tripped_total",
				Help: "Ban requests rejected client-side because the target is an admin",
			},
		),
		PermissionDropsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "accessgate_permission_drops_total",
				Help: "Permission names dropped during batch translation",
			},
		),
		UpstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accessgate_upstream_requests_total",
				Help: "Total number of upstream CRM requests",
			},
			[]string{"endpoint", "status"},
		),
		UpstreamRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "accessgate_upstream_request_duration_seconds",
				Help:    "Upstream CRM request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		StaleCredentialTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "accessgate_stale_credential_total",
				Help: "Calls short-circuited by an expired or missing bearer token",
			},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accessgate_cache_hits_total",
				Help: "Directory cache hits",
			},
			[]string{"tier"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accessgate_cache_misses_total",
				Help: "Directory cache misses",
			},
			[]string{"tier"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AccessChecksTotal,
		m.RoleSwitchesTotal,
		m.BanGuardTrippedTotal,
		m.PermissionDropsTotal,
		m.UpstreamRequestsTotal,
		m.UpstreamRequestDuration,
		m.StaleCredentialTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// MetricsHandler returns the /metrics endpoint handler for the registry.
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
