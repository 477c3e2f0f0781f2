package api

import (
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/enrollhq/accessgate/pkg/audit"
	"github.com/enrollhq/accessgate/pkg/crmclient"
	"github.com/enrollhq/accessgate/pkg/middleware"
	"github.com/enrollhq/accessgate/pkg/observability"
)

// Server is the gateway's HTTP server.
type Server struct {
	router   *mux.Router
	crm      *crmclient.Client
	log      *observability.Logger
	metrics  *observability.Metrics
	registry *prometheus.Registry
	recorder audit.Recorder
	health   *observability.HealthChecker

	// sessions maps bearer tokens to their role switcher state, evicting
	// least-recently-used entries so abandoned tokens cannot grow the map
	// without bound. Sessions are ephemeral: a restart or an eviction
	// resets the caller to their primary role.
	sessions *lru.Cache[string, *session]

	// updates marks user IDs with a permission update in flight. A second
	// concurrent submission for the same user is rejected, not queued.
	updates sync.Map
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithMetrics wires Prometheus metrics and the /metrics endpoint.
func WithMetrics(m *observability.Metrics, registry *prometheus.Registry) ServerOption {
	return func(s *Server) {
		s.metrics = m
		s.registry = registry
	}
}

// WithAuditRecorder sets the audit trail destination.
func WithAuditRecorder(rec audit.Recorder) ServerOption {
	return func(s *Server) { s.recorder = rec }
}

// WithHealthChecker wires dependency probes into /readyz.
func WithHealthChecker(h *observability.HealthChecker) ServerOption {
	return func(s *Server) { s.health = h }
}

const sessionCacheSize = 4096

// NewServer creates the API server.
func NewServer(crm *crmclient.Client, log *observability.Logger, opts ...ServerOption) *Server {
	// lru.New only fails on a non-positive size.
	sessions, _ := lru.New[string, *session](sessionCacheSize)
	s := &Server{
		router:   mux.NewRouter(),
		crm:      crm,
		log:      log,
		recorder: audit.Nop{},
		health:   observability.NewHealthChecker(nil, nil),
		sessions: sessions,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logging(s.log))
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}

	// Probes and metrics stay outside the auth chain.
	s.router.HandleFunc("/healthz", s.health.Liveness).Methods("GET")
	s.router.HandleFunc("/readyz", s.health.Readiness).Methods("GET")
	if s.registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.registry)).Methods("GET")
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.NewBearerMiddleware(false).Handler)

	api.HandleFunc("/access/check", s.checkAccess).Methods("GET")
	api.HandleFunc("/nav", s.getNav).Methods("GET")
	api.HandleFunc("/session/switch-role", s.switchRole).Methods("POST")

	api.HandleFunc("/users", s.registerUser).Methods("POST")
	api.HandleFunc("/users/staffs", s.listStaff).Methods("GET")
	api.HandleFunc("/users/students", s.listStudents).Methods("GET")
	api.HandleFunc("/users/{id:[0-9]+}/permissions", s.updatePermissions).Methods("PUT")
	api.HandleFunc("/users/{id:[0-9]+}/ban", s.banUser).Methods("POST")
	api.HandleFunc("/users/{id:[0-9]+}/unban", s.unbanUser).Methods("POST")
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
