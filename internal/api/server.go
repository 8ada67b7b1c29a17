package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/origination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// Probes are the backing stores checked by /health. Any of them may be nil.
type Probes struct {
	Repo  domain.Repository
	Cache domain.Cache
	Bus   domain.EventBus
}

// NewServer creates a new API server. gatherer backs /metrics; nil uses
// the default Prometheus registry.
func NewServer(cfg domain.ServerConfig, svc *origination.Service, probes Probes, gatherer prometheus.Gatherer, version string) *Server {
	handler := NewHandler(svc, probes, version)
	router := chi.NewRouter()

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	// Global middleware stack
	router.Use(CORSMiddleware(cfg.AllowedOrigins)) // CORS for browser clients
	router.Use(RecoverMiddleware)                  // Recover from panics
	router.Use(TracingMiddleware)                  // OpenTelemetry tracing
	router.Use(LoggingMiddleware)                  // Request logging
	router.Use(middleware.RealIP)                  // Extract real IP
	router.Use(middleware.Compress(5))             // Gzip compression

	// Operational endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	router.Get("/policies", handler.ListPolicies)

	// API routes (tenant required)
	router.Group(func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Stateless calculations
		r.Post("/simulate", handler.Simulate)
		r.Post("/evaluate", handler.Evaluate)

		// Applicant registry
		r.Post("/applicants", handler.RegisterApplicant)
		r.Get("/applicants", handler.ListApplicants)
		r.Get("/applicants/{id}", handler.GetApplicant)
		r.Get("/applicants/{id}/applications", handler.ListApplicantApplications)

		// Application lifecycle
		r.Post("/applications", handler.SubmitApplication)
		r.Get("/applications", handler.ListApplications)
		r.Get("/applications/{id}", handler.GetApplication)
		r.Put("/applications/{id}/evaluate", handler.EvaluateApplication)
		r.Post("/applications/{id}/cancel", handler.CancelApplication)
		r.Delete("/applications/{id}", handler.DeleteApplication)

		// Advisory rule management
		r.Get("/rules", handler.ListRules)
		r.Get("/rules/{id}", handler.GetRule)
		r.Post("/rules", handler.CreateRule)
		r.Post("/rules/reload", handler.ReloadRules)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
