// Package apiserver provides the JSON API HTTP server
package apiserver

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/andybalholm/brotli"
	"github.com/ecofridge/server/internal/infrastructure/config"
	"github.com/ecofridge/server/internal/infrastructure/events"
	"github.com/ecofridge/server/internal/infrastructure/http/handlers"
	"github.com/ecofridge/server/internal/infrastructure/http/middleware"
	"github.com/ecofridge/server/internal/infrastructure/monitoring"
	"github.com/ecofridge/server/internal/ports/inbound"
	"github.com/ecofridge/server/pkg/healthcheck"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// compressibleTypes are the response types the compressor handles
var compressibleTypes = []string{"application/json", "text/plain"}

// Deps are the collaborators the server routes to. Metrics and Hub may be nil.
type Deps struct {
	Service inbound.PantryService
	Health  *healthcheck.HealthCheck
	Metrics *monitoring.MetricsCollector
	Hub     *events.Hub
}

// APIServer represents the JSON API HTTP server
type APIServer struct {
	config  *config.Config
	logger  *zap.Logger
	deps    Deps
	docs    *OpenAPIHandler
	server  *http.Server
	handler http.Handler
}

// NewAPIServer creates a new API server instance
func NewAPIServer(cfg *config.Config, log *zap.Logger, deps Deps) (*APIServer, error) {
	docs, err := NewOpenAPIHandler(log)
	if err != nil {
		return nil, err
	}
	s := &APIServer{
		config: cfg,
		logger: log.Named("api"),
		deps:   deps,
		docs:   docs,
	}

	var handler http.Handler = s.setupRoutes()
	handler = otelhttp.NewHandler(handler, cfg.App.Name,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
	if cfg.Server.EnableH2C {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}
	s.handler = handler

	s.server = &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s, nil
}

// setupRoutes configures the router
func (s *APIServer) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Tenant(s.config.Pipeline.DefaultTenant))
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Security())
	if s.config.Server.EnableCORS {
		r.Use(middleware.CORS(s.config.Server.AllowedOrigins))
	}
	if s.deps.Metrics != nil {
		r.Use(s.deps.Metrics.HTTPMiddleware)
	}

	healthPath := s.config.Monitoring.HealthCheckPath
	if healthPath == "" {
		healthPath = "/health"
	}
	if s.deps.Health != nil {
		r.Get(healthPath, s.deps.Health.Handler())
		r.Get(healthPath+"/live", s.deps.Health.LivenessHandler())
	}

	if s.deps.Metrics != nil && s.config.Monitoring.EnableMetrics {
		r.Handle(s.config.Monitoring.MetricsPath, s.deps.Metrics.Handler())
	}

	limiter := middleware.NewRateLimiter(s.config.Server.RateLimitRPS, s.config.Server.RateLimitBurst)
	compressor := chimiddleware.NewCompressor(5, compressibleTypes...)
	compressor.SetEncoder("br", func(w io.Writer, level int) io.Writer {
		return brotli.NewWriterLevel(w, level)
	})
	pantry := handlers.NewPantryHandlers(s.deps.Service, s.config.Server.MaxUploadBytes, s.logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/openapi.yaml", s.docs.ServeOpenAPISpec)
		r.Get("/openapi.json", s.docs.ServeOpenAPIJSON)
		r.Get("/docs", s.docs.ServeSwaggerUI)

		if s.deps.Hub != nil {
			r.Get("/events", s.serveEvents)
		}

		r.Group(func(r chi.Router) {
			r.Use(limiter.Handler)
			r.Use(compressor.Handler)
			if s.config.Server.WriteTimeout > 0 {
				r.Use(chimiddleware.Timeout(s.config.Server.WriteTimeout))
			}
			pantry.Routes(r)
		})
	})

	return r
}

// serveEvents streams the caller's tenant events over a websocket
func (s *APIServer) serveEvents(w http.ResponseWriter, r *http.Request) {
	s.deps.Hub.ServeWS(w, r, middleware.TenantFromContext(r.Context()))
}

// Handler returns the fully wrapped handler
func (s *APIServer) Handler() http.Handler {
	return s.handler
}

// Start listens and serves until Shutdown. A clean shutdown returns nil.
func (s *APIServer) Start() error {
	s.logger.Info("Starting API server",
		zap.String("address", s.server.Addr),
		zap.Bool("h2c", s.config.Server.EnableH2C),
	)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Server returns the underlying HTTP server instance
func (s *APIServer) Server() *http.Server {
	return s.server
}

// Shutdown gracefully shuts down the server
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server...")
	return s.server.Shutdown(ctx)
}
