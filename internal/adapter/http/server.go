package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/impact-predictor-service/internal/predictor"
)

// Server serves the prediction pages, the JSON API, and the health,
// readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	registry   *predictor.Registry
	pages      *renderer
	logger     *slog.Logger
}

// NewServer wires all routes. Templates are parsed up front so a broken
// template fails startup rather than the first request.
func NewServer(addr string, registry *predictor.Registry, ready sharedobs.ReadinessChecker, logger *slog.Logger) (*Server, error) {
	pages, err := newRenderer()
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		registry: registry,
		pages:    pages,
		logger:   logger,
	}

	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /about", s.handleAbout)
	mux.HandleFunc("GET /predict", s.handlePredictForm)
	mux.HandleFunc("POST /predict", s.handlePredictSubmit)

	mux.HandleFunc("POST /api/v1/predict", s.handleAPIPredict)
	mux.HandleFunc("GET /api/v1/apps", s.handleAPIApps)
	mux.HandleFunc("GET /openapi.json", s.handleOpenAPI)

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s, nil
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr, "apps", s.registry.Names())
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
