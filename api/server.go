// Package api provides the HTTP REST API for the Spark AI backend.
//
// Endpoints:
//
//	POST /ask              → question answering pipeline
//	GET  /health           → liveness probe
//	GET  /ready            → readiness probe (pings the knowledge database)
//	POST /api/add_data     → document ingestion
//	POST /model            → swap the embedding model
//	GET  /api/config/get   → read runtime configuration (secrets masked)
//	POST /api/config/set   → replace runtime configuration
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (recovery, rate limiting, logging)
//   - health.go: liveness and readiness probes
//   - ask.go: question answering endpoint
//   - ingest.go: document ingestion endpoint
//   - admin.go: model swap and runtime configuration endpoints
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/spark-health/sparkai/internal/config"
	"github.com/spark-health/sparkai/internal/log"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "0.0.0.0:5000"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	// This prevents Slowloris attacks (CWE-400).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response. It
	// exceeds the generation timeout so a slow completion is not cut off
	// mid-response.
	WriteTimeout = 150 * time.Second

	// IdleTimeout is the maximum time to wait for the next request on keep-alive connections.
	IdleTimeout = 120 * time.Second

	// Administrative and ingestion endpoints share one rate budget; the
	// question path is not limited here.
	adminRateLimit = rate.Limit(5)
	adminRateBurst = 10
)

// Service is the pipeline surface the HTTP layer exposes.
type Service interface {
	Answer(ctx context.Context, userID, query string) (string, error)
	Ingest(ctx context.Context, document string) (int, error)
}

// Pinger reports knowledge database connectivity for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServerConfig collects the Server dependencies.
type ServerConfig struct {
	Service Service
	Runtime *config.Runtime
	Pinger  Pinger

	// Reconnect rebuilds the knowledge database pool after a runtime
	// database-configuration change. May be nil when the store cannot be
	// rebuilt (tests).
	Reconnect func(ctx context.Context, dsn string) error

	Logger log.Logger
}

// Server is the HTTP server for the Spark AI REST API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	health *HealthHandler
	ask    *AskHandler
	ingest *IngestHandler
	admin  *AdminHandler
}

// NewServer creates a new HTTP server with all routes registered.
func NewServer(cfg ServerConfig) *Server {
	mux := http.NewServeMux()
	limiter := rate.NewLimiter(adminRateLimit, adminRateBurst)

	s := &Server{
		mux:    mux,
		logger: cfg.Logger,
		health: NewHealthHandler(cfg.Pinger, cfg.Logger),
		ask:    NewAskHandler(cfg.Service, cfg.Logger),
		ingest: NewIngestHandler(cfg.Service, limiter, cfg.Logger),
		admin:  NewAdminHandler(cfg.Runtime, cfg.Reconnect, limiter, cfg.Logger),
	}

	s.health.RegisterRoutes(mux)
	s.ask.RegisterRoutes(mux)
	s.ingest.RegisterRoutes(mux)
	s.admin.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → handler
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
	)
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
