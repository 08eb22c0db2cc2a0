// Package server exposes the guardrails pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/melroyanthony/llm-guardrails/internal/config"
	"github.com/melroyanthony/llm-guardrails/internal/guard"
	"github.com/melroyanthony/llm-guardrails/internal/metrics"
)

const (
	defaultTimeout  = 60 * time.Second
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// Server holds the dependencies of the HTTP API.
type Server struct {
	pipeline  *guard.Pipeline
	responder guard.Responder
	metrics   *metrics.Collector
	logger    *slog.Logger

	version   string
	timeout   time.Duration
	rateRPS   float64
	rateBurst int
}

// Option configures the Server.
type Option func(*Server)

// WithResponder sets the model used by /guard/full when the request
// carries no canned response. Without one, replies are simulated.
func WithResponder(r guard.Responder) Option {
	return func(s *Server) { s.responder = r }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) { s.metrics = c }
}

func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithRateLimit limits each client IP to rps requests per second. A
// non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		s.rateRPS = rps
		s.rateBurst = burst
	}
}

// WithRequestTimeout bounds each request. Zero keeps the default.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New builds a Server around pipeline.
func New(pipeline *guard.Pipeline, logger *slog.Logger, opts ...Option) (*Server, error) {
	if pipeline == nil {
		return nil, errors.New("pipeline cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	s := &Server{
		pipeline: pipeline,
		logger:   logger.With("component", "server"),
		version:  "dev",
		timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewCollector()
	}
	return s, nil
}

// Routes returns the router with all middleware and routes. ctx bounds
// background work such as rate-limiter cleanup.
func (s *Server) Routes(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(instrument(s.metrics))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		if s.rateRPS > 0 {
			r.Use(rateLimiter(ctx, s.rateRPS, s.rateBurst, s.logger))
		}
		r.Use(middleware.Timeout(s.timeout))

		r.Post("/guard/input", s.handleGuardInput)
		r.Post("/guard/output", s.handleGuardOutput)
		r.Post("/guard/full", s.handleGuardFull)

		r.Route("/v1", func(r chi.Router) {
			r.Get("/injection/rules", s.handleInjectionRules)
			r.Post("/redact", s.handleRedact)
			r.Post("/restore", s.handleRestore)
		})
	})

	return r
}

// Run serves on cfg.Addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Routes(ctx),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
