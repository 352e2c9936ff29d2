// Package httpserver exposes the trading API, metrics and health endpoints.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dcastillo/soltrade/internal/aggregator"
	"github.com/dcastillo/soltrade/internal/execution"
	"github.com/dcastillo/soltrade/internal/orderbook"
	"github.com/dcastillo/soltrade/internal/tokens"
	"github.com/dcastillo/soltrade/pkg/healthprobe"
)

// Watcher registers mints with the price feed so conditional orders get
// evaluated.
type Watcher interface {
	Subscribe(ctx context.Context, mints []string) error
}

// Server provides HTTP endpoints for the trading API, metrics and health.
type Server struct {
	server        *http.Server
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
}

// Config holds server configuration.
type Config struct {
	Port          string
	Logger        *zap.Logger
	HealthChecker *healthprobe.HealthChecker
	Book          *orderbook.Book
	Coordinator   *execution.Coordinator
	Aggregator    *aggregator.Aggregator
	Watcher       Watcher
	DefaultTTL    time.Duration
	TokenRegistry *tokens.Registry
}

// New creates a new HTTP server.
func New(cfg *Config) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", cfg.HealthChecker.Health())
	r.Get("/ready", cfg.HealthChecker.Ready())

	if cfg.Book != nil && cfg.Coordinator != nil {
		th := NewTradeHandler(cfg.Coordinator, cfg.Aggregator, cfg.Logger)
		r.Post("/api/trade", th.HandleTrade)
		r.Get("/api/quote", th.HandleQuote)
		r.Get("/api/venues", th.HandleVenues)

		oh := NewOrdersHandler(cfg.Book, cfg.Watcher, cfg.DefaultTTL, cfg.Logger)
		r.Post("/api/orders", oh.HandleCreate)
		r.Get("/api/orders", oh.HandleList)
		r.Get("/api/orders/{id}", oh.HandleGet)
		r.Delete("/api/orders/{id}", oh.HandleCancel)
	}

	if cfg.TokenRegistry != nil {
		tk := NewTokensHandler(cfg.TokenRegistry, cfg.Logger)
		r.Get("/api/tokens/{mint}", tk.HandleResolve)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		server:        server,
		logger:        cfg.Logger,
		healthChecker: cfg.HealthChecker,
	}
}

// Start starts the HTTP server.
// This is a blocking call that returns when the server stops or encounters an error.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("http-server-shutdown-complete")
	return nil
}
