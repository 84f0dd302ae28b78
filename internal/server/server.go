// Package server wires the echo HTTP router: middleware, the route table and
// the listener lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/getout/app/internal/config"
	"github.com/getout/app/internal/logger"
	"github.com/getout/app/internal/metrics"
)

// HealthPath is the only application route.
const HealthPath = "/api/health"

// Server is the HTTP front of the service.
type Server struct {
	cfg     config.ServerConfig
	echo    *echo.Echo
	http    *http.Server
	logger  *slog.Logger
	metrics *metrics.Metrics
	routes  map[string]bool
}

// New builds the router. m may be nil, in which case no metrics are recorded
// and no metrics route is registered.
func New(cfg config.ServerConfig, metricsCfg config.MetricsConfig, log *slog.Logger, m *metrics.Metrics) *Server {
	if log == nil {
		log = logger.Discard()
	}
	log = log.With("component", "http_server")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		cfg:    cfg,
		echo:   e,
		logger: log,
		routes: make(map[string]bool),
	}
	if metricsCfg.Enabled {
		s.metrics = m
	}

	s.registerMiddleware()
	s.registerRoutes(metricsCfg.Path)

	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      e,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(log.Handler(), slog.LevelError),
	}

	return s
}

func (s *Server) registerMiddleware() {
	if s.metrics != nil {
		s.echo.Use(s.metrics.Middleware())
	}
	s.echo.Use(middleware.RequestID())
	s.echo.Use(logger.Middleware(s.logger))
	s.echo.Use(middleware.Recover())
	// Unknown paths fall through to echo's 404 untouched.
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		Skipper: func(c echo.Context) bool { return !s.routed(c) },
	}))
	// The health check answers regardless of what the client sends.
	s.echo.Use(middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
		Skipper: func(c echo.Context) bool { return c.Path() == HealthPath || !s.routed(c) },
		Limit:   s.cfg.BodyLimit,
	}))
}

func (s *Server) registerRoutes(metricsPath string) {
	s.echo.GET(HealthPath, Health)
	s.routes[HealthPath] = true

	if s.metrics != nil {
		s.echo.GET(metricsPath, echo.WrapHandler(s.metrics.Handler()))
		s.routes[metricsPath] = true
	}
}

// routed reports whether the request matched a registered route.
func (s *Server) routed(c echo.Context) bool {
	return s.routes[c.Path()]
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Routes lists the registered method/path pairs.
func (s *Server) Routes() []*echo.Route {
	return s.echo.Routes()
}

// Serve accepts connections on l until Shutdown is called. It returns nil
// after a graceful shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("HTTP server listening", "addr", l.Addr().String())
	if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// ListenAndServe binds cfg.Addr and serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(l)
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server...")
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped.")
	return nil
}
