// Package server exposes the registry over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/projectpynew-png/SFT-Number-Generator/internal/config"
	"github.com/projectpynew-png/SFT-Number-Generator/internal/metrics"
	"github.com/projectpynew-png/SFT-Number-Generator/internal/registry"
)

// Server wires the registry into a gin engine
type Server struct {
	registry *registry.Registry
	metrics  *metrics.Collector
	logger   *slog.Logger
	now      func() time.Time
	engine   *gin.Engine
}

// Options configures a Server. Metrics may be nil.
type Options struct {
	Registry    *registry.Registry
	Metrics     *metrics.Collector
	MetricsPath string
	Logger      *slog.Logger
	Mode        string
	Now         func() time.Time
}

// New builds the router
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}

	s := &Server{
		registry: opts.Registry,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		now:      opts.Now,
		engine:   gin.New(),
	}

	var obs requestObserver
	if s.metrics != nil {
		obs = s.metrics
	}
	s.engine.Use(gin.Recovery(), RequestID(), RequestLogger(s.logger, obs))

	s.engine.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.engine.GET(path, gin.WrapH(s.metrics.Handler()))
	}

	api := s.engine.Group("/api/v1")
	{
		api.GET("/stats", s.handleStats)
		api.GET("/timeline", s.handleTimeline)
		api.GET("/numbers/:number", s.handleNumber)
		api.GET("/registrations", s.handleListRegistrations)
		api.POST("/registrations", s.handleRegister)
		api.POST("/registrations/bulk", s.handleBulk)
		api.POST("/reservations", s.handleReserve)
		api.GET("/export", s.handleExport)
	}

	s.engine.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "not found")
	})

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
