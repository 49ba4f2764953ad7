// Package server exposes the fitting pipeline over HTTP: upload endpoints
// returning parameters and base64 PNG charts, fit history and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KaramelBytes/assayfit-cli/internal/analysis"
	"github.com/KaramelBytes/assayfit-cli/internal/chart"
	"github.com/KaramelBytes/assayfit-cli/internal/history"
	"github.com/KaramelBytes/assayfit-cli/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

// Options configure the HTTP surface.
type Options struct {
	CORSOrigins []string
	MaxUploadMB int
	ChartSize   chart.Size
}

// Server wires the analyzer, the optional history store and metrics into an
// echo instance.
type Server struct {
	Echo *echo.Echo

	analyzer *analysis.Analyzer
	history  *history.Store
	metrics  *metrics.FitMetrics
	opts     Options
	logger   *slog.Logger
}

// New builds the server and registers its routes. hist and fm may be nil.
func New(a *analysis.Analyzer, opts Options, hist *history.Store, fm *metrics.FitMetrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 10
	}
	if opts.ChartSize.Width <= 0 || opts.ChartSize.Height <= 0 {
		opts.ChartSize = chart.DefaultSize
	}
	s := &Server{
		Echo:     echo.New(),
		analyzer: a,
		history:  hist,
		metrics:  fm,
		opts:     opts,
		logger:   logger.With("component", "http"),
	}
	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.initMiddleware()
	s.initRoutes()
	return s
}

func (s *Server) initMiddleware() {
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(middleware.RequestID())
	s.Echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.opts.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
	s.Echo.Use(middleware.BodyLimit(fmt.Sprintf("%dM", s.opts.MaxUploadMB)))
}

func (s *Server) initRoutes() {
	s.Echo.POST("/plot_kinetic", s.handleKinetic(false))
	s.Echo.POST("/plotit", s.handleKinetic(true))
	s.Echo.POST("/plot_temperature", s.handleThermo)
	s.Echo.GET("/healthz", s.handleHealth)
	s.Echo.GET("/api/history", s.handleHistoryList)
	s.Echo.GET("/api/history/:id", s.handleHistoryGet)
	if s.metrics != nil {
		s.Echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{
			ErrorHandling: promhttp.HTTPErrorOnError,
		})))
	}
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- s.Echo.Start(addr)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
