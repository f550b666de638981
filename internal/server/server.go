package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/gate"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/registry"
	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/store"
)

// Server exposes the registry, the ledger and the gate over HTTP.
type Server struct {
	echo     *echo.Echo
	store    *store.Store
	registry *registry.Registry
	gate     *gate.Gate
	dataPath string
	validate *validator.Validate
	logger   *zerolog.Logger
}

// Options wires a Server.
type Options struct {
	Store    *store.Store
	Registry *registry.Registry
	Gate     gate.GateConfig
	DataPath string // dataset summarized by /api/stats
	Logger   *zerolog.Logger
}

func New(opts Options) *Server {
	s := &Server{
		echo:     echo.New(),
		store:    opts.Store,
		registry: opts.Registry,
		gate:     gate.NewGate(opts.Gate),
		dataPath: opts.DataPath,
		validate: validator.New(),
		logger:   opts.Logger,
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.echo.Use(echomiddleware.Recover())
	s.echo.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			s.logger.Debug().Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).Msg("request")
			return nil
		},
	}))

	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/health", s.Health)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")
	api.GET("/status", s.Status)
	api.POST("/reload_model", s.ReloadModel)
	api.POST("/decide", s.Decide)
	api.GET("/model", s.Model)
	api.GET("/history", s.History)
	api.GET("/comparison", s.Comparison)
	api.GET("/stats", s.Stats)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("http server starting")
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info().Msg("http server shutting down")
	return s.echo.Shutdown(shutdownCtx)
}
