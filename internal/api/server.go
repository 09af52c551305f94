// Package api serves the MedTrack HTTP API and the reminder websocket.
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gmsas95/medtrack/internal/config"
	"github.com/gmsas95/medtrack/internal/identity"
	"github.com/gmsas95/medtrack/internal/metrics"
	"github.com/gmsas95/medtrack/internal/service"
)

// Version is reported by the health endpoint.
var Version = "dev"

// Server handles HTTP API and WebSocket
type Server struct {
	app      *fiber.App
	config   *config.Config
	auth     identity.Provider
	trackers *service.Manager
	metrics  *metrics.Metrics
	limiter  *ipLimiter
	logger   *zap.Logger
}

// New creates a new API server
func New(cfg *config.Config, auth identity.Provider, trackers *service.Manager, m *metrics.Metrics, logger *zap.Logger) *Server {
	if m == nil {
		m = metrics.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config:   cfg,
		auth:     auth,
		trackers: trackers,
		metrics:  m,
		limiter:  newIPLimiter(cfg.Security.AuthRatePerMinute, cfg.Security.AuthBurst),
		logger:   logger,
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "MedTrack",
		ReadTimeout:           time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:           120 * time.Second,
		ErrorHandler:          s.errorHandler,
		DisableStartupMessage: true,
	})

	s.setupRoutes()
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Address, s.config.Server.Port)
	s.logger.Info("HTTP server listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
