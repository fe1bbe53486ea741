// Package api serves the website registration endpoint, health checks and
// Prometheus metrics over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/haasonsaas/concierge/internal/guests"
	"github.com/haasonsaas/concierge/internal/observability"
	"github.com/haasonsaas/concierge/pkg/models"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "concierge-api"

// Registrar stores registrations. *guests.Service satisfies it.
type Registrar interface {
	Register(ctx context.Context, reg *guests.Registration, source guests.Source) (*models.Guest, error)
}

// Recorder receives request metrics. *observability.Metrics satisfies it.
type Recorder interface {
	RecordHTTPRequest(method, path, statusCode string, durationSeconds float64)
}

// Config configures a Server.
type Config struct {
	Guests Registrar

	// AllowedOrigins restricts CORS. Empty allows every origin.
	AllowedOrigins []string

	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler

	// Webhook is mounted at WebhookPath when both are set, so a webhook
	// bot can share the API listener.
	Webhook     http.Handler
	WebhookPath string

	// MaxBodyBytes caps request bodies. Defaults to 64 KiB.
	MaxBodyBytes int64

	Metrics Recorder
	Tracer  *observability.Tracer
	Logger  *slog.Logger
}

// Server is the HTTP API.
type Server struct {
	engine  *gin.Engine
	guests  Registrar
	maxBody int64
	logger  *slog.Logger
}

// New builds the router.
func New(cfg Config) (*Server, error) {
	if cfg.Guests == nil {
		return nil, errors.New("api: guest registrar is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	logger := cfg.Logger.With("component", "api")

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestIDMiddleware())
	engine.Use(instrumentMiddleware(logger, cfg.Metrics, cfg.Tracer))
	engine.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	s := &Server{
		engine:  engine,
		guests:  cfg.Guests,
		maxBody: cfg.MaxBodyBytes,
		logger:  logger,
	}

	engine.GET("/health", s.handleHealth)
	if cfg.MetricsHandler != nil {
		engine.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}
	if cfg.Webhook != nil && cfg.WebhookPath != "" {
		engine.POST(cfg.WebhookPath, gin.WrapH(cfg.Webhook))
	}

	v1 := engine.Group("/api/v1")
	v1.Use(errorMiddleware(logger))
	v1.POST("/guests/register", s.handleRegister)

	engine.NoRoute(errorMiddleware(logger), func(c *gin.Context) {
		abortWithError(c, NewHTTPError(http.StatusNotFound, CodeNotFound, "route not found", nil))
	})

	return s, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", requestIDHeader}
	cfg.ExposeHeaders = []string{requestIDHeader}
	cfg.MaxAge = 12 * time.Hour
	return cfg
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is canceled, then shuts down gracefully
// within shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, shutdownTimeout)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http api listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
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
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http api: %w", err)
	}
	s.logger.Info("http api stopped")
	return nil
}
