// Package server sets up the cookie inspector HTTP server
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/campaigntrip/convertapi/internal/circuitbreaker"
	"github.com/campaigntrip/convertapi/internal/config"
	"github.com/campaigntrip/convertapi/internal/convert"
	"github.com/campaigntrip/convertapi/internal/health"
	"github.com/campaigntrip/convertapi/internal/logging"
	"github.com/campaigntrip/convertapi/internal/metrics"
	"github.com/campaigntrip/convertapi/internal/ratelimit"
	"github.com/campaigntrip/convertapi/internal/resolve"
	"github.com/campaigntrip/convertapi/internal/security"
	"github.com/campaigntrip/convertapi/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg     *config.Config
	client  *convert.Client // nil without API credentials
	breaker *circuitbreaker.Breaker
	limiter *ratelimit.Limiter // nil when disabled
	health  *health.Registry
	router  *gin.Engine
	httpSrv *http.Server
	logger  *slog.Logger
	version string

	drainDelay time.Duration

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Consecutive upstream failures per account/project before resolution is
// refused, and for how long.
const (
	breakerThreshold    = 5
	breakerOpenDuration = 30 * time.Second
)

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithClient sets the Convert API client used for id resolution
func WithClient(c *convert.Client) Option {
	return func(s *Server) {
		s.client = c
	}
}

// WithVersion sets the version reported by /health
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: nil config")
	}

	s := &Server{
		cfg:        cfg,
		logger:     logging.New(cfg.LogLevel, cfg.LogFormat),
		version:    "dev",
		drainDelay: 2 * time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil && cfg.RequireAPICredentials() == nil {
		s.client = convert.NewClient(convert.ConfigFrom(cfg, s.logger, 0))
		s.logger.Info("id resolution enabled", "api_url", cfg.APIURL)
	}

	s.breaker = circuitbreaker.New(breakerThreshold, breakerOpenDuration, nil)
	if rl := (ratelimit.Config{
		RequestsPerMinute: cfg.RateLimitRPM,
		Burst:             cfg.RateLimitBurst,
	}); rl.Enabled() {
		s.limiter = ratelimit.New(rl, nil)
	}

	s.health = health.NewRegistry(health.DefaultTimeout)
	s.health.Register("config", func(context.Context) error { return cfg.Validate() })
	s.health.RegisterOptional("api_credentials", func(context.Context) error { return cfg.RequireAPICredentials() })

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	s.router.Use(security.HeadersMiddleware())
	s.router.Use(security.CORSMiddleware(s.cfg.CORSOrigins))
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))
	s.router.Use(metrics.Middleware())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
		}

		logger := logging.L(c.Request.Context())
		switch {
		case status >= 500:
			logger.Error("request completed", append(attrs, "client_ip", c.ClientIP())...)
		case status >= 400:
			logger.Warn("request completed", attrs...)
		default:
			logger.Info("request completed", attrs...)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	v1 := s.router.Group("/v1")
	if s.limiter != nil {
		v1.Use(s.limiter.Middleware())
	}
	v1.POST("/cookies/decode", s.decodeCookieHandler)

	// Signing arbitrary input with the configured secret is a debugging aid only.
	if s.cfg.IsDevelopment() {
		v1.POST("/signatures", s.signatureHandler)
	}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	healthy, checks := s.health.CheckAll(c.Request.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   s.version,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// translator returns the translator used for resolved output.
func (s *Server) translator(ctx context.Context, labelWithID bool) *resolve.Translator {
	return &resolve.Translator{Logger: logging.L(ctx), LabelWithID: labelWithID}
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.cfg.Timeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"env", s.cfg.Env,
			"resolve", s.client != nil,
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	s.ready.Store(true)
	s.logger.Info("server ready")

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Give load balancers time to stop sending traffic
	time.Sleep(s.drainDelay)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}
