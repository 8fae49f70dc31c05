package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/health-advisor-server/internal/domain"
	"github.com/health-advisor-server/internal/middleware"
	"github.com/health-advisor-server/internal/prompt"
)

// Advisor runs the recommendation pipeline for free-text input.
type Advisor interface {
	RecommendFreeText(ctx context.Context, text, schemaVersion string) (*domain.HealthReport, error)
}

// Server represents the HTTP server
type Server struct {
	config  *domain.Config
	advisor Advisor
	runtime domain.ModelRuntime
	schema  *prompt.ReportSchema
	logger  *logrus.Logger
	router  *gin.Engine
	server  *http.Server

	// loadCtx bounds background model loads; it ends with the server.
	loadCtx context.Context
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *domain.Config, advisor Advisor, runtime domain.ModelRuntime, schema *prompt.ReportSchema, logger *logrus.Logger) (*Server, error) {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.Server.AllowOrigins))

	s := &Server{
		config:  cfg,
		advisor: advisor,
		runtime: runtime,
		schema:  schema,
		logger:  logger,
		router:  router,
		loadCtx: context.Background(),
	}

	if err := s.setupRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// LoadModel starts download and load in the background. The outcome is
// recorded in the runtime snapshot; there is no automatic retry.
func (s *Server) LoadModel(ctx context.Context) {
	go func() {
		if err := s.runtime.Prepare(ctx); err != nil {
			if errors.Is(err, domain.ErrBusy) {
				return
			}
			s.logger.WithError(err).Error("Model failed to become ready; requests will be rejected until it is reloaded")
		}
	}()
}

// Start starts the HTTP server and loads the model in the background. It
// blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	s.loadCtx = ctx
	s.LoadModel(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() error {
	s.router.GET("/health", s.handleHealth)

	recommend := []gin.HandlerFunc{}
	if s.config.RateLimit.Enabled {
		limiter, err := middleware.NewRateLimiter(s.config.RateLimit)
		if err != nil {
			return fmt.Errorf("creating rate limiter: %w", err)
		}
		recommend = append(recommend, limiter.Middleware())
	}
	recommend = append(recommend, s.handleRecommendations)
	s.router.POST("/get_health_recommendations", recommend...)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/model/status", s.handleModelStatus)
		v1.POST("/model/load", s.handleModelLoad)
		v1.GET("/schema", s.handleSchema)
	}
	return nil
}
