// Package webui serves the browser form for requesting health
// recommendations.
package webui

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/health-advisor-server/internal/domain"
	"github.com/health-advisor-server/internal/middleware"
	"github.com/health-advisor-server/internal/prompt"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	appTitle       = "AI Health Advisor"
	appDescription = "Get personalized health recommendations based on your health data"

	reportFileName = "health_recommendations.txt"
)

// Advisor runs the recommendation pipeline for a form submission.
type Advisor interface {
	RecommendForm(ctx context.Context, q domain.HealthQuery, schemaVersion string) (*domain.HealthReport, error)
}

// Server is the form UI server.
type Server struct {
	config  *domain.Config
	advisor Advisor
	runtime domain.ModelRuntime
	logger  *logrus.Logger
	router  *gin.Engine
	server  *http.Server
	loadCtx context.Context
}

type pageData struct {
	Title         string
	Description   string
	Snapshot      *domain.ReadinessSnapshot
	Query         domain.HealthQuery
	SchemaVersion string
	Schemas       []string
	Errors        []string
	Report        *domain.HealthReport
}

func (p pageData) Ready() bool { return p.Snapshot.Ready() }

func (p pageData) Busy() bool { return p.Snapshot.State.Busy() }

func (p pageData) Percent() float64 {
	if p.Snapshot.Progress == nil {
		return 0
	}
	return p.Snapshot.Progress.Percent()
}

// NewServer creates the form UI server.
func NewServer(cfg *domain.Config, advisor Advisor, runtime domain.ModelRuntime, logger *logrus.Logger) (*Server, error) {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	router := gin.New()
	router.SetHTMLTemplate(tmpl)
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(logger))
	router.Use(middleware.SecurityHeaders())

	s := &Server{
		config:  cfg,
		advisor: advisor,
		runtime: runtime,
		logger:  logger,
		router:  router,
		loadCtx: context.Background(),
	}

	router.GET("/", s.handleIndex)
	router.POST("/model/download", s.handleModelDownload)
	router.POST("/example", s.handleExample)
	router.POST("/report/download", s.handleReportDownload)

	recommend := []gin.HandlerFunc{}
	if cfg.RateLimit.Enabled {
		limiter, err := middleware.NewRateLimiter(cfg.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("creating rate limiter: %w", err)
		}
		recommend = append(recommend, limiter.Middleware())
	}
	router.POST("/recommend", append(recommend, s.handleRecommend)...)

	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves the UI until ctx is cancelled. The model is not loaded until
// the user asks for it.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.loadCtx = ctx
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("Web UI listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start web UI: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) page() pageData {
	return pageData{
		Title:         appTitle,
		Description:   appDescription,
		Snapshot:      s.runtime.Snapshot(),
		SchemaVersion: s.config.Prompt.SchemaVersion,
		Schemas:       s.schemas(),
	}
}

// schemas lists the selectable report schemas, re-reading the override
// directory so new files show up without a restart.
func (s *Server) schemas() []string {
	versions, err := prompt.AvailableSchemas(s.config.Prompt.SchemaDir)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to list report schemas")
		return []string{s.config.Prompt.SchemaVersion}
	}
	return versions
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", s.page())
}

// handleModelDownload starts download and load in the background; the page
// refreshes while the runtime is busy.
func (s *Server) handleModelDownload(c *gin.Context) {
	snap := s.runtime.Snapshot()
	if !snap.Ready() && !snap.State.Busy() {
		go func() {
			if err := s.runtime.Prepare(s.loadCtx); err != nil && !errors.Is(err, domain.ErrBusy) {
				s.logger.WithError(err).Error("Model download and load failed")
			}
		}()
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleExample(c *gin.Context) {
	data := s.page()
	data.Query = domain.ExampleQuery()
	c.HTML(http.StatusOK, "index.html", data)
}

func (s *Server) handleRecommend(c *gin.Context) {
	data := s.page()
	data.Query = domain.HealthQuery{
		Symptoms:       c.PostForm("symptoms"),
		Biomarkers:     c.PostForm("biomarkers"),
		Remarks:        c.PostForm("remarks"),
		ScreenTime:     c.PostForm("screen_time"),
		HealthTracking: c.PostForm("health_tracking"),
	}
	if v := c.PostForm("schema_version"); v != "" {
		data.SchemaVersion = v
	}

	if !data.Ready() {
		c.HTML(http.StatusServiceUnavailable, "index.html", data)
		return
	}

	rep, err := s.advisor.RecommendForm(c.Request.Context(), data.Query, data.SchemaVersion)
	if err != nil {
		status, _, expose := domain.Classify(err)
		data.Errors = errorMessages(err, expose)
		if !expose {
			s.logger.WithError(err).Error("Unexpected error while generating recommendations")
		}
		c.HTML(status, "index.html", data)
		return
	}

	data.Report = rep
	c.HTML(http.StatusOK, "index.html", data)
}

func (s *Server) handleReportDownload(c *gin.Context) {
	report := c.PostForm("report")
	if report == "" {
		c.String(http.StatusBadRequest, "no report to download")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reportFileName))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(report))
}

// errorMessages lists one message per failed field for validation errors.
func errorMessages(err error, expose bool) []string {
	var ves domain.ValidationErrors
	if errors.As(err, &ves) {
		msgs := make([]string, len(ves))
		for i, ve := range ves {
			msgs[i] = ve.Error()
		}
		return msgs
	}
	if !expose {
		return []string{"Error generating recommendations: an internal error occurred"}
	}
	return []string{"Error generating recommendations: " + err.Error()}
}
