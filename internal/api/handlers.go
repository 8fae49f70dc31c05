package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/health-advisor-server/internal/domain"
	"github.com/health-advisor-server/internal/logging"
	"github.com/health-advisor-server/internal/middleware"
)

const (
	detailModelUnavailable  = "Service Unavailable: Model is not loaded or failed to load. Please try again later."
	detailHealthUnavailable = "Service Unavailable: Model not loaded or failed to load."
	detailInternal          = "An internal server error occurred while generating recommendations."
	messageHealthy          = "Model is loaded and API is healthy."
)

// HealthRequest is the body of POST /get_health_recommendations.
type HealthRequest struct {
	UserInput     string `json:"user_input" binding:"required,min=10"`
	SchemaVersion string `json:"schema_version,omitempty"`
}

// HealthResponse is the successful result.
type HealthResponse struct {
	Recommendations      string  `json:"recommendations"`
	ExecutionTimeSeconds float64 `json:"execution_time_seconds"`
	SchemaVersion        string  `json:"schema_version,omitempty"`
}

// ErrorResponse carries a human-readable detail and the structured error.
type ErrorResponse struct {
	Detail string           `json:"detail"`
	Error  *domain.APIError `json:"error"`
}

func (s *Server) handleRecommendations(c *gin.Context) {
	var req HealthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Invalid input: "+bindingMessage(err))
		return
	}

	log := logging.FromContext(c.Request.Context(), s.logger)
	log.WithField("input_length", len(req.UserInput)).Info("Received recommendation request")

	if !s.runtime.Snapshot().Ready() {
		log.Warn("Recommendation requested while model is not ready")
		s.writeError(c, http.StatusServiceUnavailable, domain.ErrCodeModelUnavailable, detailModelUnavailable)
		return
	}

	rep, err := s.advisor.RecommendFreeText(c.Request.Context(), req.UserInput, req.SchemaVersion)
	if err != nil {
		status, code, expose := domain.Classify(err)
		var detail string
		switch {
		case status == http.StatusBadRequest:
			detail = "Invalid input: " + err.Error()
			log.WithField("reason", err.Error()).Warn("Invalid recommendation input")
		case code == domain.ErrCodeModelUnavailable:
			detail = detailModelUnavailable
			log.WithError(err).Warn("Model unavailable during generation")
		case expose:
			detail = "Processing error: " + err.Error()
			log.WithError(err).Error("Processing error during generation")
		default:
			detail = detailInternal
			log.WithError(err).Error("Unexpected error while generating recommendations")
		}
		s.writeError(c, status, code, detail)
		return
	}

	c.JSON(http.StatusOK, HealthResponse{
		Recommendations:      rep.Recommendations,
		ExecutionTimeSeconds: rep.ExecutionTimeSeconds(),
		SchemaVersion:        rep.SchemaVersion,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	snap := s.runtime.Snapshot()
	if !snap.Ready() {
		s.logger.WithField("state", snap.State).Debug("Health check failed, model not ready")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"detail": detailHealthUnavailable,
			"state":  snap.State,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": messageHealthy,
		"model":   snap.Model,
		"state":   snap.State,
	})
}

func (s *Server) handleModelStatus(c *gin.Context) {
	snap := s.runtime.Snapshot()
	body := gin.H{
		"state":      snap.State,
		"model":      snap.Model,
		"backend":    snap.Backend,
		"detail":     snap.Detail,
		"updated_at": snap.UpdatedAt,
	}
	if snap.Progress != nil {
		body["progress"] = gin.H{
			"status":    snap.Progress.Status,
			"completed": snap.Progress.Completed,
			"total":     snap.Progress.Total,
			"percent":   snap.Progress.Percent(),
		}
	}
	c.JSON(http.StatusOK, body)
}

// handleModelLoad is the manual re-attempt after a failed load.
func (s *Server) handleModelLoad(c *gin.Context) {
	snap := s.runtime.Snapshot()
	switch {
	case snap.State.Busy():
		s.writeError(c, http.StatusConflict, domain.ErrCodeProcessing, domain.ErrBusy.Error())
		return
	case snap.Ready():
		c.JSON(http.StatusOK, gin.H{"state": snap.State})
		return
	}

	s.LoadModel(s.loadCtx)
	c.JSON(http.StatusAccepted, gin.H{"state": s.runtime.Snapshot().State})
}

func (s *Server) handleSchema(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":  s.schema.Version,
		"name":     s.schema.Name,
		"sections": s.schema.SectionTitles(),
	})
}

func (s *Server) writeError(c *gin.Context, status int, code, detail string) {
	apiErr := domain.NewAPIError(code, http.StatusText(status), detail, c.GetString(middleware.ContextKeyCorrelationID))
	c.AbortWithStatusJSON(status, ErrorResponse{Detail: detail, Error: apiErr})
}

// bindingMessage turns request binding failures into user-facing text.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "min":
			return fmt.Sprintf("Please provide at least %s characters", fe.Param())
		case "required":
			return "user_input is required"
		}
	}
	return "request body must be JSON with a user_input field"
}
