package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/health-advisor-server/internal/domain"
	"github.com/health-advisor-server/internal/logging"
)

const (
	messageModelUnavailable = "Service Unavailable: Model is not loaded or failed to load. Please try again later."
	messageInternal         = "An internal server error occurred while generating recommendations."
)

// RecommendationInput is the argument object of get_health_recommendations.
// Every field is optional; empty fields are reported to the model as not
// provided.
type RecommendationInput struct {
	Symptoms       string `json:"symptoms,omitempty" jsonschema:"current symptoms or disease history"`
	Biomarkers     string `json:"biomarkers,omitempty" jsonschema:"blood or lab values"`
	Remarks        string `json:"remarks,omitempty" jsonschema:"additional observations or notes"`
	ScreenTime     string `json:"screen_time,omitempty" jsonschema:"daily screen time per device"`
	HealthTracking string `json:"health_tracking,omitempty" jsonschema:"blood pressure, weight, steps, sleep or emotional state"`
	SchemaVersion  string `json:"schema_version,omitempty" jsonschema:"report layout: standard-4 (default) or extended-7"`
}

// RecommendationOutput is the structured result of get_health_recommendations.
type RecommendationOutput struct {
	Recommendations      string  `json:"recommendations"`
	ExecutionTimeSeconds float64 `json:"execution_time_seconds"`
	SchemaVersion        string  `json:"schema_version"`
}

// StatusInput takes no arguments.
type StatusInput struct{}

// StatusOutput is the structured result of get_model_status.
type StatusOutput struct {
	State           string  `json:"state"`
	Model           string  `json:"model"`
	Backend         string  `json:"backend"`
	Detail          string  `json:"detail,omitempty"`
	ProgressPercent float64 `json:"progress_percent,omitempty"`
}

func (s *Server) handleRecommendations(ctx context.Context, _ *mcp.CallToolRequest, in RecommendationInput) (*mcp.CallToolResult, RecommendationOutput, error) {
	ctx = logging.WithCorrelation(ctx, logging.CorrelationID(ctx))
	log := logging.FromContext(ctx, s.logger)

	if !s.runtime.Snapshot().Ready() {
		log.Warn("Tool called while model is not ready")
		return toolError(messageModelUnavailable), RecommendationOutput{}, nil
	}

	q := domain.HealthQuery{
		Symptoms:       in.Symptoms,
		Biomarkers:     in.Biomarkers,
		Remarks:        in.Remarks,
		ScreenTime:     in.ScreenTime,
		HealthTracking: in.HealthTracking,
	}

	rep, err := s.advisor.RecommendWithSchema(ctx, q, in.SchemaVersion)
	if err != nil {
		status, code, expose := domain.Classify(err)
		log = log.WithField("status", status)
		switch {
		case code == domain.ErrCodeInvalidInput:
			log.WithError(err).Warn("Invalid tool input")
			return toolError("Invalid input: " + err.Error()), RecommendationOutput{}, nil
		case code == domain.ErrCodeModelUnavailable:
			log.WithError(err).Warn("Model unavailable during generation")
			return toolError(messageModelUnavailable), RecommendationOutput{}, nil
		case expose:
			log.WithError(err).Error("Processing error during generation")
			return toolError("Processing error: " + err.Error()), RecommendationOutput{}, nil
		default:
			log.WithError(err).Error("Unexpected error while generating recommendations")
			return toolError(messageInternal), RecommendationOutput{}, nil
		}
	}

	out := RecommendationOutput{
		Recommendations:      rep.Recommendations,
		ExecutionTimeSeconds: rep.ExecutionTimeSeconds(),
		SchemaVersion:        rep.SchemaVersion,
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: rep.Recommendations}},
	}, out, nil
}

func (s *Server) handleModelStatus(_ context.Context, _ *mcp.CallToolRequest, _ StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
	snap := s.runtime.Snapshot()
	out := StatusOutput{
		State:   string(snap.State),
		Model:   snap.Model,
		Backend: snap.Backend,
		Detail:  snap.Detail,
	}
	if snap.Progress != nil {
		out.ProgressPercent = snap.Progress.Percent()
	}

	text := "Model " + snap.Model + " is " + string(snap.State)
	if snap.Detail != "" {
		text += ": " + snap.Detail
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, out, nil
}

func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}
