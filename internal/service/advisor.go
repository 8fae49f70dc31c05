package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/health-advisor-server/internal/domain"
	"github.com/health-advisor-server/internal/logging"
	"github.com/health-advisor-server/internal/prompt"
	"github.com/health-advisor-server/internal/report"
)

// Completer produces a raw completion for a composed prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string, extraStop ...string) (string, error)
}

// AdvisorService runs normalize, compose, infer and format for one query.
// It holds no per-request state.
type AdvisorService struct {
	logger     *logrus.Logger
	composer   *prompt.Composer
	completer  Completer
	validation domain.ValidationConfig
}

// NewAdvisorService creates a new advisor service
func NewAdvisorService(logger *logrus.Logger, composer *prompt.Composer, completer Completer, validation domain.ValidationConfig) *AdvisorService {
	return &AdvisorService{
		logger:     logger,
		composer:   composer,
		completer:  completer,
		validation: validation,
	}
}

// Composer returns the prompt composer in use.
func (s *AdvisorService) Composer() *prompt.Composer {
	return s.composer
}

// Recommend implements domain.Advisor with the default report schema. It
// applies no length validation; empty fields reach the model as sentinels.
func (s *AdvisorService) Recommend(ctx context.Context, q domain.HealthQuery) (*domain.HealthReport, error) {
	return s.RecommendWithSchema(ctx, q, "")
}

// RecommendWithSchema runs the pipeline using the named report schema; an
// empty version selects the default.
func (s *AdvisorService) RecommendWithSchema(ctx context.Context, q domain.HealthQuery, schemaVersion string) (*domain.HealthReport, error) {
	normalized := prompt.NormalizeQuery(q)

	composed, err := s.composer.ComposeWith(schemaVersion, normalized)
	if err != nil {
		if errors.Is(err, prompt.ErrUnknownSchema) {
			return nil, domain.NewValidationError("schema_version", "unknown report schema")
		}
		logging.FromContext(ctx, s.logger).WithFields(logging.Sanitize(logrus.Fields{
			"schema_version": schemaVersion,
			"error":          err.Error(),
		})).Error("Failed to load report schema")
		return nil, fmt.Errorf("loading report schema: %w", err)
	}

	log := logging.FromContext(ctx, s.logger).WithFields(logging.Sanitize(logrus.Fields{
		"schema_version": composed.SchemaVersion,
		"free_text":      q.IsFreeText(),
		"input_length":   len(normalized),
		"prompt":         composed.Text,
	}))
	log.Info("Generating health recommendations")

	start := time.Now()
	raw, err := s.completer.Complete(ctx, composed.Text, composed.Stop...)
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("generating recommendations: %w", err)
	}

	formatted := report.Format(raw)

	schema, _ := s.composer.Schema(composed.SchemaVersion)
	if missing := schema.MissingSections(formatted); len(missing) > 0 {
		log.WithField("missing_sections", missing).Warn("Report is missing expected sections")
	}

	result := &domain.HealthReport{
		Recommendations: formatted,
		ExecutionTime:   elapsed,
		SchemaVersion:   composed.SchemaVersion,
	}

	log.WithFields(logging.Sanitize(logrus.Fields{
		"execution_time_seconds": result.ExecutionTimeSeconds(),
		"report_length":          len(formatted),
	})).Info("Health recommendations generated")

	return result, nil
}

// RecommendFreeText validates a single free-text blob against the API
// minimum length and runs the pipeline.
func (s *AdvisorService) RecommendFreeText(ctx context.Context, text, schemaVersion string) (*domain.HealthReport, error) {
	if err := ValidateText(text, s.validation.APIMinLength); err != nil {
		return nil, err
	}
	return s.RecommendWithSchema(ctx, domain.HealthQuery{FreeText: text}, schemaVersion)
}

// RecommendForm validates the required form fields and runs the pipeline.
func (s *AdvisorService) RecommendForm(ctx context.Context, q domain.HealthQuery, schemaVersion string) (*domain.HealthReport, error) {
	if err := ValidateForm(q, s.validation.FormMinLength); err != nil {
		return nil, err
	}
	return s.RecommendWithSchema(ctx, q, schemaVersion)
}
