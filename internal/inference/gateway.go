package inference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"

	"github.com/health-advisor-server/internal/domain"
)

// Gateway guards completions with a readiness check, bounded admission,
// a deadline and a circuit breaker. It never retries.
type Gateway struct {
	backend Backend
	gen     domain.GenerationConfig
	timeout time.Duration
	sem     *semaphore.Weighted
	breaker *gobreaker.CircuitBreaker
	ready   func() bool
	logger  *logrus.Logger
}

// NewGateway wraps backend. ready reports whether the model handle may
// serve requests; a nil ready func treats the backend as always ready.
func NewGateway(backend Backend, gen domain.GenerationConfig, cfg domain.InferenceConfig, ready func() bool, logger *logrus.Logger) *Gateway {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 3
	}

	g := &Gateway{
		backend: backend,
		gen:     gen,
		timeout: cfg.Timeout,
		sem:     semaphore.NewWeighted(maxConcurrent),
		ready:   ready,
		logger:  logger,
	}

	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "inference-" + backend.Name(),
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// A caller giving up is not a backend fault.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Inference circuit breaker changed state")
		},
	})

	return g
}

// Backend returns the wrapped backend.
func (g *Gateway) Backend() Backend {
	return g.backend
}

// Complete runs one completion. Extra stop sequences are merged with the
// configured ones. Errors are ErrModelUnavailable, ErrGenerationTimeout, a
// GenerationError, or the caller's context error.
func (g *Gateway) Complete(ctx context.Context, prompt string, extraStop ...string) (string, error) {
	if g.ready != nil && !g.ready() {
		return "", domain.ErrModelUnavailable
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return "", g.contextError(ctx, "waiting for admission")
	}
	defer g.sem.Release(1)

	cfg := g.gen.WithStop(extraStop...)
	start := time.Now()

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.backend.Complete(ctx, prompt, cfg)
	})

	fields := logrus.Fields{
		"backend":       g.backend.Name(),
		"prompt_length": len(prompt),
		"duration_ms":   time.Since(start).Milliseconds(),
	}

	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			g.logger.WithFields(fields).Warn("Inference rejected by open circuit breaker")
			return "", fmt.Errorf("%w: backend is cooling down after repeated failures", domain.ErrModelUnavailable)
		case ctx.Err() != nil:
			return "", g.contextError(ctx, "generating")
		default:
			g.logger.WithFields(fields).WithError(err).Error("Inference backend failed")
			return "", &domain.GenerationError{Backend: g.backend.Name(), Err: err}
		}
	}

	text := result.(string)
	fields["completion_length"] = len(text)
	g.logger.WithFields(fields).Debug("Inference completed")
	return text, nil
}

func (g *Gateway) contextError(ctx context.Context, stage string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		g.logger.WithFields(logrus.Fields{
			"backend": g.backend.Name(),
			"stage":   stage,
			"timeout": g.timeout.String(),
		}).Warn("Inference timed out")
		return fmt.Errorf("%w after %s while %s", domain.ErrGenerationTimeout, g.timeout, stage)
	}
	return ctx.Err()
}
