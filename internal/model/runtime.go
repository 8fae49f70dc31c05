// Package model owns the shared model handle and its readiness lifecycle.
package model

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/health-advisor-server/internal/domain"
	"github.com/health-advisor-server/internal/inference"
)

// Runtime drives a Backend through download and load. Every transition
// publishes a new immutable snapshot; readers never take a lock.
type Runtime struct {
	backend inference.Backend
	model   string
	logger  *logrus.Logger

	// mu serializes transitions so check-and-set is atomic.
	mu       sync.Mutex
	snapshot atomic.Pointer[domain.ReadinessSnapshot]
}

// NewRuntime creates a runtime in the uninitialized state.
func NewRuntime(backend inference.Backend, model string, logger *logrus.Logger) *Runtime {
	r := &Runtime{
		backend: backend,
		model:   model,
		logger:  logger,
	}
	r.snapshot.Store(r.newSnapshot(domain.StateUninitialized, "", nil))
	return r
}

// Snapshot returns the current readiness snapshot.
func (r *Runtime) Snapshot() *domain.ReadinessSnapshot {
	return r.snapshot.Load()
}

// Ready reports whether generation requests may be accepted.
func (r *Runtime) Ready() bool {
	return r.Snapshot().Ready()
}

// Backend returns the backend this runtime drives.
func (r *Runtime) Backend() inference.Backend {
	return r.backend
}

// Download fetches the weights unless they are already present. It returns
// domain.ErrBusy if another operation is running and does nothing once the
// model is ready.
func (r *Runtime) Download(ctx context.Context) error {
	if r.Ready() {
		return nil
	}
	if err := r.begin(domain.StateDownloading, domain.StateUninitialized, domain.StateFailed, domain.StateDownloaded); err != nil {
		return err
	}

	present, err := r.backend.Present(ctx)
	if err != nil {
		return r.fail("checking model presence", err)
	}
	if present {
		r.publish(domain.StateDownloaded, "model already present", nil)
		return nil
	}

	r.logger.WithField("model", r.model).Info("Downloading model")
	err = r.backend.Download(ctx, func(p domain.DownloadProgress) {
		progress := p
		r.publish(domain.StateDownloading, p.Status, &progress)
	})
	if err != nil {
		return r.fail("downloading model", err)
	}

	r.publish(domain.StateDownloaded, "", nil)
	r.logger.WithField("model", r.model).Info("Model downloaded")
	return nil
}

// Load makes the model resident. There is no automatic retry; a failed load
// stays failed until Load or Prepare is called again.
func (r *Runtime) Load(ctx context.Context) error {
	if err := r.begin(domain.StateLoading, domain.StateUninitialized, domain.StateDownloaded, domain.StateFailed, domain.StateReady); err != nil {
		return err
	}

	start := time.Now()
	if err := r.backend.Load(ctx); err != nil {
		return r.fail("loading model", err)
	}

	r.publish(domain.StateReady, "", nil)
	r.logger.WithFields(logrus.Fields{
		"model":       r.model,
		"backend":     r.backend.Name(),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Model loaded")
	return nil
}

// Prepare downloads the model if needed and loads it.
func (r *Runtime) Prepare(ctx context.Context) error {
	if err := r.Download(ctx); err != nil {
		return err
	}
	return r.Load(ctx)
}

// begin moves to next if the current state is one of from.
func (r *Runtime) begin(next domain.ReadinessState, from ...domain.ReadinessState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.Snapshot().State
	if current.Busy() {
		return domain.ErrBusy
	}
	for _, s := range from {
		if s == current {
			r.snapshot.Store(r.newSnapshot(next, "", nil))
			return nil
		}
	}
	return fmt.Errorf("cannot enter %s from %s", next, current)
}

func (r *Runtime) publish(state domain.ReadinessState, detail string, progress *domain.DownloadProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot.Store(r.newSnapshot(state, detail, progress))
}

func (r *Runtime) fail(stage string, err error) error {
	r.publish(domain.StateFailed, fmt.Sprintf("%s: %v", stage, err), nil)
	r.logger.WithFields(logrus.Fields{
		"model":   r.model,
		"backend": r.backend.Name(),
		"stage":   stage,
	}).WithError(err).Error("Model lifecycle operation failed")
	return fmt.Errorf("%s: %w", stage, err)
}

func (r *Runtime) newSnapshot(state domain.ReadinessState, detail string, progress *domain.DownloadProgress) *domain.ReadinessSnapshot {
	return &domain.ReadinessSnapshot{
		State:     state,
		Model:     r.model,
		Backend:   r.backend.Name(),
		Detail:    detail,
		Progress:  progress,
		UpdatedAt: time.Now().UTC(),
	}
}
