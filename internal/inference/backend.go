// Package inference adapts local model servers behind one completion
// contract and guards calls to them.
package inference

import (
	"context"
	"fmt"
	"net/http"

	"github.com/health-advisor-server/internal/domain"
)

// Backend names.
const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
)

// ProgressFunc receives download progress updates.
type ProgressFunc func(domain.DownloadProgress)

// Backend is a concrete inference server adapter.
type Backend interface {
	// Name identifies the backend in logs and errors.
	Name() string
	// Present reports whether the model weights are available locally.
	Present(ctx context.Context) (bool, error)
	// Download fetches the model weights.
	Download(ctx context.Context, progress ProgressFunc) error
	// Load makes the model resident and ready to serve completions.
	Load(ctx context.Context) error
	// Complete returns the raw completion for prompt.
	Complete(ctx context.Context, prompt string, cfg domain.GenerationConfig) (string, error)
}

// WeightsStore manages the local GGUF file for backends that do not fetch
// weights themselves.
type WeightsStore interface {
	Present(ctx context.Context) (bool, error)
	Download(ctx context.Context, progress func(domain.DownloadProgress)) error
}

// NewBackend builds the backend selected by cfg.Model.Backend. weights may be
// nil for the ollama backend.
func NewBackend(cfg *domain.Config, weights WeightsStore, httpClient *http.Client) (Backend, error) {
	switch cfg.Model.Backend {
	case BackendOllama:
		return NewOllamaBackend(cfg.Model, cfg.Generation, httpClient)
	case BackendOpenAI:
		if weights == nil {
			return nil, fmt.Errorf("%s backend requires a weights store", BackendOpenAI)
		}
		return NewOpenAIBackend(cfg.Model, weights, httpClient), nil
	default:
		return nil, fmt.Errorf("unsupported model backend: %q", cfg.Model.Backend)
	}
}
