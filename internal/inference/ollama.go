package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/health-advisor-server/internal/domain"
)

// OllamaBackend talks to an Ollama server through its native API. Prompts
// are sent raw because they already carry the chat envelope.
type OllamaBackend struct {
	client    *api.Client
	model     string
	keepAlive time.Duration
	gen       domain.GenerationConfig
}

// NewOllamaBackend creates a backend for the server at cfg.BaseURL.
func NewOllamaBackend(cfg domain.ModelConfig, gen domain.GenerationConfig, httpClient *http.Client) (*OllamaBackend, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base URL %q: %w", cfg.BaseURL, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &OllamaBackend{
		client:    api.NewClient(base, httpClient),
		model:     cfg.Name,
		keepAlive: cfg.KeepAlive,
		gen:       gen,
	}, nil
}

// Name implements Backend.
func (b *OllamaBackend) Name() string {
	return BackendOllama
}

// Present implements Backend.
func (b *OllamaBackend) Present(ctx context.Context) (bool, error) {
	_, err := b.client.Show(ctx, &api.ShowRequest{Model: b.model})
	if err == nil {
		return true, nil
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("ollama show %s: %w", b.model, err)
}

// Download implements Backend by pulling the model into the Ollama store.
func (b *OllamaBackend) Download(ctx context.Context, progress ProgressFunc) error {
	err := b.client.Pull(ctx, &api.PullRequest{Model: b.model}, func(p api.ProgressResponse) error {
		if progress != nil {
			progress(domain.DownloadProgress{
				Status:    p.Status,
				Completed: p.Completed,
				Total:     p.Total,
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ollama pull %s: %w", b.model, err)
	}
	return nil
}

// Load implements Backend. An empty generate request loads the model with
// the configured runner options and keeps it resident.
func (b *OllamaBackend) Load(ctx context.Context) error {
	stream := false
	req := &api.GenerateRequest{
		Model:     b.model,
		Stream:    &stream,
		KeepAlive: b.keepAliveDuration(),
		Options:   runnerOptions(b.gen),
	}
	if err := b.client.Generate(ctx, req, func(api.GenerateResponse) error { return nil }); err != nil {
		return fmt.Errorf("ollama load %s: %w", b.model, err)
	}
	return nil
}

// Complete implements Backend.
func (b *OllamaBackend) Complete(ctx context.Context, prompt string, cfg domain.GenerationConfig) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:     b.model,
		Prompt:    prompt,
		Raw:       true,
		Stream:    &stream,
		KeepAlive: b.keepAliveDuration(),
		Options:   generateOptions(cfg),
	}

	var out strings.Builder
	err := b.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

func (b *OllamaBackend) keepAliveDuration() *api.Duration {
	if b.keepAlive <= 0 {
		return nil
	}
	return &api.Duration{Duration: b.keepAlive}
}

// runnerOptions are the options that shape the loaded runner.
func runnerOptions(cfg domain.GenerationConfig) map[string]interface{} {
	opts := map[string]interface{}{
		"num_ctx":   cfg.ContextSize,
		"num_batch": cfg.BatchSize,
	}
	if cfg.Threads > 0 {
		opts["num_thread"] = cfg.Threads
	}
	// Ollama offloads as many layers as fit when num_gpu is unset.
	if cfg.GPULayers >= 0 {
		opts["num_gpu"] = cfg.GPULayers
	}
	return opts
}

func generateOptions(cfg domain.GenerationConfig) map[string]interface{} {
	opts := runnerOptions(cfg)
	opts["num_predict"] = cfg.MaxTokens
	opts["temperature"] = cfg.Temperature
	opts["top_p"] = cfg.TopP
	opts["repeat_penalty"] = cfg.RepeatPenalty
	if len(cfg.Stop) > 0 {
		opts["stop"] = cfg.Stop
	}
	return opts
}
