package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/health-advisor-server/internal/domain"
)

// OpenAIBackend targets an OpenAI-compatible completions server, such as
// llama.cpp's llama-server, running the GGUF file kept by a WeightsStore.
type OpenAIBackend struct {
	client  *openai.Client
	model   string
	weights WeightsStore
}

// NewOpenAIBackend creates a backend for the server at cfg.BaseURL.
func NewOpenAIBackend(cfg domain.ModelConfig, weights WeightsStore, httpClient *http.Client) *OpenAIBackend {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}

	return &OpenAIBackend{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Name,
		weights: weights,
	}
}

// Name implements Backend.
func (b *OpenAIBackend) Name() string {
	return BackendOpenAI
}

// Present implements Backend.
func (b *OpenAIBackend) Present(ctx context.Context) (bool, error) {
	return b.weights.Present(ctx)
}

// Download implements Backend.
func (b *OpenAIBackend) Download(ctx context.Context, progress ProgressFunc) error {
	return b.weights.Download(ctx, progress)
}

// Load implements Backend. The server loads the weights itself, so this
// only confirms it is reachable and serving.
func (b *OpenAIBackend) Load(ctx context.Context) error {
	if _, err := b.client.ListModels(ctx); err != nil {
		return fmt.Errorf("completion server unreachable: %w", err)
	}
	return nil
}

// Complete implements Backend. The repeat penalty maps onto the frequency
// penalty, which is zero when no penalty is configured.
func (b *OpenAIBackend) Complete(ctx context.Context, prompt string, cfg domain.GenerationConfig) (string, error) {
	req := openai.CompletionRequest{
		Model:            b.model,
		Prompt:           prompt,
		MaxTokens:        cfg.MaxTokens,
		Temperature:      float32(cfg.Temperature),
		TopP:             float32(cfg.TopP),
		Stop:             cfg.Stop,
		FrequencyPenalty: float32(cfg.RepeatPenalty - 1),
	}

	resp, err := b.client.CreateCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion server returned no choices")
	}
	return resp.Choices[0].Text, nil
}
