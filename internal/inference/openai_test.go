package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/health-advisor-server/internal/domain"
)

type fakeWeights struct {
	present    bool
	downloaded bool
}

func (f *fakeWeights) Present(context.Context) (bool, error) { return f.present, nil }

func (f *fakeWeights) Download(_ context.Context, progress func(domain.DownloadProgress)) error {
	progress(domain.DownloadProgress{Completed: 10, Total: 10})
	f.downloaded = true
	return nil
}

func newOpenAITestBackend(t *testing.T, handler http.Handler, weights WeightsStore) *OpenAIBackend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewOpenAIBackend(domain.ModelConfig{
		Name:    "llama-3.2-1b-instruct",
		BaseURL: srv.URL + "/v1",
	}, weights, srv.Client())
}

func TestOpenAIBackend_Weights(t *testing.T) {
	weights := &fakeWeights{}
	b := newOpenAITestBackend(t, http.NotFoundHandler(), weights)

	present, err := b.Present(context.Background())
	require.NoError(t, err)
	assert.False(t, present)

	var last domain.DownloadProgress
	require.NoError(t, b.Download(context.Background(), func(p domain.DownloadProgress) { last = p }))
	assert.True(t, weights.downloaded)
	assert.Equal(t, float64(100), last.Percent())
}

func TestOpenAIBackend_Load(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"llama-3.2-1b-instruct","object":"model"}]}`))
	})
	b := newOpenAITestBackend(t, mux, &fakeWeights{})
	assert.NoError(t, b.Load(context.Background()))

	down := newOpenAITestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"loading model"}}`))
	}), &fakeWeights{})
	assert.Error(t, down.Load(context.Background()))
}

func TestOpenAIBackend_Complete(t *testing.T) {
	var got map[string]interface{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/completions", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"text_completion","choices":[{"text":"You may be at risk...","index":0,"finish_reason":"stop"}]}`))
	})
	b := newOpenAITestBackend(t, mux, &fakeWeights{})

	out, err := b.Complete(context.Background(), "prompt text", domain.GenerationConfig{
		MaxTokens:     400,
		Temperature:   0.1,
		TopP:          0.85,
		RepeatPenalty: 1.1,
		Stop:          []string{"</s>"},
	})
	require.NoError(t, err)
	assert.Equal(t, "You may be at risk...", out)

	assert.Equal(t, "llama-3.2-1b-instruct", got["model"])
	assert.Equal(t, "prompt text", got["prompt"])
	assert.Equal(t, float64(400), got["max_tokens"])
	assert.InDelta(t, 0.1, got["frequency_penalty"], 1e-6)
	assert.Equal(t, []interface{}{"</s>"}, got["stop"])
}

func TestOpenAIBackend_CompleteNoChoices(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","choices":[]}`))
	})
	b := newOpenAITestBackend(t, mux, &fakeWeights{})

	_, err := b.Complete(context.Background(), "p", domain.GenerationConfig{MaxTokens: 10})
	assert.Error(t, err)
}

func TestNewBackend(t *testing.T) {
	cfg := &domain.Config{Model: domain.ModelConfig{Backend: BackendOllama, BaseURL: "http://localhost:11434", Name: "m"}}
	b, err := NewBackend(cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendOllama, b.Name())

	cfg.Model.Backend = BackendOpenAI
	_, err = NewBackend(cfg, nil, nil)
	assert.Error(t, err)

	b, err = NewBackend(cfg, &fakeWeights{}, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendOpenAI, b.Name())

	cfg.Model.Backend = "vllm"
	_, err = NewBackend(cfg, &fakeWeights{}, nil)
	assert.Error(t, err)
}
