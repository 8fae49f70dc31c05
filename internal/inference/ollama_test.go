package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/health-advisor-server/internal/domain"
)

func newOllamaTestBackend(t *testing.T, handler http.Handler) *OllamaBackend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	b, err := NewOllamaBackend(domain.ModelConfig{
		Name:      "hf.co/test/model",
		BaseURL:   srv.URL,
		KeepAlive: 30 * time.Minute,
	}, domain.GenerationConfig{ContextSize: 4096, BatchSize: 512, Threads: 4, GPULayers: -1}, srv.Client())
	require.NoError(t, err)
	return b
}

func TestOllamaBackend_Present(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/show", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["model"] == "hf.co/test/model" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"model 'hf.co/test/model' not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})
	b := newOllamaTestBackend(t, mux)

	present, err := b.Present(context.Background())
	require.NoError(t, err)
	assert.False(t, present)
}

func TestOllamaBackend_PresentServerError(t *testing.T) {
	b := newOllamaTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))

	_, err := b.Present(context.Background())
	assert.Error(t, err)
}

func TestOllamaBackend_Download(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"status":"pulling manifest"}`)
		fmt.Fprintln(w, `{"status":"pulling abc","total":100,"completed":40}`)
		fmt.Fprintln(w, `{"status":"pulling abc","total":100,"completed":100}`)
		fmt.Fprintln(w, `{"status":"success"}`)
	})
	b := newOllamaTestBackend(t, mux)

	var updates []domain.DownloadProgress
	err := b.Download(context.Background(), func(p domain.DownloadProgress) {
		updates = append(updates, p)
	})
	require.NoError(t, err)
	require.Len(t, updates, 4)
	assert.Equal(t, int64(40), updates[1].Completed)
	assert.Equal(t, float64(100), updates[2].Percent())
	assert.Equal(t, "success", updates[3].Status)
}

func TestOllamaBackend_LoadAndComplete(t *testing.T) {
	var loadReq, genReq map[string]interface{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req["prompt"] == nil || req["prompt"] == "" {
			loadReq = req
			_, _ = w.Write([]byte(`{"model":"hf.co/test/model","response":"","done":true}`))
			return
		}
		genReq = req
		_, _ = w.Write([]byte(`{"model":"hf.co/test/model","response":"**1. Short-Term Risks**","done":true}`))
	})
	b := newOllamaTestBackend(t, mux)

	require.NoError(t, b.Load(context.Background()))
	require.NotNil(t, loadReq)
	loadOpts := loadReq["options"].(map[string]interface{})
	assert.Equal(t, float64(4096), loadOpts["num_ctx"])
	assert.NotContains(t, loadOpts, "num_gpu")

	out, err := b.Complete(context.Background(), "<|begin_of_text|>prompt", domain.GenerationConfig{
		ContextSize:   4096,
		BatchSize:     512,
		MaxTokens:     400,
		Temperature:   0.1,
		TopP:          0.85,
		RepeatPenalty: 1.1,
		GPULayers:     -1,
		Stop:          []string{"</s>", "<|eot_id|>"},
	})
	require.NoError(t, err)
	assert.Equal(t, "**1. Short-Term Risks**", out)

	assert.Equal(t, true, genReq["raw"])
	assert.Equal(t, false, genReq["stream"])
	opts := genReq["options"].(map[string]interface{})
	assert.Equal(t, float64(400), opts["num_predict"])
	assert.InDelta(t, 0.85, opts["top_p"], 1e-9)
	assert.InDelta(t, 1.1, opts["repeat_penalty"], 1e-9)
	assert.Equal(t, []interface{}{"</s>", "<|eot_id|>"}, opts["stop"])
}

func TestOllamaBackend_CompleteError(t *testing.T) {
	b := newOllamaTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model runner has unexpectedly stopped"}`))
	}))

	_, err := b.Complete(context.Background(), "p", domain.GenerationConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpectedly stopped")
}

func TestNewOllamaBackend_BadURL(t *testing.T) {
	_, err := NewOllamaBackend(domain.ModelConfig{BaseURL: "://bad"}, domain.GenerationConfig{}, nil)
	assert.Error(t, err)
}
