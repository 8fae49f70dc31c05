package modelstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/health-advisor-server/internal/domain"
)

func newHubServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/org/repo-GGUF/resolve/main/model.gguf" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDownloader_Fetch(t *testing.T) {
	body := bytes.Repeat([]byte("gguf"), 3<<20)
	srv := newHubServer(t, body)
	d := NewDownloader(srv.URL+"/", srv.Client(), testLogger())

	dest := filepath.Join(t.TempDir(), "models", "model.gguf")
	var updates []domain.DownloadProgress

	a, err := d.Fetch(context.Background(), "org/repo-GGUF", "model.gguf", dest, func(p domain.DownloadProgress) {
		updates = append(updates, p)
	})
	require.NoError(t, err)

	sum := sha256.Sum256(body)
	assert.Equal(t, hex.EncodeToString(sum[:]), a.SHA256)
	assert.Equal(t, int64(len(body)), a.SizeBytes)
	assert.Equal(t, dest, a.LocalPath)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, data)

	_, err = os.Stat(dest + ".partial")
	assert.True(t, os.IsNotExist(err))

	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.Equal(t, "success", last.Status)
	assert.Equal(t, float64(100), last.Percent())
	assert.Greater(t, len(updates), 1)
}

func TestDownloader_FetchNotFound(t *testing.T) {
	srv := newHubServer(t, []byte("x"))
	d := NewDownloader(srv.URL, srv.Client(), testLogger())

	dest := filepath.Join(t.TempDir(), "missing.gguf")
	_, err := d.Fetch(context.Background(), "org/other", "missing.gguf", dest, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	_, err = os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
}

func TestDownloader_FetchCanceled(t *testing.T) {
	srv := newHubServer(t, []byte("x"))
	d := NewDownloader(srv.URL, srv.Client(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Fetch(ctx, "org/repo-GGUF", "model.gguf", filepath.Join(t.TempDir(), "model.gguf"), nil)
	assert.Error(t, err)
}

func TestDownloader_ResolveURL(t *testing.T) {
	d := NewDownloader("https://huggingface.co/", nil, testLogger())
	assert.Equal(t,
		"https://huggingface.co/hugging-quants/Llama-3.2-1B-Instruct-Q4_K_M-GGUF/resolve/main/llama-3.2-1b-instruct-q4_k_m.gguf",
		d.ResolveURL("hugging-quants/Llama-3.2-1B-Instruct-Q4_K_M-GGUF", "llama-3.2-1b-instruct-q4_k_m.gguf"))
}
