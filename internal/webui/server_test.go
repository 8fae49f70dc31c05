package webui

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/health-advisor-server/internal/domain"
	"github.com/health-advisor-server/internal/prompt"
	"github.com/health-advisor-server/internal/service"
)

const disclaimerText = "should not replace professional medical advice"

type fakeRuntime struct {
	mu       sync.Mutex
	state    domain.ReadinessState
	prepared chan struct{}
}

func newFakeRuntime(state domain.ReadinessState) *fakeRuntime {
	return &fakeRuntime{state: state, prepared: make(chan struct{}, 1)}
}

func (f *fakeRuntime) Snapshot() *domain.ReadinessSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &domain.ReadinessSnapshot{State: f.state, Model: "test-model", UpdatedAt: time.Now()}
}

func (f *fakeRuntime) Download(context.Context) error { return nil }
func (f *fakeRuntime) Load(context.Context) error { return nil }

func (f *fakeRuntime) Prepare(context.Context) error {
	f.mu.Lock()
	f.state = domain.StateReady
	f.mu.Unlock()
	f.prepared <- struct{}{}
	return nil
}

type stubCompleter struct {
	reply string
	err   error
}

func (s stubCompleter) Complete(context.Context, string, ...string) (string, error) {
	return s.reply, s.err
}

func newTestServer(t *testing.T, completer service.Completer, runtime domain.ModelRuntime) *Server {
	t.Helper()
	return newTestServerWithSchemaDir(t, completer, runtime, "")
}

func newTestServerWithSchemaDir(t *testing.T, completer service.Completer, runtime domain.ModelRuntime, schemaDir string) *Server {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	promptCfg := domain.PromptConfig{SchemaVersion: prompt.SchemaStandard4, SchemaDir: schemaDir, Envelope: prompt.EnvelopeLlama3}
	composer, err := prompt.NewComposer(promptCfg)
	require.NoError(t, err)
	advisor := service.NewAdvisorService(logger, composer, completer, domain.ValidationConfig{APIMinLength: 50, FormMinLength: 10})

	cfg := &domain.Config{
		Prompt:  promptCfg,
		Logging: domain.LoggingConfig{Level: "info"},
	}
	s, err := NewServer(cfg, advisor, runtime, logger)
	require.NoError(t, err)
	return s
}

func postForm(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func exampleForm() url.Values {
	q := domain.ExampleQuery()
	return url.Values{
		"symptoms":        {q.Symptoms},
		"biomarkers":      {q.Biomarkers},
		"remarks":         {q.Remarks},
		"screen_time":     {q.ScreenTime},
		"health_tracking": {q.HealthTracking},
	}
}

func TestIndex_NotReadyShowsCallToAction(t *testing.T) {
	s := newTestServer(t, stubCompleter{}, newFakeRuntime(domain.StateUninitialized))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, disclaimerText)
	assert.Contains(t, body, "Download &amp; Load Model")
	assert.Contains(t, body, "Please download and load the model")
	assert.NotContains(t, body, `action="/recommend"`)
}

func TestIndex_ReadyShowsForm(t *testing.T) {
	s := newTestServer(t, stubCompleter{}, newFakeRuntime(domain.StateReady))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	body := w.Body.String()
	assert.Contains(t, body, disclaimerText)
	assert.Contains(t, body, "Model Ready!")
	assert.Contains(t, body, `action="/recommend"`)
	assert.Contains(t, body, `<option value="extended-7">`)
}

func TestIndex_ListsOverrideSchemas(t *testing.T) {
	dir := t.TempDir()
	doc := "version: custom-3\nname: Clinic\nsections:\n  - title: Summary\n    lead: Summarize.\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom-3.yaml"), []byte(doc), 0644))

	s := newTestServerWithSchemaDir(t, stubCompleter{}, newFakeRuntime(domain.StateReady), dir)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	body := w.Body.String()
	assert.Contains(t, body, `<option value="custom-3">`)
	assert.Contains(t, body, `<option value="extended-7">`)
	assert.Contains(t, body, `<option value="standard-4" selected>`)

	// Files added later appear on the next render.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom-5.yaml"), []byte(doc), 0644))
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, w.Body.String(), `<option value="custom-5">`)
}

func TestModelDownload_StartsPrepare(t *testing.T) {
	rt := newFakeRuntime(domain.StateUninitialized)
	s := newTestServer(t, stubCompleter{}, rt)

	w := postForm(t, s.Handler(), "/model/download", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	select {
	case <-rt.prepared:
	case <-time.After(2 * time.Second):
		t.Fatal("model preparation was not started")
	}
	assert.True(t, rt.Snapshot().Ready())
}

func TestExample_PrefillsForm(t *testing.T) {
	s := newTestServer(t, stubCompleter{}, newFakeRuntime(domain.StateReady))

	w := postForm(t, s.Handler(), "/example", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mild chest pain, shortness of breath, past asthma")
}

func TestRecommend_CollectsAllValidationErrors(t *testing.T) {
	s := newTestServer(t, stubCompleter{reply: "unused"}, newFakeRuntime(domain.StateReady))

	form := url.Values{"symptoms": {"short"}, "biomarkers": {""}, "health_tracking": {"   tiny   "}}
	w := postForm(t, s.Handler(), "/recommend", form)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Symptoms/Disease History: Please provide at least 10 characters")
	assert.Contains(t, body, "Biomarkers: Please provide at least 10 characters")
	assert.Contains(t, body, "Health Tracking Data: Please provide at least 10 characters")
	assert.Contains(t, body, disclaimerText)
}

func TestRecommend_RendersReport(t *testing.T) {
	reply := "Here are my recommendations:\n**1. Short-Term Risks**\nMonitor <breathing>."
	s := newTestServer(t, stubCompleter{reply: reply}, newFakeRuntime(domain.StateReady))

	w := postForm(t, s.Handler(), "/recommend", exampleForm())

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Your Personalized Health Recommendations")
	assert.Contains(t, body, "Monitor &lt;breathing&gt;.")
	assert.NotContains(t, body, "Here are my recommendations:")
	assert.Contains(t, body, `name="report"`)
}

func TestRecommend_GenerationError(t *testing.T) {
	completer := stubCompleter{err: &domain.GenerationError{Backend: "fake", Err: errors.New("runner crashed")}}
	s := newTestServer(t, completer, newFakeRuntime(domain.StateReady))

	w := postForm(t, s.Handler(), "/recommend", exampleForm())

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "Error generating recommendations:")
}

func TestRecommend_NotReady(t *testing.T) {
	s := newTestServer(t, stubCompleter{reply: "x"}, newFakeRuntime(domain.StateFailed))

	w := postForm(t, s.Handler(), "/recommend", exampleForm())

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "Please download and load the model")
}

func TestReportDownload(t *testing.T) {
	s := newTestServer(t, stubCompleter{}, newFakeRuntime(domain.StateReady))

	report := "**1. Short-Term Risks**\nNone."
	w := postForm(t, s.Handler(), "/report/download", url.Values{"report": {report}})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="health_recommendations.txt"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, report, w.Body.String())

	empty := postForm(t, s.Handler(), "/report/download", url.Values{})
	assert.Equal(t, http.StatusBadRequest, empty.Code)
}
