package inference

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/health-advisor-server/internal/domain"
)

// fakeBackend is a scriptable Backend for gateway tests.
type fakeBackend struct {
	mu       sync.Mutex
	calls    int32
	lastCfg  domain.GenerationConfig
	complete func(ctx context.Context, prompt string) (string, error)
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Present(context.Context) (bool, error) { return true, nil }

func (f *fakeBackend) Download(context.Context, ProgressFunc) error { return nil }

func (f *fakeBackend) Load(context.Context) error { return nil }

func (f *fakeBackend) Complete(ctx context.Context, prompt string, cfg domain.GenerationConfig) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.lastCfg = cfg
	f.mu.Unlock()
	return f.complete(ctx, prompt)
}

func (f *fakeBackend) callCount() int {
	return int(atomic.LoadInt32(&f.calls))
}
