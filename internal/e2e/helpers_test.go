package e2e

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"inferd/internal/config"
	"inferd/internal/httpapi"
	"inferd/internal/provider"
	"inferd/internal/scheduler"
	"inferd/internal/service"
)

// echo answers with a fixed prefix, or fails every call when down is set.
type echo struct {
	mu     sync.Mutex
	prefix string
	down   bool
	calls  int
}

func (e *echo) Generate(ctx context.Context, req provider.Request) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.down {
		return "", errors.New("502 bad gateway")
	}
	return e.prefix + req.Input, nil
}

type workload struct{}

func (workload) ToResident() error     { return nil }
func (workload) ToMaterialized() error { return nil }

// local behaves like the llama backend: it only answers inside an acquired slot.
type local struct{ name string }

func (l local) Generate(ctx context.Context, req provider.Request) (string, error) {
	if _, ok := scheduler.FromContext(ctx); !ok {
		return "", errors.New("slot not acquired")
	}
	return l.name + ": " + req.Input, nil
}

func (local) Loader() scheduler.Loader {
	return func() (scheduler.Workload, error) { return workload{}, nil }
}

// createTempModel writes an empty .gguf file and returns its path.
func createTempModel(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(""), 0o644); err != nil {
		t.Fatalf("write temp model %s: %v", p, err)
	}
	return p
}

func newServer(t *testing.T, cfg config.Config, backends map[string]provider.Backend) (*httptest.Server, *service.Service) {
	t.Helper()
	factory := func(ctx context.Context, spec provider.Spec) (provider.Backend, error) {
		b, ok := backends[string(spec.ID)]
		if !ok {
			return nil, errors.New("no backend for " + string(spec.ID))
		}
		return b, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	svc, err := service.New(ctx, cfg, service.Options{Factory: factory})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	srv := httptest.NewServer(httpapi.NewMux(svc))
	t.Cleanup(srv.Close)
	return srv, svc
}

func httpDo(t *testing.T, method, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, body)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}
