package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"inferd/internal/config"
	"inferd/internal/provider"
	"inferd/internal/scheduler"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

// scripted fails the first `failures` calls, then answers reply.
type scripted struct {
	mu       sync.Mutex
	reply    string
	failures int
	calls    int
	inputs   []string
}

func (s *scripted) Generate(ctx context.Context, req provider.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.inputs = append(s.inputs, req.Input)
	if s.failures != 0 {
		if s.failures > 0 {
			s.failures--
		}
		return "", errors.New("503 service unavailable")
	}
	return s.reply, nil
}

type visionOnly struct {
	scripted
	out string
}

func (v *visionOnly) GenerateWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	return v.out, nil
}

// agentBackend asks for current_time once, then answers with the tool output.
type agentBackend struct {
	scripted
}

func (a *agentBackend) GenerateWithTools(ctx context.Context, req provider.Request, tools []provider.ToolSchema) (provider.ToolResponse, error) {
	if len(req.History) == 0 {
		return provider.ToolResponse{ToolCalls: []provider.ToolCall{{Name: "current_time", Arguments: map[string]any{"timezone": "UTC"}}}}, nil
	}
	return provider.ToolResponse{Content: "it is " + req.Input}, nil
}

type slotWorkload struct{}

func (slotWorkload) ToResident() error     { return nil }
func (slotWorkload) ToMaterialized() error { return nil }

// localModel needs its slot acquired, like the llama backend.
type localModel struct{}

func (localModel) Generate(ctx context.Context, req provider.Request) (string, error) {
	if _, ok := scheduler.FromContext(ctx); !ok {
		return "", errors.New("model not acquired")
	}
	return "local answer", nil
}

func (localModel) Loader() scheduler.Loader {
	return func() (scheduler.Workload, error) { return slotWorkload{}, nil }
}

// fakeFactory returns backends by provider id.
func fakeFactory(backends map[string]provider.Backend) Factory {
	return func(ctx context.Context, spec provider.Spec) (provider.Backend, error) {
		b, ok := backends[string(spec.ID)]
		if !ok {
			return nil, errors.New("no fake for " + string(spec.ID))
		}
		return b, nil
	}
}

func newTestService(t *testing.T, cfg config.Config, backends map[string]provider.Backend) *Service {
	t.Helper()
	s, err := New(testCtx(t), cfg, Options{Factory: fakeFactory(backends)})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func writeModel(t *testing.T, name string, size int) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	return p
}
