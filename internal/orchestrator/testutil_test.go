package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"inferd/internal/provider"
	"inferd/internal/scheduler"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

// fakeBackend answers Generate with reply or fails with err.
type fakeBackend struct {
	mu    sync.Mutex
	reply string
	err   error
	reqs  []provider.Request
}

func (f *fakeBackend) Generate(ctx context.Context, req provider.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func ok(reply string) *fakeBackend { return &fakeBackend{reply: reply} }

func failing(msg string) *fakeBackend { return &fakeBackend{err: errors.New(msg)} }

// toolBackend returns scripted tool responses, repeating the last one.
type toolBackend struct {
	fakeBackend
	script []provider.ToolResponse
	err    error
	inputs []string
}

func (f *toolBackend) GenerateWithTools(ctx context.Context, req provider.Request, tools []provider.ToolSchema) (provider.ToolResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, req.Input)
	if f.err != nil {
		return provider.ToolResponse{}, f.err
	}
	i := len(f.inputs) - 1
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	return f.script[i], nil
}

func (f *toolBackend) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inputs...)
}

type visionBackend struct {
	fakeBackend
	image string
	err   error
	n     int
}

func (f *visionBackend) GenerateWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	if f.err != nil {
		return "", f.err
	}
	return f.image, nil
}

// localVision is a bare VisionBackend used as the chain-external fallback.
type localVision struct {
	out string
	err error
}

func (l localVision) GenerateWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	return l.out, l.err
}

type nopWorkload struct{}

func (nopWorkload) ToResident() error     { return nil }
func (nopWorkload) ToMaterialized() error { return nil }

// fakeSlots records acquisitions and releases.
type fakeSlots struct {
	mu       sync.Mutex
	acquired []string
	released []string
	err      error
}

func (f *fakeSlots) Acquire(ctx context.Context, name string) (scheduler.Workload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.acquired = append(f.acquired, name)
	return nopWorkload{}, nil
}

func (f *fakeSlots) Release(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, name)
	return nil
}

// countingAttempter runs each call once and counts attempts per provider.
type countingAttempter struct {
	mu sync.Mutex
	n  map[provider.ID]int
}

func (a *countingAttempter) Attempt(ctx context.Context, id provider.ID, input string, call func(context.Context, string) (string, error)) (string, error) {
	a.mu.Lock()
	if a.n == nil {
		a.n = make(map[provider.ID]int)
	}
	a.n[id]++
	a.mu.Unlock()
	return call(ctx, input)
}

func mustBuild(t *testing.T, b *Builder) *Orchestrator {
	t.Helper()
	o, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return o
}

func chainIDs(cs []Candidate) []provider.ID {
	out := make([]provider.ID, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}
