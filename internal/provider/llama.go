//go:build llama

package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"

	"inferd/internal/scheduler"
)

// LlamaBuilt indicates this binary was compiled with real llama support.
const LlamaBuilt = true

// llamaModel is the scheduler workload for one GGUF file. Materialized means
// configured; resident means the weights are loaded with GPU offload.
type llamaModel struct {
	mu        sync.Mutex
	path      string
	ctxSize   int
	gpuLayers int
	model     *llama.LLama
}

func (m *llamaModel) ToResident() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.model != nil {
		return nil
	}
	mo := []llama.ModelOption{
		llama.SetContext(m.ctxSize),
		llama.SetGPULayers(m.gpuLayers),
		llama.EnableF16Memory,
	}
	lm, err := llama.New(m.path, mo...)
	if err != nil {
		return fmt.Errorf("load %s: %w", m.path, err)
	}
	m.model = lm
	return nil
}

func (m *llamaModel) ToMaterialized() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.model != nil {
		m.model.Free()
		m.model = nil
	}
	return nil
}

func (m *llamaModel) Close() error { return m.ToMaterialized() }

// Llama runs a GGUF model in-process. Calls only succeed inside a scheduler
// acquisition: the orchestrator stores the acquired workload in the context.
type Llama struct {
	id          ID
	path        string
	ctxSize     int
	threads     int
	maxTokens   int
	temperature float32
}

func NewLlama(spec Spec) (*Llama, error) {
	if strings.TrimSpace(spec.ModelPath) == "" {
		return nil, fmt.Errorf("%s: model path is empty", spec.ID)
	}
	ctxSize := spec.ContextSize
	if ctxSize <= 0 {
		ctxSize = 4096
	}
	return &Llama{
		id:          spec.ID,
		path:        spec.ModelPath,
		ctxSize:     ctxSize,
		threads:     max(1, spec.Threads),
		maxTokens:   spec.maxTokens(),
		temperature: spec.Temperature,
	}, nil
}

// Loader returns the scheduler loader for this backend's model.
func (l *Llama) Loader() scheduler.Loader {
	return func() (scheduler.Workload, error) {
		return &llamaModel{path: l.path, ctxSize: l.ctxSize, gpuLayers: 999}, nil
	}
}

func (l *Llama) Generate(ctx context.Context, req Request) (string, error) {
	w, ok := scheduler.FromContext(ctx)
	m, isLlama := w.(*llamaModel)
	if !ok || !isLlama {
		return "", &BackendFailure{Provider: l.id, Kind: KindUnknown, Err: errors.New("llama model not acquired")}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.model == nil {
		return "", &BackendFailure{Provider: l.id, Kind: KindUnknown, Err: errors.New("llama model not resident")}
	}
	// Bridge cancellation into the token callback
	m.model.SetTokenCallback(func(string) bool {
		return ctx.Err() == nil
	})
	po := []llama.PredictOption{
		llama.SetTokens(l.maxTokens),
		llama.SetThreads(l.threads),
		llama.SetStopWords("User:"),
	}
	if l.temperature > 0 {
		po = append(po, llama.SetTemperature(l.temperature))
	}
	text, err := m.model.Predict(renderPrompt(req), po...)
	if err != nil {
		if ctx.Err() != nil {
			return "", Wrap(l.id, ctx.Err())
		}
		return "", Wrap(l.id, err)
	}
	return strings.TrimSpace(text), nil
}
