//go:build !llama

package provider

import (
	"context"
	"errors"

	"inferd/internal/scheduler"
)

// LlamaBuilt indicates this binary was compiled with real llama support.
const LlamaBuilt = false

var errLlamaNotBuilt = errors.New("llama support not built; rebuild with -tags=llama")

// Llama is unavailable without the llama build tag.
type Llama struct{ id ID }

func NewLlama(spec Spec) (*Llama, error) {
	return nil, errLlamaNotBuilt
}

func (l *Llama) Loader() scheduler.Loader {
	return func() (scheduler.Workload, error) { return nil, errLlamaNotBuilt }
}

func (l *Llama) Generate(ctx context.Context, req Request) (string, error) {
	return "", &BackendFailure{Provider: l.id, Kind: KindUnknown, Err: errLlamaNotBuilt}
}
