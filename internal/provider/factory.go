package provider

import (
	"context"
	"fmt"
	"strings"
)

// Kinds lists the accepted Spec.Kind values.
var Kinds = []string{"openai", "ollama", "groq", "nvidia", "openrouter", "anthropic", "gemini", "llama"}

// KnownKind reports whether kind is accepted by New.
func KnownKind(kind string) bool {
	k := strings.ToLower(kind)
	for _, v := range Kinds {
		if v == k {
			return true
		}
	}
	return false
}

// New constructs the backend for spec.Kind.
func New(ctx context.Context, spec Spec) (Backend, error) {
	switch strings.ToLower(spec.Kind) {
	case "openai", "ollama", "groq", "nvidia", "openrouter":
		return backend(NewOpenAI(spec))
	case "anthropic":
		return backend(NewAnthropic(spec))
	case "gemini":
		return backend(NewGemini(ctx, spec))
	case "llama":
		return backend(NewLlama(spec))
	}
	return nil, fmt.Errorf("%s: unknown provider kind %q", spec.ID, spec.Kind)
}

// backend drops typed nil pointers so a failed constructor yields a nil interface.
func backend[T Backend](b T, err error) (Backend, error) {
	if err != nil {
		return nil, err
	}
	return b, nil
}
