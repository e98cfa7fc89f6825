// Package provider defines the backend contract shared by every inference
// provider and the concrete backends (OpenAI-compatible, Anthropic, Gemini
// and an in-process llama.cpp runtime).
package provider

import (
	"context"
	"strings"
)

// ID names a backend. IDs are unique per orchestrator and their order in a
// fallback chain is significant.
type ID string

// Capability is a bitset of what a backend can do.
type Capability uint8

const (
	CapText Capability = 1 << iota
	CapVision
	CapTools
)

// Has reports whether every bit of other is set in c.
func (c Capability) Has(other Capability) bool { return c&other == other }

// Names returns the capability names in a stable order.
func (c Capability) Names() []string {
	var out []string
	if c.Has(CapText) {
		out = append(out, "text")
	}
	if c.Has(CapVision) {
		out = append(out, "vision")
	}
	if c.Has(CapTools) {
		out = append(out, "tools")
	}
	return out
}

func (c Capability) String() string { return strings.Join(c.Names(), ",") }

// ParseCapabilities accepts names such as "text", "vision" and "tools".
// Unknown names are reported as ok=false.
func ParseCapabilities(names []string) (Capability, bool) {
	var c Capability
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "text":
			c |= CapText
		case "vision", "image":
			c |= CapVision
		case "tools", "tool":
			c |= CapTools
		default:
			return c, false
		}
	}
	return c, true
}

// Role of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one conversation message.
type Turn struct {
	Role    Role
	Content string
}

// Request is a text generation request.
type Request struct {
	Input   string
	System  string
	History []Turn
}

// ToolSchema describes a callable tool. Parameters is a JSON schema object.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is a tool invocation requested by a model.
type ToolCall struct {
	Name      string
	Arguments map[string]any
}

// ToolResponse is the result of a tool-capable generation: text, tool calls or both.
type ToolResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// Backend generates text.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// VisionBackend generates text from a prompt plus an image.
type VisionBackend interface {
	GenerateWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// ToolBackend generates text or tool calls given tool schemas.
type ToolBackend interface {
	GenerateWithTools(ctx context.Context, req Request, tools []ToolSchema) (ToolResponse, error)
}

// Supported returns the capabilities b actually implements.
func Supported(b Backend) Capability {
	c := CapText
	if _, ok := b.(VisionBackend); ok {
		c |= CapVision
	}
	if _, ok := b.(ToolBackend); ok {
		c |= CapTools
	}
	return c
}
