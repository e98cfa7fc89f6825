package provider

import (
	"context"
	"fmt"
	"sync/atomic"

	"google.golang.org/genai"
)

// Gemini talks to the Gemini API through the genai SDK.
type Gemini struct {
	id          ID
	clients     []*genai.Client
	next        atomic.Uint64
	model       string
	visionModel string
	maxTokens   int32
	temperature float32
}

func NewGemini(ctx context.Context, spec Spec) (*Gemini, error) {
	if len(spec.APIKeys) == 0 {
		return nil, fmt.Errorf("%s: gemini API key not configured", spec.ID)
	}
	if spec.Model == "" {
		return nil, fmt.Errorf("%s: model is required", spec.ID)
	}
	g := &Gemini{
		id:          spec.ID,
		model:       spec.Model,
		visionModel: spec.visionModel(),
		maxTokens:   int32(spec.maxTokens()),
		temperature: spec.Temperature,
	}
	for _, k := range spec.APIKeys {
		cc := &genai.ClientConfig{
			APIKey:     k,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: spec.httpClient(),
		}
		if spec.BaseURL != "" {
			cc.HTTPOptions = genai.HTTPOptions{BaseURL: spec.BaseURL}
		}
		c, err := genai.NewClient(ctx, cc)
		if err != nil {
			return nil, fmt.Errorf("%s: create genai client: %w", spec.ID, err)
		}
		g.clients = append(g.clients, c)
	}
	return g, nil
}

func (g *Gemini) client() *genai.Client {
	n := g.next.Add(1) - 1
	return g.clients[n%uint64(len(g.clients))]
}

func (g *Gemini) config(system string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{MaxOutputTokens: g.maxTokens}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if g.temperature > 0 {
		cfg.Temperature = genai.Ptr(g.temperature)
	}
	return cfg
}

func contents(req Request) []*genai.Content {
	out := make([]*genai.Content, 0, len(req.History)+1)
	for _, t := range req.History {
		role := genai.Role(genai.RoleUser)
		if t.Role == RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(t.Content, role))
	}
	return append(out, genai.NewContentFromText(req.Input, genai.RoleUser))
}

func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := g.client().Models.GenerateContent(ctx, g.model, contents(req), g.config(req.System))
	if err != nil {
		return "", Wrap(g.id, err)
	}
	return resp.Text(), nil
}

func (g *Gemini) GenerateWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "image/png"
	}
	parts := []*genai.Part{
		genai.NewPartFromBytes(image, mimeType),
		genai.NewPartFromText(prompt),
	}
	in := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := g.client().Models.GenerateContent(ctx, g.visionModel, in, g.config(""))
	if err != nil {
		return "", Wrap(g.id, err)
	}
	return resp.Text(), nil
}

func (g *Gemini) GenerateWithTools(ctx context.Context, req Request, tools []ToolSchema) (ToolResponse, error) {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.Parameters,
		})
	}
	cfg := g.config(req.System)
	cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	resp, err := g.client().Models.GenerateContent(ctx, g.model, contents(req), cfg)
	if err != nil {
		return ToolResponse{}, Wrap(g.id, err)
	}
	out := ToolResponse{Content: resp.Text()}
	for _, fc := range resp.FunctionCalls() {
		args := fc.Args
		if args == nil {
			args = map[string]any{}
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{Name: fc.Name, Arguments: args})
	}
	return out, nil
}
