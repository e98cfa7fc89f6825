package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic talks to the Anthropic messages API (or a compatible endpoint).
type Anthropic struct {
	id          ID
	clients     []anthropic.Client
	next        atomic.Uint64
	model       string
	visionModel string
	maxTokens   int64
	temperature float32
}

func NewAnthropic(spec Spec) (*Anthropic, error) {
	if len(spec.APIKeys) == 0 {
		return nil, fmt.Errorf("%s: anthropic API key not configured", spec.ID)
	}
	if spec.Model == "" {
		return nil, fmt.Errorf("%s: model is required", spec.ID)
	}
	a := &Anthropic{
		id:          spec.ID,
		model:       spec.Model,
		visionModel: spec.visionModel(),
		maxTokens:   int64(spec.maxTokens()),
		temperature: spec.Temperature,
	}
	hc := spec.httpClient()
	for _, k := range spec.APIKeys {
		opts := []option.RequestOption{
			option.WithAPIKey(k),
			option.WithHTTPClient(hc),
			option.WithMaxRetries(0),
		}
		if spec.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(spec.BaseURL))
		}
		a.clients = append(a.clients, anthropic.NewClient(opts...))
	}
	return a, nil
}

func (a *Anthropic) client() *anthropic.Client {
	n := a.next.Add(1) - 1
	return &a.clients[n%uint64(len(a.clients))]
}

func (a *Anthropic) params(model string, req Request) anthropic.MessageNewParams {
	msgs := make([]anthropic.MessageParam, 0, len(req.History)+1)
	for _, t := range req.History {
		if t.Role == RoleAssistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Content)))
			continue
		}
		msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Content)))
	}
	msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Input)))
	p := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: a.maxTokens,
		Messages:  msgs,
	}
	if req.System != "" {
		p.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if a.temperature > 0 {
		p.Temperature = anthropic.Float(float64(a.temperature))
	}
	return p
}

func (a *Anthropic) send(ctx context.Context, p anthropic.MessageNewParams) (ToolResponse, error) {
	msg, err := a.client().Messages.New(ctx, p)
	if err != nil {
		return ToolResponse{}, a.fail(err)
	}
	var sb strings.Builder
	var out ToolResponse
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			sb.WriteString(v.Text)
		case anthropic.ToolUseBlock:
			args := map[string]any{}
			raw, err := json.Marshal(v.Input)
			if err == nil {
				err = json.Unmarshal(raw, &args)
			}
			if err != nil {
				return ToolResponse{}, &BackendFailure{Provider: a.id, Kind: KindParse, Err: fmt.Errorf("tool %s input: %w", v.Name, err)}
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{Name: v.Name, Arguments: args})
		}
	}
	out.Content = sb.String()
	return out, nil
}

func (a *Anthropic) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := a.send(ctx, a.params(a.model, req))
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (a *Anthropic) GenerateWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "image/png"
	}
	p := a.params(a.visionModel, Request{})
	p.Messages = []anthropic.MessageParam{anthropic.NewUserMessage(
		anthropic.NewImageBlockBase64(mimeType, base64.StdEncoding.EncodeToString(image)),
		anthropic.NewTextBlock(prompt),
	)}
	resp, err := a.send(ctx, p)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (a *Anthropic) GenerateWithTools(ctx context.Context, req Request, tools []ToolSchema) (ToolResponse, error) {
	p := a.params(a.model, req)
	p.Tools = make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		// Extract properties from the schema
		var properties any
		if props, ok := t.Parameters["properties"]; ok {
			properties = props
		}
		p.Tools = append(p.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{Properties: properties},
			},
		})
	}
	return a.send(ctx, p)
}

func (a *Anthropic) fail(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if k, ok := kindFromStatus(apiErr.StatusCode); ok {
			return &BackendFailure{Provider: a.id, Kind: k, Err: err}
		}
	}
	return Wrap(a.id, err)
}
