package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	openai "github.com/sashabaranov/go-openai"
)

// Default base URLs for OpenAI-compatible kinds.
var openAIBaseURLs = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"ollama":     "http://localhost:11434/v1",
	"groq":       "https://api.groq.com/openai/v1",
	"nvidia":     "https://integrate.api.nvidia.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
}

// OpenAI talks to any OpenAI-compatible chat completions endpoint. Multiple
// API keys are used round-robin, one client per key.
type OpenAI struct {
	id          ID
	clients     []*openai.Client
	next        atomic.Uint64
	model       string
	visionModel string
	maxTokens   int
	temperature float32
}

func NewOpenAI(spec Spec) (*OpenAI, error) {
	if spec.Model == "" {
		return nil, fmt.Errorf("%s: model is required", spec.ID)
	}
	baseURL := spec.BaseURL
	if baseURL == "" {
		baseURL = openAIBaseURLs[strings.ToLower(spec.Kind)]
	}
	keys := spec.APIKeys
	if len(keys) == 0 {
		// Local servers (ollama, llama-server) accept any key.
		keys = []string{"not-needed"}
	}
	o := &OpenAI{
		id:          spec.ID,
		model:       spec.Model,
		visionModel: spec.visionModel(),
		maxTokens:   spec.maxTokens(),
		temperature: spec.Temperature,
	}
	hc := spec.httpClient()
	for _, k := range keys {
		cfg := openai.DefaultConfig(k)
		if baseURL != "" {
			cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
		}
		cfg.HTTPClient = hc
		o.clients = append(o.clients, openai.NewClientWithConfig(cfg))
	}
	return o, nil
}

func (o *OpenAI) client() *openai.Client {
	n := o.next.Add(1) - 1
	return o.clients[n%uint64(len(o.clients))]
}

func (o *OpenAI) messages(req Request) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, t := range req.History {
		role := openai.ChatMessageRoleUser
		if t.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Input})
}

func (o *OpenAI) complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionMessage, error) {
	req.MaxTokens = o.maxTokens
	if o.temperature > 0 {
		req.Temperature = o.temperature
	}
	resp, err := o.client().CreateChatCompletion(ctx, req)
	if err != nil {
		return openai.ChatCompletionMessage{}, o.fail(err)
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionMessage{}, &BackendFailure{Provider: o.id, Kind: KindParse, Err: errors.New("response has no choices")}
	}
	return resp.Choices[0].Message, nil
}

func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	msg, err := o.complete(ctx, openai.ChatCompletionRequest{Model: o.model, Messages: o.messages(req)})
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

func (o *OpenAI) GenerateWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "image/png"
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	msg, err := o.complete(ctx, openai.ChatCompletionRequest{
		Model: o.visionModel,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailAuto}},
			},
		}},
	})
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

func (o *OpenAI) GenerateWithTools(ctx context.Context, req Request, tools []ToolSchema) (ToolResponse, error) {
	defs := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	msg, err := o.complete(ctx, openai.ChatCompletionRequest{Model: o.model, Messages: o.messages(req), Tools: defs})
	if err != nil {
		return ToolResponse{}, err
	}
	out := ToolResponse{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if s := strings.TrimSpace(tc.Function.Arguments); s != "" {
			if err := json.Unmarshal([]byte(s), &args); err != nil {
				return ToolResponse{}, &BackendFailure{Provider: o.id, Kind: KindParse, Err: fmt.Errorf("tool %s arguments: %w", tc.Function.Name, err)}
			}
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{Name: tc.Function.Name, Arguments: args})
	}
	return out, nil
}

func (o *OpenAI) fail(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if k, ok := kindFromStatus(apiErr.HTTPStatusCode); ok {
			return &BackendFailure{Provider: o.id, Kind: k, Err: err}
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if k, ok := kindFromStatus(reqErr.HTTPStatusCode); ok {
			return &BackendFailure{Provider: o.id, Kind: k, Err: err}
		}
	}
	return Wrap(o.id, err)
}
