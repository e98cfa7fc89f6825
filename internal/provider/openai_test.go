package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeOpenAI serves /chat/completions and records requests.
type fakeOpenAI struct {
	mu     sync.Mutex
	auth   []string
	bodies []map[string]any
	status int
	reply  string
}

func (f *fakeOpenAI) handler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	b, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(b, &body)
	f.bodies = append(f.bodies, body)
	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"rate_limit_error"}}`))
		return
	}
	_, _ = w.Write([]byte(f.reply))
}

func newFakeOpenAI(t *testing.T, reply string) (*fakeOpenAI, *httptest.Server) {
	t.Helper()
	f := &fakeOpenAI{reply: reply}
	srv := httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(srv.Close)
	return f, srv
}

const textCompletion = `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"hello there"},"finish_reason":"stop"}]}`

func TestOpenAIGenerate(t *testing.T) {
	f, srv := newFakeOpenAI(t, textCompletion)
	o, err := NewOpenAI(Spec{ID: "groq", Kind: "groq", BaseURL: srv.URL, APIKeys: []string{"k1", "k2"}, Model: "llama-3.1"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	req := Request{Input: "hi", System: "sys", History: []Turn{{Role: RoleUser, Content: "a"}, {Role: RoleAssistant, Content: "b"}}}
	for i := 0; i < 3; i++ {
		got, err := o.Generate(context.Background(), req)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if got != "hello there" {
			t.Fatalf("content=%q", got)
		}
	}
	want := []string{"Bearer k1", "Bearer k2", "Bearer k1"}
	for i, w := range want {
		if f.auth[i] != w {
			t.Fatalf("auth[%d]=%q want %q", i, f.auth[i], w)
		}
	}
	msgs, _ := f.bodies[0]["messages"].([]any)
	if len(msgs) != 4 {
		t.Fatalf("messages=%d want 4", len(msgs))
	}
	first, _ := msgs[0].(map[string]any)
	if first["role"] != "system" {
		t.Fatalf("first role=%v", first["role"])
	}
}

func TestOpenAIRateLimit(t *testing.T) {
	f, srv := newFakeOpenAI(t, textCompletion)
	f.status = http.StatusTooManyRequests
	o, err := NewOpenAI(Spec{ID: "groq", BaseURL: srv.URL, Model: "m"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = o.Generate(context.Background(), Request{Input: "hi"})
	var bf *BackendFailure
	if !errors.As(err, &bf) || bf.Kind != KindRateLimit || bf.Provider != "groq" {
		t.Fatalf("expected rate limit failure, got %v", err)
	}
}

func TestOpenAITools(t *testing.T) {
	reply := `{"id":"c2","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"","tool_calls":[{"id":"t1","type":"function","function":{"name":"clock","arguments":"{\"tz\":\"UTC\"}"}}]},"finish_reason":"tool_calls"}]}`
	f, srv := newFakeOpenAI(t, reply)
	o, err := NewOpenAI(Spec{ID: "oa", BaseURL: srv.URL, Model: "m"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	resp, err := o.GenerateWithTools(context.Background(), Request{Input: "time?"}, []ToolSchema{{Name: "clock", Description: "current time", Parameters: map[string]any{"type": "object"}}})
	if err != nil {
		t.Fatalf("tools: %v", err)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "clock" || resp.ToolCalls[0].Arguments["tz"] != "UTC" {
		t.Fatalf("calls=%+v", resp.ToolCalls)
	}
	tools, _ := f.bodies[0]["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("tools sent=%d", len(tools))
	}
}

func TestOpenAIBadToolArguments(t *testing.T) {
	reply := `{"id":"c3","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","tool_calls":[{"id":"t1","type":"function","function":{"name":"clock","arguments":"{not json"}}]}}]}`
	_, srv := newFakeOpenAI(t, reply)
	o, _ := NewOpenAI(Spec{ID: "oa", BaseURL: srv.URL, Model: "m"})
	_, err := o.GenerateWithTools(context.Background(), Request{Input: "x"}, nil)
	if KindOf(err) != KindParse {
		t.Fatalf("expected parse failure, got %v", err)
	}
}

func TestOpenAIImage(t *testing.T) {
	f, srv := newFakeOpenAI(t, textCompletion)
	o, _ := NewOpenAI(Spec{ID: "oa", BaseURL: srv.URL, Model: "text", VisionModel: "vl"})
	got, err := o.GenerateWithImage(context.Background(), "describe", []byte{0x89, 'P', 'N', 'G'}, "")
	if err != nil {
		t.Fatalf("image: %v", err)
	}
	if got != "hello there" {
		t.Fatalf("content=%q", got)
	}
	if f.bodies[0]["model"] != "vl" {
		t.Fatalf("model=%v", f.bodies[0]["model"])
	}
	raw, _ := json.Marshal(f.bodies[0]["messages"])
	if !strings.Contains(string(raw), "data:image/png;base64,") {
		t.Fatalf("image not sent as data url: %s", raw)
	}
}

func TestOpenAIRequiresModel(t *testing.T) {
	if _, err := NewOpenAI(Spec{ID: "x"}); err == nil {
		t.Fatalf("expected error")
	}
}
