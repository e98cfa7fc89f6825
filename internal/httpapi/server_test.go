package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"inferd/pkg/types"
)

type mockService struct {
	status    types.StatusResponse
	providers types.ProvidersResponse
	ready     bool
	genErr    error
	agentResp types.AgentResponse
	agentErr  error

	lastGen     types.GenerateRequest
	lastAgent   types.AgentRequest
	cleared     int
	evictKeep   *bool
	warmed      string
	released    string
	slotErr     error
	ops         map[string]types.OperationStatus
	observedCtx context.Context
}

func (m *mockService) Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error) {
	m.lastGen = req
	m.observedCtx = ctx
	if m.genErr != nil {
		return types.GenerateResponse{}, m.genErr
	}
	return types.GenerateResponse{Content: "echo: " + req.Input, Provider: "p1"}, nil
}

func (m *mockService) GenerateImage(ctx context.Context, req types.ImageRequest) (types.GenerateResponse, error) {
	if m.genErr != nil {
		return types.GenerateResponse{}, m.genErr
	}
	return types.GenerateResponse{Content: "a cat", Provider: "vision"}, nil
}

func (m *mockService) Agent(ctx context.Context, req types.AgentRequest) (types.AgentResponse, error) {
	m.lastAgent = req
	return m.agentResp, m.agentErr
}

func (m *mockService) ClearHistory()                      { m.cleared++ }
func (m *mockService) Providers() types.ProvidersResponse { return m.providers }
func (m *mockService) Status() types.StatusResponse       { return m.status }
func (m *mockService) Ready() bool                        { return m.ready }

func (m *mockService) Evict(keepCritical bool) error {
	m.evictKeep = &keepCritical
	return m.slotErr
}

func (m *mockService) Warm(name string) (string, error) {
	if m.slotErr != nil {
		return "", m.slotErr
	}
	m.warmed = name
	return "op-1", nil
}

func (m *mockService) ReleaseSlot(name string) error {
	m.released = name
	return m.slotErr
}

func (m *mockService) Operation(id string) (types.OperationStatus, error) {
	op, ok := m.ops[id]
	if !ok {
		return types.OperationStatus{}, mockHTTPError{msg: "operation not found", code: http.StatusNotFound}
	}
	return op, nil
}

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.ErrorResponse {
	t.Helper()
	var e types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("error body: %v (%q)", err, w.Body.String())
	}
	return e
}

func TestGenerateHandler(t *testing.T) {
	svc := &mockService{}
	w := postJSON(t, NewMux(svc), "/generate", `{"input":"hi","system":"be brief"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	var body types.GenerateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Content != "echo: hi" || body.Provider != "p1" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if svc.lastGen.System != "be brief" {
		t.Fatalf("system not forwarded: %+v", svc.lastGen)
	}
}

func TestGenerateInputRequired(t *testing.T) {
	w := postJSON(t, NewMux(&mockService{}), "/generate", `{"input":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing input, got %d", w.Code)
	}
}

func TestGenerateBadJSON(t *testing.T) {
	w := postJSON(t, NewMux(&mockService{}), "/generate", "not-json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	if e := decodeError(t, w); e.Error != "invalid JSON body" || e.Code != http.StatusBadRequest {
		t.Fatalf("unexpected error body: %+v", e)
	}
}

func TestGenerateUnsupportedMediaType(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewBufferString(`{"input":"hi"}`))
	req.Header.Set("Content-Type", "text/plain")
	NewMux(&mockService{}).ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestGenerateBodyTooLarge(t *testing.T) {
	SetMaxBodyBytes(1 << 10)
	defer SetMaxBodyBytes(0)
	big := `{"input":"` + strings.Repeat("a", 2<<10) + `"}`
	w := postJSON(t, NewMux(&mockService{}), "/generate", big)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too-large body, got %d", w.Code)
	}
}

func TestGenerateErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"exhausted", mockHTTPError{msg: "generate: all providers exhausted", code: http.StatusServiceUnavailable}, http.StatusServiceUnavailable},
		{"resource", mockHTTPError{msg: "budget exhausted", code: http.StatusInsufficientStorage}, http.StatusInsufficientStorage},
		{"wrapped", fmt.Errorf("retry: %w", mockHTTPError{msg: "too busy", code: http.StatusTooManyRequests}), http.StatusTooManyRequests},
		{"generic", io.EOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(t, NewMux(&mockService{genErr: tc.err}), "/generate", `{"input":"hi"}`)
			if w.Code != tc.want {
				t.Fatalf("status=%d want %d", w.Code, tc.want)
			}
			if e := decodeError(t, w); e.Error != tc.err.Error() || e.Code != tc.want {
				t.Fatalf("unexpected error body: %+v", e)
			}
		})
	}
}

func TestGenerateRequestTimeoutApplied(t *testing.T) {
	SetRequestTimeout(30 * time.Second)
	defer SetRequestTimeout(0)
	svc := &mockService{}
	w := postJSON(t, NewMux(svc), "/generate", `{"input":"hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if _, ok := svc.observedCtx.Deadline(); !ok {
		t.Fatalf("expected a deadline on the service context")
	}
}

func TestGenerateDropsResponseOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	SetBaseContext(ctx)
	defer SetBaseContext(nil)
	cancel()
	svc := &mockService{genErr: context.Canceled}
	w := postJSON(t, NewMux(svc), "/generate", `{"input":"hi"}`)
	if w.Body.Len() != 0 {
		t.Fatalf("expected empty body during shutdown, got %q", w.Body.String())
	}
}

func TestGenerateImageHandler(t *testing.T) {
	w := postJSON(t, NewMux(&mockService{}), "/generate/image", `{"prompt":"what","image_base64":"aGk="}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.GenerateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Content != "a cat" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestAgentHandler(t *testing.T) {
	svc := &mockService{agentResp: types.AgentResponse{Content: "12:00", State: "done", Turns: 2}}
	w := postJSON(t, NewMux(svc), "/agent", `{"input":"time?","max_turns":3}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var body types.AgentResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.State != "done" || body.Turns != 2 || svc.lastAgent.MaxTurns != 3 {
		t.Fatalf("unexpected: body=%+v req=%+v", body, svc.lastAgent)
	}
}

func TestAgentNegativeTurns(t *testing.T) {
	w := postJSON(t, NewMux(&mockService{}), "/agent", `{"input":"x","max_turns":-1}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestAgentErrorUsesLoopMessage(t *testing.T) {
	svc := &mockService{
		agentResp: types.AgentResponse{Content: "Sorry, I ran into an error.", State: "failed"},
		agentErr:  mockHTTPError{msg: "agent: all providers exhausted", code: http.StatusServiceUnavailable},
	}
	w := postJSON(t, NewMux(svc), "/agent", `{"input":"x"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	if e := decodeError(t, w); e.Error != "Sorry, I ran into an error." {
		t.Fatalf("unexpected error body: %+v", e)
	}
}

func TestClearHistory(t *testing.T) {
	svc := &mockService{}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/history", nil))
	if w.Code != http.StatusNoContent || svc.cleared != 1 {
		t.Fatalf("status=%d cleared=%d", w.Code, svc.cleared)
	}
}

func TestProvidersHandler(t *testing.T) {
	svc := &mockService{providers: types.ProvidersResponse{
		Chain:  []types.ProviderInfo{{ID: "b"}, {ID: "a"}},
		Vision: []string{"v"},
	}}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/providers", nil))
	var body types.ProvidersResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body.Chain) != 2 || body.Chain[0].ID != "b" || body.Vision[0] != "v" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestStatusHandler(t *testing.T) {
	svc := &mockService{status: types.StatusResponse{Scheduler: types.SchedulerStatus{BudgetMB: 10}}}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Scheduler.BudgetMB != 10 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestEvictKeepCriticalDefault(t *testing.T) {
	svc := &mockService{}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scheduler/evict", nil))
	if w.Code != http.StatusNoContent || svc.evictKeep == nil || !*svc.evictKeep {
		t.Fatalf("status=%d keep=%v", w.Code, svc.evictKeep)
	}

	w = httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scheduler/evict?keep_critical=false", nil))
	if w.Code != http.StatusNoContent || *svc.evictKeep {
		t.Fatalf("status=%d keep=%v", w.Code, *svc.evictKeep)
	}

	w = httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scheduler/evict?keep_critical=maybe", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestWarmAndOperation(t *testing.T) {
	svc := &mockService{ops: map[string]types.OperationStatus{"op-1": {ID: "op-1", Slot: "llama", Done: true}}}
	h := NewMux(svc)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scheduler/slots/llama/warm", nil))
	if w.Code != http.StatusAccepted || svc.warmed != "llama" {
		t.Fatalf("status=%d warmed=%q", w.Code, svc.warmed)
	}
	var op types.OperationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &op); err != nil || op.OpID != "op-1" {
		t.Fatalf("op=%+v err=%v", op, err)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scheduler/ops/op-1", nil))
	var st types.OperationStatus
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil || !st.Done || st.Slot != "llama" {
		t.Fatalf("status=%+v err=%v", st, err)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scheduler/ops/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReleaseSlotUnknown(t *testing.T) {
	svc := &mockService{slotErr: mockHTTPError{msg: "slot not found", code: http.StatusNotFound}}
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scheduler/slots/x/release", nil))
	if w.Code != http.StatusNotFound || svc.released != "x" {
		t.Fatalf("status=%d released=%q", w.Code, svc.released)
	}
}

func TestReadyz(t *testing.T) {
	w := httptest.NewRecorder()
	NewMux(&mockService{ready: true}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz_NotReady(t *testing.T) {
	w := httptest.NewRecorder()
	NewMux(&mockService{ready: false}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "degraded") {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	NewMux(&mockService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestSecurityHeader(t *testing.T) {
	w := httptest.NewRecorder()
	NewMux(&mockService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("nosniff missing: %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	SetCORSOptions(true, []string{"http://ui.local"}, []string{"GET", "POST"}, []string{"Content-Type"})
	defer SetCORSOptions(false, nil, nil, nil)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/generate", nil)
	req.Header.Set("Origin", "http://ui.local")
	req.Header.Set("Access-Control-Request-Method", "POST")
	NewMux(&mockService{}).ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://ui.local" {
		t.Fatalf("allow-origin=%q status=%d", got, w.Code)
	}
}

func TestGenerateDeadlineMaps504(t *testing.T) {
	svc := &mockService{genErr: fmt.Errorf("generate: %w", context.DeadlineExceeded)}
	w := postJSON(t, NewMux(svc), "/generate", `{"input":"hi"}`)
	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("status=%d", w.Code)
	}
}
