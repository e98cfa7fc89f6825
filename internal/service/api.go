package service

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"inferd/internal/scheduler"
	"inferd/pkg/types"
)

// Generate runs the text chain. With req.Corrective the whole chain is
// wrapped in the retry handler, so a chain failure is retried with the
// failure folded into the input. Per-provider retries are skipped in that
// mode so only one retry layer runs.
func (s *Service) Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error) {
	if strings.TrimSpace(req.Input) == "" {
		return types.GenerateResponse{}, invalidInputError{msg: "input is required"}
	}
	if !req.Corrective {
		r, err := s.orch.Complete(ctx, req.Input, req.System)
		return types.GenerateResponse{Content: r.Content, Provider: string(r.Provider)}, err
	}
	var used string
	chain := s.orch.WithoutAttempter()
	out, rec := s.retry.Execute(ctx, func(ctx context.Context, in string) (string, error) {
		r, err := chain.Complete(ctx, in, req.System)
		used = string(r.Provider)
		return r.Content, err
	}, req.Input, "chain")
	if rec != nil {
		return types.GenerateResponse{}, rec
	}
	return types.GenerateResponse{Content: out, Provider: used}, nil
}

// GenerateImage runs the vision order. An empty Content with a nil error
// means every vision backend failed.
func (s *Service) GenerateImage(ctx context.Context, req types.ImageRequest) (types.GenerateResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return types.GenerateResponse{}, invalidInputError{msg: "prompt is required"}
	}
	img, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil || len(img) == 0 {
		return types.GenerateResponse{}, invalidInputError{msg: "image_base64 must be non-empty base64"}
	}
	mime := req.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	out, err := s.orch.GenerateWithImage(ctx, req.Prompt, img, mime)
	return types.GenerateResponse{Content: out}, err
}

// Agent runs the tool-calling loop with the service tools. On failure the
// response still carries the user-facing message.
func (s *Service) Agent(ctx context.Context, req types.AgentRequest) (types.AgentResponse, error) {
	if strings.TrimSpace(req.Input) == "" {
		return types.AgentResponse{}, invalidInputError{msg: "input is required"}
	}
	turns := req.MaxTurns
	if turns <= 0 {
		turns = s.cfg.MaxTurns
	}
	res, err := s.orch.GenerateWithToolsLoop(ctx, req.Input, s.tools, turns)
	return types.AgentResponse{Content: res.Content, State: string(res.State), Turns: res.Turns}, err
}

func (s *Service) ClearHistory() { s.orch.ClearHistory() }

func (s *Service) Providers() types.ProvidersResponse { return s.orch.Providers() }

func (s *Service) Status() types.StatusResponse {
	now := time.Now()
	return types.StatusResponse{
		Scheduler:      s.sched.Status(),
		Retry:          s.retry.Stats(),
		Summary:        s.retry.Summary(),
		UptimeSeconds:  int64(now.Sub(s.started).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
}

// Ready reports whether requests can be served: at least one provider is
// registered and the retry handler is not degraded.
func (s *Service) Ready() bool {
	return s.orch.Len() > 0 && !s.retry.IsDegraded()
}

// Evict demotes resident slots, keeping critical ones when asked.
func (s *Service) Evict(keepCritical bool) error { return s.sched.EvictAll(keepCritical) }

// Warm starts an asynchronous warm-up of a slot.
func (s *Service) Warm(name string) (string, error) {
	if _, err := s.sched.State(name); err != nil {
		return "", err
	}
	return s.sched.Warm(name), nil
}

func (s *Service) ReleaseSlot(name string) error { return s.sched.Release(name) }

// Operation reports a warm-up started by Warm.
func (s *Service) Operation(id string) (types.OperationStatus, error) {
	op, ok := s.sched.Op(id)
	if !ok {
		return types.OperationStatus{}, opNotFoundError{id: id}
	}
	return operationStatus(op), nil
}

func operationStatus(op scheduler.Operation) types.OperationStatus {
	st := types.OperationStatus{
		ID:          op.ID,
		Slot:        op.Slot,
		Done:        op.Done,
		Error:       op.Err,
		StartedUnix: op.Started.Unix(),
	}
	if !op.Finished.IsZero() {
		st.FinishedUnix = op.Finished.Unix()
	}
	return st
}

