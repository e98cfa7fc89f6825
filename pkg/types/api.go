package types

// GenerateRequest is the payload for POST /generate.
type GenerateRequest struct {
	// Required user input.
	// example: Summarize the last deployment log.
	Input string `json:"input" example:"Summarize the last deployment log."`
	// Optional system instruction forwarded to every provider in the chain.
	// example: You are a terse assistant.
	System string `json:"system,omitempty" example:"You are a terse assistant."`
	// When true, a failed chain is retried with the failure folded into the input.
	// example: false
	Corrective bool `json:"corrective,omitempty" example:"false"`
}

// GenerateResponse is returned by POST /generate.
type GenerateResponse struct {
	// Generated text.
	Content string `json:"content"`
	// Provider that produced the text.
	// example: groq
	Provider string `json:"provider,omitempty" example:"groq"`
}

// ImageRequest is the payload for POST /generate/image.
type ImageRequest struct {
	// Required prompt describing what to extract from the image.
	// example: What is shown on the screen?
	Prompt string `json:"prompt" example:"What is shown on the screen?"`
	// Base64 encoded image bytes.
	ImageBase64 string `json:"image_base64"`
	// Image MIME type.
	// example: image/png
	MimeType string `json:"mime_type,omitempty" example:"image/png"`
}

// AgentRequest is the payload for POST /agent (tool-calling loop).
type AgentRequest struct {
	// Required user input.
	// example: What time is it in UTC?
	Input string `json:"input" example:"What time is it in UTC?"`
	// Maximum number of model turns; 0 uses the server default.
	// example: 5
	MaxTurns int `json:"max_turns,omitempty" example:"5"`
}

// AgentResponse is returned by POST /agent.
type AgentResponse struct {
	// Final text. May describe the last pending tool calls when the turn limit was hit.
	Content string `json:"content"`
	// Terminal state of the loop: done or max_turns_reached.
	// example: done
	State string `json:"state" example:"done"`
	// Number of model turns that were executed.
	// example: 2
	Turns int `json:"turns" example:"2"`
}

// ProviderInfo describes one registered provider.
type ProviderInfo struct {
	// example: groq
	ID string `json:"id" example:"groq"`
	// Capabilities advertised by the provider.
	// example: ["text","tools"]
	Capabilities []string `json:"capabilities"`
	// Resource slot gating the provider, if any.
	Slot string `json:"slot,omitempty"`
}

// ProvidersResponse is returned by GET /providers in chain order.
type ProvidersResponse struct {
	Chain  []ProviderInfo `json:"chain"`
	Vision []string       `json:"vision"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// SlotStatus summarizes a resource slot for /status.
type SlotStatus struct {
	// example: qwen2.5-vl-7b
	Name string `json:"name" example:"qwen2.5-vl-7b"`
	// unloaded, materialized or resident.
	// example: resident
	State string `json:"state" example:"resident"`
	// low, normal or critical.
	// example: normal
	Priority string `json:"priority" example:"normal"`
	// Size in MB when resident.
	// example: 4800
	SizeMB int `json:"size_mb" example:"4800"`
	// Last time this slot was acquired or released (unix seconds).
	// example: 1700000000
	LastUsed int64 `json:"last_used_unix" example:"1700000000"`
	// Number of acquisitions that promoted the slot.
	// example: 3
	UseCount int `json:"use_count" example:"3"`
}

// SchedulerStatus is the scheduler part of /status.
type SchedulerStatus struct {
	Slots []SlotStatus `json:"slots"`
	// example: 8192
	BudgetMB int `json:"budget_mb" example:"8192"`
	// example: 512
	MarginMB int `json:"margin_mb" example:"512"`
	// example: 4800
	UsedMB int `json:"used_mb" example:"4800"`
	// example: 5
	EvictionsTotal uint64 `json:"evictions_total" example:"5"`
	// example: 12
	LoadsTotal uint64 `json:"loads_total" example:"12"`
	// example: 20
	PromotionsTotal uint64 `json:"promotions_total" example:"20"`
}

// RetryStats summarizes the corrective-retry handler.
type RetryStats struct {
	TotalErrors         int            `json:"total_errors"`
	Resolved            int            `json:"resolved"`
	ResolutionRate      float64        `json:"resolution_rate"`
	ConsecutiveFailures int            `json:"consecutive_failures"`
	Degraded            bool           `json:"is_degraded"`
	ErrorRate           float64        `json:"error_rate"`
	ByKind              map[string]int `json:"by_kind"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Scheduler SchedulerStatus `json:"scheduler"`
	Retry     RetryStats      `json:"retry"`
	// One-line human summary of retry health.
	Summary string `json:"summary"`
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// OperationResponse carries the id of an asynchronous operation.
type OperationResponse struct {
	// example: 0b8f8d36-4f3f-4c8f-9d8c-2b1f4b36d0a1
	OpID string `json:"op_id" example:"0b8f8d36-4f3f-4c8f-9d8c-2b1f4b36d0a1"`
}

// OperationStatus reports the progress of an asynchronous slot warm-up.
type OperationStatus struct {
	// example: 0b8f8d36-4f3f-4c8f-9d8c-2b1f4b36d0a1
	ID string `json:"id" example:"0b8f8d36-4f3f-4c8f-9d8c-2b1f4b36d0a1"`
	// example: qwen2.5-vl-7b
	Slot string `json:"slot" example:"qwen2.5-vl-7b"`
	Done bool   `json:"done"`
	// Error message when the warm-up failed.
	Error string `json:"error,omitempty"`
	// example: 1700000000
	StartedUnix int64 `json:"started_unix" example:"1700000000"`
	// Zero until done.
	FinishedUnix int64 `json:"finished_unix,omitempty"`
}
