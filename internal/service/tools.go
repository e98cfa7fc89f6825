package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"inferd/internal/orchestrator"
	"inferd/internal/provider"
)

// builtinTools are the tools the agent loop gets when none are supplied.
func (s *Service) builtinTools() orchestrator.Tools {
	return orchestrator.Tools{
		"current_time": {
			Schema: provider.ToolSchema{
				Description: "Returns the current date and time. Optional IANA timezone, default UTC.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"timezone": map[string]any{"type": "string", "description": "IANA timezone such as Europe/Berlin"},
					},
				},
			},
			Run: currentTime,
		},
		"scheduler_status": {
			Schema: provider.ToolSchema{
				Description: "Lists local model slots with their state and the memory budget.",
				Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
			},
			Run: s.schedulerStatusTool,
		},
		"retry_stats": {
			Schema: provider.ToolSchema{
				Description: "Summarizes recent provider errors and whether the service is degraded.",
				Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
			},
			Run: func(ctx context.Context, _ map[string]any) (string, error) {
				return s.retry.Summary(), nil
			},
		},
	}
}

func currentTime(ctx context.Context, args map[string]any) (string, error) {
	loc := time.UTC
	if tz, _ := args["timezone"].(string); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return "", fmt.Errorf("unknown timezone %q", tz)
		}
		loc = l
	}
	return time.Now().In(loc).Format(time.RFC3339), nil
}

func (s *Service) schedulerStatusTool(ctx context.Context, _ map[string]any) (string, error) {
	st := s.sched.Status()
	var b strings.Builder
	fmt.Fprintf(&b, "used %dMB of %dMB (margin %dMB)", st.UsedMB, st.BudgetMB, st.MarginMB)
	for _, sl := range st.Slots {
		fmt.Fprintf(&b, "; %s %s %s %dMB", sl.Name, sl.State, sl.Priority, sl.SizeMB)
	}
	return b.String(), nil
}
