package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"inferd/internal/provider"
)

const (
	defaultMaxTurns  = 5
	maxParallelTools = 8
)

// User-visible outcomes of a loop that could not get any answer.
const (
	msgNoToolProvider = "No tool-capable provider is configured. Register one with the tools capability."
	msgTurnFailed     = "All providers failed to answer. Check provider credentials and connectivity, then try again."
)

// ToolFunc executes one tool call.
type ToolFunc func(ctx context.Context, args map[string]any) (string, error)

type Tool struct {
	Schema provider.ToolSchema
	Run    ToolFunc
}

// Tools maps tool names to executors.
type Tools map[string]Tool

// Schemas returns the tool schemas sorted by name.
func (t Tools) Schemas() []provider.ToolSchema {
	out := make([]provider.ToolSchema, 0, len(t))
	for name, tool := range t {
		s := tool.Schema
		s.Name = name
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LoopState is a state of the tool-calling loop.
type LoopState string

const (
	StateAwaitResponse   LoopState = "await_response"
	StateHasToolCalls    LoopState = "has_tool_calls"
	StateExecutingTools  LoopState = "executing_tools"
	StateDone            LoopState = "done"
	StateMaxTurnsReached LoopState = "max_turns_reached"
	StateFailed          LoopState = "failed"
)

// LoopResult is the outcome of GenerateWithToolsLoop.
type LoopResult struct {
	Content string
	State   LoopState
	Turns   int
}

// GenerateWithToolsLoop lets tool-capable providers call tools until they
// answer without tool calls or maxTurns model turns have run. Each turn walks
// the chain like Generate; tool results, one line per call, become the next
// turn's input. Tool failures are reported to the model, never to the caller.
//
// At the turn limit the last non-empty model content is returned, or the
// pending tool results when there was none. When a whole turn fails the
// result carries a short actionable message along with the error.
func (o *Orchestrator) GenerateWithToolsLoop(ctx context.Context, input string, tools Tools, maxTurns int) (LoopResult, error) {
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	chain, err := o.chain(provider.CapTools)
	if err != nil {
		return LoopResult{Content: msgNoToolProvider, State: StateFailed}, err
	}
	schemas := tools.Schemas()
	transcript := o.history.Snapshot()
	state := StateAwaitResponse
	next := input
	var lastContent, pending string

	for turn := 1; ; turn++ {
		resp, err := o.toolTurn(ctx, chain, next, transcript, schemas)
		if err != nil {
			toolLoopTurns.Observe(float64(turn))
			content := lastContent
			if content == "" {
				content = msgTurnFailed
			}
			o.log.Error().Int("turn", turn).Str("state", string(state)).Msg("tool loop turn failed")
			return LoopResult{Content: content, State: StateFailed, Turns: turn}, err
		}
		content := clean(resp.Content)
		if len(resp.ToolCalls) == 0 {
			state = StateDone
			o.finishLoop(input, content, turn)
			return LoopResult{Content: content, State: state, Turns: turn}, nil
		}
		if content != "" {
			lastContent = content
		}

		state = StateHasToolCalls
		o.log.Debug().Int("turn", turn).Str("state", string(state)).Int("calls", len(resp.ToolCalls)).Msg("tool calls requested")
		state = StateExecutingTools
		pending = o.runTools(ctx, tools, resp.ToolCalls)

		if turn >= maxTurns {
			out := lastContent
			if out == "" {
				out = pending
			}
			state = StateMaxTurnsReached
			o.log.Warn().Int("max_turns", maxTurns).Msg("tool loop reached max turns")
			o.finishLoop(input, out, turn)
			return LoopResult{Content: out, State: state, Turns: turn}, nil
		}

		transcript = append(transcript,
			provider.Turn{Role: provider.RoleUser, Content: next},
			provider.Turn{Role: provider.RoleAssistant, Content: describeCalls(content, resp.ToolCalls)},
		)
		next = pending
		state = StateAwaitResponse
	}
}

func (o *Orchestrator) finishLoop(input, out string, turns int) {
	toolLoopTurns.Observe(float64(turns))
	if out != "" {
		o.history.Append(input, out)
	}
}

// toolTurn walks the chain once with tool-aware generation.
func (o *Orchestrator) toolTurn(ctx context.Context, chain []Candidate, input string, history []provider.Turn, schemas []provider.ToolSchema) (provider.ToolResponse, error) {
	var failures []error
	for _, c := range chain {
		tb := c.Backend.(provider.ToolBackend)
		var resp provider.ToolResponse
		_, err := o.invoke(ctx, c.ID, input, true, func(ctx context.Context, in string) (string, error) {
			r, err := tb.GenerateWithTools(ctx, provider.Request{Input: in, History: history}, schemas)
			if err != nil {
				return "", err
			}
			if clean(r.Content) == "" && len(r.ToolCalls) == 0 {
				return "", errEmptyReply
			}
			resp = r
			return r.Content, nil
		})
		if err == nil {
			return resp, nil
		}
		failures = append(failures, err)
		if ctx.Err() != nil {
			break
		}
	}
	return provider.ToolResponse{}, exhaustedError{op: "tool turn", failures: failures}
}

// runTools executes the calls concurrently and joins their results in call
// order, one line per call.
func (o *Orchestrator) runTools(ctx context.Context, tools Tools, calls []provider.ToolCall) string {
	results := make([]string, len(calls))
	var g errgroup.Group
	g.SetLimit(maxParallelTools)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = o.runTool(ctx, tools, call)
			return nil
		})
	}
	_ = g.Wait()
	return strings.Join(results, "\n")
}

func (o *Orchestrator) runTool(ctx context.Context, tools Tools, call provider.ToolCall) (out string) {
	tool, ok := tools[call.Name]
	if !ok || tool.Run == nil {
		o.log.Warn().Str("tool", call.Name).Msg("tool not found")
		return fmt.Sprintf("Tool '%s' not found", call.Name)
	}
	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Str("tool", call.Name).Interface("panic", r).Msg("tool panicked")
			out = fmt.Sprintf("Error executing %s: panic: %v", call.Name, r)
		}
	}()
	res, err := tool.Run(ctx, call.Arguments)
	if err != nil {
		o.log.Warn().Str("tool", call.Name).Err(err).Msg("tool failed")
		return fmt.Sprintf("Error executing %s: %s", call.Name, err.Error())
	}
	return res
}

func describeCalls(content string, calls []provider.ToolCall) string {
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.Name
	}
	line := "Called tools: " + strings.Join(names, ", ")
	if content == "" {
		return line
	}
	return content + "\n" + line
}
