package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/haasonsaas/nexus-core/internal/dispatch"
)

// ActionExecutor runs a single Action and returns an Observation, grounded on
// original_source/neuroion/core/agent/executor.py's Executor.run. It is
// sequential and timeout-free by design: SPEC_FULL.md's loop bounds total
// work via MaxAgentIterations/MaxToolAttempts, not per-call deadlines, so
// this intentionally does not reuse Executor's (this package's teacher
// native-tool-calling Executor) concurrency/retry/timeout machinery — see
// DESIGN.md.
type ActionExecutor struct {
	registry *dispatch.Registry
}

func NewActionExecutor(registry *dispatch.Registry) *ActionExecutor {
	return &ActionExecutor{registry: registry}
}

// Run executes action under rctx. For ActionToolCall it dispatches through
// the registry and measures latency, the one idiom borrowed from this
// package's tool_exec.go; need_info/final are returned directly with no
// dispatch call, matching Observation.need_info/Observation.final.
func (e *ActionExecutor) Run(ctx context.Context, action Action, rctx RunContext) Observation {
	switch action.Kind {
	case ActionToolCall:
		start := time.Now()
		dctx := dispatch.Context{HouseholdID: rctx.HouseholdID, UserID: rctx.UserID, AllowedTools: rctx.AllowedTools}
		result := e.registry.Execute(ctx, action.Tool, action.Args, rctx.UserID, dctx)
		latencyMS := float64(time.Since(start)) / float64(time.Millisecond)
		metadata := map[string]any{"latency_ms": roundTo2(latencyMS)}
		return ObservationFromToolResult(action, result.Success, result.Output, result.Error, metadata)

	case ActionNeedInfo:
		return Observation{Action: action, Success: true, Message: joinQuestions(action.Questions), Metadata: map[string]any{}}

	case ActionFinal:
		return Observation{Action: action, Success: true, Message: action.Message, Metadata: map[string]any{}}

	default:
		return Observation{Action: action, Success: false, Error: fmt.Sprintf("unknown action kind: %s", action.Kind), Metadata: map[string]any{}}
	}
}

func roundTo2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

func joinQuestions(qs []string) string {
	if len(qs) == 0 {
		return ""
	}
	out := qs[0]
	for _, q := range qs[1:] {
		out += " " + q
	}
	return out
}
