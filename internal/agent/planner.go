package agent

import (
	"context"

	"github.com/haasonsaas/nexus-core/internal/protocol"
)

// TaskMessageBuilder builds the message list for a task-mode planning step,
// mirroring original_source's planner.py build_task_messages(message,
// previous_exchanges) callback: the caller supplies prompt construction, the
// Planner only owns the decide-and-parse step.
type TaskMessageBuilder func(message string, previousExchanges []ChatTurn) []CompletionMessage

// Planner decides the next Action from a RunState, grounded on
// original_source/neuroion/core/agent/planner.py's next(state) -> Action.
// Unlike the original, Go's Planner never builds or validates multi-step
// ActionPlan DAGs: SPEC_FULL.md's loop is single-action-at-a-time
// (plan/act/reflect), so create_plan/validate_plan/execute_plan have no
// analogue here — see DESIGN.md.
type Planner struct {
	chat         ChatClient
	buildMessage TaskMessageBuilder
	parser       protocol.Parser
	allowedTools map[string]bool
}

// NewPlanner constructs a Planner. chat and buildMessage may both be nil, in
// which case Next only ever honors PendingDecision and otherwise falls back
// to Action.Final(""), exactly like the original when llm/build_task_messages
// are unset.
func NewPlanner(chat ChatClient, buildMessage TaskMessageBuilder, allowedTools map[string]bool) *Planner {
	return &Planner{chat: chat, buildMessage: buildMessage, parser: protocol.Parser{}, allowedTools: allowedTools}
}

// Next decides the next Action from state. Errors only escape when the
// model call itself fails; a parse failure degrades to Action.Final("")
// exactly as the original unconditionally does, since there's no action
// the caller could retry into.
func (p *Planner) Next(ctx context.Context, state RunState) (Action, error) {
	if state.PendingDecision != nil {
		return decisionToAction(*state.PendingDecision), nil
	}

	if state.Mode == ModeTask && state.Task != nil && p.chat != nil && p.buildMessage != nil {
		previous := state.ConversationHistory
		if len(previous) > 4 {
			previous = previous[len(previous)-4:]
		}
		messages := p.buildMessage(state.Message, previous)
		lastOutput, _ := state.Task["last_assistant_output"].(string)

		raw, err := p.chat.Chat(ctx, "", messages, 0.3, 0)
		if err != nil {
			return Action{}, err
		}
		result := p.parser.Parse(raw, lastOutput, p.allowedTools)
		return resultToAction(result), nil
	}

	return FinalAction(""), nil
}

func decisionToAction(d PendingDecision) Action {
	switch d.Kind {
	case "tool_call":
		tool, _ := d.Payload["tool"].(string)
		args, _ := d.Payload["args"].(map[string]any)
		return ToolCallAction(tool, args)
	case "need_info":
		questions, _ := d.Payload["questions"].([]string)
		return NeedInfoAction(questions)
	case "final":
		message, _ := d.Payload["message"].(string)
		return FinalAction(message)
	default:
		return FinalAction("")
	}
}

func resultToAction(r protocol.Result) Action {
	switch r.Kind {
	case protocol.KindToolCall:
		return ToolCallAction(r.ToolCall.Tool, r.ToolCall.Args)
	case protocol.KindNeedInfo:
		return NeedInfoAction(r.NeedInfo.Questions)
	case protocol.KindFinal:
		return FinalAction(r.Final.Message)
	default:
		return FinalAction("")
	}
}
