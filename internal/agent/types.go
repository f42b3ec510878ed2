package agent

import "time"

// ActionKind tags the variant carried by an Action. Exactly one of the
// corresponding fields on Action is populated for a given kind; callers
// switch on Kind, never on field presence.
type ActionKind string

const (
	ActionToolCall ActionKind = "tool_call"
	ActionNeedInfo ActionKind = "need_info"
	ActionFinal    ActionKind = "final"
)

// Action is the planner's atomic decision. It is immutable once produced.
type Action struct {
	Kind ActionKind

	// Populated only when Kind == ActionToolCall.
	Tool string
	Args map[string]any

	// Populated only when Kind == ActionNeedInfo.
	Questions []string

	// Populated only when Kind == ActionFinal.
	Message string
}

func ToolCallAction(tool string, args map[string]any) Action {
	if args == nil {
		args = map[string]any{}
	}
	return Action{Kind: ActionToolCall, Tool: tool, Args: args}
}

func NeedInfoAction(questions []string) Action {
	return Action{Kind: ActionNeedInfo, Questions: questions}
}

func FinalAction(message string) Action {
	return Action{Kind: ActionFinal, Message: message}
}

// Observation is the result of executing one Action. It is produced once by
// the Executor and never mutated afterward.
type Observation struct {
	Action Action

	Success bool

	// Output carries a tool call's result map; nil for need_info/final.
	Output map[string]any
	Error  string

	// Message echoes need_info's joined questions or final's text.
	Message string

	// Metadata carries latency_ms and similar non-semantic measurements.
	Metadata map[string]any
}

// ObservationFromToolResult builds the Observation for a tool_call Action
// from the dispatcher's envelope.
func ObservationFromToolResult(action Action, success bool, output map[string]any, errMsg string, metadata map[string]any) Observation {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Observation{
		Action:   action,
		Success:  success,
		Output:   output,
		Error:    errMsg,
		Metadata: metadata,
	}
}

// ChatTurn is one entry in a RunState's conversation history.
type ChatTurn struct {
	Role    string // "user" | "assistant" | "system"
	Content string
}

// PendingDecision short-circuits a planning step: when set on a RunState it
// is translated directly into an Action without a model call. Kind is one
// of "tool_call" | "need_info" | "final", matching the structured-output
// parser's kind tag.
type PendingDecision struct {
	Kind    string
	Payload map[string]any
}

// Mode tags how a turn should be handled by the loop.
type Mode string

const (
	ModeChat Mode = "chat"
	ModeTask Mode = "task"
)

// RunState is the input to one planning step. It is created once per turn;
// PendingDecision is consumed on first use by the Planner.
type RunState struct {
	Message            string
	ConversationHistory []ChatTurn
	Task               map[string]any
	LastObservation    *Observation
	Mode               Mode
	PendingDecision    *PendingDecision
}

// RunContext carries ambient handles for the duration of one turn. It is
// never retained past the turn that created it.
type RunContext struct {
	HouseholdID string
	UserID      string
	AllowedTools map[string]bool // nil means "no allow-list configured"
}

// ToolAllowed reports whether tool is permitted under this context's
// allow-list. A nil or empty allow-list permits every tool.
func (c RunContext) ToolAllowed(tool string) bool {
	if c.AllowedTools == nil {
		return true
	}
	return c.AllowedTools[tool]
}

// TraceEntry is one recorded tool call in a TurnTrace.
type TraceEntry struct {
	Tool      string
	Args      map[string]any
	Success   bool
	Summary   string
	Error     string
	Timestamp time.Time
}

// TurnTrace is the in-memory log of tool calls for a single turn. It is
// consumed by the reflect step (serialized as an observation) and by the
// writer (as a facts list); it never outlives the turn.
type TurnTrace struct {
	Entries []TraceEntry
}

func (t *TurnTrace) Append(e TraceEntry) {
	t.Entries = append(t.Entries, e)
}

// Facts renders one line per recorded tool call, in order, for the writer
// step's messages list.
func (t *TurnTrace) Facts() []string {
	facts := make([]string, 0, len(t.Entries))
	for _, e := range t.Entries {
		if e.Success {
			facts = append(facts, e.Tool+": "+e.Summary)
		} else {
			facts = append(facts, e.Tool+": failed - "+e.Error)
		}
	}
	return facts
}
