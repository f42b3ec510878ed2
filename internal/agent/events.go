package agent

// TurnEventType is a streaming event discriminator emitted during a turn,
// grounded on pkg/models/runtime_event.go's RuntimeEventType vocabulary and
// builder-method pattern, renamed to the set a caller streams to a client:
// status, step_output, tool_start, tool_done, token, and done.
type TurnEventType string

const (
	// TurnEventStatus reports a coarse lifecycle transition (planning,
	// reflecting, writing).
	TurnEventStatus TurnEventType = "status"

	// TurnEventStepOutput carries an intermediate fact recorded to the
	// turn's trace (a tool call's summary, success or failure).
	TurnEventStepOutput TurnEventType = "step_output"

	// TurnEventToolStart marks a tool call about to execute.
	TurnEventToolStart TurnEventType = "tool_start"

	// TurnEventToolDone marks a tool call's completion, success or not.
	TurnEventToolDone TurnEventType = "tool_done"

	// TurnEventToken carries one streamed text delta from the writer.
	TurnEventToken TurnEventType = "token"

	// TurnEventDone marks the turn's final reply.
	TurnEventDone TurnEventType = "done"
)

// TurnEvent is one entry in a turn's event stream.
type TurnEvent struct {
	Type      TurnEventType  `json:"type"`
	Message   string         `json:"message,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
	Iteration int            `json:"iteration,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// NewTurnEvent builds a bare event of the given type, mirroring
// models.NewToolEvent's constructor-plus-With* chaining style.
func NewTurnEvent(eventType TurnEventType) *TurnEvent {
	return &TurnEvent{Type: eventType}
}

func (e *TurnEvent) WithMessage(msg string) *TurnEvent {
	e.Message = msg
	return e
}

func (e *TurnEvent) WithTool(name string) *TurnEvent {
	e.ToolName = name
	return e
}

func (e *TurnEvent) WithIteration(iter int) *TurnEvent {
	e.Iteration = iter
	return e
}

func (e *TurnEvent) WithMeta(key string, value any) *TurnEvent {
	if e.Meta == nil {
		e.Meta = make(map[string]any)
	}
	e.Meta[key] = value
	return e
}

// TurnEventSink receives a turn's events as they happen. A nil sink is a
// valid no-op; TurnRunner never requires one.
type TurnEventSink interface {
	Emit(event *TurnEvent)
}

// TurnEventSinkFunc adapts a function to a TurnEventSink.
type TurnEventSinkFunc func(event *TurnEvent)

func (f TurnEventSinkFunc) Emit(event *TurnEvent) { f(event) }
