package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/haasonsaas/nexus-core/internal/observability"
	otrace "go.opentelemetry.io/otel/trace"
)

// MaxAgentIterations bounds the reflect/act loop of a single turn, ported
// from original_source/neuroion/core/agent/agentic.py's
// MAX_AGENT_ITERATIONS.
const MaxAgentIterations = 8

// WriterMessageBuilder builds the final-response prompt from the
// accumulated trace, mirroring original_source's build_writer_messages:
// the writer only ever sees the goal, the user's message, and the facts
// list recorded by the trace, never the raw tool outputs or the
// plan/reflect JSON that produced them.
type WriterMessageBuilder func(goal, userMessage string, facts []string) []CompletionMessage

// TurnConfig wires a TurnRunner's collaborators. Its shape is a
// generalization of this package's former LoopConfig (deleted as a
// duplicate of Runtime's streaming tool-calling loop — see DESIGN.md) to
// the plan/act/reflect/write sequence SPEC_FULL.md actually calls for.
type TurnConfig struct {
	Planner            *Planner
	Executor           *ActionExecutor
	Validator          *Validator
	Writer             ChatClient
	BuildWriterMessage WriterMessageBuilder

	// Classifier routes a turn whose Mode wasn't set by the caller (the
	// zero value "") to ModeChat or ModeTask before planning begins. A nil
	// Classifier leaves an unset Mode as ModeChat's zero-value behavior in
	// Planner.Next (see planner.go).
	Classifier *ModeClassifier

	// Events, if set, receives the turn's status/step_output/tool_start/
	// tool_done/token/done stream. A nil Events is a valid no-op.
	Events TurnEventSink

	// Recorder, if set, mirrors each turn's lifecycle into the event-store
	// audit trail alongside the streamed TurnEvents above.
	Recorder *observability.EventRecorder
	Logger   *observability.Logger

	// MaxIterations overrides MaxAgentIterations when positive.
	MaxIterations int

	Tracer  *observability.Tracer
	Metrics *observability.Metrics
}

func (t *TurnRunner) emit(event *TurnEvent) {
	if t.cfg.Events != nil {
		t.cfg.Events.Emit(event)
	}
}

// TurnRunner drives one turn's plan → act → reflect (repeat) → write
// sequence, grounded on original_source/neuroion/core/agent/gateway.py's
// run_agent_turn. Unlike the original, each plan/reflect step yields one
// Action (not a batch of tool_calls) since this package's Planner already
// narrows to single-action decisions — see planner.go.
type TurnRunner struct {
	cfg TurnConfig
}

func NewTurnRunner(cfg TurnConfig) *TurnRunner {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = MaxAgentIterations
	}
	return &TurnRunner{cfg: cfg}
}

// Run executes one turn for state under rctx and returns the reply text
// sent to the user.
func (t *TurnRunner) Run(ctx context.Context, state RunState, rctx RunContext) (string, error) {
	ctx, span := t.startSpan(ctx, "agent.turn")
	defer span.End()

	start := time.Now()
	if t.cfg.Recorder != nil {
		_ = t.cfg.Recorder.RecordRunStart(ctx, observability.GetRunID(ctx), nil)
	}

	if state.Mode == "" && t.cfg.Classifier != nil {
		state.Mode = t.cfg.Classifier.Classify(ctx, state.Message)
	}

	trace := &TurnTrace{}
	userMessage := state.Message

	t.emit(NewTurnEvent(TurnEventStatus).WithMessage("planning"))
	action, err := t.plan(ctx, state)
	if err != nil {
		t.finishTurn(ctx, "failed", start, err)
		return "", fmt.Errorf("plan turn: %w", err)
	}

	if action.Kind == ActionNeedInfo {
		reply := joinQuestions(action.Questions)
		t.finishTurn(ctx, "completed", start, nil)
		t.emit(NewTurnEvent(TurnEventDone).WithMessage(reply))
		return reply, nil
	}
	if action.Kind == ActionFinal {
		t.finishTurn(ctx, "completed", start, nil)
		t.emit(NewTurnEvent(TurnEventDone).WithMessage(action.Message))
		return action.Message, nil
	}

	state = t.act(ctx, state, rctx, action, trace)

	for iterations := 0; iterations < t.cfg.MaxIterations; iterations++ {
		if len(trace.Entries) == 0 {
			break
		}

		t.emit(NewTurnEvent(TurnEventStatus).WithMessage("reflecting").WithIteration(iterations))
		next, err := t.reflect(ctx, state, trace)
		if err != nil {
			break
		}

		if next.Kind == ActionNeedInfo {
			reply := joinQuestions(next.Questions)
			t.finishTurn(ctx, "completed", start, nil)
			t.emit(NewTurnEvent(TurnEventDone).WithMessage(reply))
			return reply, nil
		}
		if next.Kind == ActionFinal || next.Kind != ActionToolCall {
			break
		}

		state = t.act(ctx, state, rctx, next, trace)
	}

	t.emit(NewTurnEvent(TurnEventStatus).WithMessage("writing"))
	reply, err := t.write(ctx, userMessage, trace)
	if err != nil {
		t.finishTurn(ctx, "failed", start, err)
		return "", fmt.Errorf("write turn: %w", err)
	}
	t.finishTurn(ctx, "completed", start, nil)
	t.emit(NewTurnEvent(TurnEventDone).WithMessage(reply))
	return reply, nil
}

func (t *TurnRunner) finishTurn(ctx context.Context, status string, start time.Time, err error) {
	t.recordTurn(status)
	if t.cfg.Recorder != nil {
		_ = t.cfg.Recorder.RecordRunEnd(ctx, time.Since(start), err)
	}
	if t.cfg.Logger != nil {
		if err != nil {
			t.cfg.Logger.Error(ctx, "agent turn failed", "error", err)
		} else {
			t.cfg.Logger.Info(ctx, "agent turn completed", "status", status)
		}
	}
}

func (t *TurnRunner) plan(ctx context.Context, state RunState) (Action, error) {
	ctx, span := t.startSpan(ctx, "agent.plan")
	defer span.End()
	return t.cfg.Planner.Next(ctx, state)
}

// reflect re-plans from the observations recorded so far, grounded on
// the original's reflect_instruction: the model sees the trace's facts, not
// the raw tool output, and the user's original message, not the running
// conversation history.
func (t *TurnRunner) reflect(ctx context.Context, state RunState, trace *TurnTrace) (Action, error) {
	ctx, span := t.startSpan(ctx, "agent.reflect")
	defer span.End()

	reflectState := state
	reflectState.Message = reflectPrompt(state.Message, trace.Facts())
	return t.cfg.Planner.Next(ctx, reflectState)
}

func reflectPrompt(userMessage string, facts []string) string {
	prompt := "User asked: " + userMessage + "\nObservations so far:\n" + joinFacts(facts)
	return prompt
}

// act executes action, validates the observation, records it to trace, and
// folds it back into state as LastObservation for the next plan/reflect
// call, mirroring the original's trace.append_tool_call plus passing the
// observation JSON back into the reflect prompt.
func (t *TurnRunner) act(ctx context.Context, state RunState, rctx RunContext, action Action, trace *TurnTrace) RunState {
	spanName := "agent.tool." + action.Tool
	ctx, span := t.startSpan(ctx, spanName)
	t.emit(NewTurnEvent(TurnEventToolStart).WithTool(action.Tool))
	toolStart := time.Now()
	if t.cfg.Recorder != nil {
		_ = t.cfg.Recorder.RecordToolStart(ctx, action.Tool, action.Args)
	}

	observation := t.cfg.Executor.Run(ctx, action, rctx)
	span.End()

	if t.cfg.Validator != nil {
		if result := t.cfg.Validator.Check(state, observation); !result.Passed {
			observation.Success = false
			observation.Error = result.Error
			observation.Output = nil
		}
	}

	summary := observationSummary(observation)
	entry := TraceEntry{
		Tool:    action.Tool,
		Args:    action.Args,
		Success: observation.Success,
		Summary: summary,
		Error:   observation.Error,
	}
	trace.Append(entry)

	var toolErr error
	if !observation.Success {
		toolErr = fmt.Errorf("%s", observation.Error)
	}
	if t.cfg.Recorder != nil {
		_ = t.cfg.Recorder.RecordToolEnd(ctx, action.Tool, time.Since(toolStart), observation.Output, toolErr)
	}
	t.emit(NewTurnEvent(TurnEventToolDone).WithTool(action.Tool).WithMessage(summary))
	t.emit(NewTurnEvent(TurnEventStepOutput).WithTool(action.Tool).WithMessage(summary))

	state.LastObservation = &observation
	state.PendingDecision = nil
	return state
}

func (t *TurnRunner) write(ctx context.Context, userMessage string, trace *TurnTrace) (string, error) {
	ctx, span := t.startSpan(ctx, "agent.writer")
	defer span.End()

	facts := trace.Facts()
	if t.cfg.Writer == nil || t.cfg.BuildWriterMessage == nil {
		reply := joinFacts(facts)
		t.emit(NewTurnEvent(TurnEventToken).WithMessage(reply))
		return reply, nil
	}
	messages := t.cfg.BuildWriterMessage(userMessage, userMessage, facts)
	reply, err := t.cfg.Writer.Chat(ctx, "", messages, 0.3, 0)
	if err == nil {
		t.emit(NewTurnEvent(TurnEventToken).WithMessage(reply))
	}
	return reply, err
}

func (t *TurnRunner) recordTurn(status string) {
	if t.cfg.Metrics != nil {
		t.cfg.Metrics.RecordAgentTurn(status)
	}
}

// startSpan starts name under t's tracer, or returns a no-op span when no
// tracer was configured (e.g. in tests).
func (t *TurnRunner) startSpan(ctx context.Context, name string) (context.Context, otrace.Span) {
	if t.cfg.Tracer == nil {
		return ctx, otrace.SpanFromContext(ctx)
	}
	return t.cfg.Tracer.Start(ctx, name)
}

func observationSummary(o Observation) string {
	if o.Message != "" {
		return o.Message
	}
	if o.Success {
		return fmt.Sprintf("%v", o.Output)
	}
	return o.Error
}

func joinFacts(facts []string) string {
	out := ""
	for _, f := range facts {
		if out != "" {
			out += "\n"
		}
		out += f
	}
	return out
}
