package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/nexus-core/internal/dispatch"
)

type echoParams struct {
	Text string `json:"text"`
}

type echoTool struct{}

func (echoTool) Name() string              { return "echo" }
func (echoTool) Description() string       { return "echoes text back" }
func (echoTool) Schema() *jsonschema.Schema { return nil }
func (echoTool) NewParams() any            { return &echoParams{} }
func (echoTool) Execute(_ context.Context, _ string, params any) (map[string]any, error) {
	p := params.(*echoParams)
	return map[string]any{"text": p.Text}, nil
}

func newTestExecutor() *ActionExecutor {
	reg := dispatch.NewRegistry()
	reg.Register(echoTool{})
	return NewActionExecutor(reg)
}

// scriptedChat replies with each entry in turns in order, one per Chat call.
type scriptedChat struct {
	turns []string
	calls int
}

func (c *scriptedChat) Chat(ctx context.Context, system string, messages []CompletionMessage, temperature float64, maxTokens int) (string, error) {
	if c.calls >= len(c.turns) {
		return "", errors.New("scriptedChat: out of turns")
	}
	reply := c.turns[c.calls]
	c.calls++
	return reply, nil
}

func passthroughBuilder(message string, previous []ChatTurn) []CompletionMessage {
	return []CompletionMessage{{Role: "user", Content: message}}
}

func TestTurnRunner_NeedInfoShortCircuits(t *testing.T) {
	chat := &scriptedChat{turns: []string{
		`{"type": "need_info", "questions": ["Which account?"]}`,
	}}
	planner := NewPlanner(chat, passthroughBuilder, nil)
	runner := NewTurnRunner(TurnConfig{Planner: planner, Executor: newTestExecutor(), Validator: NewValidator()})

	state := RunState{Message: "pay the bill", Mode: ModeTask, Task: map[string]any{}}
	reply, err := runner.Run(context.Background(), state, RunContext{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if reply != "Which account?" {
		t.Fatalf("Run() = %q, want %q", reply, "Which account?")
	}
	if chat.calls != 1 {
		t.Fatalf("expected exactly one model call, got %d", chat.calls)
	}
}

func TestTurnRunner_FinalShortCircuits(t *testing.T) {
	chat := &scriptedChat{turns: []string{
		`{"type": "final", "message": "All set."}`,
	}}
	planner := NewPlanner(chat, passthroughBuilder, nil)
	runner := NewTurnRunner(TurnConfig{Planner: planner, Executor: newTestExecutor()})

	state := RunState{Message: "hi", Mode: ModeTask, Task: map[string]any{}}
	reply, err := runner.Run(context.Background(), state, RunContext{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if reply != "All set." {
		t.Fatalf("Run() = %q, want %q", reply, "All set.")
	}
}

func TestTurnRunner_ToolCallThenWriterFallback(t *testing.T) {
	chat := &scriptedChat{turns: []string{
		`{"type": "tool_call", "tool": "echo", "args": {"text": "hello"}}`,
		`{"type": "final", "message": "done"}`,
	}}
	planner := NewPlanner(chat, passthroughBuilder, map[string]bool{"echo": true})
	runner := NewTurnRunner(TurnConfig{Planner: planner, Executor: newTestExecutor(), Validator: NewValidator()})

	state := RunState{Message: "echo hello", Mode: ModeTask, Task: map[string]any{}}
	reply, err := runner.Run(context.Background(), state, RunContext{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// No Writer/BuildWriterMessage configured, so the reply falls back to
	// the joined trace facts.
	if reply == "" {
		t.Fatalf("Run() returned empty reply")
	}
	if chat.calls != 2 {
		t.Fatalf("expected plan + one reflect call, got %d", chat.calls)
	}
}

func TestTurnRunner_ValidatorBlocksSecretOutput(t *testing.T) {
	chat := &scriptedChat{turns: []string{
		`{"type": "tool_call", "tool": "echo", "args": {"text": "api_key: sk-abcdefghijklmnopqrstuvwxyz"}}`,
		`{"type": "final", "message": "done"}`,
	}}
	planner := NewPlanner(chat, passthroughBuilder, map[string]bool{"echo": true})
	runner := NewTurnRunner(TurnConfig{Planner: planner, Executor: newTestExecutor(), Validator: NewValidator()})

	state := RunState{Message: "echo a secret", Mode: ModeTask, Task: map[string]any{}}
	reply, err := runner.Run(context.Background(), state, RunContext{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if reply == "" {
		t.Fatalf("Run() returned empty reply")
	}
}

func TestTurnRunner_WriterBuildsFromFacts(t *testing.T) {
	chat := &scriptedChat{turns: []string{
		`{"type": "tool_call", "tool": "echo", "args": {"text": "hello"}}`,
		`{"type": "final", "message": "done"}`,
	}}
	planner := NewPlanner(chat, passthroughBuilder, map[string]bool{"echo": true})

	writer := &scriptedChat{turns: []string{"here is your answer"}}
	var capturedFacts []string
	runner := NewTurnRunner(TurnConfig{
		Planner:  planner,
		Executor: newTestExecutor(),
		Writer:   writer,
		BuildWriterMessage: func(goal, userMessage string, facts []string) []CompletionMessage {
			capturedFacts = facts
			return []CompletionMessage{{Role: "user", Content: goal}}
		},
	})

	state := RunState{Message: "echo hello", Mode: ModeTask, Task: map[string]any{}}
	reply, err := runner.Run(context.Background(), state, RunContext{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if reply != "here is your answer" {
		t.Fatalf("Run() = %q, want %q", reply, "here is your answer")
	}
	if len(capturedFacts) != 1 {
		t.Fatalf("expected one recorded fact, got %d: %v", len(capturedFacts), capturedFacts)
	}
}
