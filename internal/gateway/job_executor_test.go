package gateway

import (
	"context"
	"log/slog"
	"testing"

	"github.com/haasonsaas/nexus-core/internal/agent"
	"github.com/haasonsaas/nexus-core/internal/dispatch"
	"github.com/haasonsaas/nexus-core/internal/jobs"
)

type scriptedChat struct {
	reply string
}

func (c *scriptedChat) Chat(ctx context.Context, system string, messages []agent.CompletionMessage, temperature float64, maxTokens int) (string, error) {
	return c.reply, nil
}

func passthroughBuilder(message string, previous []agent.ChatTurn) []agent.CompletionMessage {
	return []agent.CompletionMessage{{Role: "user", Content: message}}
}

func newTestTurnRunner(reply string) *agent.TurnRunner {
	chat := &scriptedChat{reply: reply}
	planner := agent.NewPlanner(chat, passthroughBuilder, nil)
	executor := agent.NewActionExecutor(dispatch.NewRegistry())
	return agent.NewTurnRunner(agent.TurnConfig{
		Planner:   planner,
		Executor:  executor,
		Validator: agent.NewValidator(),
		Writer:    chat,
	})
}

func TestAgentJobExecutor_MainTargetLogsOnly(t *testing.T) {
	exec := newAgentJobExecutor(newTestTurnRunner(`{"type":"final","message":"ok"}`), slog.Default())

	job := jobs.Job{
		ID: "job-1", OwnerID: "owner-a",
		Target:  jobs.TargetMain,
		Payload: jobs.Payload{Kind: jobs.PayloadSystemEvent, Text: "wake up"},
	}
	if err := exec.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
}

func TestAgentJobExecutor_IsolatedTargetRunsAgentTurn(t *testing.T) {
	exec := newAgentJobExecutor(newTestTurnRunner(`{"type":"final","message":"reminder sent"}`), slog.Default())

	job := jobs.Job{
		ID: "job-2", OwnerID: "owner-a",
		Target:  jobs.TargetIsolated,
		Payload: jobs.Payload{Kind: jobs.PayloadAgentTurn, Message: "remind me to call mom"},
	}
	if err := exec.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
}

func TestAgentJobExecutor_IsolatedTargetRejectsWrongPayload(t *testing.T) {
	exec := newAgentJobExecutor(newTestTurnRunner(`{"type":"final","message":"n/a"}`), slog.Default())

	job := jobs.Job{
		ID: "job-3", OwnerID: "owner-a",
		Target:  jobs.TargetIsolated,
		Payload: jobs.Payload{Kind: jobs.PayloadSystemEvent, Text: "mismatched"},
	}
	if err := exec.Execute(context.Background(), job); err == nil {
		t.Fatalf("expected error for isolated job with system_event payload")
	}
}
