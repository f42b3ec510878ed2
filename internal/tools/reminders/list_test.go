package reminders

import (
	"context"
	"testing"

	"github.com/haasonsaas/nexus-core/internal/jobs"
)

func TestListToolOnlyReturnsReminders(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	setTool := NewSetTool(svc)
	if _, err := setTool.Execute(ctx, "caller-1", &SetParams{Message: "water plants", When: "in 5 minutes"}); err != nil {
		t.Fatalf("Execute(set) error = %v", err)
	}

	if _, err := svc.Add(ctx, jobs.AddJobRequest{
		OwnerID:  "caller-1",
		Schedule: jobs.Schedule{Kind: jobs.ScheduleEvery, EveryMS: 60_000},
		Target:   jobs.TargetMain,
		Payload:  jobs.Payload{Kind: jobs.PayloadSystemEvent, Text: "heartbeat"},
		Label:    "heartbeat job",
	}); err != nil {
		t.Fatalf("Add(non-reminder) error = %v", err)
	}

	listTool := NewListTool(svc)
	out, err := listTool.Execute(ctx, "caller-1", &ListParams{})
	if err != nil {
		t.Fatalf("Execute(list) error = %v", err)
	}

	reminders, ok := out["reminders"].([]jobs.Job)
	if !ok {
		t.Fatalf("reminders type = %T", out["reminders"])
	}
	if len(reminders) != 1 {
		t.Fatalf("expected 1 reminder, got %d", len(reminders))
	}
	if reminders[0].Payload.Message != "water plants" {
		t.Fatalf("Payload.Message = %q", reminders[0].Payload.Message)
	}
}

func TestListToolEmpty(t *testing.T) {
	svc := newTestService(t)
	listTool := NewListTool(svc)
	out, err := listTool.Execute(context.Background(), "caller-1", &ListParams{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if _, ok := out["reminders"]; ok {
		t.Fatalf("expected no reminders key, got %+v", out)
	}
}
