package reminders

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/nexus-core/internal/jobs"
)

func newTestService(t *testing.T) *jobs.Service {
	t.Helper()
	return jobs.NewService(jobs.NewMemoryStore(), jobs.Config{DailyCapPerOwner: 50}, time.Now)
}

func TestParseWhen_RelativeTime(t *testing.T) {
	tests := []struct {
		input    string
		minDelta time.Duration
		maxDelta time.Duration
	}{
		{"in 5 minutes", 4 * time.Minute, 6 * time.Minute},
		{"in 1 hour", 59 * time.Minute, 61 * time.Minute},
		{"in 30 seconds", 25 * time.Second, 35 * time.Second},
		{"in 2 hours", 119 * time.Minute, 121 * time.Minute},
		{"in 1 day", 23 * time.Hour, 25 * time.Hour},
		{"in 10 mins", 9 * time.Minute, 11 * time.Minute},
		{"in 2 hrs", 119 * time.Minute, 121 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := parseWhen(tt.input)
			if err != nil {
				t.Fatalf("parseWhen(%q) failed: %v", tt.input, err)
			}

			delta := time.Until(result)
			if delta < tt.minDelta || delta > tt.maxDelta {
				t.Errorf("parseWhen(%q) = %v from now, want between %v and %v", tt.input, delta, tt.minDelta, tt.maxDelta)
			}
		})
	}
}

func TestParseWhen_InvalidInput(t *testing.T) {
	tests := []string{
		"",
		"now",
		"yesterday",
		"in",
		"in 5",
		"in minutes",
		"5 minutes",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := parseWhen(input)
			if err == nil {
				t.Errorf("parseWhen(%q) should have failed", input)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{30 * time.Second, "30 seconds"},
		{1 * time.Minute, "1 minute"},
		{5 * time.Minute, "5 minutes"},
		{1 * time.Hour, "1 hour"},
		{2 * time.Hour, "2.0 hours"},
		{24 * time.Hour, "1 day"},
		{48 * time.Hour, "2.0 days"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := formatDuration(tt.input)
			if result != tt.expected {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFormatReminderLabel(t *testing.T) {
	tests := []struct {
		title    string
		message  string
		expected string
	}{
		{"", "Short message", "reminder: Short message"},
		{"Custom Title", "Any message", "reminder: Custom Title"},
		{"", "This is a very long message that exceeds fifty characters and should be truncated", "reminder: This is a very long message that exceeds fifty ..."},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := formatReminderLabel(tt.title, tt.message)
			if result != tt.expected {
				t.Errorf("formatReminderLabel(%q, %q) = %q, want %q", tt.title, tt.message, result, tt.expected)
			}
		})
	}
}

func TestSetTool_Name(t *testing.T) {
	tool := NewSetTool(newTestService(t))
	if name := tool.Name(); name != "reminder_set" {
		t.Errorf("Name() = %q, want %q", name, "reminder_set")
	}
}

func TestSetToolCreatesIsolatedAgentTurnJob(t *testing.T) {
	svc := newTestService(t)
	tool := NewSetTool(svc)

	out, err := tool.Execute(context.Background(), "caller-1", &SetParams{
		Message: "take the trash out",
		When:    "in 10 minutes",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	jobID, _ := out["job_id"].(string)
	if jobID == "" {
		t.Fatalf("Execute() did not return a job_id: %+v", out)
	}

	job, found, err := svc.Get(context.Background(), "caller-1", jobID)
	if err != nil || !found {
		t.Fatalf("Get() = %v, %v, %v", job, found, err)
	}
	if job.Target != jobs.TargetIsolated {
		t.Fatalf("Target = %v, want ISOLATED", job.Target)
	}
	if job.Payload.Message != "take the trash out" {
		t.Fatalf("Payload.Message = %q", job.Payload.Message)
	}
	if !isReminder(job.Label) {
		t.Fatalf("Label = %q, want reminder prefix", job.Label)
	}
}

func TestSetToolRejectsPastTime(t *testing.T) {
	svc := newTestService(t)
	tool := NewSetTool(svc)

	_, err := tool.Execute(context.Background(), "caller-1", &SetParams{
		Message: "too late",
		When:    "2020-01-01T00:00:00Z",
	})
	if err == nil {
		t.Fatal("expected error for a reminder time in the past")
	}
}

func TestSetToolRejectsUnparsableWhen(t *testing.T) {
	svc := newTestService(t)
	tool := NewSetTool(svc)

	_, err := tool.Execute(context.Background(), "caller-1", &SetParams{
		Message: "whenever",
		When:    "sometime soonish",
	})
	if err == nil {
		t.Fatal("expected error for an unparsable when")
	}
}

func TestSetToolRejectsMissingFields(t *testing.T) {
	svc := newTestService(t)
	tool := NewSetTool(svc)

	if _, err := tool.Execute(context.Background(), "caller-1", &SetParams{When: "in 5 minutes"}); err == nil {
		t.Error("expected error for missing message")
	}
	if _, err := tool.Execute(context.Background(), "caller-1", &SetParams{Message: "test"}); err == nil {
		t.Error("expected error for missing when")
	}
}
