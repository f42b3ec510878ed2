package reminders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/nexus-core/internal/dispatch"
	"github.com/haasonsaas/nexus-core/internal/jobs"
)

var setSchema = mustCompileSchema("reminder_set", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"message": map[string]any{
			"type":        "string",
			"description": "The reminder message to send when triggered",
		},
		"when": map[string]any{
			"type":        "string",
			"description": "When to send the reminder: 'in X minutes', 'in X hours', 'in X days', or an ISO8601 timestamp",
		},
		"title": map[string]any{
			"type":        "string",
			"description": "Optional short title for the reminder",
		},
	},
	"required": []string{"message", "when"},
})

func mustCompileSchema(name string, raw map[string]any) *jsonschema.Schema {
	schema, err := dispatch.CompileSchema(name, raw)
	if err != nil {
		panic(fmt.Sprintf("reminders: compile %s schema: %v", name, err))
	}
	return schema
}

// SetParams is reminder_set's argument shape; HouseholdID/UserID are
// injected ambiently by the dispatcher, never caller-supplied.
type SetParams struct {
	Message     string `json:"message"`
	When        string `json:"when"`
	Title       string `json:"title,omitempty"`
	HouseholdID string `json:"-"`
	UserID      string `json:"-"`
}

// SetTool creates a one-shot job that delivers message back to the caller
// at a natural-language-parsed time, grounded on the teacher's reminder
// set tool but backed by jobs.Service instead of a scheduled-task store.
type SetTool struct {
	svc *jobs.Service
}

func NewSetTool(svc *jobs.Service) *SetTool {
	return &SetTool{svc: svc}
}

func (t *SetTool) Name() string { return "reminder_set" }

func (t *SetTool) Description() string {
	return "Set a reminder to send a message at a specified time. Use relative times like 'in 5 minutes', 'in 2 hours', or absolute times."
}

func (t *SetTool) Schema() *jsonschema.Schema { return setSchema }

func (t *SetTool) NewParams() any { return &SetParams{} }

func (t *SetTool) Execute(ctx context.Context, callerID string, params any) (map[string]any, error) {
	p, ok := params.(*SetParams)
	if !ok {
		return nil, fmt.Errorf("reminder_set: unexpected params type %T", params)
	}
	owner := p.UserID
	if owner == "" {
		owner = callerID
	}

	if strings.TrimSpace(p.Message) == "" {
		return nil, fmt.Errorf("message is required")
	}
	if strings.TrimSpace(p.When) == "" {
		return nil, fmt.Errorf("when is required")
	}

	triggerAt, err := parseWhen(p.When)
	if err != nil {
		return nil, fmt.Errorf("invalid time: %w", err)
	}
	if triggerAt.Before(time.Now()) {
		return nil, fmt.Errorf("cannot set reminder in the past")
	}

	job, err := t.svc.Add(ctx, jobs.AddJobRequest{
		OwnerID: owner,
		Schedule: jobs.Schedule{
			Kind: jobs.ScheduleAt,
			At:   triggerAt,
		},
		Target: jobs.TargetIsolated,
		Payload: jobs.Payload{
			Kind:    jobs.PayloadAgentTurn,
			Message: p.Message,
		},
		WakeMode: jobs.WakeImmediate,
		Label:    formatReminderLabel(p.Title, p.Message),
	})
	if err != nil {
		return nil, fmt.Errorf("create reminder: %w", err)
	}

	duration := time.Until(triggerAt).Round(time.Second)
	response := fmt.Sprintf("Reminder set for %s (in %s)\nID: %s\nMessage: %s",
		triggerAt.Format("Mon Jan 2 3:04 PM"),
		formatDuration(duration),
		job.ID,
		p.Message,
	)

	return map[string]any{
		"job_id":  job.ID,
		"at":      triggerAt.Format(time.RFC3339),
		"message": response,
	}, nil
}
