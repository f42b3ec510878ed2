package reminders

import (
	"context"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/nexus-core/internal/dispatch"
	"github.com/haasonsaas/nexus-core/internal/jobs"
)

var cancelSchema = mustCompileSchema("reminder_cancel", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"reminder_id": map[string]any{
			"type":        "string",
			"description": "The ID of the reminder to cancel",
		},
	},
	"required": []string{"reminder_id"},
})

// CancelParams is reminder_cancel's argument shape.
type CancelParams struct {
	ReminderID  string `json:"reminder_id"`
	HouseholdID string `json:"-"`
	UserID      string `json:"-"`
}

// CancelTool removes a reminder job, grounded on the teacher's reminder
// cancel tool but backed by jobs.Service.Remove.
type CancelTool struct {
	svc *jobs.Service
}

func NewCancelTool(svc *jobs.Service) *CancelTool {
	return &CancelTool{svc: svc}
}

func (t *CancelTool) Name() string { return "reminder_cancel" }

func (t *CancelTool) Description() string {
	return "Cancel a reminder by its ID"
}

func (t *CancelTool) Schema() *jsonschema.Schema { return cancelSchema }

func (t *CancelTool) NewParams() any { return &CancelParams{} }

func (t *CancelTool) Execute(ctx context.Context, callerID string, params any) (map[string]any, error) {
	p, ok := params.(*CancelParams)
	if !ok {
		return nil, fmt.Errorf("reminder_cancel: unexpected params type %T", params)
	}
	owner := p.UserID
	if owner == "" {
		owner = callerID
	}
	if p.ReminderID == "" {
		return nil, fmt.Errorf("reminder_id is required")
	}

	job, found, err := t.svc.Get(ctx, owner, p.ReminderID)
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("reminder not found")
	}
	if !isReminder(job.Label) {
		return nil, fmt.Errorf("not a reminder")
	}

	if err := t.svc.Remove(ctx, owner, p.ReminderID); err != nil {
		return nil, fmt.Errorf("cancel reminder: %w", err)
	}

	return map[string]any{
		"status":  "cancelled",
		"message": fmt.Sprintf("Reminder cancelled: %s", job.Label),
	}, nil
}

var _ dispatch.Tool = (*CancelTool)(nil)
