package reminders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/nexus-core/internal/jobs"
)

var listSchema = mustCompileSchema("reminder_list", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"limit": map[string]any{
			"type":        "integer",
			"description": "Maximum number of reminders to return (default 20)",
		},
	},
})

// ListParams is reminder_list's argument shape.
type ListParams struct {
	Limit       int    `json:"limit,omitempty"`
	HouseholdID string `json:"-"`
	UserID      string `json:"-"`
}

// ListTool lists the reminders SetTool created for the caller, grounded on
// the teacher's reminder list tool but backed by jobs.Service.List.
type ListTool struct {
	svc *jobs.Service
}

func NewListTool(svc *jobs.Service) *ListTool {
	return &ListTool{svc: svc}
}

func (t *ListTool) Name() string { return "reminder_list" }

func (t *ListTool) Description() string {
	return "List all pending reminders"
}

func (t *ListTool) Schema() *jsonschema.Schema { return listSchema }

func (t *ListTool) NewParams() any { return &ListParams{} }

func (t *ListTool) Execute(ctx context.Context, callerID string, params any) (map[string]any, error) {
	p, ok := params.(*ListParams)
	if !ok {
		return nil, fmt.Errorf("reminder_list: unexpected params type %T", params)
	}
	owner := p.UserID
	if owner == "" {
		owner = callerID
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	allJobs, err := t.svc.List(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}

	var reminders []jobs.Job
	for _, j := range allJobs {
		if isReminder(j.Label) {
			reminders = append(reminders, j)
			if len(reminders) >= limit {
				break
			}
		}
	}

	if len(reminders) == 0 {
		return map[string]any{"message": "No pending reminders found."}, nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d reminder(s):\n\n", len(reminders)))
	for i, r := range reminders {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, strings.TrimPrefix(r.Label, reminderLabelPrefix)))
		sb.WriteString(fmt.Sprintf("   ID: %s\n", r.ID))
		sb.WriteString(fmt.Sprintf("   Message: %s\n", r.Payload.Message))
		if !r.Schedule.At.IsZero() {
			duration := time.Until(r.Schedule.At)
			if duration > 0 {
				sb.WriteString(fmt.Sprintf("   Fires: %s (in %s)\n", r.Schedule.At.Format("Mon Jan 2 3:04 PM"), formatDuration(duration)))
			} else {
				sb.WriteString(fmt.Sprintf("   Fires: %s\n", r.Schedule.At.Format("Mon Jan 2 3:04 PM")))
			}
		}
		sb.WriteString("\n")
	}

	return map[string]any{
		"reminders": reminders,
		"message":   sb.String(),
	}, nil
}
