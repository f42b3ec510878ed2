// Package jobs adapts the job engine's CRUD surface into a single
// dispatcher-exposed "schedule" tool, grounded on
// internal/tools/cron/tool.go's action-keyed schema.
package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/nexus-core/internal/dispatch"
	"github.com/haasonsaas/nexus-core/internal/jobs"
)

var scheduleSchema = mustCompileSchema("schedule", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"action": map[string]any{
			"type":        "string",
			"description": "add, update, remove, list, run_now, or runs",
			"enum":        []string{"add", "update", "remove", "list", "run_now", "runs"},
		},
		"job_id": map[string]any{
			"type":        "string",
			"description": "required for update/remove/run_now/runs",
		},
		"schedule": map[string]any{
			"type":        "object",
			"description": "required for add/update: {kind: at|every|calendar, at, every_ms, expr, timezone}",
		},
		"target": map[string]any{
			"type":        "string",
			"description": "required for add/update: MAIN or ISOLATED",
		},
		"payload": map[string]any{
			"type":        "object",
			"description": "required for add/update: {kind: system_event|agent_turn, text, message, delivery}",
		},
		"wake_mode": map[string]any{"type": "string", "description": "immediate or next_tick"},
		"label":     map[string]any{"type": "string"},
		"limit":     map[string]any{"type": "integer", "description": "used by runs"},
	},
	"required": []string{"action"},
})

func mustCompileSchema(name string, raw map[string]any) *jsonschema.Schema {
	schema, err := dispatch.CompileSchema(name, raw)
	if err != nil {
		panic(fmt.Sprintf("jobs: compile %s schema: %v", name, err))
	}
	return schema
}

// wireSchedule is the JSON shape the schedule tool accepts for a job's
// schedule, translated into jobs.Schedule.
type wireSchedule struct {
	Kind     string `json:"kind"`
	At       string `json:"at"`
	EveryMS  int64  `json:"every_ms"`
	Expr     string `json:"expr"`
	Timezone string `json:"timezone"`
}

// wirePayload is the JSON shape the schedule tool accepts for a job's
// payload, translated into jobs.Payload.
type wirePayload struct {
	Kind     string         `json:"kind"`
	Text     string         `json:"text"`
	Message  string         `json:"message"`
	Delivery map[string]any `json:"delivery"`
}

// ScheduleParams is the args struct the dispatcher unmarshals into and
// injects ambient identity on; HouseholdID/UserID are never caller-supplied.
type ScheduleParams struct {
	Action      string        `json:"action"`
	JobID       string        `json:"job_id,omitempty"`
	Schedule    *wireSchedule `json:"schedule,omitempty"`
	Target      string        `json:"target,omitempty"`
	Payload     *wirePayload  `json:"payload,omitempty"`
	WakeMode    string        `json:"wake_mode,omitempty"`
	Label       string        `json:"label,omitempty"`
	Limit       int           `json:"limit,omitempty"`
	HouseholdID string        `json:"-"`
	UserID      string        `json:"-"`
}

// ScheduleTool is the dispatcher-exposed "schedule" tool wrapping
// jobs.Service's CRUD surface.
type ScheduleTool struct {
	svc  *jobs.Service
	exec jobs.Executor
}

func NewScheduleTool(svc *jobs.Service, exec jobs.Executor) *ScheduleTool {
	return &ScheduleTool{svc: svc, exec: exec}
}

func (t *ScheduleTool) Name() string { return "schedule" }

func (t *ScheduleTool) Description() string {
	return "Create, inspect, and manage time-based jobs (one-shot, interval, or calendar schedules)."
}

func (t *ScheduleTool) Schema() *jsonschema.Schema { return scheduleSchema }

func (t *ScheduleTool) NewParams() any { return &ScheduleParams{} }

func (t *ScheduleTool) Execute(ctx context.Context, callerID string, params any) (map[string]any, error) {
	p, ok := params.(*ScheduleParams)
	if !ok {
		return nil, fmt.Errorf("schedule: unexpected params type %T", params)
	}
	owner := p.UserID
	if owner == "" {
		owner = callerID
	}

	switch strings.ToLower(strings.TrimSpace(p.Action)) {
	case "add":
		return t.add(ctx, owner, p)
	case "update":
		return t.update(ctx, owner, p)
	case "remove":
		if p.JobID == "" {
			return nil, fmt.Errorf("job_id is required for remove")
		}
		if err := t.svc.Remove(ctx, owner, p.JobID); err != nil {
			return nil, err
		}
		return map[string]any{"status": "removed", "job_id": p.JobID}, nil
	case "list":
		jobList, err := t.svc.List(ctx, owner)
		if err != nil {
			return nil, err
		}
		return map[string]any{"jobs": renderJobs(jobList)}, nil
	case "run_now":
		if p.JobID == "" {
			return nil, fmt.Errorf("job_id is required for run_now")
		}
		run, err := t.svc.RunNow(ctx, owner, p.JobID, t.exec)
		if err != nil {
			return nil, err
		}
		return map[string]any{"run": renderRun(run)}, nil
	case "runs":
		if p.JobID == "" {
			return nil, fmt.Errorf("job_id is required for runs")
		}
		runs, err := t.svc.Runs(ctx, owner, p.JobID, p.Limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"runs": renderRuns(runs)}, nil
	default:
		return nil, fmt.Errorf("unsupported action %q", p.Action)
	}
}

func (t *ScheduleTool) add(ctx context.Context, owner string, p *ScheduleParams) (map[string]any, error) {
	schedule, err := parseWireSchedule(p.Schedule)
	if err != nil {
		return nil, err
	}
	payload := parseWirePayload(p.Payload)
	job, err := t.svc.Add(ctx, jobs.AddJobRequest{
		OwnerID:  owner,
		Schedule: schedule,
		Target:   jobs.Target(strings.ToUpper(strings.TrimSpace(p.Target))),
		Payload:  payload,
		WakeMode: jobs.WakeMode(p.WakeMode),
		Label:    p.Label,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"job": renderJob(job)}, nil
}

func (t *ScheduleTool) update(ctx context.Context, owner string, p *ScheduleParams) (map[string]any, error) {
	if p.JobID == "" {
		return nil, fmt.Errorf("job_id is required for update")
	}
	schedule, err := parseWireSchedule(p.Schedule)
	if err != nil {
		return nil, err
	}
	payload := parseWirePayload(p.Payload)
	job, err := t.svc.Update(ctx, jobs.UpdateJobRequest{
		OwnerID:  owner,
		JobID:    p.JobID,
		Schedule: schedule,
		Target:   jobs.Target(strings.ToUpper(strings.TrimSpace(p.Target))),
		Payload:  payload,
		WakeMode: jobs.WakeMode(p.WakeMode),
		Label:    p.Label,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"job": renderJob(job)}, nil
}

func parseWireSchedule(w *wireSchedule) (jobs.Schedule, error) {
	if w == nil {
		return jobs.Schedule{}, fmt.Errorf("schedule is required")
	}
	s := jobs.Schedule{
		Kind:         jobs.ScheduleKind(strings.ToLower(strings.TrimSpace(w.Kind))),
		EveryMS:      w.EveryMS,
		CalendarExpr: w.Expr,
		Timezone:     w.Timezone,
	}
	if w.At != "" {
		at, err := jobs.ParseAtInstant(w.At)
		if err != nil {
			return jobs.Schedule{}, err
		}
		s.At = at
	}
	return s, nil
}

func parseWirePayload(w *wirePayload) jobs.Payload {
	if w == nil {
		return jobs.Payload{}
	}
	return jobs.Payload{
		Kind:     jobs.PayloadKind(strings.ToLower(strings.TrimSpace(w.Kind))),
		Text:     w.Text,
		Message:  w.Message,
		Delivery: w.Delivery,
	}
}

func renderJobs(list []jobs.Job) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, j := range list {
		out = append(out, renderJob(j))
	}
	return out
}

func renderJob(j jobs.Job) map[string]any {
	out := map[string]any{
		"id":        j.ID,
		"target":    string(j.Target),
		"wake_mode": string(j.WakeMode),
		"label":     j.Label,
		"schedule": map[string]any{
			"kind":     string(j.Schedule.Kind),
			"every_ms": j.Schedule.EveryMS,
			"expr":     j.Schedule.CalendarExpr,
			"timezone": j.Schedule.Timezone,
		},
		"payload": map[string]any{
			"kind":    string(j.Payload.Kind),
			"text":    j.Payload.Text,
			"message": j.Payload.Message,
		},
		"created_at": j.CreatedAt.Format(time.RFC3339),
	}
	if !j.Schedule.At.IsZero() {
		out["schedule"].(map[string]any)["at"] = j.Schedule.At.Format(time.RFC3339)
	}
	return out
}

func renderRun(r jobs.JobRun) map[string]any {
	return map[string]any{
		"job_id":    r.JobID,
		"timestamp": r.Timestamp.Format(time.RFC3339),
		"status":    string(r.Status),
		"error":     r.Error,
	}
}

func renderRuns(runs []jobs.JobRun) []map[string]any {
	out := make([]map[string]any, 0, len(runs))
	for _, r := range runs {
		out = append(out, renderRun(r))
	}
	return out
}
