package jobs

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// legacyJob mirrors the on-disk shape of a single entry in the pre-SQLite
// jobs.json layout.
type legacyJob struct {
	ID        string         `json:"id"`
	OwnerID   string         `json:"ownerId"`
	Schedule  legacySchedule `json:"schedule"`
	Target    string         `json:"target"`
	Payload   legacyPayload  `json:"payload"`
	WakeMode  string         `json:"wakeMode"`
	Label     string         `json:"label"`
	CreatedAt string         `json:"createdAt"`
}

type legacySchedule struct {
	Kind     string `json:"kind"`
	At       string `json:"at"`
	EveryMS  int64  `json:"everyMs"`
	Expr     string `json:"expr"`
	Timezone string `json:"timezone"`
}

type legacyPayload struct {
	Kind     string         `json:"kind"`
	Text     string         `json:"text"`
	Message  string         `json:"message"`
	Delivery map[string]any `json:"delivery"`
}

type legacyRun struct {
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
	Error     string `json:"error"`
}

// MigrateLegacyLayout performs the one-time migration from the pre-SQLite
// file layout (a jobs.json array plus a runs/<jobId>.jsonl file per job)
// into store, gated by store's migrated flag so it runs at most once
// regardless of how many times the process starts.
//
// legacyDir not existing is not an error: a fresh install has nothing to
// migrate, and is marked migrated so future starts skip the directory scan.
func MigrateLegacyLayout(ctx context.Context, store *SQLiteStore, legacyDir string) error {
	already, err := store.AlreadyMigrated(ctx)
	if err != nil {
		return fmt.Errorf("check migration flag: %w", err)
	}
	if already {
		return nil
	}

	jobs, err := loadLegacyJobs(filepath.Join(legacyDir, "jobs.json"))
	if err != nil {
		return fmt.Errorf("load legacy jobs: %w", err)
	}

	for _, job := range jobs {
		if err := store.AddJob(ctx, job); err != nil {
			return fmt.Errorf("migrate job %s: %w", job.ID, err)
		}
		runs, err := loadLegacyRuns(filepath.Join(legacyDir, "runs", job.ID+".jsonl"), job.ID)
		if err != nil {
			return fmt.Errorf("migrate runs for job %s: %w", job.ID, err)
		}
		for _, run := range runs {
			if err := store.AppendRun(ctx, run); err != nil {
				return fmt.Errorf("migrate run for job %s: %w", job.ID, err)
			}
		}
	}

	return store.MarkMigrated(ctx)
}

func loadLegacyJobs(path string) ([]Job, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var raw []legacyJob
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse jobs.json: %w", err)
	}

	out := make([]Job, 0, len(raw))
	for _, lj := range raw {
		job := Job{
			ID:      lj.ID,
			OwnerID: lj.OwnerID,
			Schedule: Schedule{
				Kind:         ScheduleKind(lj.Schedule.Kind),
				EveryMS:      lj.Schedule.EveryMS,
				CalendarExpr: lj.Schedule.Expr,
				Timezone:     lj.Schedule.Timezone,
			},
			Target: Target(lj.Target),
			Payload: Payload{
				Kind:     PayloadKind(lj.Payload.Kind),
				Text:     lj.Payload.Text,
				Message:  lj.Payload.Message,
				Delivery: lj.Payload.Delivery,
			},
			WakeMode: WakeMode(lj.WakeMode),
			Label:    lj.Label,
		}
		if lj.Schedule.At != "" {
			if at, err := time.Parse(time.RFC3339, lj.Schedule.At); err == nil {
				job.Schedule.At = at
			}
		}
		if lj.CreatedAt != "" {
			if created, err := time.Parse(time.RFC3339, lj.CreatedAt); err == nil {
				job.CreatedAt = created
			}
		}
		out = append(out, job)
	}
	return out, nil
}

func loadLegacyRuns(path, jobID string) ([]JobRun, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []JobRun
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var lr legacyRun
		if err := json.Unmarshal(line, &lr); err != nil {
			return nil, fmt.Errorf("parse run line: %w", err)
		}
		run := JobRun{JobID: jobID, Status: RunStatus(lr.Status), Error: lr.Error}
		if ts, err := time.Parse(time.RFC3339, lr.Timestamp); err == nil {
			run.Timestamp = ts
		}
		out = append(out, run)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
