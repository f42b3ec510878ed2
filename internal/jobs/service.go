package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Config holds the runtime-tunable limits the service enforces, grounded on
// service.py's module-level settings (CRON_ALLOW_EVERY_MINUTE,
// JOBS_PER_CALLER_PER_DAY).
type Config struct {
	AllowEveryMinute bool
	EveryMinuteAllow []string
	DailyCapPerOwner int
}

// Clock is the service's only source of "now", so tests can supply a fixed
// instant instead of depending on wall-clock time.
type Clock func() time.Time

// Service is the CRUD business-logic layer over a Store: every mutating
// operation here validates before touching the store, and every read is
// scoped to the caller's OwnerID so one caller can never see or touch
// another's jobs.
type Service struct {
	store Store
	cfg   Config
	now   Clock
}

func NewService(store Store, cfg Config, now Clock) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, cfg: cfg, now: now}
}

// AddJobRequest is the wire-shaped input to Add, mirroring the dispatcher's
// schedule tool arguments (spec §6).
type AddJobRequest struct {
	OwnerID  string
	Schedule Schedule
	Target   Target
	Payload  Payload
	WakeMode WakeMode
	Label    string
}

// Add validates and persists a new job, enforcing the target/payload
// pairing, the schedule's own rules, and the caller's daily creation cap.
func (s *Service) Add(ctx context.Context, req AddJobRequest) (Job, error) {
	if req.OwnerID == "" {
		return Job{}, invalid("ownerId is required")
	}
	if err := ValidateTargetPayload(req.Target, req.Payload); err != nil {
		return Job{}, err
	}
	if err := ValidateSchedule(req.Schedule, s.cfg.AllowEveryMinute, s.cfg.EveryMinuteAllow); err != nil {
		return Job{}, err
	}

	since := s.now().Add(-24 * time.Hour)
	count, err := s.store.CountCreatedSince(ctx, req.OwnerID, since)
	if err != nil {
		return Job{}, fmt.Errorf("check daily cap: %w", err)
	}
	if err := ValidateDailyCap(count, s.cfg.DailyCapPerOwner); err != nil {
		return Job{}, err
	}

	wakeMode := req.WakeMode
	if wakeMode == "" {
		wakeMode = WakeNextTick
	}

	job := Job{
		ID:        uuid.NewString(),
		OwnerID:   req.OwnerID,
		Schedule:  req.Schedule,
		Target:    req.Target,
		Payload:   req.Payload,
		WakeMode:  wakeMode,
		Label:     req.Label,
		CreatedAt: s.now(),
	}
	if err := s.store.AddJob(ctx, job); err != nil {
		return Job{}, fmt.Errorf("add job: %w", err)
	}
	return job, nil
}

// UpdateJobRequest carries a full replacement of the mutable fields of a
// job; the schedule kind may itself change (e.g. "every" to "calendar").
type UpdateJobRequest struct {
	OwnerID  string
	JobID    string
	Schedule Schedule
	Target   Target
	Payload  Payload
	WakeMode WakeMode
	Label    string
}

// Update replaces an existing job's schedule/target/payload, re-validating
// exactly as Add does but without re-checking the daily cap (the job
// already exists; it does not count against creation volume twice).
func (s *Service) Update(ctx context.Context, req UpdateJobRequest) (Job, error) {
	existing, found, err := s.store.GetJob(ctx, req.OwnerID, req.JobID)
	if err != nil {
		return Job{}, fmt.Errorf("get job: %w", err)
	}
	if !found {
		return Job{}, ErrJobNotFound
	}
	if err := ValidateTargetPayload(req.Target, req.Payload); err != nil {
		return Job{}, err
	}
	if err := ValidateSchedule(req.Schedule, s.cfg.AllowEveryMinute, s.cfg.EveryMinuteAllow); err != nil {
		return Job{}, err
	}

	wakeMode := req.WakeMode
	if wakeMode == "" {
		wakeMode = existing.WakeMode
	}

	updated := existing
	updated.Schedule = req.Schedule
	updated.Target = req.Target
	updated.Payload = req.Payload
	updated.WakeMode = wakeMode
	updated.Label = req.Label

	if err := s.store.UpdateJob(ctx, updated); err != nil {
		return Job{}, fmt.Errorf("update job: %w", err)
	}
	return updated, nil
}

// Remove deletes a job owned by ownerID. It is idempotent from the caller's
// perspective: removing an already-removed job reports ErrJobNotFound,
// which callers should treat as a benign no-op rather than a failure.
func (s *Service) Remove(ctx context.Context, ownerID, jobID string) error {
	return s.store.RemoveJob(ctx, ownerID, jobID)
}

// Get fetches one job scoped to ownerID.
func (s *Service) Get(ctx context.Context, ownerID, jobID string) (Job, bool, error) {
	return s.store.GetJob(ctx, ownerID, jobID)
}

// List returns every job owned by ownerID.
func (s *Service) List(ctx context.Context, ownerID string) ([]Job, error) {
	return s.store.ListJobs(ctx, ownerID)
}

// Runs returns up to limit of the most recent run records for jobID,
// scoped by first confirming ownerID owns it.
func (s *Service) Runs(ctx context.Context, ownerID, jobID string, limit int) ([]JobRun, error) {
	if _, found, err := s.store.GetJob(ctx, ownerID, jobID); err != nil {
		return nil, err
	} else if !found {
		return nil, ErrJobNotFound
	}
	return s.store.ListRuns(ctx, jobID, limit)
}

// RunNow executes a job immediately, out of band from the tick loop, and
// records the outcome exactly as a scheduled firing would. Used by an
// explicit "run this job now" caller action, not by the scheduler itself.
func (s *Service) RunNow(ctx context.Context, ownerID, jobID string, exec Executor) (JobRun, error) {
	if exec == nil {
		return JobRun{}, ErrNoExecutor
	}
	job, found, err := s.store.GetJob(ctx, ownerID, jobID)
	if err != nil {
		return JobRun{}, fmt.Errorf("get job: %w", err)
	}
	if !found {
		return JobRun{}, ErrJobNotFound
	}

	run := executeJob(ctx, exec, job, s.now())
	if err := s.store.AppendRun(ctx, run); err != nil {
		return JobRun{}, fmt.Errorf("append run: %w", err)
	}
	return run, nil
}
