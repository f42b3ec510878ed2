package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// calendarParser accepts the conventional 5-field cron layout (minute hour
// day month weekday), matching ValidateCalendarExpr's shape check.
var calendarParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Scheduler drives the job engine's tick loop: once per tick it asks the
// Store for every job, decides which are due, executes them, and records
// the outcome. Schedules are stateless between ticks — "due" is always
// recomputed from the job's last recorded run (or CreatedAt if it has
// never fired), never from an in-memory NextRun field — so a restart loses
// no scheduling state.
//
// A tick that finds a job overdue by more than one interval fires it
// exactly once and rebases its "last run" to the firing instant, rather
// than looping to fire once per missed interval; an arbitrarily long
// backlog always collapses to a single catch-up run.
type Scheduler struct {
	store    Store
	executor Executor
	logger   *slog.Logger
	now      func() time.Time
	tick     time.Duration
	metrics  TickRecorder

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// TickRecorder receives one outcome per tick evaluation, letting the caller
// wire scheduler activity into its own metrics backend without this package
// importing it directly.
type TickRecorder interface {
	RecordJobTick(status string)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithMetrics records one outcome (fired, skipped, error) per job evaluated
// each tick.
func WithMetrics(m TickRecorder) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

func NewScheduler(store Store, executor Executor, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:    store,
		executor: executor,
		logger:   slog.Default().With("component", "jobs"),
		now:      time.Now,
		tick:     time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the tick loop in a background goroutine until ctx is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.RunOnce(runCtx)
			}
		}
	}()
}

// Stop cancels the tick loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.started = false
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// RunOnce evaluates every job once, firing those that are due, and returns
// how many fired. It is exported so tests and an explicit "tick now" caller
// action can drive the loop without waiting on the ticker.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	jobs, err := s.store.AllJobs(ctx)
	if err != nil {
		s.logger.Warn("jobs scheduler: list failed", "error", err)
		return 0
	}

	now := s.now()
	fired := 0
	for _, job := range jobs {
		lastRun, found, err := s.store.LastRun(ctx, job.ID)
		if err != nil {
			s.logger.Warn("jobs scheduler: last run lookup failed", "job_id", job.ID, "error", err)
			s.recordTick("error")
			continue
		}
		var lastRunPtr *JobRun
		if found {
			lastRunPtr = &lastRun
		}

		due, err := isDue(job, lastRunPtr, now)
		if err != nil {
			s.logger.Warn("jobs scheduler: schedule evaluation failed", "job_id", job.ID, "error", err)
			s.recordTick("error")
			continue
		}
		if !due {
			s.recordTick("skipped")
			continue
		}

		run := executeJob(ctx, s.executor, job, now)
		if err := s.store.AppendRun(ctx, run); err != nil {
			s.logger.Warn("jobs scheduler: append run failed", "job_id", job.ID, "error", err)
		}
		if run.Status == RunError {
			s.logger.Warn("jobs scheduler: job failed", "job_id", job.ID, "error", run.Error)
			s.recordTick("error")
		} else {
			s.recordTick("fired")
		}
		fired++
	}
	return fired
}

func (s *Scheduler) recordTick(status string) {
	if s.metrics != nil {
		s.metrics.RecordJobTick(status)
	}
}

// isDue reports whether job should fire at now, given its most recent run
// (nil if it has never fired).
func isDue(job Job, lastRun *JobRun, now time.Time) (bool, error) {
	switch job.Schedule.Kind {
	case ScheduleAt:
		if lastRun != nil {
			return false, nil // one-shot: already fired
		}
		return !now.Before(job.Schedule.At), nil

	case ScheduleEvery:
		baseline := job.CreatedAt
		if lastRun != nil {
			baseline = lastRun.Timestamp
		}
		next := baseline.Add(time.Duration(job.Schedule.EveryMS) * time.Millisecond)
		return !now.Before(next), nil

	case ScheduleCalendar:
		loc, err := time.LoadLocation(job.Schedule.Timezone)
		if err != nil {
			return false, fmt.Errorf("load timezone %q: %w", job.Schedule.Timezone, err)
		}
		schedule, err := calendarParser.Parse(job.Schedule.CalendarExpr)
		if err != nil {
			return false, fmt.Errorf("parse calendar expr %q: %w", job.Schedule.CalendarExpr, err)
		}
		baseline := job.CreatedAt
		if lastRun != nil {
			baseline = lastRun.Timestamp
		}
		next := schedule.Next(baseline.In(loc))
		return !now.Before(next), nil

	default:
		return false, fmt.Errorf("unknown schedule kind: %q", job.Schedule.Kind)
	}
}
