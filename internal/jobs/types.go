// Package jobs implements the time-based job engine: one-shot, interval,
// and calendar-expression schedules, validated, persisted locally, and
// driven by a process-wide tick loop. It shares the tool dispatcher's
// caller-identity model with the rest of the agent orchestration engine but
// has no dependency on it beyond that shape.
package jobs

import "time"

// ScheduleKind tags the variant carried by a Schedule.
type ScheduleKind string

const (
	ScheduleAt       ScheduleKind = "at"
	ScheduleEvery    ScheduleKind = "every"
	ScheduleCalendar ScheduleKind = "calendar"
)

// Schedule is a tagged union: exactly one of At/EveryMS/(CalendarExpr,
// Timezone) is meaningful, selected by Kind.
type Schedule struct {
	Kind ScheduleKind

	// At carries an explicit UTC offset; populated only for ScheduleAt.
	At time.Time

	// EveryMS must be >= 60_000; populated only for ScheduleEvery.
	EveryMS int64

	// CalendarExpr is a five-field cron expression evaluated in Timezone
	// (an IANA zone name); both populated only for ScheduleCalendar.
	CalendarExpr string
	Timezone     string
}

// Target selects which session a job's payload is delivered to.
type Target string

const (
	TargetMain     Target = "MAIN"
	TargetIsolated Target = "ISOLATED"
)

// PayloadKind tags the variant carried by a Payload; it is always
// determined by Target (MAIN <-> SystemEvent, ISOLATED <-> AgentTurn).
type PayloadKind string

const (
	PayloadSystemEvent PayloadKind = "system_event"
	PayloadAgentTurn   PayloadKind = "agent_turn"
)

// Payload is a tagged union over the two job payload shapes.
type Payload struct {
	Kind PayloadKind

	// Text is populated only for PayloadSystemEvent.
	Text string

	// Message/Delivery are populated only for PayloadAgentTurn; Delivery
	// is optional even then.
	Message  string
	Delivery map[string]any
}

// WakeMode hints whether a fired ISOLATED job should wake a connected
// client immediately or wait for the next proactive heartbeat tick. The
// job engine records it but does not interpret it; the excluded connection
// layer does.
type WakeMode string

const (
	WakeImmediate WakeMode = "immediate"
	WakeNextTick  WakeMode = "next_tick"
)

// Job is a scheduled work item, scoped to the caller that created it.
type Job struct {
	ID        string
	OwnerID   string
	Schedule  Schedule
	Target    Target
	Payload   Payload
	WakeMode  WakeMode
	Label     string
	CreatedAt time.Time
}

// RunStatus tags a JobRun's outcome.
type RunStatus string

const (
	RunOK    RunStatus = "ok"
	RunError RunStatus = "error"
)

// JobRun is one append-only execution record, ordered by Timestamp per
// JobID.
type JobRun struct {
	JobID     string
	Timestamp time.Time
	Status    RunStatus
	Error     string
}
