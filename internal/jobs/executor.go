package jobs

import (
	"context"
	"time"
)

// Executor delivers a fired job's payload. The job engine does not know or
// care what MAIN/ISOLATED delivery actually means at the transport level;
// it only needs something that can attempt it and report success or
// failure.
type Executor interface {
	Execute(ctx context.Context, job Job) error
}

// executeJob runs exec against job, recovering from a panic the same way
// the tool dispatcher does, and returns the resulting JobRun ready to be
// appended to a Store.
func executeJob(ctx context.Context, exec Executor, job Job, at time.Time) (run JobRun) {
	run = JobRun{JobID: job.ID, Timestamp: at, Status: RunOK}
	defer func() {
		if r := recover(); r != nil {
			run.Status = RunError
			run.Error = formatPanic(r)
		}
	}()

	if err := exec.Execute(ctx, job); err != nil {
		run.Status = RunError
		run.Error = err.Error()
	}
	return run
}

func formatPanic(r any) string {
	if err, ok := r.(error); ok {
		return "panic: " + err.Error()
	}
	return "panic: unexpected job executor failure"
}
