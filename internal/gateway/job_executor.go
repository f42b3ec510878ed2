package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/haasonsaas/nexus-core/internal/agent"
	"github.com/haasonsaas/nexus-core/internal/jobs"
)

// agentJobExecutor implements jobs.Executor. ISOLATED/agent_turn jobs run a
// full agent turn through the owning caller's turn runner; MAIN/system_event
// jobs have no connection layer in this repo to deliver to, so they are
// logged and reported as successful attempts, matching the job package's
// documented delivery-is-out-of-scope contract.
type agentJobExecutor struct {
	runner *agent.TurnRunner
	logger *slog.Logger
}

func newAgentJobExecutor(runner *agent.TurnRunner, logger *slog.Logger) *agentJobExecutor {
	return &agentJobExecutor{runner: runner, logger: logger}
}

func (e *agentJobExecutor) Execute(ctx context.Context, job jobs.Job) error {
	switch job.Target {
	case jobs.TargetMain:
		e.logger.Info("system event job fired", "job_id", job.ID, "owner_id", job.OwnerID, "text", job.Payload.Text)
		return nil

	case jobs.TargetIsolated:
		if job.Payload.Kind != jobs.PayloadAgentTurn {
			return fmt.Errorf("gateway: isolated job %s has non agent_turn payload", job.ID)
		}
		state := agent.RunState{
			Message: job.Payload.Message,
			Mode:    agent.ModeTask,
			Task:    map[string]any{},
		}
		rctx := agent.RunContext{UserID: job.OwnerID}
		reply, err := e.runner.Run(ctx, state, rctx)
		if err != nil {
			return err
		}
		e.logger.Info("agent turn job completed", "job_id", job.ID, "owner_id", job.OwnerID, "reply_len", len(reply))
		return nil

	default:
		return fmt.Errorf("gateway: unknown job target %q", job.Target)
	}
}
