package jobrun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/ghprograms/programs-backend/internal/types"
)

// Polling cadence and continue-as-new thresholds. A parked job polls on
// the slow timer so an unresumed waiting_user row still recovers.
const (
	tickInterval        = 2 * time.Second
	parkedTickInterval  = 2 * time.Minute
	maxTicksPerRun      = 2000
	maxHistoryLength    = 15000
	maxWaitUntilHorizon = 15 * time.Minute
)

// Workflow drives one job_run row to a terminal status. The workflow id
// is the job id; all state lives in Postgres and each Tick re-reads it,
// so continue-as-new loses nothing.
func Workflow(ctx workflow.Context) error {
	jobID := strings.TrimSpace(workflow.GetInfo(ctx).WorkflowExecution.ID)
	if jobID == "" {
		return fmt.Errorf("jobrun: missing job_id")
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 24 * time.Hour,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy:         nil, // job retries are handled at the workflow level
	})

	resumeCh := workflow.GetSignalChannel(ctx, SignalResume)

	for ticks := 1; ; ticks++ {
		var out TickResult
		if err := workflow.ExecuteActivity(ctx, ActivityTick, jobID).Get(ctx, &out); err != nil {
			return err
		}

		switch strings.ToLower(strings.TrimSpace(out.Status)) {
		case types.JobSucceeded, types.JobCanceled:
			return nil
		case types.JobFailed:
			return fmt.Errorf("job failed (stage=%s)", strings.TrimSpace(out.Stage))
		case types.JobWaitingUser:
			awaitResumeSignal(ctx, resumeCh, parkedTickInterval)
		default:
			if d := sleepFor(ctx, out.WaitUntil); d > 0 {
				if err := workflow.Sleep(ctx, d); err != nil {
					return err
				}
			}
		}

		if historyTooLong(ctx, ticks) {
			return workflow.NewContinueAsNewError(ctx, Workflow)
		}
	}
}

// awaitResumeSignal blocks until the resume signal arrives or the parked
// poll timer fires, whichever is first.
func awaitResumeSignal(ctx workflow.Context, ch workflow.ReceiveChannel, maxWait time.Duration) {
	timer := workflow.NewTimer(ctx, maxWait)
	sel := workflow.NewSelector(ctx)
	sel.AddReceive(ch, func(c workflow.ReceiveChannel, more bool) {
		var v any
		c.Receive(ctx, &v)
	})
	sel.AddFuture(timer, func(f workflow.Future) {})
	sel.Select(ctx)
}

// sleepFor honors a handler-requested wait_until, clamped to the horizon
// so a far-future timestamp cannot stall cancellation checks.
func sleepFor(ctx workflow.Context, waitUntil *time.Time) time.Duration {
	if waitUntil == nil || waitUntil.IsZero() {
		return tickInterval
	}
	now := workflow.Now(ctx)
	d := waitUntil.Sub(now)
	if d <= 0 {
		return tickInterval
	}
	if d > maxWaitUntilHorizon {
		return maxWaitUntilHorizon
	}
	return d
}

func historyTooLong(ctx workflow.Context, ticks int) bool {
	if ticks >= maxTicksPerRun {
		return true
	}
	info := workflow.GetInfo(ctx)
	return info != nil && info.GetCurrentHistoryLength() >= maxHistoryLength
}
