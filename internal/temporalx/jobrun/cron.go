package jobrun

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/types"

	"go.temporal.io/sdk/workflow"
)

const (
	DripScanCronWorkflowName = "drip_scan_cron"
	ActivityEnqueueDripScan  = "drip_scan_enqueue"
)

// DripScanCronWorkflow is started once with a cron schedule. Each run creates
// a drip_release_scan job row and drives it through the regular job workflow
// as a child, so scan runs show up in job_run like any other job.
func DripScanCronWorkflow(ctx workflow.Context) error {
	actCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
	})

	var jobID string
	if err := workflow.ExecuteActivity(actCtx, ActivityEnqueueDripScan).Get(ctx, &jobID); err != nil {
		return err
	}
	if jobID == "" {
		return fmt.Errorf("jobrun: empty job_id from drip scan enqueue")
	}

	childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
		WorkflowID: jobID,
	})
	return workflow.ExecuteChildWorkflow(childCtx, WorkflowName).Get(ctx, nil)
}

type CronActivities struct {
	Log  *logger.Logger
	DB   *gorm.DB
	Jobs repos.JobRunRepo
}

// EnqueueDripScan persists a queued drip_release_scan job and returns its id.
// The job is system-owned (nil owner), so no per-user realtime events fire for
// its lifecycle; ContentUnlocked events go to the affected learners directly.
func (a *CronActivities) EnqueueDripScan(ctx context.Context) (string, error) {
	if a == nil || a.DB == nil || a.Jobs == nil {
		return "", fmt.Errorf("jobrun: cron activity not configured")
	}
	now := time.Now().UTC()
	job := &types.JobRun{
		ID:        uuid.New(),
		JobType:   types.JobTypeDripReleaseScan,
		Status:    types.JobQueued,
		Stage:     "queued",
		Message:   "Queued",
		Payload:   datatypes.JSON([]byte(`{}`)),
		Result:    datatypes.JSON([]byte(`{}`)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := a.Jobs.Create(ctx, a.DB, []*types.JobRun{job}); err != nil {
		return "", fmt.Errorf("jobrun: create drip scan job: %w", err)
	}
	if a.Log != nil {
		a.Log.Info("Drip release scan queued", "job_id", job.ID)
	}
	return job.ID.String(), nil
}
