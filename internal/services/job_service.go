package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/requestdata"
	"github.com/ghprograms/programs-backend/internal/types"
)

type JobService interface {
	Enqueue(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID, jobType string, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, error)
	Dispatch(ctx context.Context, jobID uuid.UUID) error
	GetByIDForRequestUser(ctx context.Context, jobID uuid.UUID) (*types.JobRun, error)
	ResumeForRequestUser(ctx context.Context, jobID uuid.UUID) (*types.JobRun, error)
	GetLatestForEntityForRequestUser(ctx context.Context, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error)
	CancelForRequestUser(ctx context.Context, jobID uuid.UUID) (*types.JobRun, error)
	RestartForRequestUser(ctx context.Context, jobID uuid.UUID) (*types.JobRun, error)
}

type jobService struct {
	db     *gorm.DB
	log    *logger.Logger
	repo   repos.JobRunRepo
	notify JobNotifier

	temporal          temporalsdkclient.Client
	temporalTaskQueue string
}

func NewJobService(
	db *gorm.DB,
	log *logger.Logger,
	repo repos.JobRunRepo,
	notify JobNotifier,
	tc temporalsdkclient.Client,
	taskQueue string,
) JobService {
	return &jobService{
		db:                db,
		log:               log.With("service", "JobService"),
		repo:              repo,
		notify:            notify,
		temporal:          tc,
		temporalTaskQueue: strings.TrimSpace(taskQueue),
	}
}

func (s *jobService) Enqueue(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID, jobType string, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, error) {
	if ownerUserID == uuid.Nil {
		return nil, fmt.Errorf("Missing owner_user_id")
	}
	if jobType == "" {
		return nil, fmt.Errorf("Missing job_type")
	}
	if s.temporal == nil {
		return nil, fmt.Errorf("Temporal not configured (TEMPORAL_ADDRESS)")
	}
	if payload == nil {
		payload = map[string]any{}
	}

	transaction := tx
	if transaction == nil {
		transaction = s.db
	}
	payloadJSON, _ := json.Marshal(payload)
	now := time.Now().UTC()
	job := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		JobType:     jobType,
		EntityType:  entityType,
		EntityID:    entityID,
		Status:      types.JobQueued,
		Stage:       "queued",
		Progress:    0,
		Attempts:    0,
		Message:     "Queued",
		Payload:     datatypes.JSON(payloadJSON),
		Result:      datatypes.JSON([]byte(`{}`)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.repo.Create(ctx, transaction, []*types.JobRun{job}); err != nil {
		return nil, fmt.Errorf("Failed to create job: %w", err)
	}
	s.notify.JobCreated(ownerUserID, job)

	// Inside a real DB transaction the workflow must not start yet;
	// callers invoke Dispatch after commit. gorm.DB pointers are cloned
	// by WithContext/Session, so pointer inequality is not a reliable
	// transaction detector.
	if isDBTransaction(tx) {
		if s.log != nil {
			s.log.Debug("Job enqueued inside transaction; awaiting dispatch after commit", "job_id", job.ID, "job_type", job.JobType)
		}
		return job, nil
	}
	if err := s.Dispatch(ctx, job.ID); err != nil {
		return job, err
	}
	return job, nil
}

type txCommitter interface {
	Commit() error
	Rollback() error
}

func isDBTransaction(db *gorm.DB) bool {
	if db == nil || db.Statement == nil || db.Statement.ConnPool == nil {
		return false
	}
	_, ok := db.Statement.ConnPool.(txCommitter)
	return ok
}

func (s *jobService) Dispatch(ctx context.Context, jobID uuid.UUID) error {
	if s == nil || s.temporal == nil {
		return fmt.Errorf("Temporal not configured (TEMPORAL_ADDRESS)")
	}
	if jobID == uuid.Nil {
		return fmt.Errorf("Missing job id")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	err := s.startTemporalJobWorkflow(ctx, jobID, enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE)
	if err == nil {
		return nil
	}
	if _, ok := err.(*serviceerror.WorkflowExecutionAlreadyStarted); ok {
		return nil
	}

	// Best-effort: mark the job failed when dispatch never reached Temporal.
	now := time.Now().UTC()
	if s.repo != nil {
		_ = s.repo.UpdateFields(ctx, s.db, jobID, map[string]interface{}{
			"status":     types.JobFailed,
			"stage":      "dispatch",
			"message":    "",
			"error":      err.Error(),
			"updated_at": now,
		})
		if rows, rerr := s.repo.GetByIDs(ctx, s.db, []uuid.UUID{jobID}); rerr == nil && len(rows) > 0 && rows[0] != nil {
			s.notify.JobFailed(rows[0].OwnerUserID, rows[0], "dispatch", err.Error())
		}
	}
	return fmt.Errorf("Failed to start temporal workflow: %w", err)
}

// ResumeForRequestUser unparks a waiting_user job and signals its
// workflow so the next tick runs immediately instead of on the slow
// poll timer.
func (s *jobService) ResumeForRequestUser(ctx context.Context, jobID uuid.UUID) (*types.JobRun, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, fmt.Errorf("Not authenticated")
	}
	if jobID == uuid.Nil {
		return nil, fmt.Errorf("Missing job id")
	}

	var updated *types.JobRun
	err := s.db.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		rows, gErr := s.repo.GetByIDs(ctx, txx, []uuid.UUID{jobID})
		if gErr != nil {
			return gErr
		}
		if len(rows) == 0 || rows[0] == nil || rows[0].OwnerUserID != rd.UserID {
			return fmt.Errorf("Job not found")
		}
		job := rows[0]
		if job.Status != types.JobWaitingUser {
			return fmt.Errorf("Job not waiting for input")
		}

		now := time.Now().UTC()
		if uErr := s.repo.UpdateFields(ctx, txx, jobID, map[string]interface{}{
			"status":       types.JobQueued,
			"message":      "Resumed",
			"heartbeat_at": now,
			"updated_at":   now,
		}); uErr != nil {
			return uErr
		}
		job.Status = types.JobQueued
		job.Message = "Resumed"
		job.HeartbeatAt = &now
		job.UpdatedAt = now
		updated = job
		return nil
	})
	if err != nil {
		return nil, err
	}

	if sErr := s.signalResume(ctx, jobID); sErr != nil {
		s.log.Warn("Failed to signal workflow resume; poll timer will pick the job up", "job_id", jobID, "error", sErr)
	}
	return updated, nil
}

func (s *jobService) signalResume(ctx context.Context, jobID uuid.UUID) error {
	if s == nil || s.temporal == nil || jobID == uuid.Nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	// Keep literal to avoid import cycle with jobrun.
	err := s.temporal.SignalWorkflow(ctx, jobID.String(), "", "job_resume", nil)
	if err != nil {
		if _, ok := err.(*serviceerror.NotFound); ok {
			return nil
		}
		if temporal.IsCanceledError(err) || temporal.IsTimeoutError(err) {
			return nil
		}
	}
	return err
}

func (s *jobService) GetByIDForRequestUser(ctx context.Context, jobID uuid.UUID) (*types.JobRun, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, fmt.Errorf("Not authenticated")
	}
	if jobID == uuid.Nil {
		return nil, fmt.Errorf("Missing job id")
	}
	rows, err := s.repo.GetByIDs(ctx, nil, []uuid.UUID{jobID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || rows[0] == nil || rows[0].OwnerUserID != rd.UserID {
		return nil, fmt.Errorf("Job not found")
	}
	return rows[0], nil
}

func (s *jobService) GetLatestForEntityForRequestUser(ctx context.Context, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, fmt.Errorf("Not authenticated")
	}
	if entityType == "" || entityID == uuid.Nil || jobType == "" {
		return nil, fmt.Errorf("Missing entity/job info")
	}
	return s.repo.GetLatestByEntity(ctx, nil, rd.UserID, entityType, entityID, jobType)
}

func (s *jobService) CancelForRequestUser(ctx context.Context, jobID uuid.UUID) (*types.JobRun, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, fmt.Errorf("Not authenticated")
	}
	if jobID == uuid.Nil {
		return nil, fmt.Errorf("Missing job id")
	}

	var updated *types.JobRun
	shouldNotify := false

	err := s.db.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		rows, gErr := s.repo.GetByIDs(ctx, txx, []uuid.UUID{jobID})
		if gErr != nil {
			return gErr
		}
		if len(rows) == 0 || rows[0] == nil || rows[0].OwnerUserID != rd.UserID {
			return fmt.Errorf("Job not found")
		}
		job := rows[0]

		switch job.Status {
		case types.JobSucceeded, types.JobFailed, types.JobCanceled:
			updated = job
			return nil
		}

		now := time.Now().UTC()
		if uErr := s.repo.UpdateFields(ctx, txx, jobID, map[string]interface{}{
			"status":       types.JobCanceled,
			"message":      "Canceled",
			"heartbeat_at": now,
			"updated_at":   now,
		}); uErr != nil {
			return uErr
		}
		job.Status = types.JobCanceled
		job.Message = "Canceled"
		job.HeartbeatAt = &now
		job.UpdatedAt = now
		updated = job
		shouldNotify = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if shouldNotify && updated != nil {
		s.notify.JobFailed(rd.UserID, updated, updated.Stage, "Canceled")
	}

	// Best-effort: cancel the Temporal workflow backing this job run.
	if s.temporal != nil {
		_ = s.temporal.CancelWorkflow(ctx, jobID.String(), "")
	}
	return updated, nil
}

func (s *jobService) RestartForRequestUser(ctx context.Context, jobID uuid.UUID) (*types.JobRun, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, fmt.Errorf("Not authenticated")
	}
	if jobID == uuid.Nil {
		return nil, fmt.Errorf("Missing job id")
	}

	var updated *types.JobRun

	err := s.db.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		rows, gErr := s.repo.GetByIDs(ctx, txx, []uuid.UUID{jobID})
		if gErr != nil {
			return gErr
		}
		if len(rows) == 0 || rows[0] == nil || rows[0].OwnerUserID != rd.UserID {
			return fmt.Errorf("Job not found")
		}
		job := rows[0]

		if job.Status != types.JobCanceled && job.Status != types.JobFailed {
			return fmt.Errorf("Job not restartable")
		}

		now := time.Now().UTC()
		if uErr := s.repo.UpdateFields(ctx, txx, jobID, map[string]interface{}{
			"status":       types.JobQueued,
			"stage":        "queued",
			"progress":     0,
			"message":      "Restarting",
			"error":        "",
			"heartbeat_at": now,
			"updated_at":   now,
		}); uErr != nil {
			return uErr
		}
		job.Status = types.JobQueued
		job.Stage = "queued"
		job.Progress = 0
		job.Message = "Restarting"
		job.Error = ""
		job.HeartbeatAt = &now
		job.UpdatedAt = now
		updated = job
		return nil
	})
	if err != nil {
		return nil, err
	}

	if updated != nil && s.temporal != nil {
		if err := s.startTemporalJobWorkflow(ctx, jobID, enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE); err != nil {
			return nil, fmt.Errorf("Failed to restart temporal workflow: %w", err)
		}
		s.notify.JobCreated(rd.UserID, updated)
	}
	return updated, nil
}

func (s *jobService) startTemporalJobWorkflow(ctx context.Context, jobID uuid.UUID, reusePolicy enums.WorkflowIdReusePolicy) error {
	if s == nil || s.temporal == nil || jobID == uuid.Nil {
		return fmt.Errorf("Temporal not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	tq := s.temporalTaskQueue
	if tq == "" {
		tq = "ghprograms"
	}
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                    jobID.String(),
		TaskQueue:             tq,
		WorkflowIDReusePolicy: reusePolicy,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    30 * time.Second,
			BackoffCoefficient: 1.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
	}
	_, err := s.temporal.ExecuteWorkflow(ctx, opts, "job_run")
	return err
}
