package services

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/types"
)

func newJobService(gdb *gorm.DB, emitter SSEEmitter) JobService {
	log := logger.NewNop()
	return NewJobService(gdb, log, repos.NewJobRunRepo(gdb, log), NewJobNotifier(emitter), nil, "")
}

func seedJobRun(t *testing.T, gdb *gorm.DB, ownerID uuid.UUID, status string) *types.JobRun {
	t.Helper()
	job := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: ownerID,
		JobType:     types.JobTypeResourceIngest,
		Status:      status,
		Stage:       "queued",
	}
	if err := gdb.Create(job).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return job
}

func TestResumeWaitingJob(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 1)
	svc := newJobService(gdb, &recordingEmitter{})
	job := seedJobRun(t, gdb, fx.User.ID, types.JobWaitingUser)

	out, err := svc.ResumeForRequestUser(ctxForUser(fx.User.ID), job.ID)
	if err != nil {
		t.Fatalf("ResumeForRequestUser: %v", err)
	}
	if out.Status != types.JobQueued {
		t.Fatalf("status = %q, want %q", out.Status, types.JobQueued)
	}
	if out.Message != "Resumed" {
		t.Fatalf("message = %q, want Resumed", out.Message)
	}

	var row types.JobRun
	if err := gdb.First(&row, "id = ?", job.ID).Error; err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if row.Status != types.JobQueued {
		t.Fatalf("persisted status = %q, want %q", row.Status, types.JobQueued)
	}
}

func TestResumeRejectsJobNotWaiting(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 1)
	svc := newJobService(gdb, &recordingEmitter{})
	job := seedJobRun(t, gdb, fx.User.ID, types.JobRunning)

	if _, err := svc.ResumeForRequestUser(ctxForUser(fx.User.ID), job.ID); err == nil {
		t.Fatalf("expected error resuming a running job")
	} else if !strings.Contains(err.Error(), "not waiting") {
		t.Fatalf("unexpected error: %v", err)
	}

	var row types.JobRun
	if err := gdb.First(&row, "id = ?", job.ID).Error; err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if row.Status != types.JobRunning {
		t.Fatalf("status changed to %q, want %q", row.Status, types.JobRunning)
	}
}

func TestResumeHidesOtherUsersJob(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 1)
	svc := newJobService(gdb, &recordingEmitter{})
	job := seedJobRun(t, gdb, uuid.New(), types.JobWaitingUser)

	if _, err := svc.ResumeForRequestUser(ctxForUser(fx.User.ID), job.ID); err == nil {
		t.Fatalf("expected error resuming another user's job")
	} else if !strings.Contains(err.Error(), "not found") {
		t.Fatalf("unexpected error: %v", err)
	}
}
