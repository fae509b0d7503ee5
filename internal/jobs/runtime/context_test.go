package runtime

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/db"
	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/types"
)

func newRuntimeDB(t *testing.T) *gorm.DB {
	t.Helper()
	svc, err := db.NewSQLiteService(filepath.Join(t.TempDir(), "test.db"), logger.NewNop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := svc.AutoMigrateAll(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return svc.DB()
}

func seedJob(t *testing.T, gdb *gorm.DB, status string) *types.JobRun {
	t.Helper()
	job := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: uuid.New(),
		JobType:     types.JobTypeResourceIngest,
		Status:      status,
		Stage:       "queued",
	}
	if err := gdb.Create(job).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return job
}

func TestWaitForUserParksJob(t *testing.T) {
	gdb := newRuntimeDB(t)
	repo := repos.NewJobRunRepo(gdb, logger.NewNop())
	job := seedJob(t, gdb, types.JobRunning)

	c := NewContext(context.Background(), gdb, job, repo, nil)
	c.WaitForUser("awaiting_upload", "Waiting for the file upload to finish")

	var row types.JobRun
	if err := gdb.First(&row, "id = ?", job.ID).Error; err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if row.Status != types.JobWaitingUser {
		t.Fatalf("status = %q, want %q", row.Status, types.JobWaitingUser)
	}
	if row.Stage != "awaiting_upload" {
		t.Fatalf("stage = %q, want awaiting_upload", row.Stage)
	}
	if row.HeartbeatAt == nil {
		t.Fatalf("expected heartbeat to be stamped")
	}
	if c.Job.Status != types.JobWaitingUser {
		t.Fatalf("in-memory status = %q, want %q", c.Job.Status, types.JobWaitingUser)
	}
}

func TestWaitForUserDoesNotOverwriteCanceled(t *testing.T) {
	gdb := newRuntimeDB(t)
	repo := repos.NewJobRunRepo(gdb, logger.NewNop())
	job := seedJob(t, gdb, types.JobCanceled)

	c := NewContext(context.Background(), gdb, job, repo, nil)
	c.WaitForUser("awaiting_upload", "Waiting for the file upload to finish")

	var row types.JobRun
	if err := gdb.First(&row, "id = ?", job.ID).Error; err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if row.Status != types.JobCanceled {
		t.Fatalf("status = %q, want %q", row.Status, types.JobCanceled)
	}
}
