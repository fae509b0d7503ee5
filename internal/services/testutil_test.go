package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/db"
	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/requestdata"
	"github.com/ghprograms/programs-backend/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
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

func ctxForUser(userID uuid.UUID) context.Context {
	return requestdata.WithRequestData(context.Background(), &requestdata.RequestData{UserID: userID})
}

// seedCatalog creates one published program with a single phase and the
// given lessons, plus a user and an active enrollment.
type catalogFixture struct {
	User       *types.User
	Org        *types.Organization
	Program    *types.Program
	Phase      *types.Phase
	Lessons    []*types.Lesson
	Enrollment *types.Enrollment
}

func seedCatalog(t *testing.T, gdb *gorm.DB, lessonCount int) *catalogFixture {
	t.Helper()
	now := time.Now().UTC()

	user := &types.User{
		ID:        uuid.New(),
		Email:     uuid.NewString() + "@example.com",
		Password:  "x",
		FirstName: "Test",
		LastName:  "Learner",
	}
	org := &types.Organization{ID: uuid.New(), Name: "Test Org", Slug: uuid.NewString()}
	program := &types.Program{
		ID:             uuid.New(),
		OrganizationID: org.ID,
		Title:          "Test Program",
		Slug:           uuid.NewString(),
		Published:      true,
		PublishedAt:    &now,
	}
	phase := &types.Phase{
		ID:        uuid.New(),
		ProgramID: program.ID,
		Position:  0,
		Title:     "Phase One",
		DripKind:  types.DripImmediate,
	}
	for _, row := range []any{user, org, program, phase} {
		if err := gdb.Create(row).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	lessons := make([]*types.Lesson, 0, lessonCount)
	for i := 0; i < lessonCount; i++ {
		l := &types.Lesson{
			ID:        uuid.New(),
			PhaseID:   phase.ID,
			ProgramID: program.ID,
			Position:  i,
			Title:     "Lesson",
		}
		if err := gdb.Create(l).Error; err != nil {
			t.Fatalf("seed lesson: %v", err)
		}
		lessons = append(lessons, l)
	}

	enrollment := &types.Enrollment{
		ID:        uuid.New(),
		UserID:    user.ID,
		ProgramID: program.ID,
		Status:    types.EnrollmentActive,
		StartedAt: now.Add(-time.Hour),
	}
	if err := gdb.Create(enrollment).Error; err != nil {
		t.Fatalf("seed enrollment: %v", err)
	}

	return &catalogFixture{
		User:       user,
		Org:        org,
		Program:    program,
		Phase:      phase,
		Lessons:    lessons,
		Enrollment: enrollment,
	}
}
