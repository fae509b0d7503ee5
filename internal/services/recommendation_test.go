package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/types"
)

type fakeRecommender struct {
	order []uuid.UUID
	err   error
}

func (f *fakeRecommender) RecommendNextLessons(ctx context.Context, userID, programID uuid.UUID, limit int) ([]uuid.UUID, error) {
	return f.order, f.err
}

func newRecommendationService(gdb *gorm.DB, recommender LessonRecommender) RecommendationService {
	log := logger.NewNop()
	return NewRecommendationService(
		gdb,
		log,
		repos.NewProgramRepo(gdb, log),
		repos.NewPhaseRepo(gdb, log),
		repos.NewLessonRepo(gdb, log),
		repos.NewEnrollmentRepo(gdb, log),
		repos.NewLessonProgressRepo(gdb, log),
		NewDripService(log),
		recommender,
	)
}

func completeLesson(t *testing.T, gdb *gorm.DB, userID, enrollmentID, lessonID uuid.UUID) {
	t.Helper()
	now := time.Now().UTC()
	row := &types.LessonProgress{
		ID:           uuid.New(),
		UserID:       userID,
		EnrollmentID: enrollmentID,
		LessonID:     lessonID,
		Status:       types.ProgressCompleted,
		CompletedAt:  &now,
	}
	if err := gdb.Create(row).Error; err != nil {
		t.Fatalf("seed progress: %v", err)
	}
}

func TestRecommendFallsBackToCatalogOrder(t *testing.T) {
	gdb := newTestDB(t)
	svc := newRecommendationService(gdb, nil)
	fx := seedCatalog(t, gdb, 4)
	ctx := ctxForUser(fx.User.ID)

	completeLesson(t, gdb, fx.User.ID, fx.Enrollment.ID, fx.Lessons[0].ID)

	lessons, err := svc.RecommendNextLessons(ctx, fx.Program.ID, 2)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(lessons) != 2 {
		t.Fatalf("recommendations = %d, want 2", len(lessons))
	}
	if lessons[0].ID != fx.Lessons[1].ID || lessons[1].ID != fx.Lessons[2].ID {
		t.Fatalf("order = %v, %v", lessons[0].Title, lessons[1].Title)
	}
}

func TestRecommendPrefersGraphOrder(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 3)
	rec := &fakeRecommender{order: []uuid.UUID{fx.Lessons[2].ID, fx.Lessons[0].ID}}
	svc := newRecommendationService(gdb, rec)
	ctx := ctxForUser(fx.User.ID)

	lessons, err := svc.RecommendNextLessons(ctx, fx.Program.ID, 3)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(lessons) != 2 {
		t.Fatalf("recommendations = %d, want 2", len(lessons))
	}
	if lessons[0].ID != fx.Lessons[2].ID || lessons[1].ID != fx.Lessons[0].ID {
		t.Fatalf("graph order not honored: %v", lessons)
	}
}

func TestRecommendGraphErrorFallsBack(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 2)
	rec := &fakeRecommender{err: context.DeadlineExceeded}
	svc := newRecommendationService(gdb, rec)

	lessons, err := svc.RecommendNextLessons(ctxForUser(fx.User.ID), fx.Program.ID, 5)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(lessons) != 2 || lessons[0].ID != fx.Lessons[0].ID {
		t.Fatalf("fallback order = %v", lessons)
	}
}

func TestRecommendRequiresEnrollment(t *testing.T) {
	gdb := newTestDB(t)
	svc := newRecommendationService(gdb, nil)
	fx := seedCatalog(t, gdb, 1)

	outsider := &types.User{ID: uuid.New(), Email: uuid.NewString() + "@example.com", Password: "x"}
	if err := gdb.Create(outsider).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := svc.RecommendNextLessons(ctxForUser(outsider.ID), fx.Program.ID, 3); err == nil {
		t.Fatal("expected enrollment gate")
	}
}

func TestRecommendNeverSurfacesLockedLessons(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 2)

	// A second phase locked behind a far-future date; its lesson must not
	// appear even when the graph recommends it.
	future := time.Now().UTC().Add(720 * time.Hour)
	lockedPhase := &types.Phase{
		ID:         uuid.New(),
		ProgramID:  fx.Program.ID,
		Position:   fx.Phase.Position + 1,
		Title:      "Locked",
		DripKind:   types.DripOnDate,
		DripConfig: []byte(`{"at":"` + future.Format(time.RFC3339) + `"}`),
	}
	if err := gdb.Create(lockedPhase).Error; err != nil {
		t.Fatalf("seed phase: %v", err)
	}
	lockedLesson := &types.Lesson{
		ID:        uuid.New(),
		PhaseID:   lockedPhase.ID,
		ProgramID: fx.Program.ID,
		Position:  1,
		Title:     "Too soon",
	}
	if err := gdb.Create(lockedLesson).Error; err != nil {
		t.Fatalf("seed lesson: %v", err)
	}

	rec := &fakeRecommender{order: []uuid.UUID{lockedLesson.ID, fx.Lessons[0].ID}}
	svc := newRecommendationService(gdb, rec)

	lessons, err := svc.RecommendNextLessons(ctxForUser(fx.User.ID), fx.Program.ID, 3)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	for _, l := range lessons {
		if l.ID == lockedLesson.ID {
			t.Fatal("locked lesson surfaced in recommendations")
		}
	}
	if len(lessons) == 0 || lessons[0].ID != fx.Lessons[0].ID {
		t.Fatalf("expected unlocked lesson first, got %v", lessons)
	}
}
