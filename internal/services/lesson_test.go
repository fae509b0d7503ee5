package services

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/types"
)

func newLessonService(gdb *gorm.DB) LessonService {
	log := logger.NewNop()
	return NewLessonService(
		gdb,
		log,
		repos.NewProgramRepo(gdb, log),
		repos.NewPhaseRepo(gdb, log),
		repos.NewLessonRepo(gdb, log),
		repos.NewTacticRepo(gdb, log),
		repos.NewOrgMembershipRepo(gdb, log),
	)
}

// authorFixture is a coach with an org, a draft program, and one phase.
type authorFixture struct {
	Coach   *types.User
	Org     *types.Organization
	Program *types.Program
	Phase   *types.Phase
}

func seedAuthor(t *testing.T, gdb *gorm.DB) *authorFixture {
	t.Helper()
	org := &types.Organization{ID: uuid.New(), Name: "Org", Slug: uuid.NewString()}
	if err := gdb.Create(org).Error; err != nil {
		t.Fatalf("seed org: %v", err)
	}
	coach := seedOrgUser(t, gdb, org.ID, types.OrgRoleCoach)
	program := &types.Program{ID: uuid.New(), OrganizationID: org.ID, Title: "P", Slug: uuid.NewString()}
	phase := &types.Phase{ID: uuid.New(), ProgramID: program.ID, Position: 1, Title: "Phase", DripKind: types.DripImmediate}
	for _, row := range []any{program, phase} {
		if err := gdb.Create(row).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return &authorFixture{Coach: coach, Org: org, Program: program, Phase: phase}
}

func TestCreateLessonAppendsPosition(t *testing.T) {
	gdb := newTestDB(t)
	svc := newLessonService(gdb)
	fx := seedAuthor(t, gdb)
	ctx := ctxForUser(fx.Coach.ID)

	first, err := svc.CreateLesson(ctx, CreateLessonInput{PhaseID: fx.Phase.ID, Title: "One"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := svc.CreateLesson(ctx, CreateLessonInput{PhaseID: fx.Phase.ID, Title: "Two"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Position+1 != second.Position {
		t.Fatalf("positions = %d, %d", first.Position, second.Position)
	}
	if second.ProgramID != fx.Program.ID {
		t.Fatalf("lesson program = %v", second.ProgramID)
	}
}

func TestReorderLessonsRejectsPartialSet(t *testing.T) {
	gdb := newTestDB(t)
	svc := newLessonService(gdb)
	fx := seedAuthor(t, gdb)
	ctx := ctxForUser(fx.Coach.ID)

	a, _ := svc.CreateLesson(ctx, CreateLessonInput{PhaseID: fx.Phase.ID, Title: "A"})
	b, _ := svc.CreateLesson(ctx, CreateLessonInput{PhaseID: fx.Phase.ID, Title: "B"})
	if a == nil || b == nil {
		t.Fatal("fixture lessons missing")
	}

	if _, err := svc.ReorderLessons(ctx, fx.Phase.ID, []uuid.UUID{a.ID}); err == nil {
		t.Fatal("expected error for partial reorder set")
	}

	reordered, err := svc.ReorderLessons(ctx, fx.Phase.ID, []uuid.UUID{b.ID, a.ID})
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if reordered[0].ID != b.ID || reordered[1].ID != a.ID {
		t.Fatalf("order = %v", reordered)
	}
}

func TestDeleteLessonCompactsPositions(t *testing.T) {
	gdb := newTestDB(t)
	svc := newLessonService(gdb)
	fx := seedAuthor(t, gdb)
	ctx := ctxForUser(fx.Coach.ID)

	a, _ := svc.CreateLesson(ctx, CreateLessonInput{PhaseID: fx.Phase.ID, Title: "A"})
	b, _ := svc.CreateLesson(ctx, CreateLessonInput{PhaseID: fx.Phase.ID, Title: "B"})
	c, _ := svc.CreateLesson(ctx, CreateLessonInput{PhaseID: fx.Phase.ID, Title: "C"})
	if a == nil || b == nil || c == nil {
		t.Fatal("fixture lessons missing")
	}

	if err := svc.DeleteLesson(ctx, b.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var remaining []*types.Lesson
	if err := gdb.Where("phase_id = ?", fx.Phase.ID).Order("position asc").Find(&remaining).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("remaining = %d", len(remaining))
	}
	if remaining[0].ID != a.ID || remaining[1].ID != c.ID {
		t.Fatalf("order after delete = %v, %v", remaining[0].Title, remaining[1].Title)
	}
	if remaining[1].Position != remaining[0].Position+1 {
		t.Fatalf("positions not compacted: %d, %d", remaining[0].Position, remaining[1].Position)
	}
}

func TestTacticLifecycle(t *testing.T) {
	gdb := newTestDB(t)
	svc := newLessonService(gdb)
	fx := seedAuthor(t, gdb)
	ctx := ctxForUser(fx.Coach.ID)

	lesson, err := svc.CreateLesson(ctx, CreateLessonInput{PhaseID: fx.Phase.ID, Title: "L"})
	if err != nil {
		t.Fatalf("create lesson: %v", err)
	}

	tac, err := svc.CreateTactic(ctx, CreateTacticInput{LessonID: lesson.ID, Title: "Do the thing"})
	if err != nil {
		t.Fatalf("create tactic: %v", err)
	}
	if !tac.Required {
		t.Fatal("tactics default to required")
	}

	updated, err := svc.UpdateTactic(ctx, tac.ID, map[string]interface{}{"required": false})
	if err != nil {
		t.Fatalf("update tactic: %v", err)
	}
	if updated.Required {
		t.Fatal("required flag did not update")
	}

	if err := svc.DeleteTactic(ctx, tac.ID); err != nil {
		t.Fatalf("delete tactic: %v", err)
	}
}

func TestLessonWritesRequireCoach(t *testing.T) {
	gdb := newTestDB(t)
	svc := newLessonService(gdb)
	fx := seedAuthor(t, gdb)

	member := seedOrgUser(t, gdb, fx.Org.ID, types.OrgRoleMember)
	if _, err := svc.CreateLesson(ctxForUser(member.ID), CreateLessonInput{PhaseID: fx.Phase.ID, Title: "Nope"}); err == nil {
		t.Fatal("expected coach gate")
	}
}
