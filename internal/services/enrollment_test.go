package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/types"
)

func newEnrollmentService(gdb *gorm.DB) EnrollmentService {
	log := logger.NewNop()
	return NewEnrollmentService(
		gdb,
		log,
		repos.NewEnrollmentRepo(gdb, log),
		repos.NewProgramRepo(gdb, log),
		repos.NewOrgMembershipRepo(gdb, log),
		repos.NewUserEventRepo(gdb, log),
		nil,
	)
}

func seedMembership(t *testing.T, gdb *gorm.DB, orgID, userID uuid.UUID, role string) {
	t.Helper()
	m := &types.OrgMembership{
		ID:             uuid.New(),
		OrganizationID: orgID,
		UserID:         userID,
		Role:           role,
	}
	if err := gdb.Create(m).Error; err != nil {
		t.Fatalf("seed membership: %v", err)
	}
}

func TestEnroll(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 1)
	svc := newEnrollmentService(gdb)

	learner := &types.User{ID: uuid.New(), Email: "l@example.com", Password: "x", FirstName: "L", LastName: "E"}
	if err := gdb.Create(learner).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	seedMembership(t, gdb, fx.Org.ID, learner.ID, types.OrgRoleMember)
	ctx := ctxForUser(learner.ID)

	e, err := svc.Enroll(ctx, fx.Program.ID)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if e.Status != types.EnrollmentActive {
		t.Fatalf("status = %s, want active", e.Status)
	}

	// Idempotent: a second enroll returns the same row.
	again, err := svc.Enroll(ctx, fx.Program.ID)
	if err != nil {
		t.Fatalf("Enroll again: %v", err)
	}
	if again.ID != e.ID {
		t.Fatalf("expected one enrollment per user+program")
	}
}

func TestEnrollRequiresMembershipAndPublished(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 1)
	svc := newEnrollmentService(gdb)

	outsider := &types.User{ID: uuid.New(), Email: "o@example.com", Password: "x", FirstName: "O", LastName: "U"}
	if err := gdb.Create(outsider).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := svc.Enroll(ctxForUser(outsider.ID), fx.Program.ID); err == nil {
		t.Fatalf("expected membership check to reject outsider")
	}

	seedMembership(t, gdb, fx.Org.ID, outsider.ID, types.OrgRoleMember)
	if err := gdb.Model(fx.Program).Update("published", false).Error; err != nil {
		t.Fatalf("unpublish: %v", err)
	}
	if _, err := svc.Enroll(ctxForUser(outsider.ID), fx.Program.ID); err == nil {
		t.Fatalf("expected unpublished program to reject enrollment")
	}
}

func TestEnrollReactivatesCanceled(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 1)
	seedMembership(t, gdb, fx.Org.ID, fx.User.ID, types.OrgRoleMember)
	svc := newEnrollmentService(gdb)
	ctx := ctxForUser(fx.User.ID)

	canceled, err := svc.Cancel(ctx, fx.Enrollment.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if canceled.Status != types.EnrollmentCanceled || canceled.CanceledAt == nil {
		t.Fatalf("cancel did not stick: %+v", canceled)
	}
	if err := gdb.Model(fx.Enrollment).Update("progress_pct", 40).Error; err != nil {
		t.Fatalf("set pct: %v", err)
	}

	e, err := svc.Enroll(ctx, fx.Program.ID)
	if err != nil {
		t.Fatalf("re-Enroll: %v", err)
	}
	if e.ID != fx.Enrollment.ID {
		t.Fatalf("re-enroll must reuse the canceled row")
	}
	if e.Status != types.EnrollmentActive {
		t.Fatalf("status = %s, want active", e.Status)
	}

	var reloaded types.Enrollment
	if err := gdb.First(&reloaded, "id = ?", e.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.ProgressPct != 40 {
		t.Fatalf("pct = %v, re-enroll must keep prior progress", reloaded.ProgressPct)
	}
	if reloaded.CanceledAt != nil {
		t.Fatalf("canceled_at should clear on reactivation")
	}
}

func TestEnrollMember(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 1)
	svc := newEnrollmentService(gdb)

	coach := &types.User{ID: uuid.New(), Email: "c@example.com", Password: "x", FirstName: "C", LastName: "O"}
	member := &types.User{ID: uuid.New(), Email: "m@example.com", Password: "x", FirstName: "M", LastName: "B"}
	plain := &types.User{ID: uuid.New(), Email: "p@example.com", Password: "x", FirstName: "P", LastName: "L"}
	for _, u := range []*types.User{coach, member, plain} {
		if err := gdb.Create(u).Error; err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	seedMembership(t, gdb, fx.Org.ID, coach.ID, types.OrgRoleCoach)
	seedMembership(t, gdb, fx.Org.ID, member.ID, types.OrgRoleMember)
	seedMembership(t, gdb, fx.Org.ID, plain.ID, types.OrgRoleMember)

	e, err := svc.EnrollMember(ctxForUser(coach.ID), member.ID, fx.Program.ID)
	if err != nil {
		t.Fatalf("EnrollMember: %v", err)
	}
	if e.UserID != member.ID {
		t.Fatalf("enrolled wrong user")
	}

	// Plain members cannot enroll others.
	if _, err := svc.EnrollMember(ctxForUser(plain.ID), coach.ID, fx.Program.ID); err == nil {
		t.Fatalf("expected role check to reject plain member")
	}

	// Target must belong to the org.
	stranger := &types.User{ID: uuid.New(), Email: "st@example.com", Password: "x", FirstName: "S", LastName: "T"}
	if err := gdb.Create(stranger).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := svc.EnrollMember(ctxForUser(coach.ID), stranger.ID, fx.Program.ID); err == nil {
		t.Fatalf("expected non-member target rejection")
	}
}

func TestPauseResumeCancel(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 1)
	svc := newEnrollmentService(gdb)
	ctx := ctxForUser(fx.User.ID)

	paused, err := svc.Pause(ctx, fx.Enrollment.ID)
	if err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if paused.Status != types.EnrollmentPaused || paused.PausedAt == nil {
		t.Fatalf("pause did not stick: %+v", paused)
	}

	// Pausing a paused enrollment is a no-op.
	if _, err := svc.Pause(ctx, fx.Enrollment.ID); err != nil {
		t.Fatalf("Pause idempotent: %v", err)
	}

	resumed, err := svc.Resume(ctx, fx.Enrollment.ID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed.Status != types.EnrollmentActive || resumed.PausedAt != nil {
		t.Fatalf("resume did not clear pause: %+v", resumed)
	}

	// Resuming an active enrollment is a no-op too.
	if _, err := svc.Resume(ctx, fx.Enrollment.ID); err != nil {
		t.Fatalf("Resume idempotent: %v", err)
	}

	if _, err := svc.Cancel(ctx, fx.Enrollment.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := svc.Resume(ctx, fx.Enrollment.ID); err == nil {
		t.Fatalf("expected canceled enrollment to reject resume")
	}
}

func TestTransitionRejectsOtherUsers(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 1)
	svc := newEnrollmentService(gdb)

	other := &types.User{ID: uuid.New(), Email: "x@example.com", Password: "x", FirstName: "X", LastName: "Y"}
	if err := gdb.Create(other).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := svc.Pause(ctxForUser(other.ID), fx.Enrollment.ID); err == nil {
		t.Fatalf("expected ownership check")
	}
}

func TestListMyEnrollments(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 1)
	svc := newEnrollmentService(gdb)

	second := &types.Program{
		ID:             uuid.New(),
		OrganizationID: fx.Org.ID,
		Title:          "Second",
		Slug:           uuid.NewString(),
		Published:      true,
	}
	if err := gdb.Create(second).Error; err != nil {
		t.Fatalf("seed program: %v", err)
	}
	e2 := &types.Enrollment{
		ID:        uuid.New(),
		UserID:    fx.User.ID,
		ProgramID: second.ID,
		Status:    types.EnrollmentActive,
		StartedAt: time.Now().UTC(),
	}
	if err := gdb.Create(e2).Error; err != nil {
		t.Fatalf("seed enrollment: %v", err)
	}

	items, err := svc.ListMyEnrollments(ctxForUser(fx.User.ID))
	if err != nil {
		t.Fatalf("ListMyEnrollments: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	for _, item := range items {
		if item.Program == nil {
			t.Fatalf("expected program summary stitched onto each enrollment")
		}
		if item.Program.ID != item.Enrollment.ProgramID {
			t.Fatalf("program mismatch")
		}
	}
}
