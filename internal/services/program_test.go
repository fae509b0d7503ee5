package services

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/types"
)

func newProgramService(gdb *gorm.DB) ProgramService {
	log := logger.NewNop()
	return NewProgramService(
		gdb,
		log,
		repos.NewProgramRepo(gdb, log),
		repos.NewPhaseRepo(gdb, log),
		repos.NewLessonRepo(gdb, log),
		repos.NewTacticRepo(gdb, log),
		repos.NewLessonResourceRepo(gdb, log),
		repos.NewAssessmentRepo(gdb, log),
		repos.NewOrgMembershipRepo(gdb, log),
		repos.NewEnrollmentRepo(gdb, log),
		repos.NewLessonProgressRepo(gdb, log),
		repos.NewTacticProgressRepo(gdb, log),
		NewDripService(log),
		nil,
	)
}

func seedOrgUser(t *testing.T, gdb *gorm.DB, orgID uuid.UUID, role string) *types.User {
	t.Helper()
	user := &types.User{
		ID:        uuid.New(),
		Email:     uuid.NewString() + "@example.com",
		Password:  "x",
		FirstName: "Org",
		LastName:  "User",
	}
	if err := gdb.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	m := &types.OrgMembership{
		ID:             uuid.New(),
		OrganizationID: orgID,
		UserID:         user.ID,
		Role:           role,
	}
	if err := gdb.Create(m).Error; err != nil {
		t.Fatalf("seed membership: %v", err)
	}
	return user
}

func TestCreateProgramRequiresCoach(t *testing.T) {
	gdb := newTestDB(t)
	svc := newProgramService(gdb)

	org := &types.Organization{ID: uuid.New(), Name: "Org", Slug: uuid.NewString()}
	if err := gdb.Create(org).Error; err != nil {
		t.Fatalf("seed org: %v", err)
	}
	member := seedOrgUser(t, gdb, org.ID, types.OrgRoleMember)

	_, err := svc.CreateProgram(ctxForUser(member.ID), CreateProgramInput{
		OrganizationID: org.ID,
		Title:          "Nope",
	})
	if err == nil || !strings.Contains(err.Error(), "coach") {
		t.Fatalf("expected coach gate, got %v", err)
	}
}

func TestCreateAndPublishProgram(t *testing.T) {
	gdb := newTestDB(t)
	svc := newProgramService(gdb)

	org := &types.Organization{ID: uuid.New(), Name: "Org", Slug: uuid.NewString()}
	if err := gdb.Create(org).Error; err != nil {
		t.Fatalf("seed org: %v", err)
	}
	coach := seedOrgUser(t, gdb, org.ID, types.OrgRoleCoach)
	ctx := ctxForUser(coach.ID)

	program, err := svc.CreateProgram(ctx, CreateProgramInput{
		OrganizationID: org.ID,
		Title:          "Morning Routines 101",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if program.Slug != "morning-routines-101" {
		t.Fatalf("slug = %q", program.Slug)
	}
	if program.Published {
		t.Fatal("new program must start unpublished")
	}

	published, err := svc.PublishProgram(ctx, program.ID)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !published.Published || published.PublishedAt == nil {
		t.Fatalf("publish did not stick: %+v", published)
	}
	if time.Since(*published.PublishedAt) > time.Minute {
		t.Fatalf("published_at not recent: %v", published.PublishedAt)
	}

	unpublished, err := svc.UnpublishProgram(ctx, program.ID)
	if err != nil {
		t.Fatalf("unpublish: %v", err)
	}
	if unpublished.Published {
		t.Fatal("unpublish did not stick")
	}
}

func TestCreateProgramDuplicateSlug(t *testing.T) {
	gdb := newTestDB(t)
	svc := newProgramService(gdb)

	org := &types.Organization{ID: uuid.New(), Name: "Org", Slug: uuid.NewString()}
	if err := gdb.Create(org).Error; err != nil {
		t.Fatalf("seed org: %v", err)
	}
	coach := seedOrgUser(t, gdb, org.ID, types.OrgRoleCoach)
	ctx := ctxForUser(coach.ID)

	if _, err := svc.CreateProgram(ctx, CreateProgramInput{OrganizationID: org.ID, Title: "Same"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := svc.CreateProgram(ctx, CreateProgramInput{OrganizationID: org.ID, Title: "Same"})
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected duplicate slug error, got %v", err)
	}
}

func TestListCatalogScopedToMemberships(t *testing.T) {
	gdb := newTestDB(t)
	svc := newProgramService(gdb)
	now := time.Now().UTC()

	org := &types.Organization{ID: uuid.New(), Name: "Mine", Slug: uuid.NewString()}
	otherOrg := &types.Organization{ID: uuid.New(), Name: "Other", Slug: uuid.NewString()}
	for _, row := range []any{org, otherOrg} {
		if err := gdb.Create(row).Error; err != nil {
			t.Fatalf("seed org: %v", err)
		}
	}
	member := seedOrgUser(t, gdb, org.ID, types.OrgRoleMember)

	visible := &types.Program{ID: uuid.New(), OrganizationID: org.ID, Title: "Visible", Slug: "visible", Published: true, PublishedAt: &now}
	draft := &types.Program{ID: uuid.New(), OrganizationID: org.ID, Title: "Draft", Slug: "draft"}
	foreign := &types.Program{ID: uuid.New(), OrganizationID: otherOrg.ID, Title: "Foreign", Slug: "foreign", Published: true, PublishedAt: &now}
	for _, row := range []any{visible, draft, foreign} {
		if err := gdb.Create(row).Error; err != nil {
			t.Fatalf("seed program: %v", err)
		}
	}

	programs, err := svc.ListCatalog(ctxForUser(member.ID))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(programs) != 1 || programs[0].ID != visible.ID {
		t.Fatalf("catalog = %v", programs)
	}
}
