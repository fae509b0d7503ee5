package seed

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/db"
	"github.com/ghprograms/programs-backend/internal/logger"
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

func TestParseSampleCatalog(t *testing.T) {
	catalog, err := Parse(SampleCatalog())
	if err != nil {
		t.Fatalf("parse sample: %v", err)
	}
	if len(catalog.Organizations) != 1 {
		t.Fatalf("organizations = %d, want 1", len(catalog.Organizations))
	}
	prog := catalog.Organizations[0].Programs[0]
	if len(prog.Phases) != 3 {
		t.Fatalf("phases = %d, want 3", len(prog.Phases))
	}
	// Omitted positions come from list order.
	for i, phase := range prog.Phases {
		if phase.Position != i+1 {
			t.Fatalf("phase %d position = %d", i, phase.Position)
		}
	}
	if prog.Phases[1].Drip == nil || prog.Phases[1].Drip.Kind != types.DripAfterPrerequisite {
		t.Fatalf("phase 2 drip = %+v", prog.Phases[1].Drip)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("organizations:\n  - name: X\n    slug: x\n    bogus: true\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidateFailures(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{
			name: "empty catalog",
			yaml: "organizations: []\n",
		},
		{
			name: "duplicate org slug",
			yaml: `
organizations:
  - name: A
    slug: same
  - name: B
    slug: same
`,
		},
		{
			name: "duplicate phase position",
			yaml: `
organizations:
  - name: A
    slug: a
    programs:
      - title: P
        slug: p
        phases:
          - title: One
            position: 1
          - title: Two
            position: 1
`,
		},
		{
			name: "sparse phase positions",
			yaml: `
organizations:
  - name: A
    slug: a
    programs:
      - title: P
        slug: p
        phases:
          - title: One
            position: 1
          - title: Three
            position: 3
`,
		},
		{
			name: "unknown drip kind",
			yaml: `
organizations:
  - name: A
    slug: a
    programs:
      - title: P
        slug: p
        phases:
          - title: One
            drip:
              kind: whenever
`,
		},
		{
			name: "prerequisite not earlier",
			yaml: `
organizations:
  - name: A
    slug: a
    programs:
      - title: P
        slug: p
        phases:
          - title: One
            drip:
              kind: after_prerequisite
              prerequisite_position: 1
`,
		},
		{
			name: "pass_pct out of range",
			yaml: `
organizations:
  - name: A
    slug: a
    programs:
      - title: P
        slug: p
        phases:
          - title: One
            lessons:
              - title: L
                assessment:
                  title: Q
                  pass_pct: 150
                  questions:
                    - prompt: ok?
                      options: [a, b]
                      correct_index: 0
`,
		},
		{
			name: "correct_index out of range",
			yaml: `
organizations:
  - name: A
    slug: a
    programs:
      - title: P
        slug: p
        phases:
          - title: One
            lessons:
              - title: L
                assessment:
                  title: Q
                  pass_pct: 70
                  questions:
                    - prompt: ok?
                      options: [a, b]
                      correct_index: 2
`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.yaml)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	gdb := newTestDB(t)
	seeder := NewSeeder(gdb, logger.NewNop())

	catalog, err := Parse(SampleCatalog())
	if err != nil {
		t.Fatalf("parse sample: %v", err)
	}
	if _, err := seeder.Apply(context.Background(), catalog); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if _, err := seeder.Apply(context.Background(), catalog); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	var programCount, phaseCount, lessonCount, tacticCount int64
	gdb.Model(&types.Program{}).Count(&programCount)
	gdb.Model(&types.Phase{}).Count(&phaseCount)
	gdb.Model(&types.Lesson{}).Count(&lessonCount)
	gdb.Model(&types.Tactic{}).Count(&tacticCount)
	if programCount != 1 {
		t.Fatalf("programs = %d, want 1", programCount)
	}
	if phaseCount != 3 {
		t.Fatalf("phases = %d, want 3", phaseCount)
	}
	if lessonCount != 5 {
		t.Fatalf("lessons = %d, want 5", lessonCount)
	}
	if tacticCount != 6 {
		t.Fatalf("tactics = %d, want 6", tacticCount)
	}
}

func TestApplyResolvesPrerequisitePhase(t *testing.T) {
	gdb := newTestDB(t)
	seeder := NewSeeder(gdb, logger.NewNop())

	catalog, err := Parse(SampleCatalog())
	if err != nil {
		t.Fatalf("parse sample: %v", err)
	}
	if _, err := seeder.Apply(context.Background(), catalog); err != nil {
		t.Fatalf("apply: %v", err)
	}

	var first, second types.Phase
	if err := gdb.Where("position = ?", 1).First(&first).Error; err != nil {
		t.Fatalf("load phase 1: %v", err)
	}
	if err := gdb.Where("position = ?", 2).First(&second).Error; err != nil {
		t.Fatalf("load phase 2: %v", err)
	}
	if second.DripKind != types.DripAfterPrerequisite {
		t.Fatalf("phase 2 drip kind = %q", second.DripKind)
	}
	if want := first.ID.String(); !strings.Contains(string(second.DripConfig), want) {
		t.Fatalf("phase 2 drip config %s does not reference phase 1 %s", second.DripConfig, want)
	}
}
