package services

import (
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/types"
)

func newAssessmentService(gdb *gorm.DB) AssessmentService {
	log := logger.NewNop()
	return NewAssessmentService(
		gdb,
		log,
		repos.NewProgramRepo(gdb, log),
		repos.NewLessonRepo(gdb, log),
		repos.NewAssessmentRepo(gdb, log),
		repos.NewAssessmentQuestionRepo(gdb, log),
		repos.NewOrgMembershipRepo(gdb, log),
	)
}

func TestUpsertAssessmentReplacesQuestions(t *testing.T) {
	gdb := newTestDB(t)
	lessonSvc := newLessonService(gdb)
	svc := newAssessmentService(gdb)
	fx := seedAuthor(t, gdb)
	ctx := ctxForUser(fx.Coach.ID)

	lesson, err := lessonSvc.CreateLesson(ctx, CreateLessonInput{PhaseID: fx.Phase.ID, Title: "L"})
	if err != nil {
		t.Fatalf("create lesson: %v", err)
	}

	passPct := 80.0
	detail, err := svc.UpsertAssessment(ctx, UpsertAssessmentInput{
		LessonID: lesson.ID,
		Title:    "Check",
		PassPct:  &passPct,
		Questions: []UpsertQuestionInput{
			{Prompt: "A?", Options: []string{"x", "y"}, CorrectIndex: 0},
			{Prompt: "B?", Options: []string{"x", "y", "z"}, CorrectIndex: 2},
		},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if len(detail.Questions) != 2 {
		t.Fatalf("questions = %d", len(detail.Questions))
	}
	if detail.Assessment.PassPct != 80 {
		t.Fatalf("pass_pct = %v", detail.Assessment.PassPct)
	}

	// A second upsert replaces the question set, not appends to it.
	detail, err = svc.UpsertAssessment(ctx, UpsertAssessmentInput{
		LessonID: lesson.ID,
		Title:    "Check v2",
		Questions: []UpsertQuestionInput{
			{Prompt: "Only one now?", Options: []string{"yes", "no"}, CorrectIndex: 0},
		},
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if len(detail.Questions) != 1 {
		t.Fatalf("questions after replace = %d", len(detail.Questions))
	}

	var count int64
	gdb.Model(&types.AssessmentQuestion{}).Where("assessment_id = ?", detail.Assessment.ID).Count(&count)
	if count != 1 {
		t.Fatalf("persisted questions = %d", count)
	}
}

func TestUpsertAssessmentValidation(t *testing.T) {
	gdb := newTestDB(t)
	lessonSvc := newLessonService(gdb)
	svc := newAssessmentService(gdb)
	fx := seedAuthor(t, gdb)
	ctx := ctxForUser(fx.Coach.ID)

	lesson, err := lessonSvc.CreateLesson(ctx, CreateLessonInput{PhaseID: fx.Phase.ID, Title: "L"})
	if err != nil {
		t.Fatalf("create lesson: %v", err)
	}

	badPct := 150.0
	cases := []struct {
		name  string
		input UpsertAssessmentInput
	}{
		{
			name: "pass_pct out of range",
			input: UpsertAssessmentInput{
				LessonID: lesson.ID,
				Title:    "Bad",
				PassPct:  &badPct,
				Questions: []UpsertQuestionInput{
					{Prompt: "A?", Options: []string{"x", "y"}, CorrectIndex: 0},
				},
			},
		},
		{
			name: "correct index out of range",
			input: UpsertAssessmentInput{
				LessonID: lesson.ID,
				Title:    "Bad",
				Questions: []UpsertQuestionInput{
					{Prompt: "A?", Options: []string{"x", "y"}, CorrectIndex: 5},
				},
			},
		},
		{
			name: "too few options",
			input: UpsertAssessmentInput{
				LessonID: lesson.ID,
				Title:    "Bad",
				Questions: []UpsertQuestionInput{
					{Prompt: "A?", Options: []string{"only"}, CorrectIndex: 0},
				},
			},
		},
		{
			name: "no questions",
			input: UpsertAssessmentInput{
				LessonID: lesson.ID,
				Title:    "Bad",
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.UpsertAssessment(ctx, tc.input); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDeleteAssessment(t *testing.T) {
	gdb := newTestDB(t)
	lessonSvc := newLessonService(gdb)
	svc := newAssessmentService(gdb)
	fx := seedAuthor(t, gdb)
	ctx := ctxForUser(fx.Coach.ID)

	lesson, err := lessonSvc.CreateLesson(ctx, CreateLessonInput{PhaseID: fx.Phase.ID, Title: "L"})
	if err != nil {
		t.Fatalf("create lesson: %v", err)
	}
	if _, err := svc.UpsertAssessment(ctx, UpsertAssessmentInput{
		LessonID: lesson.ID,
		Title:    "Check",
		Questions: []UpsertQuestionInput{
			{Prompt: "A?", Options: []string{"x", "y"}, CorrectIndex: 0},
		},
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := svc.DeleteAssessment(ctx, lesson.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetAssessment(ctx, lesson.ID); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
