package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/types"
)

type UpsertAssessmentInput struct {
	LessonID    uuid.UUID             `json:"lesson_id"`
	Title       string                `json:"title"`
	PassPct     *float64              `json:"pass_pct,omitempty"`
	MaxAttempts *int                  `json:"max_attempts,omitempty"`
	Questions   []UpsertQuestionInput `json:"questions"`
}

type UpsertQuestionInput struct {
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Points       int      `json:"points"`
	Explanation  string   `json:"explanation,omitempty"`
}

// AssessmentDetail is the coach-facing view, including correct answers.
type AssessmentDetail struct {
	Assessment *types.Assessment           `json:"assessment"`
	Questions  []*types.AssessmentQuestion `json:"questions"`
}

type AssessmentService interface {
	UpsertAssessment(ctx context.Context, input UpsertAssessmentInput) (*AssessmentDetail, error)
	GetAssessment(ctx context.Context, lessonID uuid.UUID) (*AssessmentDetail, error)
	DeleteAssessment(ctx context.Context, lessonID uuid.UUID) error
}

type assessmentService struct {
	db  *gorm.DB
	log *logger.Logger

	programRepo    repos.ProgramRepo
	lessonRepo     repos.LessonRepo
	assessmentRepo repos.AssessmentRepo
	questionRepo   repos.AssessmentQuestionRepo
	membershipRepo repos.OrgMembershipRepo
}

func NewAssessmentService(
	db *gorm.DB,
	log *logger.Logger,
	programRepo repos.ProgramRepo,
	lessonRepo repos.LessonRepo,
	assessmentRepo repos.AssessmentRepo,
	questionRepo repos.AssessmentQuestionRepo,
	membershipRepo repos.OrgMembershipRepo,
) AssessmentService {
	return &assessmentService{
		db:             db,
		log:            log.With("service", "AssessmentService"),
		programRepo:    programRepo,
		lessonRepo:     lessonRepo,
		assessmentRepo: assessmentRepo,
		questionRepo:   questionRepo,
		membershipRepo: membershipRepo,
	}
}

func (s *assessmentService) requireCoachForLesson(ctx context.Context, lessonID uuid.UUID) (*types.Lesson, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	lessons, err := s.lessonRepo.GetByIDs(ctx, nil, []uuid.UUID{lessonID})
	if err != nil || len(lessons) == 0 || lessons[0] == nil {
		return nil, fmt.Errorf("Lesson not found")
	}
	lesson := lessons[0]
	programs, err := s.programRepo.GetByIDs(ctx, nil, []uuid.UUID{lesson.ProgramID})
	if err != nil || len(programs) == 0 || programs[0] == nil {
		return nil, fmt.Errorf("Program not found")
	}
	if _, err := requireCoach(ctx, nil, s.membershipRepo, programs[0].OrganizationID, userID); err != nil {
		return nil, err
	}
	return lesson, nil
}

func (s *assessmentService) UpsertAssessment(ctx context.Context, input UpsertAssessmentInput) (*AssessmentDetail, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("Missing assessment title")
	}
	if len(input.Questions) == 0 {
		return nil, fmt.Errorf("Assessment needs at least one question")
	}
	for i, q := range input.Questions {
		if strings.TrimSpace(q.Prompt) == "" {
			return nil, fmt.Errorf("Question %d is missing a prompt", i+1)
		}
		if len(q.Options) < 2 {
			return nil, fmt.Errorf("Question %d needs at least two options", i+1)
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return nil, fmt.Errorf("Question %d has an out-of-range correct index", i+1)
		}
	}
	if _, err := s.requireCoachForLesson(ctx, input.LessonID); err != nil {
		return nil, err
	}

	var detail *AssessmentDetail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, gErr := s.assessmentRepo.GetByLessonIDs(ctx, tx, []uuid.UUID{input.LessonID})
		if gErr != nil {
			return fmt.Errorf("Failed to load assessment: %w", gErr)
		}

		passPct := 70.0
		if input.PassPct != nil {
			passPct = *input.PassPct
		}
		maxAttempts := 0
		if input.MaxAttempts != nil {
			maxAttempts = *input.MaxAttempts
		}
		if passPct < 0 || passPct > 100 {
			return fmt.Errorf("Pass percentage must be between 0 and 100")
		}
		if maxAttempts < 0 {
			return fmt.Errorf("Max attempts cannot be negative")
		}

		var assessment *types.Assessment
		if len(existing) > 0 && existing[0] != nil {
			assessment = existing[0]
			if uErr := s.assessmentRepo.UpdateFields(ctx, tx, assessment.ID, map[string]interface{}{
				"title":        strings.TrimSpace(input.Title),
				"pass_pct":     passPct,
				"max_attempts": maxAttempts,
			}); uErr != nil {
				return fmt.Errorf("Failed to update assessment: %w", uErr)
			}
			assessment.Title = strings.TrimSpace(input.Title)
			assessment.PassPct = passPct
			assessment.MaxAttempts = maxAttempts

			// Replace the question set wholesale; attempts keep their
			// recorded scores.
			old, qErr := s.questionRepo.GetByAssessmentID(ctx, tx, assessment.ID)
			if qErr != nil {
				return fmt.Errorf("Failed to load questions: %w", qErr)
			}
			oldIDs := make([]uuid.UUID, 0, len(old))
			for _, q := range old {
				if q != nil {
					oldIDs = append(oldIDs, q.ID)
				}
			}
			if len(oldIDs) > 0 {
				if dErr := s.questionRepo.SoftDeleteByIDs(ctx, tx, oldIDs); dErr != nil {
					return fmt.Errorf("Failed to replace questions: %w", dErr)
				}
			}
		} else {
			assessment = &types.Assessment{
				ID:          uuid.New(),
				LessonID:    input.LessonID,
				Title:       strings.TrimSpace(input.Title),
				PassPct:     passPct,
				MaxAttempts: maxAttempts,
			}
			if _, cErr := s.assessmentRepo.Create(ctx, tx, []*types.Assessment{assessment}); cErr != nil {
				return fmt.Errorf("Failed to create assessment: %w", cErr)
			}
		}

		rows := make([]*types.AssessmentQuestion, 0, len(input.Questions))
		for i, q := range input.Questions {
			opts, mErr := json.Marshal(q.Options)
			if mErr != nil {
				return fmt.Errorf("Failed to encode question options: %w", mErr)
			}
			points := q.Points
			if points <= 0 {
				points = 1
			}
			rows = append(rows, &types.AssessmentQuestion{
				ID:           uuid.New(),
				AssessmentID: assessment.ID,
				Position:     i + 1,
				Prompt:       strings.TrimSpace(q.Prompt),
				Options:      opts,
				CorrectIndex: q.CorrectIndex,
				Points:       points,
				Explanation:  q.Explanation,
			})
		}
		if _, cErr := s.questionRepo.Create(ctx, tx, rows); cErr != nil {
			return fmt.Errorf("Failed to create questions: %w", cErr)
		}
		detail = &AssessmentDetail{Assessment: assessment, Questions: rows}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *assessmentService) GetAssessment(ctx context.Context, lessonID uuid.UUID) (*AssessmentDetail, error) {
	if _, err := s.requireCoachForLesson(ctx, lessonID); err != nil {
		return nil, err
	}
	assessments, err := s.assessmentRepo.GetByLessonIDs(ctx, nil, []uuid.UUID{lessonID})
	if err != nil {
		return nil, fmt.Errorf("Failed to load assessment: %w", err)
	}
	if len(assessments) == 0 || assessments[0] == nil {
		return nil, fmt.Errorf("Assessment not found")
	}
	questions, err := s.questionRepo.GetByAssessmentID(ctx, nil, assessments[0].ID)
	if err != nil {
		return nil, fmt.Errorf("Failed to load questions: %w", err)
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].Position < questions[j].Position })
	return &AssessmentDetail{Assessment: assessments[0], Questions: questions}, nil
}

func (s *assessmentService) DeleteAssessment(ctx context.Context, lessonID uuid.UUID) error {
	if _, err := s.requireCoachForLesson(ctx, lessonID); err != nil {
		return err
	}
	assessments, err := s.assessmentRepo.GetByLessonIDs(ctx, nil, []uuid.UUID{lessonID})
	if err != nil {
		return fmt.Errorf("Failed to load assessment: %w", err)
	}
	if len(assessments) == 0 || assessments[0] == nil {
		return nil
	}
	assessment := assessments[0]
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		questions, gErr := s.questionRepo.GetByAssessmentID(ctx, tx, assessment.ID)
		if gErr != nil {
			return fmt.Errorf("Failed to load questions: %w", gErr)
		}
		ids := make([]uuid.UUID, 0, len(questions))
		for _, q := range questions {
			if q != nil {
				ids = append(ids, q.ID)
			}
		}
		if len(ids) > 0 {
			if dErr := s.questionRepo.SoftDeleteByIDs(ctx, tx, ids); dErr != nil {
				return fmt.Errorf("Failed to delete questions: %w", dErr)
			}
		}
		if dErr := s.assessmentRepo.SoftDeleteByIDs(ctx, tx, []uuid.UUID{assessment.ID}); dErr != nil {
			return fmt.Errorf("Failed to delete assessment: %w", dErr)
		}
		return nil
	})
}
