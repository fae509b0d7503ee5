package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/types"
)

type CreateLessonInput struct {
	PhaseID          uuid.UUID `json:"phase_id"`
	Title            string    `json:"title"`
	Summary          string    `json:"summary"`
	Body             string    `json:"body"`
	VideoRequiredPct *float64  `json:"video_required_pct,omitempty"`
	EstimatedMinutes int       `json:"estimated_minutes"`
	DripKind         *string   `json:"drip_kind,omitempty"`
	DripConfig       []byte    `json:"drip_config,omitempty"`
}

type CreateTacticInput struct {
	LessonID         uuid.UUID `json:"lesson_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Required         *bool     `json:"required,omitempty"`
	EstimatedMinutes int       `json:"estimated_minutes"`
}

type LessonService interface {
	CreateLesson(ctx context.Context, input CreateLessonInput) (*types.Lesson, error)
	UpdateLesson(ctx context.Context, lessonID uuid.UUID, updates map[string]interface{}) (*types.Lesson, error)
	DeleteLesson(ctx context.Context, lessonID uuid.UUID) error
	ReorderLessons(ctx context.Context, phaseID uuid.UUID, orderedIDs []uuid.UUID) ([]*types.Lesson, error)

	CreateTactic(ctx context.Context, input CreateTacticInput) (*types.Tactic, error)
	UpdateTactic(ctx context.Context, tacticID uuid.UUID, updates map[string]interface{}) (*types.Tactic, error)
	DeleteTactic(ctx context.Context, tacticID uuid.UUID) error
	ReorderTactics(ctx context.Context, lessonID uuid.UUID, orderedIDs []uuid.UUID) ([]*types.Tactic, error)
}

type lessonService struct {
	db  *gorm.DB
	log *logger.Logger

	programRepo    repos.ProgramRepo
	phaseRepo      repos.PhaseRepo
	lessonRepo     repos.LessonRepo
	tacticRepo     repos.TacticRepo
	membershipRepo repos.OrgMembershipRepo
}

func NewLessonService(
	db *gorm.DB,
	log *logger.Logger,
	programRepo repos.ProgramRepo,
	phaseRepo repos.PhaseRepo,
	lessonRepo repos.LessonRepo,
	tacticRepo repos.TacticRepo,
	membershipRepo repos.OrgMembershipRepo,
) LessonService {
	return &lessonService{
		db:             db,
		log:            log.With("service", "LessonService"),
		programRepo:    programRepo,
		phaseRepo:      phaseRepo,
		lessonRepo:     lessonRepo,
		tacticRepo:     tacticRepo,
		membershipRepo: membershipRepo,
	}
}

func (s *lessonService) requireCoachForProgram(ctx context.Context, tx *gorm.DB, programID uuid.UUID) error {
	userID, err := requestUserID(ctx)
	if err != nil {
		return err
	}
	rows, err := s.programRepo.GetByIDs(ctx, tx, []uuid.UUID{programID})
	if err != nil || len(rows) == 0 || rows[0] == nil {
		return fmt.Errorf("Program not found")
	}
	_, err = requireCoach(ctx, tx, s.membershipRepo, rows[0].OrganizationID, userID)
	return err
}

func (s *lessonService) CreateLesson(ctx context.Context, input CreateLessonInput) (*types.Lesson, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("Missing lesson title")
	}
	phases, err := s.phaseRepo.GetByIDs(ctx, nil, []uuid.UUID{input.PhaseID})
	if err != nil || len(phases) == 0 || phases[0] == nil {
		return nil, fmt.Errorf("Phase not found")
	}
	phase := phases[0]
	if err := s.requireCoachForProgram(ctx, nil, phase.ProgramID); err != nil {
		return nil, err
	}
	if input.DripKind != nil && *input.DripKind != "" && !dripKinds[*input.DripKind] {
		return nil, fmt.Errorf("Unknown drip kind %q", *input.DripKind)
	}

	var lesson *types.Lesson
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		siblings, gErr := s.lessonRepo.GetByPhaseID(ctx, tx, input.PhaseID)
		if gErr != nil {
			return fmt.Errorf("Failed to load lessons: %w", gErr)
		}
		lesson = &types.Lesson{
			ID:               uuid.New(),
			PhaseID:          input.PhaseID,
			ProgramID:        phase.ProgramID,
			Position:         len(siblings) + 1,
			Title:            strings.TrimSpace(input.Title),
			Summary:          input.Summary,
			Body:             input.Body,
			EstimatedMinutes: input.EstimatedMinutes,
			DripKind:         input.DripKind,
		}
		if input.VideoRequiredPct != nil {
			lesson.VideoRequiredPct = *input.VideoRequiredPct
		} else {
			lesson.VideoRequiredPct = 80
		}
		if len(input.DripConfig) > 0 {
			lesson.DripConfig = input.DripConfig
		}
		if _, cErr := s.lessonRepo.Create(ctx, tx, []*types.Lesson{lesson}); cErr != nil {
			return fmt.Errorf("Failed to create lesson: %w", cErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lesson, nil
}

var allowedLessonUpdates = map[string]bool{
	"title":              true,
	"summary":            true,
	"body":               true,
	"video_required_pct": true,
	"estimated_minutes":  true,
	"drip_kind":          true,
	"drip_config":        true,
	"metadata":           true,
}

func (s *lessonService) UpdateLesson(ctx context.Context, lessonID uuid.UUID, updates map[string]interface{}) (*types.Lesson, error) {
	lesson, err := s.loadLessonRow(ctx, nil, lessonID)
	if err != nil {
		return nil, err
	}
	if err := s.requireCoachForProgram(ctx, nil, lesson.ProgramID); err != nil {
		return nil, err
	}
	if kind, ok := updates["drip_kind"].(string); ok && kind != "" && !dripKinds[kind] {
		return nil, fmt.Errorf("Unknown drip kind %q", kind)
	}

	filtered := make(map[string]interface{}, len(updates))
	for k, v := range updates {
		if allowedLessonUpdates[k] {
			filtered[k] = v
		}
	}
	if len(filtered) == 0 {
		return lesson, nil
	}
	if err := s.lessonRepo.UpdateFields(ctx, nil, lessonID, filtered); err != nil {
		return nil, fmt.Errorf("Failed to update lesson: %w", err)
	}
	return s.loadLessonRow(ctx, nil, lessonID)
}

func (s *lessonService) DeleteLesson(ctx context.Context, lessonID uuid.UUID) error {
	lesson, err := s.loadLessonRow(ctx, nil, lessonID)
	if err != nil {
		return err
	}
	if err := s.requireCoachForProgram(ctx, nil, lesson.ProgramID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if dErr := s.lessonRepo.SoftDeleteByIDs(ctx, tx, []uuid.UUID{lessonID}); dErr != nil {
			return fmt.Errorf("Failed to delete lesson: %w", dErr)
		}
		remaining, gErr := s.lessonRepo.GetByPhaseID(ctx, tx, lesson.PhaseID)
		if gErr != nil {
			return fmt.Errorf("Failed to load lessons: %w", gErr)
		}
		sort.Slice(remaining, func(i, j int) bool { return remaining[i].Position < remaining[j].Position })
		for i, l := range remaining {
			if l == nil {
				continue
			}
			target := i + 1
			if l.Position != target {
				if uErr := s.lessonRepo.UpdateFields(ctx, tx, l.ID, map[string]interface{}{"position": target}); uErr != nil {
					return fmt.Errorf("Failed to compact lesson positions: %w", uErr)
				}
			}
		}
		return nil
	})
}

func (s *lessonService) ReorderLessons(ctx context.Context, phaseID uuid.UUID, orderedIDs []uuid.UUID) ([]*types.Lesson, error) {
	phases, err := s.phaseRepo.GetByIDs(ctx, nil, []uuid.UUID{phaseID})
	if err != nil || len(phases) == 0 || phases[0] == nil {
		return nil, fmt.Errorf("Phase not found")
	}
	if err := s.requireCoachForProgram(ctx, nil, phases[0].ProgramID); err != nil {
		return nil, err
	}

	var out []*types.Lesson
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lessons, gErr := s.lessonRepo.GetByPhaseID(ctx, tx, phaseID)
		if gErr != nil {
			return fmt.Errorf("Failed to load lessons: %w", gErr)
		}
		byID := make(map[uuid.UUID]*types.Lesson, len(lessons))
		for _, l := range lessons {
			if l != nil {
				byID[l.ID] = l
			}
		}
		if len(orderedIDs) != len(byID) {
			return fmt.Errorf("Reorder must list every lesson exactly once")
		}
		seen := make(map[uuid.UUID]bool, len(orderedIDs))
		for pos, id := range orderedIDs {
			lesson, ok := byID[id]
			if !ok || seen[id] {
				return fmt.Errorf("Reorder must list every lesson exactly once")
			}
			seen[id] = true
			target := pos + 1
			if lesson.Position != target {
				if uErr := s.lessonRepo.UpdateFields(ctx, tx, id, map[string]interface{}{"position": target}); uErr != nil {
					return fmt.Errorf("Failed to reorder lesson: %w", uErr)
				}
				lesson.Position = target
			}
			out = append(out, lesson)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *lessonService) CreateTactic(ctx context.Context, input CreateTacticInput) (*types.Tactic, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("Missing tactic title")
	}
	lesson, err := s.loadLessonRow(ctx, nil, input.LessonID)
	if err != nil {
		return nil, err
	}
	if err := s.requireCoachForProgram(ctx, nil, lesson.ProgramID); err != nil {
		return nil, err
	}

	var tactic *types.Tactic
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		siblings, gErr := s.tacticRepo.GetByLessonID(ctx, tx, input.LessonID)
		if gErr != nil {
			return fmt.Errorf("Failed to load tactics: %w", gErr)
		}
		required := true
		if input.Required != nil {
			required = *input.Required
		}
		tactic = &types.Tactic{
			ID:               uuid.New(),
			LessonID:         input.LessonID,
			Position:         len(siblings) + 1,
			Title:            strings.TrimSpace(input.Title),
			Description:      input.Description,
			Required:         required,
			EstimatedMinutes: input.EstimatedMinutes,
		}
		if _, cErr := s.tacticRepo.Create(ctx, tx, []*types.Tactic{tactic}); cErr != nil {
			return fmt.Errorf("Failed to create tactic: %w", cErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tactic, nil
}

var allowedTacticUpdates = map[string]bool{
	"title":             true,
	"description":       true,
	"required":          true,
	"estimated_minutes": true,
	"metadata":          true,
}

func (s *lessonService) UpdateTactic(ctx context.Context, tacticID uuid.UUID, updates map[string]interface{}) (*types.Tactic, error) {
	tactic, err := s.loadTactic(ctx, nil, tacticID)
	if err != nil {
		return nil, err
	}
	lesson, err := s.loadLessonRow(ctx, nil, tactic.LessonID)
	if err != nil {
		return nil, err
	}
	if err := s.requireCoachForProgram(ctx, nil, lesson.ProgramID); err != nil {
		return nil, err
	}

	filtered := make(map[string]interface{}, len(updates))
	for k, v := range updates {
		if allowedTacticUpdates[k] {
			filtered[k] = v
		}
	}
	if len(filtered) == 0 {
		return tactic, nil
	}
	if err := s.tacticRepo.UpdateFields(ctx, nil, tacticID, filtered); err != nil {
		return nil, fmt.Errorf("Failed to update tactic: %w", err)
	}
	return s.loadTactic(ctx, nil, tacticID)
}

func (s *lessonService) DeleteTactic(ctx context.Context, tacticID uuid.UUID) error {
	tactic, err := s.loadTactic(ctx, nil, tacticID)
	if err != nil {
		return err
	}
	lesson, err := s.loadLessonRow(ctx, nil, tactic.LessonID)
	if err != nil {
		return err
	}
	if err := s.requireCoachForProgram(ctx, nil, lesson.ProgramID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if dErr := s.tacticRepo.SoftDeleteByIDs(ctx, tx, []uuid.UUID{tacticID}); dErr != nil {
			return fmt.Errorf("Failed to delete tactic: %w", dErr)
		}
		remaining, gErr := s.tacticRepo.GetByLessonID(ctx, tx, tactic.LessonID)
		if gErr != nil {
			return fmt.Errorf("Failed to load tactics: %w", gErr)
		}
		sort.Slice(remaining, func(i, j int) bool { return remaining[i].Position < remaining[j].Position })
		for i, tac := range remaining {
			if tac == nil {
				continue
			}
			target := i + 1
			if tac.Position != target {
				if uErr := s.tacticRepo.UpdateFields(ctx, tx, tac.ID, map[string]interface{}{"position": target}); uErr != nil {
					return fmt.Errorf("Failed to compact tactic positions: %w", uErr)
				}
			}
		}
		return nil
	})
}

func (s *lessonService) ReorderTactics(ctx context.Context, lessonID uuid.UUID, orderedIDs []uuid.UUID) ([]*types.Tactic, error) {
	lesson, err := s.loadLessonRow(ctx, nil, lessonID)
	if err != nil {
		return nil, err
	}
	if err := s.requireCoachForProgram(ctx, nil, lesson.ProgramID); err != nil {
		return nil, err
	}

	var out []*types.Tactic
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tactics, gErr := s.tacticRepo.GetByLessonID(ctx, tx, lessonID)
		if gErr != nil {
			return fmt.Errorf("Failed to load tactics: %w", gErr)
		}
		byID := make(map[uuid.UUID]*types.Tactic, len(tactics))
		for _, tac := range tactics {
			if tac != nil {
				byID[tac.ID] = tac
			}
		}
		if len(orderedIDs) != len(byID) {
			return fmt.Errorf("Reorder must list every tactic exactly once")
		}
		seen := make(map[uuid.UUID]bool, len(orderedIDs))
		for pos, id := range orderedIDs {
			tactic, ok := byID[id]
			if !ok || seen[id] {
				return fmt.Errorf("Reorder must list every tactic exactly once")
			}
			seen[id] = true
			target := pos + 1
			if tactic.Position != target {
				if uErr := s.tacticRepo.UpdateFields(ctx, tx, id, map[string]interface{}{"position": target}); uErr != nil {
					return fmt.Errorf("Failed to reorder tactic: %w", uErr)
				}
				tactic.Position = target
			}
			out = append(out, tactic)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *lessonService) loadLessonRow(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID) (*types.Lesson, error) {
	if lessonID == uuid.Nil {
		return nil, fmt.Errorf("Missing lesson id")
	}
	rows, err := s.lessonRepo.GetByIDs(ctx, tx, []uuid.UUID{lessonID})
	if err != nil {
		return nil, fmt.Errorf("Failed to load lesson: %w", err)
	}
	if len(rows) == 0 || rows[0] == nil {
		return nil, fmt.Errorf("Lesson not found")
	}
	return rows[0], nil
}

func (s *lessonService) loadTactic(ctx context.Context, tx *gorm.DB, tacticID uuid.UUID) (*types.Tactic, error) {
	if tacticID == uuid.Nil {
		return nil, fmt.Errorf("Missing tactic id")
	}
	rows, err := s.tacticRepo.GetByIDs(ctx, tx, []uuid.UUID{tacticID})
	if err != nil {
		return nil, fmt.Errorf("Failed to load tactic: %w", err)
	}
	if len(rows) == 0 || rows[0] == nil {
		return nil, fmt.Errorf("Tactic not found")
	}
	return rows[0], nil
}
