package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/types"
)

// LessonRecommender is the learning-graph query side. A nil recommender
// (graph disabled) makes the service fall back to ordered SQL.
type LessonRecommender interface {
	RecommendNextLessons(ctx context.Context, userID, programID uuid.UUID, limit int) ([]uuid.UUID, error)
}

type RecommendationService interface {
	RecommendNextLessons(ctx context.Context, programID uuid.UUID, limit int) ([]*types.Lesson, error)
}

type recommendationService struct {
	db  *gorm.DB
	log *logger.Logger

	programRepo        repos.ProgramRepo
	phaseRepo          repos.PhaseRepo
	lessonRepo         repos.LessonRepo
	enrollmentRepo     repos.EnrollmentRepo
	lessonProgressRepo repos.LessonProgressRepo
	dripService        DripService
	recommender        LessonRecommender
}

func NewRecommendationService(
	db *gorm.DB,
	log *logger.Logger,
	programRepo repos.ProgramRepo,
	phaseRepo repos.PhaseRepo,
	lessonRepo repos.LessonRepo,
	enrollmentRepo repos.EnrollmentRepo,
	lessonProgressRepo repos.LessonProgressRepo,
	dripService DripService,
	recommender LessonRecommender,
) RecommendationService {
	return &recommendationService{
		db:                 db,
		log:                log.With("service", "RecommendationService"),
		programRepo:        programRepo,
		phaseRepo:          phaseRepo,
		lessonRepo:         lessonRepo,
		enrollmentRepo:     enrollmentRepo,
		lessonProgressRepo: lessonProgressRepo,
		dripService:        dripService,
		recommender:        recommender,
	}
}

func (s *recommendationService) RecommendNextLessons(ctx context.Context, programID uuid.UUID, limit int) ([]*types.Lesson, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 3
	}

	enrollment, err := s.enrollmentRepo.GetByUserAndProgram(ctx, nil, userID, programID)
	if err != nil {
		return nil, fmt.Errorf("Failed to load enrollment: %w", err)
	}
	if enrollment == nil || enrollment.Status == types.EnrollmentCanceled {
		return nil, fmt.Errorf("Not enrolled in this program")
	}

	lessons, err := s.lessonRepo.GetByProgramID(ctx, nil, programID)
	if err != nil {
		return nil, fmt.Errorf("Failed to load lessons: %w", err)
	}
	progress, err := s.lessonProgressRepo.GetByEnrollmentID(ctx, nil, enrollment.ID)
	if err != nil {
		return nil, fmt.Errorf("Failed to load progress: %w", err)
	}

	candidates, err := s.openLessonsInOrder(ctx, enrollment, programID, lessons, progress)
	if err != nil {
		return nil, err
	}

	// Graph order first when available; candidates already passed the drip
	// filter so a stale projection can never surface locked content.
	if s.recommender != nil {
		graphOrder, gerr := s.recommender.RecommendNextLessons(ctx, userID, programID, limit*2)
		if gerr != nil {
			s.log.Warn("Graph recommendation failed, using catalog order", "error", gerr)
		} else if len(graphOrder) > 0 {
			byID := make(map[uuid.UUID]*types.Lesson, len(candidates))
			for _, l := range candidates {
				byID[l.ID] = l
			}
			picked := make([]*types.Lesson, 0, limit)
			for _, id := range graphOrder {
				if l, ok := byID[id]; ok {
					picked = append(picked, l)
					if len(picked) == limit {
						break
					}
				}
			}
			if len(picked) > 0 {
				return picked, nil
			}
		}
	}

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// openLessonsInOrder walks the catalog in phase/lesson position order and
// keeps lessons that are unlocked and not yet completed.
func (s *recommendationService) openLessonsInOrder(
	ctx context.Context,
	enrollment *types.Enrollment,
	programID uuid.UUID,
	lessons []*types.Lesson,
	progress []*types.LessonProgress,
) ([]*types.Lesson, error) {
	programs, err := s.programRepo.GetByIDs(ctx, nil, []uuid.UUID{programID})
	if err != nil {
		return nil, fmt.Errorf("Failed to load program: %w", err)
	}
	if len(programs) == 0 || programs[0] == nil {
		return nil, fmt.Errorf("Program not found")
	}
	program := programs[0]

	phases, err := s.phaseRepo.GetByProgramID(ctx, nil, programID)
	if err != nil {
		return nil, fmt.Errorf("Failed to load phases: %w", err)
	}
	sort.Slice(phases, func(i, j int) bool { return phases[i].Position < phases[j].Position })

	byPhase := make(map[uuid.UUID][]*types.Lesson, len(phases))
	for _, l := range lessons {
		if l != nil {
			byPhase[l.PhaseID] = append(byPhase[l.PhaseID], l)
		}
	}
	completed := make(map[uuid.UUID]bool, len(progress))
	for _, p := range progress {
		if p != nil && p.Status == types.ProgressCompleted {
			completed[p.LessonID] = true
		}
	}

	idx := NewProgressIndex(lessons, progress)
	now := time.Now().UTC()
	var out []*types.Lesson
	var prevPhaseID *uuid.UUID
	for _, phase := range phases {
		siblings := byPhase[phase.ID]
		sort.Slice(siblings, func(i, j int) bool { return siblings[i].Position < siblings[j].Position })

		var prevLessonID *uuid.UUID
		for _, lesson := range siblings {
			state := s.dripService.EvaluateLessonUnlock(now, enrollment, phase, prevPhaseID, lesson, prevLessonID, program.SequentialLessons, idx)
			if state.Unlocked && !completed[lesson.ID] {
				out = append(out, lesson)
			}
			id := lesson.ID
			prevLessonID = &id
		}
		id := phase.ID
		prevPhaseID = &id
	}
	return out, nil
}
