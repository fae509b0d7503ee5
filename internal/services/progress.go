package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/requestdata"
	"github.com/ghprograms/programs-backend/internal/types"
)

// LearningGraphProjector mirrors completion facts into the learning
// graph. Projection is best-effort; implementations must never fail the
// request that triggered them.
type LearningGraphProjector interface {
	ProjectProgram(ctx context.Context, program *types.Program, phases []*types.Phase, lessons []*types.Lesson, tactics []*types.Tactic)
	ProjectLessonCompletion(ctx context.Context, userID uuid.UUID, lesson *types.Lesson)
}

// GateState reports which completion gates a lesson currently meets for
// one user. A lesson with no applicable gates only completes through the
// explicit mark-complete operation.
type GateState struct {
	HasVideo      bool     `json:"has_video"`
	VideoMet      bool     `json:"video_gate_met"`
	HasTactics    bool     `json:"has_tactics"`
	TacticsMet    bool     `json:"tactics_gate_met"`
	HasAssessment bool     `json:"has_assessment"`
	AssessmentMet bool     `json:"assessment_gate_met"`
	Unmet         []string `json:"unmet,omitempty"`
}

func (g GateState) Gateless() bool {
	return !g.HasVideo && !g.HasTactics && !g.HasAssessment
}

func (g GateState) AllMet() bool {
	return g.VideoMet && g.TacticsMet && g.AssessmentMet
}

type ProgressService interface {
	OpenLesson(ctx context.Context, lessonID uuid.UUID) (*types.LessonProgress, error)
	RecordVideoProgress(ctx context.Context, lessonID uuid.UUID, watchedPct float64, secondsDelta int) (*types.LessonProgress, error)
	CompleteTactic(ctx context.Context, tacticID uuid.UUID, note string) (*types.LessonProgress, error)
	UncompleteTactic(ctx context.Context, tacticID uuid.UUID) (*types.LessonProgress, error)
	SubmitAssessment(ctx context.Context, assessmentID uuid.UUID, answers map[string]int) (*types.AssessmentAttempt, *types.LessonProgress, error)
	MarkLessonComplete(ctx context.Context, lessonID uuid.UUID) (*types.LessonProgress, error)
	GetLessonProgress(ctx context.Context, lessonID uuid.UUID) (*types.LessonProgress, *GateState, error)
	GetProgramProgress(ctx context.Context, programID uuid.UUID) (*ProgramProgress, error)
}

// ProgramProgress is the roll-up read model for one enrollment.
type ProgramProgress struct {
	ProgramID        uuid.UUID               `json:"program_id"`
	Enrollment       *types.Enrollment       `json:"enrollment"`
	ProgressPct      float64                 `json:"progress_pct"`
	CompletedLessons int                     `json:"completed_lessons"`
	TotalLessons     int                     `json:"total_lessons"`
	Phases           []PhaseProgress         `json:"phases"`
	Lessons          []*types.LessonProgress `json:"lessons"`
}

type PhaseProgress struct {
	PhaseID          uuid.UUID `json:"phase_id"`
	ProgressPct      float64   `json:"progress_pct"`
	CompletedLessons int       `json:"completed_lessons"`
	TotalLessons     int       `json:"total_lessons"`
}

type progressService struct {
	db  *gorm.DB
	log *logger.Logger

	programRepo        repos.ProgramRepo
	phaseRepo          repos.PhaseRepo
	lessonRepo         repos.LessonRepo
	tacticRepo         repos.TacticRepo
	resourceRepo       repos.LessonResourceRepo
	assessmentRepo     repos.AssessmentRepo
	questionRepo       repos.AssessmentQuestionRepo
	attemptRepo        repos.AssessmentAttemptRepo
	enrollmentRepo     repos.EnrollmentRepo
	lessonProgressRepo repos.LessonProgressRepo
	tacticProgressRepo repos.TacticProgressRepo
	userEventRepo      repos.UserEventRepo

	dripService DripService
	jobService  JobService
	notifier    ProgressNotifier
	graph       LearningGraphProjector
}

func NewProgressService(
	db *gorm.DB,
	log *logger.Logger,
	programRepo repos.ProgramRepo,
	phaseRepo repos.PhaseRepo,
	lessonRepo repos.LessonRepo,
	tacticRepo repos.TacticRepo,
	resourceRepo repos.LessonResourceRepo,
	assessmentRepo repos.AssessmentRepo,
	questionRepo repos.AssessmentQuestionRepo,
	attemptRepo repos.AssessmentAttemptRepo,
	enrollmentRepo repos.EnrollmentRepo,
	lessonProgressRepo repos.LessonProgressRepo,
	tacticProgressRepo repos.TacticProgressRepo,
	userEventRepo repos.UserEventRepo,
	dripService DripService,
	jobService JobService,
	notifier ProgressNotifier,
	graph LearningGraphProjector,
) ProgressService {
	return &progressService{
		db:                 db,
		log:                log.With("service", "ProgressService"),
		programRepo:        programRepo,
		phaseRepo:          phaseRepo,
		lessonRepo:         lessonRepo,
		tacticRepo:         tacticRepo,
		resourceRepo:       resourceRepo,
		assessmentRepo:     assessmentRepo,
		questionRepo:       questionRepo,
		attemptRepo:        attemptRepo,
		enrollmentRepo:     enrollmentRepo,
		lessonProgressRepo: lessonProgressRepo,
		tacticProgressRepo: tacticProgressRepo,
		userEventRepo:      userEventRepo,
		dripService:        dripService,
		jobService:         jobService,
		notifier:           notifier,
		graph:              graph,
	}
}

func (s *progressService) OpenLesson(ctx context.Context, lessonID uuid.UUID) (*types.LessonProgress, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	lesson, err := s.loadLesson(ctx, nil, lessonID)
	if err != nil {
		return nil, err
	}
	enrollment, err := s.requireActiveEnrollment(ctx, nil, userID, lesson.ProgramID)
	if err != nil {
		return nil, err
	}

	unlocked, state, err := s.lessonUnlocked(ctx, nil, enrollment, lesson)
	if err != nil {
		return nil, err
	}
	if !unlocked {
		return nil, fmt.Errorf("Lesson is locked (%s)", state.Reason)
	}

	var row *types.LessonProgress
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		existing, gErr := s.lessonProgressRepo.GetByUserAndLessonIDs(ctx, tx, userID, []uuid.UUID{lessonID})
		if gErr != nil {
			return fmt.Errorf("Failed to load lesson progress: %w", gErr)
		}
		if len(existing) > 0 && existing[0] != nil {
			row = existing[0]
			updates := map[string]interface{}{
				"last_opened_at": now,
			}
			if row.Status == types.ProgressNotStarted {
				updates["status"] = types.ProgressInProgress
				updates["started_at"] = now
				row.Status = types.ProgressInProgress
				row.StartedAt = &now
			}
			if uErr := s.lessonProgressRepo.UpdateFields(ctx, tx, row.ID, updates); uErr != nil {
				return fmt.Errorf("Failed to update lesson progress: %w", uErr)
			}
			row.LastOpenedAt = &now
		} else {
			row = &types.LessonProgress{
				ID:           uuid.New(),
				UserID:       userID,
				LessonID:     lessonID,
				EnrollmentID: enrollment.ID,
				Status:       types.ProgressInProgress,
				StartedAt:    &now,
				LastOpenedAt: &now,
			}
			if uErr := s.lessonProgressRepo.Upsert(ctx, tx, row); uErr != nil {
				return fmt.Errorf("Failed to create lesson progress: %w", uErr)
			}
		}
		s.appendEvent(ctx, tx, userID, &lesson.ProgramID, &lessonID, types.EventLessonOpened, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (s *progressService) RecordVideoProgress(ctx context.Context, lessonID uuid.UUID, watchedPct float64, secondsDelta int) (*types.LessonProgress, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	if watchedPct < 0 {
		watchedPct = 0
	}
	if watchedPct > 100 {
		watchedPct = 100
	}
	lesson, err := s.loadLesson(ctx, nil, lessonID)
	if err != nil {
		return nil, err
	}
	enrollment, err := s.requireActiveEnrollment(ctx, nil, userID, lesson.ProgramID)
	if err != nil {
		return nil, err
	}

	var row *types.LessonProgress
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		row, txErr = s.ensureProgressRow(ctx, tx, userID, enrollment.ID, lessonID)
		if txErr != nil {
			return txErr
		}
		// watched percent only ratchets upward; replays never regress it.
		if watchedPct > row.VideoWatchedPct {
			row.VideoWatchedPct = watchedPct
		}
		if secondsDelta > 0 {
			row.TimeSpentSeconds += secondsDelta
		}
		s.appendEvent(ctx, tx, userID, &lesson.ProgramID, &lessonID, types.EventVideoProgress, map[string]any{
			"watched_pct": watchedPct,
		})
		return s.reevaluateGates(ctx, tx, userID, enrollment, lesson, row)
	})
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.LessonProgressUpdated(userID, row)
	}
	return row, nil
}

func (s *progressService) CompleteTactic(ctx context.Context, tacticID uuid.UUID, note string) (*types.LessonProgress, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	tactics, err := s.tacticRepo.GetByIDs(ctx, nil, []uuid.UUID{tacticID})
	if err != nil {
		return nil, fmt.Errorf("Failed to load tactic: %w", err)
	}
	if len(tactics) == 0 || tactics[0] == nil {
		return nil, fmt.Errorf("Tactic not found")
	}
	tactic := tactics[0]
	lesson, err := s.loadLesson(ctx, nil, tactic.LessonID)
	if err != nil {
		return nil, err
	}
	enrollment, err := s.requireActiveEnrollment(ctx, nil, userID, lesson.ProgramID)
	if err != nil {
		return nil, err
	}

	var row *types.LessonProgress
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		existing, gErr := s.tacticProgressRepo.GetByUserAndTacticIDs(ctx, tx, userID, []uuid.UUID{tacticID})
		if gErr != nil {
			return fmt.Errorf("Failed to load tactic progress: %w", gErr)
		}
		if len(existing) > 0 && existing[0] != nil {
			if uErr := s.tacticProgressRepo.UpdateFields(ctx, tx, existing[0].ID, map[string]interface{}{
				"completed_at": now,
				"note":         strings.TrimSpace(note),
			}); uErr != nil {
				return fmt.Errorf("Failed to update tactic progress: %w", uErr)
			}
		} else {
			tp := &types.TacticProgress{
				ID:          uuid.New(),
				UserID:      userID,
				TacticID:    tacticID,
				LessonID:    lesson.ID,
				CompletedAt: &now,
				Note:        strings.TrimSpace(note),
			}
			if uErr := s.tacticProgressRepo.Upsert(ctx, tx, tp); uErr != nil {
				return fmt.Errorf("Failed to create tactic progress: %w", uErr)
			}
		}
		var txErr error
		row, txErr = s.ensureProgressRow(ctx, tx, userID, enrollment.ID, lesson.ID)
		if txErr != nil {
			return txErr
		}
		s.appendEvent(ctx, tx, userID, &lesson.ProgramID, &lesson.ID, types.EventTacticCompleted, map[string]any{
			"tactic_id": tacticID,
		})
		return s.reevaluateGates(ctx, tx, userID, enrollment, lesson, row)
	})
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.LessonProgressUpdated(userID, row)
	}
	return row, nil
}

func (s *progressService) UncompleteTactic(ctx context.Context, tacticID uuid.UUID) (*types.LessonProgress, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	tactics, err := s.tacticRepo.GetByIDs(ctx, nil, []uuid.UUID{tacticID})
	if err != nil {
		return nil, fmt.Errorf("Failed to load tactic: %w", err)
	}
	if len(tactics) == 0 || tactics[0] == nil {
		return nil, fmt.Errorf("Tactic not found")
	}
	tactic := tactics[0]
	lesson, err := s.loadLesson(ctx, nil, tactic.LessonID)
	if err != nil {
		return nil, err
	}
	enrollment, err := s.requireActiveEnrollment(ctx, nil, userID, lesson.ProgramID)
	if err != nil {
		return nil, err
	}

	var row *types.LessonProgress
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, gErr := s.tacticProgressRepo.GetByUserAndTacticIDs(ctx, tx, userID, []uuid.UUID{tacticID})
		if gErr != nil {
			return fmt.Errorf("Failed to load tactic progress: %w", gErr)
		}
		if len(existing) > 0 && existing[0] != nil {
			if uErr := s.tacticProgressRepo.UpdateFields(ctx, tx, existing[0].ID, map[string]interface{}{
				"completed_at": nil,
			}); uErr != nil {
				return fmt.Errorf("Failed to clear tactic progress: %w", uErr)
			}
		}
		var txErr error
		row, txErr = s.ensureProgressRow(ctx, tx, userID, enrollment.ID, lesson.ID)
		if txErr != nil {
			return txErr
		}
		s.appendEvent(ctx, tx, userID, &lesson.ProgramID, &lesson.ID, types.EventTacticUncompleted, map[string]any{
			"tactic_id": tacticID,
		})
		// Completion is sticky: a completed lesson keeps its status, only
		// the gate flags are refreshed for in-flight lessons.
		if row.Status == types.ProgressCompleted {
			return nil
		}
		return s.reevaluateGates(ctx, tx, userID, enrollment, lesson, row)
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (s *progressService) SubmitAssessment(ctx context.Context, assessmentID uuid.UUID, answers map[string]int) (*types.AssessmentAttempt, *types.LessonProgress, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, nil, err
	}
	assessments, err := s.assessmentRepo.GetByIDs(ctx, nil, []uuid.UUID{assessmentID})
	if err != nil {
		return nil, nil, fmt.Errorf("Failed to load assessment: %w", err)
	}
	if len(assessments) == 0 || assessments[0] == nil {
		return nil, nil, fmt.Errorf("Assessment not found")
	}
	assessment := assessments[0]
	lesson, err := s.loadLesson(ctx, nil, assessment.LessonID)
	if err != nil {
		return nil, nil, err
	}
	enrollment, err := s.requireActiveEnrollment(ctx, nil, userID, lesson.ProgramID)
	if err != nil {
		return nil, nil, err
	}
	questions, err := s.questionRepo.GetByAssessmentID(ctx, nil, assessmentID)
	if err != nil {
		return nil, nil, fmt.Errorf("Failed to load assessment questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, nil, fmt.Errorf("Assessment has no questions")
	}

	scorePct := scoreAssessment(questions, answers)
	passed := scorePct >= assessment.PassPct

	var attempt *types.AssessmentAttempt
	var row *types.LessonProgress
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		count, cErr := s.attemptRepo.CountByUserAndAssessmentID(ctx, tx, userID, assessmentID)
		if cErr != nil {
			return fmt.Errorf("Failed to count attempts: %w", cErr)
		}
		if assessment.MaxAttempts > 0 && int(count) >= assessment.MaxAttempts {
			alreadyPassed, pErr := s.attemptRepo.HasPassed(ctx, tx, userID, assessmentID)
			if pErr != nil {
				return fmt.Errorf("Failed to check passed attempts: %w", pErr)
			}
			if !alreadyPassed {
				return fmt.Errorf("Attempt limit reached for this assessment")
			}
			return fmt.Errorf("Assessment already passed; attempt limit reached")
		}

		answersJSON, _ := json.Marshal(answers)
		attempt = &types.AssessmentAttempt{
			ID:           uuid.New(),
			UserID:       userID,
			AssessmentID: assessmentID,
			EnrollmentID: enrollment.ID,
			AttemptNo:    int(count) + 1,
			Answers:      datatypes.JSON(answersJSON),
			ScorePct:     scorePct,
			Passed:       passed,
		}
		if _, aErr := s.attemptRepo.Create(ctx, tx, []*types.AssessmentAttempt{attempt}); aErr != nil {
			return fmt.Errorf("Failed to store attempt: %w", aErr)
		}
		var txErr error
		row, txErr = s.ensureProgressRow(ctx, tx, userID, enrollment.ID, lesson.ID)
		if txErr != nil {
			return txErr
		}
		s.appendEvent(ctx, tx, userID, &lesson.ProgramID, &lesson.ID, types.EventAssessmentSubmit, map[string]any{
			"assessment_id": assessmentID,
			"score_pct":     scorePct,
			"passed":        passed,
		})
		return s.reevaluateGates(ctx, tx, userID, enrollment, lesson, row)
	})
	if err != nil {
		return nil, nil, err
	}
	if s.notifier != nil {
		s.notifier.LessonProgressUpdated(userID, row)
	}
	return attempt, row, nil
}

func (s *progressService) MarkLessonComplete(ctx context.Context, lessonID uuid.UUID) (*types.LessonProgress, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	lesson, err := s.loadLesson(ctx, nil, lessonID)
	if err != nil {
		return nil, err
	}
	enrollment, err := s.requireActiveEnrollment(ctx, nil, userID, lesson.ProgramID)
	if err != nil {
		return nil, err
	}

	var row *types.LessonProgress
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		row, txErr = s.ensureProgressRow(ctx, tx, userID, enrollment.ID, lessonID)
		if txErr != nil {
			return txErr
		}
		if row.Status == types.ProgressCompleted {
			return nil
		}
		gates, gErr := s.evaluateGates(ctx, tx, userID, lesson, row)
		if gErr != nil {
			return gErr
		}
		if !gates.Gateless() && !gates.AllMet() {
			return fmt.Errorf("Cannot complete lesson; unmet gates: %s", strings.Join(gates.Unmet, ", "))
		}
		s.applyGateFlags(row, gates)
		return s.completeLesson(ctx, tx, userID, enrollment, lesson, row)
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (s *progressService) GetLessonProgress(ctx context.Context, lessonID uuid.UUID) (*types.LessonProgress, *GateState, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, nil, err
	}
	lesson, err := s.loadLesson(ctx, nil, lessonID)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.lessonProgressRepo.GetByUserAndLessonIDs(ctx, nil, userID, []uuid.UUID{lessonID})
	if err != nil {
		return nil, nil, fmt.Errorf("Failed to load lesson progress: %w", err)
	}
	row := &types.LessonProgress{UserID: userID, LessonID: lessonID, Status: types.ProgressNotStarted}
	if len(rows) > 0 && rows[0] != nil {
		row = rows[0]
	}
	gates, err := s.evaluateGates(ctx, nil, userID, lesson, row)
	if err != nil {
		return nil, nil, err
	}
	return row, &gates, nil
}

func (s *progressService) GetProgramProgress(ctx context.Context, programID uuid.UUID) (*ProgramProgress, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	enrollment, err := s.enrollmentRepo.GetByUserAndProgram(ctx, nil, userID, programID)
	if err != nil {
		return nil, fmt.Errorf("Failed to load enrollment: %w", err)
	}
	if enrollment == nil {
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
	return buildProgramProgress(programID, enrollment, lessons, progress), nil
}

// =========================
// internals
// =========================

func requestUserID(ctx context.Context) (uuid.UUID, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("No request data found in context")
	}
	return rd.UserID, nil
}

func (s *progressService) loadLesson(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID) (*types.Lesson, error) {
	lessons, err := s.lessonRepo.GetByIDs(ctx, tx, []uuid.UUID{lessonID})
	if err != nil {
		return nil, fmt.Errorf("Failed to load lesson: %w", err)
	}
	if len(lessons) == 0 || lessons[0] == nil {
		return nil, fmt.Errorf("Lesson not found")
	}
	return lessons[0], nil
}

func (s *progressService) requireActiveEnrollment(ctx context.Context, tx *gorm.DB, userID, programID uuid.UUID) (*types.Enrollment, error) {
	enrollment, err := s.enrollmentRepo.GetByUserAndProgram(ctx, tx, userID, programID)
	if err != nil {
		return nil, fmt.Errorf("Failed to load enrollment: %w", err)
	}
	if enrollment == nil {
		return nil, fmt.Errorf("Not enrolled in this program")
	}
	if enrollment.Status == types.EnrollmentCanceled {
		return nil, fmt.Errorf("Enrollment is canceled")
	}
	return enrollment, nil
}

func (s *progressService) ensureProgressRow(ctx context.Context, tx *gorm.DB, userID, enrollmentID, lessonID uuid.UUID) (*types.LessonProgress, error) {
	existing, err := s.lessonProgressRepo.GetByUserAndLessonIDs(ctx, tx, userID, []uuid.UUID{lessonID})
	if err != nil {
		return nil, fmt.Errorf("Failed to load lesson progress: %w", err)
	}
	if len(existing) > 0 && existing[0] != nil {
		return existing[0], nil
	}
	now := time.Now().UTC()
	row := &types.LessonProgress{
		ID:           uuid.New(),
		UserID:       userID,
		LessonID:     lessonID,
		EnrollmentID: enrollmentID,
		Status:       types.ProgressInProgress,
		StartedAt:    &now,
	}
	if err := s.lessonProgressRepo.Upsert(ctx, tx, row); err != nil {
		return nil, fmt.Errorf("Failed to create lesson progress: %w", err)
	}
	return row, nil
}

func (s *progressService) evaluateGates(ctx context.Context, tx *gorm.DB, userID uuid.UUID, lesson *types.Lesson, row *types.LessonProgress) (GateState, error) {
	var gates GateState

	resources, err := s.resourceRepo.GetByLessonIDs(ctx, tx, []uuid.UUID{lesson.ID})
	if err != nil {
		return gates, fmt.Errorf("Failed to load lesson resources: %w", err)
	}
	for _, r := range resources {
		if r != nil && r.Kind == types.ResourceKindVideo {
			gates.HasVideo = true
			break
		}
	}
	switch {
	case !gates.HasVideo:
		gates.VideoMet = true
	case lesson.VideoRequiredPct <= 0:
		// threshold zero: met on the first progress report.
		gates.VideoMet = row.VideoWatchedPct > 0
	default:
		gates.VideoMet = row.VideoWatchedPct >= lesson.VideoRequiredPct
	}

	tactics, err := s.tacticRepo.GetByLessonID(ctx, tx, lesson.ID)
	if err != nil {
		return gates, fmt.Errorf("Failed to load tactics: %w", err)
	}
	required := make([]uuid.UUID, 0, len(tactics))
	for _, t := range tactics {
		if t != nil && t.Required {
			required = append(required, t.ID)
		}
	}
	gates.HasTactics = len(required) > 0
	if !gates.HasTactics {
		gates.TacticsMet = true
	} else {
		done, tErr := s.tacticProgressRepo.GetByUserAndTacticIDs(ctx, tx, userID, required)
		if tErr != nil {
			return gates, fmt.Errorf("Failed to load tactic progress: %w", tErr)
		}
		completed := make(map[uuid.UUID]bool, len(done))
		for _, tp := range done {
			if tp != nil && tp.CompletedAt != nil {
				completed[tp.TacticID] = true
			}
		}
		gates.TacticsMet = true
		for _, id := range required {
			if !completed[id] {
				gates.TacticsMet = false
				break
			}
		}
	}

	assessments, err := s.assessmentRepo.GetByLessonIDs(ctx, tx, []uuid.UUID{lesson.ID})
	if err != nil {
		return gates, fmt.Errorf("Failed to load assessment: %w", err)
	}
	gates.HasAssessment = len(assessments) > 0 && assessments[0] != nil
	if !gates.HasAssessment {
		gates.AssessmentMet = true
	} else {
		passed, pErr := s.attemptRepo.HasPassed(ctx, tx, userID, assessments[0].ID)
		if pErr != nil {
			return gates, fmt.Errorf("Failed to check passed attempts: %w", pErr)
		}
		gates.AssessmentMet = passed
	}

	if gates.HasVideo && !gates.VideoMet {
		gates.Unmet = append(gates.Unmet, "video")
	}
	if gates.HasTactics && !gates.TacticsMet {
		gates.Unmet = append(gates.Unmet, "tactics")
	}
	if gates.HasAssessment && !gates.AssessmentMet {
		gates.Unmet = append(gates.Unmet, "assessment")
	}
	return gates, nil
}

func (s *progressService) applyGateFlags(row *types.LessonProgress, gates GateState) {
	row.VideoGateMet = gates.VideoMet && gates.HasVideo
	row.TacticsGateMet = gates.TacticsMet && gates.HasTactics
	row.AssessmentGateMet = gates.AssessmentMet && gates.HasAssessment
}

// reevaluateGates persists the recomputed gate flags and, when every
// applicable gate holds on a gated lesson, promotes the row to completed.
// The status transition guards idempotency: replays never fire completion
// twice.
func (s *progressService) reevaluateGates(ctx context.Context, tx *gorm.DB, userID uuid.UUID, enrollment *types.Enrollment, lesson *types.Lesson, row *types.LessonProgress) error {
	gates, err := s.evaluateGates(ctx, tx, userID, lesson, row)
	if err != nil {
		return err
	}
	s.applyGateFlags(row, gates)

	if row.Status != types.ProgressCompleted && !gates.Gateless() && gates.AllMet() {
		return s.completeLesson(ctx, tx, userID, enrollment, lesson, row)
	}

	return s.lessonProgressRepo.UpdateFields(ctx, tx, row.ID, map[string]interface{}{
		"status":              row.Status,
		"video_watched_pct":   row.VideoWatchedPct,
		"video_gate_met":      row.VideoGateMet,
		"tactics_gate_met":    row.TacticsGateMet,
		"assessment_gate_met": row.AssessmentGateMet,
		"time_spent_seconds":  row.TimeSpentSeconds,
	})
}

func (s *progressService) completeLesson(ctx context.Context, tx *gorm.DB, userID uuid.UUID, enrollment *types.Enrollment, lesson *types.Lesson, row *types.LessonProgress) error {
	// Snapshot drip state before the completion lands so prerequisite
	// flips can be announced afterwards.
	var unlockedBefore map[uuid.UUID]bool
	if s.notifier != nil {
		unlockedBefore = s.phaseUnlockState(ctx, tx, enrollment, lesson.ProgramID)
	}

	now := time.Now().UTC()
	row.Status = types.ProgressCompleted
	row.CompletedAt = &now
	if row.StartedAt == nil {
		row.StartedAt = &now
	}
	if err := s.lessonProgressRepo.UpdateFields(ctx, tx, row.ID, map[string]interface{}{
		"status":              row.Status,
		"completed_at":        now,
		"started_at":          row.StartedAt,
		"video_watched_pct":   row.VideoWatchedPct,
		"video_gate_met":      row.VideoGateMet,
		"tactics_gate_met":    row.TacticsGateMet,
		"assessment_gate_met": row.AssessmentGateMet,
		"time_spent_seconds":  row.TimeSpentSeconds,
	}); err != nil {
		return fmt.Errorf("Failed to complete lesson: %w", err)
	}
	s.appendEvent(ctx, tx, userID, &lesson.ProgramID, &lesson.ID, types.EventLessonCompleted, nil)
	if s.notifier != nil {
		s.notifier.LessonCompleted(userID, row, lesson.ProgramID)
	}
	if s.graph != nil {
		s.graph.ProjectLessonCompletion(ctx, userID, lesson)
	}
	if err := s.rollUp(ctx, tx, userID, enrollment, lesson); err != nil {
		return err
	}
	s.notifyPhaseUnlocks(ctx, tx, userID, enrollment, lesson.ProgramID, unlockedBefore)
	return nil
}

// phaseUnlockState evaluates every phase of the program against the
// progress rows as currently stored.
func (s *progressService) phaseUnlockState(ctx context.Context, tx *gorm.DB, enrollment *types.Enrollment, programID uuid.UUID) map[uuid.UUID]bool {
	if s.dripService == nil {
		return nil
	}
	phases, err := s.phaseRepo.GetByProgramID(ctx, tx, programID)
	if err != nil {
		return nil
	}
	lessons, err := s.lessonRepo.GetByProgramID(ctx, tx, programID)
	if err != nil {
		return nil
	}
	progress, err := s.lessonProgressRepo.GetByEnrollmentID(ctx, tx, enrollment.ID)
	if err != nil {
		return nil
	}
	idx := NewProgressIndex(lessons, progress)
	sort.Slice(phases, func(i, j int) bool { return phases[i].Position < phases[j].Position })

	now := time.Now().UTC()
	state := make(map[uuid.UUID]bool, len(phases))
	var prevPhaseID *uuid.UUID
	for i, p := range phases {
		if p == nil {
			continue
		}
		if i > 0 && phases[i-1] != nil {
			prevPhaseID = &phases[i-1].ID
		}
		state[p.ID] = s.dripService.EvaluatePhaseUnlock(now, enrollment, p, prevPhaseID, idx).Unlocked
	}
	return state
}

// notifyPhaseUnlocks announces phases that opened because of a completion
// that just landed. Prerequisite unlocks have no timer for the release
// scan to report, so the completion write itself is the moment to tell
// the client.
func (s *progressService) notifyPhaseUnlocks(ctx context.Context, tx *gorm.DB, userID uuid.UUID, enrollment *types.Enrollment, programID uuid.UUID, unlockedBefore map[uuid.UUID]bool) {
	if s.notifier == nil || unlockedBefore == nil {
		return
	}
	after := s.phaseUnlockState(ctx, tx, enrollment, programID)
	if after == nil {
		return
	}
	var newly []uuid.UUID
	for phaseID, open := range after {
		if open && !unlockedBefore[phaseID] {
			newly = append(newly, phaseID)
		}
	}
	if len(newly) == 0 {
		return
	}
	lessons, err := s.lessonRepo.GetByProgramID(ctx, tx, programID)
	if err != nil {
		return
	}
	for _, phaseID := range newly {
		var lessonIDs []uuid.UUID
		for _, l := range lessons {
			if l != nil && l.PhaseID == phaseID {
				lessonIDs = append(lessonIDs, l.ID)
			}
		}
		s.notifier.ContentUnlocked(userID, programID, phaseID, lessonIDs)
	}
}

// rollUp recomputes the phase and program percentages after a completion
// and flips the enrollment to completed at 100%, enqueueing the
// certificate render.
func (s *progressService) rollUp(ctx context.Context, tx *gorm.DB, userID uuid.UUID, enrollment *types.Enrollment, lesson *types.Lesson) error {
	lessons, err := s.lessonRepo.GetByProgramID(ctx, tx, lesson.ProgramID)
	if err != nil {
		return fmt.Errorf("Failed to load program lessons: %w", err)
	}
	progress, err := s.lessonProgressRepo.GetByEnrollmentID(ctx, tx, enrollment.ID)
	if err != nil {
		return fmt.Errorf("Failed to load enrollment progress: %w", err)
	}
	rollup := buildProgramProgress(lesson.ProgramID, enrollment, lessons, progress)

	updates := map[string]interface{}{
		"progress_pct": rollup.ProgressPct,
	}
	enrollment.ProgressPct = rollup.ProgressPct

	for _, pp := range rollup.Phases {
		if pp.PhaseID == lesson.PhaseID && pp.TotalLessons > 0 && pp.CompletedLessons == pp.TotalLessons {
			phases, pErr := s.phaseRepo.GetByIDs(ctx, tx, []uuid.UUID{lesson.PhaseID})
			if pErr == nil && len(phases) > 0 && s.notifier != nil {
				s.notifier.PhaseCompleted(userID, phases[0], lesson.ProgramID)
			}
		}
	}

	if rollup.TotalLessons > 0 && rollup.CompletedLessons == rollup.TotalLessons && enrollment.Status != types.EnrollmentCompleted {
		now := time.Now().UTC()
		updates["status"] = types.EnrollmentCompleted
		updates["completed_at"] = now
		enrollment.Status = types.EnrollmentCompleted
		enrollment.CompletedAt = &now
		s.appendEvent(ctx, tx, userID, &lesson.ProgramID, nil, types.EventProgramCompleted, nil)
		if s.notifier != nil {
			s.notifier.ProgramCompleted(userID, enrollment)
		}
		if s.jobService != nil {
			entityID := enrollment.ID
			if _, jErr := s.jobService.Enqueue(ctx, tx, userID, types.JobTypeCertificateRender, "enrollment", &entityID, map[string]any{
				"enrollment_id": enrollment.ID.String(),
				"program_id":    lesson.ProgramID.String(),
			}); jErr != nil {
				s.log.Warn("Failed to enqueue certificate render", "enrollment_id", enrollment.ID, "error", jErr)
			}
		}
	}

	if err := s.enrollmentRepo.UpdateFields(ctx, tx, enrollment.ID, updates); err != nil {
		return fmt.Errorf("Failed to update enrollment roll-up: %w", err)
	}
	return nil
}

func (s *progressService) lessonUnlocked(ctx context.Context, tx *gorm.DB, enrollment *types.Enrollment, lesson *types.Lesson) (bool, UnlockState, error) {
	programs, err := s.programRepo.GetByIDs(ctx, tx, []uuid.UUID{lesson.ProgramID})
	if err != nil || len(programs) == 0 || programs[0] == nil {
		return false, UnlockState{}, fmt.Errorf("Failed to load program: %w", err)
	}
	program := programs[0]
	phases, err := s.phaseRepo.GetByProgramID(ctx, tx, lesson.ProgramID)
	if err != nil {
		return false, UnlockState{}, fmt.Errorf("Failed to load phases: %w", err)
	}
	lessons, err := s.lessonRepo.GetByProgramID(ctx, tx, lesson.ProgramID)
	if err != nil {
		return false, UnlockState{}, fmt.Errorf("Failed to load lessons: %w", err)
	}
	progress, err := s.lessonProgressRepo.GetByEnrollmentID(ctx, tx, enrollment.ID)
	if err != nil {
		return false, UnlockState{}, fmt.Errorf("Failed to load progress: %w", err)
	}
	idx := NewProgressIndex(lessons, progress)

	var phase *types.Phase
	var prevPhaseID *uuid.UUID
	sort.Slice(phases, func(i, j int) bool { return phases[i].Position < phases[j].Position })
	for i, p := range phases {
		if p.ID == lesson.PhaseID {
			phase = p
			if i > 0 {
				prevPhaseID = &phases[i-1].ID
			}
			break
		}
	}
	if phase == nil {
		return false, UnlockState{}, fmt.Errorf("Phase not found for lesson")
	}

	var prevLessonID *uuid.UUID
	siblings := make([]*types.Lesson, 0)
	for _, l := range lessons {
		if l != nil && l.PhaseID == lesson.PhaseID {
			siblings = append(siblings, l)
		}
	}
	sort.Slice(siblings, func(i, j int) bool { return siblings[i].Position < siblings[j].Position })
	for i, l := range siblings {
		if l.ID == lesson.ID && i > 0 {
			prevLessonID = &siblings[i-1].ID
			break
		}
	}

	state := s.dripService.EvaluateLessonUnlock(time.Now(), enrollment, phase, prevPhaseID, lesson, prevLessonID, program.SequentialLessons, idx)
	return state.Unlocked, state, nil
}

func (s *progressService) appendEvent(ctx context.Context, tx *gorm.DB, userID uuid.UUID, programID, lessonID *uuid.UUID, eventType string, data map[string]any) {
	var payload datatypes.JSON
	if data != nil {
		b, _ := json.Marshal(data)
		payload = datatypes.JSON(b)
	}
	event := &types.UserEvent{
		ID:        uuid.New(),
		UserID:    userID,
		ProgramID: programID,
		LessonID:  lessonID,
		Type:      eventType,
		Data:      payload,
	}
	if _, err := s.userEventRepo.Create(ctx, tx, []*types.UserEvent{event}); err != nil {
		s.log.Warn("Failed to append user event", "type", eventType, "error", err)
	}
}

func buildProgramProgress(programID uuid.UUID, enrollment *types.Enrollment, lessons []*types.Lesson, progress []*types.LessonProgress) *ProgramProgress {
	completed := make(map[uuid.UUID]bool, len(progress))
	for _, p := range progress {
		if p != nil && p.Status == types.ProgressCompleted {
			completed[p.LessonID] = true
		}
	}
	totalByPhase := make(map[uuid.UUID]int)
	doneByPhase := make(map[uuid.UUID]int)
	phaseOrder := make([]uuid.UUID, 0)
	total := 0
	done := 0
	for _, l := range lessons {
		if l == nil {
			continue
		}
		if _, seen := totalByPhase[l.PhaseID]; !seen {
			phaseOrder = append(phaseOrder, l.PhaseID)
		}
		totalByPhase[l.PhaseID]++
		total++
		if completed[l.ID] {
			doneByPhase[l.PhaseID]++
			done++
		}
	}
	out := &ProgramProgress{
		ProgramID:        programID,
		Enrollment:       enrollment,
		CompletedLessons: done,
		TotalLessons:     total,
		Lessons:          progress,
	}
	if total > 0 {
		out.ProgressPct = float64(done) / float64(total) * 100
	}
	for _, phaseID := range phaseOrder {
		pp := PhaseProgress{
			PhaseID:          phaseID,
			CompletedLessons: doneByPhase[phaseID],
			TotalLessons:     totalByPhase[phaseID],
		}
		if pp.TotalLessons > 0 {
			pp.ProgressPct = float64(pp.CompletedLessons) / float64(pp.TotalLessons) * 100
		}
		out.Phases = append(out.Phases, pp)
	}
	return out
}

// scoreAssessment computes the points-weighted percent for a submission.
// Unanswered questions score zero.
func scoreAssessment(questions []*types.AssessmentQuestion, answers map[string]int) float64 {
	totalPoints := 0
	earned := 0
	for _, q := range questions {
		if q == nil {
			continue
		}
		points := q.Points
		if points <= 0 {
			points = 1
		}
		totalPoints += points
		chosen, ok := answers[q.ID.String()]
		if ok && chosen == q.CorrectIndex {
			earned += points
		}
	}
	if totalPoints == 0 {
		return 0
	}
	return float64(earned) / float64(totalPoints) * 100
}
