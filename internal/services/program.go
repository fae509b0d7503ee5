package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/types"
)

// ProgramDetail is the learner read model: the full catalog tree with
// unlock and progress state stitched onto every phase and lesson.
type ProgramDetail struct {
	Program    *types.Program    `json:"program"`
	Enrollment *types.Enrollment `json:"enrollment,omitempty"`
	Phases     []*PhaseDetail    `json:"phases"`
}

type PhaseDetail struct {
	Phase   *types.Phase    `json:"phase"`
	Unlock  UnlockState     `json:"unlock"`
	Lessons []*LessonDetail `json:"lessons"`
}

type LessonDetail struct {
	Lesson        *types.Lesson           `json:"lesson"`
	Unlock        UnlockState             `json:"unlock"`
	Progress      *types.LessonProgress   `json:"progress,omitempty"`
	Tactics       []*TacticDetail         `json:"tactics"`
	Resources     []*types.LessonResource `json:"resources"`
	HasAssessment bool                    `json:"has_assessment"`
}

type TacticDetail struct {
	Tactic    *types.Tactic `json:"tactic"`
	Completed bool          `json:"completed"`
	Note      string        `json:"note,omitempty"`
}

type CreateProgramInput struct {
	OrganizationID    uuid.UUID `json:"organization_id"`
	Title             string    `json:"title"`
	Slug              string    `json:"slug"`
	Summary           string    `json:"summary"`
	Description       string    `json:"description"`
	SequentialLessons bool      `json:"sequential_lessons"`
}

type ProgramService interface {
	CreateProgram(ctx context.Context, input CreateProgramInput) (*types.Program, error)
	UpdateProgram(ctx context.Context, programID uuid.UUID, updates map[string]interface{}) (*types.Program, error)
	DeleteProgram(ctx context.Context, programID uuid.UUID) error
	PublishProgram(ctx context.Context, programID uuid.UUID) (*types.Program, error)
	UnpublishProgram(ctx context.Context, programID uuid.UUID) (*types.Program, error)
	ListCatalog(ctx context.Context) ([]*types.Program, error)
	GetProgramDetail(ctx context.Context, programID uuid.UUID) (*ProgramDetail, error)
}

type programService struct {
	db  *gorm.DB
	log *logger.Logger

	programRepo        repos.ProgramRepo
	phaseRepo          repos.PhaseRepo
	lessonRepo         repos.LessonRepo
	tacticRepo         repos.TacticRepo
	resourceRepo       repos.LessonResourceRepo
	assessmentRepo     repos.AssessmentRepo
	membershipRepo     repos.OrgMembershipRepo
	enrollmentRepo     repos.EnrollmentRepo
	lessonProgressRepo repos.LessonProgressRepo
	tacticProgressRepo repos.TacticProgressRepo

	dripService DripService
	graph       LearningGraphProjector
}

func NewProgramService(
	db *gorm.DB,
	log *logger.Logger,
	programRepo repos.ProgramRepo,
	phaseRepo repos.PhaseRepo,
	lessonRepo repos.LessonRepo,
	tacticRepo repos.TacticRepo,
	resourceRepo repos.LessonResourceRepo,
	assessmentRepo repos.AssessmentRepo,
	membershipRepo repos.OrgMembershipRepo,
	enrollmentRepo repos.EnrollmentRepo,
	lessonProgressRepo repos.LessonProgressRepo,
	tacticProgressRepo repos.TacticProgressRepo,
	dripService DripService,
	graph LearningGraphProjector,
) ProgramService {
	return &programService{
		db:                 db,
		log:                log.With("service", "ProgramService"),
		programRepo:        programRepo,
		phaseRepo:          phaseRepo,
		lessonRepo:         lessonRepo,
		tacticRepo:         tacticRepo,
		resourceRepo:       resourceRepo,
		assessmentRepo:     assessmentRepo,
		membershipRepo:     membershipRepo,
		enrollmentRepo:     enrollmentRepo,
		lessonProgressRepo: lessonProgressRepo,
		tacticProgressRepo: tacticProgressRepo,
		dripService:        dripService,
		graph:              graph,
	}
}

var slugCleaner = regexp.MustCompile(`[^a-z0-9]+`)

func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugCleaner.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// requireCoach loads the caller's membership in the org and rejects
// anyone below coach. Returns the membership for callers that care
// about owner-only actions.
func requireCoach(ctx context.Context, tx *gorm.DB, membershipRepo repos.OrgMembershipRepo, orgID, userID uuid.UUID) (*types.OrgMembership, error) {
	membership, err := membershipRepo.GetByOrgAndUser(ctx, tx, orgID, userID)
	if err != nil {
		return nil, fmt.Errorf("Failed to load membership: %w", err)
	}
	if membership == nil || (membership.Role != types.OrgRoleCoach && membership.Role != types.OrgRoleOwner) {
		return nil, fmt.Errorf("Coach or owner role required")
	}
	return membership, nil
}

func (s *programService) CreateProgram(ctx context.Context, input CreateProgramInput) (*types.Program, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	if input.OrganizationID == uuid.Nil {
		return nil, fmt.Errorf("Missing organization id")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("Missing program title")
	}
	if _, err := requireCoach(ctx, nil, s.membershipRepo, input.OrganizationID, userID); err != nil {
		return nil, err
	}

	slug := Slugify(input.Slug)
	if slug == "" {
		slug = Slugify(input.Title)
	}
	if slug == "" {
		return nil, fmt.Errorf("Cannot derive a slug from the title")
	}

	program := &types.Program{
		ID:                uuid.New(),
		OrganizationID:    input.OrganizationID,
		Title:             strings.TrimSpace(input.Title),
		Slug:              slug,
		Summary:           input.Summary,
		Description:       input.Description,
		SequentialLessons: input.SequentialLessons,
	}
	if _, err := s.programRepo.Create(ctx, nil, []*types.Program{program}); err != nil {
		if repos.IsUniqueViolation(err) {
			return nil, fmt.Errorf("A program with slug %q already exists in this organization", slug)
		}
		return nil, fmt.Errorf("Failed to create program: %w", err)
	}
	return program, nil
}

// allowedProgramUpdates guards the authoring surface: published flags
// move through Publish/Unpublish and org/slug never move.
var allowedProgramUpdates = map[string]bool{
	"title":              true,
	"summary":            true,
	"description":        true,
	"cover_bucket_key":   true,
	"cover_url":          true,
	"sequential_lessons": true,
	"metadata":           true,
}

func (s *programService) UpdateProgram(ctx context.Context, programID uuid.UUID, updates map[string]interface{}) (*types.Program, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	program, err := s.loadProgram(ctx, nil, programID)
	if err != nil {
		return nil, err
	}
	if _, err := requireCoach(ctx, nil, s.membershipRepo, program.OrganizationID, userID); err != nil {
		return nil, err
	}

	filtered := make(map[string]interface{}, len(updates))
	for k, v := range updates {
		if allowedProgramUpdates[k] {
			filtered[k] = v
		}
	}
	if len(filtered) == 0 {
		return program, nil
	}
	if err := s.programRepo.UpdateFields(ctx, nil, programID, filtered); err != nil {
		return nil, fmt.Errorf("Failed to update program: %w", err)
	}
	rows, err := s.programRepo.GetByIDs(ctx, nil, []uuid.UUID{programID})
	if err != nil || len(rows) == 0 {
		return nil, fmt.Errorf("Failed to reload program: %w", err)
	}
	return rows[0], nil
}

func (s *programService) DeleteProgram(ctx context.Context, programID uuid.UUID) error {
	userID, err := requestUserID(ctx)
	if err != nil {
		return err
	}
	program, err := s.loadProgram(ctx, nil, programID)
	if err != nil {
		return err
	}
	if _, err := requireCoach(ctx, nil, s.membershipRepo, program.OrganizationID, userID); err != nil {
		return err
	}
	if err := s.programRepo.SoftDeleteByIDs(ctx, nil, []uuid.UUID{programID}); err != nil {
		return fmt.Errorf("Failed to delete program: %w", err)
	}
	return nil
}

func (s *programService) PublishProgram(ctx context.Context, programID uuid.UUID) (*types.Program, error) {
	return s.setPublished(ctx, programID, true)
}

func (s *programService) UnpublishProgram(ctx context.Context, programID uuid.UUID) (*types.Program, error) {
	return s.setPublished(ctx, programID, false)
}

func (s *programService) setPublished(ctx context.Context, programID uuid.UUID, published bool) (*types.Program, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	program, err := s.loadProgram(ctx, nil, programID)
	if err != nil {
		return nil, err
	}
	if _, err := requireCoach(ctx, nil, s.membershipRepo, program.OrganizationID, userID); err != nil {
		return nil, err
	}
	if program.Published == published {
		return program, nil
	}
	updates := map[string]interface{}{"published": published}
	if published {
		now := time.Now().UTC()
		updates["published_at"] = now
		program.PublishedAt = &now
	} else {
		updates["published_at"] = nil
		program.PublishedAt = nil
	}
	if err := s.programRepo.UpdateFields(ctx, nil, programID, updates); err != nil {
		return nil, fmt.Errorf("Failed to update program: %w", err)
	}
	program.Published = published

	if published && s.graph != nil {
		s.projectProgramGraph(ctx, program)
	}
	return program, nil
}

func (s *programService) projectProgramGraph(ctx context.Context, program *types.Program) {
	phases, err := s.phaseRepo.GetByProgramID(ctx, nil, program.ID)
	if err != nil {
		s.log.Warn("Failed to load phases for graph projection", "program_id", program.ID, "error", err)
		return
	}
	lessons, err := s.lessonRepo.GetByProgramID(ctx, nil, program.ID)
	if err != nil {
		s.log.Warn("Failed to load lessons for graph projection", "program_id", program.ID, "error", err)
		return
	}
	lessonIDs := make([]uuid.UUID, 0, len(lessons))
	for _, l := range lessons {
		if l != nil {
			lessonIDs = append(lessonIDs, l.ID)
		}
	}
	tactics, err := s.tacticRepo.GetByLessonIDs(ctx, nil, lessonIDs)
	if err != nil {
		s.log.Warn("Failed to load tactics for graph projection", "program_id", program.ID, "error", err)
		return
	}
	s.graph.ProjectProgram(ctx, program, phases, lessons, tactics)
}

// ListCatalog returns published programs of the caller's organizations.
func (s *programService) ListCatalog(ctx context.Context) ([]*types.Program, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	memberships, err := s.membershipRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("Failed to load memberships: %w", err)
	}
	if len(memberships) == 0 {
		return []*types.Program{}, nil
	}
	orgIDs := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		if m != nil {
			orgIDs = append(orgIDs, m.OrganizationID)
		}
	}
	programs, err := s.programRepo.GetByOrgIDs(ctx, nil, orgIDs, true)
	if err != nil {
		return nil, fmt.Errorf("Failed to load programs: %w", err)
	}
	return programs, nil
}

func (s *programService) GetProgramDetail(ctx context.Context, programID uuid.UUID) (*ProgramDetail, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	program, err := s.loadProgram(ctx, nil, programID)
	if err != nil {
		return nil, err
	}
	membership, err := s.membershipRepo.GetByOrgAndUser(ctx, nil, program.OrganizationID, userID)
	if err != nil {
		return nil, fmt.Errorf("Failed to load membership: %w", err)
	}
	isCoach := membership != nil && (membership.Role == types.OrgRoleCoach || membership.Role == types.OrgRoleOwner)
	// Unpublished programs read as not-found to members so drafts never leak.
	if !program.Published && !isCoach {
		return nil, fmt.Errorf("Program not found")
	}
	if membership == nil {
		return nil, fmt.Errorf("Program not found")
	}

	phases, err := s.phaseRepo.GetByProgramID(ctx, nil, programID)
	if err != nil {
		return nil, fmt.Errorf("Failed to load phases: %w", err)
	}
	lessons, err := s.lessonRepo.GetByProgramID(ctx, nil, programID)
	if err != nil {
		return nil, fmt.Errorf("Failed to load lessons: %w", err)
	}
	lessonIDs := make([]uuid.UUID, 0, len(lessons))
	for _, l := range lessons {
		if l != nil {
			lessonIDs = append(lessonIDs, l.ID)
		}
	}
	tactics, err := s.tacticRepo.GetByLessonIDs(ctx, nil, lessonIDs)
	if err != nil {
		return nil, fmt.Errorf("Failed to load tactics: %w", err)
	}
	resources, err := s.resourceRepo.GetByLessonIDs(ctx, nil, lessonIDs)
	if err != nil {
		return nil, fmt.Errorf("Failed to load resources: %w", err)
	}
	assessments, err := s.assessmentRepo.GetByLessonIDs(ctx, nil, lessonIDs)
	if err != nil {
		return nil, fmt.Errorf("Failed to load assessments: %w", err)
	}

	enrollment, err := s.enrollmentRepo.GetByUserAndProgram(ctx, nil, userID, programID)
	if err != nil {
		return nil, fmt.Errorf("Failed to load enrollment: %w", err)
	}
	var progress []*types.LessonProgress
	if enrollment != nil {
		progress, err = s.lessonProgressRepo.GetByEnrollmentID(ctx, nil, enrollment.ID)
		if err != nil {
			return nil, fmt.Errorf("Failed to load progress: %w", err)
		}
	}
	tacticIDs := make([]uuid.UUID, 0, len(tactics))
	for _, tac := range tactics {
		if tac != nil {
			tacticIDs = append(tacticIDs, tac.ID)
		}
	}
	tacticProgress, err := s.tacticProgressRepo.GetByUserAndTacticIDs(ctx, nil, userID, tacticIDs)
	if err != nil {
		return nil, fmt.Errorf("Failed to load tactic progress: %w", err)
	}

	return s.assembleDetail(program, enrollment, phases, lessons, tactics, resources, assessments, progress, tacticProgress), nil
}

func (s *programService) assembleDetail(
	program *types.Program,
	enrollment *types.Enrollment,
	phases []*types.Phase,
	lessons []*types.Lesson,
	tactics []*types.Tactic,
	resources []*types.LessonResource,
	assessments []*types.Assessment,
	progress []*types.LessonProgress,
	tacticProgress []*types.TacticProgress,
) *ProgramDetail {
	now := time.Now()
	idx := NewProgressIndex(lessons, progress)

	progressByLesson := make(map[uuid.UUID]*types.LessonProgress, len(progress))
	for _, p := range progress {
		if p != nil {
			progressByLesson[p.LessonID] = p
		}
	}
	tacticsByLesson := make(map[uuid.UUID][]*types.Tactic)
	for _, tac := range tactics {
		if tac != nil {
			tacticsByLesson[tac.LessonID] = append(tacticsByLesson[tac.LessonID], tac)
		}
	}
	resourcesByLesson := make(map[uuid.UUID][]*types.LessonResource)
	for _, r := range resources {
		if r != nil {
			resourcesByLesson[r.LessonID] = append(resourcesByLesson[r.LessonID], r)
		}
	}
	hasAssessment := make(map[uuid.UUID]bool, len(assessments))
	for _, a := range assessments {
		if a != nil {
			hasAssessment[a.LessonID] = true
		}
	}
	tpByTactic := make(map[uuid.UUID]*types.TacticProgress, len(tacticProgress))
	for _, tp := range tacticProgress {
		if tp != nil {
			tpByTactic[tp.TacticID] = tp
		}
	}
	lessonsByPhase := make(map[uuid.UUID][]*types.Lesson)
	for _, l := range lessons {
		if l != nil {
			lessonsByPhase[l.PhaseID] = append(lessonsByPhase[l.PhaseID], l)
		}
	}

	sort.Slice(phases, func(i, j int) bool { return phases[i].Position < phases[j].Position })

	detail := &ProgramDetail{Program: program, Enrollment: enrollment, Phases: make([]*PhaseDetail, 0, len(phases))}
	var prevPhaseID *uuid.UUID
	for _, phase := range phases {
		if phase == nil {
			continue
		}
		phaseUnlock := UnlockState{Unlocked: false, Reason: UnlockReasonEnrollment}
		if enrollment != nil {
			phaseUnlock = s.dripService.EvaluatePhaseUnlock(now, enrollment, phase, prevPhaseID, idx)
		}
		pd := &PhaseDetail{Phase: phase, Unlock: phaseUnlock}

		siblings := lessonsByPhase[phase.ID]
		sort.Slice(siblings, func(i, j int) bool { return siblings[i].Position < siblings[j].Position })
		var prevLessonID *uuid.UUID
		for _, lesson := range siblings {
			lessonUnlock := UnlockState{Unlocked: false, Reason: UnlockReasonEnrollment}
			if enrollment != nil {
				lessonUnlock = s.dripService.EvaluateLessonUnlock(now, enrollment, phase, prevPhaseID, lesson, prevLessonID, program.SequentialLessons, idx)
			}
			ld := &LessonDetail{
				Lesson:        lesson,
				Unlock:        lessonUnlock,
				Progress:      progressByLesson[lesson.ID],
				Resources:     resourcesByLesson[lesson.ID],
				HasAssessment: hasAssessment[lesson.ID],
			}
			lessonTactics := tacticsByLesson[lesson.ID]
			sort.Slice(lessonTactics, func(i, j int) bool { return lessonTactics[i].Position < lessonTactics[j].Position })
			for _, tac := range lessonTactics {
				td := &TacticDetail{Tactic: tac}
				if tp := tpByTactic[tac.ID]; tp != nil && tp.CompletedAt != nil {
					td.Completed = true
					td.Note = tp.Note
				}
				ld.Tactics = append(ld.Tactics, td)
			}
			pd.Lessons = append(pd.Lessons, ld)
			id := lesson.ID
			prevLessonID = &id
		}

		detail.Phases = append(detail.Phases, pd)
		id := phase.ID
		prevPhaseID = &id
	}
	return detail
}

func (s *programService) loadProgram(ctx context.Context, tx *gorm.DB, programID uuid.UUID) (*types.Program, error) {
	if programID == uuid.Nil {
		return nil, fmt.Errorf("Missing program id")
	}
	rows, err := s.programRepo.GetByIDs(ctx, tx, []uuid.UUID{programID})
	if err != nil {
		return nil, fmt.Errorf("Failed to load program: %w", err)
	}
	if len(rows) == 0 || rows[0] == nil {
		return nil, fmt.Errorf("Program not found")
	}
	return rows[0], nil
}
