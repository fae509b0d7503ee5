package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/services"
	"github.com/ghprograms/programs-backend/internal/types"
)

// Result counts what one Apply touched, created and updated alike.
type Result struct {
	Organizations int
	Programs      int
	Phases        int
	Lessons       int
	Tactics       int
	Assessments   int
	Questions     int
}

type Seeder struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSeeder(db *gorm.DB, log *logger.Logger) *Seeder {
	return &Seeder{db: db, log: log.With("component", "Seeder")}
}

// Apply upserts the catalog in a single transaction. Natural keys are
// the org slug, the program slug within its org, and the sibling
// position below that, so editing the file and re-running converges the
// database to it without duplicating rows. Rows absent from the file
// are left untouched.
func (s *Seeder) Apply(ctx context.Context, catalog *Catalog) (*Result, error) {
	if catalog == nil {
		return nil, fmt.Errorf("Catalog is nil")
	}
	res := &Result{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, orgDef := range catalog.Organizations {
			if err := s.applyOrg(tx, orgDef, res); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Catalog seeded",
		"organizations", res.Organizations,
		"programs", res.Programs,
		"phases", res.Phases,
		"lessons", res.Lessons,
		"tactics", res.Tactics,
		"assessments", res.Assessments,
		"questions", res.Questions,
	)
	return res, nil
}

func (s *Seeder) applyOrg(tx *gorm.DB, def OrgDef, res *Result) error {
	var org types.Organization
	err := tx.Where("slug = ?", def.Slug).First(&org).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		org = types.Organization{ID: uuid.New(), Slug: def.Slug, Name: def.Name}
		if err := tx.Create(&org).Error; err != nil {
			return fmt.Errorf("Failed to create organization %q: %w", def.Slug, err)
		}
	case err != nil:
		return fmt.Errorf("Failed to load organization %q: %w", def.Slug, err)
	default:
		if org.Name != def.Name {
			if err := tx.Model(&org).Update("name", def.Name).Error; err != nil {
				return fmt.Errorf("Failed to update organization %q: %w", def.Slug, err)
			}
		}
	}
	res.Organizations++

	for _, progDef := range def.Programs {
		if err := s.applyProgram(tx, org.ID, progDef, res); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) applyProgram(tx *gorm.DB, orgID uuid.UUID, def ProgramDef, res *Result) error {
	var program types.Program
	err := tx.Where("organization_id = ? AND slug = ?", orgID, def.Slug).First(&program).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		program = types.Program{ID: uuid.New(), OrganizationID: orgID, Slug: def.Slug}
		applyProgramFields(&program, def)
		if err := tx.Create(&program).Error; err != nil {
			return fmt.Errorf("Failed to create program %q: %w", def.Slug, err)
		}
	case err != nil:
		return fmt.Errorf("Failed to load program %q: %w", def.Slug, err)
	default:
		applyProgramFields(&program, def)
		if err := tx.Save(&program).Error; err != nil {
			return fmt.Errorf("Failed to update program %q: %w", def.Slug, err)
		}
	}
	res.Programs++

	// Earlier phases must exist before later ones can reference them as
	// drip prerequisites, so walk in position order.
	phases := append([]PhaseDef(nil), def.Phases...)
	sort.Slice(phases, func(i, j int) bool { return phases[i].Position < phases[j].Position })
	phaseIDByPos := make(map[int]uuid.UUID, len(phases))
	for _, phaseDef := range phases {
		phaseID, err := s.applyPhase(tx, program.ID, phaseDef, phaseIDByPos, res)
		if err != nil {
			return err
		}
		phaseIDByPos[phaseDef.Position] = phaseID
	}
	return nil
}

func applyProgramFields(program *types.Program, def ProgramDef) {
	program.Title = def.Title
	program.Summary = def.Summary
	program.Description = def.Description
	program.SequentialLessons = def.SequentialLessons
	if def.Published && !program.Published {
		program.Published = true
		now := time.Now().UTC()
		program.PublishedAt = &now
	}
	if !def.Published && program.Published {
		program.Published = false
		program.PublishedAt = nil
	}
}

func (s *Seeder) applyPhase(tx *gorm.DB, programID uuid.UUID, def PhaseDef, phaseIDByPos map[int]uuid.UUID, res *Result) (uuid.UUID, error) {
	kind, config, err := dripColumns(def.Drip, phaseIDByPos)
	if err != nil {
		return uuid.Nil, fmt.Errorf("Phase %d: %w", def.Position, err)
	}

	var phase types.Phase
	lerr := tx.Where("program_id = ? AND position = ?", programID, def.Position).First(&phase).Error
	switch {
	case lerr == gorm.ErrRecordNotFound:
		phase = types.Phase{ID: uuid.New(), ProgramID: programID, Position: def.Position}
	case lerr != nil:
		return uuid.Nil, fmt.Errorf("Failed to load phase %d: %w", def.Position, lerr)
	}
	phase.Title = def.Title
	phase.Summary = def.Summary
	phase.DripKind = kind
	phase.DripConfig = config
	if err := tx.Save(&phase).Error; err != nil {
		return uuid.Nil, fmt.Errorf("Failed to save phase %d: %w", def.Position, err)
	}
	res.Phases++

	for _, lessonDef := range def.Lessons {
		if err := s.applyLesson(tx, phase.ProgramID, phase.ID, lessonDef, phaseIDByPos, res); err != nil {
			return uuid.Nil, err
		}
	}
	return phase.ID, nil
}

func (s *Seeder) applyLesson(tx *gorm.DB, programID, phaseID uuid.UUID, def LessonDef, phaseIDByPos map[int]uuid.UUID, res *Result) error {
	var lesson types.Lesson
	lerr := tx.Where("phase_id = ? AND position = ?", phaseID, def.Position).First(&lesson).Error
	switch {
	case lerr == gorm.ErrRecordNotFound:
		lesson = types.Lesson{ID: uuid.New(), ProgramID: programID, PhaseID: phaseID, Position: def.Position}
	case lerr != nil:
		return fmt.Errorf("Failed to load lesson %d: %w", def.Position, lerr)
	}
	lesson.Title = def.Title
	lesson.Summary = def.Summary
	lesson.Body = def.Body
	lesson.EstimatedMinutes = def.EstimatedMinutes
	if def.VideoRequiredPct != nil {
		lesson.VideoRequiredPct = *def.VideoRequiredPct
	}
	if def.Drip != nil {
		kind, config, err := dripColumns(def.Drip, phaseIDByPos)
		if err != nil {
			return fmt.Errorf("Lesson %d: %w", def.Position, err)
		}
		lesson.DripKind = &kind
		lesson.DripConfig = config
	} else {
		lesson.DripKind = nil
		lesson.DripConfig = nil
	}
	if err := tx.Save(&lesson).Error; err != nil {
		return fmt.Errorf("Failed to save lesson %d: %w", def.Position, err)
	}
	res.Lessons++

	for _, tacticDef := range def.Tactics {
		if err := s.applyTactic(tx, lesson.ID, tacticDef, res); err != nil {
			return err
		}
	}
	if def.Assessment != nil {
		if err := s.applyAssessment(tx, lesson.ID, def.Assessment, res); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) applyTactic(tx *gorm.DB, lessonID uuid.UUID, def TacticDef, res *Result) error {
	var tactic types.Tactic
	lerr := tx.Where("lesson_id = ? AND position = ?", lessonID, def.Position).First(&tactic).Error
	switch {
	case lerr == gorm.ErrRecordNotFound:
		tactic = types.Tactic{ID: uuid.New(), LessonID: lessonID, Position: def.Position}
	case lerr != nil:
		return fmt.Errorf("Failed to load tactic %d: %w", def.Position, lerr)
	}
	tactic.Title = def.Title
	tactic.Description = def.Description
	tactic.EstimatedMinutes = def.EstimatedMinutes
	tactic.Required = def.Required == nil || *def.Required
	if err := tx.Save(&tactic).Error; err != nil {
		return fmt.Errorf("Failed to save tactic %d: %w", def.Position, err)
	}
	res.Tactics++
	return nil
}

func (s *Seeder) applyAssessment(tx *gorm.DB, lessonID uuid.UUID, def *AssessmentDef, res *Result) error {
	var assessment types.Assessment
	lerr := tx.Where("lesson_id = ?", lessonID).First(&assessment).Error
	switch {
	case lerr == gorm.ErrRecordNotFound:
		assessment = types.Assessment{ID: uuid.New(), LessonID: lessonID}
	case lerr != nil:
		return fmt.Errorf("Failed to load assessment: %w", lerr)
	}
	assessment.Title = def.Title
	assessment.PassPct = def.PassPct
	assessment.MaxAttempts = def.MaxAttempts
	if err := tx.Save(&assessment).Error; err != nil {
		return fmt.Errorf("Failed to save assessment: %w", err)
	}
	res.Assessments++

	for _, qDef := range def.Questions {
		var question types.AssessmentQuestion
		qerr := tx.Where("assessment_id = ? AND position = ?", assessment.ID, qDef.Position).First(&question).Error
		switch {
		case qerr == gorm.ErrRecordNotFound:
			question = types.AssessmentQuestion{ID: uuid.New(), AssessmentID: assessment.ID, Position: qDef.Position}
		case qerr != nil:
			return fmt.Errorf("Failed to load question %d: %w", qDef.Position, qerr)
		}
		options, err := json.Marshal(qDef.Options)
		if err != nil {
			return fmt.Errorf("Failed to encode options for question %d: %w", qDef.Position, err)
		}
		question.Prompt = qDef.Prompt
		question.Options = datatypes.JSON(options)
		question.CorrectIndex = qDef.CorrectIndex
		question.Points = qDef.Points
		if question.Points == 0 {
			question.Points = 1
		}
		question.Explanation = qDef.Explanation
		if err := tx.Save(&question).Error; err != nil {
			return fmt.Errorf("Failed to save question %d: %w", qDef.Position, err)
		}
		res.Questions++
	}
	return nil
}

// dripColumns converts a DripDef into the drip_kind and drip_config
// columns, resolving prerequisite_position against already-seeded
// phases of the same program.
func dripColumns(def *DripDef, phaseIDByPos map[int]uuid.UUID) (string, datatypes.JSON, error) {
	if def == nil {
		return types.DripImmediate, nil, nil
	}
	cfg := services.DripConfig{
		At:          def.At,
		OffsetDays:  def.OffsetDays,
		OffsetHours: def.OffsetHours,
		MinPercent:  def.MinPercent,
	}
	if def.PrerequisitePosition > 0 {
		id, ok := phaseIDByPos[def.PrerequisitePosition]
		if !ok {
			return "", nil, fmt.Errorf("prerequisite_position %d does not match a seeded phase", def.PrerequisitePosition)
		}
		cfg.PrerequisitePhaseID = &id
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", nil, fmt.Errorf("encode drip config: %w", err)
	}
	return def.Kind, datatypes.JSON(raw), nil
}
