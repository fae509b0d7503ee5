package services

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/types"
)

// DripConfig is the decoded shape of the drip_config JSONB column. Which
// fields matter depends on the drip kind; unknown fields are ignored.
type DripConfig struct {
	At                  *time.Time `json:"at,omitempty"`
	OffsetDays          int        `json:"offset_days,omitempty"`
	OffsetHours         int        `json:"offset_hours,omitempty"`
	PrerequisitePhaseID *uuid.UUID `json:"prerequisite_phase_id,omitempty"`
	MinPercent          float64    `json:"min_percent,omitempty"`
}

// UnlockState is the result of evaluating a drip rule for one user. When
// the rule is time based and not yet satisfied, UnlockAt carries the
// moment it will flip so clients can render countdowns.
type UnlockState struct {
	Unlocked bool       `json:"unlocked"`
	UnlockAt *time.Time `json:"unlock_at,omitempty"`
	Reason   string     `json:"reason"`
}

// Unlock reasons reported to clients.
const (
	UnlockReasonImmediate    = "immediate"
	UnlockReasonScheduled    = "scheduled"
	UnlockReasonOffset       = "enrollment_offset"
	UnlockReasonPrerequisite = "prerequisite"
	UnlockReasonHybrid       = "hybrid"
	UnlockReasonEnrollment   = "enrollment_inactive"
	UnlockReasonSequential   = "sequential"
)

// ProgressIndex is the per-user completion snapshot unlock evaluation
// reads from. It is built once per request from fetched rows; evaluation
// itself never touches the database.
type ProgressIndex struct {
	// CompletedLessons holds lesson IDs with status completed.
	CompletedLessons map[uuid.UUID]bool
	// PhasePct maps phase ID to completed-lesson percent (0..100).
	PhasePct map[uuid.UUID]float64
}

func NewProgressIndex(lessons []*types.Lesson, progress []*types.LessonProgress) *ProgressIndex {
	idx := &ProgressIndex{
		CompletedLessons: make(map[uuid.UUID]bool),
		PhasePct:         make(map[uuid.UUID]float64),
	}
	completed := make(map[uuid.UUID]bool, len(progress))
	for _, p := range progress {
		if p == nil {
			continue
		}
		if p.Status == types.ProgressCompleted {
			completed[p.LessonID] = true
			idx.CompletedLessons[p.LessonID] = true
		}
	}
	totalByPhase := make(map[uuid.UUID]int)
	doneByPhase := make(map[uuid.UUID]int)
	for _, l := range lessons {
		if l == nil {
			continue
		}
		totalByPhase[l.PhaseID]++
		if completed[l.ID] {
			doneByPhase[l.PhaseID]++
		}
	}
	for phaseID, total := range totalByPhase {
		if total == 0 {
			continue
		}
		idx.PhasePct[phaseID] = float64(doneByPhase[phaseID]) / float64(total) * 100
	}
	return idx
}

// DripService evaluates unlock rules. Evaluation is pure over
// (now, enrollment, drip config, progress index); no unlock state is
// persisted per user and stale results simply recompute.
type DripService interface {
	EvaluatePhaseUnlock(now time.Time, enrollment *types.Enrollment, phase *types.Phase, prevPhaseID *uuid.UUID, idx *ProgressIndex) UnlockState
	EvaluateLessonUnlock(now time.Time, enrollment *types.Enrollment, phase *types.Phase, prevPhaseID *uuid.UUID, lesson *types.Lesson, prevLessonID *uuid.UUID, sequential bool, idx *ProgressIndex) UnlockState
}

type dripService struct {
	log *logger.Logger
}

func NewDripService(log *logger.Logger) DripService {
	return &dripService{log: log.With("service", "DripService")}
}

// effectiveNow clamps the evaluation clock for paused/canceled
// enrollments. Offsets stay relative to started_at, which pause does not
// change; clamping the clock means content already open stays open while
// nothing new unlocks until the enrollment resumes.
func effectiveNow(now time.Time, enrollment *types.Enrollment) time.Time {
	if enrollment == nil {
		return now
	}
	switch enrollment.Status {
	case types.EnrollmentPaused:
		if enrollment.PausedAt != nil && enrollment.PausedAt.Before(now) {
			return *enrollment.PausedAt
		}
	case types.EnrollmentCanceled:
		if enrollment.CanceledAt != nil && enrollment.CanceledAt.Before(now) {
			return *enrollment.CanceledAt
		}
	}
	return now
}

func (s *dripService) EvaluatePhaseUnlock(now time.Time, enrollment *types.Enrollment, phase *types.Phase, prevPhaseID *uuid.UUID, idx *ProgressIndex) UnlockState {
	if enrollment == nil || phase == nil {
		return UnlockState{Unlocked: false, Reason: UnlockReasonEnrollment}
	}
	return s.evaluateRule(now, enrollment, phase.DripKind, phase.DripConfig, prevPhaseID, idx)
}

func (s *dripService) EvaluateLessonUnlock(now time.Time, enrollment *types.Enrollment, phase *types.Phase, prevPhaseID *uuid.UUID, lesson *types.Lesson, prevLessonID *uuid.UUID, sequential bool, idx *ProgressIndex) UnlockState {
	phaseState := s.EvaluatePhaseUnlock(now, enrollment, phase, prevPhaseID, idx)
	if !phaseState.Unlocked {
		return phaseState
	}
	state := phaseState
	if lesson != nil && lesson.DripKind != nil && *lesson.DripKind != "" {
		override := s.evaluateRule(now, enrollment, *lesson.DripKind, lesson.DripConfig, prevPhaseID, idx)
		if !override.Unlocked {
			return override
		}
		state = override
	}
	if sequential && lesson != nil && prevLessonID != nil && *prevLessonID != uuid.Nil {
		if idx == nil || !idx.CompletedLessons[*prevLessonID] {
			return UnlockState{Unlocked: false, Reason: UnlockReasonSequential}
		}
	}
	return state
}

func (s *dripService) evaluateRule(now time.Time, enrollment *types.Enrollment, kind string, raw datatypes.JSON, prevPhaseID *uuid.UUID, idx *ProgressIndex) UnlockState {
	eval := effectiveNow(now, enrollment).UTC()
	cfg, cfgErr := decodeDripConfig(raw)

	switch kind {
	case types.DripImmediate, "":
		return UnlockState{Unlocked: true, Reason: UnlockReasonImmediate}

	case types.DripOnDate:
		if cfgErr != nil || cfg.At == nil {
			s.warnBrokenConfig(kind, cfgErr)
			return UnlockState{Unlocked: true, Reason: UnlockReasonImmediate}
		}
		at := cfg.At.UTC()
		if !eval.Before(at) {
			return UnlockState{Unlocked: true, UnlockAt: &at, Reason: UnlockReasonScheduled}
		}
		return UnlockState{Unlocked: false, UnlockAt: &at, Reason: UnlockReasonScheduled}

	case types.DripAfterEnrollment:
		if cfgErr != nil {
			s.warnBrokenConfig(kind, cfgErr)
			return UnlockState{Unlocked: true, Reason: UnlockReasonImmediate}
		}
		at := offsetUnlockAt(enrollment, cfg)
		if !eval.Before(at) {
			return UnlockState{Unlocked: true, UnlockAt: &at, Reason: UnlockReasonOffset}
		}
		return UnlockState{Unlocked: false, UnlockAt: &at, Reason: UnlockReasonOffset}

	case types.DripAfterPrerequisite:
		if cfgErr != nil {
			s.warnBrokenConfig(kind, cfgErr)
			return UnlockState{Unlocked: true, Reason: UnlockReasonImmediate}
		}
		return prerequisiteState(cfg, prevPhaseID, idx)

	case types.DripHybrid:
		if cfgErr != nil {
			s.warnBrokenConfig(kind, cfgErr)
			return UnlockState{Unlocked: true, Reason: UnlockReasonImmediate}
		}
		at := offsetUnlockAt(enrollment, cfg)
		timeOK := !eval.Before(at)
		prereq := prerequisiteState(cfg, prevPhaseID, idx)
		if timeOK && prereq.Unlocked {
			return UnlockState{Unlocked: true, UnlockAt: &at, Reason: UnlockReasonHybrid}
		}
		return UnlockState{Unlocked: false, UnlockAt: &at, Reason: UnlockReasonHybrid}

	default:
		// Unknown kind fails open; a broken authoring tool must never
		// lock learners out of content they paid for.
		s.warnBrokenConfig(kind, nil)
		return UnlockState{Unlocked: true, Reason: UnlockReasonImmediate}
	}
}

func (s *dripService) warnBrokenConfig(kind string, err error) {
	if s == nil || s.log == nil {
		return
	}
	s.log.Warn("Malformed drip config; failing open to immediate", "drip_kind", kind, "error", err)
}

func offsetUnlockAt(enrollment *types.Enrollment, cfg DripConfig) time.Time {
	start := time.Now().UTC()
	if enrollment != nil && !enrollment.StartedAt.IsZero() {
		start = enrollment.StartedAt.UTC()
	}
	return start.
		Add(time.Duration(cfg.OffsetDays) * 24 * time.Hour).
		Add(time.Duration(cfg.OffsetHours) * time.Hour)
}

func prerequisiteState(cfg DripConfig, prevPhaseID *uuid.UUID, idx *ProgressIndex) UnlockState {
	target := prevPhaseID
	if cfg.PrerequisitePhaseID != nil && *cfg.PrerequisitePhaseID != uuid.Nil {
		target = cfg.PrerequisitePhaseID
	}
	// First phase has no prerequisite.
	if target == nil || *target == uuid.Nil {
		return UnlockState{Unlocked: true, Reason: UnlockReasonPrerequisite}
	}
	need := cfg.MinPercent
	if need <= 0 || need > 100 {
		need = 100
	}
	have := 0.0
	if idx != nil {
		have = idx.PhasePct[*target]
	}
	return UnlockState{Unlocked: have >= need, Reason: UnlockReasonPrerequisite}
}

func decodeDripConfig(raw datatypes.JSON) (DripConfig, error) {
	var cfg DripConfig
	if len(raw) == 0 || string(raw) == "null" {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return DripConfig{}, err
	}
	return cfg, nil
}
