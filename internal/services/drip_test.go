package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/types"
)

func dripTestEnrollment(status string, startedAt time.Time) *types.Enrollment {
	return &types.Enrollment{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Status:    status,
		StartedAt: startedAt,
	}
}

func dripTestPhase(kind string, config string) *types.Phase {
	p := &types.Phase{
		ID:       uuid.New(),
		DripKind: kind,
	}
	if config != "" {
		p.DripConfig = datatypes.JSON([]byte(config))
	}
	return p
}

func TestEvaluatePhaseUnlock(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	enrolledAt := now.Add(-72 * time.Hour)
	prevPhase := uuid.New()

	fullPrev := &ProgressIndex{
		CompletedLessons: map[uuid.UUID]bool{},
		PhasePct:         map[uuid.UUID]float64{prevPhase: 100},
	}
	halfPrev := &ProgressIndex{
		CompletedLessons: map[uuid.UUID]bool{},
		PhasePct:         map[uuid.UUID]float64{prevPhase: 50},
	}

	tests := []struct {
		name       string
		enrollment *types.Enrollment
		phase      *types.Phase
		prev       *uuid.UUID
		idx        *ProgressIndex
		unlocked   bool
		reason     string
	}{
		{
			name:       "immediate always unlocked",
			enrollment: dripTestEnrollment(types.EnrollmentActive, enrolledAt),
			phase:      dripTestPhase(types.DripImmediate, ""),
			unlocked:   true,
			reason:     UnlockReasonImmediate,
		},
		{
			name:       "empty kind treated as immediate",
			enrollment: dripTestEnrollment(types.EnrollmentActive, enrolledAt),
			phase:      dripTestPhase("", ""),
			unlocked:   true,
			reason:     UnlockReasonImmediate,
		},
		{
			name:       "on_date in the past",
			enrollment: dripTestEnrollment(types.EnrollmentActive, enrolledAt),
			phase:      dripTestPhase(types.DripOnDate, `{"at":"2026-03-01T00:00:00Z"}`),
			unlocked:   true,
			reason:     UnlockReasonScheduled,
		},
		{
			name:       "on_date exactly now unlocks",
			enrollment: dripTestEnrollment(types.EnrollmentActive, enrolledAt),
			phase:      dripTestPhase(types.DripOnDate, `{"at":"2026-03-10T12:00:00Z"}`),
			unlocked:   true,
			reason:     UnlockReasonScheduled,
		},
		{
			name:       "on_date in the future stays locked",
			enrollment: dripTestEnrollment(types.EnrollmentActive, enrolledAt),
			phase:      dripTestPhase(types.DripOnDate, `{"at":"2026-04-01T00:00:00Z"}`),
			unlocked:   false,
			reason:     UnlockReasonScheduled,
		},
		{
			name:       "on_date without a date fails open",
			enrollment: dripTestEnrollment(types.EnrollmentActive, enrolledAt),
			phase:      dripTestPhase(types.DripOnDate, `{}`),
			unlocked:   true,
			reason:     UnlockReasonImmediate,
		},
		{
			name:       "malformed config fails open",
			enrollment: dripTestEnrollment(types.EnrollmentActive, enrolledAt),
			phase:      dripTestPhase(types.DripOnDate, `{"at":`),
			unlocked:   true,
			reason:     UnlockReasonImmediate,
		},
		{
			name:       "unknown kind fails open",
			enrollment: dripTestEnrollment(types.EnrollmentActive, enrolledAt),
			phase:      dripTestPhase("lunar_cycle", ""),
			unlocked:   true,
			reason:     UnlockReasonImmediate,
		},
		{
			name:       "after_enrollment offset elapsed",
			enrollment: dripTestEnrollment(types.EnrollmentActive, enrolledAt),
			phase:      dripTestPhase(types.DripAfterEnrollment, `{"offset_days":2}`),
			unlocked:   true,
			reason:     UnlockReasonOffset,
		},
		{
			name:       "after_enrollment offset pending",
			enrollment: dripTestEnrollment(types.EnrollmentActive, enrolledAt),
			phase:      dripTestPhase(types.DripAfterEnrollment, `{"offset_days":7}`),
			unlocked:   false,
			reason:     UnlockReasonOffset,
		},
		{
			name:       "after_enrollment hour offset",
			enrollment: dripTestEnrollment(types.EnrollmentActive, enrolledAt),
			phase:      dripTestPhase(types.DripAfterEnrollment, `{"offset_days":2,"offset_hours":23}`),
			unlocked:   true,
			reason:     UnlockReasonOffset,
		},
		{
			name:       "prerequisite complete",
			enrollment: dripTestEnrollment(types.EnrollmentActive, enrolledAt),
			phase:      dripTestPhase(types.DripAfterPrerequisite, `{}`),
			prev:       &prevPhase,
			idx:        fullPrev,
			unlocked:   true,
			reason:     UnlockReasonPrerequisite,
		},
		{
			name:       "prerequisite incomplete",
			enrollment: dripTestEnrollment(types.EnrollmentActive, enrolledAt),
			phase:      dripTestPhase(types.DripAfterPrerequisite, `{}`),
			prev:       &prevPhase,
			idx:        halfPrev,
			unlocked:   false,
			reason:     UnlockReasonPrerequisite,
		},
		{
			name:       "prerequisite with min_percent threshold",
			enrollment: dripTestEnrollment(types.EnrollmentActive, enrolledAt),
			phase:      dripTestPhase(types.DripAfterPrerequisite, `{"min_percent":50}`),
			prev:       &prevPhase,
			idx:        halfPrev,
			unlocked:   true,
			reason:     UnlockReasonPrerequisite,
		},
		{
			name:       "first phase has no prerequisite",
			enrollment: dripTestEnrollment(types.EnrollmentActive, enrolledAt),
			phase:      dripTestPhase(types.DripAfterPrerequisite, `{}`),
			prev:       nil,
			idx:        halfPrev,
			unlocked:   true,
			reason:     UnlockReasonPrerequisite,
		},
		{
			name:       "hybrid both satisfied",
			enrollment: dripTestEnrollment(types.EnrollmentActive, enrolledAt),
			phase:      dripTestPhase(types.DripHybrid, `{"offset_days":1}`),
			prev:       &prevPhase,
			idx:        fullPrev,
			unlocked:   true,
			reason:     UnlockReasonHybrid,
		},
		{
			name:       "hybrid time satisfied but prerequisite short",
			enrollment: dripTestEnrollment(types.EnrollmentActive, enrolledAt),
			phase:      dripTestPhase(types.DripHybrid, `{"offset_days":1}`),
			prev:       &prevPhase,
			idx:        halfPrev,
			unlocked:   false,
			reason:     UnlockReasonHybrid,
		},
		{
			name:       "hybrid prerequisite satisfied but time short",
			enrollment: dripTestEnrollment(types.EnrollmentActive, enrolledAt),
			phase:      dripTestPhase(types.DripHybrid, `{"offset_days":14}`),
			prev:       &prevPhase,
			idx:        fullPrev,
			unlocked:   false,
			reason:     UnlockReasonHybrid,
		},
	}

	svc := NewDripService(logger.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := svc.EvaluatePhaseUnlock(now, tt.enrollment, tt.phase, tt.prev, tt.idx)
			if state.Unlocked != tt.unlocked {
				t.Fatalf("unlocked = %v, want %v (reason %s)", state.Unlocked, tt.unlocked, state.Reason)
			}
			if state.Reason != tt.reason {
				t.Fatalf("reason = %s, want %s", state.Reason, tt.reason)
			}
		})
	}
}

func TestEvaluatePhaseUnlockPausedClock(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	enrolledAt := now.Add(-10 * 24 * time.Hour)
	svc := NewDripService(logger.NewNop())

	// Paused on day 3: the day-7 offset never elapses while paused.
	pausedAt := enrolledAt.Add(3 * 24 * time.Hour)
	enrollment := dripTestEnrollment(types.EnrollmentPaused, enrolledAt)
	enrollment.PausedAt = &pausedAt

	phase := dripTestPhase(types.DripAfterEnrollment, `{"offset_days":7}`)
	state := svc.EvaluatePhaseUnlock(now, enrollment, phase, nil, nil)
	if state.Unlocked {
		t.Fatalf("expected day-7 offset locked for enrollment paused on day 3")
	}

	// Content that unlocked before the pause stays open.
	early := dripTestPhase(types.DripAfterEnrollment, `{"offset_days":2}`)
	state = svc.EvaluatePhaseUnlock(now, enrollment, early, nil, nil)
	if !state.Unlocked {
		t.Fatalf("expected day-2 offset to stay open after pausing on day 3")
	}

	// Canceled enrollments clamp the same way.
	canceledAt := enrolledAt.Add(1 * 24 * time.Hour)
	canceled := dripTestEnrollment(types.EnrollmentCanceled, enrolledAt)
	canceled.CanceledAt = &canceledAt
	state = svc.EvaluatePhaseUnlock(now, canceled, early, nil, nil)
	if state.Unlocked {
		t.Fatalf("expected day-2 offset locked for enrollment canceled on day 1")
	}
}

func TestEvaluateLessonUnlock(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	enrolledAt := now.Add(-72 * time.Hour)
	svc := NewDripService(logger.NewNop())

	enrollment := dripTestEnrollment(types.EnrollmentActive, enrolledAt)
	phase := dripTestPhase(types.DripImmediate, "")

	lessonA := &types.Lesson{ID: uuid.New(), PhaseID: phase.ID, Position: 0}
	lessonB := &types.Lesson{ID: uuid.New(), PhaseID: phase.ID, Position: 1}

	t.Run("locked phase locks every lesson", func(t *testing.T) {
		locked := dripTestPhase(types.DripOnDate, `{"at":"2027-01-01T00:00:00Z"}`)
		state := svc.EvaluateLessonUnlock(now, enrollment, locked, nil, lessonA, nil, false, nil)
		if state.Unlocked {
			t.Fatalf("expected lesson locked while its phase is locked")
		}
	})

	t.Run("lesson override tightens an open phase", func(t *testing.T) {
		kind := types.DripOnDate
		l := &types.Lesson{ID: uuid.New(), PhaseID: phase.ID, DripKind: &kind,
			DripConfig: datatypes.JSON([]byte(`{"at":"2027-01-01T00:00:00Z"}`))}
		state := svc.EvaluateLessonUnlock(now, enrollment, phase, nil, l, nil, false, nil)
		if state.Unlocked {
			t.Fatalf("expected lesson-level on_date override to lock the lesson")
		}
	})

	t.Run("sequential requires previous lesson complete", func(t *testing.T) {
		idx := &ProgressIndex{CompletedLessons: map[uuid.UUID]bool{}, PhasePct: map[uuid.UUID]float64{}}
		state := svc.EvaluateLessonUnlock(now, enrollment, phase, nil, lessonB, &lessonA.ID, true, idx)
		if state.Unlocked {
			t.Fatalf("expected second lesson locked before first completes")
		}
		if state.Reason != UnlockReasonSequential {
			t.Fatalf("reason = %s, want %s", state.Reason, UnlockReasonSequential)
		}

		idx.CompletedLessons[lessonA.ID] = true
		state = svc.EvaluateLessonUnlock(now, enrollment, phase, nil, lessonB, &lessonA.ID, true, idx)
		if !state.Unlocked {
			t.Fatalf("expected second lesson open once first completes")
		}
	})

	t.Run("first lesson in sequential phase is open", func(t *testing.T) {
		state := svc.EvaluateLessonUnlock(now, enrollment, phase, nil, lessonA, nil, true, nil)
		if !state.Unlocked {
			t.Fatalf("expected first lesson open in a sequential phase")
		}
	})
}

func TestNewProgressIndex(t *testing.T) {
	phaseID := uuid.New()
	otherPhase := uuid.New()
	lessons := make([]*types.Lesson, 0, 4)
	for i := 0; i < 4; i++ {
		target := phaseID
		if i == 3 {
			target = otherPhase
		}
		lessons = append(lessons, &types.Lesson{ID: uuid.New(), PhaseID: target, Position: i})
	}
	progress := []*types.LessonProgress{
		{LessonID: lessons[0].ID, Status: types.ProgressCompleted},
		{LessonID: lessons[1].ID, Status: types.ProgressInProgress},
	}
	idx := NewProgressIndex(lessons, progress)
	if !idx.CompletedLessons[lessons[0].ID] {
		t.Fatalf("expected completed lesson in index")
	}
	if idx.CompletedLessons[lessons[1].ID] {
		t.Fatalf("in_progress lesson must not count as completed")
	}
	if got := idx.PhasePct[phaseID]; got < 33.3 || got > 33.4 {
		t.Fatalf("phase pct = %v, want 1/3 of lessons", got)
	}
	if got := idx.PhasePct[otherPhase]; got != 0 {
		t.Fatalf("other phase pct = %v, want 0", got)
	}
}

func ExampleUnlockState() {
	svc := NewDripService(logger.NewNop())
	enrollment := &types.Enrollment{Status: types.EnrollmentActive, StartedAt: time.Now().Add(-48 * time.Hour)}
	phase := &types.Phase{DripKind: types.DripAfterEnrollment, DripConfig: datatypes.JSON([]byte(`{"offset_days":1}`))}
	state := svc.EvaluatePhaseUnlock(time.Now(), enrollment, phase, nil, nil)
	fmt.Println(state.Unlocked, state.Reason)
	// Output: true enrollment_offset
}
