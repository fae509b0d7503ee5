package handlers

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ghprograms/programs-backend/internal/jobs/runtime"
	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/services"
	"github.com/ghprograms/programs-backend/internal/types"
)

// defaultScanWindow matches the cron cadence so each scan picks up what
// unlocked since the previous one.
const defaultScanWindow = time.Hour

// DripReleaseScanHandler walks active enrollments and notifies learners
// about lessons whose scheduled unlock time passed inside the scan
// window.
type DripReleaseScanHandler struct {
	log *logger.Logger

	programRepo    repos.ProgramRepo
	phaseRepo      repos.PhaseRepo
	lessonRepo     repos.LessonRepo
	progressRepo   repos.LessonProgressRepo
	enrollmentRepo repos.EnrollmentRepo
	dripService    services.DripService
	notifier       services.ProgressNotifier
}

func NewDripReleaseScanHandler(
	log *logger.Logger,
	programRepo repos.ProgramRepo,
	phaseRepo repos.PhaseRepo,
	lessonRepo repos.LessonRepo,
	progressRepo repos.LessonProgressRepo,
	enrollmentRepo repos.EnrollmentRepo,
	dripService services.DripService,
	notifier services.ProgressNotifier,
) *DripReleaseScanHandler {
	return &DripReleaseScanHandler{
		log:            log.With("handler", "drip_release_scan"),
		programRepo:    programRepo,
		phaseRepo:      phaseRepo,
		lessonRepo:     lessonRepo,
		progressRepo:   progressRepo,
		enrollmentRepo: enrollmentRepo,
		dripService:    dripService,
		notifier:       notifier,
	}
}

func (h *DripReleaseScanHandler) Type() string { return types.JobTypeDripReleaseScan }

func (h *DripReleaseScanHandler) Run(ctx *runtime.Context) error {
	window := defaultScanWindow
	if v, ok := ctx.Payload()["window_minutes"].(float64); ok && v > 0 {
		window = time.Duration(v) * time.Minute
	}
	now := time.Now().UTC()
	since := now.Add(-window)

	enrollments, err := h.enrollmentRepo.ListByStatus(ctx.Ctx, nil, types.EnrollmentActive)
	if err != nil {
		ctx.Fail("scan", fmt.Errorf("list enrollments: %w", err))
		return err
	}

	ctx.Progress("scan", 20, fmt.Sprintf("Scanning %d enrollments", len(enrollments)))

	notified := 0
	for i, enrollment := range enrollments {
		if enrollment == nil {
			continue
		}
		n, sErr := h.scanEnrollment(ctx, enrollment, since, now)
		if sErr != nil {
			h.log.Warn("Drip scan failed for enrollment", "enrollment_id", enrollment.ID, "error", sErr)
			continue
		}
		notified += n
		if len(enrollments) > 0 && i%50 == 49 {
			pct := 20 + (70*(i+1))/len(enrollments)
			ctx.Progress("scan", pct, fmt.Sprintf("Scanned %d of %d", i+1, len(enrollments)))
		}
	}

	ctx.Succeed("done", map[string]any{
		"enrollments": len(enrollments),
		"unlocks":     notified,
	})
	return nil
}

func (h *DripReleaseScanHandler) scanEnrollment(ctx *runtime.Context, enrollment *types.Enrollment, since, now time.Time) (int, error) {
	programs, err := h.programRepo.GetByIDs(ctx.Ctx, nil, []uuid.UUID{enrollment.ProgramID})
	if err != nil || len(programs) == 0 || programs[0] == nil {
		return 0, fmt.Errorf("program not found")
	}
	program := programs[0]

	phases, err := h.phaseRepo.GetByProgramID(ctx.Ctx, nil, enrollment.ProgramID)
	if err != nil {
		return 0, err
	}
	sort.Slice(phases, func(i, j int) bool { return phases[i].Position < phases[j].Position })

	lessons, err := h.lessonRepo.GetByProgramID(ctx.Ctx, nil, enrollment.ProgramID)
	if err != nil {
		return 0, err
	}
	progress, err := h.progressRepo.GetByEnrollmentID(ctx.Ctx, nil, enrollment.ID)
	if err != nil {
		return 0, err
	}
	idx := services.NewProgressIndex(lessons, progress)

	byPhase := make(map[uuid.UUID][]*types.Lesson, len(phases))
	for _, l := range lessons {
		if l != nil {
			byPhase[l.PhaseID] = append(byPhase[l.PhaseID], l)
		}
	}

	notified := 0
	var prevPhaseID *uuid.UUID
	for _, phase := range phases {
		siblings := byPhase[phase.ID]
		sort.Slice(siblings, func(i, j int) bool { return siblings[i].Position < siblings[j].Position })

		var released []uuid.UUID
		var prevLessonID *uuid.UUID
		for _, lesson := range siblings {
			state := h.dripService.EvaluateLessonUnlock(now, enrollment, phase, prevPhaseID, lesson, prevLessonID, program.SequentialLessons, idx)
			if state.Unlocked && state.UnlockAt != nil && state.UnlockAt.After(since) && !state.UnlockAt.After(now) {
				released = append(released, lesson.ID)
			}
			id := lesson.ID
			prevLessonID = &id
		}
		if len(released) > 0 && h.notifier != nil {
			h.notifier.ContentUnlocked(enrollment.UserID, enrollment.ProgramID, phase.ID, released)
			notified += len(released)
		}
		id := phase.ID
		prevPhaseID = &id
	}
	return notified, nil
}
