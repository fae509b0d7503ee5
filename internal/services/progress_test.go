package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/sse"
	"github.com/ghprograms/programs-backend/internal/types"
)

func newProgressService(gdb *gorm.DB) ProgressService {
	log := logger.NewNop()
	return NewProgressService(
		gdb,
		log,
		repos.NewProgramRepo(gdb, log),
		repos.NewPhaseRepo(gdb, log),
		repos.NewLessonRepo(gdb, log),
		repos.NewTacticRepo(gdb, log),
		repos.NewLessonResourceRepo(gdb, log),
		repos.NewAssessmentRepo(gdb, log),
		repos.NewAssessmentQuestionRepo(gdb, log),
		repos.NewAssessmentAttemptRepo(gdb, log),
		repos.NewEnrollmentRepo(gdb, log),
		repos.NewLessonProgressRepo(gdb, log),
		repos.NewTacticProgressRepo(gdb, log),
		repos.NewUserEventRepo(gdb, log),
		NewDripService(log),
		nil,
		nil,
		nil,
	)
}

func seedVideoResource(t *testing.T, gdb *gorm.DB, lessonID uuid.UUID) {
	t.Helper()
	res := &types.LessonResource{
		ID:       uuid.New(),
		LessonID: lessonID,
		Kind:     types.ResourceKindVideo,
		Title:    "Walkthrough",
	}
	if err := gdb.Create(res).Error; err != nil {
		t.Fatalf("seed resource: %v", err)
	}
}

func seedTactic(t *testing.T, gdb *gorm.DB, lessonID uuid.UUID, required bool, pos int) *types.Tactic {
	t.Helper()
	tac := &types.Tactic{
		ID:       uuid.New(),
		LessonID: lessonID,
		Position: pos,
		Title:    "Tactic",
		Required: required,
	}
	if err := gdb.Create(tac).Error; err != nil {
		t.Fatalf("seed tactic: %v", err)
	}
	return tac
}

func seedAssessment(t *testing.T, gdb *gorm.DB, lessonID uuid.UUID, passPct float64, maxAttempts int, questions []*types.AssessmentQuestion) *types.Assessment {
	t.Helper()
	a := &types.Assessment{
		ID:          uuid.New(),
		LessonID:    lessonID,
		Title:       "Check",
		PassPct:     passPct,
		MaxAttempts: maxAttempts,
	}
	if err := gdb.Create(a).Error; err != nil {
		t.Fatalf("seed assessment: %v", err)
	}
	for i, q := range questions {
		q.ID = uuid.New()
		q.AssessmentID = a.ID
		q.Position = i
		if q.Options == nil {
			q.Options = []byte(`["a","b","c"]`)
		}
		if q.Prompt == "" {
			q.Prompt = "?"
		}
		if err := gdb.Create(q).Error; err != nil {
			t.Fatalf("seed question: %v", err)
		}
	}
	return a
}

func TestOpenLesson(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 2)
	svc := newProgressService(gdb)
	ctx := ctxForUser(fx.User.ID)

	row, err := svc.OpenLesson(ctx, fx.Lessons[0].ID)
	if err != nil {
		t.Fatalf("OpenLesson: %v", err)
	}
	if row.Status != types.ProgressInProgress {
		t.Fatalf("status = %s, want in_progress", row.Status)
	}
	if row.StartedAt == nil || row.LastOpenedAt == nil {
		t.Fatalf("expected started_at and last_opened_at set")
	}

	// Reopening keeps the same row.
	again, err := svc.OpenLesson(ctx, fx.Lessons[0].ID)
	if err != nil {
		t.Fatalf("OpenLesson again: %v", err)
	}
	if again.ID != row.ID {
		t.Fatalf("expected one progress row per user+lesson")
	}
}

func TestOpenLessonLocked(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 1)
	if err := gdb.Model(fx.Phase).Updates(map[string]interface{}{
		"drip_kind":   types.DripOnDate,
		"drip_config": []byte(`{"at":"2099-01-01T00:00:00Z"}`),
	}).Error; err != nil {
		t.Fatalf("lock phase: %v", err)
	}
	svc := newProgressService(gdb)

	_, err := svc.OpenLesson(ctxForUser(fx.User.ID), fx.Lessons[0].ID)
	if err == nil || !strings.Contains(err.Error(), "locked") {
		t.Fatalf("expected locked error, got %v", err)
	}
}

func TestOpenLessonRequiresEnrollment(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 1)
	svc := newProgressService(gdb)

	stranger := &types.User{ID: uuid.New(), Email: "s@example.com", Password: "x", FirstName: "S", LastName: "T"}
	if err := gdb.Create(stranger).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.OpenLesson(ctxForUser(stranger.ID), fx.Lessons[0].ID); err == nil {
		t.Fatalf("expected error for user without enrollment")
	}
}

func TestRecordVideoProgressRatchet(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 1)
	lesson := fx.Lessons[0]
	seedVideoResource(t, gdb, lesson.ID)
	if err := gdb.Model(lesson).Update("video_required_pct", 80).Error; err != nil {
		t.Fatalf("set threshold: %v", err)
	}
	svc := newProgressService(gdb)
	ctx := ctxForUser(fx.User.ID)

	row, err := svc.RecordVideoProgress(ctx, lesson.ID, 50, 60)
	if err != nil {
		t.Fatalf("RecordVideoProgress: %v", err)
	}
	if row.VideoWatchedPct != 50 {
		t.Fatalf("watched = %v, want 50", row.VideoWatchedPct)
	}
	if row.Status == types.ProgressCompleted {
		t.Fatalf("lesson must not complete below the video threshold")
	}

	// A lower report never regresses the ratchet.
	row, err = svc.RecordVideoProgress(ctx, lesson.ID, 20, 30)
	if err != nil {
		t.Fatalf("RecordVideoProgress: %v", err)
	}
	if row.VideoWatchedPct != 50 {
		t.Fatalf("watched = %v, want ratchet held at 50", row.VideoWatchedPct)
	}
	if row.TimeSpentSeconds != 90 {
		t.Fatalf("time spent = %d, want 90", row.TimeSpentSeconds)
	}

	// Crossing the threshold completes the lesson (video is the only gate).
	row, err = svc.RecordVideoProgress(ctx, lesson.ID, 85, 0)
	if err != nil {
		t.Fatalf("RecordVideoProgress: %v", err)
	}
	if row.Status != types.ProgressCompleted {
		t.Fatalf("status = %s, want completed at 85%% watched", row.Status)
	}
	if !row.VideoGateMet {
		t.Fatalf("expected video gate met")
	}

	var enrollment types.Enrollment
	if err := gdb.First(&enrollment, "id = ?", fx.Enrollment.ID).Error; err != nil {
		t.Fatalf("reload enrollment: %v", err)
	}
	if enrollment.ProgressPct != 100 {
		t.Fatalf("enrollment pct = %v, want 100", enrollment.ProgressPct)
	}
	if enrollment.Status != types.EnrollmentCompleted {
		t.Fatalf("enrollment status = %s, want completed", enrollment.Status)
	}
}

func TestVideoGateZeroThreshold(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 1)
	lesson := fx.Lessons[0]
	seedVideoResource(t, gdb, lesson.ID)
	if err := gdb.Model(lesson).Update("video_required_pct", 0).Error; err != nil {
		t.Fatalf("set threshold: %v", err)
	}
	svc := newProgressService(gdb)

	// A zero threshold means any watch completes the gate.
	row, err := svc.RecordVideoProgress(ctxForUser(fx.User.ID), lesson.ID, 1, 5)
	if err != nil {
		t.Fatalf("RecordVideoProgress: %v", err)
	}
	if row.Status != types.ProgressCompleted {
		t.Fatalf("status = %s, want completed with zero threshold", row.Status)
	}
}

func TestTacticGate(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 1)
	lesson := fx.Lessons[0]
	required := seedTactic(t, gdb, lesson.ID, true, 0)
	optional := seedTactic(t, gdb, lesson.ID, false, 1)
	second := seedTactic(t, gdb, lesson.ID, true, 2)
	svc := newProgressService(gdb)
	ctx := ctxForUser(fx.User.ID)

	// Optional tactics never move the gate.
	row, err := svc.CompleteTactic(ctx, optional.ID, "")
	if err != nil {
		t.Fatalf("CompleteTactic: %v", err)
	}
	if row.Status == types.ProgressCompleted {
		t.Fatalf("optional tactic alone must not complete the lesson")
	}

	if _, err = svc.CompleteTactic(ctx, required.ID, "felt good"); err != nil {
		t.Fatalf("CompleteTactic: %v", err)
	}
	row, err = svc.CompleteTactic(ctx, second.ID, "")
	if err != nil {
		t.Fatalf("CompleteTactic: %v", err)
	}
	if row.Status != types.ProgressCompleted {
		t.Fatalf("status = %s, want completed after all required tactics", row.Status)
	}

	// Completion is sticky: uncompleting afterwards keeps the lesson done.
	row, err = svc.UncompleteTactic(ctx, second.ID)
	if err != nil {
		t.Fatalf("UncompleteTactic: %v", err)
	}
	if row.Status != types.ProgressCompleted {
		t.Fatalf("uncomplete must not revert a completed lesson")
	}

	var tp types.TacticProgress
	if err := gdb.First(&tp, "user_id = ? AND tactic_id = ?", fx.User.ID, required.ID).Error; err != nil {
		t.Fatalf("reload tactic progress: %v", err)
	}
	if tp.Note != "felt good" {
		t.Fatalf("note = %q, want saved note", tp.Note)
	}
}

func TestSubmitAssessment(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 1)
	lesson := fx.Lessons[0]
	q1 := &types.AssessmentQuestion{CorrectIndex: 0, Points: 1}
	q2 := &types.AssessmentQuestion{CorrectIndex: 1, Points: 3}
	assessment := seedAssessment(t, gdb, lesson.ID, 70, 2, []*types.AssessmentQuestion{q1, q2})
	svc := newProgressService(gdb)
	ctx := ctxForUser(fx.User.ID)

	// One point of four: 25%, below the 70% bar.
	attempt, row, err := svc.SubmitAssessment(ctx, assessment.ID, map[string]int{
		q1.ID.String(): 0,
		q2.ID.String(): 2,
	})
	if err != nil {
		t.Fatalf("SubmitAssessment: %v", err)
	}
	if attempt.Passed || attempt.ScorePct != 25 {
		t.Fatalf("attempt = %v %v, want failed at 25", attempt.Passed, attempt.ScorePct)
	}
	if row.Status == types.ProgressCompleted {
		t.Fatalf("failed attempt must not complete the lesson")
	}

	// Perfect retake passes and completes the assessment-gated lesson.
	attempt, row, err = svc.SubmitAssessment(ctx, assessment.ID, map[string]int{
		q1.ID.String(): 0,
		q2.ID.String(): 1,
	})
	if err != nil {
		t.Fatalf("SubmitAssessment: %v", err)
	}
	if !attempt.Passed || attempt.ScorePct != 100 {
		t.Fatalf("attempt = %v %v, want passed at 100", attempt.Passed, attempt.ScorePct)
	}
	if attempt.AttemptNo != 2 {
		t.Fatalf("attempt_no = %d, want 2", attempt.AttemptNo)
	}
	if row.Status != types.ProgressCompleted {
		t.Fatalf("status = %s, want completed after passing", row.Status)
	}

	// Attempt limit reached.
	if _, _, err = svc.SubmitAssessment(ctx, assessment.ID, map[string]int{}); err == nil {
		t.Fatalf("expected attempt limit error")
	}
}

func TestMarkLessonComplete(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 2)
	svc := newProgressService(gdb)
	ctx := ctxForUser(fx.User.ID)

	// Gateless lesson completes on explicit confirm only.
	row, err := svc.MarkLessonComplete(ctx, fx.Lessons[0].ID)
	if err != nil {
		t.Fatalf("MarkLessonComplete: %v", err)
	}
	if row.Status != types.ProgressCompleted {
		t.Fatalf("status = %s, want completed", row.Status)
	}

	// Idempotent.
	again, err := svc.MarkLessonComplete(ctx, fx.Lessons[0].ID)
	if err != nil {
		t.Fatalf("MarkLessonComplete again: %v", err)
	}
	if again.CompletedAt == nil || !again.CompletedAt.Equal(*row.CompletedAt) {
		t.Fatalf("repeat completion must keep the original timestamp")
	}

	var enrollment types.Enrollment
	if err := gdb.First(&enrollment, "id = ?", fx.Enrollment.ID).Error; err != nil {
		t.Fatalf("reload enrollment: %v", err)
	}
	if enrollment.ProgressPct != 50 {
		t.Fatalf("enrollment pct = %v, want 50 after 1 of 2 lessons", enrollment.ProgressPct)
	}
}

func newProgressServiceNotifying(gdb *gorm.DB, emitter SSEEmitter) ProgressService {
	log := logger.NewNop()
	return NewProgressService(
		gdb,
		log,
		repos.NewProgramRepo(gdb, log),
		repos.NewPhaseRepo(gdb, log),
		repos.NewLessonRepo(gdb, log),
		repos.NewTacticRepo(gdb, log),
		repos.NewLessonResourceRepo(gdb, log),
		repos.NewAssessmentRepo(gdb, log),
		repos.NewAssessmentQuestionRepo(gdb, log),
		repos.NewAssessmentAttemptRepo(gdb, log),
		repos.NewEnrollmentRepo(gdb, log),
		repos.NewLessonProgressRepo(gdb, log),
		repos.NewTacticProgressRepo(gdb, log),
		repos.NewUserEventRepo(gdb, log),
		NewDripService(log),
		nil,
		NewProgressNotifier(emitter),
		nil,
	)
}

func TestCompletionUnlocksPrerequisitePhase(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 1)

	// A second phase that opens once the first one is fully done.
	cfg := fmt.Sprintf(`{"prerequisite_phase_id":%q,"min_percent":100}`, fx.Phase.ID.String())
	phase2 := &types.Phase{
		ID:         uuid.New(),
		ProgramID:  fx.Program.ID,
		Position:   1,
		Title:      "Phase Two",
		DripKind:   types.DripAfterPrerequisite,
		DripConfig: datatypes.JSON(cfg),
	}
	if err := gdb.Create(phase2).Error; err != nil {
		t.Fatalf("seed phase: %v", err)
	}
	locked := &types.Lesson{
		ID:        uuid.New(),
		PhaseID:   phase2.ID,
		ProgramID: fx.Program.ID,
		Position:  0,
		Title:     "Locked Lesson",
	}
	if err := gdb.Create(locked).Error; err != nil {
		t.Fatalf("seed lesson: %v", err)
	}

	emitter := &recordingEmitter{}
	svc := newProgressServiceNotifying(gdb, emitter)
	ctx := ctxForUser(fx.User.ID)

	if _, err := svc.MarkLessonComplete(ctx, fx.Lessons[0].ID); err != nil {
		t.Fatalf("MarkLessonComplete: %v", err)
	}

	events := emitter.byEvent(sse.SSEEventContentUnlocked)
	if len(events) != 1 {
		t.Fatalf("expected 1 ContentUnlocked event, got %d", len(events))
	}
	data, ok := events[0].Data.(map[string]any)
	if !ok {
		t.Fatalf("unexpected event data %T", events[0].Data)
	}
	if data["phase_id"] != phase2.ID {
		t.Fatalf("phase_id = %v, want %v", data["phase_id"], phase2.ID)
	}
	lessonIDs, ok := data["lesson_ids"].([]uuid.UUID)
	if !ok || len(lessonIDs) != 1 || lessonIDs[0] != locked.ID {
		t.Fatalf("lesson_ids = %v, want [%v]", data["lesson_ids"], locked.ID)
	}
}

func TestCompletionEmitsNoUnlockWhenNothingOpens(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 2)
	emitter := &recordingEmitter{}
	svc := newProgressServiceNotifying(gdb, emitter)

	// 1 of 2 lessons done: no drip rule flips, so no unlock event.
	if _, err := svc.MarkLessonComplete(ctxForUser(fx.User.ID), fx.Lessons[0].ID); err != nil {
		t.Fatalf("MarkLessonComplete: %v", err)
	}
	if got := len(emitter.byEvent(sse.SSEEventContentUnlocked)); got != 0 {
		t.Fatalf("expected no ContentUnlocked events, got %d", got)
	}
}

func TestMarkLessonCompleteRejectsUnmetGates(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 1)
	lesson := fx.Lessons[0]
	seedVideoResource(t, gdb, lesson.ID)
	if err := gdb.Model(lesson).Update("video_required_pct", 90).Error; err != nil {
		t.Fatalf("set threshold: %v", err)
	}
	seedTactic(t, gdb, lesson.ID, true, 0)
	svc := newProgressService(gdb)

	_, err := svc.MarkLessonComplete(ctxForUser(fx.User.ID), lesson.ID)
	if err == nil {
		t.Fatalf("expected unmet-gates rejection")
	}
	if !strings.Contains(err.Error(), "video") || !strings.Contains(err.Error(), "tactics") {
		t.Fatalf("error should name the unmet gates, got %v", err)
	}
}

func TestGetLessonProgressGateState(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 1)
	lesson := fx.Lessons[0]
	seedVideoResource(t, gdb, lesson.ID)
	seedTactic(t, gdb, lesson.ID, true, 0)
	svc := newProgressService(gdb)

	row, gates, err := svc.GetLessonProgress(ctxForUser(fx.User.ID), lesson.ID)
	if err != nil {
		t.Fatalf("GetLessonProgress: %v", err)
	}
	if row.Status != types.ProgressNotStarted {
		t.Fatalf("status = %s, want not_started before any activity", row.Status)
	}
	if !gates.HasVideo || !gates.HasTactics || gates.HasAssessment {
		t.Fatalf("gate detection wrong: %+v", gates)
	}
	if gates.Gateless() || gates.AllMet() {
		t.Fatalf("expected unmet gates: %+v", gates)
	}
}

func TestGetProgramProgress(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 4)
	svc := newProgressService(gdb)
	ctx := ctxForUser(fx.User.ID)

	for _, l := range fx.Lessons[:3] {
		if _, err := svc.MarkLessonComplete(ctx, l.ID); err != nil {
			t.Fatalf("MarkLessonComplete: %v", err)
		}
	}

	pp, err := svc.GetProgramProgress(ctx, fx.Program.ID)
	if err != nil {
		t.Fatalf("GetProgramProgress: %v", err)
	}
	if pp.CompletedLessons != 3 || pp.TotalLessons != 4 {
		t.Fatalf("completed/total = %d/%d, want 3/4", pp.CompletedLessons, pp.TotalLessons)
	}
	if pp.ProgressPct != 75 {
		t.Fatalf("pct = %v, want 75", pp.ProgressPct)
	}
	if len(pp.Phases) != 1 || pp.Phases[0].ProgressPct != 75 {
		t.Fatalf("phase roll-up wrong: %+v", pp.Phases)
	}
}

func TestSequentialLessonOrder(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 2)
	if err := gdb.Model(fx.Program).Update("sequential_lessons", true).Error; err != nil {
		t.Fatalf("set sequential: %v", err)
	}
	svc := newProgressService(gdb)
	ctx := ctxForUser(fx.User.ID)

	if _, err := svc.OpenLesson(ctx, fx.Lessons[1].ID); err == nil {
		t.Fatalf("expected second lesson locked before first completes")
	}
	if _, err := svc.OpenLesson(ctx, fx.Lessons[0].ID); err != nil {
		t.Fatalf("OpenLesson first: %v", err)
	}
	if _, err := svc.MarkLessonComplete(ctx, fx.Lessons[0].ID); err != nil {
		t.Fatalf("MarkLessonComplete: %v", err)
	}
	if _, err := svc.OpenLesson(ctx, fx.Lessons[1].ID); err != nil {
		t.Fatalf("OpenLesson second after first completed: %v", err)
	}
}

func TestUserEventsAppended(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 1)
	svc := newProgressService(gdb)
	ctx := ctxForUser(fx.User.ID)

	if _, err := svc.OpenLesson(ctx, fx.Lessons[0].ID); err != nil {
		t.Fatalf("OpenLesson: %v", err)
	}
	if _, err := svc.MarkLessonComplete(ctx, fx.Lessons[0].ID); err != nil {
		t.Fatalf("MarkLessonComplete: %v", err)
	}

	var events []types.UserEvent
	if err := gdb.Where("user_id = ?", fx.User.ID).Order("created_at").Find(&events).Error; err != nil {
		t.Fatalf("load events: %v", err)
	}
	kinds := make(map[string]int, len(events))
	for _, e := range events {
		kinds[e.Type]++
	}
	for _, want := range []string{types.EventLessonOpened, types.EventLessonCompleted, types.EventProgramCompleted} {
		if kinds[want] == 0 {
			t.Fatalf("missing %s event; got %v", want, kinds)
		}
	}
}
