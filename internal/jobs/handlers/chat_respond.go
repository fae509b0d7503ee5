package handlers

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ghprograms/programs-backend/internal/clients/openai"
	"github.com/ghprograms/programs-backend/internal/jobs/runtime"
	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/services"
	"github.com/ghprograms/programs-backend/internal/types"
)

const companionInstructions = `You are the GH Programs companion, a supportive coach helping a learner work through their program. Answer from the learner's current program context when it is provided. Be concrete and encouraging, and keep answers short enough to read between lessons.`

// historyLimit bounds how many prior turns the model sees.
const historyLimit = 30

type ChatRespondHandler struct {
	log *logger.Logger

	threadRepo     repos.ChatThreadRepo
	messageRepo    repos.ChatMessageRepo
	programRepo    repos.ProgramRepo
	phaseRepo      repos.PhaseRepo
	lessonRepo     repos.LessonRepo
	progressRepo   repos.LessonProgressRepo
	enrollmentRepo repos.EnrollmentRepo
	resourceRepo   repos.LessonResourceRepo
	segmentRepo    repos.TranscriptSegmentRepo

	ai       openai.Client
	notifier services.ChatNotifier
}

func NewChatRespondHandler(
	log *logger.Logger,
	threadRepo repos.ChatThreadRepo,
	messageRepo repos.ChatMessageRepo,
	programRepo repos.ProgramRepo,
	phaseRepo repos.PhaseRepo,
	lessonRepo repos.LessonRepo,
	progressRepo repos.LessonProgressRepo,
	enrollmentRepo repos.EnrollmentRepo,
	resourceRepo repos.LessonResourceRepo,
	segmentRepo repos.TranscriptSegmentRepo,
	ai openai.Client,
	notifier services.ChatNotifier,
) *ChatRespondHandler {
	return &ChatRespondHandler{
		log:            log.With("handler", "chat_respond"),
		threadRepo:     threadRepo,
		messageRepo:    messageRepo,
		programRepo:    programRepo,
		phaseRepo:      phaseRepo,
		lessonRepo:     lessonRepo,
		progressRepo:   progressRepo,
		enrollmentRepo: enrollmentRepo,
		resourceRepo:   resourceRepo,
		segmentRepo:    segmentRepo,
		ai:             ai,
		notifier:       notifier,
	}
}

func (h *ChatRespondHandler) Type() string { return types.JobTypeChatRespond }

func (h *ChatRespondHandler) Run(ctx *runtime.Context) error {
	threadID, ok := ctx.PayloadUUID("thread_id")
	if !ok {
		err := fmt.Errorf("missing thread_id")
		ctx.Fail("decode", err)
		return err
	}
	assistantID, ok := ctx.PayloadUUID("assistant_message_id")
	if !ok {
		err := fmt.Errorf("missing assistant_message_id")
		ctx.Fail("decode", err)
		return err
	}

	ctx.Progress("load", 10, "Loading conversation")

	threads, err := h.threadRepo.GetByIDs(ctx.Ctx, nil, []uuid.UUID{threadID})
	if err != nil || len(threads) == 0 || threads[0] == nil {
		err = fmt.Errorf("thread not found")
		h.failMessage(ctx, assistantID)
		ctx.Fail("load", err)
		return err
	}
	thread := threads[0]

	history, err := h.messageRepo.GetByThreadID(ctx.Ctx, nil, threadID, 0)
	if err != nil {
		h.failMessage(ctx, assistantID)
		ctx.Fail("load", err)
		return err
	}

	ctx.Progress("context", 30, "Building program context")
	contextBlock := h.buildContextBlock(ctx, thread)

	messages := make([]openai.Message, 0, historyLimit+1)
	if contextBlock != "" {
		messages = append(messages, openai.Message{Role: types.ChatRoleSystem, Content: contextBlock})
	}
	start := 0
	if len(history) > historyLimit {
		start = len(history) - historyLimit
	}
	for _, m := range history[start:] {
		if m == nil || m.ID == assistantID || m.Status != types.ChatStatusComplete {
			continue
		}
		messages = append(messages, openai.Message{Role: m.Role, Content: m.Content})
	}

	ctx.Progress("respond", 60, "Generating response")
	reply, err := h.ai.GenerateText(ctx.Ctx, companionInstructions, messages)
	if err != nil {
		h.failMessage(ctx, assistantID)
		ctx.Fail("respond", err)
		return err
	}

	now := time.Now().UTC()
	if err := h.messageRepo.UpdateFields(ctx.Ctx, nil, assistantID, map[string]interface{}{
		"content":    reply,
		"status":     types.ChatStatusComplete,
		"updated_at": now,
	}); err != nil {
		ctx.Fail("store", err)
		return err
	}
	_ = h.threadRepo.UpdateFields(ctx.Ctx, nil, threadID, map[string]interface{}{
		"last_message_at": now,
		"updated_at":      now,
	})

	if h.notifier != nil {
		updated, gErr := h.messageRepo.GetByIDs(ctx.Ctx, nil, []uuid.UUID{assistantID})
		if gErr == nil && len(updated) > 0 && updated[0] != nil {
			h.notifier.ChatMessageUpdated(thread.UserID, updated[0])
		}
	}

	ctx.Succeed("done", map[string]any{"assistant_message_id": assistantID.String()})
	return nil
}

// failMessage flips the placeholder so the client stops waiting on it.
func (h *ChatRespondHandler) failMessage(ctx *runtime.Context, assistantID uuid.UUID) {
	err := h.messageRepo.UpdateFields(ctx.Ctx, nil, assistantID, map[string]interface{}{
		"status":     types.ChatStatusFailed,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		h.log.Warn("Failed to mark assistant message failed", "message_id", assistantID, "error", err)
		return
	}
	if h.notifier != nil && ctx.Job != nil {
		updated, gErr := h.messageRepo.GetByIDs(ctx.Ctx, nil, []uuid.UUID{assistantID})
		if gErr == nil && len(updated) > 0 && updated[0] != nil {
			h.notifier.ChatMessageUpdated(ctx.Job.OwnerUserID, updated[0])
		}
	}
}

// buildContextBlock summarizes the learner's position in the thread's
// program: progress counts, the current lesson, and transcript excerpts
// from that lesson's ingested resources. Threads without a program scope
// get no block.
func (h *ChatRespondHandler) buildContextBlock(ctx *runtime.Context, thread *types.ChatThread) string {
	if thread.ProgramID == nil || *thread.ProgramID == uuid.Nil {
		return ""
	}
	programID := *thread.ProgramID

	enrollment, err := h.enrollmentRepo.GetByUserAndProgram(ctx.Ctx, nil, thread.UserID, programID)
	if err != nil || enrollment == nil {
		return ""
	}
	programs, err := h.programRepo.GetByIDs(ctx.Ctx, nil, []uuid.UUID{programID})
	if err != nil || len(programs) == 0 || programs[0] == nil {
		return ""
	}
	program := programs[0]

	lessons, err := h.lessonRepo.GetByProgramID(ctx.Ctx, nil, programID)
	if err != nil {
		return ""
	}
	progress, err := h.progressRepo.GetByEnrollmentID(ctx.Ctx, nil, enrollment.ID)
	if err != nil {
		return ""
	}

	completed := make(map[uuid.UUID]bool, len(progress))
	for _, p := range progress {
		if p != nil && p.Status == types.ProgressCompleted {
			completed[p.LessonID] = true
		}
	}

	current := h.currentLesson(ctx, programID, lessons, completed)

	var b strings.Builder
	fmt.Fprintf(&b, "Program context for this learner:\n")
	fmt.Fprintf(&b, "- Program: %s\n", program.Title)
	fmt.Fprintf(&b, "- Enrollment status: %s\n", enrollment.Status)
	fmt.Fprintf(&b, "- Lessons completed: %d of %d\n", len(completed), len(lessons))
	if current != nil {
		fmt.Fprintf(&b, "- Current lesson: %s\n", current.Title)
		if strings.TrimSpace(current.Summary) != "" {
			fmt.Fprintf(&b, "- Lesson summary: %s\n", strings.TrimSpace(current.Summary))
		}
		if excerpt := h.transcriptExcerpt(ctx, current.ID); excerpt != "" {
			fmt.Fprintf(&b, "- Lesson material excerpts:\n%s\n", excerpt)
		}
	}
	return b.String()
}

func (h *ChatRespondHandler) currentLesson(ctx *runtime.Context, programID uuid.UUID, lessons []*types.Lesson, completed map[uuid.UUID]bool) *types.Lesson {
	phases, err := h.phaseRepo.GetByProgramID(ctx.Ctx, nil, programID)
	if err != nil {
		return nil
	}
	sort.Slice(phases, func(i, j int) bool { return phases[i].Position < phases[j].Position })

	byPhase := make(map[uuid.UUID][]*types.Lesson, len(phases))
	for _, l := range lessons {
		if l != nil {
			byPhase[l.PhaseID] = append(byPhase[l.PhaseID], l)
		}
	}
	for _, phase := range phases {
		siblings := byPhase[phase.ID]
		sort.Slice(siblings, func(i, j int) bool { return siblings[i].Position < siblings[j].Position })
		for _, lesson := range siblings {
			if !completed[lesson.ID] {
				return lesson
			}
		}
	}
	return nil
}

func (h *ChatRespondHandler) transcriptExcerpt(ctx *runtime.Context, lessonID uuid.UUID) string {
	const maxChars = 3000

	resources, err := h.resourceRepo.GetByLessonIDs(ctx.Ctx, nil, []uuid.UUID{lessonID})
	if err != nil {
		return ""
	}

	var b strings.Builder
	for _, res := range resources {
		if res == nil || res.IngestStatus != types.IngestSucceeded {
			continue
		}
		segments, sErr := h.segmentRepo.GetByResourceID(ctx.Ctx, nil, res.ID)
		if sErr != nil {
			continue
		}
		for _, seg := range segments {
			if seg == nil || strings.TrimSpace(seg.Text) == "" {
				continue
			}
			line := fmt.Sprintf("  [%s] %s\n", res.Title, strings.TrimSpace(seg.Text))
			if b.Len()+len(line) > maxChars {
				return b.String()
			}
			b.WriteString(line)
		}
	}
	return b.String()
}
