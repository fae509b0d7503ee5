package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/ghprograms/programs-backend/internal/sse"
	"github.com/ghprograms/programs-backend/internal/types"
)

// =========================
// Job notifier
// =========================

type JobNotifier interface {
	JobCreated(userID uuid.UUID, job *types.JobRun)
	JobProgress(userID uuid.UUID, job *types.JobRun, stage string, progress int, message string)
	JobFailed(userID uuid.UUID, job *types.JobRun, stage string, errorMessage string)
	JobDone(userID uuid.UUID, job *types.JobRun)
}

type jobNotifier struct {
	emit SSEEmitter
}

func NewJobNotifier(emit SSEEmitter) JobNotifier {
	return &jobNotifier{emit: emit}
}

func (n *jobNotifier) JobCreated(userID uuid.UUID, job *types.JobRun) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), sse.SSEMessage{
		Channel: userID.String(),
		Event:   sse.SSEEventJobCreated,
		Data:    map[string]any{"job": job},
	})
}

func (n *jobNotifier) JobProgress(userID uuid.UUID, job *types.JobRun, stage string, progress int, message string) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), sse.SSEMessage{
		Channel: userID.String(),
		Event:   sse.SSEEventJobProgress,
		Data: map[string]any{
			"job_id":   safeJobID(job),
			"job_type": safeJobType(job),
			"stage":    stage,
			"progress": progress,
			"message":  message,
			"job":      job,
		},
	})
}

func (n *jobNotifier) JobFailed(userID uuid.UUID, job *types.JobRun, stage string, errorMessage string) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), sse.SSEMessage{
		Channel: userID.String(),
		Event:   sse.SSEEventJobFailed,
		Data: map[string]any{
			"job_id":   safeJobID(job),
			"job_type": safeJobType(job),
			"stage":    stage,
			"error":    errorMessage,
			"job":      job,
		},
	})
}

func (n *jobNotifier) JobDone(userID uuid.UUID, job *types.JobRun) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), sse.SSEMessage{
		Channel: userID.String(),
		Event:   sse.SSEEventJobDone,
		Data: map[string]any{
			"job_id":   safeJobID(job),
			"job_type": safeJobType(job),
			"job":      job,
		},
	})
}

// =========================
// Progress notifier
// =========================

type ProgressNotifier interface {
	LessonProgressUpdated(userID uuid.UUID, progress *types.LessonProgress)
	LessonCompleted(userID uuid.UUID, progress *types.LessonProgress, programID uuid.UUID)
	PhaseCompleted(userID uuid.UUID, phase *types.Phase, programID uuid.UUID)
	ProgramCompleted(userID uuid.UUID, enrollment *types.Enrollment)
	ContentUnlocked(userID uuid.UUID, programID uuid.UUID, phaseID uuid.UUID, lessonIDs []uuid.UUID)
}

type progressNotifier struct {
	emit SSEEmitter
}

func NewProgressNotifier(emit SSEEmitter) ProgressNotifier {
	return &progressNotifier{emit: emit}
}

func (n *progressNotifier) LessonProgressUpdated(userID uuid.UUID, progress *types.LessonProgress) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), sse.SSEMessage{
		Channel: userID.String(),
		Event:   sse.SSEEventLessonProgress,
		Data:    map[string]any{"progress": progress},
	})
}

func (n *progressNotifier) LessonCompleted(userID uuid.UUID, progress *types.LessonProgress, programID uuid.UUID) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), sse.SSEMessage{
		Channel: userID.String(),
		Event:   sse.SSEEventLessonCompleted,
		Data: map[string]any{
			"progress":   progress,
			"program_id": programID,
		},
	})
}

func (n *progressNotifier) PhaseCompleted(userID uuid.UUID, phase *types.Phase, programID uuid.UUID) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), sse.SSEMessage{
		Channel: userID.String(),
		Event:   sse.SSEEventPhaseCompleted,
		Data: map[string]any{
			"phase":      phase,
			"program_id": programID,
		},
	})
}

func (n *progressNotifier) ProgramCompleted(userID uuid.UUID, enrollment *types.Enrollment) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), sse.SSEMessage{
		Channel: userID.String(),
		Event:   sse.SSEEventProgramCompleted,
		Data:    map[string]any{"enrollment": enrollment},
	})
}

func (n *progressNotifier) ContentUnlocked(userID uuid.UUID, programID uuid.UUID, phaseID uuid.UUID, lessonIDs []uuid.UUID) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), sse.SSEMessage{
		Channel: userID.String(),
		Event:   sse.SSEEventContentUnlocked,
		Data: map[string]any{
			"program_id": programID,
			"phase_id":   phaseID,
			"lesson_ids": lessonIDs,
		},
	})
}

// =========================
// Enrollment notifier
// =========================

type EnrollmentNotifier interface {
	EnrollmentCreated(userID uuid.UUID, enrollment *types.Enrollment)
	EnrollmentUpdated(userID uuid.UUID, enrollment *types.Enrollment)
}

type enrollmentNotifier struct {
	emit SSEEmitter
}

func NewEnrollmentNotifier(emit SSEEmitter) EnrollmentNotifier {
	return &enrollmentNotifier{emit: emit}
}

func (n *enrollmentNotifier) EnrollmentCreated(userID uuid.UUID, enrollment *types.Enrollment) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), sse.SSEMessage{
		Channel: userID.String(),
		Event:   sse.SSEEventEnrollmentCreated,
		Data:    map[string]any{"enrollment": enrollment},
	})
}

func (n *enrollmentNotifier) EnrollmentUpdated(userID uuid.UUID, enrollment *types.Enrollment) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), sse.SSEMessage{
		Channel: userID.String(),
		Event:   sse.SSEEventEnrollmentUpdated,
		Data:    map[string]any{"enrollment": enrollment},
	})
}

// =========================
// Chat notifier
// =========================

type ChatNotifier interface {
	ChatMessageCreated(userID uuid.UUID, message *types.ChatMessage)
	ChatMessageUpdated(userID uuid.UUID, message *types.ChatMessage)
}

type chatNotifier struct {
	emit SSEEmitter
}

func NewChatNotifier(emit SSEEmitter) ChatNotifier {
	return &chatNotifier{emit: emit}
}

func (n *chatNotifier) ChatMessageCreated(userID uuid.UUID, message *types.ChatMessage) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), sse.SSEMessage{
		Channel: userID.String(),
		Event:   sse.SSEEventChatMessageCreated,
		Data:    map[string]any{"message": message},
	})
}

func (n *chatNotifier) ChatMessageUpdated(userID uuid.UUID, message *types.ChatMessage) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), sse.SSEMessage{
		Channel: userID.String(),
		Event:   sse.SSEEventChatMessageUpdated,
		Data:    map[string]any{"message": message},
	})
}

// =========================
// Certificate notifier
// =========================

type CertificateNotifier interface {
	CertificateIssued(userID uuid.UUID, cert *types.Certificate)
}

type certificateNotifier struct {
	emit SSEEmitter
}

func NewCertificateNotifier(emit SSEEmitter) CertificateNotifier {
	return &certificateNotifier{emit: emit}
}

func (n *certificateNotifier) CertificateIssued(userID uuid.UUID, cert *types.Certificate) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), sse.SSEMessage{
		Channel: userID.String(),
		Event:   sse.SSEEventCertificateIssued,
		Data:    map[string]any{"certificate": cert},
	})
}

// =========================
// User notifier
// =========================

type UserNotifier interface {
	UserAvatarChanged(userID uuid.UUID, user *types.User)
}

type userNotifier struct {
	emit SSEEmitter
}

func NewUserNotifier(emit SSEEmitter) UserNotifier {
	return &userNotifier{emit: emit}
}

func (n *userNotifier) UserAvatarChanged(userID uuid.UUID, user *types.User) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), sse.SSEMessage{
		Channel: userID.String(),
		Event:   sse.SSEEventUserAvatarChanged,
		Data:    map[string]any{"user": user},
	})
}

// =========================
// helpers
// =========================

func safeJobID(job *types.JobRun) uuid.UUID {
	if job == nil {
		return uuid.Nil
	}
	return job.ID
}

func safeJobType(job *types.JobRun) string {
	if job == nil {
		return ""
	}
	return job.JobType
}
