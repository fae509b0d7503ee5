package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ghprograms/programs-backend/internal/services"
)

type ProgressHandler struct {
	progressService services.ProgressService
}

func NewProgressHandler(progressService services.ProgressService) *ProgressHandler {
	return &ProgressHandler{progressService: progressService}
}

// POST /api/lessons/:id/open
func (h *ProgressHandler) OpenLesson(c *gin.Context) {
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_lesson_id", err)
		return
	}
	progress, err := h.progressService.OpenLesson(c.Request.Context(), lessonID)
	if err != nil {
		respondServiceError(c, "open_lesson_failed", err)
		return
	}
	RespondOK(c, gin.H{"progress": progress})
}

// POST /api/lessons/:id/video-progress
func (h *ProgressHandler) RecordVideoProgress(c *gin.Context) {
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_lesson_id", err)
		return
	}
	var req struct {
		WatchedPct   float64 `json:"watched_pct"`
		SecondsDelta int     `json:"seconds_delta"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	progress, err := h.progressService.RecordVideoProgress(c.Request.Context(), lessonID, req.WatchedPct, req.SecondsDelta)
	if err != nil {
		respondServiceError(c, "video_progress_failed", err)
		return
	}
	RespondOK(c, gin.H{"progress": progress})
}

// POST /api/tactics/:id/complete
func (h *ProgressHandler) CompleteTactic(c *gin.Context) {
	tacticID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_tactic_id", err)
		return
	}
	var req struct {
		Note string `json:"note"`
	}
	// Body is optional for tactic completion.
	_ = c.ShouldBindJSON(&req)
	progress, err := h.progressService.CompleteTactic(c.Request.Context(), tacticID, req.Note)
	if err != nil {
		respondServiceError(c, "complete_tactic_failed", err)
		return
	}
	RespondOK(c, gin.H{"progress": progress})
}

// POST /api/tactics/:id/uncomplete
func (h *ProgressHandler) UncompleteTactic(c *gin.Context) {
	tacticID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_tactic_id", err)
		return
	}
	progress, err := h.progressService.UncompleteTactic(c.Request.Context(), tacticID)
	if err != nil {
		respondServiceError(c, "uncomplete_tactic_failed", err)
		return
	}
	RespondOK(c, gin.H{"progress": progress})
}

// POST /api/assessments/:id/submit
func (h *ProgressHandler) SubmitAssessment(c *gin.Context) {
	assessmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_assessment_id", err)
		return
	}
	var req struct {
		Answers map[string]int `json:"answers"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	attempt, progress, err := h.progressService.SubmitAssessment(c.Request.Context(), assessmentID, req.Answers)
	if err != nil {
		respondServiceError(c, "submit_assessment_failed", err)
		return
	}
	RespondOK(c, gin.H{"attempt": attempt, "progress": progress})
}

// POST /api/lessons/:id/complete
func (h *ProgressHandler) MarkLessonComplete(c *gin.Context) {
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_lesson_id", err)
		return
	}
	progress, err := h.progressService.MarkLessonComplete(c.Request.Context(), lessonID)
	if err != nil {
		respondServiceError(c, "complete_lesson_failed", err)
		return
	}
	RespondOK(c, gin.H{"progress": progress})
}

// GET /api/lessons/:id/progress
func (h *ProgressHandler) GetLessonProgress(c *gin.Context) {
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_lesson_id", err)
		return
	}
	progress, gates, err := h.progressService.GetLessonProgress(c.Request.Context(), lessonID)
	if err != nil {
		respondServiceError(c, "get_lesson_progress_failed", err)
		return
	}
	RespondOK(c, gin.H{"progress": progress, "gates": gates})
}

// GET /api/programs/:id/progress
func (h *ProgressHandler) GetProgramProgress(c *gin.Context) {
	programID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_program_id", err)
		return
	}
	progress, err := h.progressService.GetProgramProgress(c.Request.Context(), programID)
	if err != nil {
		respondServiceError(c, "get_program_progress_failed", err)
		return
	}
	RespondOK(c, progress)
}
