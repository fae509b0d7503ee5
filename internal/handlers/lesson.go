package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ghprograms/programs-backend/internal/services"
)

type LessonHandler struct {
	lessonService services.LessonService
}

func NewLessonHandler(lessonService services.LessonService) *LessonHandler {
	return &LessonHandler{lessonService: lessonService}
}

// POST /api/lessons
func (h *LessonHandler) CreateLesson(c *gin.Context) {
	var req services.CreateLessonInput
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	lesson, err := h.lessonService.CreateLesson(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, "create_lesson_failed", err)
		return
	}
	RespondCreated(c, gin.H{"lesson": lesson})
}

// PATCH /api/lessons/:id
func (h *LessonHandler) UpdateLesson(c *gin.Context) {
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_lesson_id", err)
		return
	}
	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	lesson, err := h.lessonService.UpdateLesson(c.Request.Context(), lessonID, updates)
	if err != nil {
		respondServiceError(c, "update_lesson_failed", err)
		return
	}
	RespondOK(c, gin.H{"lesson": lesson})
}

// DELETE /api/lessons/:id
func (h *LessonHandler) DeleteLesson(c *gin.Context) {
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_lesson_id", err)
		return
	}
	if err := h.lessonService.DeleteLesson(c.Request.Context(), lessonID); err != nil {
		respondServiceError(c, "delete_lesson_failed", err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

// POST /api/tactics
func (h *LessonHandler) CreateTactic(c *gin.Context) {
	var req services.CreateTacticInput
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	tactic, err := h.lessonService.CreateTactic(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, "create_tactic_failed", err)
		return
	}
	RespondCreated(c, gin.H{"tactic": tactic})
}

// PATCH /api/tactics/:id
func (h *LessonHandler) UpdateTactic(c *gin.Context) {
	tacticID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_tactic_id", err)
		return
	}
	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	tactic, err := h.lessonService.UpdateTactic(c.Request.Context(), tacticID, updates)
	if err != nil {
		respondServiceError(c, "update_tactic_failed", err)
		return
	}
	RespondOK(c, gin.H{"tactic": tactic})
}

// DELETE /api/tactics/:id
func (h *LessonHandler) DeleteTactic(c *gin.Context) {
	tacticID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_tactic_id", err)
		return
	}
	if err := h.lessonService.DeleteTactic(c.Request.Context(), tacticID); err != nil {
		respondServiceError(c, "delete_tactic_failed", err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

// POST /api/lessons/:id/tactics/reorder
func (h *LessonHandler) ReorderTactics(c *gin.Context) {
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_lesson_id", err)
		return
	}
	var req struct {
		OrderedIDs []uuid.UUID `json:"ordered_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	tactics, err := h.lessonService.ReorderTactics(c.Request.Context(), lessonID, req.OrderedIDs)
	if err != nil {
		respondServiceError(c, "reorder_tactics_failed", err)
		return
	}
	RespondOK(c, gin.H{"tactics": tactics})
}
