package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ghprograms/programs-backend/internal/services"
)

type PhaseHandler struct {
	phaseService  services.PhaseService
	lessonService services.LessonService
}

func NewPhaseHandler(phaseService services.PhaseService, lessonService services.LessonService) *PhaseHandler {
	return &PhaseHandler{phaseService: phaseService, lessonService: lessonService}
}

// POST /api/phases
func (h *PhaseHandler) CreatePhase(c *gin.Context) {
	var req services.CreatePhaseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	phase, err := h.phaseService.CreatePhase(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, "create_phase_failed", err)
		return
	}
	RespondCreated(c, gin.H{"phase": phase})
}

// PATCH /api/phases/:id
func (h *PhaseHandler) UpdatePhase(c *gin.Context) {
	phaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_phase_id", err)
		return
	}
	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	phase, err := h.phaseService.UpdatePhase(c.Request.Context(), phaseID, updates)
	if err != nil {
		respondServiceError(c, "update_phase_failed", err)
		return
	}
	RespondOK(c, gin.H{"phase": phase})
}

// DELETE /api/phases/:id
func (h *PhaseHandler) DeletePhase(c *gin.Context) {
	phaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_phase_id", err)
		return
	}
	if err := h.phaseService.DeletePhase(c.Request.Context(), phaseID); err != nil {
		respondServiceError(c, "delete_phase_failed", err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

// POST /api/phases/:id/lessons/reorder
func (h *PhaseHandler) ReorderLessons(c *gin.Context) {
	phaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_phase_id", err)
		return
	}
	var req struct {
		OrderedIDs []uuid.UUID `json:"ordered_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	lessons, err := h.lessonService.ReorderLessons(c.Request.Context(), phaseID, req.OrderedIDs)
	if err != nil {
		respondServiceError(c, "reorder_lessons_failed", err)
		return
	}
	RespondOK(c, gin.H{"lessons": lessons})
}
