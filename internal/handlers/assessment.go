package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ghprograms/programs-backend/internal/services"
)

type AssessmentHandler struct {
	assessmentService services.AssessmentService
}

func NewAssessmentHandler(assessmentService services.AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{assessmentService: assessmentService}
}

// PUT /api/lessons/:id/assessment
func (h *AssessmentHandler) UpsertAssessment(c *gin.Context) {
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_lesson_id", err)
		return
	}
	var req services.UpsertAssessmentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	req.LessonID = lessonID
	detail, err := h.assessmentService.UpsertAssessment(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, "upsert_assessment_failed", err)
		return
	}
	RespondOK(c, detail)
}

// GET /api/lessons/:id/assessment
func (h *AssessmentHandler) GetAssessment(c *gin.Context) {
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_lesson_id", err)
		return
	}
	detail, err := h.assessmentService.GetAssessment(c.Request.Context(), lessonID)
	if err != nil {
		respondServiceError(c, "get_assessment_failed", err)
		return
	}
	RespondOK(c, detail)
}

// DELETE /api/lessons/:id/assessment
func (h *AssessmentHandler) DeleteAssessment(c *gin.Context) {
	lessonID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_lesson_id", err)
		return
	}
	if err := h.assessmentService.DeleteAssessment(c.Request.Context(), lessonID); err != nil {
		respondServiceError(c, "delete_assessment_failed", err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}
