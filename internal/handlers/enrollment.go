package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ghprograms/programs-backend/internal/services"
	"github.com/ghprograms/programs-backend/internal/types"
)

type EnrollmentHandler struct {
	enrollmentService services.EnrollmentService
}

func NewEnrollmentHandler(enrollmentService services.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollmentService: enrollmentService}
}

// POST /api/programs/:id/enroll
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	programID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_program_id", err)
		return
	}
	enrollment, err := h.enrollmentService.Enroll(c.Request.Context(), programID)
	if err != nil {
		respondServiceError(c, "enroll_failed", err)
		return
	}
	RespondCreated(c, gin.H{"enrollment": enrollment})
}

// POST /api/programs/:id/enroll-member
func (h *EnrollmentHandler) EnrollMember(c *gin.Context) {
	programID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_program_id", err)
		return
	}
	var req struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	enrollment, err := h.enrollmentService.EnrollMember(c.Request.Context(), req.UserID, programID)
	if err != nil {
		respondServiceError(c, "enroll_member_failed", err)
		return
	}
	RespondCreated(c, gin.H{"enrollment": enrollment})
}

// GET /api/enrollments
func (h *EnrollmentHandler) ListMyEnrollments(c *gin.Context) {
	items, err := h.enrollmentService.ListMyEnrollments(c.Request.Context())
	if err != nil {
		respondServiceError(c, "list_enrollments_failed", err)
		return
	}
	RespondOK(c, gin.H{"enrollments": items})
}

// POST /api/enrollments/:id/pause
func (h *EnrollmentHandler) Pause(c *gin.Context) {
	h.transition(c, h.enrollmentService.Pause, "pause_failed")
}

// POST /api/enrollments/:id/resume
func (h *EnrollmentHandler) Resume(c *gin.Context) {
	h.transition(c, h.enrollmentService.Resume, "resume_failed")
}

// POST /api/enrollments/:id/cancel
func (h *EnrollmentHandler) Cancel(c *gin.Context) {
	h.transition(c, h.enrollmentService.Cancel, "cancel_failed")
}

func (h *EnrollmentHandler) transition(c *gin.Context, op func(ctx context.Context, enrollmentID uuid.UUID) (*types.Enrollment, error), code string) {
	enrollmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_enrollment_id", err)
		return
	}
	enrollment, err := op(c.Request.Context(), enrollmentID)
	if err != nil {
		respondServiceError(c, code, err)
		return
	}
	RespondOK(c, gin.H{"enrollment": enrollment})
}
