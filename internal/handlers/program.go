package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ghprograms/programs-backend/internal/services"
)

type ProgramHandler struct {
	programService services.ProgramService
	phaseService   services.PhaseService
}

func NewProgramHandler(programService services.ProgramService, phaseService services.PhaseService) *ProgramHandler {
	return &ProgramHandler{programService: programService, phaseService: phaseService}
}

// GET /api/programs
func (h *ProgramHandler) ListCatalog(c *gin.Context) {
	programs, err := h.programService.ListCatalog(c.Request.Context())
	if err != nil {
		respondServiceError(c, "list_catalog_failed", err)
		return
	}
	RespondOK(c, gin.H{"programs": programs})
}

// GET /api/programs/:id
func (h *ProgramHandler) GetProgramDetail(c *gin.Context) {
	programID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_program_id", err)
		return
	}
	detail, err := h.programService.GetProgramDetail(c.Request.Context(), programID)
	if err != nil {
		respondServiceError(c, "get_program_failed", err)
		return
	}
	RespondOK(c, detail)
}

// POST /api/programs
func (h *ProgramHandler) CreateProgram(c *gin.Context) {
	var req services.CreateProgramInput
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	program, err := h.programService.CreateProgram(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, "create_program_failed", err)
		return
	}
	RespondCreated(c, gin.H{"program": program})
}

// PATCH /api/programs/:id
func (h *ProgramHandler) UpdateProgram(c *gin.Context) {
	programID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_program_id", err)
		return
	}
	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	program, err := h.programService.UpdateProgram(c.Request.Context(), programID, updates)
	if err != nil {
		respondServiceError(c, "update_program_failed", err)
		return
	}
	RespondOK(c, gin.H{"program": program})
}

// DELETE /api/programs/:id
func (h *ProgramHandler) DeleteProgram(c *gin.Context) {
	programID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_program_id", err)
		return
	}
	if err := h.programService.DeleteProgram(c.Request.Context(), programID); err != nil {
		respondServiceError(c, "delete_program_failed", err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

// POST /api/programs/:id/publish
func (h *ProgramHandler) PublishProgram(c *gin.Context) {
	programID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_program_id", err)
		return
	}
	program, err := h.programService.PublishProgram(c.Request.Context(), programID)
	if err != nil {
		respondServiceError(c, "publish_program_failed", err)
		return
	}
	RespondOK(c, gin.H{"program": program})
}

// POST /api/programs/:id/unpublish
func (h *ProgramHandler) UnpublishProgram(c *gin.Context) {
	programID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_program_id", err)
		return
	}
	program, err := h.programService.UnpublishProgram(c.Request.Context(), programID)
	if err != nil {
		respondServiceError(c, "unpublish_program_failed", err)
		return
	}
	RespondOK(c, gin.H{"program": program})
}

// POST /api/programs/:id/phases/reorder
func (h *ProgramHandler) ReorderPhases(c *gin.Context) {
	programID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_program_id", err)
		return
	}
	var req struct {
		OrderedIDs []uuid.UUID `json:"ordered_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	phases, err := h.phaseService.ReorderPhases(c.Request.Context(), programID, req.OrderedIDs)
	if err != nil {
		respondServiceError(c, "reorder_phases_failed", err)
		return
	}
	RespondOK(c, gin.H{"phases": phases})
}
