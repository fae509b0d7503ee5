package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ghprograms/programs-backend/internal/services"
)

type WellnessHandler struct {
	wellnessService services.WellnessService
}

func NewWellnessHandler(wellnessService services.WellnessService) *WellnessHandler {
	return &WellnessHandler{wellnessService: wellnessService}
}

// PUT /api/wellness/entries
func (h *WellnessHandler) UpsertEntry(c *gin.Context) {
	var req services.UpsertWellnessEntryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	entry, err := h.wellnessService.UpsertEntry(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, "upsert_entry_failed", err)
		return
	}
	RespondOK(c, gin.H{"entry": entry})
}

// GET /api/wellness/entries?limit=30
func (h *WellnessHandler) ListEntries(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "30"))
	entries, err := h.wellnessService.ListEntries(c.Request.Context(), limit)
	if err != nil {
		respondServiceError(c, "list_entries_failed", err)
		return
	}
	RespondOK(c, gin.H{"entries": entries})
}

// DELETE /api/wellness/entries/:id
func (h *WellnessHandler) DeleteEntry(c *gin.Context) {
	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_entry_id", err)
		return
	}
	if err := h.wellnessService.DeleteEntry(c.Request.Context(), entryID); err != nil {
		respondServiceError(c, "delete_entry_failed", err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

// GET /api/wellness/summary
func (h *WellnessHandler) GetSummary(c *gin.Context) {
	summary, err := h.wellnessService.GetSummary(c.Request.Context())
	if err != nil {
		respondServiceError(c, "wellness_summary_failed", err)
		return
	}
	RespondOK(c, summary)
}
