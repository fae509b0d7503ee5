package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ghprograms/programs-backend/internal/services"
)

type RelationshipHandler struct {
	relationshipService services.RelationshipService
}

func NewRelationshipHandler(relationshipService services.RelationshipService) *RelationshipHandler {
	return &RelationshipHandler{relationshipService: relationshipService}
}

// POST /api/relationship/checkins
func (h *RelationshipHandler) CreateCheckin(c *gin.Context) {
	var req services.CreateCheckinInput
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	checkin, err := h.relationshipService.CreateCheckin(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, "create_checkin_failed", err)
		return
	}
	RespondCreated(c, gin.H{"checkin": checkin})
}

// PATCH /api/relationship/checkins/:id
func (h *RelationshipHandler) UpdateCheckin(c *gin.Context) {
	checkinID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_checkin_id", err)
		return
	}
	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	checkin, err := h.relationshipService.UpdateCheckin(c.Request.Context(), checkinID, updates)
	if err != nil {
		respondServiceError(c, "update_checkin_failed", err)
		return
	}
	RespondOK(c, gin.H{"checkin": checkin})
}

// DELETE /api/relationship/checkins/:id
func (h *RelationshipHandler) DeleteCheckin(c *gin.Context) {
	checkinID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_checkin_id", err)
		return
	}
	if err := h.relationshipService.DeleteCheckin(c.Request.Context(), checkinID); err != nil {
		respondServiceError(c, "delete_checkin_failed", err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

// GET /api/relationship/checkins?limit=30
func (h *RelationshipHandler) ListCheckins(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "30"))
	checkins, err := h.relationshipService.ListCheckins(c.Request.Context(), limit)
	if err != nil {
		respondServiceError(c, "list_checkins_failed", err)
		return
	}
	RespondOK(c, gin.H{"checkins": checkins})
}

// GET /api/relationship/summary
func (h *RelationshipHandler) GetSummary(c *gin.Context) {
	summary, err := h.relationshipService.GetSummary(c.Request.Context())
	if err != nil {
		respondServiceError(c, "relationship_summary_failed", err)
		return
	}
	RespondOK(c, summary)
}
