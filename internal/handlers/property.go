package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ghprograms/programs-backend/internal/services"
)

type PropertyHandler struct {
	propertyService services.PropertyService
}

func NewPropertyHandler(propertyService services.PropertyService) *PropertyHandler {
	return &PropertyHandler{propertyService: propertyService}
}

// POST /api/properties
func (h *PropertyHandler) CreateProperty(c *gin.Context) {
	var req services.CreatePropertyInput
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	property, err := h.propertyService.CreateProperty(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, "create_property_failed", err)
		return
	}
	RespondCreated(c, gin.H{"property": property})
}

// PATCH /api/properties/:id
func (h *PropertyHandler) UpdateProperty(c *gin.Context) {
	propertyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_property_id", err)
		return
	}
	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	property, err := h.propertyService.UpdateProperty(c.Request.Context(), propertyID, updates)
	if err != nil {
		respondServiceError(c, "update_property_failed", err)
		return
	}
	RespondOK(c, gin.H{"property": property})
}

// DELETE /api/properties/:id
func (h *PropertyHandler) DeleteProperty(c *gin.Context) {
	propertyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_property_id", err)
		return
	}
	if err := h.propertyService.DeleteProperty(c.Request.Context(), propertyID); err != nil {
		respondServiceError(c, "delete_property_failed", err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

// GET /api/properties
func (h *PropertyHandler) ListProperties(c *gin.Context) {
	items, err := h.propertyService.ListProperties(c.Request.Context())
	if err != nil {
		respondServiceError(c, "list_properties_failed", err)
		return
	}
	RespondOK(c, gin.H{"properties": items})
}

// GET /api/properties/summary
func (h *PropertyHandler) GetPortfolioSummary(c *gin.Context) {
	summary, err := h.propertyService.GetPortfolioSummary(c.Request.Context())
	if err != nil {
		respondServiceError(c, "portfolio_summary_failed", err)
		return
	}
	RespondOK(c, summary)
}
