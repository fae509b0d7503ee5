package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ghprograms/programs-backend/internal/services"
)

type RecommendationHandler struct {
	recommendationService services.RecommendationService
}

func NewRecommendationHandler(recommendationService services.RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{recommendationService: recommendationService}
}

// GET /api/programs/:id/recommendations?limit=3
func (h *RecommendationHandler) RecommendNextLessons(c *gin.Context) {
	programID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_program_id", err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "3"))
	lessons, err := h.recommendationService.RecommendNextLessons(c.Request.Context(), programID, limit)
	if err != nil {
		respondServiceError(c, "recommendations_failed", err)
		return
	}
	RespondOK(c, gin.H{"lessons": lessons})
}
