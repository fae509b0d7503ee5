package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ghprograms/programs-backend/internal/services"
)

const maxAvatarUploadBytes = 8 << 20

type UserHandler struct {
	userService  services.UserService
	eventService services.UserEventService
}

func NewUserHandler(userService services.UserService, eventService services.UserEventService) *UserHandler {
	return &UserHandler{userService: userService, eventService: eventService}
}

// GET /api/user
func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.userService.GetMe(c.Request.Context())
	if err != nil {
		respondServiceError(c, "get_user_failed", err)
		return
	}
	RespondOK(c, gin.H{"user": user})
}

// PATCH /api/user/name
func (h *UserHandler) UpdateName(c *gin.Context) {
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	user, err := h.userService.UpdateName(c.Request.Context(), req.FirstName, req.LastName)
	if err != nil {
		respondServiceError(c, "update_name_failed", err)
		return
	}
	RespondOK(c, gin.H{"user": user})
}

// POST /api/user/avatar
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}
	if fileHeader.Size > maxAvatarUploadBytes {
		RespondError(c, http.StatusRequestEntityTooLarge, "file_too_large", nil)
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer f.Close()
	raw, err := io.ReadAll(io.LimitReader(f, maxAvatarUploadBytes+1))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	user, upErr := h.userService.UploadAvatarImage(c.Request.Context(), raw)
	if upErr != nil {
		respondServiceError(c, "upload_avatar_failed", upErr)
		return
	}
	RespondOK(c, gin.H{"user": user})
}

// GET /api/user/organizations
func (h *UserHandler) ListMyOrganizations(c *gin.Context) {
	memberships, err := h.userService.ListMyOrganizations(c.Request.Context())
	if err != nil {
		respondServiceError(c, "list_organizations_failed", err)
		return
	}
	RespondOK(c, gin.H{"memberships": memberships})
}

// GET /api/user/events?types=lesson_completed,video_progress&limit=50
func (h *UserHandler) ListMyEvents(c *gin.Context) {
	var eventTypes []string
	if raw := strings.TrimSpace(c.Query("types")); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				eventTypes = append(eventTypes, t)
			}
		}
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	events, err := h.eventService.ListMyEvents(c.Request.Context(), eventTypes, limit)
	if err != nil {
		respondServiceError(c, "list_events_failed", err)
		return
	}
	RespondOK(c, gin.H{"events": events})
}
