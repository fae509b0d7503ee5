package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ghprograms/programs-backend/internal/services"
)

type ChatHandler struct {
	chatService services.ChatService
}

func NewChatHandler(chatService services.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// POST /api/chat/threads
func (h *ChatHandler) CreateThread(c *gin.Context) {
	var req services.CreateThreadInput
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	thread, err := h.chatService.CreateThread(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, "create_thread_failed", err)
		return
	}
	RespondCreated(c, gin.H{"thread": thread})
}

// GET /api/chat/threads
func (h *ChatHandler) ListThreads(c *gin.Context) {
	threads, err := h.chatService.ListThreads(c.Request.Context())
	if err != nil {
		respondServiceError(c, "list_threads_failed", err)
		return
	}
	RespondOK(c, gin.H{"threads": threads})
}

// GET /api/chat/threads/:id?limit=100
func (h *ChatHandler) GetThread(c *gin.Context) {
	threadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_thread_id", err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	detail, err := h.chatService.GetThread(c.Request.Context(), threadID, limit)
	if err != nil {
		respondServiceError(c, "get_thread_failed", err)
		return
	}
	RespondOK(c, detail)
}

// DELETE /api/chat/threads/:id
func (h *ChatHandler) DeleteThread(c *gin.Context) {
	threadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_thread_id", err)
		return
	}
	if err := h.chatService.DeleteThread(c.Request.Context(), threadID); err != nil {
		respondServiceError(c, "delete_thread_failed", err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

// POST /api/chat/threads/:id/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	threadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_thread_id", err)
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	result, err := h.chatService.SendMessage(c.Request.Context(), services.SendMessageInput{
		ThreadID:       threadID,
		Content:        req.Content,
		IdempotencyKey: strings.TrimSpace(c.GetHeader("Idempotency-Key")),
	})
	if err != nil {
		respondServiceError(c, "send_message_failed", err)
		return
	}
	RespondCreated(c, result)
}
