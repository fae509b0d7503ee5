package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/requestdata"
	"github.com/ghprograms/programs-backend/internal/sse"
)

type RealtimeHandler struct {
	log *logger.Logger
	hub *sse.SSEHub

	mu      sync.RWMutex
	clients map[uuid.UUID]map[*sse.SSEClient]bool // keyed by user
}

func NewRealtimeHandler(log *logger.Logger, hub *sse.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{
		log:     log.With("handler", "RealtimeHandler"),
		hub:     hub,
		clients: make(map[uuid.UUID]map[*sse.SSEClient]bool),
	}
}

// GET /api/sse/stream
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "not_authenticated", nil)
		return
	}
	userID := rd.UserID

	client := h.hub.NewSSEClient(userID)

	h.mu.Lock()
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[*sse.SSEClient]bool)
		h.clients[userID] = set
	}
	set[client] = true
	h.mu.Unlock()

	// Every connection gets the user's own channel; the notifiers publish
	// all per-user events there.
	h.hub.AddChannel(client, userID.String())
	h.log.Debug("SSE stream open", "user_id", userID)

	h.hub.ServeHTTP(c.Writer, c.Request, client)

	h.mu.Lock()
	if set, ok := h.clients[userID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.clients, userID)
		}
	}
	h.mu.Unlock()
	h.hub.CloseClient(client)
}

// POST /api/sse/subscribe
func (h *RealtimeHandler) SSESubscribe(c *gin.Context) {
	h.updateSubscription(c, h.hub.AddChannel, "subscribed")
}

// POST /api/sse/unsubscribe
func (h *RealtimeHandler) SSEUnsubscribe(c *gin.Context) {
	h.updateSubscription(c, h.hub.RemoveChannel, "unsubscribed")
}

func (h *RealtimeHandler) updateSubscription(c *gin.Context, op func(*sse.SSEClient, string), verb string) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "not_authenticated", nil)
		return
	}
	var req struct {
		Channel string `json:"channel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Channel == "" {
		RespondError(c, http.StatusBadRequest, "invalid_channel", err)
		return
	}

	h.mu.RLock()
	set, exists := h.clients[rd.UserID]
	h.mu.RUnlock()
	if !exists || len(set) == 0 {
		RespondError(c, http.StatusConflict, "no_active_stream", nil)
		return
	}
	for client := range set {
		op(client, req.Channel)
	}
	RespondOK(c, gin.H{"message": verb, "channel": req.Channel})
}
