package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/repositories"
	"messaging-service/internal/ws"
)

// TypingHandler manages the ephemeral typing-presence endpoints.
type TypingHandler struct {
	typing repositories.TypingRepository
	users  repositories.UserRepository
	hub    *ws.Hub
	now    func() time.Time
}

// NewTypingHandler builds a TypingHandler.
func NewTypingHandler(typing repositories.TypingRepository, users repositories.UserRepository, hub *ws.Hub) *TypingHandler {
	return &TypingHandler{typing: typing, users: users, hub: hub, now: time.Now}
}

// Set upserts the caller's typing indicator. Best-effort: unauthenticated
// calls are silent no-ops.
func (h *TypingHandler) Set(c *gin.Context) {
	conversationID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}

	var req struct {
		IsTyping *bool `json:"is_typing" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, present, err := optionalUser(c, h.users)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
		return
	}
	if !present {
		c.Status(http.StatusNoContent)
		return
	}

	if err := h.typing.SetTyping(c.Request.Context(), conversationID, user.ID, *req.IsTyping, h.now()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update typing status"})
		return
	}

	h.hub.BroadcastTyping(conversationID, user.ID, *req.IsTyping)
	c.Status(http.StatusNoContent)
}

// List returns users other than the caller whose indicator is still fresh.
// Staleness is decided here at read time: a client that crashed without a
// stop signal ages out on its own.
func (h *TypingHandler) List(c *gin.Context) {
	conversationID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}

	user, present, err := optionalUser(c, h.users)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
		return
	}
	if !present {
		c.JSON(http.StatusOK, gin.H{"typing_users": []any{}})
		return
	}

	indicators, err := h.typing.ListIndicators(c.Request.Context(), conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load typing status"})
		return
	}

	typistIDs := repositories.LiveTypists(indicators, user.ID, h.now())
	typists, err := h.users.GetByIDs(c.Request.Context(), typistIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load typing users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"typing_users": typists})
}
