package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/projection"
	"messaging-service/internal/repositories"
)

// ConversationHandler manages conversation resolution and read state.
type ConversationHandler struct {
	conversations repositories.ConversationRepository
	users         repositories.UserRepository
	projector     *projection.Projector
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(conversations repositories.ConversationRepository, users repositories.UserRepository, projector *projection.Projector) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, users: users, projector: projector}
}

// List returns the caller's conversations, newest activity first. Degrades
// to an empty list when unauthenticated.
func (h *ConversationHandler) List(c *gin.Context) {
	user, ok, err := optionalUser(c, h.users)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"conversations": []any{}})
		return
	}

	views, err := h.projector.ConversationList(c.Request.Context(), user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": views})
}

// StartDirect creates or returns the existing 1:1 conversation with the
// other user. Concurrent first contact converges on one conversation.
func (h *ConversationHandler) StartDirect(c *gin.Context) {
	user, ok := requireUser(c, h.users)
	if !ok {
		return
	}

	var req struct {
		OtherUserID int `json:"other_user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.OtherUserID == user.ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot start a conversation with yourself"})
		return
	}

	if _, err := h.users.GetByID(c.Request.Context(), req.OtherUserID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "other user not found"})
		return
	}

	conversationID, err := h.conversations.GetOrCreateDirect(c.Request.Context(), user.ID, req.OtherUserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not resolve conversation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": conversationID})
}

// Get returns a single conversation view, or null when unauthenticated or
// the conversation is absent.
func (h *ConversationHandler) Get(c *gin.Context) {
	conversationID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}

	user, ok, err := optionalUser(c, h.users)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
		return
	}
	if !ok {
		c.JSON(http.StatusOK, nil)
		return
	}

	view, err := h.projector.ConversationByID(c.Request.Context(), user, conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// MarkAsRead resets the caller's unread counter. A no-op when already
// zero, unauthenticated, or not a member.
func (h *ConversationHandler) MarkAsRead(c *gin.Context) {
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
		c.Status(http.StatusNoContent)
		return
	}

	if err := h.conversations.MarkAsRead(c.Request.Context(), conversationID, user.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark as read"})
		return
	}
	c.Status(http.StatusNoContent)
}
