package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/projection"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

// MessageHandler manages message lifecycle and reaction endpoints.
type MessageHandler struct {
	messages  repositories.MessageRepository
	reactions repositories.ReactionRepository
	users     repositories.UserRepository
	projector *projection.Projector
	hub       *ws.Hub
	audit     *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messages repositories.MessageRepository, reactions repositories.ReactionRepository, users repositories.UserRepository, projector *projection.Projector, hub *ws.Hub, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{
		messages:  messages,
		reactions: reactions,
		users:     users,
		projector: projector,
		hub:       hub,
		audit:     audit,
	}
}

// List returns all messages of a conversation in insertion order, each with
// sender attribution and reactions. Degrades to empty when unauthenticated.
func (h *MessageHandler) List(c *gin.Context) {
	conversationID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}

	_, present, err := optionalUser(c, h.users)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
		return
	}
	if !present {
		c.JSON(http.StatusOK, gin.H{"messages": []any{}})
		return
	}

	views, err := h.projector.MessageList(c.Request.Context(), conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": views})
}

// Send stores a message, repoints the conversation's last message, bumps
// the other members' unread counters and broadcasts the event.
func (h *MessageHandler) Send(c *gin.Context) {
	conversationID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}

	user, ok := requireUser(c, h.users)
	if !ok {
		return
	}

	var req struct {
		Content   string `json:"content" binding:"required"`
		ReplyToID *int   `json:"reply_to_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), conversationID, user.ID, req.Content, req.ReplyToID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrConversationNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "failed to store message"})
		return
	}

	observability.IncMessageSent()
	h.hub.BroadcastMessage(conversationID, "message", msg)
	h.emitAudit(c, "INFO", "Message sent")
	c.JSON(http.StatusCreated, msg)
}

// Edit updates the caller's own, non-deleted message.
func (h *MessageHandler) Edit(c *gin.Context) {
	messageID, ok := pathID(c, "message_id")
	if !ok {
		return
	}

	user, ok := requireUser(c, h.users)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messages.Edit(c.Request.Context(), messageID, user.ID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrMessageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		case errors.Is(err, repositories.ErrNotSender):
			c.JSON(http.StatusForbidden, gin.H{"error": "cannot edit someone else's message"})
		case errors.Is(err, repositories.ErrMessageDeleted):
			c.JSON(http.StatusConflict, gin.H{"error": "cannot edit a deleted message"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not edit message"})
		}
		return
	}

	h.hub.BroadcastMessage(msg.ConversationID, "message_edited", msg)
	c.JSON(http.StatusOK, msg)
}

// Delete soft-deletes the caller's own message: the row stays, content is
// blanked for good.
func (h *MessageHandler) Delete(c *gin.Context) {
	messageID, ok := pathID(c, "message_id")
	if !ok {
		return
	}

	user, ok := requireUser(c, h.users)
	if !ok {
		return
	}

	if err := h.messages.SoftDelete(c.Request.Context(), messageID, user.ID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrMessageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		case errors.Is(err, repositories.ErrNotSender):
			c.JSON(http.StatusForbidden, gin.H{"error": "cannot delete someone else's message"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete message"})
		}
		return
	}

	msg, err := h.messages.GetMessage(c.Request.Context(), messageID)
	if err == nil {
		h.hub.BroadcastDeletion(msg.ConversationID, messageID)
	}
	h.emitAudit(c, "INFO", "Message deleted")
	c.Status(http.StatusNoContent)
}

// ToggleReaction flips the (message, caller, emoji) tuple. Unauthenticated
// calls are silent no-ops, mirroring best-effort presence semantics.
func (h *MessageHandler) ToggleReaction(c *gin.Context) {
	messageID, ok := pathID(c, "message_id")
	if !ok {
		return
	}

	var req struct {
		Emoji string `json:"emoji" binding:"required"`
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

	msg, err := h.messages.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}

	added, err := h.reactions.Toggle(c.Request.Context(), messageID, user.ID, req.Emoji)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not toggle reaction"})
		return
	}

	outcome := "removed"
	if added {
		outcome = "added"
	}
	observability.IncReactionToggled(outcome)
	h.hub.BroadcastReaction(msg.ConversationID, models.Reaction{MessageID: messageID, UserID: user.ID, Emoji: req.Emoji})
	c.JSON(http.StatusOK, gin.H{"added": added})
}

func (h *MessageHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
