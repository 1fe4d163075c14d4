package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

// GroupHandler manages group lifecycle and membership endpoints.
type GroupHandler struct {
	conversations repositories.ConversationRepository
	users         repositories.UserRepository
	typing        repositories.TypingRepository
	audit         *telemetry.AuditEmitter
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(conversations repositories.ConversationRepository, users repositories.UserRepository, typing repositories.TypingRepository, audit *telemetry.AuditEmitter) *GroupHandler {
	return &GroupHandler{conversations: conversations, users: users, typing: typing, audit: audit}
}

// Create handles POST /groups. Group names are unique cluster-wide; the
// caller must not list themselves in member_ids.
func (h *GroupHandler) Create(c *gin.Context) {
	user, ok := requireUser(c, h.users)
	if !ok {
		return
	}

	var req struct {
		Name      string `json:"name" binding:"required"`
		MemberIDs []int  `json:"member_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conversationID, err := h.conversations.CreateGroup(c.Request.Context(), user.ID, req.Name, req.MemberIDs)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrDuplicateGroupName):
			c.JSON(http.StatusConflict, gin.H{"error": "a group with this name already exists"})
		case errors.Is(err, repositories.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "duplicate member"})
		default:
			h.emitAudit(c, "ERROR", "internal error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create group"})
		}
		return
	}

	h.emitAudit(c, "INFO", "Group created")
	c.JSON(http.StatusCreated, gin.H{"conversation_id": conversationID})
}

// Delete removes a group and everything it owns: memberships, messages,
// reactions and typing indicators.
func (h *GroupHandler) Delete(c *gin.Context) {
	conversationID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}

	user, ok := requireUser(c, h.users)
	if !ok {
		return
	}

	conv, err := h.conversations.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrConversationNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "conversation not found"})
		return
	}
	if !conv.IsGroup {
		c.JSON(http.StatusBadRequest, gin.H{"error": "can only delete groups"})
		return
	}

	if _, err := h.conversations.GetMembership(c.Request.Context(), conversationID, user.ID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMembershipNotFound) {
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"error": "not a member of this group"})
		return
	}

	if err := h.conversations.DeleteGroup(c.Request.Context(), conversationID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrConversationNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "could not delete group"})
		return
	}

	// Ephemeral state lives outside the store's cascade; best-effort wipe.
	_ = h.typing.ClearConversation(c.Request.Context(), conversationID)

	h.emitAudit(c, "INFO", "Group deleted")
	c.Status(http.StatusNoContent)
}

// AddMembers inserts a membership per listed user, idempotent per member.
func (h *GroupHandler) AddMembers(c *gin.Context) {
	conversationID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}

	user, ok := requireUser(c, h.users)
	if !ok {
		return
	}

	var req struct {
		MemberIDs []int `json:"member_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := h.conversations.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrConversationNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "conversation not found"})
		return
	}
	if !conv.IsGroup {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a group"})
		return
	}

	if _, err := h.conversations.GetMembership(c.Request.Context(), conversationID, user.ID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMembershipNotFound) {
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"error": "not a member of this group"})
		return
	}

	if err := h.conversations.AddMembers(c.Request.Context(), conversationID, req.MemberIDs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add members"})
		return
	}

	h.emitAudit(c, "INFO", "Group members added")
	c.Status(http.StatusNoContent)
}

func (h *GroupHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
