package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/middleware"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

// UserHandler manages profile sync, presence and lookup endpoints.
type UserHandler struct {
	users repositories.UserRepository
	audit *telemetry.AuditEmitter
}

// NewUserHandler builds a UserHandler.
func NewUserHandler(users repositories.UserRepository, audit *telemetry.AuditEmitter) *UserHandler {
	return &UserHandler{users: users, audit: audit}
}

// Sync stores or refreshes the caller's profile from the identity
// provider's claims. Idempotent when nothing changed.
func (h *UserHandler) Sync(c *gin.Context) {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	user, err := h.users.ResolveOrCreate(c.Request.Context(), ident)
	if err != nil {
		h.emitAudit(c, "ERROR", "profile sync failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not sync profile"})
		return
	}

	c.Set("userID", user.ID)
	c.JSON(http.StatusOK, user)
}

// Me returns the caller's profile, or null when unauthenticated or unknown.
func (h *UserHandler) Me(c *gin.Context) {
	user, ok, err := optionalUser(c, h.users)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
		return
	}
	if !ok {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Search returns users matching the term by name or email, excluding the
// caller. Degrades to an empty list when unauthenticated.
func (h *UserHandler) Search(c *gin.Context) {
	user, ok, err := optionalUser(c, h.users)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"users": []any{}})
		return
	}

	users, err := h.users.Search(c.Request.Context(), user.ID, c.Query("q"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// SetStatus patches the caller's online flag and last-seen timestamp.
// Presence is best-effort: an unauthenticated call is a silent no-op.
func (h *UserHandler) SetStatus(c *gin.Context) {
	var req struct {
		IsOnline *bool `json:"is_online" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, ok, err := optionalUser(c, h.users)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
		return
	}
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}

	if err := h.users.SetOnlineStatus(c.Request.Context(), user.ID, *req.IsOnline); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update status"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
