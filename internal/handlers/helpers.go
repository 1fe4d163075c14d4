package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *int64 {
	if val, ok := c.Get("userID"); ok {
		switch userID := val.(type) {
		case int:
			if userID != 0 {
				value := int64(userID)
				return &value
			}
		case int64:
			if userID != 0 {
				value := userID
				return &value
			}
		}
	}

	if header := c.GetHeader("X-User-ID"); header != "" {
		if parsed, err := strconv.ParseInt(header, 10, 64); err == nil {
			return &parsed
		}
	}

	return nil
}

// requireUser resolves the caller's profile for mutating routes, writing
// the failure response itself. An authenticated subject without a profile
// record has not synced yet and may not write.
func requireUser(c *gin.Context, users repositories.UserRepository) (models.User, bool) {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return models.User{}, false
	}

	user, err := users.GetBySubject(c.Request.Context(), ident.Subject)
	if errors.Is(err, repositories.ErrUserNotFound) {
		c.JSON(http.StatusForbidden, gin.H{"error": "user profile not found"})
		return models.User{}, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
		return models.User{}, false
	}

	c.Set("userID", user.ID)
	return user, true
}

// optionalUser resolves the caller's profile for read and best-effort
// routes. Missing identity or profile is not an error; those paths degrade
// to empty results or no-ops.
func optionalUser(c *gin.Context, users repositories.UserRepository) (models.User, bool, error) {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		return models.User{}, false, nil
	}

	user, err := users.GetBySubject(c.Request.Context(), ident.Subject)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return models.User{}, false, nil
	}
	if err != nil {
		return models.User{}, false, err
	}

	c.Set("userID", user.ID)
	return user, true, nil
}

func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
