package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/identity"
	"messaging-service/internal/models"
)

const identityContextKey = "identity"

// Auth validates the Authorization header and aborts unauthenticated
// requests. Use for mutating routes.
func Auth(verifier identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := bearerIdentity(c, verifier)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
			return
		}

		c.Set(identityContextKey, ident)
		c.Next()
	}
}

// OptionalAuth resolves identity when a valid token is present but never
// aborts. Read routes degrade to empty results instead of failing.
func OptionalAuth(verifier identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ident, ok := bearerIdentity(c, verifier); ok {
			c.Set(identityContextKey, ident)
		}
		c.Next()
	}
}

// IdentityFrom returns the caller identity stored by Auth or OptionalAuth.
func IdentityFrom(c *gin.Context) (models.Identity, bool) {
	val, ok := c.Get(identityContextKey)
	if !ok {
		return models.Identity{}, false
	}
	ident, ok := val.(models.Identity)
	return ident, ok
}

func bearerIdentity(c *gin.Context, verifier identity.Verifier) (models.Identity, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return models.Identity{}, false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return models.Identity{}, false
	}

	ident, err := verifier.Verify(c.Request.Context(), parts[1])
	if err != nil {
		return models.Identity{}, false
	}
	return ident, true
}
