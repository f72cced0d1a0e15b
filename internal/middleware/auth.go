package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/quickbite/backend/internal/auth"
)

// UserIDKey is the gin context key holding the authenticated user id.
const UserIDKey = "user_id"

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(tokens *auth.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticate(c, tokens) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}
		c.Next()
	}
}

// OptionalAuth attaches the viewer when a valid token is present and lets
// anonymous requests through.
func OptionalAuth(tokens *auth.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		authenticate(c, tokens)
		c.Next()
	}
}

func authenticate(c *gin.Context, tokens *auth.Tokens) bool {
	header := c.GetHeader("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return false
	}
	userID, err := tokens.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	c.Set(UserIDKey, userID)
	c.Request = c.Request.WithContext(auth.WithViewer(c.Request.Context(), userID))
	return true
}
