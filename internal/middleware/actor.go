package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// UserIDHeader carries the caller's user ID, set by the upstream gateway.
	UserIDHeader = "X-User-ID"

	userIDKey = "user_id"
)

// RequireUser rejects requests without a caller identity and stores it on the context.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserIDHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + UserIDHeader + " header"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the caller identity stored by RequireUser.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
