package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/seat-rush/pkg/response"
)

const (
	// UserIDHeader carries the authenticated user id set by the upstream gateway
	UserIDHeader = "X-User-ID"
	// ContextKeyUserID is the gin context key for the user id
	ContextKeyUserID = "user_id"
)

// UserID requires the X-User-ID header and stores it in the context.
// Authentication happens upstream; this service trusts the header.
func UserID() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorBody("UNAUTHORIZED", "X-User-ID header is required"))
			return
		}
		c.Set(ContextKeyUserID, userID)
		c.Next()
	}
}

// GetUserID returns the user id stored by UserID
func GetUserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextKeyUserID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
