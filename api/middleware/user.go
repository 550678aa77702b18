package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const UserIDHeader = "X-USER-ID"

// UserIDMiddleware requires the caller to identify the acting user. The ID is
// stored on the gin context for the custom context middleware to pick up.
func UserIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserIDHeader))

		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Missing user id",
			})
			c.Abort()
			return
		}

		c.Set("UserId", userID)
		c.Next()
	}
}
