// Package middleware provides HTTP middleware for the management API:
// API key authentication and request logging.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sonroyaalmerol/ldap-proxy/internal/api/models"
)

// RequireAPIKey enforces a shared-secret API key via the X-API-Key
// header. An empty expected key disables the check entirely — callers
// should only install this middleware when an API key is configured.
func RequireAPIKey(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("X-API-Key")
		if expected == "" || got == expected {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "unauthorized"})
	}
}
