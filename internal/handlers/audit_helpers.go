package handlers

import (
	"github.com/gin-gonic/gin"

	"trustchat/internal/middleware"
	"trustchat/internal/observability"
)

// requestIDFromContext falls back to the raw header when the RequestID
// middleware is not installed, as in handler unit tests.
func requestIDFromContext(c *gin.Context) string {
	if id := c.GetString(observability.RequestIDKey); id != "" {
		return id
	}
	return observability.RequestIDFromRequest(c.Request)
}

func userIDFromContext(c *gin.Context) *string {
	if id := c.GetString(middleware.UserIDKey); id != "" {
		return &id
	}
	return nil
}
