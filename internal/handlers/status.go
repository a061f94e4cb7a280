package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OnlineCounter reports how many users are connected.
type OnlineCounter interface {
	ListOnline() []string
}

// Status handles GET /api/status.
func Status(online OnlineCounter) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "online": len(online.ListOnline())})
	}
}
