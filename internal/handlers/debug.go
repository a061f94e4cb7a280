package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"trustchat/internal/telemetry"
)

// TextClassifier is the scam oracle as seen by the debug probe.
type TextClassifier interface {
	Classify(ctx context.Context, text string) (bool, error)
}

// DebugDeps are the collaborators exposed under /debug. Nil fields disable
// their route with 503.
type DebugDeps struct {
	Audit      *telemetry.AuditEmitter
	Online     OnlineCounter
	Classifier TextClassifier
}

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRouter, deps DebugDeps, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if deps.Audit == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitAudit(c, deps.Audit, telemetry.ActionAuditTest, "INFO", "audit test", "")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/debug/presence", func(c *gin.Context) {
		if deps.Online == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "presence not configured"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"online": deps.Online.ListOnline()})
	})

	// Runs the oracle synchronously without touching any stored message.
	router.POST("/debug/classify", func(c *gin.Context) {
		if deps.Classifier == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "classifier not configured"})
			return
		}
		var req struct {
			Text string `json:"text" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		isScam, err := deps.Classifier.Classify(c.Request.Context(), req.Text)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"isScam": isScam})
	})
}
