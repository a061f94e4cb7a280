package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"trustchat/internal/dispatch"
	"trustchat/internal/telemetry"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, dispatch.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dispatch.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, dispatch.ErrAlreadyMember):
		return http.StatusConflict
	case errors.Is(err, dispatch.ErrMediaUpload):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps engine errors to a status. Internal failures are not echoed to clients.
func writeError(c *gin.Context, audit *telemetry.AuditEmitter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	emitAudit(c, audit, telemetry.ActionRequestFailed, "ERROR", msg, "")
	c.JSON(status, gin.H{"error": msg})
}

func emitAudit(c *gin.Context, audit *telemetry.AuditEmitter, action, level, text, resource string) {
	audit.Record(c.Request.Context(), telemetry.Entry{
		Action:    action,
		Level:     level,
		Text:      text,
		Resource:  resource,
		RequestID: requestIDFromContext(c),
		UserID:    userIDFromContext(c),
	})
}
