package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"trustchat/internal/dispatch"
	"trustchat/internal/middleware"
	"trustchat/internal/models"
	"trustchat/internal/telemetry"
)

// MessageService is the direct messaging side of the dispatch engine.
type MessageService interface {
	SendDirect(ctx context.Context, senderID, receiverID string, content dispatch.Content) (models.Message, error)
	GetConversation(ctx context.Context, me, other string) ([]models.Message, error)
	MarkSeen(ctx context.Context, messageID string) error
	ListContacts(ctx context.Context, me string) (models.Contacts, error)
}

// MessageHandler serves /api/messages.
type MessageHandler struct {
	svc   MessageService
	audit *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(svc MessageService, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{svc: svc, audit: audit}
}

type sendRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// ListContacts handles GET /api/messages/users.
func (h *MessageHandler) ListContacts(c *gin.Context) {
	contacts, err := h.svc.ListContacts(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		writeError(c, h.audit, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "users": contacts.Users, "unseenMessages": contacts.UnseenMessages})
}

// GetConversation handles GET /api/messages/:id.
func (h *MessageHandler) GetConversation(c *gin.Context) {
	msgs, err := h.svc.GetConversation(c.Request.Context(), c.GetString(middleware.UserIDKey), c.Param("id"))
	if err != nil {
		writeError(c, h.audit, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "messages": msgs})
}

// MarkSeen handles PUT /api/messages/mark/:id.
func (h *MessageHandler) MarkSeen(c *gin.Context) {
	if err := h.svc.MarkSeen(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.audit, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SendMessage handles POST /api/messages/send/:id.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		emitAudit(c, h.audit, telemetry.ActionRequestFailed, "ERROR", "invalid request payload", "")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.svc.SendDirect(c.Request.Context(), c.GetString(middleware.UserIDKey), c.Param("id"), dispatch.Content{Text: req.Text, Image: req.Image})
	if err != nil {
		writeError(c, h.audit, err)
		return
	}
	emitAudit(c, h.audit, telemetry.ActionMessageSent, "INFO", "Direct message sent", msg.ID)
	c.JSON(http.StatusOK, gin.H{"success": true, "newMessage": msg})
}
