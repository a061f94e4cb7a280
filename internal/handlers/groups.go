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

// GroupService is the group side of the dispatch engine.
type GroupService interface {
	CreateGroup(ctx context.Context, founder, name string, memberIDs []string) (models.ResolvedGroup, error)
	JoinGroup(ctx context.Context, userID, groupID string) (models.ResolvedGroup, error)
	UpdateGroup(ctx context.Context, actorID, groupID string, patch models.GroupPatch) (models.ResolvedGroup, error)
	SendGroup(ctx context.Context, senderID, groupID string, content dispatch.Content) (models.Message, error)
	GetGroupMessages(ctx context.Context, userID, groupID string) ([]models.Message, error)
	ListGroups(ctx context.Context, userID string) ([]models.ResolvedGroup, error)
}

// GroupHandler serves /api/groups.
type GroupHandler struct {
	svc   GroupService
	audit *telemetry.AuditEmitter
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(svc GroupService, audit *telemetry.AuditEmitter) *GroupHandler {
	return &GroupHandler{svc: svc, audit: audit}
}

// CreateGroup handles POST /api/groups/create.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req struct {
		Name    string   `json:"name"`
		Members []string `json:"members"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		emitAudit(c, h.audit, telemetry.ActionRequestFailed, "ERROR", "invalid request payload", "")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.svc.CreateGroup(c.Request.Context(), c.GetString(middleware.UserIDKey), req.Name, req.Members)
	if err != nil {
		writeError(c, h.audit, err)
		return
	}
	emitAudit(c, h.audit, telemetry.ActionGroupCreated, "INFO", "Group created", group.ID)
	c.JSON(http.StatusCreated, group)
}

// ListGroups handles GET /api/groups.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	groups, err := h.svc.ListGroups(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		writeError(c, h.audit, err)
		return
	}
	if groups == nil {
		groups = []models.ResolvedGroup{}
	}
	c.JSON(http.StatusOK, groups)
}

// GetGroupMessages handles GET /api/groups/:groupId/messages.
func (h *GroupHandler) GetGroupMessages(c *gin.Context) {
	msgs, err := h.svc.GetGroupMessages(c.Request.Context(), c.GetString(middleware.UserIDKey), c.Param("groupId"))
	if err != nil {
		writeError(c, h.audit, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

// SendGroupMessage handles POST /api/groups/send/:groupId.
func (h *GroupHandler) SendGroupMessage(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		emitAudit(c, h.audit, telemetry.ActionRequestFailed, "ERROR", "invalid request payload", "")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.svc.SendGroup(c.Request.Context(), c.GetString(middleware.UserIDKey), c.Param("groupId"), dispatch.Content{Text: req.Text, Image: req.Image})
	if err != nil {
		writeError(c, h.audit, err)
		return
	}
	emitAudit(c, h.audit, telemetry.ActionGroupMessage, "INFO", "Group message sent", msg.ID)
	c.JSON(http.StatusCreated, msg)
}

// UpdateGroup handles PUT /api/groups/update/:groupId.
func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	var req struct {
		Name     *string `json:"name"`
		GroupPic *string `json:"groupPic"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		emitAudit(c, h.audit, telemetry.ActionRequestFailed, "ERROR", "invalid request payload", "")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.svc.UpdateGroup(c.Request.Context(), c.GetString(middleware.UserIDKey), c.Param("groupId"), models.GroupPatch{Name: req.Name, GroupPic: req.GroupPic})
	if err != nil {
		writeError(c, h.audit, err)
		return
	}
	emitAudit(c, h.audit, telemetry.ActionGroupUpdated, "INFO", "Group updated", group.ID)
	c.JSON(http.StatusOK, group)
}

// JoinGroup handles POST /api/groups/join/:groupId.
func (h *GroupHandler) JoinGroup(c *gin.Context) {
	group, err := h.svc.JoinGroup(c.Request.Context(), c.GetString(middleware.UserIDKey), c.Param("groupId"))
	if err != nil {
		writeError(c, h.audit, err)
		return
	}
	emitAudit(c, h.audit, telemetry.ActionGroupJoined, "INFO", "Joined group", group.ID)
	c.JSON(http.StatusOK, group)
}
