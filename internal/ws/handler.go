package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"trustchat/internal/middleware"
	"trustchat/internal/models"
	"trustchat/internal/observability"
)

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// MembershipChecker answers whether a user belongs to a group.
type MembershipChecker interface {
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
}

// Handler upgrades authenticated requests and serves the socket.
type Handler struct {
	hub      *Hub
	verifier TokenVerifier
	groups   MembershipChecker
	log      *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(hub *Hub, verifier TokenVerifier, groups MembershipChecker, log *slog.Logger) *Handler {
	return &Handler{hub: hub, verifier: verifier, groups: groups, log: log}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection, registers the client and reads inbound frames until close.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("trustchat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.Query("token")
	if token == "" {
		token = middleware.TokenFromRequest(c.Request)
	}
	userID, err := h.verifier.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := NewClient(conn, info)
	h.hub.Register(client)
	h.publishLifecycle(ctx, info, "ws_connect", "")

	go h.readLoop(context.WithoutCancel(ctx), conn, client)
}

type frameReader interface {
	ReadMessage() (int, []byte, error)
}

func (h *Handler) readLoop(ctx context.Context, conn frameReader, client *Client) {
	var closeReason string
	defer func() {
		h.hub.Unregister(client)
		h.publishLifecycle(ctx, client.Info, "ws_disconnect", closeReason)
		_ = client.conn.Close()
	}()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("presence", "ws_error")
			}
			return
		}
		h.handleFrame(ctx, client, data)
	}
}

func (h *Handler) handleFrame(ctx context.Context, client *Client, data []byte) {
	var in models.Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		h.log.Warn("malformed frame", "conn_id", client.ID(), "error", err)
		return
	}
	switch in.Type {
	case models.InboundJoinGroup:
		if in.GroupID == "" {
			return
		}
		member, err := h.groups.IsMember(ctx, in.GroupID, client.Info.UserID)
		if err != nil {
			h.log.Error("membership check failed", "group_id", in.GroupID, "error", err)
			return
		}
		if !member {
			h.log.Warn("join refused for non-member", "group_id", in.GroupID, "user_id", client.Info.UserID)
			return
		}
		h.hub.Join(client.ID(), models.GroupRoom(in.GroupID))
		observability.IncWSEvent("presence", in.Type)
	default:
		h.log.Debug("ignoring frame", "type", in.Type)
	}
}

func (h *Handler) publishLifecycle(ctx context.Context, info ConnInfo, event, reason string) {
	observability.IncWSEvent("presence", event)
	_ = observability.PublishEvent(ctx, "ws_events.presence", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		RequestID: info.RequestID,
		TraceID:   info.TraceID,
		Payload:   wsPayload(info, event, reason),
	})
}
