package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trustchat/internal/models"
	"trustchat/internal/observability"
	"trustchat/internal/presence"
)

const writeWait = 10 * time.Second

// Conn is the subset of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client is one live socket. It belongs to exactly one user for its lifetime.
type Client struct {
	Info ConnInfo
	conn Conn
	mu   sync.Mutex
}

// NewClient wraps conn for info.
func NewClient(conn Conn, info ConnInfo) *Client {
	if info.ConnID == "" {
		info.ConnID = newConnID()
	}
	return &Client{Info: info, conn: conn}
}

// ID returns the connection id.
func (c *Client) ID() string { return c.Info.ConnID }

func (c *Client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub owns live connections, the presence registry and connection rooms.
type Hub struct {
	presence   presence.Registry
	clients    map[string]*Client
	rooms      map[string]map[string]struct{}
	mu         sync.RWMutex
	// announceMu orders presence changes with their onlineUsers broadcast so
	// the last snapshot a client receives is the current one.
	announceMu sync.Mutex
	log        *slog.Logger
}

// NewHub creates an empty hub over registry.
func NewHub(registry presence.Registry, log *slog.Logger) *Hub {
	return &Hub{
		presence: registry,
		clients:  make(map[string]*Client),
		rooms:    make(map[string]map[string]struct{}),
		log:      log,
	}
}

// Register makes client reachable and announces the new online set to everyone.
func (h *Hub) Register(client *Client) {
	h.announceMu.Lock()
	defer h.announceMu.Unlock()

	h.mu.Lock()
	h.clients[client.ID()] = client
	h.mu.Unlock()

	online := h.presence.Connect(client.Info.UserID, client.ID())
	observability.IncWSActive("presence")
	h.log.Info("user connected", "user_id", client.Info.UserID, "conn_id", client.ID())
	h.BroadcastAll(models.Event{Type: models.EventOnlineUsers, Data: online})
}

// Unregister drops client from the hub and every room it joined. Presence is
// cleared only if client is still the user's current connection.
func (h *Hub) Unregister(client *Client) {
	h.announceMu.Lock()
	defer h.announceMu.Unlock()

	h.mu.Lock()
	_, known := h.clients[client.ID()]
	delete(h.clients, client.ID())
	for key, members := range h.rooms {
		delete(members, client.ID())
		if len(members) == 0 {
			delete(h.rooms, key)
		}
	}
	h.mu.Unlock()
	if !known {
		return
	}

	observability.DecWSActive("presence")
	if !h.presence.Disconnect(client.Info.UserID, client.ID()) {
		h.log.Debug("stale disconnect ignored", "user_id", client.Info.UserID, "conn_id", client.ID())
	}
	h.log.Info("user disconnected", "user_id", client.Info.UserID, "conn_id", client.ID())
	h.BroadcastAll(models.Event{Type: models.EventOnlineUsers, Data: h.presence.ListOnline()})
}

// Join adds a connection to a room. Joining twice is a no-op.
func (h *Hub) Join(connID, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[connID]; !ok {
		return false
	}
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[string]struct{})
	}
	h.rooms[room][connID] = struct{}{}
	return true
}

// InRoom reports whether connID has joined room.
func (h *Hub) InRoom(connID, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][connID]
	return ok
}

// BroadcastRoom delivers event to every connection in room and returns the
// number of successful writes. Connections that are gone are skipped.
func (h *Hub) BroadcastRoom(room string, event models.Event) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[room]))
	for connID := range h.rooms[room] {
		if c, ok := h.clients[connID]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	return h.deliver(targets, event)
}

// SendToUser delivers event to the user's live connection, if any.
func (h *Hub) SendToUser(userID string, event models.Event) bool {
	connID, ok := h.presence.Lookup(userID)
	if !ok {
		return false
	}
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return h.deliver([]*Client{client}, event) == 1
}

// BroadcastAll delivers event to every live connection.
func (h *Hub) BroadcastAll(event models.Event) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	return h.deliver(targets, event)
}

func (h *Hub) deliver(targets []*Client, event models.Event) int {
	if len(targets) == 0 {
		return 0
	}
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("marshal event", "type", event.Type, "error", err)
		return 0
	}
	delivered := 0
	for _, c := range targets {
		if err := c.write(payload); err != nil {
			h.log.Warn("websocket write error", "conn_id", c.ID(), "error", err)
			_ = c.conn.Close()
			h.publishWSError(c, err)
			continue
		}
		delivered++
		observability.IncWSEvent("presence", event.Type)
	}
	return delivered
}

func (h *Hub) publishWSError(c *Client, err error) {
	info := c.Info
	observability.IncWSEvent("presence", "ws_error")
	_ = observability.PublishEvent(context.Background(), "ws_events.presence", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		RequestID: info.RequestID,
		TraceID:   info.TraceID,
		Payload:   wsPayload(info, "ws_error", err.Error()),
	})
}

func wsPayload(info ConnInfo, event, reason string) map[string]interface{} {
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
}
