package ws

import "time"

// ConnInfo is the identity and request metadata captured at handshake.
type ConnInfo struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
