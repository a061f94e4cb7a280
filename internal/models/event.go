package models

// Event names emitted to live connections.
const (
	EventNewMessage      = "newMessage"
	EventNewGroupMessage = "newGroupMessage"
	EventMessageUpdated  = "messageUpdated"
	EventAddedToGroup    = "addedToGroup"
	EventGroupUpdated    = "groupUpdated"
	EventOnlineUsers     = "getOnlineUsers"
)

// Inbound websocket frame types.
const (
	InboundJoinGroup = "joinGroup"
)

// Event is the outbound websocket frame.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Inbound is a frame received from a client.
type Inbound struct {
	Type    string `json:"type"`
	GroupID string `json:"groupId,omitempty"`
}

// GroupRoom is the broadcast room key of a group.
func GroupRoom(groupID string) string {
	return "group_" + groupID
}
