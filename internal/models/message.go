package models

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNoRecipient    = errors.New("message needs exactly one recipient")
	ErrEmptyRecipient = errors.New("recipient id is empty")
)

// Recipient is the target of a message: either a single user or a group.
// The two implementations are the only ones; the interface is sealed.
type Recipient interface {
	isRecipient()
}

// DirectRecipient addresses a message to one user.
type DirectRecipient struct {
	ReceiverID string
}

// GroupRecipient addresses a message to a group room.
type GroupRecipient struct {
	GroupID string
}

func (DirectRecipient) isRecipient() {}

func (GroupRecipient) isRecipient() {}

// Sender is the read-only projection of a user attached to delivered messages.
type Sender struct {
	ID         string `json:"_id" db:"id"`
	FullName   string `json:"fullName" db:"full_name"`
	ProfilePic string `json:"profilePic" db:"profile_pic"`
}

// Message is a persisted chat message.
type Message struct {
	ID        string
	SenderID  string
	Sender    *Sender
	Recipient Recipient
	Text      string
	Image     string
	Seen      bool
	IsScam    bool
	CreatedAt time.Time
}

// NewDirectMessage builds an unsaved direct message.
func NewDirectMessage(senderID, receiverID, text, image string) (Message, error) {
	if receiverID == "" {
		return Message{}, ErrEmptyRecipient
	}
	return Message{SenderID: senderID, Recipient: DirectRecipient{ReceiverID: receiverID}, Text: text, Image: image}, nil
}

// NewGroupMessage builds an unsaved group message.
func NewGroupMessage(senderID, groupID, text, image string) (Message, error) {
	if groupID == "" {
		return Message{}, ErrEmptyRecipient
	}
	return Message{SenderID: senderID, Recipient: GroupRecipient{GroupID: groupID}, Text: text, Image: image}, nil
}

// ReceiverID returns the direct receiver, if any.
func (m Message) ReceiverID() (string, bool) {
	d, ok := m.Recipient.(DirectRecipient)
	return d.ReceiverID, ok
}

// GroupID returns the target group, if any.
func (m Message) GroupID() (string, bool) {
	g, ok := m.Recipient.(GroupRecipient)
	return g.GroupID, ok
}

type messageJSON struct {
	ID         string    `json:"_id"`
	SenderID   any       `json:"senderId"`
	ReceiverID *string   `json:"receiverId"`
	GroupID    *string   `json:"groupId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	Seen       bool      `json:"seen"`
	IsScam     bool      `json:"isScam"`
	CreatedAt  time.Time `json:"createdAt"`
}

// MarshalJSON renders the sender as a populated object when enriched, the way
// clients render it, and exactly one of receiverId/groupId.
func (m Message) MarshalJSON() ([]byte, error) {
	out := messageJSON{
		ID:        m.ID,
		SenderID:  m.SenderID,
		Text:      m.Text,
		Image:     m.Image,
		Seen:      m.Seen,
		IsScam:    m.IsScam,
		CreatedAt: m.CreatedAt,
	}
	if m.Sender != nil {
		out.SenderID = m.Sender
	}
	switch r := m.Recipient.(type) {
	case DirectRecipient:
		out.ReceiverID = &r.ReceiverID
	case GroupRecipient:
		out.GroupID = &r.GroupID
	default:
		return nil, ErrNoRecipient
	}
	return json.Marshal(out)
}
