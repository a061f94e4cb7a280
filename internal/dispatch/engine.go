// Package dispatch persists chat messages and group changes and fans them out
// to live connections.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"

	"trustchat/internal/media"
	"trustchat/internal/models"
	"trustchat/internal/telemetry"
)

// MessageStore is the system of record for messages.
type MessageStore interface {
	Create(ctx context.Context, msg models.Message) (models.Message, error)
	Get(ctx context.Context, messageID string) (models.Message, error)
	Conversation(ctx context.Context, userA, userB string) ([]models.Message, error)
	MarkConversationSeen(ctx context.Context, senderID, receiverID string) (int64, error)
	MarkSeen(ctx context.Context, messageID string) error
	SetScam(ctx context.Context, messageID string) error
	ListGroupMessages(ctx context.Context, groupID string) ([]models.Message, error)
	UnseenCounts(ctx context.Context, receiverID string) (map[string]int, error)
}

// GroupStore is the system of record for groups and their members.
type GroupStore interface {
	Create(ctx context.Context, group models.ChatGroup) (models.ChatGroup, error)
	Get(ctx context.Context, groupID string) (models.ChatGroup, error)
	AddMember(ctx context.Context, groupID, userID string) error
	Update(ctx context.Context, groupID string, name, groupPic *string) (models.ChatGroup, error)
	ListForUser(ctx context.Context, userID string) ([]models.ChatGroup, error)
}

// UserDirectory resolves user projections.
type UserDirectory interface {
	Resolve(ctx context.Context, userIDs []string) (map[string]models.Sender, error)
	ListExcept(ctx context.Context, userID string) ([]models.User, error)
}

// MediaResolver turns raw image data into a durable URL.
type MediaResolver interface {
	Upload(ctx context.Context, raw string) (string, error)
}

// Notifier delivers events to live connections.
type Notifier interface {
	SendToUser(userID string, event models.Event) bool
	BroadcastRoom(room string, event models.Event) int
}

// Scheduler accepts background classification work. Submit must not block.
type Scheduler interface {
	Submit(messageID, text string) bool
}

// Auditor records actions taken outside any request, such as scam flags.
type Auditor interface {
	Record(ctx context.Context, entry telemetry.Entry)
}

// Content is the user-supplied body of a message.
type Content struct {
	Text  string
	Image string
}

// Deps groups the collaborators of an Engine.
type Deps struct {
	Messages  MessageStore
	Groups    GroupStore
	Users     UserDirectory
	Media     MediaResolver
	Notifier  Notifier
	Scheduler Scheduler
	Audit     Auditor
	Log       *slog.Logger
}

// Engine orchestrates sends, group changes and classification follow-ups.
// It keeps no state between calls: membership and presence are read fresh.
type Engine struct {
	messages  MessageStore
	groups    GroupStore
	users     UserDirectory
	media     MediaResolver
	notifier  Notifier
	scheduler Scheduler
	audit     Auditor
	log       *slog.Logger
}

// NewEngine constructs an Engine.
func NewEngine(d Deps) *Engine {
	return &Engine{
		messages:  d.Messages,
		groups:    d.Groups,
		users:     d.Users,
		media:     d.Media,
		notifier:  d.Notifier,
		scheduler: d.Scheduler,
		audit:     d.Audit,
		log:       d.Log,
	}
}

func validateContent(c Content) error {
	if strings.TrimSpace(c.Text) == "" && strings.TrimSpace(c.Image) == "" {
		return fmt.Errorf("%w: message needs text or an image", ErrValidation)
	}
	return nil
}

func (e *Engine) uploadImage(ctx context.Context, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	url, err := e.media.Upload(ctx, raw)
	if isBadImage(err) {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMediaUpload, err)
	}
	return url, nil
}

// isBadImage reports errors caused by the payload the client sent rather than
// by the storage backend.
func isBadImage(err error) bool {
	return errors.Is(err, media.ErrEmptyImage) ||
		errors.Is(err, media.ErrInvalidImage) ||
		errors.Is(err, media.ErrNotAnImage) ||
		errors.Is(err, media.ErrTooLarge)
}

// enrich attaches sender projections. A directory failure leaves messages
// unenriched; they are already persisted at this point.
func (e *Engine) enrich(ctx context.Context, msgs []models.Message) []models.Message {
	if len(msgs) == 0 {
		return msgs
	}
	ids := lo.Uniq(lo.Map(msgs, func(m models.Message, _ int) string { return m.SenderID }))
	senders, err := e.users.Resolve(ctx, ids)
	if err != nil {
		e.log.Warn("sender enrichment failed", "error", err)
		return msgs
	}
	for i := range msgs {
		if s, ok := senders[msgs[i].SenderID]; ok {
			s := s
			msgs[i].Sender = &s
		}
	}
	return msgs
}

func (e *Engine) enrichOne(ctx context.Context, msg models.Message) models.Message {
	return e.enrich(ctx, []models.Message{msg})[0]
}

func (e *Engine) schedule(msg models.Message) {
	if strings.TrimSpace(msg.Text) == "" {
		return
	}
	if !e.scheduler.Submit(msg.ID, msg.Text) {
		e.log.Warn("classification not scheduled", "message_id", msg.ID)
	}
}
