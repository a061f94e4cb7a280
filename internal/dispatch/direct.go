package dispatch

import (
	"context"
	"errors"
	"fmt"

	"trustchat/internal/models"
	"trustchat/internal/observability"
	"trustchat/internal/repositories"
)

// SendDirect persists a direct message, pushes it to the receiver when online
// and schedules classification. The returned message is what the sender renders.
func (e *Engine) SendDirect(ctx context.Context, senderID, receiverID string, content Content) (models.Message, error) {
	if err := validateContent(content); err != nil {
		return models.Message{}, err
	}
	draft, err := models.NewDirectMessage(senderID, receiverID, content.Text, "")
	if err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if draft.Image, err = e.uploadImage(ctx, content.Image); err != nil {
		return models.Message{}, err
	}

	saved, err := e.messages.Create(ctx, draft)
	if err != nil {
		return models.Message{}, fmt.Errorf("store message: %w", err)
	}
	saved = e.enrichOne(ctx, saved)

	delivered := e.notifier.SendToUser(receiverID, models.Event{Type: models.EventNewMessage, Data: saved})
	observability.IncMessageSent("direct", delivered)
	e.log.Debug("direct message sent", "message_id", saved.ID, "delivered", delivered)

	e.schedule(saved)
	return saved, nil
}

// GetConversation returns the messages between me and other, oldest first, and
// marks the ones other sent to me as seen as part of the same read.
func (e *Engine) GetConversation(ctx context.Context, me, other string) ([]models.Message, error) {
	if _, err := e.messages.MarkConversationSeen(ctx, other, me); err != nil {
		return nil, fmt.Errorf("mark conversation seen: %w", err)
	}
	msgs, err := e.messages.Conversation(ctx, me, other)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	return e.enrich(ctx, msgs), nil
}

// MarkSeen flags a single direct message as seen.
func (e *Engine) MarkSeen(ctx context.Context, messageID string) error {
	err := e.messages.MarkSeen(ctx, messageID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return fmt.Errorf("%w: message %s", ErrNotFound, messageID)
	}
	return err
}

// ListContacts returns every other user and how many unseen messages each sent to me.
func (e *Engine) ListContacts(ctx context.Context, me string) (models.Contacts, error) {
	users, err := e.users.ListExcept(ctx, me)
	if err != nil {
		return models.Contacts{}, fmt.Errorf("list users: %w", err)
	}
	unseen, err := e.messages.UnseenCounts(ctx, me)
	if err != nil {
		return models.Contacts{}, fmt.Errorf("count unseen: %w", err)
	}
	return models.Contacts{Users: users, UnseenMessages: unseen}, nil
}
