package dispatch

import (
	"context"
	"errors"
	"fmt"

	"trustchat/internal/models"
	"trustchat/internal/repositories"
	"trustchat/internal/telemetry"
)

// ApplyVerdict records a classification result. A scam verdict flags the
// message and re-sends it as messageUpdated to the audience of the original:
// the receiver's live connection for direct messages, the room for groups.
func (e *Engine) ApplyVerdict(ctx context.Context, messageID string, isScam bool) error {
	if !isScam {
		return nil
	}
	if err := e.messages.SetScam(ctx, messageID); err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return fmt.Errorf("%w: message %s", ErrNotFound, messageID)
		}
		return fmt.Errorf("flag message: %w", err)
	}
	msg, err := e.messages.Get(ctx, messageID)
	if err != nil {
		return fmt.Errorf("reload message: %w", err)
	}
	msg = e.enrichOne(ctx, msg)

	event := models.Event{Type: models.EventMessageUpdated, Data: msg}
	switch r := msg.Recipient.(type) {
	case models.DirectRecipient:
		e.notifier.SendToUser(r.ReceiverID, event)
	case models.GroupRecipient:
		e.notifier.BroadcastRoom(models.GroupRoom(r.GroupID), event)
	}
	e.log.Info("message flagged as scam", "message_id", messageID)
	if e.audit != nil {
		e.audit.Record(ctx, telemetry.Entry{
			Action:   telemetry.ActionMessageFlagged,
			Level:    "WARN",
			Text:     "Message flagged as scam",
			Resource: messageID,
			UserID:   &msg.SenderID,
		})
	}
	return nil
}
