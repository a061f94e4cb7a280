package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"trustchat/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `id, sender_id, receiver_id, group_id, text, image, seen, is_scam, created_at`

// MessageRepository defines persistence of direct and group messages.
type MessageRepository interface {
	Create(ctx context.Context, msg models.Message) (models.Message, error)
	Get(ctx context.Context, messageID string) (models.Message, error)
	Conversation(ctx context.Context, userA, userB string) ([]models.Message, error)
	MarkConversationSeen(ctx context.Context, senderID, receiverID string) (int64, error)
	MarkSeen(ctx context.Context, messageID string) error
	SetScam(ctx context.Context, messageID string) error
	ListGroupMessages(ctx context.Context, groupID string) ([]models.Message, error)
	UnseenCounts(ctx context.Context, receiverID string) (map[string]int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

type messageRow struct {
	ID         string         `db:"id"`
	SenderID   string         `db:"sender_id"`
	ReceiverID sql.NullString `db:"receiver_id"`
	GroupID    sql.NullString `db:"group_id"`
	Text       string         `db:"text"`
	Image      string         `db:"image"`
	Seen       bool           `db:"seen"`
	IsScam     bool           `db:"is_scam"`
	CreatedAt  time.Time      `db:"created_at"`
}

func (r messageRow) toModel() (models.Message, error) {
	msg := models.Message{
		ID:        r.ID,
		SenderID:  r.SenderID,
		Text:      r.Text,
		Image:     r.Image,
		Seen:      r.Seen,
		IsScam:    r.IsScam,
		CreatedAt: r.CreatedAt,
	}
	switch {
	case r.ReceiverID.Valid && !r.GroupID.Valid:
		msg.Recipient = models.DirectRecipient{ReceiverID: r.ReceiverID.String}
	case r.GroupID.Valid && !r.ReceiverID.Valid:
		msg.Recipient = models.GroupRecipient{GroupID: r.GroupID.String}
	default:
		return models.Message{}, fmt.Errorf("message %s: %w", r.ID, models.ErrNoRecipient)
	}
	return msg, nil
}

func rowsToModels(rows []messageRow) ([]models.Message, error) {
	msgs := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		msg, err := row.toModel()
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Create stores a message with seen and is_scam false.
func (r *MessageRepo) Create(ctx context.Context, msg models.Message) (models.Message, error) {
	var receiverID, groupID sql.NullString
	switch rcpt := msg.Recipient.(type) {
	case models.DirectRecipient:
		receiverID = sql.NullString{String: rcpt.ReceiverID, Valid: true}
	case models.GroupRecipient:
		groupID = sql.NullString{String: rcpt.GroupID, Valid: true}
	default:
		return models.Message{}, models.ErrNoRecipient
	}

	var row messageRow
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (sender_id, receiver_id, group_id, text, image) VALUES ($1, $2, $3, $4, $5) RETURNING `+messageColumns,
		msg.SenderID, receiverID, groupID, msg.Text, msg.Image).StructScan(&row)
	if err != nil {
		return models.Message{}, err
	}
	return row.toModel()
}

// Get retrieves a single message.
func (r *MessageRepo) Get(ctx context.Context, messageID string) (models.Message, error) {
	if !validID(messageID) {
		return models.Message{}, ErrMessageNotFound
	}
	var row messageRow
	err := r.db.GetContext(ctx, &row, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	return row.toModel()
}

// Conversation returns the direct messages exchanged by two users, oldest first.
func (r *MessageRepo) Conversation(ctx context.Context, userA, userB string) ([]models.Message, error) {
	if !validID(userA) || !validID(userB) {
		return []models.Message{}, nil
	}
	query := `SELECT ` + messageColumns + ` FROM messages
        WHERE (sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1)
        ORDER BY created_at ASC`
	var rows []messageRow
	if err := r.db.SelectContext(ctx, &rows, query, userA, userB); err != nil {
		return nil, err
	}
	return rowsToModels(rows)
}

// MarkConversationSeen flags every unseen message from senderID to receiverID.
func (r *MessageRepo) MarkConversationSeen(ctx context.Context, senderID, receiverID string) (int64, error) {
	if !validID(senderID) || !validID(receiverID) {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET seen = TRUE WHERE sender_id=$1 AND receiver_id=$2 AND seen = FALSE`, senderID, receiverID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkSeen flags one direct message as seen. Repeating it is harmless.
func (r *MessageRepo) MarkSeen(ctx context.Context, messageID string) error {
	if !validID(messageID) {
		return ErrMessageNotFound
	}
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET seen = TRUE WHERE id=$1 AND receiver_id IS NOT NULL`, messageID)
	if err != nil {
		return err
	}
	return expectAffected(res, ErrMessageNotFound)
}

// SetScam flags a message as a suspected scam.
func (r *MessageRepo) SetScam(ctx context.Context, messageID string) error {
	if !validID(messageID) {
		return ErrMessageNotFound
	}
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_scam = TRUE WHERE id=$1`, messageID)
	if err != nil {
		return err
	}
	return expectAffected(res, ErrMessageNotFound)
}

// ListGroupMessages returns a group's messages ordered by creation.
func (r *MessageRepo) ListGroupMessages(ctx context.Context, groupID string) ([]models.Message, error) {
	if !validID(groupID) {
		return []models.Message{}, nil
	}
	var rows []messageRow
	err := r.db.SelectContext(ctx, &rows, `SELECT `+messageColumns+` FROM messages WHERE group_id=$1 ORDER BY created_at ASC`, groupID)
	if err != nil {
		return nil, err
	}
	return rowsToModels(rows)
}

// UnseenCounts returns, per sender, how many direct messages receiverID has not seen.
func (r *MessageRepo) UnseenCounts(ctx context.Context, receiverID string) (map[string]int, error) {
	var rows []struct {
		SenderID string `db:"sender_id"`
		Unseen   int    `db:"unseen"`
	}
	err := r.db.SelectContext(ctx, &rows, `SELECT sender_id, COUNT(*) AS unseen FROM messages WHERE receiver_id=$1 AND seen = FALSE GROUP BY sender_id`, receiverID)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.SenderID] = row.Unseen
	}
	return counts, nil
}

// validID reports whether id can name a row. Every key column is a UUID, and
// anything else would fail in Postgres rather than simply match nothing.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func expectAffected(res sql.Result, notFound error) error {
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return notFound
	}
	return nil
}
