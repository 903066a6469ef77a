package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"roomchat/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for room messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	ListRoomMessages(ctx context.Context, roomID string) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, room_id, text, image_url, sender_id, sender_name, sender_photo, type, client_key, created_at`

// CreateMessage stores a message with a server-assigned timestamp. The insert
// is keyed on the caller-supplied client key, so retrying a send that already
// landed returns the existing record instead of persisting a duplicate.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	var stored models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (room_id, text, image_url, sender_id, sender_name, sender_photo, type, client_key)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (client_key) DO NOTHING
        RETURNING `+messageColumns,
		msg.RoomID, msg.Text, msg.ImageURL, msg.SenderID, msg.SenderName, msg.SenderPhoto, msg.Type, msg.ClientKey).
		StructScan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		// Conflict on client_key: the earlier attempt already landed.
		err = r.db.GetContext(ctx, &stored, `SELECT `+messageColumns+` FROM messages WHERE client_key=$1`, msg.ClientKey)
	}
	return stored, err
}

// ListRoomMessages returns the full message log of a room, ordered by server
// timestamp ascending with the row id breaking ties.
func (r *MessageRepo) ListRoomMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages WHERE room_id=$1 ORDER BY created_at ASC, id ASC`, roomID)
	return msgs, err
}
