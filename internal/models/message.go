package models

import "time"

// Message kinds.
const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeSystem = "system"
)

// Message represents a message in a room. Sender fields are a snapshot of the
// sender's profile taken at send time; they are never re-resolved.
type Message struct {
	ID          int       `db:"id" json:"id"`
	RoomID      string    `db:"room_id" json:"room_id"`
	Text        string    `db:"text" json:"text"`
	ImageURL    *string   `db:"image_url" json:"image_url"`
	SenderID    int       `db:"sender_id" json:"sender_id"`
	SenderName  string    `db:"sender_name" json:"sender_name"`
	SenderPhoto string    `db:"sender_photo" json:"sender_photo"`
	Type        string    `db:"type" json:"type"`
	ClientKey   string    `db:"client_key" json:"client_key"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
