package models

import "time"

// Room represents a chat room. The room ID doubles as the invite code.
type Room struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	OwnerID   int       `db:"owner_id" json:"owner_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// Joiners is the membership set. It only grows; joins are set-unions.
	Joiners     []int `json:"joiners"`
	JoinerCount int   `json:"joiner_count"`
}

// RoomEvent is emitted over room watch connections. Every event carries the
// full current state of what changed rather than a delta: a fresh Room
// snapshot, or the complete ordered message log.
type RoomEvent struct {
	Type     string    `json:"type"`
	Room     *Room     `json:"room,omitempty"`
	Messages []Message `json:"messages,omitempty"`
}

// Room watch event types.
const (
	EventRoom        = "room"
	EventMessages    = "messages"
	EventRoomDeleted = "room_deleted"
)
