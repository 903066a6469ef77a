package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"roomchat/internal/models"
)

var ErrRoomNotFound = errors.New("room not found")

// RoomRepository abstracts room persistence.
type RoomRepository interface {
	CreateRoom(ctx context.Context, ownerID int, name string) (models.Room, error)
	GetRoom(ctx context.Context, roomID string) (models.Room, error)
	JoinRoom(ctx context.Context, roomID string, userID int) (bool, error)
	IsMember(ctx context.Context, roomID string, userID int) (bool, error)
	DeleteRoom(ctx context.Context, roomID string) error
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// CreateRoom creates a room and its owner membership atomically. The generated
// room ID doubles as the invite code.
func (r *RoomRepo) CreateRoom(ctx context.Context, ownerID int, name string) (models.Room, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	roomID := uuid.NewString()

	var room models.Room
	if err = tx.QueryRowxContext(ctx, `INSERT INTO rooms (id, name, owner_id) VALUES ($1, $2, $3) RETURNING id, name, owner_id, created_at`, roomID, name, ownerID).
		Scan(&room.ID, &room.Name, &room.OwnerID, &room.CreatedAt); err != nil {
		return models.Room{}, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO room_members (room_id, user_id) VALUES ($1, $2)`, room.ID, ownerID); err != nil {
		return models.Room{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Room{}, err
	}

	room.Joiners = []int{ownerID}
	room.JoinerCount = 1
	return room, nil
}

// GetRoom fetches a room together with its membership set.
func (r *RoomRepo) GetRoom(ctx context.Context, roomID string) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room, `SELECT id, name, owner_id, created_at FROM rooms WHERE id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	if err != nil {
		return models.Room{}, err
	}

	joiners := []int{}
	if err := r.db.SelectContext(ctx, &joiners, `SELECT user_id FROM room_members WHERE room_id=$1 ORDER BY joined_at ASC`, roomID); err != nil {
		return models.Room{}, err
	}
	room.Joiners = joiners
	room.JoinerCount = len(joiners)
	return room, nil
}

// JoinRoom adds the user to the membership set and reports whether the set
// actually grew. The insert is a set-union: rejoining an existing member
// changes nothing, and concurrent joins by different users cannot lose each
// other.
func (r *RoomRepo) JoinRoom(ctx context.Context, roomID string, userID int) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM rooms WHERE id=$1)`, roomID); err != nil {
		return false, err
	}
	if !exists {
		return false, ErrRoomNotFound
	}

	res, err := r.db.ExecContext(ctx, `INSERT INTO room_members (room_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, roomID, userID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// IsMember checks membership.
func (r *RoomRepo) IsMember(ctx context.Context, roomID string, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM room_members WHERE room_id=$1 AND user_id=$2)`, roomID, userID)
	return exists, err
}

// DeleteRoom permanently removes the room. Members and the message log go with
// it via cascading foreign keys.
func (r *RoomRepo) DeleteRoom(ctx context.Context, roomID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id=$1`, roomID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrRoomNotFound
	}
	return nil
}
