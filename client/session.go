package client

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"roomchat/internal/models"
)

// SessionHandler receives room state changes. Callbacks run on the session's
// event goroutine, one at a time, and never after the session has closed.
// RoomDeleted is terminal: the owner removed the room remotely and the
// consumer should navigate away.
type SessionHandler struct {
	RoomUpdated     func(models.Room)
	MessagesUpdated func([]models.Message)
	RoomDeleted     func()
}

// RoomSession is a live view of one room. It owns the watch subscription for
// the room's metadata and ordered message log, projecting each delivered
// state wholesale into local state, plus the compose state (draft text and
// staged attachment) for that room.
//
// Sent messages are never inserted locally; the message list only changes
// when the watch re-delivers it. Sending() covers the latency gap.
type RoomSession struct {
	client  *Client
	roomID  string
	source  EventSource
	handler SessionHandler

	mu       sync.Mutex
	room     models.Room
	haveRoom bool
	messages []models.Message
	closed   bool
	deleted  bool

	sending     bool
	composeText string
	attachment  *Attachment
	composeKey  string
}

// OpenRoom starts watching a room. Close the session before opening another
// view of a different room so no stale updates bleed across.
func (c *Client) OpenRoom(ctx context.Context, roomID string, handler SessionHandler) (*RoomSession, error) {
	if _, ok := c.CurrentUser(); !ok {
		return nil, ErrUnauthenticated
	}

	source, err := c.dialWatch(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("open room watch: %w", err)
	}
	return newRoomSession(c, roomID, source, handler), nil
}

func newRoomSession(c *Client, roomID string, source EventSource, handler SessionHandler) *RoomSession {
	s := &RoomSession{
		client:  c,
		roomID:  roomID,
		source:  source,
		handler: handler,
	}
	go s.run()
	return s
}

func (s *RoomSession) run() {
	for event := range s.source.Events() {
		s.apply(event)
	}
}

// apply projects one delivered event into local state. Events arriving after
// the session closed are discarded.
func (s *RoomSession) apply(event models.RoomEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	switch event.Type {
	case models.EventRoom:
		if event.Room == nil {
			s.mu.Unlock()
			return
		}
		s.room = *event.Room
		s.room.JoinerCount = len(s.room.Joiners)
		s.haveRoom = true
		room := s.room
		s.mu.Unlock()
		if s.handler.RoomUpdated != nil {
			s.handler.RoomUpdated(room)
		}

	case models.EventMessages:
		// Full ordered sequence, replaced wholesale.
		s.messages = event.Messages
		msgs := append([]models.Message(nil), event.Messages...)
		s.mu.Unlock()
		if s.handler.MessagesUpdated != nil {
			s.handler.MessagesUpdated(msgs)
		}

	case models.EventRoomDeleted:
		// Terminal regardless of whatever the message subscription still had
		// in flight.
		s.closed = true
		s.deleted = true
		att := s.attachment
		s.attachment = nil
		s.mu.Unlock()
		if att != nil {
			att.Release()
		}
		s.source.Close()
		if s.handler.RoomDeleted != nil {
			s.handler.RoomDeleted()
		}

	default:
		s.mu.Unlock()
	}
}

// Close cancels the watch subscription and releases any staged attachment.
// Events that race with Close are discarded.
func (s *RoomSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	att := s.attachment
	s.attachment = nil
	s.mu.Unlock()

	if att != nil {
		att.Release()
	}
	s.source.Close()
}

// Room returns the latest room snapshot, if one has been delivered.
func (s *RoomSession) Room() (models.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room, s.haveRoom
}

// Messages returns a copy of the current ordered message log.
func (s *RoomSession) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages...)
}

// Deleted reports whether the room was removed remotely.
func (s *RoomSession) Deleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleted
}

// Sending reports whether a send is in flight.
func (s *RoomSession) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

// SetText updates the compose draft. Editing the draft starts a new logical
// message, so the send key is reset.
func (s *RoomSession) SetText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.composeText = text
	s.composeKey = ""
}

// Text returns the compose draft.
func (s *RoomSession) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.composeText
}

// Attach stages an attachment for the next send, releasing any previously
// staged one. On a closed session the attachment is released immediately since
// no send can ever consume it.
func (s *RoomSession) Attach(att *Attachment) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if att != nil {
			att.Release()
		}
		return
	}
	prev := s.attachment
	s.attachment = att
	s.composeKey = ""
	s.mu.Unlock()

	if prev != nil {
		prev.Release()
	}
}

// Attachment returns the currently staged attachment, if any.
func (s *RoomSession) Attachment() *Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attachment
}

// ClearAttachment discards the staged attachment and releases its preview.
func (s *RoomSession) ClearAttachment() {
	s.Attach(nil)
}

// Send runs the two-phase send: upload the staged attachment if present, then
// persist the message with the sender snapshot taken now. On success the
// compose state is cleared; on any failure it is left intact so the user can
// retry, and nothing partial is ever persisted.
//
// Each logical message gets one client key, reused across retries, so a retry
// after an ambiguous failure cannot store a duplicate.
func (s *RoomSession) Send(ctx context.Context) error {
	if _, ok := s.client.CurrentUser(); !ok {
		return ErrUnauthenticated
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.sending {
		s.mu.Unlock()
		return ErrSendInFlight
	}
	text := s.composeText
	att := s.attachment
	if strings.TrimSpace(text) == "" && att == nil {
		s.mu.Unlock()
		return ErrEmptyMessage
	}
	if s.composeKey == "" {
		s.composeKey = uuid.NewString()
	}
	key := s.composeKey
	s.sending = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.sending = false
		s.mu.Unlock()
	}()

	var imageURL string
	if att != nil {
		url, err := s.client.uploadAttachment(ctx, att)
		if err != nil {
			// Whole send aborts: no message with a silently missing image.
			return err
		}
		imageURL = url
	}

	if _, err := s.client.postMessage(ctx, s.roomID, text, imageURL, key); err != nil {
		return err
	}

	s.mu.Lock()
	s.composeText = ""
	s.composeKey = ""
	released := att != nil && s.attachment == att
	if released {
		s.attachment = nil
	}
	s.mu.Unlock()

	if released {
		att.Release()
	}
	return nil
}
