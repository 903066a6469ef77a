package client

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"roomchat/internal/models"
)

// EventSource delivers room watch events. The channel closes when the
// subscription ends, whether by Close or by the remote side going away.
type EventSource interface {
	Events() <-chan models.RoomEvent
	Close() error
}

// wsEventSource reads watch events from a websocket connection.
type wsEventSource struct {
	conn      *websocket.Conn
	events    chan models.RoomEvent
	closeOnce sync.Once
}

// dialWatch opens the room watch stream.
func (c *Client) dialWatch(ctx context.Context, roomID string) (*wsEventSource, error) {
	token, ok := c.authToken()
	if !ok {
		return nil, ErrUnauthenticated
	}

	wsURL := strings.Replace(c.BaseURL, "http", "ws", 1)
	endpoint := wsURL + "/ws/rooms/" + roomID + "?token=" + url.QueryEscape(token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	source := &wsEventSource{
		conn:   conn,
		events: make(chan models.RoomEvent),
	}
	go source.readLoop()
	return source, nil
}

func (s *wsEventSource) readLoop() {
	defer close(s.events)
	for {
		var event models.RoomEvent
		if err := s.conn.ReadJSON(&event); err != nil {
			return
		}
		s.events <- event
	}
}

func (s *wsEventSource) Events() <-chan models.RoomEvent {
	return s.events
}

func (s *wsEventSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}
