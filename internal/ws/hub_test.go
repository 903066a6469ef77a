package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"roomchat/internal/mocks"
	"roomchat/internal/models"
	"roomchat/internal/observability"
	"roomchat/internal/repositories"
)

func TestHubAddAndRemoveWatcher(t *testing.T) {
	hub := NewHub(nil, nil)

	hub.AddWatcher("room-1", nil, ConnInfo{})
	if len(hub.watchers) != 1 {
		t.Fatalf("expected watcher set to be created")
	}

	hub.RemoveWatcher("room-1", nil)
	if len(hub.watchers) != 0 {
		t.Fatalf("expected watcher set to be removed")
	}
}

func TestHubRemoveUnknownWatcher(t *testing.T) {
	hub := NewHub(nil, nil)

	hub.RemoveWatcher("missing", nil)
	if len(hub.watchers) != 0 {
		t.Fatalf("expected no watcher sets")
	}
}

// newConnPair dials a throwaway websocket server and hands back both ends.
func newConnPair(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()
	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	client, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-serverConns:
	case <-time.After(time.Second):
		t.Fatal("server side of connection never arrived")
	}
	t.Cleanup(func() { server.Close() })
	return server, client
}

func readEvent(t *testing.T, conn *websocket.Conn) models.RoomEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var event models.RoomEvent
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestSendInitialStateToRegisteredWatcher(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	hub := NewHub(roomRepo, messageRepo)

	roomRepo.On("GetRoom", mock.Anything, "room-1").
		Return(models.Room{ID: "room-1", Name: "test", Joiners: []int{1}}, nil).Once()
	messageRepo.On("ListRoomMessages", mock.Anything, "room-1").
		Return([]models.Message{{ID: 1, Text: "hi"}}, nil).Once()

	server, client := newConnPair(t)
	hub.AddWatcher("room-1", server, ConnInfo{})
	require.NoError(t, hub.SendInitialState(context.Background(), "room-1", server))

	first := readEvent(t, client)
	require.Equal(t, models.EventRoom, first.Type)
	require.Equal(t, "test", first.Room.Name)

	second := readEvent(t, client)
	require.Equal(t, models.EventMessages, second.Type)
	require.Len(t, second.Messages, 1)
}

func TestRoomDeletedDuringHandshakeReachesWatcher(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	hub := NewHub(roomRepo, messageRepo)

	// The owner's delete lands after registration but before the initial
	// state loads.
	roomRepo.On("GetRoom", mock.Anything, "room-1").
		Return(models.Room{}, repositories.ErrRoomNotFound).Once()

	server, client := newConnPair(t)
	hub.AddWatcher("room-1", server, ConnInfo{})
	hub.NotifyRoomDeleted("room-1")

	event := readEvent(t, client)
	require.Equal(t, models.EventRoomDeleted, event.Type)

	require.ErrorIs(t, hub.SendInitialState(context.Background(), "room-1", server), repositories.ErrRoomNotFound)

	// The terminal event closed the connection; nothing follows.
	require.NoError(t, client.SetReadDeadline(time.Now().Add(time.Second)))
	var event2 models.RoomEvent
	require.Error(t, client.ReadJSON(&event2))
}

// recordingPublisher captures envelopes handed to the default publisher.
type recordingPublisher struct {
	mu        sync.Mutex
	envelopes []observability.EventEnvelope
}

func (p *recordingPublisher) PublishJSON(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if envelope, ok := message.(observability.EventEnvelope); ok {
		p.envelopes = append(p.envelopes, envelope)
	}
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.envelopes))
	for _, envelope := range p.envelopes {
		names = append(names, envelope.EventName)
	}
	return names
}

func TestBroadcastWriteFailurePublishesWSError(t *testing.T) {
	rec := &recordingPublisher{}
	observability.SetPublisher(rec)
	t.Cleanup(func() { observability.SetPublisher(nil) })

	roomRepo := new(mocks.RoomRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	hub := NewHub(roomRepo, messageRepo)

	roomRepo.On("GetRoom", mock.Anything, "room-1").
		Return(models.Room{ID: "room-1", Name: "test"}, nil).Once()

	server, client := newConnPair(t)
	hub.AddWatcher("room-1", server, ConnInfo{ConnID: "conn-1", UserID: 42, ConnectedAt: time.Now()})

	// Kill the transport so the broadcast write fails.
	server.Close()
	client.Close()
	hub.NotifyRoom(context.Background(), "room-1")

	require.Equal(t, []string{"ws_error"}, rec.names())
	require.Empty(t, hub.watchers)
}
