package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"roomchat/internal/models"
	"roomchat/internal/observability"
	"roomchat/internal/repositories"
)

// watcher is the hub-side state of one watch connection. Writes to the
// connection are serialized through mu so the initial-state delivery cannot
// interleave with a broadcast.
type watcher struct {
	info ConnInfo
	mu   sync.Mutex
}

// Hub maintains active room watch connections. Watchers get the full current
// room snapshot or the full ordered message log on every change, never deltas:
// the client replaces its local state wholesale, which keeps every watcher
// order-consistent regardless of how updates interleave.
type Hub struct {
	roomRepo    repositories.RoomRepository
	messageRepo repositories.MessageRepository

	watchers map[string]map[*websocket.Conn]*watcher
	mu       sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub(roomRepo repositories.RoomRepository, messageRepo repositories.MessageRepository) *Hub {
	return &Hub{
		roomRepo:    roomRepo,
		messageRepo: messageRepo,
		watchers:    make(map[string]map[*websocket.Conn]*watcher),
	}
}

// AddWatcher registers a websocket connection watching a room. Registration
// must happen before SendInitialState so a deletion landing mid-handshake
// still reaches the connection.
func (h *Hub) AddWatcher(roomID string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.watchers[roomID]; !ok {
		h.watchers[roomID] = make(map[*websocket.Conn]*watcher)
	}
	h.watchers[roomID][conn] = &watcher{info: info}
}

// RemoveWatcher removes a room watch connection.
func (h *Hub) RemoveWatcher(roomID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.watchers[roomID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.watchers, roomID)
		}
	}
}

// SendInitialState delivers the current room snapshot and full message log to
// an already registered watcher. If the watcher is gone by the time the state
// loads, the room was deleted mid-handshake and the terminal event already
// owns the connection.
func (h *Hub) SendInitialState(ctx context.Context, roomID string, conn *websocket.Conn) error {
	room, err := h.roomRepo.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	msgs, err := h.messageRepo.ListRoomMessages(ctx, roomID)
	if err != nil {
		return err
	}

	w, ok := h.getWatcher(roomID, conn)
	if !ok {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := conn.WriteJSON(models.RoomEvent{Type: models.EventRoom, Room: &room}); err != nil {
		return err
	}
	return conn.WriteJSON(models.RoomEvent{Type: models.EventMessages, Messages: msgs})
}

// NotifyRoom re-delivers the room snapshot to all watchers.
func (h *Hub) NotifyRoom(ctx context.Context, roomID string) {
	room, err := h.roomRepo.GetRoom(ctx, roomID)
	if err != nil {
		log.Printf("room snapshot load failed: %v", err)
		return
	}
	h.broadcast(roomID, models.RoomEvent{Type: models.EventRoom, Room: &room})
}

// NotifyMessages re-delivers the full ordered message log to all watchers.
func (h *Hub) NotifyMessages(ctx context.Context, roomID string) {
	msgs, err := h.messageRepo.ListRoomMessages(ctx, roomID)
	if err != nil {
		log.Printf("message log load failed: %v", err)
		return
	}
	h.broadcast(roomID, models.RoomEvent{Type: models.EventMessages, Messages: msgs})
}

// NotifyRoomDeleted sends the terminal deleted event and closes all watchers.
// Nothing is broadcast for the room after this.
func (h *Hub) NotifyRoomDeleted(roomID string) {
	h.mu.Lock()
	conns := h.watchers[roomID]
	delete(h.watchers, roomID)
	h.mu.Unlock()

	payload, _ := json.Marshal(models.RoomEvent{Type: models.EventRoomDeleted})
	for conn, w := range conns {
		w.mu.Lock()
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
		}
		w.mu.Unlock()
		conn.Close()
	}
	observability.IncWSEvent(models.EventRoomDeleted)
}

func (h *Hub) broadcast(roomID string, event models.RoomEvent) {
	h.mu.RLock()
	targets := make(map[*websocket.Conn]*watcher, len(h.watchers[roomID]))
	for conn, w := range h.watchers[roomID] {
		targets[conn] = w
	}
	h.mu.RUnlock()

	payload, _ := json.Marshal(event)
	for conn, w := range targets {
		w.mu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, payload)
		w.mu.Unlock()
		if err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.RemoveWatcher(roomID, conn)
			h.publishWSError(roomID, w.info, err)
		}
	}
	observability.IncWSEvent(event.Type)
}

func (h *Hub) publishWSError(roomID string, info ConnInfo, err error) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"room_id":     roomID,
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id": info.UserID,
			"ip":      info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.rooms", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent("ws_error")
}

func (h *Hub) getWatcher(roomID string, conn *websocket.Conn) (*watcher, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	w, ok := h.watchers[roomID][conn]
	return w, ok
}
