package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"roomchat/internal/models"
	"roomchat/internal/repositories"
	"roomchat/internal/telemetry"
	"roomchat/internal/ws"
)

// RoomHandler manages room lifecycle and membership endpoints.
type RoomHandler struct {
	roomRepo    repositories.RoomRepository
	messageRepo repositories.MessageRepository
	userRepo    repositories.UserRepository
	hub         *ws.Hub
	audit       *telemetry.AuditEmitter
}

// NewRoomHandler constructs a RoomHandler.
func NewRoomHandler(roomRepo repositories.RoomRepository, messageRepo repositories.MessageRepository, userRepo repositories.UserRepository, hub *ws.Hub, audit *telemetry.AuditEmitter) *RoomHandler {
	return &RoomHandler{
		roomRepo:    roomRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		hub:         hub,
		audit:       audit,
	}
}

// CreateRoom handles POST /rooms. The creator becomes owner and sole member.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID := c.GetInt("userID")

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.roomRepo.CreateRoom(c.Request.Context(), userID, req.Name)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create room"})
		return
	}

	h.emitAudit(c, "INFO", "Room created")
	c.JSON(http.StatusCreated, gin.H{"room": room})
}

// GetRoom returns the room snapshot to a member.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID := c.Param("room_id")
	userID := c.GetInt("userID")

	member, err := h.roomRepo.IsMember(c.Request.Context(), roomID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return
	}

	room, err := h.roomRepo.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load room"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"room": room})
}

// JoinRoom handles POST /rooms/:room_id/join. The room id is the invite code;
// an unknown code performs no write. Joining is idempotent.
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	roomID := c.Param("room_id")
	userID := c.GetInt("userID")

	joined, err := h.roomRepo.JoinRoom(c.Request.Context(), roomID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			h.emitAudit(c, "ERROR", "invalid room code")
			c.JSON(http.StatusNotFound, gin.H{"error": "invalid room code"})
			return
		}
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not join room"})
		return
	}

	if joined {
		h.appendJoinNotice(c, roomID, userID)
		h.hub.NotifyRoom(c.Request.Context(), roomID)
		h.emitAudit(c, "INFO", "Joined room")
	}

	room, err := h.roomRepo.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load room"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room})
}

// DeleteRoom handles DELETE /rooms/:room_id. Owner only. Watchers receive a
// terminal deleted event; members and messages are removed with the room.
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	roomID := c.Param("room_id")
	userID := c.GetInt("userID")

	room, err := h.roomRepo.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load room"})
		return
	}
	if room.OwnerID != userID {
		h.emitAudit(c, "ERROR", "not allowed to delete room")
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner may delete the room"})
		return
	}

	if err := h.roomRepo.DeleteRoom(c.Request.Context(), roomID); err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete room"})
		return
	}

	h.hub.NotifyRoomDeleted(roomID)
	h.emitAudit(c, "INFO", "Room deleted")
	c.Status(http.StatusNoContent)
}

// appendJoinNotice records a system message for a newly joined member. Losing
// the notice is not worth failing the join over.
func (h *RoomHandler) appendJoinNotice(c *gin.Context, roomID string, userID int) {
	user, err := h.userRepo.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		return
	}
	_, err = h.messageRepo.CreateMessage(c.Request.Context(), models.Message{
		RoomID:      roomID,
		Text:        fmt.Sprintf("%s joined the room", user.DisplayName),
		SenderID:    userID,
		SenderName:  user.DisplayName,
		SenderPhoto: user.PhotoURL,
		Type:        models.MessageTypeSystem,
		ClientKey:   uuid.NewString(),
	})
	if err != nil {
		return
	}
	h.hub.NotifyMessages(c.Request.Context(), roomID)
}

func (h *RoomHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
