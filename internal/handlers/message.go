package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"roomchat/internal/models"
	"roomchat/internal/repositories"
	"roomchat/internal/telemetry"
	"roomchat/internal/ws"
)

// MessageHandler manages the room message log endpoints.
type MessageHandler struct {
	roomRepo    repositories.RoomRepository
	messageRepo repositories.MessageRepository
	userRepo    repositories.UserRepository
	hub         *ws.Hub
	audit       *telemetry.AuditEmitter
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(roomRepo repositories.RoomRepository, messageRepo repositories.MessageRepository, userRepo repositories.UserRepository, hub *ws.Hub, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{
		roomRepo:    roomRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		hub:         hub,
		audit:       audit,
	}
}

// PostMessage persists a message and re-delivers the room's message log to
// watchers. The sender profile is snapshotted into the record at this point
// and never re-resolved.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	roomID := c.Param("room_id")
	userID := c.GetInt("userID")

	member, err := h.roomRepo.IsMember(c.Request.Context(), roomID, userID)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return
	}
	if !member {
		h.emitAudit(c, "ERROR", "not allowed")
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return
	}

	var req struct {
		Text      string `json:"text"`
		ImageURL  string `json:"image_url"`
		ClientKey string `json:"client_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if strings.TrimSpace(req.Text) == "" && req.ImageURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message needs text or an image"})
		return
	}

	user, err := h.userRepo.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load sender"})
		return
	}

	msg := models.Message{
		RoomID:      roomID,
		Text:        req.Text,
		SenderID:    user.ID,
		SenderName:  user.DisplayName,
		SenderPhoto: user.PhotoURL,
		Type:        models.MessageTypeText,
		ClientKey:   req.ClientKey,
	}
	if req.ImageURL != "" {
		msg.ImageURL = &req.ImageURL
		msg.Type = models.MessageTypeImage
	}
	if msg.ClientKey == "" {
		msg.ClientKey = uuid.NewString()
	}

	stored, err := h.messageRepo.CreateMessage(c.Request.Context(), msg)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	h.hub.NotifyMessages(c.Request.Context(), roomID)
	h.emitAudit(c, "INFO", "Message sent")
	c.JSON(http.StatusCreated, stored)
}

// ListMessages returns the full ordered message log of a room.
func (h *MessageHandler) ListMessages(c *gin.Context) {
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

	msgs, err := h.messageRepo.ListRoomMessages(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *MessageHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
