package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"roomchat/internal/mocks"
	"roomchat/internal/models"
	"roomchat/internal/ws"
)

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/rooms/:room_id/messages", handler.PostMessage)
	r.GET("/rooms/:room_id/messages", handler.ListMessages)
	return r
}

func TestPostMessageText(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	hub := ws.NewHub(roomRepo, messageRepo)
	handler := NewMessageHandler(roomRepo, messageRepo, userRepo, hub, nil)
	router := setupMessageRouter(handler)

	roomRepo.On("IsMember", mock.Anything, "room-1", 1).Return(true, nil).Once()
	userRepo.On("GetUserByID", mock.Anything, 1).Return(models.User{ID: 1, DisplayName: "bob", PhotoURL: "p"}, nil).Once()
	messageRepo.On("CreateMessage", mock.Anything, mock.MatchedBy(func(msg models.Message) bool {
		return msg.Type == models.MessageTypeText &&
			msg.Text == "hello" &&
			msg.SenderName == "bob" &&
			msg.ClientKey == "key-1"
	})).Return(models.Message{ID: 1, RoomID: "room-1", Text: "hello"}, nil).Once()
	messageRepo.On("ListRoomMessages", mock.Anything, "room-1").Return([]models.Message{{ID: 1}}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms/room-1/messages",
		bytes.NewBufferString(`{"text":"hello","client_key":"key-1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	roomRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
}

func TestPostMessageImageTyped(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	hub := ws.NewHub(roomRepo, messageRepo)
	handler := NewMessageHandler(roomRepo, messageRepo, userRepo, hub, nil)
	router := setupMessageRouter(handler)

	roomRepo.On("IsMember", mock.Anything, "room-1", 1).Return(true, nil).Once()
	userRepo.On("GetUserByID", mock.Anything, 1).Return(models.User{ID: 1, DisplayName: "bob"}, nil).Once()
	messageRepo.On("CreateMessage", mock.Anything, mock.MatchedBy(func(msg models.Message) bool {
		return msg.Type == models.MessageTypeImage &&
			msg.ImageURL != nil && *msg.ImageURL == "https://img.example/x.jpg" &&
			msg.ClientKey != ""
	})).Return(models.Message{ID: 2}, nil).Once()
	messageRepo.On("ListRoomMessages", mock.Anything, "room-1").Return([]models.Message{}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms/room-1/messages",
		bytes.NewBufferString(`{"image_url":"https://img.example/x.jpg"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestPostMessageEmpty(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewMessageHandler(roomRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock), nil, nil)
	router := setupMessageRouter(handler)

	roomRepo.On("IsMember", mock.Anything, "room-1", 1).Return(true, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms/room-1/messages",
		bytes.NewBufferString(`{"text":"   "}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostMessageNotMember(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(roomRepo, messageRepo, new(mocks.UserRepositoryMock), nil, nil)
	router := setupMessageRouter(handler)

	roomRepo.On("IsMember", mock.Anything, "room-1", 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms/room-1/messages",
		bytes.NewBufferString(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestListMessages(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(roomRepo, messageRepo, new(mocks.UserRepositoryMock), nil, nil)
	router := setupMessageRouter(handler)

	roomRepo.On("IsMember", mock.Anything, "room-1", 1).Return(true, nil).Once()
	messageRepo.On("ListRoomMessages", mock.Anything, "room-1").
		Return([]models.Message{{ID: 1, Text: "a"}, {ID: 2, Text: "b"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/room-1/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"messages"`)
	messageRepo.AssertExpectations(t)
}
