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
	"roomchat/internal/repositories"
	"roomchat/internal/ws"
)

func setupRoomRouter(handler *RoomHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/rooms", handler.CreateRoom)
	r.GET("/rooms/:room_id", handler.GetRoom)
	r.POST("/rooms/:room_id/join", handler.JoinRoom)
	r.DELETE("/rooms/:room_id", handler.DeleteRoom)
	return r
}

func TestCreateRoomSuccess(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewRoomHandler(roomRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock), ws.NewHub(roomRepo, nil), nil)
	router := setupRoomRouter(handler)

	roomRepo.On("CreateRoom", mock.Anything, 1, "Friday Hangout").
		Return(models.Room{ID: "room-1", Name: "Friday Hangout", OwnerID: 1, Joiners: []int{1}, JoinerCount: 1}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms", bytes.NewBufferString(`{"name":"Friday Hangout"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"room-1"`)
	require.Contains(t, rec.Body.String(), `"joiner_count":1`)
	roomRepo.AssertExpectations(t)
}

func TestCreateRoomInvalidBody(t *testing.T) {
	handler := NewRoomHandler(new(mocks.RoomRepositoryMock), new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock), nil, nil)
	router := setupRoomRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/rooms", bytes.NewBufferString(`{"name":5}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJoinRoomUnknownCode(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewRoomHandler(roomRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock), nil, nil)
	router := setupRoomRouter(handler)

	roomRepo.On("JoinRoom", mock.Anything, "ZZZZZZ", 1).Return(false, repositories.ErrRoomNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms/ZZZZZZ/join", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	roomRepo.AssertExpectations(t)
}

func TestJoinRoomNewMember(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	hub := ws.NewHub(roomRepo, messageRepo)
	handler := NewRoomHandler(roomRepo, messageRepo, userRepo, hub, nil)
	router := setupRoomRouter(handler)

	joined := models.Room{ID: "room-1", Name: "test", OwnerID: 2, Joiners: []int{2, 1}, JoinerCount: 2}
	roomRepo.On("JoinRoom", mock.Anything, "room-1", 1).Return(true, nil).Once()
	userRepo.On("GetUserByID", mock.Anything, 1).Return(models.User{ID: 1, DisplayName: "bob"}, nil).Once()
	messageRepo.On("CreateMessage", mock.Anything, mock.MatchedBy(func(msg models.Message) bool {
		return msg.Type == models.MessageTypeSystem && msg.RoomID == "room-1"
	})).Return(models.Message{ID: 7}, nil).Once()
	// Hub re-delivery pulls fresh state for watchers.
	messageRepo.On("ListRoomMessages", mock.Anything, "room-1").Return([]models.Message{}, nil).Once()
	roomRepo.On("GetRoom", mock.Anything, "room-1").Return(joined, nil)

	req := httptest.NewRequest(http.MethodPost, "/rooms/room-1/join", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"joiner_count":2`)
	roomRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
	userRepo.AssertExpectations(t)
}

func TestJoinRoomExistingMemberIsNoOp(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewRoomHandler(roomRepo, messageRepo, new(mocks.UserRepositoryMock), nil, nil)
	router := setupRoomRouter(handler)

	existing := models.Room{ID: "room-1", Name: "test", OwnerID: 2, Joiners: []int{2, 1}, JoinerCount: 2}
	roomRepo.On("JoinRoom", mock.Anything, "room-1", 1).Return(false, nil).Once()
	roomRepo.On("GetRoom", mock.Anything, "room-1").Return(existing, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms/room-1/join", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"joiner_count":2`)
	roomRepo.AssertExpectations(t)
	// No system message, no broadcast for a rejoin.
	messageRepo.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestDeleteRoomOwner(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	hub := ws.NewHub(roomRepo, messageRepo)
	handler := NewRoomHandler(roomRepo, messageRepo, new(mocks.UserRepositoryMock), hub, nil)
	router := setupRoomRouter(handler)

	roomRepo.On("GetRoom", mock.Anything, "room-1").Return(models.Room{ID: "room-1", OwnerID: 1}, nil).Once()
	roomRepo.On("DeleteRoom", mock.Anything, "room-1").Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/rooms/room-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	roomRepo.AssertExpectations(t)
}

func TestDeleteRoomNotOwner(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewRoomHandler(roomRepo, new(mocks.MessageRepositoryMock), new(mocks.UserRepositoryMock), nil, nil)
	router := setupRoomRouter(handler)

	roomRepo.On("GetRoom", mock.Anything, "room-1").Return(models.Room{ID: "room-1", OwnerID: 9}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/rooms/room-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	roomRepo.AssertNotCalled(t, "DeleteRoom", mock.Anything, mock.Anything)
}
