package client

import (
	"context"
	"errors"
	"net/http"

	"roomchat/internal/models"
)

// CreateRoom creates a room owned by the signed-in user, who becomes its sole
// member. The returned room's ID is the invite code.
func (c *Client) CreateRoom(ctx context.Context, name string) (models.Room, error) {
	if _, ok := c.CurrentUser(); !ok {
		return models.Room{}, ErrUnauthenticated
	}

	var resp struct {
		Room models.Room `json:"room"`
	}
	err := c.doRequest(ctx, http.MethodPost, "/rooms", map[string]string{"name": name}, &resp)
	return resp.Room, err
}

// JoinRoom joins the room behind an invite code. Unknown codes return
// ErrInvalidRoomCode without writing anything; joining a room you are already
// in is a no-op.
func (c *Client) JoinRoom(ctx context.Context, code string) (models.Room, error) {
	if _, ok := c.CurrentUser(); !ok {
		return models.Room{}, ErrUnauthenticated
	}

	var resp struct {
		Room models.Room `json:"room"`
	}
	err := c.doRequest(ctx, http.MethodPost, "/rooms/"+code+"/join", nil, &resp)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return models.Room{}, ErrInvalidRoomCode
	}
	return resp.Room, err
}

// GetRoom fetches the current room snapshot.
func (c *Client) GetRoom(ctx context.Context, roomID string) (models.Room, error) {
	var resp struct {
		Room models.Room `json:"room"`
	}
	err := c.doRequest(ctx, http.MethodGet, "/rooms/"+roomID, nil, &resp)
	return resp.Room, err
}

// DeleteRoom permanently removes a room and its message log. Only the owner
// may do this; viewers learn about it through their room watch.
func (c *Client) DeleteRoom(ctx context.Context, roomID string) error {
	if _, ok := c.CurrentUser(); !ok {
		return ErrUnauthenticated
	}
	return c.doRequest(ctx, http.MethodDelete, "/rooms/"+roomID, nil, nil)
}

// postMessage persists a message. The caller only learns the message's place
// in the log through the room watch; the returned record is not inserted
// locally.
func (c *Client) postMessage(ctx context.Context, roomID, text, imageURL, clientKey string) (models.Message, error) {
	var msg models.Message
	err := c.doRequest(ctx, http.MethodPost, "/rooms/"+roomID+"/messages", map[string]string{
		"text":       text,
		"image_url":  imageURL,
		"client_key": clientKey,
	}, &msg)
	return msg, err
}
