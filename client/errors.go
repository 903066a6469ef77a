package client

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when an operation needs a signed-in user.
	ErrUnauthenticated = errors.New("not signed in")

	// ErrInvalidRoomCode is returned by JoinRoom for an unknown invite code.
	// Nothing is written when this happens.
	ErrInvalidRoomCode = errors.New("invalid room code")

	// ErrUploadFailed is returned when the image host rejects a payload or
	// answers with a malformed response. Uploads are never retried
	// automatically.
	ErrUploadFailed = errors.New("image upload failed")

	// ErrEmptyMessage is returned by Send when there is neither trimmed text
	// nor a staged attachment.
	ErrEmptyMessage = errors.New("message needs text or an attachment")

	// ErrSessionClosed is returned by operations on a closed room session.
	ErrSessionClosed = errors.New("room session closed")

	// ErrSendInFlight is returned when a send is already running for the
	// session.
	ErrSendInFlight = errors.New("send already in progress")
)

// APIError is a non-2xx answer from the room service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("roomchat api error %d: %s", e.StatusCode, e.Message)
}
