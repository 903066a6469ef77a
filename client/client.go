// Package client implements the roomchat client core: the identity session,
// room membership and lifecycle operations, the attachment pipeline, and the
// live room synchronization engine.
//
// Writes never touch local state directly. A sent message or a join only
// becomes visible once the room watch re-delivers the updated state, so the
// watch stream stays the single source of truth.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"roomchat/internal/models"
)

// Client is a roomchat API client. It holds the process-wide auth session;
// all room operations require a prior SignIn or SignUp.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Images     *ImageHost

	mu           sync.RWMutex
	token        string
	user         *models.UserProfile
	listeners    map[int]func(*models.UserProfile)
	nextListener int
}

// New creates a client for the given service base URL. Image uploads go to
// the provided host.
func New(baseURL string, images *ImageHost) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Images:     images,
		listeners:  map[int]func(*models.UserProfile){},
	}
}

type authResponse struct {
	Token string             `json:"token"`
	User  models.UserProfile `json:"user"`
}

// SignUp registers an account and signs in. An optional profile photo runs
// through the attachment pipeline before the account is created.
func (c *Client) SignUp(ctx context.Context, email, password, displayName string, photo *Attachment) (models.UserProfile, error) {
	var photoURL string
	if photo != nil {
		defer photo.Release()
		url, err := c.uploadAttachment(ctx, photo)
		if err != nil {
			return models.UserProfile{}, err
		}
		photoURL = url
	}

	var resp authResponse
	err := c.doRequest(ctx, http.MethodPost, "/auth/signup", map[string]string{
		"email":        email,
		"password":     password,
		"display_name": displayName,
		"photo_url":    photoURL,
	}, &resp)
	if err != nil {
		return models.UserProfile{}, err
	}

	c.setSession(resp.Token, &resp.User)
	return resp.User, nil
}

// SignIn authenticates with email and password.
func (c *Client) SignIn(ctx context.Context, email, password string) (models.UserProfile, error) {
	var resp authResponse
	err := c.doRequest(ctx, http.MethodPost, "/auth/signin", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return models.UserProfile{}, err
	}

	c.setSession(resp.Token, &resp.User)
	return resp.User, nil
}

// SignOut drops the local session.
func (c *Client) SignOut() {
	c.setSession("", nil)
}

// CurrentUser returns the signed-in user's profile snapshot, if any.
func (c *Client) CurrentUser() (models.UserProfile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return models.UserProfile{}, false
	}
	return *c.user, true
}

// OnAuthStateChanged registers a listener invoked with the new profile on
// sign-in and with nil on sign-out. It returns an unsubscribe func.
func (c *Client) OnAuthStateChanged(fn func(*models.UserProfile)) func() {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) setSession(token string, user *models.UserProfile) {
	c.mu.Lock()
	c.token = token
	c.user = user
	listeners := make([]func(*models.UserProfile), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(user)
	}
}

func (c *Client) authToken() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.token != ""
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token, ok := c.authToken(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("roomchat request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &errResp)
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}

	if out != nil && len(respBody) > 0 {
		return json.Unmarshal(respBody, out)
	}
	return nil
}
