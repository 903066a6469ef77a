package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"
)

// ImageHost uploads image payloads to an external hosting endpoint and
// resolves them to public URLs.
type ImageHost struct {
	UploadURL  string
	APIKey     string
	HTTPClient *http.Client
}

// NewImageHost creates an uploader for the given endpoint and API key.
func NewImageHost(uploadURL, apiKey string) *ImageHost {
	return &ImageHost{
		UploadURL:  uploadURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type imageHostResponse struct {
	Success bool `json:"success"`
	Status  int  `json:"status"`
	Data    struct {
		URL        string `json:"url"`
		DisplayURL string `json:"display_url"`
	} `json:"data"`
}

// Upload posts the payload as a multipart form and returns the hosted URL.
// There is no automatic retry; callers surface the failure and let the user
// resubmit.
func (h *ImageHost) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.UploadURL+"?key="+h.APIKey, &body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := h.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	var parsed imageHostResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: malformed response: %v", ErrUploadFailed, err)
	}
	if resp.StatusCode >= 400 || !parsed.Success || parsed.Data.URL == "" {
		return "", fmt.Errorf("%w: status %d", ErrUploadFailed, resp.StatusCode)
	}

	return parsed.Data.URL, nil
}
