package client

import (
	"context"
	"path/filepath"
	"sync"

	"roomchat/internal/imaging"
)

// Attachment is an ephemeral, locally-owned image staged for sending. It
// lives between user selection and either send completion (promoted into a
// message's image URL) or cancellation, at which point its preview resource
// is released.
type Attachment struct {
	Filename  string
	MediaType string
	Data      []byte

	releaseOnce    sync.Once
	releasePreview func()
}

// NewAttachment stages a selected file. releasePreview frees the local
// preview resource and may be nil.
func NewAttachment(filename, mediaType string, data []byte, releasePreview func()) *Attachment {
	return &Attachment{
		Filename:       filename,
		MediaType:      mediaType,
		Data:           data,
		releasePreview: releasePreview,
	}
}

// Release frees the preview resource. Safe to call more than once.
func (a *Attachment) Release() {
	a.releaseOnce.Do(func() {
		if a.releasePreview != nil {
			a.releasePreview()
		}
	})
}

// payload runs the compression stage and returns the outgoing filename and
// bytes. When the payload was re-encoded the extension is rewritten to match;
// otherwise the original filename is kept.
func (a *Attachment) payload() (string, []byte) {
	data, reencoded := imaging.Compress(a.Data, a.MediaType)
	if !reencoded {
		return a.Filename, data
	}
	name := a.Filename[:len(a.Filename)-len(filepath.Ext(a.Filename))] + ".jpg"
	return name, data
}

// uploadAttachment pushes a staged attachment through compression and upload,
// returning the hosted URL.
func (c *Client) uploadAttachment(ctx context.Context, a *Attachment) (string, error) {
	if c.Images == nil {
		return "", ErrUploadFailed
	}
	name, data := a.payload()
	return c.Images.Upload(ctx, name, data)
}
