// Package imaging downscales and recompresses chat attachments before upload.
package imaging

import (
	"bytes"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"

	"golang.org/x/image/draw"
)

const (
	// MaxDimension bounds either side of an uploaded image. Images are only
	// ever scaled down, never up.
	MaxDimension = 1600

	// JPEGQuality is the fixed re-encode quality.
	JPEGQuality = 70
)

// Compress converts a static raster image into a bounded JPEG payload. It
// returns the payload and whether it was re-encoded.
//
// Non-image media and GIFs pass through untouched: recompressing a GIF would
// drop its animation. Decode or encode failures also pass the original bytes
// through rather than failing the send. The result is never larger than the
// input.
func Compress(data []byte, mediaType string) ([]byte, bool) {
	if !strings.HasPrefix(mediaType, "image/") || mediaType == "image/gif" {
		return data, false
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, false
	}

	bounds := src.Bounds()
	width, height := FitWithin(bounds.Dx(), bounds.Dy(), MaxDimension)

	out := src
	if width != bounds.Dx() || height != bounds.Dy() {
		scaled := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), src, bounds, draw.Over, nil)
		out = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return data, false
	}
	if buf.Len() >= len(data) {
		// Already smaller than our re-encode would be.
		return data, false
	}
	return buf.Bytes(), true
}

// FitWithin scales (width, height) down so neither dimension exceeds max,
// preserving aspect ratio. Dimensions already within the bound are returned
// unchanged.
func FitWithin(width, height, max int) (int, int) {
	if width <= 0 || height <= 0 {
		return width, height
	}
	if width >= height {
		if width > max {
			height = height * max / width
			width = max
		}
	} else {
		if height > max {
			width = width * max / height
			height = max
		}
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return width, height
}
