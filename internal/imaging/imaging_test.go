package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFitWithin(t *testing.T) {
	cases := []struct {
		name         string
		w, h, max    int
		wantW, wantH int
	}{
		{"landscape downscale", 4000, 3000, 1600, 1600, 1200},
		{"portrait downscale", 3000, 4000, 1600, 1200, 1600},
		{"already within bound", 800, 600, 1600, 800, 600},
		{"exactly at bound", 1600, 1600, 1600, 1600, 1600},
		{"extreme aspect stays positive", 10000, 2, 1600, 1600, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, h := FitWithin(tc.w, tc.h, tc.max)
			require.Equal(t, tc.wantW, w)
			require.Equal(t, tc.wantH, h)
		})
	}
}

// noisy fills an image with per-pixel noise so JPEG cannot compress it away
// entirely and size comparisons stay meaningful.
func noisy(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 7), uint8(y * 13), uint8(x*y + 31), 255})
		}
	}
	return img
}

func TestCompressDownscalesLargeImage(t *testing.T) {
	var src bytes.Buffer
	require.NoError(t, png.Encode(&src, noisy(2400, 1800)))

	out, reencoded := Compress(src.Bytes(), "image/png")
	require.True(t, reencoded)
	require.Less(t, len(out), src.Len())

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, "jpeg", format)
	require.Equal(t, 1600, cfg.Width)
	require.Equal(t, 1200, cfg.Height)
}

func TestCompressSkipsGIF(t *testing.T) {
	data := []byte("GIF89a not really a gif")
	out, reencoded := Compress(data, "image/gif")
	require.False(t, reencoded)
	require.Equal(t, data, out)
}

func TestCompressSkipsNonImage(t *testing.T) {
	data := []byte("%PDF-1.4 something")
	out, reencoded := Compress(data, "application/pdf")
	require.False(t, reencoded)
	require.Equal(t, data, out)
}

func TestCompressPassesThroughGarbage(t *testing.T) {
	data := []byte("claims to be an image but is not")
	out, reencoded := Compress(data, "image/png")
	require.False(t, reencoded)
	require.Equal(t, data, out)
}

func TestCompressNeverGrowsPayload(t *testing.T) {
	// A tiny, already-efficient JPEG: re-encoding cannot beat it, so the
	// original bytes must come back untouched.
	var src bytes.Buffer
	require.NoError(t, jpeg.Encode(&src, image.NewRGBA(image.Rect(0, 0, 2, 2)), &jpeg.Options{Quality: 10}))

	out, reencoded := Compress(src.Bytes(), "image/jpeg")
	require.LessOrEqual(t, len(out), src.Len())
	if !reencoded {
		require.Equal(t, src.Bytes(), out)
	}
}
