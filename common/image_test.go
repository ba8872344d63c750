package common

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeImageNonSquare(t *testing.T) {
	const w, h = 3, 5
	src := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src.Set(x, y, color.NRGBA{R: uint8(x * 40), G: uint8(y * 40), B: 7, A: 255})
		}
	}

	staging, err := DecodeImage(encodePNG(t, src))
	require.NoError(t, err)
	assert.Equal(t, uint32(w), staging.Width)
	assert.Equal(t, uint32(h), staging.Height)
	assert.Equal(t, uint32(4*w), staging.RowPitch())
	require.Len(t, staging.Pixels, 4*w*h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := y*4*w + x*4
			assert.Equal(t, []byte{uint8(x * 40), uint8(y * 40), 7, 255}, staging.Pixels[off:off+4], "pixel %d,%d", x, y)
		}
	}
}

func TestDecodeImageOffsetBounds(t *testing.T) {
	// Sub-images keep their original bounds; decoding must still start at the first visible pixel.
	full := image.NewRGBA(image.Rect(0, 0, 4, 4))
	full.Set(2, 2, color.RGBA{R: 255, A: 255})
	sub := full.SubImage(image.Rect(2, 2, 4, 4))

	staging, err := DecodeImage(encodePNG(t, sub))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), staging.Width)
	assert.Equal(t, []byte{255, 0, 0, 255}, staging.Pixels[:4])
}

func TestDecodeImageErrors(t *testing.T) {
	_, err := DecodeImage(nil)
	assert.ErrorIs(t, err, ErrDecode)

	_, err = DecodeImage([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrDecode)
}
