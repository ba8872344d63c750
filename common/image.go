package common

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrDecode is returned when raw image bytes cannot be turned into pixel data.
var ErrDecode = errors.New("image decode failed")

// DecodeImage decodes an encoded image (PNG, JPEG, GIF, BMP, TIFF or WebP) into tightly packed RGBA8 pixels.
// Rows are laid out top to bottom with a pitch of exactly 4*width bytes.
// Reference: https://pkg.go.dev/image
//
// Parameters:
//   - raw: the encoded image bytes
//
// Returns:
//   - TextureStagingData: the decoded pixels and dimensions
//   - error: an error wrapping ErrDecode if the bytes are not a supported image
func DecodeImage(raw []byte) (TextureStagingData, error) {
	if len(raw) == 0 {
		return TextureStagingData{}, fmt.Errorf("%w: empty input", ErrDecode)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return TextureStagingData{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return TextureStagingData{}, fmt.Errorf("%w: image has zero area", ErrDecode)
	}

	// Rebase to the origin so Pix starts at the first visible pixel with Stride == 4*width.
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	return TextureStagingData{
		Pixels: rgba.Pix,
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
	}, nil
}
