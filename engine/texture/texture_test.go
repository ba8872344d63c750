package texture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/Carmen-Shannon/oxy-quad/common"
	"github.com/Carmen-Shannon/oxy-quad/engine/gpu/gputest"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pixelAt gives every pixel of the test image a distinct color so a skewed row is detectable.
func pixelAt(x, y int) color.NRGBA {
	return color.NRGBA{R: uint8(10 + x), G: uint8(100 + y), B: uint8(x*16 + y), A: 255}
}

func encodeTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, pixelAt(x, y))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFromBytesNonSquareUpload(t *testing.T) {
	const w, h = 3, 5
	backend := gputest.NewBackend()

	tex, err := FromBytes(backend, backend, encodeTestPNG(t, w, h), "test")
	require.NoError(t, err)
	assert.Equal(t, uint32(w), tex.Width)
	assert.Equal(t, uint32(h), tex.Height)

	desc := backend.Textures[tex.Texture]
	assert.Equal(t, wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1}, desc.Size)
	assert.Equal(t, wgpu.TextureFormatRGBA8UnormSrgb, desc.Format)
	assert.Equal(t, wgpu.TextureUsageTextureBinding|wgpu.TextureUsageCopyDst, desc.Usage)
	assert.Equal(t, uint32(1), desc.MipLevelCount)
	assert.Equal(t, uint32(1), desc.SampleCount)

	require.Len(t, backend.TextureWrites, 1)
	write := backend.TextureWrites[0]
	assert.Equal(t, tex.Texture, write.Dst.Texture)
	assert.Equal(t, wgpu.Origin3D{}, write.Dst.Origin)
	assert.Equal(t, uint32(4*w), write.Layout.BytesPerRow)
	assert.Equal(t, uint32(h), write.Layout.RowsPerImage)
	assert.Zero(t, write.Layout.Offset)
	assert.Equal(t, wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1}, write.Size)
	require.Len(t, write.Data, 4*w*h)

	pitch := int(write.Layout.BytesPerRow)
	for y := range h {
		for x := range w {
			off := y*pitch + x*4
			want := pixelAt(x, y)
			assert.Equal(t, []byte{want.R, want.G, want.B, want.A}, write.Data[off:off+4], "pixel (%d,%d)", x, y)
		}
	}
}

func TestFromBytesSampler(t *testing.T) {
	backend := gputest.NewBackend()
	tex, err := FromBytes(backend, backend, encodeTestPNG(t, 2, 2), "test")
	require.NoError(t, err)

	s := backend.Samplers[tex.Sampler]
	assert.Equal(t, wgpu.AddressModeClampToEdge, s.AddressModeU)
	assert.Equal(t, wgpu.AddressModeClampToEdge, s.AddressModeV)
	assert.Equal(t, wgpu.AddressModeClampToEdge, s.AddressModeW)
	assert.Equal(t, wgpu.FilterModeLinear, s.MagFilter)
	assert.Equal(t, wgpu.FilterModeNearest, s.MinFilter)
	assert.Equal(t, wgpu.MipmapFilterModeNearest, s.MipmapFilter)

	assert.Equal(t, tex.Texture, backend.TextureViews[tex.View])
}

func TestFromBytesSamplerOptions(t *testing.T) {
	backend := gputest.NewBackend()
	tex, err := FromBytes(backend, backend, encodeTestPNG(t, 2, 2), "test",
		WithAddressMode(wgpu.AddressModeRepeat),
		WithFilters(wgpu.FilterModeNearest, wgpu.FilterModeLinear),
	)
	require.NoError(t, err)

	s := backend.Samplers[tex.Sampler]
	assert.Equal(t, wgpu.AddressModeRepeat, s.AddressModeU)
	assert.Equal(t, wgpu.FilterModeNearest, s.MagFilter)
	assert.Equal(t, wgpu.FilterModeLinear, s.MinFilter)
}

func TestFromBytesDecodeError(t *testing.T) {
	backend := gputest.NewBackend()
	_, err := FromBytes(backend, backend, []byte("definitely not an image"), "broken")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDecode)
	assert.Empty(t, backend.Textures)
}

func TestFromStagingRejectsShortPixels(t *testing.T) {
	backend := gputest.NewBackend()
	_, err := FromStaging(backend, backend, common.TextureStagingData{Pixels: make([]byte, 10), Width: 3, Height: 5}, "short")
	assert.Error(t, err)
	assert.Empty(t, backend.Textures)
}

func TestRelease(t *testing.T) {
	backend := gputest.NewBackend()
	tex, err := FromBytes(backend, backend, encodeTestPNG(t, 1, 1), "test")
	require.NoError(t, err)
	texture, view, sampler := tex.Texture, tex.View, tex.Sampler

	tex.Release(backend)
	assert.Equal(t, []any{sampler, view, texture}, backend.Released)
	assert.Empty(t, backend.Textures)
	assert.Empty(t, backend.Samplers)
	assert.Empty(t, backend.TextureViews)

	tex.Release(backend)
	assert.Len(t, backend.Released, 3)
}
