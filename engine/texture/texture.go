// Package texture uploads decoded images into sampled GPU textures.
package texture

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-quad/common"
	"github.com/Carmen-Shannon/oxy-quad/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// TextureResource is a 2D RGBA8 sRGB texture with one full view and one sampler.
// All three handles are owned by the resource and freed together by Release.
type TextureResource struct {
	Label   string
	Texture gpu.TextureID
	View    gpu.TextureViewID
	Sampler gpu.SamplerID
	Width   uint32
	Height  uint32
}

// FromBytes decodes raw image bytes and uploads them as a new TextureResource.
//
// Parameters:
//   - device: the device to allocate the texture, view and sampler on
//   - queue: the queue used for the pixel upload
//   - raw: encoded image bytes (png, jpeg, gif, bmp, tiff or webp)
//   - label: debug label for the created resources
//   - options: functional options to override the sampler
//
// Returns:
//   - *TextureResource: the uploaded texture
//   - error: an error matching common.ErrDecode if raw cannot be decoded, or a GPU allocation error
func FromBytes(device gpu.Device, queue gpu.Queue, raw []byte, label string, options ...TextureBuilderOption) (*TextureResource, error) {
	staging, err := common.DecodeImage(raw)
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", label, err)
	}
	return FromStaging(device, queue, staging, label, options...)
}

// FromStaging uploads already decoded RGBA8 pixels as a new TextureResource.
// The upload is queued; it completes no later than the next submission that samples the texture.
//
// Parameters:
//   - device: the device to allocate the texture, view and sampler on
//   - queue: the queue used for the pixel upload
//   - staging: tightly packed RGBA8 pixels with their dimensions
//   - label: debug label for the created resources
//   - options: functional options to override the sampler
//
// Returns:
//   - *TextureResource: the uploaded texture
//   - error: an error if the staging data is inconsistent or a GPU call fails
func FromStaging(device gpu.Device, queue gpu.Queue, staging common.TextureStagingData, label string, options ...TextureBuilderOption) (*TextureResource, error) {
	if staging.Width == 0 || staging.Height == 0 {
		return nil, fmt.Errorf("texture %s: empty %dx%d image", label, staging.Width, staging.Height)
	}
	if want := int(staging.RowPitch() * staging.Height); len(staging.Pixels) != want {
		return nil, fmt.Errorf("texture %s: have %d bytes of pixels, %dx%d RGBA8 needs %d", label, len(staging.Pixels), staging.Width, staging.Height, want)
	}

	cfg := &textureConfig{sampler: defaultSampler(label)}
	for _, option := range options {
		option(cfg)
	}

	t := &TextureResource{Label: label, Width: staging.Width, Height: staging.Height}
	size := wgpu.Extent3D{
		Width:              staging.Width,
		Height:             staging.Height,
		DepthOrArrayLayers: 1,
	}

	tex, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		Size:          size,
		Format:        wgpu.TextureFormatRGBA8UnormSrgb,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("texture %s: create texture: %w", label, err)
	}
	t.Texture = tex

	err = queue.WriteTexture(
		&gpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		staging.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  staging.RowPitch(),
			RowsPerImage: staging.Height,
		},
		&size,
	)
	if err != nil {
		t.Release(device)
		return nil, fmt.Errorf("texture %s: upload: %w", label, err)
	}

	view, err := device.CreateTextureView(tex, label+" view")
	if err != nil {
		t.Release(device)
		return nil, fmt.Errorf("texture %s: create view: %w", label, err)
	}
	t.View = view

	sampler, err := device.CreateSampler(&cfg.sampler)
	if err != nil {
		t.Release(device)
		return nil, fmt.Errorf("texture %s: create sampler: %w", label, err)
	}
	t.Sampler = sampler

	return t, nil
}

// Release frees the sampler, view and texture in that order. Zero handles are skipped.
//
// Parameters:
//   - device: the device the resources were created on
func (t *TextureResource) Release(device gpu.Device) {
	if t.Sampler != 0 {
		device.Release(t.Sampler)
		t.Sampler = 0
	}
	if t.View != 0 {
		device.Release(t.View)
		t.View = 0
	}
	if t.Texture != 0 {
		device.Release(t.Texture)
		t.Texture = 0
	}
}

// defaultSampler clamps on every axis, magnifies linearly and minifies with nearest filtering.
func defaultSampler(label string) wgpu.SamplerDescriptor {
	return wgpu.SamplerDescriptor{
		Label:         label + " sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeNearest,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	}
}
