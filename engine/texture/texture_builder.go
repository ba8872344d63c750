package texture

import "github.com/cogentcore/webgpu/wgpu"

type textureConfig struct {
	sampler wgpu.SamplerDescriptor
}

// TextureBuilderOption is a functional option used to configure a TextureResource during construction.
type TextureBuilderOption func(*textureConfig)

// WithAddressMode sets the same addressing mode on the U, V and W axes.
//
// Parameters:
//   - mode: the address mode (e.g., wgpu.AddressModeRepeat)
//
// Returns:
//   - TextureBuilderOption: a function that sets the sampler address modes
func WithAddressMode(mode wgpu.AddressMode) TextureBuilderOption {
	return func(c *textureConfig) {
		c.sampler.AddressModeU = mode
		c.sampler.AddressModeV = mode
		c.sampler.AddressModeW = mode
	}
}

// WithFilters sets the magnification and minification filters.
//
// Parameters:
//   - mag: the magnification filter
//   - minFilter: the minification filter
//
// Returns:
//   - TextureBuilderOption: a function that sets the sampler filters
func WithFilters(mag, minFilter wgpu.FilterMode) TextureBuilderOption {
	return func(c *textureConfig) {
		c.sampler.MagFilter = mag
		c.sampler.MinFilter = minFilter
	}
}
