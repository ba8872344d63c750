package bind_group_provider

import (
	"github.com/Carmen-Shannon/oxy-quad/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithLayoutEntries appends entries to the provider's bind group layout.
//
// Parameters:
//   - entries: the layout entries, one per binding
//
// Returns:
//   - BindGroupProviderOption: a function that adds the layout entries
func WithLayoutEntries(entries ...wgpu.BindGroupLayoutEntry) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.layoutDescriptor.Entries = append(p.layoutDescriptor.Entries, entries...)
	}
}

// WithBuffer sets a buffer for a specific binding index. The provider takes ownership of the buffer.
//
// Parameters:
//   - binding: the binding index for this buffer
//   - buf: the buffer to associate with this binding
//
// Returns:
//   - BindGroupProviderOption: a function that sets the buffer for the specified binding
func WithBuffer(binding int, buf gpu.BufferID) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.buffers[binding] = buf
	}
}

// WithTextureView sets a borrowed texture view for a specific binding index.
//
// Parameters:
//   - binding: the binding index for this view
//   - view: the texture view to associate with this binding
//
// Returns:
//   - BindGroupProviderOption: a function that sets the texture view for the specified binding
func WithTextureView(binding int, view gpu.TextureViewID) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.textureViews[binding] = view
	}
}

// WithSampler sets a borrowed sampler for a specific binding index.
//
// Parameters:
//   - binding: the binding index for this sampler
//   - sampler: the sampler to associate with this binding
//
// Returns:
//   - BindGroupProviderOption: a function that sets the sampler for the specified binding
func WithSampler(binding int, sampler gpu.SamplerID) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.samplers[binding] = sampler
	}
}
