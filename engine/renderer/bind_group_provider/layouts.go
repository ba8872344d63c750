package bind_group_provider

import "github.com/cogentcore/webgpu/wgpu"

// TextureLayoutEntries describes a fragment-visible filterable 2D float texture at binding 0
// and its filtering sampler at binding 1.
//
// Returns:
//   - []wgpu.BindGroupLayoutEntry: the two layout entries
func TextureLayoutEntries() []wgpu.BindGroupLayoutEntry {
	return []wgpu.BindGroupLayoutEntry{
		{
			Binding:    0,
			Visibility: wgpu.ShaderStageFragment,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeFloat,
				ViewDimension: wgpu.TextureViewDimension2D,
				Multisampled:  false,
			},
		},
		{
			Binding:    1,
			Visibility: wgpu.ShaderStageFragment,
			Sampler: wgpu.SamplerBindingLayout{
				Type: wgpu.SamplerBindingTypeFiltering,
			},
		},
	}
}

// UniformLayoutEntries describes a single vertex-visible uniform buffer at binding 0.
//
// Parameters:
//   - minSize: the minimum binding size in bytes, or 0 to skip the check
//
// Returns:
//   - []wgpu.BindGroupLayoutEntry: the layout entry
func UniformLayoutEntries(minSize uint64) []wgpu.BindGroupLayoutEntry {
	return []wgpu.BindGroupLayoutEntry{
		{
			Binding:    0,
			Visibility: wgpu.ShaderStageVertex,
			Buffer: wgpu.BufferBindingLayout{
				Type:             wgpu.BufferBindingTypeUniform,
				HasDynamicOffset: false,
				MinBindingSize:   minSize,
			},
		},
	}
}
