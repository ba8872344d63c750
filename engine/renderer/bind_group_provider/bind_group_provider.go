package bind_group_provider

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-quad/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string
	// layoutDescriptor describes the slots this provider fills. Entries are matched to resources by binding index.
	layoutDescriptor wgpu.BindGroupLayoutDescriptor

	// The following handles are created by Init and must be released when no longer needed.

	bindGroup       gpu.BindGroupID
	bindGroupLayout gpu.BindGroupLayoutID

	// buffers are owned by the provider and released with it, keyed by binding index.
	buffers map[int]gpu.BufferID
	// textureViews and samplers are borrowed from the resource that created them and are never released here.
	textureViews map[int]gpu.TextureViewID
	samplers     map[int]gpu.SamplerID
}

// BindGroupProvider owns one bind group: its layout, the bind group itself, and the resources bound into it.
//
// Usage pattern:
//  1. Create a provider with layout entries and resources for every entry
//  2. Call Init to create the GPU layout and bind group
//  3. Hand BindGroupLayout to the pipeline in slot order and bind BindGroup at draw time
//  4. Update uniform contents in place with WriteBuffers
type BindGroupProvider interface {
	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// LayoutDescriptor returns the CPU-side layout descriptor this provider was created with.
	//
	// Returns:
	//   - wgpu.BindGroupLayoutDescriptor: the layout descriptor
	LayoutDescriptor() wgpu.BindGroupLayoutDescriptor

	// BindGroup returns the created bind group, or zero before Init.
	//
	// Returns:
	//   - gpu.BindGroupID: the bind group handle
	BindGroup() gpu.BindGroupID

	// BindGroupLayout returns the created bind group layout, or zero before Init.
	//
	// Returns:
	//   - gpu.BindGroupLayoutID: the layout handle
	BindGroupLayout() gpu.BindGroupLayoutID

	// Buffer returns the buffer bound at binding, or zero if none is set.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - gpu.BufferID: the buffer handle
	Buffer(binding int) gpu.BufferID

	// TextureView returns the texture view bound at binding, or zero if none is set.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - gpu.TextureViewID: the texture view handle
	TextureView(binding int) gpu.TextureViewID

	// Sampler returns the sampler bound at binding, or zero if none is set.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - gpu.SamplerID: the sampler handle
	Sampler(binding int) gpu.SamplerID

	// Init creates the bind group layout and the bind group. Every layout entry must have a resource.
	//
	// Parameters:
	//   - device: the device to create the layout and group on
	//
	// Returns:
	//   - error: an error if a layout entry has no resource or a GPU call fails
	Init(device gpu.Device) error

	// Release frees the bind group, the layout and the owned buffers.
	// Borrowed texture views and samplers stay alive.
	//
	// Parameters:
	//   - device: the device the resources were created on
	Release(device gpu.Device)
}

// Compile-time check that bindGroupProvider implements BindGroupProvider
var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider with the provided options.
//
// Parameters:
//   - label: the debug label used for the layout and bind group
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: a new instance of BindGroupProvider configured with the provided options
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:            label,
		layoutDescriptor: wgpu.BindGroupLayoutDescriptor{Label: label + " Bind Group Layout"},
		buffers:          make(map[int]gpu.BufferID),
		textureViews:     make(map[int]gpu.TextureViewID),
		samplers:         make(map[int]gpu.SamplerID),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) LayoutDescriptor() wgpu.BindGroupLayoutDescriptor {
	return p.layoutDescriptor
}

func (p *bindGroupProvider) BindGroup() gpu.BindGroupID {
	return p.bindGroup
}

func (p *bindGroupProvider) BindGroupLayout() gpu.BindGroupLayoutID {
	return p.bindGroupLayout
}

func (p *bindGroupProvider) Buffer(binding int) gpu.BufferID {
	return p.buffers[binding]
}

func (p *bindGroupProvider) TextureView(binding int) gpu.TextureViewID {
	return p.textureViews[binding]
}

func (p *bindGroupProvider) Sampler(binding int) gpu.SamplerID {
	return p.samplers[binding]
}

func (p *bindGroupProvider) Init(device gpu.Device) error {
	if p.bindGroup != 0 {
		return fmt.Errorf("%s: bind group already initialised", p.label)
	}

	entries := make([]gpu.BindGroupEntry, len(p.layoutDescriptor.Entries))
	for i, layoutEntry := range p.layoutDescriptor.Entries {
		binding := int(layoutEntry.Binding)
		entry := gpu.BindGroupEntry{Binding: layoutEntry.Binding}
		switch {
		case p.buffers[binding] != 0:
			entry.Buffer = p.buffers[binding]
			entry.Size = wgpu.WholeSize
		case p.textureViews[binding] != 0:
			entry.TextureView = p.textureViews[binding]
		case p.samplers[binding] != 0:
			entry.Sampler = p.samplers[binding]
		default:
			return fmt.Errorf("%s: no resource for binding %d", p.label, binding)
		}
		entries[i] = entry
	}

	layout, err := device.CreateBindGroupLayout(&p.layoutDescriptor)
	if err != nil {
		return fmt.Errorf("%s: create bind group layout: %w", p.label, err)
	}

	bindGroup, err := device.CreateBindGroup(&gpu.BindGroupDescriptor{
		Label:   p.label + " Bind Group",
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		device.Release(layout)
		return fmt.Errorf("%s: create bind group: %w", p.label, err)
	}

	p.bindGroupLayout = layout
	p.bindGroup = bindGroup
	return nil
}

func (p *bindGroupProvider) Release(device gpu.Device) {
	if p.bindGroup != 0 {
		device.Release(p.bindGroup)
		p.bindGroup = 0
	}
	if p.bindGroupLayout != 0 {
		device.Release(p.bindGroupLayout)
		p.bindGroupLayout = 0
	}
	for i, buf := range p.buffers {
		device.Release(buf)
		delete(p.buffers, i)
	}
}
