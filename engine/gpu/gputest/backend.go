// Package gputest provides a recording gpu.Backend for tests that need a device and surface without a GPU.
package gputest

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-quad/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// Draw is one recorded Draw call.
type Draw struct {
	VertexCount, InstanceCount, FirstVertex, FirstInstance uint32
}

// BoundGroup is one recorded SetBindGroup call.
type BoundGroup struct {
	Slot  uint32
	Group gpu.BindGroupID
}

// Pass is everything recorded inside one render pass.
type Pass struct {
	Descriptor    gpu.RenderPassDescriptor
	Pipeline      gpu.RenderPipelineID
	BindGroups    []BoundGroup
	VertexBuffers map[uint32]gpu.BufferID
	Draws         []Draw
}

// TextureWrite is one recorded WriteTexture call.
type TextureWrite struct {
	Dst    gpu.ImageCopyTexture
	Data   []byte
	Layout wgpu.TextureDataLayout
	Size   wgpu.Extent3D
}

// Backend records every call made against it. The exported fields are safe to read once the code under test
// has returned.
type Backend struct {
	mu   sync.Mutex
	next uint32

	// Caps is returned from Capabilities. Tests may replace it before constructing a session.
	Caps gpu.SurfaceCapabilities
	// AcquireErrors are returned by successive AcquireTexture calls before acquisition starts succeeding.
	AcquireErrors []error
	// FailPipeline makes CreateRenderPipeline fail with the given error.
	FailPipeline error

	Configurations   []gpu.SurfaceConfiguration
	Buffers          map[gpu.BufferID][]byte
	BufferDescs      map[gpu.BufferID]gpu.BufferDescriptor
	Textures         map[gpu.TextureID]wgpu.TextureDescriptor
	TextureViews     map[gpu.TextureViewID]gpu.TextureID
	TextureWrites    []TextureWrite
	Samplers         map[gpu.SamplerID]wgpu.SamplerDescriptor
	BindGroupLayouts map[gpu.BindGroupLayoutID]wgpu.BindGroupLayoutDescriptor
	BindGroups       map[gpu.BindGroupID]gpu.BindGroupDescriptor
	ShaderModules    map[gpu.ShaderModuleID]string
	Pipelines        map[gpu.RenderPipelineID]gpu.RenderPipelineDescriptor
	Submissions      [][]Pass
	Presents         int
	Released         []any
	Destroyed        bool

	pending map[gpu.CommandBufferID][]Pass
	frame   gpu.TextureID
}

var _ gpu.Backend = &Backend{}

// NewBackend returns a Backend whose surface supports a single sRGB BGRA format with FIFO and immediate presentation.
//
// Returns:
//   - *Backend: the recording backend
func NewBackend() *Backend {
	return &Backend{
		Caps: gpu.SurfaceCapabilities{
			Formats:      []wgpu.TextureFormat{wgpu.TextureFormatBGRA8UnormSrgb},
			PresentModes: []wgpu.PresentMode{wgpu.PresentModeFifo, wgpu.PresentModeImmediate},
			AlphaModes:   []wgpu.CompositeAlphaMode{wgpu.CompositeAlphaModeOpaque},
		},
		Buffers:          make(map[gpu.BufferID][]byte),
		BufferDescs:      make(map[gpu.BufferID]gpu.BufferDescriptor),
		Textures:         make(map[gpu.TextureID]wgpu.TextureDescriptor),
		TextureViews:     make(map[gpu.TextureViewID]gpu.TextureID),
		Samplers:         make(map[gpu.SamplerID]wgpu.SamplerDescriptor),
		BindGroupLayouts: make(map[gpu.BindGroupLayoutID]wgpu.BindGroupLayoutDescriptor),
		BindGroups:       make(map[gpu.BindGroupID]gpu.BindGroupDescriptor),
		ShaderModules:    make(map[gpu.ShaderModuleID]string),
		Pipelines:        make(map[gpu.RenderPipelineID]gpu.RenderPipelineDescriptor),
		pending:          make(map[gpu.CommandBufferID][]Pass),
	}
}

// Passes returns every submitted render pass in submission order.
func (b *Backend) Passes() []Pass {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Pass
	for _, s := range b.Submissions {
		out = append(out, s...)
	}
	return out
}

// LastConfiguration returns the most recent surface configuration, or the zero value if none was applied.
func (b *Backend) LastConfiguration() gpu.SurfaceConfiguration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.Configurations) == 0 {
		return gpu.SurfaceConfiguration{}
	}
	return b.Configurations[len(b.Configurations)-1]
}

func (b *Backend) id() uint32 {
	b.next++
	return b.next
}

func (b *Backend) Capabilities() gpu.SurfaceCapabilities {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Caps
}

func (b *Backend) Configure(cfg *gpu.SurfaceConfiguration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cfg.Width == 0 || cfg.Height == 0 {
		return fmt.Errorf("gputest: cannot configure a %dx%d surface", cfg.Width, cfg.Height)
	}
	b.Configurations = append(b.Configurations, *cfg)
	return nil
}

func (b *Backend) AcquireTexture() (gpu.TextureID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.AcquireErrors) > 0 {
		err := b.AcquireErrors[0]
		b.AcquireErrors = b.AcquireErrors[1:]
		return 0, err
	}
	if len(b.Configurations) == 0 {
		return 0, fmt.Errorf("gputest: surface not configured")
	}
	if b.frame != 0 {
		return 0, fmt.Errorf("gputest: previous surface texture not yet presented")
	}
	cfg := b.Configurations[len(b.Configurations)-1]
	b.frame = gpu.TextureID(b.id())
	b.Textures[b.frame] = wgpu.TextureDescriptor{
		Label:  "surface",
		Format: cfg.Format,
		Usage:  cfg.Usage,
		Size:   wgpu.Extent3D{Width: cfg.Width, Height: cfg.Height, DepthOrArrayLayers: 1},
	}
	return b.frame, nil
}

func (b *Backend) Present() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frame == 0 {
		return fmt.Errorf("gputest: no surface texture acquired")
	}
	delete(b.Textures, b.frame)
	b.frame = 0
	b.Presents++
	return nil
}

func (b *Backend) CreateBuffer(desc *gpu.BufferDescriptor) (gpu.BufferID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := gpu.BufferID(b.id())
	size := desc.Size
	if len(desc.Contents) > 0 {
		size = uint64(len(desc.Contents))
	}
	data := make([]byte, size)
	copy(data, desc.Contents)
	b.Buffers[id] = data
	b.BufferDescs[id] = *desc
	return id, nil
}

func (b *Backend) CreateTexture(desc *wgpu.TextureDescriptor) (gpu.TextureID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := gpu.TextureID(b.id())
	b.Textures[id] = *desc
	return id, nil
}

func (b *Backend) CreateTextureView(texture gpu.TextureID, label string) (gpu.TextureViewID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.Textures[texture]; !ok {
		return 0, fmt.Errorf("%w: texture %d (%s)", gpu.ErrInvalidHandle, texture, label)
	}
	id := gpu.TextureViewID(b.id())
	b.TextureViews[id] = texture
	return id, nil
}

func (b *Backend) CreateSampler(desc *wgpu.SamplerDescriptor) (gpu.SamplerID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := gpu.SamplerID(b.id())
	b.Samplers[id] = *desc
	return id, nil
}

func (b *Backend) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (gpu.BindGroupLayoutID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := gpu.BindGroupLayoutID(b.id())
	b.BindGroupLayouts[id] = *desc
	return id, nil
}

func (b *Backend) CreateBindGroup(desc *gpu.BindGroupDescriptor) (gpu.BindGroupID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	layout, ok := b.BindGroupLayouts[desc.Layout]
	if !ok {
		return 0, fmt.Errorf("%w: bind group layout %d", gpu.ErrInvalidHandle, desc.Layout)
	}
	if len(layout.Entries) != len(desc.Entries) {
		return 0, fmt.Errorf("gputest: %s has %d entries, layout expects %d", desc.Label, len(desc.Entries), len(layout.Entries))
	}
	for _, e := range desc.Entries {
		switch {
		case e.Buffer != 0:
			if _, ok := b.Buffers[e.Buffer]; !ok {
				return 0, fmt.Errorf("%w: buffer %d", gpu.ErrInvalidHandle, e.Buffer)
			}
		case e.TextureView != 0:
			if _, ok := b.TextureViews[e.TextureView]; !ok {
				return 0, fmt.Errorf("%w: texture view %d", gpu.ErrInvalidHandle, e.TextureView)
			}
		case e.Sampler != 0:
			if _, ok := b.Samplers[e.Sampler]; !ok {
				return 0, fmt.Errorf("%w: sampler %d", gpu.ErrInvalidHandle, e.Sampler)
			}
		default:
			return 0, fmt.Errorf("gputest: binding %d of %s has no resource", e.Binding, desc.Label)
		}
	}

	id := gpu.BindGroupID(b.id())
	b.BindGroups[id] = *desc
	return id, nil
}

func (b *Backend) CreateShaderModule(label, wgslSource string) (gpu.ShaderModuleID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := gpu.ShaderModuleID(b.id())
	b.ShaderModules[id] = wgslSource
	return id, nil
}

func (b *Backend) CreateRenderPipeline(desc *gpu.RenderPipelineDescriptor) (gpu.RenderPipelineID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.FailPipeline != nil {
		return 0, b.FailPipeline
	}
	if _, ok := b.ShaderModules[desc.Module]; !ok {
		return 0, fmt.Errorf("%w: shader module %d", gpu.ErrInvalidHandle, desc.Module)
	}
	for slot, layout := range desc.BindGroupLayouts {
		if _, ok := b.BindGroupLayouts[layout]; !ok {
			return 0, fmt.Errorf("%w: bind group layout %d for slot %d", gpu.ErrInvalidHandle, layout, slot)
		}
	}

	id := gpu.RenderPipelineID(b.id())
	b.Pipelines[id] = *desc
	return id, nil
}

func (b *Backend) CreateCommandEncoder(label string) (gpu.CommandEncoder, error) {
	return &commandEncoder{backend: b, label: label}, nil
}

func (b *Backend) WriteBuffer(buffer gpu.BufferID, offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, ok := b.Buffers[buffer]
	if !ok {
		return fmt.Errorf("%w: buffer %d", gpu.ErrInvalidHandle, buffer)
	}
	if offset+uint64(len(data)) > uint64(len(buf)) {
		return fmt.Errorf("gputest: write of %d bytes at %d overflows buffer of %d", len(data), offset, len(buf))
	}
	copy(buf[offset:], data)
	return nil
}

func (b *Backend) WriteTexture(dst *gpu.ImageCopyTexture, data []byte, layout *wgpu.TextureDataLayout, size *wgpu.Extent3D) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.Textures[dst.Texture]; !ok {
		return fmt.Errorf("%w: texture %d", gpu.ErrInvalidHandle, dst.Texture)
	}
	b.TextureWrites = append(b.TextureWrites, TextureWrite{
		Dst:    *dst,
		Data:   append([]byte(nil), data...),
		Layout: *layout,
		Size:   *size,
	})
	return nil
}

func (b *Backend) Submit(buffers ...gpu.CommandBufferID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range buffers {
		passes, ok := b.pending[id]
		if !ok {
			return fmt.Errorf("%w: command buffer %d", gpu.ErrInvalidHandle, id)
		}
		delete(b.pending, id)
		b.Submissions = append(b.Submissions, passes)
	}
	return nil
}

func (b *Backend) Release(handle any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.Released = append(b.Released, handle)
	switch h := handle.(type) {
	case gpu.BufferID:
		delete(b.Buffers, h)
	case gpu.TextureID:
		delete(b.Textures, h)
	case gpu.TextureViewID:
		delete(b.TextureViews, h)
	case gpu.SamplerID:
		delete(b.Samplers, h)
	case gpu.BindGroupLayoutID:
		delete(b.BindGroupLayouts, h)
	case gpu.BindGroupID:
		delete(b.BindGroups, h)
	case gpu.ShaderModuleID:
		delete(b.ShaderModules, h)
	case gpu.RenderPipelineID:
		delete(b.Pipelines, h)
	}
}

func (b *Backend) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Destroyed = true
}

type commandEncoder struct {
	backend  *Backend
	label    string
	passes   []Pass
	open     *renderPass
	finished bool
}

func (e *commandEncoder) BeginRenderPass(desc *gpu.RenderPassDescriptor) (gpu.RenderPassEncoder, error) {
	if e.open != nil {
		return nil, fmt.Errorf("gputest: render pass already open on %s", e.label)
	}
	if e.finished {
		return nil, fmt.Errorf("gputest: encoder %s already finished", e.label)
	}

	e.backend.mu.Lock()
	for i, a := range desc.ColorAttachments {
		if _, ok := e.backend.TextureViews[a.View]; !ok {
			e.backend.mu.Unlock()
			return nil, fmt.Errorf("%w: texture view %d for color attachment %d", gpu.ErrInvalidHandle, a.View, i)
		}
	}
	e.backend.mu.Unlock()

	e.open = &renderPass{
		encoder: e,
		pass:    Pass{Descriptor: *desc, VertexBuffers: make(map[uint32]gpu.BufferID)},
	}
	return e.open, nil
}

func (e *commandEncoder) Finish() (gpu.CommandBufferID, error) {
	if e.open != nil {
		return 0, fmt.Errorf("gputest: cannot finish %s while a render pass is open", e.label)
	}
	e.finished = true

	e.backend.mu.Lock()
	defer e.backend.mu.Unlock()
	id := gpu.CommandBufferID(e.backend.id())
	e.backend.pending[id] = e.passes
	return id, nil
}

func (e *commandEncoder) Release() {}

type renderPass struct {
	encoder *commandEncoder
	pass    Pass
}

func (p *renderPass) SetPipeline(pipeline gpu.RenderPipelineID) {
	p.pass.Pipeline = pipeline
}

func (p *renderPass) SetBindGroup(index uint32, group gpu.BindGroupID) {
	p.pass.BindGroups = append(p.pass.BindGroups, BoundGroup{Slot: index, Group: group})
}

func (p *renderPass) SetVertexBuffer(slot uint32, buffer gpu.BufferID) {
	p.pass.VertexBuffers[slot] = buffer
}

func (p *renderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.pass.Draws = append(p.pass.Draws, Draw{
		VertexCount:   vertexCount,
		InstanceCount: instanceCount,
		FirstVertex:   firstVertex,
		FirstInstance: firstInstance,
	})
}

func (p *renderPass) End() error {
	if p.encoder.open != p {
		return fmt.Errorf("gputest: render pass already ended")
	}
	if len(p.pass.Draws) > 0 && p.pass.Pipeline == 0 {
		return fmt.Errorf("gputest: draw recorded without a pipeline")
	}
	p.encoder.passes = append(p.encoder.passes, p.pass)
	p.encoder.open = nil
	return nil
}
