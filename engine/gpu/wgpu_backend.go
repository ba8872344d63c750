package gpu

import (
	"fmt"
	"reflect"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-quad/common"
	"github.com/Carmen-Shannon/oxy-quad/engine/logger"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// nativeSurface is the subset of *wgpu.Surface the backend drives after Open.
type nativeSurface interface {
	GetCapabilities(adapter *wgpu.Adapter) wgpu.SurfaceCapabilities
	Configure(adapter *wgpu.Adapter, device *wgpu.Device, config *wgpu.SurfaceConfiguration)
	GetCurrentTexture() (*wgpu.Texture, error)
	Present()
	Release()
}

// nativeQueue is the subset of *wgpu.Queue the backend drives.
type nativeQueue interface {
	WriteBuffer(buffer *wgpu.Buffer, offset uint64, data []byte) error
	WriteTexture(dst *wgpu.ImageCopyTexture, data []byte, layout *wgpu.TextureDataLayout, size *wgpu.Extent3D) error
	Submit(commands ...*wgpu.CommandBuffer) wgpu.SubmissionIndex
	Release()
}

// nativePass is the subset of *wgpu.RenderPassEncoder a recorded pass drives.
type nativePass interface {
	SetPipeline(pipeline *wgpu.RenderPipeline)
	SetBindGroup(index uint32, group *wgpu.BindGroup, dynamicOffsets []uint32)
	SetVertexBuffer(slot uint32, buffer *wgpu.Buffer, offset, size uint64)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	End() error
	Release()
}

var (
	_ nativeSurface = &wgpu.Surface{}
	_ nativeQueue   = &wgpu.Queue{}
	_ nativePass    = &wgpu.RenderPassEncoder{}
)

type wgpuBackendImpl struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  nativeSurface
	device   *wgpu.Device
	queue    nativeQueue

	powerPreference      wgpu.PowerPreference
	forceFallbackAdapter bool
	deviceLabel          string

	buffers          *arena[*wgpu.Buffer]
	textures         *arena[*wgpu.Texture]
	textureViews     *arena[*wgpu.TextureView]
	samplers         *arena[*wgpu.Sampler]
	bindGroupLayouts *arena[*wgpu.BindGroupLayout]
	bindGroups       *arena[*wgpu.BindGroup]
	shaderModules    *arena[*wgpu.ShaderModule]
	pipelines        *arena[*wgpu.RenderPipeline]
	pipelineLayouts  []*wgpu.PipelineLayout
	commandBuffers   *arena[*wgpu.CommandBuffer]

	// frameTexture is the surface texture acquired for the current frame, 0 when none is held.
	frameTexture TextureID
}

var _ Backend = &wgpuBackendImpl{}

// Open creates a WebGPU instance and surface for the given window descriptor, then negotiates an adapter
// compatible with that surface and requests a logical device and its queue.
// The calling goroutine is locked to its OS thread, as native surfaces require.
//
// Parameters:
//   - surfaceDescriptor: the platform surface descriptor for the target window
//   - options: functional options for adapter selection
//
// Returns:
//   - Backend: the opened backend
//   - error: ErrNoAdapter or ErrDeviceRequest (wrapped) if negotiation fails
func Open(surfaceDescriptor *wgpu.SurfaceDescriptor, options ...BackendBuilderOption) (Backend, error) {
	runtime.LockOSThread()

	b := &wgpuBackendImpl{
		mu:               &sync.Mutex{},
		powerPreference:  wgpu.PowerPreferenceHighPerformance,
		deviceLabel:      "Main Device",
		buffers:          newArena[*wgpu.Buffer](),
		textures:         newArena[*wgpu.Texture](),
		textureViews:     newArena[*wgpu.TextureView](),
		samplers:         newArena[*wgpu.Sampler](),
		bindGroupLayouts: newArena[*wgpu.BindGroupLayout](),
		bindGroups:       newArena[*wgpu.BindGroup](),
		shaderModules:    newArena[*wgpu.ShaderModule](),
		pipelines:        newArena[*wgpu.RenderPipeline](),
		commandBuffers:   newArena[*wgpu.CommandBuffer](),
	}
	for _, opt := range options {
		opt(b)
	}

	b.instance = wgpu.CreateInstance(nil)
	surface := b.instance.CreateSurface(surfaceDescriptor)
	if surface == nil {
		b.Destroy()
		return nil, fmt.Errorf("%w: no surface for window", ErrNoAdapter)
	}
	b.surface = surface

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: b.forceFallbackAdapter,
		CompatibleSurface:    surface,
		PowerPreference:      b.powerPreference,
	})
	if err != nil || a == nil {
		b.Destroy()
		return nil, requestError(ErrNoAdapter, err)
	}
	b.adapter = a

	limits := wgpu.DefaultLimits()
	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: b.deviceLabel,
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil || d == nil {
		b.Destroy()
		return nil, requestError(ErrDeviceRequest, err)
	}
	b.device = d
	if q := d.GetQueue(); q != nil {
		b.queue = q
	}

	logger.Info("graphics device ready",
		zap.String("device", b.deviceLabel),
		zap.Any("power_preference", b.powerPreference),
		zap.Bool("fallback_adapter", b.forceFallbackAdapter),
	)
	return b, nil
}

func (b *wgpuBackendImpl) Capabilities() SurfaceCapabilities {
	b.mu.Lock()
	defer b.mu.Unlock()

	caps := b.surface.GetCapabilities(b.adapter)
	return SurfaceCapabilities{
		Formats:      caps.Formats,
		PresentModes: caps.PresentModes,
		AlphaModes:   caps.AlphaModes,
	}
}

func (b *wgpuBackendImpl) Configure(cfg *SurfaceConfiguration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cfg.Width == 0 || cfg.Height == 0 {
		return fmt.Errorf("gpu: cannot configure a %dx%d surface", cfg.Width, cfg.Height)
	}
	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       cfg.Usage,
		Format:      cfg.Format,
		Width:       cfg.Width,
		Height:      cfg.Height,
		PresentMode: cfg.PresentMode,
		AlphaMode:   cfg.AlphaMode,
	})
	return nil
}

func (b *wgpuBackendImpl) AcquireTexture() (TextureID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameTexture != 0 {
		return 0, fmt.Errorf("gpu: previous surface texture not yet presented")
	}

	// The native binding collapses timeout/outdated/lost into a single error; treat it as the
	// recoverable case and let the caller escalate repeated failures.
	tex, err := b.surface.GetCurrentTexture()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSurfaceOutdated, err)
	}
	// An outdated or lost surface may hand back a texture with no native object and no error.
	if nullTexture(tex) {
		return 0, fmt.Errorf("%w: surface returned no texture", ErrSurfaceOutdated)
	}
	b.frameTexture = TextureID(b.textures.add(tex))
	return b.frameTexture, nil
}

func (b *wgpuBackendImpl) Present() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameTexture == 0 {
		return fmt.Errorf("gpu: no surface texture acquired")
	}
	b.surface.Present()

	if tex, ok := b.textures.remove(uint32(b.frameTexture)); ok {
		tex.Release()
	}
	b.frameTexture = 0
	return nil
}

func (b *wgpuBackendImpl) CreateBuffer(desc *BufferDescriptor) (BufferID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var (
		buf *wgpu.Buffer
		err error
	)
	if len(desc.Contents) > 0 {
		buf, err = b.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
			Label:    desc.Label,
			Contents: desc.Contents,
			Usage:    desc.Usage,
		})
	} else {
		buf, err = b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label:            desc.Label,
			Size:             desc.Size,
			Usage:            desc.Usage,
			MappedAtCreation: false,
		})
	}
	if err != nil {
		return 0, err
	}
	return BufferID(b.buffers.add(buf)), nil
}

func (b *wgpuBackendImpl) CreateTexture(desc *wgpu.TextureDescriptor) (TextureID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tex, err := b.device.CreateTexture(desc)
	if err != nil {
		return 0, err
	}
	return TextureID(b.textures.add(tex)), nil
}

func (b *wgpuBackendImpl) CreateTextureView(texture TextureID, label string) (TextureViewID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tex, ok := b.textures.get(uint32(texture))
	if !ok {
		return 0, fmt.Errorf("%w: texture %d (%s)", ErrInvalidHandle, texture, label)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		return 0, err
	}
	return TextureViewID(b.textureViews.add(view)), nil
}

func (b *wgpuBackendImpl) CreateSampler(desc *wgpu.SamplerDescriptor) (SamplerID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	samp, err := b.device.CreateSampler(desc)
	if err != nil {
		return 0, err
	}
	return SamplerID(b.samplers.add(samp)), nil
}

func (b *wgpuBackendImpl) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (BindGroupLayoutID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	layout, err := b.device.CreateBindGroupLayout(desc)
	if err != nil {
		return 0, err
	}
	return BindGroupLayoutID(b.bindGroupLayouts.add(layout)), nil
}

func (b *wgpuBackendImpl) CreateBindGroup(desc *BindGroupDescriptor) (BindGroupID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	layout, ok := b.bindGroupLayouts.get(uint32(desc.Layout))
	if !ok {
		return 0, fmt.Errorf("%w: bind group layout %d", ErrInvalidHandle, desc.Layout)
	}

	entries := make([]wgpu.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != 0:
			buf, ok := b.buffers.get(uint32(e.Buffer))
			if !ok {
				return 0, fmt.Errorf("%w: buffer %d at binding %d", ErrInvalidHandle, e.Buffer, e.Binding)
			}
			entry.Buffer = buf
			entry.Offset = e.Offset
			entry.Size = common.Coalesce(e.Size, wgpu.WholeSize)
		case e.TextureView != 0:
			view, ok := b.textureViews.get(uint32(e.TextureView))
			if !ok {
				return 0, fmt.Errorf("%w: texture view %d at binding %d", ErrInvalidHandle, e.TextureView, e.Binding)
			}
			entry.TextureView = view
		case e.Sampler != 0:
			samp, ok := b.samplers.get(uint32(e.Sampler))
			if !ok {
				return 0, fmt.Errorf("%w: sampler %d at binding %d", ErrInvalidHandle, e.Sampler, e.Binding)
			}
			entry.Sampler = samp
		default:
			return 0, fmt.Errorf("gpu: binding %d of %s has no resource", e.Binding, desc.Label)
		}
		entries[i] = entry
	}

	group, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return 0, err
	}
	return BindGroupID(b.bindGroups.add(group)), nil
}

func (b *wgpuBackendImpl) CreateShaderModule(label, wgslSource string) (ShaderModuleID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: wgslSource,
		},
	})
	if err != nil {
		return 0, err
	}
	return ShaderModuleID(b.shaderModules.add(module)), nil
}

func (b *wgpuBackendImpl) CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipelineID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	module, ok := b.shaderModules.get(uint32(desc.Module))
	if !ok {
		return 0, fmt.Errorf("%w: shader module %d", ErrInvalidHandle, desc.Module)
	}

	layouts := make([]*wgpu.BindGroupLayout, len(desc.BindGroupLayouts))
	for i, id := range desc.BindGroupLayouts {
		layout, ok := b.bindGroupLayouts.get(uint32(id))
		if !ok {
			return 0, fmt.Errorf("%w: bind group layout %d for slot %d", ErrInvalidHandle, id, i)
		}
		layouts[i] = layout
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label + " Layout",
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return 0, err
	}
	b.pipelineLayouts = append(b.pipelineLayouts, pipelineLayout)

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: desc.VertexEntryPoint,
			Buffers:    desc.VertexBuffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: desc.FragmentEntryPoint,
			Targets:    desc.Targets,
		},
		Primitive:    desc.Primitive,
		Multisample:  desc.Multisample,
		DepthStencil: desc.DepthStencil,
	})
	if err != nil {
		return 0, err
	}
	return RenderPipelineID(b.pipelines.add(created)), nil
}

func (b *wgpuBackendImpl) CreateCommandEncoder(label string) (CommandEncoder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	encoder, err := b.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, err
	}
	return &wgpuCommandEncoder{backend: b, encoder: encoder}, nil
}

func (b *wgpuBackendImpl) WriteBuffer(buffer BufferID, offset uint64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, ok := b.buffers.get(uint32(buffer))
	if !ok {
		return fmt.Errorf("%w: buffer %d", ErrInvalidHandle, buffer)
	}
	if err := b.queue.WriteBuffer(buf, offset, data); err != nil {
		return fmt.Errorf("gpu: write buffer %d: %w", buffer, err)
	}
	return nil
}

func (b *wgpuBackendImpl) WriteTexture(dst *ImageCopyTexture, data []byte, layout *wgpu.TextureDataLayout, size *wgpu.Extent3D) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tex, ok := b.textures.get(uint32(dst.Texture))
	if !ok {
		return fmt.Errorf("%w: texture %d", ErrInvalidHandle, dst.Texture)
	}
	err := b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: dst.MipLevel,
			Origin:   dst.Origin,
			Aspect:   dst.Aspect,
		},
		data,
		layout,
		size,
	)
	if err != nil {
		return fmt.Errorf("gpu: write texture %d: %w", dst.Texture, err)
	}
	return nil
}

func (b *wgpuBackendImpl) Submit(buffers ...CommandBufferID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cbs := make([]*wgpu.CommandBuffer, 0, len(buffers))
	for _, id := range buffers {
		cb, ok := b.commandBuffers.remove(uint32(id))
		if !ok {
			return fmt.Errorf("%w: command buffer %d", ErrInvalidHandle, id)
		}
		cbs = append(cbs, cb)
	}
	b.queue.Submit(cbs...)
	for _, cb := range cbs {
		cb.Release()
	}
	return nil
}

func (b *wgpuBackendImpl) Release(handle any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch h := handle.(type) {
	case BufferID:
		if v, ok := b.buffers.remove(uint32(h)); ok {
			v.Release()
		}
	case TextureID:
		if v, ok := b.textures.remove(uint32(h)); ok {
			v.Release()
		}
	case TextureViewID:
		if v, ok := b.textureViews.remove(uint32(h)); ok {
			v.Release()
		}
	case SamplerID:
		if v, ok := b.samplers.remove(uint32(h)); ok {
			v.Release()
		}
	case BindGroupLayoutID:
		if v, ok := b.bindGroupLayouts.remove(uint32(h)); ok {
			v.Release()
		}
	case BindGroupID:
		if v, ok := b.bindGroups.remove(uint32(h)); ok {
			v.Release()
		}
	case ShaderModuleID:
		if v, ok := b.shaderModules.remove(uint32(h)); ok {
			v.Release()
		}
	case RenderPipelineID:
		if v, ok := b.pipelines.remove(uint32(h)); ok {
			v.Release()
		}
	}
}

func (b *wgpuBackendImpl) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Dependents before the objects they reference.
	b.commandBuffers.drain(func(v *wgpu.CommandBuffer) { v.Release() })
	b.pipelines.drain(func(v *wgpu.RenderPipeline) { v.Release() })
	for i := len(b.pipelineLayouts) - 1; i >= 0; i-- {
		b.pipelineLayouts[i].Release()
	}
	b.pipelineLayouts = nil
	b.shaderModules.drain(func(v *wgpu.ShaderModule) { v.Release() })
	b.bindGroups.drain(func(v *wgpu.BindGroup) { v.Release() })
	b.bindGroupLayouts.drain(func(v *wgpu.BindGroupLayout) { v.Release() })
	b.samplers.drain(func(v *wgpu.Sampler) { v.Release() })
	b.textureViews.drain(func(v *wgpu.TextureView) { v.Release() })
	b.textures.drain(func(v *wgpu.Texture) { v.Release() })
	b.buffers.drain(func(v *wgpu.Buffer) { v.Release() })
	b.frameTexture = 0

	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

// wgpuCommandEncoder wraps a native command encoder and enforces that a pass is closed before Finish.
type wgpuCommandEncoder struct {
	backend *wgpuBackendImpl
	encoder *wgpu.CommandEncoder
	open    *wgpuRenderPass
}

func (e *wgpuCommandEncoder) BeginRenderPass(desc *RenderPassDescriptor) (RenderPassEncoder, error) {
	if e.open != nil {
		return nil, fmt.Errorf("gpu: render pass %q still open", e.open.label)
	}

	e.backend.mu.Lock()
	attachments := make([]wgpu.RenderPassColorAttachment, len(desc.ColorAttachments))
	for i, a := range desc.ColorAttachments {
		view, ok := e.backend.textureViews.get(uint32(a.View))
		if !ok {
			e.backend.mu.Unlock()
			return nil, fmt.Errorf("%w: texture view %d for color attachment %d", ErrInvalidHandle, a.View, i)
		}
		attachments[i] = wgpu.RenderPassColorAttachment{
			View:       view,
			LoadOp:     a.LoadOp,
			StoreOp:    a.StoreOp,
			ClearValue: a.ClearValue,
		}
	}
	e.backend.mu.Unlock()

	pass := e.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label:            desc.Label,
		ColorAttachments: attachments,
	})
	e.open = &wgpuRenderPass{encoder: e, pass: pass, label: desc.Label}
	return e.open, nil
}

func (e *wgpuCommandEncoder) Finish() (CommandBufferID, error) {
	if e.open != nil {
		return 0, fmt.Errorf("gpu: cannot finish while render pass %q is open", e.open.label)
	}
	cb, err := e.encoder.Finish(nil)
	if err != nil {
		return 0, err
	}

	e.backend.mu.Lock()
	defer e.backend.mu.Unlock()
	return CommandBufferID(e.backend.commandBuffers.add(cb)), nil
}

func (e *wgpuCommandEncoder) Release() {
	if e.encoder != nil {
		e.encoder.Release()
		e.encoder = nil
	}
}

// wgpuRenderPass resolves handles to native objects as commands are recorded.
// Invalid handles are remembered and reported by End.
type wgpuRenderPass struct {
	encoder *wgpuCommandEncoder
	pass    nativePass
	label   string
	err     error
}

func (p *wgpuRenderPass) SetPipeline(pipeline RenderPipelineID) {
	p.encoder.backend.mu.Lock()
	defer p.encoder.backend.mu.Unlock()

	rp, ok := p.encoder.backend.pipelines.get(uint32(pipeline))
	if !ok {
		p.fail(fmt.Errorf("%w: pipeline %d", ErrInvalidHandle, pipeline))
		return
	}
	p.pass.SetPipeline(rp)
}

func (p *wgpuRenderPass) SetBindGroup(index uint32, group BindGroupID) {
	p.encoder.backend.mu.Lock()
	defer p.encoder.backend.mu.Unlock()

	bg, ok := p.encoder.backend.bindGroups.get(uint32(group))
	if !ok {
		p.fail(fmt.Errorf("%w: bind group %d for slot %d", ErrInvalidHandle, group, index))
		return
	}
	p.pass.SetBindGroup(index, bg, nil)
}

func (p *wgpuRenderPass) SetVertexBuffer(slot uint32, buffer BufferID) {
	p.encoder.backend.mu.Lock()
	defer p.encoder.backend.mu.Unlock()

	buf, ok := p.encoder.backend.buffers.get(uint32(buffer))
	if !ok {
		p.fail(fmt.Errorf("%w: vertex buffer %d for slot %d", ErrInvalidHandle, buffer, slot))
		return
	}
	p.pass.SetVertexBuffer(slot, buf, 0, wgpu.WholeSize)
}

func (p *wgpuRenderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if p.err != nil {
		return
	}
	p.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

// End closes the pass and releases the native encoder. The first recording or validation error is returned.
func (p *wgpuRenderPass) End() error {
	if err := p.pass.End(); err != nil {
		p.fail(fmt.Errorf("gpu: end render pass %q: %w", p.label, err))
	}
	p.pass.Release()
	p.encoder.open = nil
	return p.err
}

func (p *wgpuRenderPass) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

// requestError wraps a failed adapter or device request, leaving out the cause when the binding gave none.
func requestError(sentinel, err error) error {
	if err == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}

// nullTexture reports whether tex carries no native texture object.
func nullTexture(tex *wgpu.Texture) bool {
	if tex == nil {
		return true
	}
	ref := reflect.ValueOf(tex).Elem().FieldByName("ref")
	return ref.IsValid() && ref.IsZero()
}
