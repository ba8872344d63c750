// Package gpu describes the device, queue, and surface operations the renderer needs, expressed over lightweight
// resource handles. The Backend owns every GPU object; callers only ever hold handle values, so nothing derived from
// the device can outlive it implicitly.
package gpu

import (
	"errors"

	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// ErrNoAdapter is returned when no adapter compatible with the surface is available.
	ErrNoAdapter = errors.New("gpu: no compatible adapter")
	// ErrDeviceRequest is returned when the adapter refuses to create a logical device.
	ErrDeviceRequest = errors.New("gpu: device request refused")
	// ErrNoSurfaceFormat is returned when the surface reports no supported texture format.
	ErrNoSurfaceFormat = errors.New("gpu: surface reports no supported format")
	// ErrSurfaceTimeout is returned when the presentation engine did not hand out an image in time.
	ErrSurfaceTimeout = errors.New("gpu: surface texture acquisition timed out")
	// ErrSurfaceOutdated is returned when the surface no longer matches its configuration and must be reconfigured.
	ErrSurfaceOutdated = errors.New("gpu: surface configuration is outdated")
	// ErrSurfaceLost is returned when the surface can no longer be presented to.
	ErrSurfaceLost = errors.New("gpu: surface lost")
	// ErrInvalidHandle is returned when a handle does not refer to a live resource.
	ErrInvalidHandle = errors.New("gpu: invalid resource handle")
)

// Resource handles. The zero value of every handle is invalid.
type (
	BufferID          uint32
	TextureID         uint32
	TextureViewID     uint32
	SamplerID         uint32
	BindGroupLayoutID uint32
	BindGroupID       uint32
	ShaderModuleID    uint32
	RenderPipelineID  uint32
	CommandBufferID   uint32
)

// BufferDescriptor describes a buffer to create. When Contents is non-empty the buffer is created with
// that data and Size is ignored.
type BufferDescriptor struct {
	Label    string
	Size     uint64
	Usage    wgpu.BufferUsage
	Contents []byte
}

// ImageCopyTexture names the destination of a texture upload.
type ImageCopyTexture struct {
	Texture  TextureID
	MipLevel uint32
	Origin   wgpu.Origin3D
	Aspect   wgpu.TextureAspect
}

// BindGroupEntry binds exactly one of Buffer, TextureView or Sampler to Binding.
type BindGroupEntry struct {
	Binding     uint32
	Buffer      BufferID
	Offset      uint64
	Size        uint64
	TextureView TextureViewID
	Sampler     SamplerID
}

// BindGroupDescriptor describes a bind group against an already created layout.
type BindGroupDescriptor struct {
	Label   string
	Layout  BindGroupLayoutID
	Entries []BindGroupEntry
}

// RenderPipelineDescriptor describes a render pipeline. BindGroupLayouts are in slot order.
type RenderPipelineDescriptor struct {
	Label              string
	BindGroupLayouts   []BindGroupLayoutID
	Module             ShaderModuleID
	VertexEntryPoint   string
	FragmentEntryPoint string
	VertexBuffers      []wgpu.VertexBufferLayout
	Targets            []wgpu.ColorTargetState
	Primitive          wgpu.PrimitiveState
	Multisample        wgpu.MultisampleState
	DepthStencil       *wgpu.DepthStencilState
}

// RenderPassColorAttachment describes a color target for a render pass.
type RenderPassColorAttachment struct {
	View       TextureViewID
	LoadOp     wgpu.LoadOp
	StoreOp    wgpu.StoreOp
	ClearValue wgpu.Color
}

// RenderPassDescriptor describes a render pass.
type RenderPassDescriptor struct {
	Label            string
	ColorAttachments []RenderPassColorAttachment
}

// SurfaceConfiguration is the swap surface state applied by Configure.
type SurfaceConfiguration struct {
	Usage       wgpu.TextureUsage
	Format      wgpu.TextureFormat
	Width       uint32
	Height      uint32
	PresentMode wgpu.PresentMode
	AlphaMode   wgpu.CompositeAlphaMode
}

// SurfaceCapabilities lists what the surface supports for the selected adapter.
type SurfaceCapabilities struct {
	Formats      []wgpu.TextureFormat
	PresentModes []wgpu.PresentMode
	AlphaModes   []wgpu.CompositeAlphaMode
}

// RenderPassEncoder records draw state for a single render pass.
type RenderPassEncoder interface {
	SetPipeline(pipeline RenderPipelineID)
	SetBindGroup(index uint32, group BindGroupID)
	SetVertexBuffer(slot uint32, buffer BufferID)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)

	// End closes the pass. The owning encoder cannot be finished while a pass is open.
	//
	// Returns:
	//   - error: an error if the pass recorded invalid state
	End() error
}

// CommandEncoder records GPU commands into a command buffer.
type CommandEncoder interface {
	// BeginRenderPass opens a render pass. Only one pass may be open at a time.
	//
	// Parameters:
	//   - desc: the render pass descriptor
	//
	// Returns:
	//   - RenderPassEncoder: the encoder for the opened pass
	//   - error: an error if a pass is already open or a handle is invalid
	BeginRenderPass(desc *RenderPassDescriptor) (RenderPassEncoder, error)

	// Finish ends recording and yields an immutable command buffer ready for submission.
	//
	// Returns:
	//   - CommandBufferID: the finished command buffer
	//   - error: an error if a pass is still open or recording failed
	Finish() (CommandBufferID, error)

	// Release frees the encoder. Safe to call after Finish.
	Release()
}

// Device creates GPU resources.
type Device interface {
	CreateBuffer(desc *BufferDescriptor) (BufferID, error)
	CreateTexture(desc *wgpu.TextureDescriptor) (TextureID, error)
	CreateTextureView(texture TextureID, label string) (TextureViewID, error)
	CreateSampler(desc *wgpu.SamplerDescriptor) (SamplerID, error)
	CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (BindGroupLayoutID, error)
	CreateBindGroup(desc *BindGroupDescriptor) (BindGroupID, error)
	CreateShaderModule(label, wgslSource string) (ShaderModuleID, error)
	CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipelineID, error)
	CreateCommandEncoder(label string) (CommandEncoder, error)

	// Release frees a single resource of any handle type. Unknown handles are ignored.
	//
	// Parameters:
	//   - handle: any of the resource handle types declared in this package
	Release(handle any)
}

// Queue uploads data and submits recorded work. All submissions go through a single queue.
type Queue interface {
	WriteBuffer(buffer BufferID, offset uint64, data []byte) error
	WriteTexture(dst *ImageCopyTexture, data []byte, layout *wgpu.TextureDataLayout, size *wgpu.Extent3D) error

	// Submit hands finished command buffers to the GPU and releases them.
	//
	// Parameters:
	//   - buffers: the command buffers to submit, in order
	//
	// Returns:
	//   - error: an error if a command buffer handle is invalid
	Submit(buffers ...CommandBufferID) error
}

// Surface is the presentable image chain of a window.
type Surface interface {
	Capabilities() SurfaceCapabilities

	// Configure applies cfg to the surface. Width and height must both be positive.
	//
	// Parameters:
	//   - cfg: the surface configuration to apply
	//
	// Returns:
	//   - error: an error if the configuration is invalid
	Configure(cfg *SurfaceConfiguration) error

	// AcquireTexture blocks until the next presentable image is available and returns a handle to it.
	// The texture is owned by the surface and is invalidated by Present.
	//
	// Returns:
	//   - TextureID: the acquired surface texture
	//   - error: ErrSurfaceTimeout, ErrSurfaceOutdated or ErrSurfaceLost (possibly wrapped)
	AcquireTexture() (TextureID, error)

	// Present queues the acquired image for display.
	//
	// Returns:
	//   - error: an error if no image is currently acquired
	Present() error
}

// Backend bundles the device, queue and surface of one adapter.
type Backend interface {
	Device
	Queue
	Surface

	// Destroy releases every resource still owned by the backend, then the device and surface.
	Destroy()
}
