package pipeline

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-quad/engine/gpu"
	"github.com/Carmen-Shannon/oxy-quad/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-quad/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// ErrShaderMismatch is returned when the shader lacks an entry point or binding the pipeline requires.
	ErrShaderMismatch = errors.New("pipeline: shader does not match pipeline layout")
	// ErrNoColorFormat is returned when Build is called without a color target format.
	ErrNoColorFormat = errors.New("pipeline: no color target format")
	// ErrAlreadyBuilt is returned when Build is called twice.
	ErrAlreadyBuilt = errors.New("pipeline: already built")
)

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	// pipelineKey is the unique identifier for this pipeline, used as its label
	pipelineKey string

	shader                               shader.Shader
	vertexEntryPoint, fragmentEntryPoint string
	vertexLayouts                        []wgpu.VertexBufferLayout
	// bindGroups are in slot order; slot i uses bindGroups[i].BindGroupLayout()
	bindGroups  []bind_group_provider.BindGroupProvider
	colorFormat wgpu.TextureFormat

	cullMode    wgpu.CullMode
	topology    wgpu.PrimitiveTopology
	frontFace   wgpu.FrontFace
	writeMask   wgpu.ColorWriteMask
	blendState  *wgpu.BlendState
	multisample wgpu.MultisampleState

	// populated by Build
	module         gpu.ShaderModuleID
	renderPipeline gpu.RenderPipelineID
	descriptor     gpu.RenderPipelineDescriptor
}

// Pipeline defines an immutable render pipeline: one vertex and one fragment entry point in a single WGSL module,
// fixed vertex layouts, bind group layouts in slot order and a single color target.
// Configuration is fixed by the builder options; Build compiles it exactly once.
type Pipeline interface {
	// PipelineKey returns the unique key associated with this pipeline.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Shader returns the shader the pipeline compiles.
	//
	// Returns:
	//   - shader.Shader: the shader, or nil if none was set
	Shader() shader.Shader

	// VertexLayouts returns the vertex buffer layouts in buffer slot order.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: the vertex buffer layouts
	VertexLayouts() []wgpu.VertexBufferLayout

	// BindGroupProviders returns the bind group providers in slot order.
	//
	// Returns:
	//   - []bind_group_provider.BindGroupProvider: the providers
	BindGroupProviders() []bind_group_provider.BindGroupProvider

	// ColorFormat returns the format of the single color target.
	//
	// Returns:
	//   - wgpu.TextureFormat: the color target format
	ColorFormat() wgpu.TextureFormat

	// CullMode returns the cull mode configured for this pipeline.
	//
	// Returns:
	//   - wgpu.CullMode: the cull mode for this pipeline
	CullMode() wgpu.CullMode

	// Topology returns the primitive topology configured for this pipeline.
	//
	// Returns:
	//   - wgpu.PrimitiveTopology: the primitive topology for this pipeline
	Topology() wgpu.PrimitiveTopology

	// FrontFace returns the front face winding order configured for this pipeline.
	//
	// Returns:
	//   - wgpu.FrontFace: the front face winding order for this pipeline
	FrontFace() wgpu.FrontFace

	// WriteMask returns the color write mask configured for this pipeline.
	//
	// Returns:
	//   - wgpu.ColorWriteMask: the color write mask for this pipeline
	WriteMask() wgpu.ColorWriteMask

	// BlendState returns the blend state configured for this pipeline.
	//
	// Returns:
	//   - *wgpu.BlendState: the blend state for this pipeline
	BlendState() *wgpu.BlendState

	// Multisample returns the multisample state configured for this pipeline.
	//
	// Returns:
	//   - wgpu.MultisampleState: the multisample state
	Multisample() wgpu.MultisampleState

	// Build validates the shader against the pipeline layout, then creates the shader module and the render pipeline.
	// Every bind group provider must already be initialised.
	//
	// Parameters:
	//   - device: the device to compile on
	//
	// Returns:
	//   - error: ErrShaderMismatch, ErrNoColorFormat, ErrAlreadyBuilt, or a wrapped device error
	Build(device gpu.Device) error

	// RenderPipeline returns the compiled pipeline, or zero before Build.
	//
	// Returns:
	//   - gpu.RenderPipelineID: the render pipeline handle
	RenderPipeline() gpu.RenderPipelineID

	// Descriptor returns the descriptor the pipeline was compiled from. It is the zero value before Build.
	//
	// Returns:
	//   - gpu.RenderPipelineDescriptor: the compiled descriptor
	Descriptor() gpu.RenderPipelineDescriptor

	// Release frees the render pipeline and its shader module.
	//
	// Parameters:
	//   - device: the device the pipeline was built on
	Release(device gpu.Device)
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new Pipeline. Defaults: entry points vs_main and fs_main, replace
// blending with every channel written, triangle list with counter-clockwise front faces and no culling, and a
// single sample with alpha-to-coverage off.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new unbuilt Pipeline
func NewPipeline(pipelineKey string, opts ...PipelineBuilderOption) Pipeline {
	blend := wgpu.BlendStateReplace
	p := &pipeline{
		pipelineKey:        pipelineKey,
		vertexEntryPoint:   "vs_main",
		fragmentEntryPoint: "fs_main",
		colorFormat:        wgpu.TextureFormatUndefined,
		cullMode:           wgpu.CullModeNone,
		topology:           wgpu.PrimitiveTopologyTriangleList,
		frontFace:          wgpu.FrontFaceCCW,
		writeMask:          wgpu.ColorWriteMaskAll,
		blendState:         &blend,
		multisample: wgpu.MultisampleState{
			Count:                  1,
			Mask:                   0xFFFFFFFF,
			AlphaToCoverageEnabled: false,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Shader() shader.Shader {
	return p.shader
}

func (p *pipeline) VertexLayouts() []wgpu.VertexBufferLayout {
	return p.vertexLayouts
}

func (p *pipeline) BindGroupProviders() []bind_group_provider.BindGroupProvider {
	return p.bindGroups
}

func (p *pipeline) ColorFormat() wgpu.TextureFormat {
	return p.colorFormat
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) FrontFace() wgpu.FrontFace {
	return p.frontFace
}

func (p *pipeline) WriteMask() wgpu.ColorWriteMask {
	return p.writeMask
}

func (p *pipeline) BlendState() *wgpu.BlendState {
	return p.blendState
}

func (p *pipeline) Multisample() wgpu.MultisampleState {
	return p.multisample
}

func (p *pipeline) RenderPipeline() gpu.RenderPipelineID {
	return p.renderPipeline
}

func (p *pipeline) Descriptor() gpu.RenderPipelineDescriptor {
	return p.descriptor
}

func (p *pipeline) Build(device gpu.Device) error {
	if p.renderPipeline != 0 {
		return fmt.Errorf("%s: %w", p.pipelineKey, ErrAlreadyBuilt)
	}
	if p.colorFormat == wgpu.TextureFormatUndefined {
		return fmt.Errorf("%s: %w", p.pipelineKey, ErrNoColorFormat)
	}
	if err := p.validateShader(); err != nil {
		return err
	}

	layouts := make([]gpu.BindGroupLayoutID, len(p.bindGroups))
	for slot, provider := range p.bindGroups {
		layouts[slot] = provider.BindGroupLayout()
		if layouts[slot] == 0 {
			return fmt.Errorf("%s: bind group %s for slot %d is not initialised", p.pipelineKey, provider.Label(), slot)
		}
	}

	module, err := device.CreateShaderModule(p.shader.Key(), p.shader.Source())
	if err != nil {
		return fmt.Errorf("%s: create shader module: %w", p.pipelineKey, err)
	}

	desc := gpu.RenderPipelineDescriptor{
		Label:              p.pipelineKey,
		BindGroupLayouts:   layouts,
		Module:             module,
		VertexEntryPoint:   p.vertexEntryPoint,
		FragmentEntryPoint: p.fragmentEntryPoint,
		VertexBuffers:      p.vertexLayouts,
		Targets: []wgpu.ColorTargetState{
			{
				Format:    p.colorFormat,
				Blend:     p.blendState,
				WriteMask: p.writeMask,
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.topology,
			FrontFace: p.frontFace,
			CullMode:  p.cullMode,
		},
		Multisample:  p.multisample,
		DepthStencil: nil,
	}

	rp, err := device.CreateRenderPipeline(&desc)
	if err != nil {
		device.Release(module)
		return fmt.Errorf("%s: create render pipeline: %w", p.pipelineKey, err)
	}

	p.module = module
	p.renderPipeline = rp
	p.descriptor = desc
	return nil
}

func (p *pipeline) Release(device gpu.Device) {
	if p.renderPipeline != 0 {
		device.Release(p.renderPipeline)
		p.renderPipeline = 0
	}
	if p.module != 0 {
		device.Release(p.module)
		p.module = 0
	}
}

// validateShader checks that the shader declares both entry points and a resource for every binding of every
// bind group layout, at the matching group index.
func (p *pipeline) validateShader() error {
	if p.shader == nil {
		return fmt.Errorf("%s: no shader: %w", p.pipelineKey, ErrShaderMismatch)
	}
	if !p.shader.HasEntryPoint(p.vertexEntryPoint, shader.ShaderTypeVertex) {
		return fmt.Errorf("%s: missing vertex entry point %q: %w", p.pipelineKey, p.vertexEntryPoint, ErrShaderMismatch)
	}
	if !p.shader.HasEntryPoint(p.fragmentEntryPoint, shader.ShaderTypeFragment) {
		return fmt.Errorf("%s: missing fragment entry point %q: %w", p.pipelineKey, p.fragmentEntryPoint, ErrShaderMismatch)
	}
	for slot, provider := range p.bindGroups {
		for _, entry := range provider.LayoutDescriptor().Entries {
			if !p.shader.HasBinding(uint32(slot), entry.Binding) {
				return fmt.Errorf("%s: shader has no resource at @group(%d) @binding(%d): %w", p.pipelineKey, slot, entry.Binding, ErrShaderMismatch)
			}
		}
	}
	return nil
}
