package pipeline

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-quad/engine/gpu"
	"github.com/Carmen-Shannon/oxy-quad/engine/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-quad/engine/model"
	"github.com/Carmen-Shannon/oxy-quad/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-quad/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	backend *gputest.Backend
	shader  shader.Shader
	texture bind_group_provider.BindGroupProvider
	camera  bind_group_provider.BindGroupProvider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := gputest.NewBackend()

	tex, err := backend.CreateTexture(&wgpu.TextureDescriptor{Label: "tex"})
	require.NoError(t, err)
	view, err := backend.CreateTextureView(tex, "view")
	require.NoError(t, err)
	sampler, err := backend.CreateSampler(&wgpu.SamplerDescriptor{Label: "sampler"})
	require.NoError(t, err)
	buf, err := backend.CreateBuffer(&gpu.BufferDescriptor{Label: "camera", Size: 64})
	require.NoError(t, err)

	texture := bind_group_provider.NewBindGroupProvider("texture",
		bind_group_provider.WithLayoutEntries(bind_group_provider.TextureLayoutEntries()...),
		bind_group_provider.WithTextureView(0, view),
		bind_group_provider.WithSampler(1, sampler),
	)
	require.NoError(t, texture.Init(backend))
	camera := bind_group_provider.NewBindGroupProvider("camera",
		bind_group_provider.WithLayoutEntries(bind_group_provider.UniformLayoutEntries(64)...),
		bind_group_provider.WithBuffer(0, buf),
	)
	require.NoError(t, camera.Init(backend))

	s, err := shader.NewQuadShader()
	require.NoError(t, err)

	return &fixture{backend: backend, shader: s, texture: texture, camera: camera}
}

func TestBuildQuadPipeline(t *testing.T) {
	f := newFixture(t)
	p := NewPipeline("quad",
		WithShader(f.shader),
		WithVertexLayouts(model.VertexBufferLayout()),
		WithBindGroups(f.texture, f.camera),
		WithColorFormat(wgpu.TextureFormatBGRA8UnormSrgb),
	)
	require.NoError(t, p.Build(f.backend))
	require.NotZero(t, p.RenderPipeline())

	desc := f.backend.Pipelines[p.RenderPipeline()]
	assert.Equal(t, p.Descriptor(), desc)
	assert.Equal(t, []gpu.BindGroupLayoutID{f.texture.BindGroupLayout(), f.camera.BindGroupLayout()}, desc.BindGroupLayouts)
	assert.Equal(t, "vs_main", desc.VertexEntryPoint)
	assert.Equal(t, "fs_main", desc.FragmentEntryPoint)
	assert.Equal(t, shader.QuadSource, f.backend.ShaderModules[desc.Module])

	require.Len(t, desc.VertexBuffers, 1)
	assert.Equal(t, uint64(model.VertexSize), desc.VertexBuffers[0].ArrayStride)

	require.Len(t, desc.Targets, 1)
	assert.Equal(t, wgpu.TextureFormatBGRA8UnormSrgb, desc.Targets[0].Format)
	assert.Equal(t, wgpu.ColorWriteMaskAll, desc.Targets[0].WriteMask)
	require.NotNil(t, desc.Targets[0].Blend)
	assert.Equal(t, wgpu.BlendStateReplace, *desc.Targets[0].Blend)

	assert.Equal(t, wgpu.PrimitiveTopologyTriangleList, desc.Primitive.Topology)
	assert.Equal(t, wgpu.FrontFaceCCW, desc.Primitive.FrontFace)
	assert.Equal(t, wgpu.CullModeNone, desc.Primitive.CullMode)

	assert.Equal(t, uint32(1), desc.Multisample.Count)
	assert.Equal(t, uint32(0xFFFFFFFF), desc.Multisample.Mask)
	assert.False(t, desc.Multisample.AlphaToCoverageEnabled)
	assert.Nil(t, desc.DepthStencil)

	assert.ErrorIs(t, p.Build(f.backend), ErrAlreadyBuilt)

	p.Release(f.backend)
	assert.Zero(t, p.RenderPipeline())
	assert.Empty(t, f.backend.Pipelines)
	assert.Empty(t, f.backend.ShaderModules)
}

func TestBuildRequiresColorFormat(t *testing.T) {
	f := newFixture(t)
	p := NewPipeline("quad", WithShader(f.shader), WithBindGroups(f.texture, f.camera))
	assert.ErrorIs(t, p.Build(f.backend), ErrNoColorFormat)
	assert.Empty(t, f.backend.ShaderModules)
}

func TestBuildShaderMismatch(t *testing.T) {
	f := newFixture(t)

	vertexOnly, err := shader.NewShader("vertex-only", `
@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(f32(i), 0.0, 0.0, 1.0);
}
`)
	require.NoError(t, err)

	cases := map[string][]PipelineBuilderOption{
		"no shader":          {WithBindGroups(f.texture, f.camera)},
		"missing fragment":   {WithShader(vertexOnly)},
		"wrong entry point":  {WithShader(f.shader), WithEntryPoints("main", "fs_main")},
		"swapped slot order": {WithShader(f.shader), WithBindGroups(f.camera, f.texture)},
		"extra slot":         {WithShader(f.shader), WithBindGroups(f.texture, f.camera, f.camera)},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			opts = append(opts, WithColorFormat(wgpu.TextureFormatBGRA8UnormSrgb))
			p := NewPipeline("quad", opts...)
			assert.ErrorIs(t, p.Build(f.backend), ErrShaderMismatch)
		})
	}
	assert.Empty(t, f.backend.ShaderModules)
}

func TestBuildReleasesModuleOnFailure(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("format mismatch")
	f.backend.FailPipeline = boom

	p := NewPipeline("quad",
		WithShader(f.shader),
		WithBindGroups(f.texture, f.camera),
		WithColorFormat(wgpu.TextureFormatRGBA8Unorm),
	)
	err := p.Build(f.backend)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, p.RenderPipeline())
	assert.Empty(t, f.backend.ShaderModules)
}

func TestBuildRequiresInitialisedBindGroups(t *testing.T) {
	f := newFixture(t)
	fresh := bind_group_provider.NewBindGroupProvider("camera",
		bind_group_provider.WithLayoutEntries(bind_group_provider.UniformLayoutEntries(64)...),
	)
	p := NewPipeline("quad",
		WithShader(f.shader),
		WithBindGroups(f.texture, fresh),
		WithColorFormat(wgpu.TextureFormatBGRA8UnormSrgb),
	)
	assert.Error(t, p.Build(f.backend))
}
