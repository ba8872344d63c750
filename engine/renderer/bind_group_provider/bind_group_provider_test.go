package bind_group_provider

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-quad/engine/gpu"
	"github.com/Carmen-Shannon/oxy-quad/engine/gpu/gputest"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitUniformProvider(t *testing.T) {
	backend := gputest.NewBackend()
	buf, err := backend.CreateBuffer(&gpu.BufferDescriptor{Label: "camera", Size: 64, Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst})
	require.NoError(t, err)

	p := NewBindGroupProvider("camera",
		WithLayoutEntries(UniformLayoutEntries(64)...),
		WithBuffer(0, buf),
	)
	require.NoError(t, p.Init(backend))
	require.NotZero(t, p.BindGroup())
	require.NotZero(t, p.BindGroupLayout())

	desc := backend.BindGroups[p.BindGroup()]
	assert.Equal(t, p.BindGroupLayout(), desc.Layout)
	require.Len(t, desc.Entries, 1)
	assert.Equal(t, buf, desc.Entries[0].Buffer)

	layout := backend.BindGroupLayouts[p.BindGroupLayout()]
	assert.Equal(t, wgpu.ShaderStageVertex, layout.Entries[0].Visibility)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, layout.Entries[0].Buffer.Type)

	assert.Error(t, p.Init(backend))
}

func TestInitTextureProvider(t *testing.T) {
	backend := gputest.NewBackend()
	tex, _ := backend.CreateTexture(&wgpu.TextureDescriptor{Label: "t"})
	view, _ := backend.CreateTextureView(tex, "v")
	sampler, _ := backend.CreateSampler(&wgpu.SamplerDescriptor{Label: "s"})

	p := NewBindGroupProvider("texture",
		WithLayoutEntries(TextureLayoutEntries()...),
		WithTextureView(0, view),
		WithSampler(1, sampler),
	)
	require.NoError(t, p.Init(backend))

	desc := backend.BindGroups[p.BindGroup()]
	require.Len(t, desc.Entries, 2)
	assert.Equal(t, gpu.BindGroupEntry{Binding: 0, TextureView: view}, desc.Entries[0])
	assert.Equal(t, gpu.BindGroupEntry{Binding: 1, Sampler: sampler}, desc.Entries[1])

	p.Release(backend)
	assert.Zero(t, p.BindGroup())
	assert.Contains(t, backend.TextureViews, view)
	assert.Contains(t, backend.Samplers, sampler)
}

func TestInitMissingResource(t *testing.T) {
	backend := gputest.NewBackend()
	p := NewBindGroupProvider("texture", WithLayoutEntries(TextureLayoutEntries()...))

	err := p.Init(backend)
	require.Error(t, err)
	assert.Empty(t, backend.BindGroupLayouts)
}

func TestWriteBuffers(t *testing.T) {
	backend := gputest.NewBackend()
	buf, _ := backend.CreateBuffer(&gpu.BufferDescriptor{Size: 8})
	p := NewBindGroupProvider("uniform", WithLayoutEntries(UniformLayoutEntries(0)...), WithBuffer(0, buf))

	require.NoError(t, WriteBuffers(backend, BufferWrite{Provider: p, Binding: 0, Offset: 4, Data: []byte{1, 2, 3, 4}}))
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 2, 3, 4}, backend.Buffers[buf])

	assert.Error(t, WriteBuffers(backend, BufferWrite{Provider: p, Binding: 3, Data: []byte{1}}))

	p.Release(backend)
	assert.NotContains(t, backend.Buffers, buf)
}
