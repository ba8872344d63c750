package model

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-quad/engine/gpu/gputest"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVertexBufferLayout(t *testing.T) {
	layout := VertexBufferLayout()

	assert.Equal(t, uint64(VertexSize), layout.ArrayStride)
	assert.Equal(t, wgpu.VertexStepModeVertex, layout.StepMode)
	require.Len(t, layout.Attributes, 3)

	want := []wgpu.VertexAttribute{
		{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
		{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
		{Format: wgpu.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2},
	}
	assert.Equal(t, want, layout.Attributes)

	v := Vertex{}
	assert.Equal(t, VertexSize, v.Size())
}

func TestQuadVerticesRoundTripBitExact(t *testing.T) {
	data := MarshalVertices(QuadVertices)
	require.Len(t, data, 6*VertexSize)

	got, err := UnmarshalVertices(data)
	require.NoError(t, err)
	require.Len(t, got, len(QuadVertices))

	bits := func(v Vertex) []uint32 {
		var out []uint32
		for _, f := range append(append(v.Position[:], v.Color[:]...), v.TexCoords[:]...) {
			out = append(out, math.Float32bits(f))
		}
		return out
	}
	for i := range QuadVertices {
		assert.Equal(t, bits(QuadVertices[i]), bits(got[i]), "vertex %d", i)
	}
}

func TestVertexMarshalMatchesPackedSlice(t *testing.T) {
	data := MarshalVertices(QuadVertices)
	for i := range QuadVertices {
		assert.Equal(t, QuadVertices[i].Marshal(), data[i*VertexSize:(i+1)*VertexSize])
	}
}

func TestUnmarshalVerticesRejectsPartialVertex(t *testing.T) {
	_, err := UnmarshalVertices(make([]byte, VertexSize+4))
	assert.Error(t, err)
}

func TestModelUpload(t *testing.T) {
	backend := gputest.NewBackend()
	m := NewQuad()

	assert.Equal(t, uint32(6), m.VertexCount())
	assert.Zero(t, m.VertexBuffer())

	require.NoError(t, m.Upload(backend))
	buf := m.VertexBuffer()
	require.NotZero(t, buf)
	assert.Equal(t, m.VertexData(), backend.Buffers[buf])
	assert.Equal(t, wgpu.BufferUsageVertex, backend.BufferDescs[buf].Usage)

	assert.Error(t, m.Upload(backend))

	m.Release(backend)
	assert.Zero(t, m.VertexBuffer())
	assert.NotContains(t, backend.Buffers, buf)
}
