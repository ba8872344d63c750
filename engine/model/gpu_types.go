package model

import (
	"fmt"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-quad/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// Vertex is the GPU-aligned representation of a single quad vertex.
// Size: 32 bytes, tightly packed with no padding between attributes.
type Vertex struct {
	Position  [3]float32 // offset  0: position in model space (12 bytes)
	Color     [3]float32 // offset 12: per-vertex RGB color (12 bytes)
	TexCoords [2]float32 // offset 24: UV texture coordinate (8 bytes)
}

// VertexSize is the byte stride of one Vertex in a vertex buffer.
const VertexSize = 32

// vertexFormatSizes holds the byte size of each vertex format the quad layout uses.
var vertexFormatSizes = map[wgpu.VertexFormat]uint64{
	wgpu.VertexFormatFloat32x2: 8,
	wgpu.VertexFormatFloat32x3: 12,
}

// vertexFormats lists the attribute formats of Vertex in shader location order.
var vertexFormats = []wgpu.VertexFormat{
	wgpu.VertexFormatFloat32x3,
	wgpu.VertexFormatFloat32x3,
	wgpu.VertexFormatFloat32x2,
}

// Size returns the size of the Vertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (v *Vertex) Size() int {
	return int(unsafe.Sizeof(*v))
}

// Marshal serializes the Vertex into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload.
func (v *Vertex) Marshal() []byte {
	buf := make([]byte, VertexSize)
	v.marshalInto(buf)
	return buf
}

func (v *Vertex) marshalInto(buf []byte) {
	common.PutFloat32s(buf[0:12], v.Position[:]...)
	common.PutFloat32s(buf[12:24], v.Color[:]...)
	common.PutFloat32s(buf[24:32], v.TexCoords[:]...)
}

// MarshalVertices packs vertices back to back at VertexSize stride.
//
// Parameters:
//   - vertices: the vertices to pack
//
// Returns:
//   - []byte: the packed vertex data
func MarshalVertices(vertices []Vertex) []byte {
	buf := make([]byte, len(vertices)*VertexSize)
	for i := range vertices {
		vertices[i].marshalInto(buf[i*VertexSize:])
	}
	return buf
}

// UnmarshalVertices reads packed vertex data back using the attribute offsets of VertexBufferLayout.
//
// Parameters:
//   - data: packed vertex data, a whole multiple of VertexSize bytes
//
// Returns:
//   - []Vertex: the decoded vertices
//   - error: an error if data is not a whole number of vertices
func UnmarshalVertices(data []byte) ([]Vertex, error) {
	if len(data)%VertexSize != 0 {
		return nil, fmt.Errorf("model: %d bytes is not a multiple of the %d byte vertex stride", len(data), VertexSize)
	}

	layout := VertexBufferLayout()
	pos, col, uv := layout.Attributes[0].Offset, layout.Attributes[1].Offset, layout.Attributes[2].Offset

	out := make([]Vertex, len(data)/VertexSize)
	for i := range out {
		base := i * int(layout.ArrayStride)
		for c := range 3 {
			out[i].Position[c] = common.Float32At(data, base+int(pos)+c*4)
			out[i].Color[c] = common.Float32At(data, base+int(col)+c*4)
		}
		for c := range 2 {
			out[i].TexCoords[c] = common.Float32At(data, base+int(uv)+c*4)
		}
	}
	return out, nil
}

// VertexBufferLayout describes Vertex to the pipeline: per-vertex stepping, position at location 0, color at
// location 1 and texture coordinates at location 2. Each offset is the running sum of the preceding formats.
//
// Returns:
//   - wgpu.VertexBufferLayout: the vertex buffer layout
func VertexBufferLayout() wgpu.VertexBufferLayout {
	attributes := make([]wgpu.VertexAttribute, len(vertexFormats))
	var offset uint64
	for i, format := range vertexFormats {
		attributes[i] = wgpu.VertexAttribute{
			Format:         format,
			Offset:         offset,
			ShaderLocation: uint32(i),
		}
		offset += vertexFormatSizes[format]
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: offset,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attributes,
	}
}
