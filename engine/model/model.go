package model

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-quad/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// QuadVertices is the fixed textured quad: two counter-clockwise triangles spanning [-0.5, 0.5] in X and Y.
var QuadVertices = []Vertex{
	{Position: [3]float32{-0.5, 0.5, 0}, Color: [3]float32{1, 0, 0}, TexCoords: [2]float32{0, 1}},
	{Position: [3]float32{-0.5, -0.5, 0}, Color: [3]float32{0, 1, 0}, TexCoords: [2]float32{0, 0}},
	{Position: [3]float32{0.5, -0.5, 0}, Color: [3]float32{0, 0, 1}, TexCoords: [2]float32{1, 0}},

	{Position: [3]float32{-0.5, 0.5, 0}, Color: [3]float32{1, 0, 0}, TexCoords: [2]float32{0, 1}},
	{Position: [3]float32{0.5, -0.5, 0}, Color: [3]float32{0, 0, 1}, TexCoords: [2]float32{1, 0}},
	{Position: [3]float32{0.5, 0.5, 0}, Color: [3]float32{0, 0, 1}, TexCoords: [2]float32{1, 1}},
}

// model is the implementation of the Model interface.
type model struct {
	name         string
	vertices     []Vertex
	vertexData   []byte
	vertexBuffer gpu.BufferID
}

// Model is immutable vertex data plus the GPU vertex buffer it is uploaded into.
// The data is packed once at construction and uploaded once; it never changes afterwards.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Vertices returns a copy of the host-side vertices.
	//
	// Returns:
	//   - []Vertex: the vertices in draw order
	Vertices() []Vertex

	// VertexCount returns the number of vertices to draw.
	//
	// Returns:
	//   - uint32: the vertex count
	VertexCount() uint32

	// VertexData returns the packed vertex bytes.
	//
	// Returns:
	//   - []byte: the vertex data at VertexSize stride
	VertexData() []byte

	// VertexBuffer returns the uploaded vertex buffer, or zero before Upload.
	//
	// Returns:
	//   - gpu.BufferID: the vertex buffer handle
	VertexBuffer() gpu.BufferID

	// Upload creates the vertex buffer initialised with the packed vertex data.
	//
	// Parameters:
	//   - device: the device to allocate the buffer on
	//
	// Returns:
	//   - error: an error if the model was already uploaded or buffer creation fails
	Upload(device gpu.Device) error

	// Release frees the vertex buffer.
	//
	// Parameters:
	//   - device: the device the buffer was created on
	Release(device gpu.Device)
}

var _ Model = &model{}

// NewModel packs vertices into a new Model.
//
// Parameters:
//   - name: the model identifier, used as the buffer label
//   - vertices: the vertices in draw order
//
// Returns:
//   - Model: the new model
func NewModel(name string, vertices []Vertex) Model {
	v := make([]Vertex, len(vertices))
	copy(v, vertices)
	return &model{
		name:       name,
		vertices:   v,
		vertexData: MarshalVertices(v),
	}
}

// NewQuad returns a Model holding QuadVertices.
//
// Returns:
//   - Model: the quad model
func NewQuad() Model {
	return NewModel("quad", QuadVertices)
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Vertices() []Vertex {
	out := make([]Vertex, len(m.vertices))
	copy(out, m.vertices)
	return out
}

func (m *model) VertexCount() uint32 {
	return uint32(len(m.vertices))
}

func (m *model) VertexData() []byte {
	return m.vertexData
}

func (m *model) VertexBuffer() gpu.BufferID {
	return m.vertexBuffer
}

func (m *model) Upload(device gpu.Device) error {
	if m.vertexBuffer != 0 {
		return fmt.Errorf("model %s: already uploaded", m.name)
	}
	buf, err := device.CreateBuffer(&gpu.BufferDescriptor{
		Label:    m.name + " vertex buffer",
		Usage:    wgpu.BufferUsageVertex,
		Contents: m.vertexData,
	})
	if err != nil {
		return fmt.Errorf("model %s: create vertex buffer: %w", m.name, err)
	}
	m.vertexBuffer = buf
	return nil
}

func (m *model) Release(device gpu.Device) {
	if m.vertexBuffer != 0 {
		device.Release(m.vertexBuffer)
		m.vertexBuffer = 0
	}
}
