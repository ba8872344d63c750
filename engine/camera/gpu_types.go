package camera

import (
	"unsafe"

	"github.com/Carmen-Shannon/oxy-quad/common"
)

// CameraUniform is the host mirror of the shader's camera uniform: a single mat4x4<f32> in column-major order.
// Size: 64 bytes, no padding.
type CameraUniform struct {
	ViewProj [16]float32
}

// NewCameraUniform returns a uniform holding the identity matrix.
//
// Returns:
//   - CameraUniform: the identity uniform
func NewCameraUniform() CameraUniform {
	return CameraUniform{ViewProj: common.IdentityMatrix()}
}

// Update copies the camera's depth-corrected view-projection matrix into the uniform.
// This is the only way the uniform changes after construction.
//
// Parameters:
//   - c: the camera to read from
func (u *CameraUniform) Update(c Camera) {
	u.ViewProj = c.ViewProjection()
}

// Size returns the size of the CameraUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (u *CameraUniform) Size() int {
	return int(unsafe.Sizeof(*u))
}

// Marshal serializes the uniform into a little-endian byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (u *CameraUniform) Marshal() []byte {
	buf := make([]byte, u.Size())
	common.PutFloat32s(buf, u.ViewProj[:]...)
	return buf
}
