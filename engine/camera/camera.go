package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-quad/common"
)

type cameraImpl struct {
	mu *sync.Mutex

	eye    [3]float32
	target [3]float32
	up     [3]float32

	fovDegrees float32
	aspect     float32
	near       float32
	far        float32

	viewMatrix           [16]float32
	projectionMatrix     [16]float32
	viewProjectionMatrix [16]float32
}

// Camera defines a static perspective camera.
// The target is a point in world space (look-at), not a look direction. Only the aspect ratio may change after
// construction; everything else is fixed for the lifetime of the session that owns the camera.
type Camera interface {
	// Eye returns the camera position in world space.
	//
	// Returns:
	//   - [3]float32: the eye position
	Eye() [3]float32

	// Target returns the world-space point the camera looks at.
	//
	// Returns:
	//   - [3]float32: the target point
	Target() [3]float32

	// Up returns the camera's up vector.
	//
	// Returns:
	//   - [3]float32: the up vector
	Up() [3]float32

	// FovDegrees returns the vertical field of view in degrees.
	//
	// Returns:
	//   - float32: field of view in degrees
	FovDegrees() float32

	// Aspect returns the aspect ratio (width / height).
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Near returns the near clipping plane distance.
	//
	// Returns:
	//   - float32: near plane distance
	Near() float32

	// Far returns the far clipping plane distance.
	//
	// Returns:
	//   - float32: far plane distance
	Far() float32

	// ViewMatrix returns the current 4x4 view matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float32: the view matrix
	ViewMatrix() [16]float32

	// ProjectionMatrix returns the current perspective matrix as 16 floats (column-major).
	// The matrix targets the OpenGL depth range; ViewProjection applies the WebGPU depth correction.
	//
	// Returns:
	//   - [16]float32: the projection matrix
	ProjectionMatrix() [16]float32

	// ViewProjection returns OpenGLToWGPU * Projection * View as 16 floats (column-major).
	// Points on the near plane map to depth 0 and points on the far plane to depth 1.
	//
	// Returns:
	//   - [16]float32: the depth-corrected view-projection matrix
	ViewProjection() [16]float32

	// SetAspect sets the aspect ratio (width / height) and recomputes matrices.
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera. Without options the camera sits at (0, 2, 2) looking at the origin with +Y up,
// a 45 degree vertical field of view, a square aspect ratio and clip planes at 0.1 and 100.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:         &sync.Mutex{},
		eye:        [3]float32{0, 2, 2},
		target:     [3]float32{0, 0, 0},
		up:         [3]float32{0, 1, 0},
		fovDegrees: 45,
		aspect:     1,
		near:       0.1,
		far:        100,
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Eye() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eye
}

func (c *cameraImpl) Target() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *cameraImpl) Up() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

func (c *cameraImpl) FovDegrees() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fovDegrees
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) ViewMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjection() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.updateMatrices()
}

// updateMatrices recalculates the view, projection and corrected view-projection matrices.
// Caller must hold the mutex, or be the constructor.
func (c *cameraImpl) updateMatrices() {
	common.LookAt(c.viewMatrix[:],
		c.eye[0], c.eye[1], c.eye[2],
		c.target[0], c.target[1], c.target[2],
		c.up[0], c.up[1], c.up[2],
	)

	common.PerspectiveGL(c.projectionMatrix[:],
		common.DegToRad(c.fovDegrees), c.aspect, c.near, c.far,
	)

	var projView [16]float32
	common.Mul4(projView[:], c.projectionMatrix[:], c.viewMatrix[:])
	common.Mul4(c.viewProjectionMatrix[:], common.OpenGLToWGPU[:], projView[:])
}
