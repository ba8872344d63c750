package camera

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-quad/common"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pointOnAxis returns the world point at distance d in front of the camera along its view direction.
func pointOnAxis(c Camera, d float32) [4]float32 {
	eye, target := c.Eye(), c.Target()
	dir := [3]float32{target[0] - eye[0], target[1] - eye[1], target[2] - eye[2]}
	l := math32.Sqrt(dir[0]*dir[0] + dir[1]*dir[1] + dir[2]*dir[2])
	return [4]float32{eye[0] + dir[0]/l*d, eye[1] + dir[1]/l*d, eye[2] + dir[2]/l*d, 1}
}

func ndcDepth(m [16]float32, p [4]float32) float32 {
	clip := common.MulVec4(m[:], p)
	return clip[2] / clip[3]
}

func TestViewProjectionDepthRange(t *testing.T) {
	cases := []struct {
		name    string
		options []CameraBuilderOption
	}{
		{name: "defaults"},
		{name: "wide", options: []CameraBuilderOption{WithAspect(450.0 / 400.0), WithFovDegrees(90)}},
		{name: "offset", options: []CameraBuilderOption{
			WithEye(3, -1, 7), WithTarget(1, 1, 1), WithNear(0.5), WithFar(20),
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCamera(tc.options...)
			vp := c.ViewProjection()

			assert.InDelta(t, 0, ndcDepth(vp, pointOnAxis(c, c.Near())), 1e-4)
			assert.InDelta(t, 1, ndcDepth(vp, pointOnAxis(c, c.Far())), 1e-3)

			mid := ndcDepth(vp, pointOnAxis(c, (c.Near()+c.Far())/2))
			assert.Greater(t, mid, float32(0))
			assert.Less(t, mid, float32(1))
		})
	}
}

func TestUncorrectedProjectionUsesOpenGLDepth(t *testing.T) {
	c := NewCamera()
	var pv [16]float32
	proj, view := c.ProjectionMatrix(), c.ViewMatrix()
	common.Mul4(pv[:], proj[:], view[:])

	assert.InDelta(t, -1, ndcDepth(pv, pointOnAxis(c, c.Near())), 1e-4)
}

func TestCameraUniformStartsAsIdentity(t *testing.T) {
	u := NewCameraUniform()
	assert.Equal(t, common.IdentityMatrix(), u.ViewProj)
}

func TestCameraUniformUpdate(t *testing.T) {
	c := NewCamera()
	u := NewCameraUniform()
	u.Update(c)
	assert.Equal(t, c.ViewProjection(), u.ViewProj)
	assert.NotEqual(t, common.IdentityMatrix(), u.ViewProj)
}

func TestCameraUniformMarshal(t *testing.T) {
	u := NewCameraUniform()
	u.Update(NewCamera())

	buf := u.Marshal()
	require.Len(t, buf, 64)
	for i, v := range u.ViewProj {
		assert.Equal(t, v, common.Float32At(buf, i*4), "element %d", i)
	}
}

func TestSetAspectMatchesDirectConstruction(t *testing.T) {
	aspect := float32(450) / float32(400)

	c := NewCamera()
	c.SetAspect(aspect)
	direct := NewCamera(WithAspect(aspect))

	got, want := c.ViewProjection(), direct.ViewProjection()
	assert.InDeltaSlice(t, want[:], got[:], 1e-6)

	proj := c.ProjectionMatrix()
	f := 1 / math32.Tan(common.DegToRad(c.FovDegrees())/2)
	assert.InDelta(t, f/aspect, proj[0], 1e-6)
	assert.InDelta(t, f, proj[5], 1e-6)
}
