package renderer

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/Carmen-Shannon/oxy-quad/common"
	"github.com/Carmen-Shannon/oxy-quad/engine/camera"
	"github.com/Carmen-Shannon/oxy-quad/engine/gpu"
	"github.com/Carmen-Shannon/oxy-quad/engine/gpu/gputest"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for y := range 2 {
		for x := range 4 {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 60), G: uint8(y * 120), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestSession(t *testing.T, backend *gputest.Backend, options ...RenderSessionBuilderOption) RenderSession {
	t.Helper()
	options = append([]RenderSessionBuilderOption{WithTextureBytes(testPNG(t), "happy tree")}, options...)
	s, err := NewRenderSession(backend, 450, 400, options...)
	require.NoError(t, err)
	t.Cleanup(s.Release)
	return s
}

func cameraBuffer(t *testing.T, backend *gputest.Backend) []byte {
	t.Helper()
	for id, desc := range backend.BufferDescs {
		if desc.Label == "camera buffer" {
			return backend.Buffers[id]
		}
	}
	t.Fatal("camera buffer not created")
	return nil
}

func TestNewRenderSessionConfiguresSurface(t *testing.T) {
	backend := gputest.NewBackend()
	s := newTestSession(t, backend)

	assert.Equal(t, StateReady, s.State())
	cfg := backend.LastConfiguration()
	assert.Equal(t, wgpu.TextureFormatBGRA8UnormSrgb, cfg.Format)
	assert.Equal(t, wgpu.TextureUsageRenderAttachment, cfg.Usage)
	assert.Equal(t, wgpu.PresentModeFifo, cfg.PresentMode)
	assert.Equal(t, wgpu.CompositeAlphaModeOpaque, cfg.AlphaMode)
	assert.Equal(t, uint32(450), cfg.Width)
	assert.Equal(t, uint32(400), cfg.Height)

	desc := s.Pipeline().Descriptor()
	require.Len(t, desc.Targets, 1)
	assert.Equal(t, cfg.Format, desc.Targets[0].Format)
	assert.Len(t, desc.BindGroupLayouts, 2)
}

func TestNewRenderSessionPresentModeFallback(t *testing.T) {
	backend := gputest.NewBackend()
	newTestSession(t, backend, WithPresentMode(wgpu.PresentModeMailbox))
	assert.Equal(t, wgpu.PresentModeFifo, backend.LastConfiguration().PresentMode)

	backend = gputest.NewBackend()
	newTestSession(t, backend, WithPresentMode(wgpu.PresentModeImmediate))
	assert.Equal(t, wgpu.PresentModeImmediate, backend.LastConfiguration().PresentMode)
}

func TestNewRenderSessionNoSurfaceFormat(t *testing.T) {
	backend := gputest.NewBackend()
	backend.Caps.Formats = nil

	_, err := NewRenderSession(backend, 450, 400, WithTextureBytes(testPNG(t), "happy tree"))
	assert.ErrorIs(t, err, gpu.ErrNoSurfaceFormat)
	assert.True(t, backend.Destroyed)
}

func TestNewRenderSessionRequiresTexture(t *testing.T) {
	_, err := NewRenderSession(gputest.NewBackend(), 450, 400)
	assert.Error(t, err)
}

func TestNewRenderSessionBadImage(t *testing.T) {
	backend := gputest.NewBackend()
	_, err := NewRenderSession(backend, 450, 400, WithTextureBytes([]byte("not an image"), "broken"))
	assert.ErrorIs(t, err, common.ErrDecode)
	assert.Empty(t, backend.Buffers)
}

func TestNewRenderSessionPipelineFailureReleasesResources(t *testing.T) {
	backend := gputest.NewBackend()
	backend.FailPipeline = errors.New("validation error")

	_, err := NewRenderSession(backend, 450, 400, WithTextureBytes(testPNG(t), "happy tree"))
	require.Error(t, err)
	assert.Empty(t, backend.Buffers)
	assert.Empty(t, backend.BindGroups)
	assert.Empty(t, backend.BindGroupLayouts)
	assert.Empty(t, backend.Samplers)
	assert.Empty(t, backend.TextureViews)
	assert.Empty(t, backend.ShaderModules)
	assert.True(t, backend.Destroyed)
}

func TestRenderRecordsOnePassWithOneDraw(t *testing.T) {
	backend := gputest.NewBackend()
	s := newTestSession(t, backend)

	require.NoError(t, s.Render())
	assert.Equal(t, StateReady, s.State())
	assert.Equal(t, 1, backend.Presents)

	passes := backend.Passes()
	require.Len(t, passes, 1)
	pass := passes[0]

	require.Len(t, pass.Descriptor.ColorAttachments, 1)
	attachment := pass.Descriptor.ColorAttachments[0]
	assert.Equal(t, wgpu.LoadOpClear, attachment.LoadOp)
	assert.Equal(t, wgpu.StoreOpStore, attachment.StoreOp)
	assert.Equal(t, wgpu.Color{R: 1, G: 0, B: 0, A: 1}, attachment.ClearValue)

	assert.Equal(t, s.Pipeline().RenderPipeline(), pass.Pipeline)
	require.Len(t, pass.BindGroups, 2)
	assert.Equal(t, uint32(0), pass.BindGroups[0].Slot)
	assert.Equal(t, uint32(1), pass.BindGroups[1].Slot)
	assert.NotZero(t, pass.VertexBuffers[0])
	assert.Equal(t, []gputest.Draw{{VertexCount: 6, InstanceCount: 1}}, pass.Draws)

	// the per-frame view is released once the frame is presented
	assert.NotContains(t, backend.TextureViews, attachment.View)
}

func TestRenderClearColorOption(t *testing.T) {
	backend := gputest.NewBackend()
	clearColor := wgpu.Color{R: 0.1, G: 0.2, B: 0.3, A: 1}
	s := newTestSession(t, backend, WithClearColor(clearColor))

	require.NoError(t, s.Render())
	assert.Equal(t, clearColor, backend.Passes()[0].Descriptor.ColorAttachments[0].ClearValue)
}

func TestResizeUpdatesCameraAspect(t *testing.T) {
	backend := gputest.NewBackend()
	s := newTestSession(t, backend)

	require.NoError(t, s.Resize(800, 200))
	cfg := backend.LastConfiguration()
	assert.Equal(t, uint32(800), cfg.Width)
	assert.Equal(t, uint32(200), cfg.Height)

	want := camera.NewCamera(camera.WithAspect(4)).ViewProjection()
	got := s.CameraUniform().ViewProj
	assert.InDeltaSlice(t, want[:], got[:], 1e-6)

	u := s.CameraUniform()
	assert.Equal(t, u.Marshal(), cameraBuffer(t, backend))
}

func TestInitialCameraAspectMatchesSurface(t *testing.T) {
	backend := gputest.NewBackend()
	s := newTestSession(t, backend)

	want := camera.NewCamera(camera.WithAspect(450.0 / 400.0)).ViewProjection()
	got := s.CameraUniform().ViewProj
	assert.InDeltaSlice(t, want[:], got[:], 1e-6)
	assert.InDelta(t, 450.0/400.0, s.Camera().Aspect(), 1e-6)
}

func TestResizeZeroAreaIsIgnored(t *testing.T) {
	backend := gputest.NewBackend()
	s := newTestSession(t, backend)
	configured := len(backend.Configurations)
	before := s.CameraUniform()

	require.NoError(t, s.Resize(0, 300))
	require.NoError(t, s.Resize(300, 0))

	assert.Len(t, backend.Configurations, configured)
	w, h := s.Size()
	assert.Equal(t, uint32(450), w)
	assert.Equal(t, uint32(400), h)
	assert.Equal(t, before, s.CameraUniform())

	require.NoError(t, s.Render())
}

func TestRenderOutdatedSurfaceSkipsFrame(t *testing.T) {
	backend := gputest.NewBackend()
	s := newTestSession(t, backend)
	configured := len(backend.Configurations)
	backend.AcquireErrors = []error{gpu.ErrSurfaceOutdated}

	err := s.Render()
	require.Error(t, err)
	assert.False(t, IsFatal(err))
	assert.ErrorIs(t, err, gpu.ErrSurfaceOutdated)
	assert.Len(t, backend.Configurations, configured+1)
	assert.Equal(t, StateReady, s.State())

	require.NoError(t, s.Render())
	assert.Equal(t, 1, backend.Presents)
}

func TestRenderRepeatedAcquireFailuresAreFatal(t *testing.T) {
	backend := gputest.NewBackend()
	s := newTestSession(t, backend)
	backend.AcquireErrors = []error{gpu.ErrSurfaceTimeout, gpu.ErrSurfaceOutdated, gpu.ErrSurfaceTimeout}

	for range 2 {
		assert.False(t, IsFatal(s.Render()))
	}
	err := s.Render()
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, gpu.ErrSurfaceLost)
	assert.Equal(t, StateLost, s.State())

	err = s.Render()
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, ErrSessionLost)
}

func TestRenderAcquireCounterResetsOnSuccess(t *testing.T) {
	backend := gputest.NewBackend()
	s := newTestSession(t, backend, WithMaxAcquireFailures(2))

	backend.AcquireErrors = []error{gpu.ErrSurfaceTimeout}
	assert.False(t, IsFatal(s.Render()))
	require.NoError(t, s.Render())

	backend.AcquireErrors = []error{gpu.ErrSurfaceTimeout}
	assert.False(t, IsFatal(s.Render()))
	assert.Equal(t, StateReady, s.State())
}

func TestRenderSurfaceLostIsFatal(t *testing.T) {
	backend := gputest.NewBackend()
	s := newTestSession(t, backend)
	backend.AcquireErrors = []error{gpu.ErrSurfaceLost}

	err := s.Render()
	assert.True(t, IsFatal(err))
	assert.Equal(t, StateLost, s.State())
	assert.Zero(t, backend.Presents)

	assert.True(t, IsFatal(s.Resize(100, 100)))
}

func TestReleaseFreesEverything(t *testing.T) {
	backend := gputest.NewBackend()
	s, err := NewRenderSession(backend, 450, 400, WithTextureBytes(testPNG(t), "happy tree"))
	require.NoError(t, err)
	require.NoError(t, s.Render())

	pipelineID := s.Pipeline().RenderPipeline()
	releasedBefore := len(backend.Released)
	s.Release()

	assert.Equal(t, StateUninitialized, s.State())
	assert.True(t, backend.Destroyed)
	assert.Empty(t, backend.Buffers)
	assert.Empty(t, backend.Textures)
	assert.Empty(t, backend.TextureViews)
	assert.Empty(t, backend.Samplers)
	assert.Empty(t, backend.BindGroups)
	assert.Empty(t, backend.BindGroupLayouts)
	assert.Empty(t, backend.Pipelines)
	assert.Empty(t, backend.ShaderModules)

	// the pipeline goes first
	require.Greater(t, len(backend.Released), releasedBefore)
	assert.Equal(t, pipelineID, backend.Released[releasedBefore])

	assert.ErrorIs(t, s.Render(), ErrNotReady)
	s.Release()
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "lost", StateLost.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.True(t, IsFatal(errors.New("boom")))
	assert.False(t, IsFatal(&FrameError{Op: "acquire", Err: gpu.ErrSurfaceTimeout}))
	assert.True(t, IsFatal(&FrameError{Op: "submit", Fatal: true, Err: errors.New("boom")}))
}
