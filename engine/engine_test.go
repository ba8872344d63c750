package engine

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-quad/common"
	"github.com/Carmen-Shannon/oxy-quad/engine/camera"
	"github.com/Carmen-Shannon/oxy-quad/engine/gpu"
	"github.com/Carmen-Shannon/oxy-quad/engine/renderer"
	"github.com/Carmen-Shannon/oxy-quad/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWindow replays steps from ProcessMessages until the script ends or the engine asks it to close.
type fakeWindow struct {
	steps   []func(w *fakeWindow)
	running bool
	closed  bool

	onRedraw  func()
	onResize  func(width, height int)
	onKeyDown func(keyCode uint32)
	onClose   func()
}

func newFakeWindow(steps ...func(w *fakeWindow)) *fakeWindow {
	return &fakeWindow{steps: steps, running: true}
}

func redraw(w *fakeWindow) { w.onRedraw() }
func resize(width, height int) func(*fakeWindow) { return func(w *fakeWindow) { w.onResize(width, height) } }
func key(code uint32) func(*fakeWindow) { return func(w *fakeWindow) { w.onKeyDown(code) } }
func closeButton(w *fakeWindow) { w.onClose() }

func (w *fakeWindow) SetRedrawCallback(callback func()) { w.onRedraw = callback }
func (w *fakeWindow) SetResizeCallback(callback func(width, height int)) { w.onResize = callback }
func (w *fakeWindow) SetKeyDownCallback(callback func(keyCode uint32)) { w.onKeyDown = callback }
func (w *fakeWindow) SetCloseCallback(callback func()) { w.onClose = callback }
func (w *fakeWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor { return nil }
func (w *fakeWindow) IsRunning() bool { return w.running }
func (w *fakeWindow) RequestClose() { w.running = false }
func (w *fakeWindow) Width() int { return 450 }
func (w *fakeWindow) Height() int { return 400 }

func (w *fakeWindow) Close() error {
	w.closed = true
	return nil
}

func (w *fakeWindow) ProcessMessages() {
	for _, step := range w.steps {
		if !w.running {
			return
		}
		step(w)
	}
}

// fakeSession records calls and returns scripted Render results.
type fakeSession struct {
	renderErrs []error
	resizeErr  error

	renders  int
	resizes  [][2]uint32
	released bool
}

func (s *fakeSession) Resize(width, height uint32) error {
	s.resizes = append(s.resizes, [2]uint32{width, height})
	return s.resizeErr
}

func (s *fakeSession) Render() error {
	s.renders++
	if len(s.renderErrs) == 0 {
		return nil
	}
	err := s.renderErrs[0]
	s.renderErrs = s.renderErrs[1:]
	return err
}

func (s *fakeSession) State() renderer.State { return renderer.StateReady }
func (s *fakeSession) Size() (uint32, uint32) { return 450, 400 }
func (s *fakeSession) SurfaceConfiguration() gpu.SurfaceConfiguration { return gpu.SurfaceConfiguration{} }
func (s *fakeSession) Camera() camera.Camera { return nil }
func (s *fakeSession) CameraUniform() camera.CameraUniform { return camera.NewCameraUniform() }
func (s *fakeSession) Pipeline() pipeline.Pipeline { return nil }
func (s *fakeSession) Release() { s.released = true }

var _ renderer.RenderSession = &fakeSession{}

func TestRunRendersUntilExitKey(t *testing.T) {
	w := newFakeWindow(redraw, redraw, key(common.KeyQ), redraw, key(common.KeyEsc), redraw)
	s := &fakeSession{}
	frames := 0
	e := NewEngine(WithWindow(w), WithSession(s))
	e.SetFrameCallback(func(float32) { frames++ })

	require.NoError(t, e.Run())
	assert.Equal(t, 3, s.renders)
	assert.Equal(t, 3, frames)
	assert.True(t, s.released)
	assert.True(t, w.closed)
}

func TestRunCustomExitKeys(t *testing.T) {
	w := newFakeWindow(redraw, key(common.KeyQ), redraw)
	s := &fakeSession{}

	require.NoError(t, NewEngine(WithWindow(w), WithSession(s), WithExitKeys(common.KeyQ)).Run())
	assert.Equal(t, 1, s.renders)
}

func TestRunStopsOnCloseButton(t *testing.T) {
	w := newFakeWindow(redraw, closeButton, redraw)
	s := &fakeSession{}

	require.NoError(t, NewEngine(WithWindow(w), WithSession(s)).Run())
	assert.Equal(t, 1, s.renders)
	assert.True(t, s.released)
}

func TestRunForwardsResize(t *testing.T) {
	w := newFakeWindow(resize(800, 600), resize(0, 0), resize(-5, 10), redraw)
	s := &fakeSession{}

	require.NoError(t, NewEngine(WithWindow(w), WithSession(s)).Run())
	assert.Equal(t, [][2]uint32{{800, 600}, {0, 0}, {0, 10}}, s.resizes)
}

func TestRunSkipsRecoverableFrames(t *testing.T) {
	skip := &renderer.FrameError{Op: "acquire", Err: gpu.ErrSurfaceOutdated}
	w := newFakeWindow(redraw, redraw, redraw)
	s := &fakeSession{renderErrs: []error{skip, skip}}
	frames := 0
	e := NewEngine(WithWindow(w), WithSession(s), WithProfiling(true, 0))
	e.SetFrameCallback(func(float32) { frames++ })

	require.NoError(t, e.Run())
	assert.Equal(t, 3, s.renders)
	assert.Equal(t, 1, frames)
}

func TestRunStopsOnFatalFrame(t *testing.T) {
	fatal := &renderer.FrameError{Op: "acquire", Fatal: true, Err: gpu.ErrSurfaceLost}
	w := newFakeWindow(redraw, redraw, redraw)
	s := &fakeSession{renderErrs: []error{nil, fatal}}

	err := NewEngine(WithWindow(w), WithSession(s)).Run()
	assert.ErrorIs(t, err, gpu.ErrSurfaceLost)
	assert.Equal(t, 2, s.renders)
	assert.True(t, s.released)
	assert.True(t, w.closed)
}

func TestDispatch(t *testing.T) {
	s := &fakeSession{}

	stop, err := Dispatch(s, Event{Kind: EventClose})
	assert.True(t, stop)
	assert.NoError(t, err)

	stop, err = Dispatch(s, Event{Kind: EventRedraw})
	assert.False(t, stop)
	assert.NoError(t, err)

	s.resizeErr = errors.New("device gone")
	stop, err = Dispatch(s, Event{Kind: EventResize, Width: 10, Height: 10})
	assert.True(t, stop)
	assert.Error(t, err)
}

func TestQuitIsIdempotent(t *testing.T) {
	w := newFakeWindow()
	e := NewEngine(WithWindow(w), WithSession(&fakeSession{}))
	e.Quit()
	e.Quit()
	assert.False(t, w.IsRunning())
}

func TestFrameDuration(t *testing.T) {
	assert.Zero(t, frameDuration(0))
	assert.Zero(t, frameDuration(-1))
	assert.InDelta(t, 16_666_666, int64(frameDuration(60)), 1)
}
