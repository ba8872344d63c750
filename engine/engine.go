package engine

import (
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-quad/common"
	"github.com/Carmen-Shannon/oxy-quad/engine/logger"
	"github.com/Carmen-Shannon/oxy-quad/engine/profiler"
	"github.com/Carmen-Shannon/oxy-quad/engine/renderer"
	"github.com/Carmen-Shannon/oxy-quad/engine/window"
	"go.uber.org/zap"
)

// EventKind identifies one of the host signals the frame loop consumes.
type EventKind int

const (
	// EventResize carries a new framebuffer size.
	EventResize EventKind = iota
	// EventRedraw asks for one frame.
	EventRedraw
	// EventClose asks the loop to terminate.
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventResize:
		return "resize"
	case EventRedraw:
		return "redraw"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// Event is one host signal. Width and Height are only meaningful for EventResize.
type Event struct {
	Kind   EventKind
	Width  int
	Height int
}

// Dispatch applies a single host event to session.
// A resize to a negative size is treated as zero area and ignored by the session.
//
// Parameters:
//   - session: the session the event is applied to
//   - ev: the host event
//
// Returns:
//   - stop: true when the loop must terminate, either on EventClose or on a fatal session error
//   - err: the error reported by the session, if any; non-fatal errors mean the frame was skipped
func Dispatch(session renderer.RenderSession, ev Event) (stop bool, err error) {
	switch ev.Kind {
	case EventResize:
		err = session.Resize(uint32(max(ev.Width, 0)), uint32(max(ev.Height, 0)))
	case EventRedraw:
		err = session.Render()
	case EventClose:
		return true, nil
	}
	return renderer.IsFatal(err), err
}

// engine implements the Engine interface.
// Every callback runs on the window thread, so the session is only ever touched from there.
type engine struct {
	window  window.Window
	session renderer.RenderSession

	exitKeys []uint32

	quitOnce sync.Once
	err      error

	profiler         *profiler.Profiler
	profilingEnabled bool
	profileInterval  time.Duration

	frameCallback    func(deltaTime float32)
	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	lastRender       time.Time
}

// Engine is the frame loop. It owns a window and a render session and routes the window's resize, redraw and
// close signals into the session until the window closes or the session fails.
type Engine interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Session returns the render session driven by this loop.
	//
	// Returns:
	//   - renderer.RenderSession: the session
	Session() renderer.RenderSession

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetFrameCallback registers the function called after each presented frame.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds since the previous redraw
	SetFrameCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run blocks on the window message loop until the window closes or the session reports a fatal error.
	// The session is released and the window destroyed before Run returns.
	//
	// Returns:
	//   - error: the fatal session error that stopped the loop, or nil on a normal close
	Run() error

	// Quit asks the loop to stop after the current iteration.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine with the provided options and registers its callbacks on the window.
//
// Parameters:
//   - options: functional options; WithWindow and WithSession are required before Run
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		exitKeys:        []uint32{common.KeyEsc},
		profileInterval: time.Second,
	}

	for _, opt := range options {
		opt(e)
	}
	e.profiler = profiler.NewProfiler(e.profileInterval)

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			e.dispatch(Event{Kind: EventResize, Width: width, Height: height})
		})
		e.window.SetRedrawCallback(func() {
			e.redraw()
		})
		e.window.SetKeyDownCallback(func(keyCode uint32) {
			if slices.Contains(e.exitKeys, keyCode) {
				logger.Info("exit key pressed", zap.Uint32("key", keyCode))
				e.dispatch(Event{Kind: EventClose})
			}
		})
		e.window.SetCloseCallback(func() {
			e.dispatch(Event{Kind: EventClose})
		})
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Session() renderer.RenderSession {
	return e.session
}

func (e *engine) Run() error {
	e.lastRender = time.Now()
	e.window.ProcessMessages()

	e.session.Release()
	if err := e.window.Close(); err != nil {
		logger.Warn("closing window", zap.Error(err))
	}
	logger.Sync()
	return e.err
}

// Quit signals the window loop to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		e.window.RequestClose()
	})
}

// dispatch routes ev into the session, logs the outcome and stops the loop when required.
// It reports whether a frame was presented.
func (e *engine) dispatch(ev Event) bool {
	stop, err := Dispatch(e.session, ev)
	switch {
	case stop && err != nil:
		logger.Error("render session failed, stopping", zap.Stringer("event", ev.Kind), zap.Error(err))
		if e.err == nil {
			e.err = err
		}
	case stop:
		logger.Info("close requested")
	case err != nil:
		logger.Debug("frame skipped", zap.Stringer("event", ev.Kind), zap.Error(err))
		if e.profilingEnabled {
			e.profiler.Skip()
		}
	}
	if stop {
		e.Quit()
	}
	return err == nil
}

// redraw renders one frame, then runs the frame callback, the profiler and the frame limiter.
func (e *engine) redraw() {
	now := time.Now()
	dt := float32(now.Sub(e.lastRender).Seconds())
	e.lastRender = now

	if !e.dispatch(Event{Kind: EventRedraw}) {
		return
	}

	if e.frameCallback != nil {
		e.frameCallback(dt)
	}

	if e.profilingEnabled {
		e.profiler.Tick()
	}

	if e.renderFrameLimit > 0 {
		if remaining := e.renderFrameLimit - time.Since(now); remaining > 0 {
			time.Sleep(remaining)
		}
	}
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetFrameCallback registers the function called after each presented frame.
func (e *engine) SetFrameCallback(callback func(deltaTime float32)) {
	e.frameCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	e.renderFrameLimit = frameDuration(fps)
}

func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
