package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-quad/engine/renderer"
	"github.com/Carmen-Shannon/oxy-quad/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//   - interval: how often stats are logged; values <= 0 default to 1 second
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool, interval time.Duration) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
		e.profileInterval = interval
	}
}

// WithWindow sets the window that provides the resize, redraw and close signals.
//
// Parameters:
//   - w: a spawned Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithSession sets the render session the loop drives. The engine takes ownership and releases it when Run returns.
//
// Parameters:
//   - s: a ready RenderSession
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithSession(s renderer.RenderSession) EngineBuilderOption {
	return func(e *engine) {
		e.session = s
	}
}

// WithExitKeys replaces the keys that close the loop. The default is common.KeyEsc.
//
// Parameters:
//   - keys: virtual key codes
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithExitKeys(keys ...uint32) EngineBuilderOption {
	return func(e *engine) {
		e.exitKeys = keys
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.renderFrameLimit = frameDuration(fps)
	}
}
