package renderer

import (
	"github.com/Carmen-Shannon/oxy-quad/common"
	"github.com/Carmen-Shannon/oxy-quad/engine/camera"
	"github.com/Carmen-Shannon/oxy-quad/engine/model"
	"github.com/Carmen-Shannon/oxy-quad/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// RenderSessionBuilderOption is a functional option applied to a session during construction via NewRenderSession.
type RenderSessionBuilderOption func(*renderSession)

// WithTextureBytes sets the encoded image the quad is textured with. It is decoded during construction.
//
// Parameters:
//   - raw: encoded image bytes
//   - label: debug label for the texture
//
// Returns:
//   - RenderSessionBuilderOption: a function that sets the texture source
func WithTextureBytes(raw []byte, label string) RenderSessionBuilderOption {
	return func(s *renderSession) {
		s.textureBytes = raw
		s.textureStaging = nil
		s.textureLabel = label
	}
}

// WithTextureStaging sets already decoded pixels for the quad texture.
//
// Parameters:
//   - staging: decoded RGBA8 pixels
//   - label: debug label for the texture
//
// Returns:
//   - RenderSessionBuilderOption: a function that sets the texture source
func WithTextureStaging(staging common.TextureStagingData, label string) RenderSessionBuilderOption {
	return func(s *renderSession) {
		s.textureStaging = &staging
		s.textureBytes = nil
		s.textureLabel = label
	}
}

// WithClearColor sets the color the render pass clears the surface to.
//
// Parameters:
//   - c: the clear color
//
// Returns:
//   - RenderSessionBuilderOption: a function that sets the clear color
func WithClearColor(c wgpu.Color) RenderSessionBuilderOption {
	return func(s *renderSession) {
		s.clearColor = c
	}
}

// WithPresentMode sets the requested surface present mode. Unsupported modes fall back to FIFO.
//
// Parameters:
//   - mode: the present mode (e.g., wgpu.PresentModeFifo, wgpu.PresentModeImmediate)
//
// Returns:
//   - RenderSessionBuilderOption: a function that sets the present mode
func WithPresentMode(mode wgpu.PresentMode) RenderSessionBuilderOption {
	return func(s *renderSession) {
		s.presentMode = mode
	}
}

// WithMaxAcquireFailures sets how many consecutive recoverable acquisition failures are tolerated.
// The failure that reaches the limit is reported as fatal.
//
// Parameters:
//   - n: the limit, values below 1 are treated as 1
//
// Returns:
//   - RenderSessionBuilderOption: a function that sets the limit
func WithMaxAcquireFailures(n int) RenderSessionBuilderOption {
	return func(s *renderSession) {
		s.maxAcquireFailures = max(n, 1)
	}
}

// WithCameraOptions passes options to the session camera. The aspect ratio is always derived from the surface.
//
// Parameters:
//   - options: the camera options
//
// Returns:
//   - RenderSessionBuilderOption: a function that sets the camera options
func WithCameraOptions(options ...camera.CameraBuilderOption) RenderSessionBuilderOption {
	return func(s *renderSession) {
		s.cameraOptions = append(s.cameraOptions, options...)
	}
}

// WithShader replaces the built-in quad shader.
//
// Parameters:
//   - sh: a shader exposing vs_main, fs_main and the texture and camera bindings
//
// Returns:
//   - RenderSessionBuilderOption: a function that sets the shader
func WithShader(sh shader.Shader) RenderSessionBuilderOption {
	return func(s *renderSession) {
		s.shader = sh
	}
}

// WithModel replaces the built-in quad geometry.
//
// Parameters:
//   - m: the model to draw; it must not be uploaded yet
//
// Returns:
//   - RenderSessionBuilderOption: a function that sets the model
func WithModel(m model.Model) RenderSessionBuilderOption {
	return func(s *renderSession) {
		s.model = m
	}
}
