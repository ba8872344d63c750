package renderer

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-quad/common"
	"github.com/Carmen-Shannon/oxy-quad/engine/camera"
	"github.com/Carmen-Shannon/oxy-quad/engine/gpu"
	"github.com/Carmen-Shannon/oxy-quad/engine/logger"
	"github.com/Carmen-Shannon/oxy-quad/engine/model"
	"github.com/Carmen-Shannon/oxy-quad/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-quad/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-quad/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-quad/engine/texture"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// State is the lifecycle state of a RenderSession.
type State int

const (
	// StateUninitialized is the state before construction completes and after Release.
	StateUninitialized State = iota
	// StateReady accepts Render and Resize.
	StateReady
	// StateRendering is held for the duration of a single Render call.
	StateRendering
	// StateLost is terminal: the surface or device can no longer be used.
	StateLost
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateRendering:
		return "rendering"
	case StateLost:
		return "lost"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// DefaultMaxAcquireFailures is the number of consecutive recoverable acquisition failures after which the
// surface is treated as lost.
const DefaultMaxAcquireFailures = 3

// renderSession is the implementation of the RenderSession interface.
type renderSession struct {
	mu *sync.Mutex

	backend gpu.Backend
	state   State
	config  gpu.SurfaceConfiguration

	clearColor         wgpu.Color
	presentMode        wgpu.PresentMode
	maxAcquireFailures int
	acquireFailures    int

	// Pre-creation config collected from builder options
	textureBytes   []byte
	textureStaging *common.TextureStagingData
	textureLabel   string
	cameraOptions  []camera.CameraBuilderOption
	shader         shader.Shader

	texture      *texture.TextureResource
	textureGroup bind_group_provider.BindGroupProvider
	camera       camera.Camera
	uniform      camera.CameraUniform
	cameraGroup  bind_group_provider.BindGroupProvider
	model        model.Model
	pipeline     pipeline.Pipeline
}

// RenderSession owns the device, queue and surface of one window together with every GPU resource needed to draw
// the textured quad. It is driven by a single host thread: Resize and Render are never called concurrently with
// each other, and the mutex only guards accessors called from elsewhere.
type RenderSession interface {
	// Resize reconfigures the surface for a new framebuffer size and updates the camera aspect ratio.
	// A zero width or height is ignored and the previous configuration is kept.
	//
	// Parameters:
	//   - width: the new surface width in pixels
	//   - height: the new surface height in pixels
	//
	// Returns:
	//   - error: a fatal *FrameError if the surface cannot be reconfigured or the uniform cannot be written
	Resize(width, height uint32) error

	// Render acquires the next surface image, records one render pass that draws the quad, submits it and
	// presents. Acquisition is the only call that may block.
	//
	// Returns:
	//   - error: nil, or a *FrameError; use IsFatal to decide whether to keep going
	Render() error

	// State returns the current lifecycle state.
	//
	// Returns:
	//   - State: the session state
	State() State

	// Size returns the current surface size.
	//
	// Returns:
	//   - width, height: the surface size in pixels
	Size() (width, height uint32)

	// SurfaceConfiguration returns the configuration last applied to the surface.
	//
	// Returns:
	//   - gpu.SurfaceConfiguration: the surface configuration
	SurfaceConfiguration() gpu.SurfaceConfiguration

	// Camera returns the session camera.
	//
	// Returns:
	//   - camera.Camera: the camera
	Camera() camera.Camera

	// CameraUniform returns a copy of the host mirror of the camera uniform buffer.
	//
	// Returns:
	//   - camera.CameraUniform: the uniform
	CameraUniform() camera.CameraUniform

	// Pipeline returns the compiled render pipeline.
	//
	// Returns:
	//   - pipeline.Pipeline: the pipeline
	Pipeline() pipeline.Pipeline

	// Release frees every GPU resource in reverse creation order and destroys the backend.
	Release()
}

var _ RenderSession = &renderSession{}

// NewRenderSession configures the surface at width x height and builds, in order: the texture, the texture bind
// group, the camera and its uniform, the camera uniform buffer and bind group, the vertex buffer, and the pipeline.
// The session takes ownership of backend; on failure everything created so far, including the backend, is released.
//
// Parameters:
//   - backend: an opened device, queue and surface
//   - width: the initial surface width in pixels
//   - height: the initial surface height in pixels
//   - options: functional options; a texture source is required
//
// Returns:
//   - RenderSession: the ready session
//   - error: gpu.ErrNoSurfaceFormat, a decode or pipeline error, or a wrapped device error
func NewRenderSession(backend gpu.Backend, width, height uint32, options ...RenderSessionBuilderOption) (RenderSession, error) {
	s := &renderSession{
		mu:                 &sync.Mutex{},
		backend:            backend,
		state:              StateUninitialized,
		clearColor:         wgpu.Color{R: 1, G: 0, B: 0, A: 1},
		presentMode:        wgpu.PresentModeFifo,
		maxAcquireFailures: DefaultMaxAcquireFailures,
		textureLabel:       "quad texture",
	}
	for _, option := range options {
		option(s)
	}

	if err := s.init(width, height); err != nil {
		s.Release()
		return nil, err
	}
	s.state = StateReady
	return s, nil
}

func (s *renderSession) init(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("renderer: cannot create a %dx%d surface", width, height)
	}

	caps := s.backend.Capabilities()
	if len(caps.Formats) == 0 {
		return fmt.Errorf("renderer: configure surface: %w", gpu.ErrNoSurfaceFormat)
	}
	presentMode := s.presentMode
	if !slices.Contains(caps.PresentModes, presentMode) {
		logger.Warn("present mode not supported by surface, using fifo", zap.Any("requested", presentMode))
		presentMode = wgpu.PresentModeFifo
	}
	alphaMode := wgpu.CompositeAlphaModeAuto
	if len(caps.AlphaModes) > 0 {
		alphaMode = caps.AlphaModes[0]
	}
	s.config = gpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       width,
		Height:      height,
		PresentMode: presentMode,
		AlphaMode:   alphaMode,
	}
	if err := s.backend.Configure(&s.config); err != nil {
		return fmt.Errorf("renderer: configure surface: %w", err)
	}
	logger.Info("surface configured",
		zap.Uint32("width", width),
		zap.Uint32("height", height),
		zap.Any("format", s.config.Format),
		zap.Any("present_mode", s.config.PresentMode),
		zap.Any("alpha_mode", s.config.AlphaMode),
	)

	if err := s.initTexture(); err != nil {
		return err
	}
	if err := s.initCamera(); err != nil {
		return err
	}

	if s.model == nil {
		s.model = model.NewQuad()
	}
	if err := s.model.Upload(s.backend); err != nil {
		return fmt.Errorf("renderer: %w", err)
	}

	return s.initPipeline()
}

func (s *renderSession) initTexture() error {
	var err error
	switch {
	case s.textureStaging != nil:
		s.texture, err = texture.FromStaging(s.backend, s.backend, *s.textureStaging, s.textureLabel)
	case len(s.textureBytes) > 0:
		s.texture, err = texture.FromBytes(s.backend, s.backend, s.textureBytes, s.textureLabel)
	default:
		err = errors.New("no texture source")
	}
	if err != nil {
		return fmt.Errorf("renderer: %w", err)
	}

	s.textureGroup = bind_group_provider.NewBindGroupProvider("texture",
		bind_group_provider.WithLayoutEntries(bind_group_provider.TextureLayoutEntries()...),
		bind_group_provider.WithTextureView(0, s.texture.View),
		bind_group_provider.WithSampler(1, s.texture.Sampler),
	)
	if err := s.textureGroup.Init(s.backend); err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	return nil
}

func (s *renderSession) initCamera() error {
	aspect := float32(s.config.Width) / float32(s.config.Height)
	s.camera = camera.NewCamera(append(s.cameraOptions, camera.WithAspect(aspect))...)
	s.uniform = camera.NewCameraUniform()
	s.uniform.Update(s.camera)

	buf, err := s.backend.CreateBuffer(&gpu.BufferDescriptor{
		Label:    "camera buffer",
		Usage:    wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Contents: s.uniform.Marshal(),
	})
	if err != nil {
		return fmt.Errorf("renderer: create camera buffer: %w", err)
	}

	s.cameraGroup = bind_group_provider.NewBindGroupProvider("camera",
		bind_group_provider.WithLayoutEntries(bind_group_provider.UniformLayoutEntries(uint64(s.uniform.Size()))...),
		bind_group_provider.WithBuffer(0, buf),
	)
	if err := s.cameraGroup.Init(s.backend); err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	return nil
}

func (s *renderSession) initPipeline() error {
	if s.shader == nil {
		sh, err := shader.NewQuadShader()
		if err != nil {
			return fmt.Errorf("renderer: %w", err)
		}
		s.shader = sh
	}

	s.pipeline = pipeline.NewPipeline("quad pipeline",
		pipeline.WithShader(s.shader),
		pipeline.WithVertexLayouts(model.VertexBufferLayout()),
		pipeline.WithBindGroups(s.textureGroup, s.cameraGroup),
		pipeline.WithColorFormat(s.config.Format),
	)
	if err := s.pipeline.Build(s.backend); err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	return nil
}

func (s *renderSession) Resize(width, height uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if width == 0 || height == 0 {
		logger.Debug("ignoring zero-area resize", zap.Uint32("width", width), zap.Uint32("height", height))
		return nil
	}
	if s.state != StateReady {
		return &FrameError{Op: "resize", Fatal: s.state == StateLost, Err: s.stateErr()}
	}

	s.config.Width = width
	s.config.Height = height
	if err := s.backend.Configure(&s.config); err != nil {
		s.state = StateLost
		return &FrameError{Op: "resize", Fatal: true, Err: err}
	}

	s.camera.SetAspect(float32(width) / float32(height))
	s.uniform.Update(s.camera)
	err := bind_group_provider.WriteBuffers(s.backend, bind_group_provider.BufferWrite{
		Provider: s.cameraGroup,
		Binding:  0,
		Offset:   0,
		Data:     s.uniform.Marshal(),
	})
	if err != nil {
		s.state = StateLost
		return &FrameError{Op: "resize", Fatal: true, Err: err}
	}

	logger.Debug("surface resized", zap.Uint32("width", width), zap.Uint32("height", height))
	return nil
}

func (s *renderSession) Render() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return &FrameError{Op: "render", Fatal: true, Err: s.stateErr()}
	}
	s.state = StateRendering
	defer func() {
		if s.state == StateRendering {
			s.state = StateReady
		}
	}()

	surfaceTexture, err := s.backend.AcquireTexture()
	if err != nil {
		return s.acquireFailed(err)
	}
	s.acquireFailures = 0

	if err := s.drawFrame(surfaceTexture); err != nil {
		s.state = StateLost
		return err
	}
	return nil
}

// drawFrame records, submits and presents one frame into the acquired surface texture.
func (s *renderSession) drawFrame(surfaceTexture gpu.TextureID) error {
	view, err := s.backend.CreateTextureView(surfaceTexture, "frame view")
	if err != nil {
		return &FrameError{Op: "create frame view", Fatal: true, Err: err}
	}
	defer s.backend.Release(view)

	encoder, err := s.backend.CreateCommandEncoder("render encoder")
	if err != nil {
		return &FrameError{Op: "create encoder", Fatal: true, Err: err}
	}
	defer encoder.Release()

	pass, err := encoder.BeginRenderPass(&gpu.RenderPassDescriptor{
		Label: "render pass",
		ColorAttachments: []gpu.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: s.clearColor,
			},
		},
	})
	if err != nil {
		return &FrameError{Op: "begin render pass", Fatal: true, Err: err}
	}

	pass.SetPipeline(s.pipeline.RenderPipeline())
	pass.SetBindGroup(0, s.textureGroup.BindGroup())
	pass.SetBindGroup(1, s.cameraGroup.BindGroup())
	pass.SetVertexBuffer(0, s.model.VertexBuffer())
	pass.Draw(s.model.VertexCount(), 1, 0, 0)
	if err := pass.End(); err != nil {
		return &FrameError{Op: "end render pass", Fatal: true, Err: err}
	}

	commandBuffer, err := encoder.Finish()
	if err != nil {
		return &FrameError{Op: "finish encoder", Fatal: true, Err: err}
	}
	if err := s.backend.Submit(commandBuffer); err != nil {
		return &FrameError{Op: "submit", Fatal: true, Err: err}
	}
	if err := s.backend.Present(); err != nil {
		return &FrameError{Op: "present", Fatal: true, Err: err}
	}
	return nil
}

// acquireFailed applies the acquisition policy: outdated and timed-out surfaces are reconfigured and the frame is
// skipped, until maxAcquireFailures consecutive failures escalate to a lost surface.
func (s *renderSession) acquireFailed(err error) error {
	recoverable := errors.Is(err, gpu.ErrSurfaceOutdated) || errors.Is(err, gpu.ErrSurfaceTimeout)
	if !recoverable {
		s.state = StateLost
		return &FrameError{Op: "acquire", Fatal: true, Err: err}
	}

	s.acquireFailures++
	if s.acquireFailures >= s.maxAcquireFailures {
		s.state = StateLost
		return &FrameError{
			Op:    "acquire",
			Fatal: true,
			Err:   fmt.Errorf("%w after %d consecutive failures: %w", gpu.ErrSurfaceLost, s.acquireFailures, err),
		}
	}

	if cfgErr := s.backend.Configure(&s.config); cfgErr != nil {
		s.state = StateLost
		return &FrameError{Op: "reconfigure", Fatal: true, Err: cfgErr}
	}
	return &FrameError{Op: "acquire", Fatal: false, Err: err}
}

func (s *renderSession) stateErr() error {
	if s.state == StateLost {
		return ErrSessionLost
	}
	return fmt.Errorf("%w: %s", ErrNotReady, s.state)
}

func (s *renderSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *renderSession) Size() (width, height uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.Width, s.config.Height
}

func (s *renderSession) SurfaceConfiguration() gpu.SurfaceConfiguration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

func (s *renderSession) Camera() camera.Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera
}

func (s *renderSession) CameraUniform() camera.CameraUniform {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uniform
}

func (s *renderSession) Pipeline() pipeline.Pipeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipeline
}

func (s *renderSession) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend == nil {
		return
	}
	if s.pipeline != nil {
		s.pipeline.Release(s.backend)
	}
	if s.model != nil {
		s.model.Release(s.backend)
	}
	if s.cameraGroup != nil {
		s.cameraGroup.Release(s.backend)
	}
	if s.textureGroup != nil {
		s.textureGroup.Release(s.backend)
	}
	if s.texture != nil {
		s.texture.Release(s.backend)
	}
	s.backend.Destroy()
	s.backend = nil
	s.state = StateUninitialized
}
