// Package config loads the quad viewer settings from defaults, an optional YAML file and command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Carmen-Shannon/oxy-quad/engine/logger"
	"github.com/cogentcore/webgpu/wgpu"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when -config is not given. A missing default file is not an error.
const DefaultPath = "oxy-quad.yaml"

// Config is the full application configuration.
type Config struct {
	Window   WindowConfig   `yaml:"window"`
	Graphics GraphicsConfig `yaml:"graphics"`
	Camera   CameraConfig   `yaml:"camera"`
	Texture  TextureConfig  `yaml:"texture"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// WindowConfig controls the host window.
type WindowConfig struct {
	Title  string `yaml:"title"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// GraphicsConfig controls adapter selection, presentation and the frame loop.
type GraphicsConfig struct {
	PresentMode          string     `yaml:"present_mode"`
	PowerPreference      string     `yaml:"power_preference"`
	ForceFallbackAdapter bool       `yaml:"force_fallback_adapter"`
	ClearColor           [4]float64 `yaml:"clear_color"`
	MaxAcquireFailures   int        `yaml:"max_acquire_failures"`
	FrameLimit           float64    `yaml:"frame_limit"`
	Profile              bool       `yaml:"profile"`
	ProfileIntervalMs    int        `yaml:"profile_interval_ms"`
}

// CameraConfig is the static camera.
type CameraConfig struct {
	Eye        [3]float32 `yaml:"eye"`
	Target     [3]float32 `yaml:"target"`
	Up         [3]float32 `yaml:"up"`
	FovDegrees float32    `yaml:"fov_degrees"`
	Near       float32    `yaml:"near"`
	Far        float32    `yaml:"far"`
}

// TextureConfig selects the quad texture. An empty Path uses the bundled image.
type TextureConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig mirrors logger.FileConfig plus the level. An empty File logs to the console only.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
	Console    bool   `yaml:"console"`
}

var presentModes = map[string]wgpu.PresentMode{
	"fifo":      wgpu.PresentModeFifo,
	"immediate": wgpu.PresentModeImmediate,
	"mailbox":   wgpu.PresentModeMailbox,
}

var powerPreferences = map[string]wgpu.PowerPreference{
	"high": wgpu.PowerPreferenceHighPerformance,
	"low":  wgpu.PowerPreferenceLowPower,
}

// Default returns the built-in configuration: a 450x400 window cleared to red, FIFO presentation on a
// high-performance adapter, and the camera at (0, 2, 2) looking at the origin.
func Default() *Config {
	fileDefaults := logger.DefaultFileConfig("")
	return &Config{
		Window: WindowConfig{
			Title:  "oxy-quad",
			Width:  450,
			Height: 400,
		},
		Graphics: GraphicsConfig{
			PresentMode:        "fifo",
			PowerPreference:    "high",
			ClearColor:         [4]float64{1, 0, 0, 1},
			MaxAcquireFailures: 3,
			ProfileIntervalMs:  1000,
		},
		Camera: CameraConfig{
			Eye:        [3]float32{0, 2, 2},
			Target:     [3]float32{0, 0, 0},
			Up:         [3]float32{0, 1, 0},
			FovDegrees: 45,
			Near:       0.1,
			Far:        100,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  fileDefaults.MaxSizeMB,
			MaxBackups: fileDefaults.MaxBackups,
			MaxAgeDays: fileDefaults.MaxAgeDays,
			Compress:   fileDefaults.Compress,
			Console:    true,
		},
	}
}

// Load builds a Config from the defaults, then a YAML file, then flags parsed from args (without the program name).
// The file is the one named by -config, or DefaultPath if that exists.
//
// Parameters:
//   - args: command-line arguments, typically os.Args[1:]
//
// Returns:
//   - *Config: the validated configuration
//   - error: a flag, file, YAML or validation error
func Load(args []string) (*Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("oxy-quad", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	path := fs.String("config", "", "path to a YAML config file")
	width := fs.Int("width", 0, "window width in pixels")
	height := fs.Int("height", 0, "window height in pixels")
	title := fs.String("title", "", "window title")
	presentMode := fs.String("present-mode", "", "fifo, immediate or mailbox")
	logLevel := fs.String("log-level", "", "debug, info, warn or error")
	texturePath := fs.String("texture", "", "image file to texture the quad with")
	profile := fs.Bool("profile", false, "log frame statistics")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	filePath, required := *path, true
	if filePath == "" {
		filePath, required = DefaultPath, false
	}
	if err := cfg.loadFile(filePath, required); err != nil {
		return nil, err
	}

	// Only flags that were actually given override the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "width":
			cfg.Window.Width = *width
		case "height":
			cfg.Window.Height = *height
		case "title":
			cfg.Window.Title = *title
		case "present-mode":
			cfg.Graphics.PresentMode = *presentMode
		case "log-level":
			cfg.Logging.Level = *logLevel
		case "texture":
			cfg.Texture.Path = *texturePath
		case "profile":
			cfg.Graphics.Profile = *profile
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("config: window size must be positive, got %dx%d", c.Window.Width, c.Window.Height)
	}
	if _, ok := presentModes[strings.ToLower(c.Graphics.PresentMode)]; !ok {
		return fmt.Errorf("config: unknown present mode %q", c.Graphics.PresentMode)
	}
	if _, ok := powerPreferences[strings.ToLower(c.Graphics.PowerPreference)]; !ok {
		return fmt.Errorf("config: unknown power preference %q", c.Graphics.PowerPreference)
	}
	if c.Graphics.MaxAcquireFailures < 1 {
		return fmt.Errorf("config: max_acquire_failures must be at least 1, got %d", c.Graphics.MaxAcquireFailures)
	}
	if c.Graphics.FrameLimit < 0 {
		return fmt.Errorf("config: frame_limit must not be negative, got %v", c.Graphics.FrameLimit)
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		return fmt.Errorf("config: camera planes need 0 < near < far, got near=%v far=%v", c.Camera.Near, c.Camera.Far)
	}
	if c.Camera.FovDegrees <= 0 || c.Camera.FovDegrees >= 180 {
		return fmt.Errorf("config: fov_degrees must be in (0, 180), got %v", c.Camera.FovDegrees)
	}
	if !logger.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("config: unknown log level %q", c.Logging.Level)
	}
	return nil
}

// PresentMode translates the configured present mode. Call after Validate.
func (c *Config) PresentMode() wgpu.PresentMode {
	return presentModes[strings.ToLower(c.Graphics.PresentMode)]
}

// PowerPreference translates the configured power preference. Call after Validate.
func (c *Config) PowerPreference() wgpu.PowerPreference {
	return powerPreferences[strings.ToLower(c.Graphics.PowerPreference)]
}

// ClearColor returns the configured clear color as a wgpu.Color.
func (c *Config) ClearColor() wgpu.Color {
	cc := c.Graphics.ClearColor
	return wgpu.Color{R: cc[0], G: cc[1], B: cc[2], A: cc[3]}
}

// LogFile returns the rotating file settings for logger.InitWithFileConfig.
func (c *Config) LogFile() logger.FileConfig {
	return logger.FileConfig{
		Path:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
		Compress:   c.Logging.Compress,
	}
}
