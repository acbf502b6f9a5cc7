// Package config loads the raytracer's TOML configuration and turns it into a logger.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalidConfig is returned when a configuration value is out of range.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Present modes accepted by renderer.present_mode.
const (
	PresentModeVSync    = "vsync"
	PresentModeUncapped = "uncapped"
)

// Log formats accepted by log.format.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// WindowConfig configures the GLFW window.
type WindowConfig struct {
	Title     string `toml:"title"`
	Width     int    `toml:"width"`
	Height    int    `toml:"height"`
	MinWidth  int    `toml:"min_width"`
	MinHeight int    `toml:"min_height"`
	MaxWidth  int    `toml:"max_width"`
	MaxHeight int    `toml:"max_height"`
}

// RendererConfig configures the GPU device and surface.
type RendererConfig struct {
	PresentMode   string `toml:"present_mode"`
	ForceSoftware bool   `toml:"force_software"`
}

// ComputeConfig configures the kernels and their compilation.
type ComputeConfig struct {
	ShaderPath string `toml:"shader_path"`

	// WorkgroupSize rewrites the kernel's @workgroup_size to n×n×1 when non-zero.
	WorkgroupSize   uint32 `toml:"workgroup_size"`
	Workers         int    `toml:"workers"`
	ValidateShaders bool   `toml:"validate_shaders"`
	WatchShaders    bool   `toml:"watch_shaders"`
}

// EngineConfig configures the simulation and render loops.
type EngineConfig struct {
	TickRate         float64 `toml:"tick_rate"`
	RenderFrameLimit float64 `toml:"render_frame_limit"`
	Profiling        bool    `toml:"profiling"`
}

// CameraConfig configures the camera controller speeds.
type CameraConfig struct {
	PanSpeed         float32 `toml:"pan_speed"`
	ZoomSpeed        float32 `toml:"zoom_speed"`
	RotationSpeed    float32 `toml:"rotation_speed"`
	MouseSensitivity float32 `toml:"mouse_sensitivity"`
}

// LogConfig configures the engine logger.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the complete raytracer configuration.
type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Compute  ComputeConfig  `toml:"compute"`
	Engine   EngineConfig   `toml:"engine"`
	Camera   CameraConfig   `toml:"camera"`
	Log      LogConfig      `toml:"log"`
}

// Default returns the configuration used when no file overrides it.
//
// Returns:
//   - Config: the defaults
func Default() Config {
	return Config{
		Window: WindowConfig{
			Title:     "Oxy Raytracer",
			Width:     1280,
			Height:    720,
			MinWidth:  320,
			MinHeight: 200,
			MaxWidth:  3840,
			MaxHeight: 2160,
		},
		Renderer: RendererConfig{
			PresentMode: PresentModeVSync,
		},
		Compute: ComputeConfig{
			ShaderPath:   "assets/shaders/raytracer.wgsl",
			Workers:      2,
			WatchShaders: true,
		},
		Engine: EngineConfig{
			TickRate: 60,
		},
		Camera: CameraConfig{
			PanSpeed:         0.01,
			ZoomSpeed:        5,
			RotationSpeed:    5,
			MouseSensitivity: 0.0001,
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatText,
		},
	}
}

// Load reads a TOML file over the defaults and validates the result. A missing file yields the defaults.
//
// Parameters:
//   - path: the file to read
//
// Returns:
//   - Config: the merged configuration
//   - error: a read, decode or validation error
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes TOML over the defaults and validates the result. Unknown keys are rejected.
//
// Parameters:
//   - data: the TOML document
//
// Returns:
//   - Config: the merged configuration
//   - error: a decode or validation error
func Parse(data []byte) (Config, error) {
	c := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, strict.String())
		}
		return Config{}, fmt.Errorf("failed to decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// maxWorkgroupInvocations is the WebGPU default limit on invocations per work group.
const maxWorkgroupInvocations = 256

// Validate checks every value that has a restricted range.
//
// Returns:
//   - error: ErrInvalidConfig wrapped with the offending key, or nil
func (c Config) Validate() error {
	switch {
	case c.Window.Width <= 0 || c.Window.Height <= 0:
		return fmt.Errorf("%w: window size must be positive, got %dx%d", ErrInvalidConfig, c.Window.Width, c.Window.Height)
	case c.Window.MinWidth < 0 || c.Window.MinHeight < 0:
		return fmt.Errorf("%w: window minimum size must not be negative", ErrInvalidConfig)
	case c.Window.MaxWidth < c.Window.MinWidth || c.Window.MaxHeight < c.Window.MinHeight:
		return fmt.Errorf("%w: window maximum size is below the minimum", ErrInvalidConfig)
	case c.Compute.ShaderPath == "":
		return fmt.Errorf("%w: compute.shader_path is empty", ErrInvalidConfig)
	case uint64(c.Compute.WorkgroupSize)*uint64(c.Compute.WorkgroupSize) > maxWorkgroupInvocations:
		return fmt.Errorf("%w: compute.workgroup_size %d exceeds %d invocations per group", ErrInvalidConfig, c.Compute.WorkgroupSize, maxWorkgroupInvocations)
	case c.Compute.Workers <= 0:
		return fmt.Errorf("%w: compute.workers must be positive, got %d", ErrInvalidConfig, c.Compute.Workers)
	case c.Engine.TickRate <= 0:
		return fmt.Errorf("%w: engine.tick_rate must be positive, got %g", ErrInvalidConfig, c.Engine.TickRate)
	case c.Engine.RenderFrameLimit < 0:
		return fmt.Errorf("%w: engine.render_frame_limit must not be negative", ErrInvalidConfig)
	}

	switch c.Renderer.PresentMode {
	case PresentModeVSync, PresentModeUncapped:
	default:
		return fmt.Errorf("%w: unknown renderer.present_mode %q", ErrInvalidConfig, c.Renderer.PresentMode)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("%w: unknown log.format %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// Encode renders the configuration as TOML, e.g. to write out a starter file.
//
// Returns:
//   - []byte: the TOML document
//   - error: an encode error
func (c Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("config: failed to encode: %w", err)
	}
	return buf.Bytes(), nil
}
