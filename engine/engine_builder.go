package engine

import (
	"cmp"
	"time"

	"github.com/Carmen-Shannon/oxy-raytracer/engine/camera"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/scene"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithWindow sets the window whose size drives the output image and whose input drives the camera.
//
// Parameters:
//   - w: the window
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithDevice sets the GPU device. A device that is also a device.Presenter is presented after every frame; one
// that can resize its surface is reconfigured on window resizes.
//
// Parameters:
//   - d: the device, typically a renderer.Renderer
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithDevice(d device.Device) EngineBuilderOption {
	return func(e *engine) {
		e.device = d
	}
}

// WithShaderPath sets the kernel file loaded at startup and on reload.
//
// Parameters:
//   - path: path of the WGSL file
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithShaderPath(path string) EngineBuilderOption {
	return func(e *engine) {
		e.shaderPath = cmp.Or(path, e.shaderPath)
	}
}

// WithShader sets an already parsed kernel, bypassing WithShaderPath.
//
// Parameters:
//   - s: the kernel shader
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithShader(s shader.Shader) EngineBuilderOption {
	return func(e *engine) {
		e.shader = s
	}
}

// WithShaderValidation runs naga over every kernel source before pipeline creation.
//
// Parameters:
//   - enabled: true to validate
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithShaderValidation(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.validator = nil
		if enabled {
			e.validator = pipeline.NagaValidator
		}
	}
}

// WithShaderWatch recompiles the kernel whenever its file changes on disk.
//
// Parameters:
//   - enabled: true to watch
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithShaderWatch(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.watchShader = enabled
	}
}

// WithWorkers sets how many pipelines may compile concurrently.
//
// Parameters:
//   - n: the number of compile workers, ignored when not positive
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWorkers(n int) EngineBuilderOption {
	return func(e *engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithWorkgroupSize rewrites the kernel's @workgroup_size to n×n×1 on every load and reload. Dispatch grids follow
// the rewritten size.
//
// Parameters:
//   - n: the group size, 0 to use the kernel's
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWorkgroupSize(n uint32) EngineBuilderOption {
	return func(e *engine) {
		e.workgroupSize = n
	}
}

// WithInitialSize sets the output size used when no window is configured.
//
// Parameters:
//   - width: width in pixels
//   - height: height in pixels
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithInitialSize(width, height int) EngineBuilderOption {
	return func(e *engine) {
		e.initialSize = [2]int{width, height}
	}
}

// WithCamera replaces the default camera.
//
// Parameters:
//   - c: the camera
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithCamera(c camera.Camera) EngineBuilderOption {
	return func(e *engine) {
		e.camera = c
	}
}

// WithCameraController replaces the default camera controller.
//
// Parameters:
//   - cc: the controller
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithCameraController(cc camera.CameraController) EngineBuilderOption {
	return func(e *engine) {
		e.controller = cc
	}
}

// WithScene replaces the default two-sphere scene.
//
// Parameters:
//   - s: the scene
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithScene(s scene.Scene) EngineBuilderOption {
	return func(e *engine) {
		e.scene = s
	}
}

// WithVSync records the present mode the device was created with so the V key toggles from the right state.
//
// Parameters:
//   - enabled: true if the surface presents with vsync
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithVSync(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.vsync.Store(enabled)
	}
}

// WithTitle sets the base text of the status title shown while profiling.
//
// Parameters:
//   - title: the title
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTitle(title string) EngineBuilderOption {
	return func(e *engine) {
		e.title = cmp.Or(title, e.title)
	}
}

// WithProfiling enables or disables periodic frame statistics.
//
// Parameters:
//   - enabled: if true, enables profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled.Store(enabled)
	}
}

// WithTickRate sets the simulation tick rate.
//
// Parameters:
//   - fps: ticks per second (defaults to 60 if <= 0)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60
		}
		e.engineTickRate = time.Duration(float64(time.Second) / fps)
	}
}

// WithRenderFrameLimit caps the render frame rate.
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.SetRenderFrameLimit(fps)
	}
}
