// Package engine runs the raytracer: a simulation goroutine that produces one snapshot per tick, a render goroutine
// that consumes them, and the window message loop on the calling goroutine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-raytracer/common"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/camera"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/buffer_registry"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/frame_extractor"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/pipeline_readiness"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/resize_coordinator"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/profiler"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/scene"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/window"
)

// ErrNoDevice is returned by NewEngine when no device was configured.
var ErrNoDevice = errors.New("engine: no device configured")

// shaderKey names the kernel in logs and errors.
const shaderKey = "raytracer"

// surfaceController is the part of a renderer driven by window events.
type surfaceController interface {
	Resize(width, height int) error
	SetPresentMode(mode renderer.PresentMode)
}

// engine implements the Engine interface.
// Coordinates the simulation, render and window threads.
type engine struct {
	tickRateChannel chan time.Duration
	snapshots       chan frame_extractor.Snapshot

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	errMu sync.Mutex
	err   error

	window  window.Window
	device  device.Device
	surface surfaceController

	shader        shader.Shader
	shaderPath    string
	workers       int
	workgroupSize uint32
	validator     pipeline.Validator
	watchShader   bool

	system     compute.System
	cache      pipeline.PipelineCache
	watcher    pipeline.ShaderWatcher
	camera     camera.Camera
	controller camera.CameraController
	scene      scene.Scene

	// size is the framebuffer width and height, written by the window thread and read by the simulation goroutine.
	// Both dimensions are swapped together so a reader never sees a size that was not reported.
	size        atomic.Pointer[[2]int]
	initialSize [2]int

	resetCamera atomic.Bool
	vsync       atomic.Bool
	title       string
	statusTitle atomic.Pointer[string]

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate   time.Duration
	renderFrameLimit time.Duration
	tickCallback     func(deltaTime float32)
}

// Engine is the main entry point of the raytracer.
type Engine interface {
	// Window returns the window the engine presents into, or nil when running headless.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// System returns the compute system.
	//
	// Returns:
	//   - compute.System: the system
	System() compute.System

	// Pipelines returns the kernel pipeline cache.
	//
	// Returns:
	//   - pipeline.PipelineCache: the cache
	Pipelines() pipeline.PipelineCache

	// Camera returns the camera producer.
	//
	// Returns:
	//   - camera.Camera: the camera
	Camera() camera.Camera

	// Scene returns the sphere scene producer.
	//
	// Returns:
	//   - scene.Scene: the scene
	Scene() scene.Scene

	// EnableProfiler enables periodic frame statistics.
	EnableProfiler()

	// DisableProfiler disables periodic frame statistics.
	DisableProfiler()

	// SetTickRate sets the simulation rate in ticks per second. The change applies immediately while running.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers a function called on the simulation goroutine at the start of every tick.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Resize reports a new framebuffer size. The window calls it automatically; headless callers use it directly.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	Resize(width, height int)

	// ReloadShader rereads the kernel from disk and recompiles it in the background. The running pipelines are
	// kept until the new ones are compiled.
	//
	// Returns:
	//   - error: a read, parse or layout error; the running pipelines are unaffected
	ReloadShader() error

	// Run starts the simulation and render goroutines and blocks until the window closes, Quit is called or a
	// frame fails. Must be called from the goroutine that created the window.
	//
	// Returns:
	//   - error: the frame error that stopped the engine, or nil
	Run() error

	// Quit signals all engine goroutines to stop. Safe to call multiple times and from any goroutine.
	Quit()
}

// NewEngine creates the compute system, kernel pipeline cache, camera and scene, and hooks up window input.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
//   - error: a configuration error from the shader, slot table, layout or pipeline cache
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		snapshots:       make(chan frame_extractor.Snapshot, 1),
		quitChannel:     make(chan struct{}),
		shaderPath:      "assets/shaders/raytracer.wgsl",
		workers:         2,
		profiler:        profiler.NewProfiler(),
		engineTickRate:  time.Second / 60,
		initialSize:     [2]int{1280, 720},
		title:           "Oxy Raytracer",
	}
	e.vsync.Store(true)

	for _, opt := range options {
		opt(e)
	}
	if e.device == nil {
		return nil, ErrNoDevice
	}
	if e.surface == nil {
		if sc, ok := e.device.(surfaceController); ok {
			e.surface = sc
		}
	}
	if e.camera == nil {
		e.camera = camera.NewCamera()
	}
	if e.controller == nil {
		e.controller = camera.NewCameraController()
	}
	if e.scene == nil {
		e.scene = scene.NewScene()
	}
	switch {
	case e.shader == nil:
		s, err := e.loadShader(shaderKey, e.shaderPath)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		e.shader = s
	case e.workgroupSize > 0:
		s, err := e.rebuildShader(e.shader)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		e.shader = s
	}

	if e.window != nil {
		e.initialSize = [2]int{e.window.Width(), e.window.Height()}
	}
	e.storeSize(e.initialSize[0], e.initialSize[1])

	systemOpts := []compute.SystemBuilderOption{
		compute.WithInitialSize(float32(e.initialSize[0]), float32(e.initialSize[1])),
		compute.WithProducer(compute.ProducerFunc(e.applyInput)),
		compute.WithProducer(e.camera),
		compute.WithProducer(e.scene),
	}
	if p, ok := e.device.(device.Presenter); ok {
		systemOpts = append(systemOpts, compute.WithPresenter(p))
	}
	sys, err := compute.NewSystem(e.device, e.newKernelSource, systemOpts...)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	e.system = sys

	if e.watchShader {
		w, err := pipeline.NewShaderWatcher(e.cache, pipeline.WithLoader(e.loadShader))
		if err != nil {
			common.Logger().Warn("shader hot reload disabled", "shader", shaderKey, "error", err)
		} else {
			e.watcher = w
		}
	}

	if e.window != nil {
		e.bindWindow()
	}

	common.Logger().Info("engine created",
		"shader", e.shader.Path(),
		"size", fmt.Sprintf("%dx%d", e.initialSize[0], e.initialSize[1]),
		"spheres", e.scene.Len(),
	)
	return e, nil
}

// newKernelSource creates the pipeline cache once the system has built its bind group layout.
func (e *engine) newKernelSource(layout device.BindGroupLayout) (pipeline_readiness.KernelSource, error) {
	cache, err := pipeline.NewPipelineCache(e.device, layout, e.shader,
		pipeline.WithWorkers(e.workers),
		pipeline.WithValidator(e.validator),
	)
	if err != nil {
		return nil, err
	}
	e.cache = cache
	return cache, nil
}

// loadShader reads the kernel at path, applying the configured work group size so the compiled kernel and the
// dispatch grid derived from it agree.
func (e *engine) loadShader(key, path string) (shader.Shader, error) {
	return shader.NewShaderFromPath(key, path, shader.WithWorkgroupSize(e.workgroupSize, e.workgroupSize))
}

// rebuildShader applies the configured work group size to a shader that was parsed without it.
func (e *engine) rebuildShader(s shader.Shader) (shader.Shader, error) {
	if s.Path() != "" {
		return e.loadShader(s.Key(), s.Path())
	}
	return shader.NewShader(s.Key(), s.Source(), shader.WithWorkgroupSize(e.workgroupSize, e.workgroupSize))
}

// storeSize publishes a framebuffer size to the simulation goroutine.
func (e *engine) storeSize(width, height int) {
	e.size.Store(&[2]int{width, height})
}

// framebufferSize returns the last size published with storeSize.
func (e *engine) framebufferSize() (int, int) {
	s := e.size.Load()
	return s[0], s[1]
}

// applyInput runs first on every tick so the camera producer writes the updated view.
func (e *engine) applyInput(_ buffer_registry.BufferRegistry) error {
	if e.resetCamera.Swap(false) {
		e.camera.SetPosition(camera.DefaultPosition)
		e.camera.SetFront(camera.DefaultFront)
	}
	e.controller.Apply(e.camera)
	e.camera.Update()
	return nil
}

// bindWindow registers the window callbacks. They run on the window thread.
func (e *engine) bindWindow() {
	e.window.SetResizeCallback(e.Resize)
	e.window.SetScrollCallback(e.controller.Scrolled)
	e.window.SetMouseMoveCallback(func(x, y float64) {
		e.controller.CursorMoved(x, y)
	})
	e.window.SetMouseButtonCallback(func(button common.MouseButton, pressed bool, x, y float64) {
		switch button {
		case common.MouseButtonMiddle:
			e.controller.SetPanning(pressed)
		case common.MouseButtonRight:
			e.controller.SetRotating(pressed)
		}
	})
	e.window.SetKeyDownCallback(e.keyDown)
	e.window.SetUpdateCallback(func() {
		if t := e.statusTitle.Swap(nil); t != nil {
			e.window.SetTitle(*t)
		}
		select {
		case <-e.quitChannel:
			e.window.RequestClose()
		default:
		}
	})
}

func (e *engine) keyDown(keyCode uint32) {
	switch keyCode {
	case common.KeyR:
		if err := e.ReloadShader(); err != nil {
			common.Logger().Warn("shader reload failed", "shader", shaderKey, "error", err)
		}
	case common.KeyV:
		e.toggleVSync()
	case common.KeySpace:
		e.resetCamera.Store(true)
	}
}

func (e *engine) toggleVSync() {
	if e.surface == nil {
		return
	}
	on := !e.vsync.Load()
	e.vsync.Store(on)
	mode := renderer.PresentModeUncapped
	if on {
		mode = renderer.PresentModeVSync
	}
	e.surface.SetPresentMode(mode)
	if err := e.surface.Resize(e.framebufferSize()); err != nil {
		common.Logger().Warn("failed to apply present mode", "vsync", on, "error", err)
		return
	}
	common.Logger().Info("present mode changed", "vsync", on)
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) System() compute.System {
	return e.system
}

func (e *engine) Pipelines() pipeline.PipelineCache {
	return e.cache
}

func (e *engine) Camera() camera.Camera {
	return e.camera
}

func (e *engine) Scene() scene.Scene {
	return e.scene
}

func (e *engine) Resize(width, height int) {
	e.storeSize(width, height)
	if width <= 0 || height <= 0 || e.surface == nil {
		return
	}
	if err := e.surface.Resize(width, height); err != nil {
		common.Logger().Warn("failed to reconfigure surface", "width", width, "height", height, "error", err)
	}
}

func (e *engine) ReloadShader() error {
	path := e.cache.Shader().Path()
	if path == "" {
		return fmt.Errorf("engine: %w: %s", pipeline.ErrNoShaderPath, shaderKey)
	}
	s, err := e.loadShader(shaderKey, path)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := e.cache.Reload(s); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	common.Logger().Info("shader reload queued", "shader", shaderKey, "path", path)
	return nil
}

func (e *engine) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e.running.Store(true)
	e.wg.Add(2)
	go e.handleSimulation()
	go e.handleRender()
	if e.watcher != nil {
		e.wg.Add(1)
		go e.handleWatcher(ctx)
	}

	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	} else {
		<-e.quitChannel
	}

	cancel()
	e.wg.Wait()
	e.running.Store(false)
	e.release()

	err := e.failure()
	if err != nil {
		common.Logger().Error("engine stopped", "error", err)
	} else {
		common.Logger().Info("engine stopped")
	}
	return err
}

func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// fail records the first frame error and stops the engine.
func (e *engine) fail(err error) {
	e.errMu.Lock()
	if e.err == nil {
		e.err = err
	}
	e.errMu.Unlock()
	e.signalQuit()
}

func (e *engine) failure() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.err
}

// release frees GPU objects and the window once every goroutine has stopped.
func (e *engine) release() {
	if e.watcher != nil {
		e.watcher.Close()
	}
	e.system.Release()
	if r, ok := e.device.(interface{ Release() }); ok {
		r.Release()
	}
	if e.window != nil {
		if err := e.window.Close(); err != nil {
			common.Logger().Warn("failed to close window", "error", err)
		}
	}
}

// handleSimulation runs the fixed-rate simulation loop. Every tick simulates one frame and hands the snapshot to
// the render goroutine.
func (e *engine) handleSimulation() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}

			width, height := e.framebufferSize()
			size := resize_coordinator.Size{Width: float32(width), Height: float32(height)}
			snap, err := e.system.Simulate(size)
			if err != nil {
				e.fail(err)
				return
			}
			e.publish(snap)
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// publish hands snap to the render goroutine, replacing a snapshot it has not picked up yet.
func (e *engine) publish(snap frame_extractor.Snapshot) {
	select {
	case e.snapshots <- snap:
		return
	default:
	}
	select {
	case old := <-e.snapshots:
		common.Logger().Warn("render side behind, snapshot dropped", "frame", old.Frame)
	default:
	}
	e.snapshots <- snap
}

// handleRender renders every snapshot it receives. A panic stops the engine with an error.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.fail(fmt.Errorf("engine: render goroutine panicked: %v", r))
		}
	}()

	for {
		select {
		case <-e.quitChannel:
			return
		case snap := <-e.snapshots:
			start := time.Now()
			res, err := e.system.Render(snap)
			if err != nil {
				e.fail(err)
				return
			}

			if e.profilingEnabled.Load() {
				if s, ok := e.profiler.Tick(res.Kernel != pipeline_readiness.KernelNone); ok {
					title := fmt.Sprintf("%s | %.1f fps | %s", e.title, s.FPS, res.Stage)
					e.statusTitle.Store(&title)
				}
			}

			if e.renderFrameLimit > 0 {
				if remaining := e.renderFrameLimit - time.Since(start); remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// handleWatcher runs the shader watcher until the engine stops.
func (e *engine) handleWatcher(ctx context.Context) {
	defer e.wg.Done()
	if err := e.watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		common.Logger().Warn("shader watcher stopped", "shader", shaderKey, "error", err)
	}
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate sets the simulation tick rate in ticks per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if !e.running.Load() {
		e.engineTickRate = newRate
		return
	}
	// Replace a pending update that the loop has not read yet.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}
