package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-raytracer/common"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/camera"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/frame_extractor"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/pipeline_readiness"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device/mock_device"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

const kernelWGSL = `//@oxy:include sphere
//@oxy:slots

@compute @workgroup_size(8, 8, 1)
fn init(@builtin(global_invocation_id) id: vec3<u32>) {}

@compute @workgroup_size(4, 4, 1)
fn update(@builtin(global_invocation_id) id: vec3<u32>) {}
`

var red = [4]byte{255, 0, 0, 255}

func writeKernel(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "raytracer.wgsl")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

func newTestEngine(t *testing.T, d *mock_device.MockDevice, options ...EngineBuilderOption) *engine {
	t.Helper()
	options = append([]EngineBuilderOption{
		WithDevice(d),
		WithShaderPath(writeKernel(t, kernelWGSL)),
		WithInitialSize(16, 8),
		WithTickRate(200),
	}, options...)
	e, err := NewEngine(options...)
	require.NoError(t, err)
	return e.(*engine)
}

// runAsync starts Run and returns a channel receiving its result.
func runAsync(e Engine) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- e.Run()
	}()
	return done
}

func hasDispatch(d *mock_device.MockDevice, entryPoint string) bool {
	for _, dispatch := range d.Dispatches() {
		if dispatch.EntryPoint == entryPoint {
			return true
		}
	}
	return false
}

type fakeSurface struct {
	sizes [][2]int
	modes []renderer.PresentMode
}

func (s *fakeSurface) Resize(width, height int) error {
	s.sizes = append(s.sizes, [2]int{width, height})
	return nil
}

func (s *fakeSurface) SetPresentMode(mode renderer.PresentMode) {
	s.modes = append(s.modes, mode)
}

func TestNewEngineRequiresDevice(t *testing.T) {
	_, err := NewEngine()
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestNewEngineConfigurationErrors(t *testing.T) {
	d := mock_device.NewMockDevice()

	_, err := NewEngine(WithDevice(d), WithShaderPath(filepath.Join(t.TempDir(), "missing.wgsl")))
	assert.ErrorIs(t, err, os.ErrNotExist)

	noUpdate := writeKernel(t, "//@oxy:slots\n@compute @workgroup_size(8, 8, 1)\nfn init() {}\n")
	_, err = NewEngine(WithDevice(d), WithShaderPath(noUpdate))
	assert.ErrorIs(t, err, shader.ErrMissingEntryPoint)

	mismatched := writeKernel(t, `@group(0) @binding(0) var<storage, read> output_image: array<f32>;
@compute @workgroup_size(8, 8, 1)
fn init() {}
@compute @workgroup_size(8, 8, 1)
fn update() {}
`)
	_, err = NewEngine(WithDevice(d), WithShaderPath(mismatched))
	assert.ErrorIs(t, err, shader.ErrLayoutMismatch)
}

func TestEngineRunsHeadless(t *testing.T) {
	d := mock_device.NewMockDevice()
	d.Kernels[pipeline_readiness.EntryPointUpdate] = func(inv mock_device.Invocation) {
		inv.Output.Set(inv.X, inv.Y, red)
	}
	e := newTestEngine(t, d, WithProfiling(true))

	ticks := 0
	e.SetTickCallback(func(float32) { ticks++ })

	done := runAsync(e)
	require.Eventually(t, func() bool {
		return hasDispatch(d, pipeline_readiness.EntryPointUpdate)
	}, waitFor, tick)
	e.Quit()
	e.Quit()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Run did not return after Quit")
	}

	assert.Positive(t, ticks)
	assert.Equal(t, pipeline_readiness.StageUpdateReady, e.System().Readiness().Stage())
	assert.Positive(t, d.Presented())

	textures := d.Textures()
	require.NotEmpty(t, textures)
	out := textures[0]
	assert.Equal(t, red, out.At(15, 7))
	assert.True(t, out.Released(), "output image is released on shutdown")

	for _, dispatch := range d.Dispatches() {
		if dispatch.EntryPoint == pipeline_readiness.EntryPointUpdate {
			assert.Equal(t, [3]uint32{4, 2, 1}, dispatch.WorkGroupCount, "grid follows the update kernel's workgroup size")
		}
	}
}

func TestEngineWorkgroupOverrideCoversImage(t *testing.T) {
	d := mock_device.NewMockDevice()
	d.Kernels[pipeline_readiness.EntryPointUpdate] = func(inv mock_device.Invocation) {
		inv.Output.Set(inv.X, inv.Y, red)
	}
	e := newTestEngine(t, d, WithWorkgroupSize(16), WithInitialSize(40, 24))
	assert.Equal(t, [3]uint32{16, 16, 1}, e.cache.Shader().WorkgroupSize(pipeline_readiness.EntryPointUpdate))
	assert.Contains(t, e.cache.Shader().Source(), "@workgroup_size(16, 16, 1)")

	done := runAsync(e)
	require.Eventually(t, func() bool {
		return hasDispatch(d, pipeline_readiness.EntryPointUpdate)
	}, waitFor, tick)
	e.Quit()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("engine did not stop")
	}

	for _, dispatch := range d.Dispatches() {
		if dispatch.EntryPoint == pipeline_readiness.EntryPointUpdate {
			assert.Equal(t, [3]uint32{3, 2, 1}, dispatch.WorkGroupCount)
		}
	}
	out := d.Textures()[0]
	for y := range uint32(24) {
		for x := range uint32(40) {
			require.Equal(t, red, out.At(x, y), "pixel (%d, %d)", x, y)
		}
	}
}

func TestReloadShaderKeepsWorkgroupOverride(t *testing.T) {
	e := newTestEngine(t, mock_device.NewMockDevice(), WithWorkgroupSize(16))
	t.Cleanup(e.system.Release)

	require.NoError(t, e.ReloadShader())
	assert.Equal(t, [3]uint32{16, 16, 1}, e.cache.Shader().WorkgroupSize(pipeline_readiness.EntryPointInit))
	assert.Equal(t, [3]uint32{16, 16, 1}, e.cache.Shader().WorkgroupSize(pipeline_readiness.EntryPointUpdate))
}

func TestWorkgroupOverrideAppliesToPrebuiltShader(t *testing.T) {
	s, err := shader.NewShader("raytracer", kernelWGSL)
	require.NoError(t, err)
	e := newTestEngine(t, mock_device.NewMockDevice(), WithShader(s), WithWorkgroupSize(2))
	t.Cleanup(e.system.Release)

	assert.Equal(t, [3]uint32{2, 2, 1}, e.cache.Shader().WorkgroupSize(pipeline_readiness.EntryPointUpdate))
}

func TestEngineStopsOnPipelineFailure(t *testing.T) {
	d := mock_device.NewMockDevice()
	d.PipelineErrors[pipeline_readiness.EntryPointInit] = assert.AnError
	e := newTestEngine(t, d)

	select {
	case err := <-runAsync(e):
		assert.ErrorIs(t, err, pipeline_readiness.ErrPipelineFailed)
	case <-time.After(waitFor):
		e.Quit()
		t.Fatal("Run did not stop on a failed kernel")
	}
}

func TestPublishReplacesPendingSnapshot(t *testing.T) {
	e := newTestEngine(t, mock_device.NewMockDevice())
	t.Cleanup(e.system.Release)

	e.publish(frame_extractor.Snapshot{Frame: 1})
	e.publish(frame_extractor.Snapshot{Frame: 2})

	require.Len(t, e.snapshots, 1)
	assert.Equal(t, uint64(2), (<-e.snapshots).Frame)
}

func TestResizeFeedsSimulation(t *testing.T) {
	surface := &fakeSurface{}
	e := newTestEngine(t, mock_device.NewMockDevice())
	t.Cleanup(e.system.Release)
	e.surface = surface

	e.Resize(0, 0)
	e.Resize(64, 32)

	assert.Equal(t, [][2]int{{64, 32}}, surface.sizes, "zero-area sizes do not reconfigure the surface")
	width, height := e.framebufferSize()
	assert.Equal(t, 64, width)
	assert.Equal(t, 32, height)
}

func TestResizeIsObservedWhole(t *testing.T) {
	e := newTestEngine(t, mock_device.NewMockDevice())
	t.Cleanup(e.system.Release)

	stop := make(chan struct{})
	wrote := make(chan struct{})
	defer func() {
		close(stop)
		<-wrote
	}()
	go func() {
		defer close(wrote)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				e.Resize(64, 32)
			} else {
				e.Resize(1920, 1080)
			}
		}
	}()

	for range 10000 {
		width, height := e.framebufferSize()
		switch [2]int{width, height} {
		case [2]int{16, 8}, [2]int{64, 32}, [2]int{1920, 1080}:
		default:
			t.Fatalf("observed torn size %dx%d", width, height)
		}
	}
}

func TestKeyBindings(t *testing.T) {
	surface := &fakeSurface{}
	e := newTestEngine(t, mock_device.NewMockDevice())
	t.Cleanup(e.system.Release)
	e.surface = surface

	e.keyDown(common.KeyV)
	e.keyDown(common.KeyV)
	assert.Equal(t, []renderer.PresentMode{renderer.PresentModeUncapped, renderer.PresentModeVSync}, surface.modes)
	assert.Len(t, surface.sizes, 2, "present mode changes reconfigure the surface")

	e.camera.SetPosition(mgl32.Vec3{1, 2, 3})
	e.camera.SetFront(mgl32.Vec3{1, 0, 0})
	e.keyDown(common.KeySpace)
	require.NoError(t, e.applyInput(e.system.Registry()))
	assert.Equal(t, camera.DefaultPosition, e.camera.Position())
	assert.Equal(t, camera.DefaultFront, e.camera.Front())
}

func TestReloadShader(t *testing.T) {
	e := newTestEngine(t, mock_device.NewMockDevice())
	t.Cleanup(e.system.Release)
	path := e.cache.Shader().Path()

	require.Eventually(t, func() bool {
		return e.cache.State(pipeline_readiness.EntryPointUpdate) == pipeline.StateOk
	}, waitFor, tick)

	require.NoError(t, os.WriteFile(path, []byte("// v2\n"+kernelWGSL), 0o644))
	require.NoError(t, e.ReloadShader())
	assert.Contains(t, e.cache.Shader().Source(), "// v2")

	require.NoError(t, os.WriteFile(path, []byte("fn broken() {}"), 0o644))
	e.keyDown(common.KeyR)
	assert.Contains(t, e.cache.Shader().Source(), "// v2", "a failed reload keeps the running shader")
}

func TestSetTickRate(t *testing.T) {
	e := newTestEngine(t, mock_device.NewMockDevice())
	t.Cleanup(e.system.Release)

	e.SetTickRate(0)
	assert.Equal(t, time.Second/60, e.engineTickRate)
	e.SetTickRate(120)
	assert.Equal(t, time.Second/120, e.engineTickRate)

	e.SetRenderFrameLimit(50)
	assert.Equal(t, 20*time.Millisecond, e.renderFrameLimit)
	e.SetRenderFrameLimit(-1)
	assert.Zero(t, e.renderFrameLimit)
}
