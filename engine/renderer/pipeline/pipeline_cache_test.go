package pipeline

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/binding_set"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/pipeline_readiness"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/slot"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device/mock_device"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/shader"
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

@compute @workgroup_size(8, 8, 1)
fn update(@builtin(global_invocation_id) id: vec3<u32>) {}
`

func newKernel(t *testing.T, marker string) shader.Shader {
	t.Helper()
	s, err := shader.NewShader("raytracer", "// "+marker+"\n"+kernelWGSL)
	require.NoError(t, err)
	return s
}

func newLayout(t *testing.T, d device.Device) device.BindGroupLayout {
	t.Helper()
	l, err := d.CreateBindGroupLayout("test layout", binding_set.LayoutEntries(slot.Declarations()))
	require.NoError(t, err)
	return l
}

func waitReady(t *testing.T, c PipelineCache, entryPoint string) device.ComputePipeline {
	t.Helper()
	var p device.ComputePipeline
	require.Eventually(t, func() bool {
		got, ok, err := c.Ready(entryPoint)
		require.NoError(t, err)
		p = got
		return ok
	}, waitFor, tick)
	return p
}

func TestPipelineCache_CompilesInBackground(t *testing.T) {
	d := mock_device.NewMockDevice()
	gate := make(chan struct{})
	d.CompileGate = gate

	c, err := NewPipelineCache(d, newLayout(t, d), newKernel(t, "v1"))
	require.NoError(t, err)

	p, ok, err := c.Ready(pipeline_readiness.EntryPointInit)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, p)
	assert.Contains(t, []State{StateQueued, StateCompiling}, c.State(pipeline_readiness.EntryPointInit))

	close(gate)
	initP := waitReady(t, c, pipeline_readiness.EntryPointInit)
	updateP := waitReady(t, c, pipeline_readiness.EntryPointUpdate)
	assert.Equal(t, pipeline_readiness.EntryPointInit, initP.EntryPoint())
	assert.Equal(t, pipeline_readiness.EntryPointUpdate, updateP.EntryPoint())
	assert.Equal(t, StateOk, c.State(pipeline_readiness.EntryPointInit))
	labels := make([]string, 0, 2)
	for _, mp := range d.Pipelines() {
		labels = append(labels, mp.Label)
	}
	assert.ElementsMatch(t, []string{"Raytracer init Pipeline", "Raytracer update Pipeline"}, labels)
}

func TestPipelineCache_QueueIsIdempotent(t *testing.T) {
	d := mock_device.NewMockDevice()
	c, err := NewPipelineCache(d, newLayout(t, d), newKernel(t, "v1"), WithPreload(pipeline_readiness.EntryPointInit))
	require.NoError(t, err)

	waitReady(t, c, pipeline_readiness.EntryPointInit)
	assert.Equal(t, StateOk, c.Queue(pipeline_readiness.EntryPointInit))
	assert.Equal(t, StateUnknown, c.State(pipeline_readiness.EntryPointUpdate))

	waitReady(t, c, pipeline_readiness.EntryPointUpdate)
	assert.Len(t, d.Pipelines(), 2)
}

func TestPipelineCache_CompileFailure(t *testing.T) {
	d := mock_device.NewMockDevice()
	boom := errors.New("boom")
	d.PipelineErrors[pipeline_readiness.EntryPointUpdate] = boom

	c, err := NewPipelineCache(d, newLayout(t, d), newKernel(t, "v1"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return c.State(pipeline_readiness.EntryPointUpdate) == StateErr
	}, waitFor, tick)
	_, ok, err := c.Ready(pipeline_readiness.EntryPointUpdate)
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)

	waitReady(t, c, pipeline_readiness.EntryPointInit)
}

func TestPipelineCache_MissingEntryPoint(t *testing.T) {
	d := mock_device.NewMockDevice()
	c, err := NewPipelineCache(d, newLayout(t, d), newKernel(t, "v1"))
	require.NoError(t, err)

	assert.Equal(t, StateErr, c.Queue("render"))
	_, _, err = c.Ready("render")
	assert.ErrorIs(t, err, shader.ErrMissingEntryPoint)

	s, err := shader.NewShader("init only", "//@oxy:slots\n@compute fn init() {}")
	require.NoError(t, err)
	_, err = NewPipelineCache(d, newLayout(t, d), s)
	assert.ErrorIs(t, err, shader.ErrMissingEntryPoint)
}

func TestPipelineCache_ValidatorRunsOnWorker(t *testing.T) {
	d := mock_device.NewMockDevice()
	invalid := errors.New("invalid")
	c, err := NewPipelineCache(d, newLayout(t, d), newKernel(t, "v1"), WithValidator(func(source string) error {
		if strings.Contains(source, "v1") {
			return invalid
		}
		return nil
	}))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return c.State(pipeline_readiness.EntryPointInit) == StateErr
	}, waitFor, tick)
	_, _, err = c.Ready(pipeline_readiness.EntryPointInit)
	assert.ErrorIs(t, err, invalid)
	assert.Empty(t, d.Pipelines())
}

func TestPipelineCache_ReloadSwapsAfterCompile(t *testing.T) {
	d := mock_device.NewMockDevice()
	c, err := NewPipelineCache(d, newLayout(t, d), newKernel(t, "v1"))
	require.NoError(t, err)
	old := waitReady(t, c, pipeline_readiness.EntryPointInit).(*mock_device.MockPipeline)
	waitReady(t, c, pipeline_readiness.EntryPointUpdate)

	gate := make(chan struct{})
	d.CompileGate = gate
	require.NoError(t, c.Reload(newKernel(t, "v2")))

	p, ok, err := c.Ready(pipeline_readiness.EntryPointInit)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, old, p, "previous pipeline keeps serving while the reload compiles")
	assert.Equal(t, StateOk, c.State(pipeline_readiness.EntryPointInit))

	close(gate)
	require.Eventually(t, func() bool {
		p, _, _ := c.Ready(pipeline_readiness.EntryPointInit)
		return p != device.ComputePipeline(old)
	}, waitFor, tick)
	p, _, _ = c.Ready(pipeline_readiness.EntryPointInit)
	assert.Contains(t, p.(*mock_device.MockPipeline).Source, "v2")

	assert.False(t, old.Released(), "retired pipelines wait for the render side")
	c.ReleaseRetired()
	assert.True(t, old.Released())
}

func TestPipelineCache_ReloadFailureKeepsPrevious(t *testing.T) {
	d := mock_device.NewMockDevice()
	c, err := NewPipelineCache(d, newLayout(t, d), newKernel(t, "v1"), WithValidator(func(source string) error {
		if strings.Contains(source, "broken") {
			return errors.New("broken")
		}
		return nil
	}))
	require.NoError(t, err)
	old := waitReady(t, c, pipeline_readiness.EntryPointInit)

	require.NoError(t, c.Reload(newKernel(t, "broken")))
	assert.Never(t, func() bool {
		p, ok, err := c.Ready(pipeline_readiness.EntryPointInit)
		return err != nil || !ok || p != old
	}, 100*time.Millisecond, tick)
	assert.Equal(t, StateOk, c.State(pipeline_readiness.EntryPointInit))
}

func TestPipelineCache_ReloadRejectsLayoutMismatch(t *testing.T) {
	d := mock_device.NewMockDevice()
	v1 := newKernel(t, "v1")
	c, err := NewPipelineCache(d, newLayout(t, d), v1)
	require.NoError(t, err)

	bad, err := shader.NewShader("bad", "@group(0) @binding(1) var<uniform> camera_position: vec3<f32>;\n@compute fn init() {}\n@compute fn update() {}")
	require.NoError(t, err)
	assert.ErrorIs(t, c.Reload(bad), shader.ErrLayoutMismatch)
	assert.Same(t, v1, c.Shader())
}

func TestPipelineCache_Release(t *testing.T) {
	d := mock_device.NewMockDevice()
	c, err := NewPipelineCache(d, newLayout(t, d), newKernel(t, "v1"))
	require.NoError(t, err)
	p := waitReady(t, c, pipeline_readiness.EntryPointInit).(*mock_device.MockPipeline)
	waitReady(t, c, pipeline_readiness.EntryPointUpdate)

	c.Release()
	c.Release()
	assert.True(t, p.Released())
	_, ok, err := c.Ready(pipeline_readiness.EntryPointInit)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrCacheReleased)
	assert.ErrorIs(t, c.Reload(newKernel(t, "v2")), ErrCacheReleased)
}

func TestPipelineCache_DrivesReadiness(t *testing.T) {
	d := mock_device.NewMockDevice()
	c, err := NewPipelineCache(d, newLayout(t, d), newKernel(t, "v1"))
	require.NoError(t, err)

	m := pipeline_readiness.NewPipelineReadinessStateMachine(c)
	require.Eventually(t, func() bool {
		stage, err := m.Poll()
		require.NoError(t, err)
		return stage == pipeline_readiness.StageUpdateReady
	}, waitFor, tick)
	assert.Equal(t, pipeline_readiness.KernelUpdate, m.Kernel())
}

func TestNagaValidator_RejectsInvalidSource(t *testing.T) {
	assert.ErrorIs(t, NagaValidator("fn broken( {"), ErrInvalidShader)
}

func TestPipelineCache_ReloadChangesWorkgroupSize(t *testing.T) {
	d := mock_device.NewMockDevice()
	d.Kernels[pipeline_readiness.EntryPointInit] = func(inv mock_device.Invocation) {
		inv.Output.Set(inv.X, inv.Y, [4]byte{255, 0, 0, 255})
	}
	c, err := NewPipelineCache(d, newLayout(t, d), newKernel(t, "v1"))
	require.NoError(t, err)
	old := waitReady(t, c, pipeline_readiness.EntryPointInit)
	waitReady(t, c, pipeline_readiness.EntryPointUpdate)

	m := pipeline_readiness.NewPipelineReadinessStateMachine(c)
	_, err = m.Poll()
	require.NoError(t, err)
	require.Equal(t, pipeline_readiness.StageInitReady, m.Stage())

	gate := make(chan struct{})
	d.CompileGate = gate
	wide, err := shader.NewShader("raytracer", strings.ReplaceAll(kernelWGSL, "@workgroup_size(8, 8, 1)", "@workgroup_size(16, 2, 1)"))
	require.NoError(t, err)
	require.NoError(t, c.Reload(wide))

	p, size, ok, err := c.ReadySized(pipeline_readiness.EntryPointInit)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, old, p)
	assert.Equal(t, [3]uint32{8, 8, 1}, size, "the size follows the pipeline that is serving")

	close(gate)
	require.Eventually(t, func() bool {
		p, _, _ := c.Ready(pipeline_readiness.EntryPointInit)
		return p != old
	}, waitFor, tick)
	_, size, _, _ = c.ReadySized(pipeline_readiness.EntryPointInit)
	assert.Equal(t, [3]uint32{16, 2, 1}, size)

	tex, err := d.CreateStorageTexture("out", 40, 9, [4]byte{0, 0, 0, 255})
	require.NoError(t, err)
	layout, err := d.CreateBindGroupLayout("out layout", []device.LayoutEntry{{Binding: 0, Kind: device.BindingKindStorageTexture}})
	require.NoError(t, err)
	bg, err := d.CreateBindGroup("out group", layout, []device.BindEntry{{Binding: 0, Texture: tex}})
	require.NoError(t, err)

	require.NoError(t, d.BeginComputeFrame())
	_, count, err := m.Dispatch(d, bg, 40, 9)
	require.NoError(t, err)
	d.EndComputeFrame()
	assert.Equal(t, [3]uint32{3, 5, 1}, count)

	out := tex.(*mock_device.MockTexture)
	for y := range uint32(9) {
		for x := range uint32(40) {
			require.Equal(t, [4]byte{255, 0, 0, 255}, out.At(x, y), "pixel (%d, %d)", x, y)
		}
	}
}
