package compute

import (
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-raytracer/common"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/buffer_registry"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/pipeline_readiness"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/resize_coordinator"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/slot"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device/mock_device"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gateSource compiles pipelines on the mock device when the test opens a gate.
type gateSource struct {
	device    *mock_device.MockDevice
	layout    device.BindGroupLayout
	open      map[string]bool
	pipelines map[string]device.ComputePipeline
	retired   int
}

func (g *gateSource) Ready(entryPoint string) (device.ComputePipeline, bool, error) {
	if !g.open[entryPoint] {
		return nil, false, nil
	}
	if p, ok := g.pipelines[entryPoint]; ok {
		return p, true, nil
	}
	p, err := g.device.CreateComputePipeline(device.ComputePipelineDescriptor{EntryPoint: entryPoint, Layout: g.layout})
	if err != nil {
		return nil, false, err
	}
	g.pipelines[entryPoint] = p
	return p, true, nil
}

func (g *gateSource) ReleaseRetired() {
	g.retired++
}

func newSystem(t *testing.T, options ...SystemBuilderOption) (System, *mock_device.MockDevice, *gateSource) {
	t.Helper()
	d := mock_device.NewMockDevice()
	src := &gateSource{device: d, open: make(map[string]bool), pipelines: make(map[string]device.ComputePipeline)}
	options = append([]SystemBuilderOption{WithPresenter(d)}, options...)
	s, err := NewSystem(d, func(layout device.BindGroupLayout) (pipeline_readiness.KernelSource, error) {
		src.layout = layout
		return src, nil
	}, options...)
	require.NoError(t, err)
	t.Cleanup(s.Release)
	return s, d, src
}

func resolution(t *testing.T, r buffer_registry.BufferRegistry) []float32 {
	t.Helper()
	b, err := r.Bytes(slot.SlotScreenResolution)
	require.NoError(t, err)
	return common.BytesToFloat32s(b)
}

func TestStartupSeedsResolutionFromImage(t *testing.T) {
	s, _, _ := newSystem(t, WithInitialSize(800, 600))
	assert.Equal(t, []float32{800, 600}, resolution(t, s.Registry()))
	assert.Equal(t, uint32(800), s.Coordinator().Image().Width)
}

func TestFrameLoop(t *testing.T) {
	var cameraPos float32
	s, d, src := newSystem(t, WithProducer(ProducerFunc(func(r buffer_registry.BufferRegistry) error {
		cameraPos++
		return buffer_registry.Write(r, slot.SlotCameraPosition, [3]float32{cameraPos, 0, 0})
	})))
	d.Kernels[pipeline_readiness.EntryPointInit] = func(inv mock_device.Invocation) {
		inv.Output.Set(inv.X, inv.Y, [4]byte{255, 0, 0, 255})
	}

	size := resize_coordinator.Size{Width: 1280, Height: 720}

	// Loading: no dispatch, image shows its fill colour.
	snap, err := s.Simulate(size)
	require.NoError(t, err)
	res, err := s.Render(snap)
	require.NoError(t, err)
	assert.Equal(t, pipeline_readiness.KernelNone, res.Kernel)
	assert.True(t, res.ImageReplaced)
	assert.Empty(t, d.Dispatches())
	tex := d.Textures()[0]
	assert.Equal(t, [4]byte{0, 0, 0, 255}, tex.At(0, 0))

	src.open[pipeline_readiness.EntryPointInit] = true
	snap, err = s.Simulate(size)
	require.NoError(t, err)
	res, err = s.Render(snap)
	require.NoError(t, err)
	assert.Equal(t, pipeline_readiness.KernelInit, res.Kernel)
	assert.Equal(t, [3]uint32{160, 90, 1}, res.WorkGroups)
	assert.False(t, res.ImageReplaced)
	assert.Equal(t, [4]byte{255, 0, 0, 255}, tex.At(1279, 719))

	src.open[pipeline_readiness.EntryPointUpdate] = true
	snap, err = s.Simulate(size)
	require.NoError(t, err)
	res, err = s.Render(snap)
	require.NoError(t, err)
	assert.Equal(t, pipeline_readiness.KernelUpdate, res.Kernel)
	assert.Equal(t, pipeline_readiness.StageUpdateReady, res.Stage)

	dispatches := d.Dispatches()
	require.Len(t, dispatches, 2)
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5, 6}, dispatches[1].Bindings)

	assert.Equal(t, 3, d.Presented())
	assert.Len(t, d.PresentTargets(), 1)
	assert.Zero(t, d.LiveBuffers())
	assert.Equal(t, 3, src.retired)
	begun, ended := d.ComputeFrames()
	assert.Equal(t, 2, begun)
	assert.Equal(t, 2, ended)
}

func TestResizeKeepsImageAndResolutionInLockstep(t *testing.T) {
	s, d, src := newSystem(t)
	src.open[pipeline_readiness.EntryPointInit] = true

	sizes := []resize_coordinator.Size{
		{Width: 1280, Height: 720},
		{Width: 1920, Height: 1080},
		{Width: 1920, Height: 1080},
		{Width: 0, Height: 0},
		{Width: 640, Height: 360},
	}
	for _, size := range sizes {
		snap, err := s.Simulate(size)
		require.NoError(t, err)

		res, err := snap.Registry.Bytes(slot.SlotScreenResolution)
		require.NoError(t, err)
		assert.Equal(t, []float32{float32(snap.Image.Width), float32(snap.Image.Height)}, common.BytesToFloat32s(res))

		fr, err := s.Render(snap)
		require.NoError(t, err)
		last := d.Dispatches()[len(d.Dispatches())-1]
		assert.Equal(t, pipeline_readiness.WorkGroupCount(snap.Image.Width, snap.Image.Height, [3]uint32{8, 8, 1}), last.WorkGroupCount)
		assert.Equal(t, fr.WorkGroups, last.WorkGroupCount)
	}

	textures := d.Textures()
	require.Len(t, textures, 3)
	assert.True(t, textures[0].Released())
	assert.True(t, textures[1].Released())
	assert.False(t, textures[2].Released())
	assert.Len(t, d.PresentTargets(), 3)
	assert.Equal(t, uint64(2), s.Coordinator().Notifications())
}

func TestProducerErrorStopsFrame(t *testing.T) {
	boom := errors.New("bad write")
	s, _, _ := newSystem(t, WithProducer(ProducerFunc(func(buffer_registry.BufferRegistry) error { return boom })))
	_, err := s.Simulate(resize_coordinator.Size{Width: 1280, Height: 720})
	assert.ErrorIs(t, err, boom)
}

func TestProducerWritingUnknownSlotIsRejected(t *testing.T) {
	s, _, _ := newSystem(t, WithProducer(ProducerFunc(func(r buffer_registry.BufferRegistry) error {
		return r.WriteBytes(slot.BufferSlot(77), common.Float32sToBytes(1))
	})))
	_, err := s.Simulate(resize_coordinator.Size{Width: 1280, Height: 720})
	assert.ErrorIs(t, err, buffer_registry.ErrUnknownSlot)
}

func TestAllocationFailureIsFatal(t *testing.T) {
	s, d, _ := newSystem(t)
	d.FailTextures = true
	snap, err := s.Simulate(resize_coordinator.Size{Width: 1280, Height: 720})
	require.NoError(t, err)
	_, err = s.Render(snap)
	assert.Error(t, err)
}

func TestNewSystemRejectsBadTable(t *testing.T) {
	decls := slot.Declarations()
	_, err := NewSystem(mock_device.NewMockDevice(), func(device.BindGroupLayout) (pipeline_readiness.KernelSource, error) {
		return nil, nil
	}, WithDeclarations(decls[:3]))
	assert.ErrorIs(t, err, slot.ErrMissingSlot)
}

func TestDispatchCoversImageWithCompiledKernel(t *testing.T) {
	k, err := shader.NewShader("raytracer", `//@oxy:slots
@compute @workgroup_size(8, 8, 1)
fn init(@builtin(global_invocation_id) id: vec3<u32>) {}
@compute @workgroup_size(8, 8, 1)
fn update(@builtin(global_invocation_id) id: vec3<u32>) {}
`)
	require.NoError(t, err)

	d := mock_device.NewMockDevice()
	d.Kernels[pipeline_readiness.EntryPointInit] = func(inv mock_device.Invocation) {
		inv.Output.Set(inv.X, inv.Y, [4]byte{255, 0, 0, 255})
	}
	s, err := NewSystem(d, func(layout device.BindGroupLayout) (pipeline_readiness.KernelSource, error) {
		return pipeline.NewPipelineCache(d, layout, k)
	},
		WithInitialSize(32, 32),
		WithReadinessOptions(pipeline_readiness.WithWorkgroupSize(pipeline_readiness.KernelInit, [3]uint32{16, 16, 1})),
	)
	require.NoError(t, err)
	t.Cleanup(s.Release)

	size := resize_coordinator.Size{Width: 32, Height: 32}
	var res FrameResult
	require.Eventually(t, func() bool {
		snap, err := s.Simulate(size)
		require.NoError(t, err)
		res, err = s.Render(snap)
		require.NoError(t, err)
		return res.Kernel == pipeline_readiness.KernelInit
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, [3]uint32{4, 4, 1}, res.WorkGroups)
	out := d.Textures()[0]
	for y := range uint32(32) {
		for x := range uint32(32) {
			require.Equal(t, [4]byte{255, 0, 0, 255}, out.At(x, y), "pixel (%d, %d)", x, y)
		}
	}
}
