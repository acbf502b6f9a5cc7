package binding_set

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-raytracer/common"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/buffer_registry"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/frame_extractor"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/output_image"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/resize_coordinator"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/slot"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device/mock_device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// partialRegistry hides the last slot of a real registry.
type partialRegistry struct {
	buffer_registry.BufferRegistry
}

func (p partialRegistry) Slots() []slot.BufferSlot {
	s := p.BufferRegistry.Slots()
	return s[:len(s)-1]
}

type fixture struct {
	device    *mock_device.MockDevice
	assembler BindingSetAssembler
	registry  buffer_registry.BufferRegistry
	extractor frame_extractor.FrameExtractor
	cache     output_image.ImageCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	d := mock_device.NewMockDevice()
	a, err := NewBindingSetAssembler(d, slot.Declarations())
	require.NoError(t, err)
	reg, err := buffer_registry.NewBufferRegistry(slot.Declarations())
	require.NoError(t, err)
	coord, err := resize_coordinator.NewResizeCoordinator()
	require.NoError(t, err)
	return &fixture{
		device:    d,
		assembler: a,
		registry:  reg,
		extractor: frame_extractor.NewFrameExtractor(reg, coord),
		cache:     output_image.NewImageCache(d),
	}
}

func (f *fixture) snapshot(t *testing.T) (frame_extractor.Snapshot, device.Texture) {
	t.Helper()
	snap := f.extractor.Extract()
	tex, _, err := f.cache.Resolve(snap.Image)
	require.NoError(t, err)
	return snap, tex
}

func TestAssembleDefaultRegistry(t *testing.T) {
	f := newFixture(t)
	snap, tex := f.snapshot(t)

	set, err := f.assembler.Assemble(snap, tex)
	require.NoError(t, err)
	defer set.Release()

	decls := slot.Declarations()
	entries := set.Entries()
	require.Len(t, entries, len(slot.DataDeclarations())+1)
	for i, e := range entries {
		assert.Equal(t, decls[i].Slot, e.Slot)
		assert.True(t, (e.Buffer != nil) != (e.Texture != nil), e.Slot.String())
	}
	assert.Same(t, tex, entries[0].Texture)
	assert.NotNil(t, set.BindGroup())
	assert.Equal(t, snap.Frame, set.Frame())

	want := make([]slot.BufferSlot, len(decls))
	for i, d := range decls {
		want[i] = d.Slot
	}
	assert.Equal(t, want, set.Slots())

	res := entries[slot.SlotScreenResolution].Buffer.(*mock_device.MockBuffer)
	assert.Equal(t, []float32{1920, 1080}, common.BytesToFloat32s(res.Data))
}

func TestAssembleFreshEveryFrame(t *testing.T) {
	f := newFixture(t)

	snap, tex := f.snapshot(t)
	first, err := f.assembler.Assemble(snap, tex)
	require.NoError(t, err)
	first.Release()
	assert.Zero(t, f.device.LiveBuffers())

	require.NoError(t, buffer_registry.Write(f.registry, slot.SlotCameraPosition, [3]float32{4, 5, 6}))
	snap, tex = f.snapshot(t)
	second, err := f.assembler.Assemble(snap, tex)
	require.NoError(t, err)
	assert.Equal(t, len(slot.DataDeclarations()), f.device.LiveBuffers())

	pos := second.Entries()[slot.SlotCameraPosition].Buffer.(*mock_device.MockBuffer)
	assert.Equal(t, []float32{4, 5, 6}, common.BytesToFloat32s(pos.Data))

	second.Release()
	second.Release()
	assert.Zero(t, f.device.LiveBuffers())
	groups := f.device.BindGroups()
	require.Len(t, groups, 2)
	assert.True(t, groups[0].Released())
	assert.True(t, groups[1].Released())
}

func TestAssemblePadsEmptyArrays(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.registry.WriteBytes(slot.SlotSpheres, nil))
	snap, tex := f.snapshot(t)

	set, err := f.assembler.Assemble(snap, tex)
	require.NoError(t, err)
	defer set.Release()

	spheres := set.Entries()[slot.SlotSpheres].Buffer.(*mock_device.MockBuffer)
	assert.Equal(t, make([]byte, 16), spheres.Data)
}

func TestAssembleRejectsIncompleteRegistry(t *testing.T) {
	f := newFixture(t)
	snap, tex := f.snapshot(t)
	snap.Registry = partialRegistry{snap.Registry}

	_, err := f.assembler.Assemble(snap, tex)
	assert.ErrorIs(t, err, ErrIncompleteBindingSet)
	assert.Zero(t, f.device.LiveBuffers())

	snap.Registry = nil
	_, err = f.assembler.Assemble(snap, tex)
	assert.ErrorIs(t, err, ErrIncompleteBindingSet)
}

func TestAssembleRejectsMismatchedImage(t *testing.T) {
	f := newFixture(t)
	snap, _ := f.snapshot(t)

	_, err := f.assembler.Assemble(snap, nil)
	assert.ErrorIs(t, err, ErrImageMismatch)

	other, err := f.device.CreateStorageTexture("other", 3, 3, output_image.DefaultFill)
	require.NoError(t, err)
	_, err = f.assembler.Assemble(snap, other)
	assert.ErrorIs(t, err, ErrImageMismatch)
}

func TestAssembleReleasesOnDeviceFailure(t *testing.T) {
	f := newFixture(t)
	snap, tex := f.snapshot(t)

	f.device.FailBuffers = true
	_, err := f.assembler.Assemble(snap, tex)
	assert.Error(t, err)
	assert.Zero(t, f.device.LiveBuffers())
}

func TestNewBindingSetAssemblerRejectsBadTable(t *testing.T) {
	decls := slot.Declarations()
	_, err := NewBindingSetAssembler(mock_device.NewMockDevice(), decls[1:])
	assert.ErrorIs(t, err, slot.ErrMissingSlot)
}

func TestLayoutEntriesFollowDeclarations(t *testing.T) {
	entries := LayoutEntries(slot.Declarations())
	require.Len(t, entries, 7)
	assert.Equal(t, device.LayoutEntry{Binding: 0, Kind: device.BindingKindStorageTexture}, entries[0])
	for _, e := range entries[1:] {
		assert.Equal(t, device.BindingKindReadOnlyStorage, e.Kind)
	}
}
