package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/binding_set"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/slot"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
)

func TestLayoutEntry(t *testing.T) {
	cases := []struct {
		kind device.BindingKind
		want wgpu.BufferBindingType
	}{
		{device.BindingKindReadOnlyStorage, wgpu.BufferBindingTypeReadOnlyStorage},
		{device.BindingKindStorage, wgpu.BufferBindingTypeStorage},
		{device.BindingKindUniform, wgpu.BufferBindingTypeUniform},
	}
	for _, tc := range cases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			e := layoutEntry(device.LayoutEntry{Binding: 3, Kind: tc.kind})
			assert.Equal(t, uint32(3), e.Binding)
			assert.Equal(t, wgpu.ShaderStageCompute, e.Visibility)
			assert.Equal(t, tc.want, e.Buffer.Type)
			assert.Zero(t, e.StorageTexture)
		})
	}
}

func TestLayoutEntryStorageTexture(t *testing.T) {
	e := layoutEntry(device.LayoutEntry{Binding: 0, Kind: device.BindingKindStorageTexture})
	assert.Equal(t, wgpu.StorageTextureAccessWriteOnly, e.StorageTexture.Access)
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, e.StorageTexture.Format)
	assert.Equal(t, wgpu.TextureViewDimension2D, e.StorageTexture.ViewDimension)
	assert.Zero(t, e.Buffer)
}

func TestLayoutEntriesForSlotTable(t *testing.T) {
	entries := binding_set.LayoutEntries(slot.Declarations())
	for _, le := range entries {
		e := layoutEntry(le)
		assert.Equal(t, le.Binding, e.Binding)
		if le.Kind == device.BindingKindStorageTexture {
			assert.Equal(t, slot.SlotOutputImage.Binding(), e.Binding)
			continue
		}
		assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, e.Buffer.Type, "binding %d", e.Binding)
	}
}

func TestResourceAccessors(t *testing.T) {
	tex := &wgpuTexture{releaseOnce: newReleaseOnce(), width: 640, height: 480}
	assert.Equal(t, uint32(640), tex.Width())
	assert.Equal(t, uint32(480), tex.Height())

	buf := &wgpuBuffer{releaseOnce: newReleaseOnce(), size: 64}
	assert.Equal(t, uint64(64), buf.Size())

	p := &wgpuPipeline{releaseOnce: newReleaseOnce(), entryPoint: "update"}
	assert.Equal(t, "update", p.EntryPoint())
}

func TestReleaseOnce(t *testing.T) {
	r := newReleaseOnce()
	calls := 0
	for i := 0; i < 3; i++ {
		r.once.Do(func() { calls++ })
	}
	assert.Equal(t, 1, calls)

	copied := r
	copied.once.Do(func() { calls++ })
	assert.Equal(t, 1, calls, "copies share the guard")
}
