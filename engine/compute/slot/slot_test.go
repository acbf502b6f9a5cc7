package slot

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-raytracer/common"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticTableIsValid(t *testing.T) {
	require.NoError(t, Validate(Declarations()))
}

func TestBindingsMatchSlotOrder(t *testing.T) {
	decls := Declarations()
	require.Len(t, decls, int(slotCount))
	for i, d := range decls {
		assert.Equal(t, uint32(i), d.Slot.Binding(), d.Name())
	}
	assert.Len(t, DataDeclarations(), int(slotCount)-1)
}

func TestInitialValues(t *testing.T) {
	res, ok := Lookup(SlotScreenResolution)
	require.True(t, ok)
	assert.Equal(t, []float32{1920, 1080}, common.BytesToFloat32s(res.Initial))

	aspect, ok := Lookup(SlotScreenAspectRatio)
	require.True(t, ok)
	assert.Equal(t, []float32{float32(1920.0) / 1080.0}, common.BytesToFloat32s(aspect.Initial))

	spheres, ok := Lookup(SlotSpheres)
	require.True(t, ok)
	assert.Equal(t, []float32{0, 0, 5, 1, 4, 0, 5, 2}, common.BytesToFloat32s(spheres.Initial))
}

func TestDeclarationsReturnsCopies(t *testing.T) {
	decls := Declarations()
	decls[1].Initial[0] = 0xff
	fresh, _ := Lookup(decls[1].Slot)
	assert.Equal(t, byte(0), fresh.Initial[0])
}

func TestValidateRejectsBrokenTables(t *testing.T) {
	base := Declarations()

	tests := []struct {
		name   string
		mutate func([]Declaration) []Declaration
		want   error
	}{
		{"missing", func(d []Declaration) []Declaration { return d[:len(d)-1] }, ErrMissingSlot},
		{"duplicate", func(d []Declaration) []Declaration { return append(d, d[2]) }, ErrDuplicateSlot},
		{"unknown", func(d []Declaration) []Declaration {
			return append(d, Declaration{Slot: 42, Kind: device.BindingKindReadOnlyStorage, ElementSize: 4})
		}, ErrUnknownSlot},
		{"bad initial", func(d []Declaration) []Declaration { d[1].Initial = d[1].Initial[:4]; return d }, ErrInvalidDeclaration},
		{"image as buffer", func(d []Declaration) []Declaration { d[0].Kind = device.BindingKindUniform; return d }, ErrInvalidDeclaration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decls := make([]Declaration, len(base))
			for i := range base {
				decls[i] = base[i].clone()
			}
			assert.ErrorIs(t, Validate(tt.mutate(decls)), tt.want)
		})
	}
}

func TestFits(t *testing.T) {
	vec3, _ := Lookup(SlotCameraPosition)
	assert.True(t, vec3.Fits(12))
	assert.False(t, vec3.Fits(0))
	assert.False(t, vec3.Fits(24))

	spheres, _ := Lookup(SlotSpheres)
	assert.True(t, spheres.Fits(0))
	assert.True(t, spheres.Fits(48))
	assert.False(t, spheres.Fits(20))
}

func TestWGSL(t *testing.T) {
	d, _ := ByName("camera_position")
	assert.Equal(t, "@group(0) @binding(1) var<storage, read> camera_position: vec3<f32>;", d.WGSL())

	img, _ := Lookup(SlotOutputImage)
	assert.Equal(t, "@group(0) @binding(0) var output_image: texture_storage_2d<rgba8unorm, write>;", img.WGSL())
}
