package scene

import (
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-raytracer/common"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/buffer_registry"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/slot"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSphereLayoutMatchesSlot(t *testing.T) {
	d, ok := slot.Lookup(slot.SlotSpheres)
	require.True(t, ok)
	assert.Equal(t, d.ElementSize, SphereSize)
	assert.True(t, strings.Contains(GPUSphereSource, "struct Sphere"))
}

func TestNewSphereStoresAbsoluteRadius(t *testing.T) {
	s := NewSphere(mgl32.Vec3{1, 2, 3}, -4)
	assert.Equal(t, float32(4), s.Radius)
}

func TestDefaultSceneMatchesInitialSlotValue(t *testing.T) {
	s := NewScene()
	r, err := buffer_registry.NewBufferRegistry(slot.Declarations())
	require.NoError(t, err)
	initial, _ := r.Bytes(slot.SlotSpheres)

	require.NoError(t, s.WriteBuffers(r))
	got, _ := r.Bytes(slot.SlotSpheres)
	assert.Equal(t, initial, got)
}

func TestSceneMutation(t *testing.T) {
	s := NewScene(WithName("test"), WithSpheres())
	assert.Zero(t, s.Len())

	s.Add(NewSphere(mgl32.Vec3{0, 0, 1}, 1), NewSphere(mgl32.Vec3{0, 0, 2}, 2), NewSphere(mgl32.Vec3{0, 0, 3}, 3))
	require.NoError(t, s.Remove(1))
	assert.Error(t, s.Remove(5))
	assert.Equal(t, []float32{1, 3}, []float32{s.Spheres()[0].Radius, s.Spheres()[1].Radius})

	r, err := buffer_registry.NewBufferRegistry(slot.Declarations())
	require.NoError(t, err)
	require.NoError(t, s.WriteBuffers(r))
	got, _ := r.Bytes(slot.SlotSpheres)
	assert.Equal(t, []float32{0, 0, 1, 1, 0, 0, 3, 3}, common.BytesToFloat32s(got))

	s.Clear()
	require.NoError(t, s.WriteBuffers(r))
	got, _ = r.Bytes(slot.SlotSpheres)
	assert.Empty(t, got)
	assert.Equal(t, "test", s.Name())
}
