package camera

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-raytracer/common"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/buffer_registry"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/slot"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-5

func assertVec3(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	assert.True(t, want.ApproxEqualThreshold(got, eps), "want %v, got %v", want, got)
}

func TestDefaultCamera(t *testing.T) {
	c := NewCamera()
	c.Update()

	assertVec3(t, mgl32.Vec3{0, 0, 1}, c.Front())
	assertVec3(t, mgl32.Vec3{-1, 0, 0}, c.Right())
	assert.True(t, mgl32.Ident4().ApproxEqualThreshold(c.InverseViewMatrix(), eps))
}

func TestInverseViewMapsCameraToWorld(t *testing.T) {
	c := NewCamera(WithPosition(1, 2, 3), WithFront(1, 0, 1))
	c.Update()
	inv := c.InverseViewMatrix()

	assertVec3(t, mgl32.Vec3{1, 2, 3}, inv.Mul4x1(mgl32.Vec4{0, 0, 0, 1}).Vec3())
	assertVec3(t, c.Front(), inv.Mul4x1(mgl32.Vec4{0, 0, 1, 0}).Vec3())
	assertVec3(t, mgl32.Vec3{0, 1, 0}, inv.Mul4x1(mgl32.Vec4{0, 1, 0, 0}).Vec3())
}

func TestLookAtLHForwardIsPositiveZ(t *testing.T) {
	eye := mgl32.Vec3{0, 0, -5}
	view := LookAtLH(eye, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})
	p := view.Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assertVec3(t, mgl32.Vec3{0, 0, 5}, p.Vec3())
}

func TestSetFrontIgnoresZeroVector(t *testing.T) {
	c := NewCamera()
	c.SetFront(mgl32.Vec3{})
	assertVec3(t, mgl32.Vec3{0, 0, 1}, c.Front())
	c.SetFront(mgl32.Vec3{0, 0, -3})
	assertVec3(t, mgl32.Vec3{0, 0, -1}, c.Front())
}

func TestWriteBuffers(t *testing.T) {
	r, err := buffer_registry.NewBufferRegistry(slot.Declarations())
	require.NoError(t, err)

	c := NewCamera(WithPosition(1, 2, 3))
	c.Update()
	require.NoError(t, c.WriteBuffers(r))

	pos, _ := r.Bytes(slot.SlotCameraPosition)
	assert.Equal(t, []float32{1, 2, 3}, common.BytesToFloat32s(pos))
	dir, _ := r.Bytes(slot.SlotCameraDirection)
	assert.Equal(t, []float32{0, 0, 1}, common.BytesToFloat32s(dir))
	inv, _ := r.Bytes(slot.SlotInverseViewMatrix)
	m := c.InverseViewMatrix()
	assert.Equal(t, m[:], common.BytesToFloat32s(inv))
}

func TestControllerZoomsAlongFront(t *testing.T) {
	c := NewCamera()
	cc := NewCameraController()

	cc.Scrolled(1)
	cc.Scrolled(0.5)
	cc.Apply(c)
	assertVec3(t, mgl32.Vec3{0, 0, 7.5}, c.Position())

	cc.Apply(c)
	assertVec3(t, mgl32.Vec3{0, 0, 7.5}, c.Position())
}

func TestControllerPansInsteadOfZoomingWhileHeld(t *testing.T) {
	c := NewCamera()
	cc := NewCameraController()

	cc.CursorMoved(100, 100)
	cc.SetPanning(true)
	cc.CursorMoved(110, 100)
	cc.Scrolled(3)
	cc.Apply(c)

	// tangent of +Z front is +X
	assertVec3(t, mgl32.Vec3{0.1, 0, 0}, c.Position())

	cc.CursorMoved(110, 120)
	cc.Apply(c)
	assertVec3(t, mgl32.Vec3{0.1, 0.2, 0}, c.Position())
}

func TestControllerRotates(t *testing.T) {
	c := NewCamera()
	c.Update()
	cc := NewCameraController()

	cc.CursorMoved(0, 0)
	cc.SetRotating(true)
	cc.CursorMoved(1000, 0)
	cc.Apply(c)

	// offset.x = -0.1, right = -X, so front turns towards +X
	want := mgl32.Vec3{0.5, 0, 1}.Normalize()
	assertVec3(t, want, c.Front())
	assert.InDelta(t, 1, c.Front().Len(), eps)

	cc.SetRotating(false)
	cc.CursorMoved(0, 0)
	cc.Apply(c)
	assertVec3(t, want, c.Front())
}
