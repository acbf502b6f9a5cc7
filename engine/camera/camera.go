package camera

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/buffer_registry"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/slot"
	"github.com/go-gl/mathgl/mgl32"
)

// minLength is the length below which a direction is treated as degenerate and ignored.
const minLength = 1e-6

// Default pose of a new camera.
var (
	DefaultPosition = mgl32.Vec3{0, 0, 0}
	DefaultFront    = mgl32.Vec3{0, 0, 1}
	DefaultUp       = mgl32.Vec3{0, 1, 0}
)

type cameraImpl struct {
	mu *sync.Mutex

	position mgl32.Vec3
	front    mgl32.Vec3
	up       mgl32.Vec3
	right    mgl32.Vec3

	inverseViewMatrix mgl32.Mat4
}

// Camera is the raytracer's eye. It holds position and orientation and derives the inverse view matrix the kernels
// use to turn pixel coordinates into world-space rays. Once per tick the engine calls Update and then WriteBuffers.
type Camera interface {
	// Position returns the world-space camera position.
	//
	// Returns:
	//   - mgl32.Vec3: the position
	Position() mgl32.Vec3

	// Front returns the normalised viewing direction.
	//
	// Returns:
	//   - mgl32.Vec3: the viewing direction
	Front() mgl32.Vec3

	// Up returns the camera's up vector.
	//
	// Returns:
	//   - mgl32.Vec3: the up vector
	Up() mgl32.Vec3

	// Right returns normalize(cross(front, up)) as of the last Update.
	//
	// Returns:
	//   - mgl32.Vec3: the right vector
	Right() mgl32.Vec3

	// InverseViewMatrix returns the inverse of the left-handed look-at matrix as of the last Update.
	//
	// Returns:
	//   - mgl32.Mat4: the camera-to-world matrix
	InverseViewMatrix() mgl32.Mat4

	// SetPosition moves the camera.
	//
	// Parameters:
	//   - p: the new world-space position
	SetPosition(p mgl32.Vec3)

	// Translate moves the camera by delta.
	//
	// Parameters:
	//   - delta: the world-space offset
	Translate(delta mgl32.Vec3)

	// SetFront points the camera along dir. A zero-length dir is ignored.
	//
	// Parameters:
	//   - dir: the new viewing direction, normalised on store
	SetFront(dir mgl32.Vec3)

	// Update recomputes the right vector and the inverse view matrix.
	Update()

	// WriteBuffers writes position, direction and inverse view matrix into the registry.
	//
	// Parameters:
	//   - r: the simulation-side registry
	//
	// Returns:
	//   - error: an error if a write was rejected
	WriteBuffers(r buffer_registry.BufferRegistry) error
}

var _ Camera = &cameraImpl{}

// NewCamera creates a camera at the origin looking down +Z with +Y up.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the new camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:                &sync.Mutex{},
		position:          DefaultPosition,
		front:             DefaultFront,
		up:                DefaultUp,
		right:             mgl32.Vec3{1, 0, 0},
		inverseViewMatrix: mgl32.Ident4(),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *cameraImpl) Position() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) Front() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.front
}

func (c *cameraImpl) Up() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

func (c *cameraImpl) Right() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.right
}

func (c *cameraImpl) InverseViewMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inverseViewMatrix
}

func (c *cameraImpl) SetPosition(p mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = p
}

func (c *cameraImpl) Translate(delta mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = c.position.Add(delta)
}

func (c *cameraImpl) SetFront(dir mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setFront(dir)
}

// setFront stores dir normalised. Caller must hold the mutex.
func (c *cameraImpl) setFront(dir mgl32.Vec3) {
	if dir.Len() < minLength {
		return
	}
	c.front = dir.Normalize()
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if right := c.front.Cross(c.up); right.Len() >= minLength {
		c.right = right.Normalize()
	}
	c.inverseViewMatrix = LookAtLH(c.position, c.position.Add(c.front), c.up).Inv()
}

func (c *cameraImpl) WriteBuffers(r buffer_registry.BufferRegistry) error {
	c.mu.Lock()
	pos, front, inv := c.position, c.front, c.inverseViewMatrix
	c.mu.Unlock()

	if err := buffer_registry.Write(r, slot.SlotCameraPosition, pos); err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	if err := buffer_registry.Write(r, slot.SlotCameraDirection, front); err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	if err := buffer_registry.Write(r, slot.SlotInverseViewMatrix, inv); err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	return nil
}

// LookAtLH builds a left-handed view matrix looking from eye towards center. The forward axis maps to +Z.
//
// Parameters:
//   - eye: the camera position
//   - center: the point looked at
//   - up: the up direction
//
// Returns:
//   - mgl32.Mat4: the world-to-camera matrix
func LookAtLH(eye, center, up mgl32.Vec3) mgl32.Mat4 {
	f := center.Sub(eye).Normalize()
	s := up.Cross(f).Normalize()
	u := f.Cross(s)

	return mgl32.Mat4FromCols(
		mgl32.Vec4{s[0], u[0], f[0], 0},
		mgl32.Vec4{s[1], u[1], f[1], 0},
		mgl32.Vec4{s[2], u[2], f[2], 0},
		mgl32.Vec4{-s.Dot(eye), -u.Dot(eye), -f.Dot(eye), 1},
	)
}
