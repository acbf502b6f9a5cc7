package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-raytracer/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// originalFront is the direction the rotation angle is reported against.
var originalFront = mgl32.Vec3{0, 0, 1}

// cameraControllerImpl is the single implementation of CameraController.
type cameraControllerImpl struct {
	mu *sync.Mutex

	// Accumulated input since the last Apply
	motion   mgl32.Vec2
	scroll   float32
	cursor   mgl32.Vec2
	hasPrior bool

	panning  bool
	rotating bool

	panSpeed         float32
	zoomSpeed        float32
	mouseSensitivity float32
	rotationSpeed    float32
}

// Compile-time interface compliance check
var _ CameraController = &cameraControllerImpl{}

// NewCameraController creates a controller with the raytracer's default speeds.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewCameraController(options ...CameraControllerOption) CameraController {
	cc := &cameraControllerImpl{
		mu:               &sync.Mutex{},
		panSpeed:         0.01,
		zoomSpeed:        5.0,
		mouseSensitivity: 0.0001,
		rotationSpeed:    5.0,
	}
	for _, option := range options {
		option(cc)
	}
	return cc
}

func (cc *cameraControllerImpl) CursorMoved(x, y float64) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	pos := mgl32.Vec2{float32(x), float32(y)}
	if cc.hasPrior {
		cc.motion = cc.motion.Add(pos.Sub(cc.cursor))
	}
	cc.cursor = pos
	cc.hasPrior = true
}

func (cc *cameraControllerImpl) Scrolled(offset float64) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.scroll += float32(offset)
}

func (cc *cameraControllerImpl) SetPanning(held bool) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.panning = held
}

func (cc *cameraControllerImpl) SetRotating(held bool) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.rotating = held
}

func (cc *cameraControllerImpl) PanSpeed() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.panSpeed
}

func (cc *cameraControllerImpl) ZoomSpeed() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.zoomSpeed
}

func (cc *cameraControllerImpl) Apply(c Camera) {
	cc.mu.Lock()
	motion, scroll := cc.motion, cc.scroll
	panning, rotating := cc.panning, cc.rotating
	cc.motion, cc.scroll = mgl32.Vec2{}, 0
	cc.mu.Unlock()

	front := c.Front()
	if panning {
		cc.pan(c, front, motion)
	} else if scroll != 0 {
		c.Translate(front.Mul(scroll * cc.zoomSpeed))
	}

	if rotating && motion != (mgl32.Vec2{}) {
		cc.rotate(c, motion)
	}
}

// pan slides the camera along the horizontal tangent of front and the bitangent perpendicular to both.
func (cc *cameraControllerImpl) pan(c Camera, front mgl32.Vec3, motion mgl32.Vec2) {
	tangent := mgl32.Vec3{front[2], 0, -front[0]}
	if tangent.Len() < minLength {
		return
	}
	tangent = tangent.Normalize()
	bitangent := front.Cross(tangent)

	c.Translate(tangent.Mul(motion[0]).Add(bitangent.Mul(motion[1])).Mul(cc.panSpeed))
}

// rotate turns the viewing direction towards the cursor motion.
func (cc *cameraControllerImpl) rotate(c Camera, motion mgl32.Vec2) {
	offset := motion.Mul(-cc.mouseSensitivity)
	front := c.Front()
	turn := c.Right().Mul(offset[0]).Sub(c.Up().Mul(offset[1])).Mul(cc.rotationSpeed)
	c.SetFront(front.Add(turn))

	angle := math32.Acos(mgl32.Clamp(c.Front().Dot(originalFront), -1, 1)) * 180 / math32.Pi
	common.Logger().Debug("camera rotated", "angle", angle)
}
