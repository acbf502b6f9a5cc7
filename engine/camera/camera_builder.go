package camera

import "github.com/go-gl/mathgl/mgl32"

type CameraBuilderOption func(*cameraImpl)

// WithPosition sets the camera's initial world-space position.
//
// Parameters:
//   - x, y, z: position components
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's position
func WithPosition(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.position = mgl32.Vec3{x, y, z}
	}
}

// WithFront sets the camera's initial viewing direction. A zero vector is ignored.
//
// Parameters:
//   - x, y, z: direction components
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's direction
func WithFront(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.setFront(mgl32.Vec3{x, y, z})
	}
}

// WithUp sets the camera's up vector.
//
// Parameters:
//   - x, y, z: up vector components
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's up vector
func WithUp(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.up = mgl32.Vec3{x, y, z}
	}
}
