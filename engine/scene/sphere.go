package scene

import (
	_ "embed"
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// GPUSphereSource is the WGSL declaration of Sphere, injected into shaders by the //@oxy:include sphere directive.
//
//go:embed assets/sphere.wgsl
var GPUSphereSource string

// Sphere is one scene object as the kernels read it: a vec3 position followed by the radius, 16 bytes with no
// padding.
type Sphere struct {
	Position mgl32.Vec3
	Radius   float32
}

// SphereSize is the size of a Sphere in bytes.
const SphereSize = int(unsafe.Sizeof(Sphere{}))

// NewSphere creates a sphere at position. The radius is stored as its absolute value.
//
// Parameters:
//   - position: the world-space centre
//   - radius: the radius, negative values are flipped
//
// Returns:
//   - Sphere: the new sphere
func NewSphere(position mgl32.Vec3, radius float32) Sphere {
	return Sphere{Position: position, Radius: math32.Abs(radius)}
}

// DefaultSpheres returns the scene the raytracer starts with.
//
// Returns:
//   - []Sphere: the default spheres
func DefaultSpheres() []Sphere {
	return []Sphere{
		NewSphere(mgl32.Vec3{0, 0, 5}, 1),
		NewSphere(mgl32.Vec3{4, 0, 5}, 2),
	}
}
