package scene

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/buffer_registry"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/slot"
)

// scene is the implementation of the Scene interface.
type scene struct {
	mu      *sync.Mutex
	name    string
	spheres []Sphere
}

// Scene holds the spheres the raytracer renders and writes them into the sphere slot once per tick.
// Thread-safe for concurrent access.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// Spheres returns a copy of the scene's spheres.
	//
	// Returns:
	//   - []Sphere: the spheres in insertion order
	Spheres() []Sphere

	// Len returns the number of spheres.
	//
	// Returns:
	//   - int: the sphere count
	Len() int

	// Add appends spheres to the scene.
	//
	// Parameters:
	//   - spheres: the spheres to add
	Add(spheres ...Sphere)

	// Remove deletes the sphere at index i.
	//
	// Parameters:
	//   - i: the index to remove
	//
	// Returns:
	//   - error: an error if i is out of range
	Remove(i int) error

	// Clear removes every sphere.
	Clear()

	// WriteBuffers writes the sphere array into the registry.
	//
	// Parameters:
	//   - r: the simulation-side registry
	//
	// Returns:
	//   - error: an error if the write was rejected
	WriteBuffers(r buffer_registry.BufferRegistry) error
}

var _ Scene = &scene{}

// NewScene creates a scene holding DefaultSpheres unless WithSpheres is given.
//
// Parameters:
//   - options: builder options
//
// Returns:
//   - Scene: the new scene
func NewScene(options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:      &sync.Mutex{},
		name:    "default",
		spheres: DefaultSpheres(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *scene) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *scene) Spheres() []Sphere {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.spheres)
}

func (s *scene) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spheres)
}

func (s *scene) Add(spheres ...Sphere) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spheres = append(s.spheres, spheres...)
}

func (s *scene) Remove(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.spheres) {
		return fmt.Errorf("scene: sphere index %d out of range [0, %d)", i, len(s.spheres))
	}
	s.spheres = slices.Delete(s.spheres, i, i+1)
	return nil
}

func (s *scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spheres = s.spheres[:0]
}

func (s *scene) WriteBuffers(r buffer_registry.BufferRegistry) error {
	s.mu.Lock()
	spheres := slices.Clone(s.spheres)
	s.mu.Unlock()

	if err := buffer_registry.Write(r, slot.SlotSpheres, spheres...); err != nil {
		return fmt.Errorf("scene %q: %w", s.Name(), err)
	}
	return nil
}
