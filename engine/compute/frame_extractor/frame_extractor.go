// Package frame_extractor copies the simulation-side state the render stage needs into one immutable snapshot per
// frame.
package frame_extractor

import (
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/buffer_registry"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/output_image"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/resize_coordinator"
)

// Snapshot is the render-side view of one frame. Every field is extracted together; the registry is a deep copy
// owned by whoever holds the snapshot.
type Snapshot struct {
	// Frame is the index of the simulation frame the snapshot was taken at, starting at 1.
	Frame uint64

	// Registry is the render-side copy of the buffer registry.
	Registry buffer_registry.BufferRegistry

	// Image is the output image handle the registry's resolution values belong to.
	Image output_image.OutputImage

	// WindowSize is the output size observed this frame.
	WindowSize resize_coordinator.Size

	// Display is the presentation target this frame.
	Display resize_coordinator.Display
}

// frameExtractor is the implementation of the FrameExtractor interface.
type frameExtractor struct {
	registry    buffer_registry.BufferRegistry
	coordinator resize_coordinator.ResizeCoordinator
	frame       uint64
}

// FrameExtractor produces a Snapshot once per frame after every simulation-side producer has run.
type FrameExtractor interface {
	// Extract copies the current registry, image, window size and display into a new Snapshot.
	//
	// Returns:
	//   - Snapshot: the frame's snapshot
	Extract() Snapshot

	// Frame returns the index of the last extracted frame, zero before the first Extract.
	//
	// Returns:
	//   - uint64: the last frame index
	Frame() uint64
}

var _ FrameExtractor = &frameExtractor{}

// NewFrameExtractor creates an extractor reading from the simulation-side registry and resize coordinator.
//
// Parameters:
//   - registry: the simulation-side buffer registry
//   - coordinator: the simulation-side resize coordinator
//
// Returns:
//   - FrameExtractor: the new extractor
func NewFrameExtractor(registry buffer_registry.BufferRegistry, coordinator resize_coordinator.ResizeCoordinator) FrameExtractor {
	return &frameExtractor{registry: registry, coordinator: coordinator}
}

func (e *frameExtractor) Extract() Snapshot {
	e.frame++
	return Snapshot{
		Frame:      e.frame,
		Registry:   e.registry.Clone(),
		Image:      e.coordinator.Image(),
		WindowSize: e.coordinator.Current(),
		Display:    e.coordinator.Display(),
	}
}

func (e *frameExtractor) Frame() uint64 {
	return e.frame
}
