package resize_coordinator

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/buffer_registry"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/slot"
)

// NewResolutionWriter returns a listener that writes the resolution and aspect ratio slots of r from the image of
// each resize, keeping the registry and the output image in lockstep.
//
// Parameters:
//   - r: the simulation-side registry
//
// Returns:
//   - ResizeListener: the resolution writer
func NewResolutionWriter(r buffer_registry.BufferRegistry) ResizeListener {
	return ResizeListenerFunc(func(ev ResizeEvent) error {
		w, h := float32(ev.Image.Width), float32(ev.Image.Height)
		if err := buffer_registry.Write(r, slot.SlotScreenResolution, [2]float32{w, h}); err != nil {
			return fmt.Errorf("resolution writer: %w", err)
		}
		if err := buffer_registry.Write(r, slot.SlotScreenAspectRatio, w/h); err != nil {
			return fmt.Errorf("resolution writer: %w", err)
		}
		return nil
	})
}
