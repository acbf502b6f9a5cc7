// Package output_image holds the handle describing the raytracer's output image and the render-side cache that keeps
// exactly one GPU texture alive for the current handle.
package output_image

import (
	"fmt"
	"sync/atomic"
)

// DefaultFill is the colour a freshly allocated output image shows until the init kernel runs.
var DefaultFill = [4]byte{0, 0, 0, 255}

var nextID atomic.Uint64

// OutputImage is an immutable handle to a 2D rgba8 image. A resize replaces the handle with a new one carrying a new
// ID; handles are never mutated in place.
type OutputImage struct {
	// ID uniquely identifies the handle for the process lifetime. Zero is never issued.
	ID uint64

	// Width and Height are the image size in pixels.
	Width  uint32
	Height uint32

	// Fill is the RGBA value every pixel starts with.
	Fill [4]byte
}

// NewOutputImage allocates a new handle of the given size filled with DefaultFill.
//
// Parameters:
//   - width: the width in pixels, must be positive
//   - height: the height in pixels, must be positive
//
// Returns:
//   - OutputImage: the new handle
//   - error: an error if either dimension is zero
func NewOutputImage(width, height uint32) (OutputImage, error) {
	if width == 0 || height == 0 {
		return OutputImage{}, fmt.Errorf("output image: invalid size %dx%d", width, height)
	}
	return OutputImage{
		ID:     nextID.Add(1),
		Width:  width,
		Height: height,
		Fill:   DefaultFill,
	}, nil
}

// Valid reports whether the handle was issued by NewOutputImage.
func (o OutputImage) Valid() bool {
	return o.ID != 0
}

func (o OutputImage) String() string {
	return fmt.Sprintf("output_image#%d(%dx%d)", o.ID, o.Width, o.Height)
}
