// Package resize_coordinator detects output size changes on the simulation side, replaces the output image and
// notifies everything that derives state from the output size in the same frame.
package resize_coordinator

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-raytracer/common"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/output_image"
	"github.com/chewxy/math32"
)

// Size is an observed output size in pixels. The window collaborator reports sizes as floats.
type Size struct {
	Width  float32
	Height float32
}

// Empty reports whether the size has no area, as reported by a minimized window.
func (s Size) Empty() bool {
	return s.Width < 1 || s.Height < 1
}

// Pixels returns the size rounded to whole pixels.
//
// Returns:
//   - uint32: width in pixels
//   - uint32: height in pixels
func (s Size) Pixels() (uint32, uint32) {
	return uint32(math32.Round(s.Width)), uint32(math32.Round(s.Height))
}

// Aspect returns Width / Height, or zero for an empty size.
func (s Size) Aspect() float32 {
	if s.Height == 0 {
		return 0
	}
	return s.Width / s.Height
}

// Display is the presentation target as seen by the simulation side. The render side retargets the presenter when
// it observes a new Image.
type Display struct {
	Image output_image.OutputImage
	Size  Size
}

// ResizeEvent is emitted once for every resize that is acted upon.
type ResizeEvent struct {
	Previous Size
	Current  Size
	Image    output_image.OutputImage
}

// ResizeListener reacts to a resize within the same frame.
type ResizeListener interface {
	// OnResize is called after the new image exists and before the resize is recorded as handled.
	//
	// Parameters:
	//   - ev: the resize that occurred
	//
	// Returns:
	//   - error: a non-nil error aborts the frame; the resize is retried next frame
	OnResize(ev ResizeEvent) error
}

// ResizeListenerFunc adapts a function to ResizeListener.
type ResizeListenerFunc func(ev ResizeEvent) error

func (f ResizeListenerFunc) OnResize(ev ResizeEvent) error {
	return f(ev)
}

// resizeCoordinator is the implementation of the ResizeCoordinator interface.
type resizeCoordinator struct {
	previous      Size
	current       Size
	image         output_image.OutputImage
	display       Display
	listeners     []ResizeListener
	notifications uint64
}

// ResizeCoordinator compares the observed output size against the last size acted upon and, on change, allocates a
// new OutputImage, updates the Display, notifies listeners and only then records the new size.
//
// A ResizeCoordinator belongs to the simulation side and is not safe for concurrent use.
type ResizeCoordinator interface {
	// Update runs resize handling for one frame.
	//
	// Parameters:
	//   - current: the output size observed this frame
	//
	// Returns:
	//   - bool: true if a resize was acted upon
	//   - error: an error if the image could not be allocated or a listener failed
	Update(current Size) (bool, error)

	// Announce notifies every listener of the current state without allocating an image. The engine calls it once
	// at startup so size-derived buffers agree with the initial image before the first frame. Announcements are not
	// counted as notifications.
	//
	// Returns:
	//   - error: the first listener error
	Announce() error

	// AddListener registers l to be notified on every resize.
	//
	// Parameters:
	//   - l: the listener to add
	AddListener(l ResizeListener)

	// Image returns the authoritative output image handle.
	//
	// Returns:
	//   - output_image.OutputImage: the current image
	Image() output_image.OutputImage

	// Display returns the current presentation target.
	//
	// Returns:
	//   - Display: the display state
	Display() Display

	// Previous returns the last size acted upon.
	//
	// Returns:
	//   - Size: the last handled size
	Previous() Size

	// Current returns the size observed by the last Update.
	//
	// Returns:
	//   - Size: the last observed size
	Current() Size

	// Notifications returns the number of resize notifications emitted so far.
	//
	// Returns:
	//   - uint64: the notification count
	Notifications() uint64
}

var _ ResizeCoordinator = &resizeCoordinator{}

// NewResizeCoordinator creates a coordinator with an initial image of the configured size, 1280×720 by default.
//
// Parameters:
//   - options: builder options
//
// Returns:
//   - ResizeCoordinator: the new coordinator
//   - error: an error if the initial size is empty
func NewResizeCoordinator(options ...ResizeCoordinatorBuilderOption) (ResizeCoordinator, error) {
	c := &resizeCoordinator{
		current: Size{Width: 1280, Height: 720},
	}
	for _, option := range options {
		option(c)
	}

	if c.current.Empty() {
		return nil, fmt.Errorf("resize coordinator: empty initial size %vx%v", c.current.Width, c.current.Height)
	}
	img, err := output_image.NewOutputImage(c.current.Pixels())
	if err != nil {
		return nil, fmt.Errorf("resize coordinator: %w", err)
	}
	c.previous = c.current
	c.image = img
	c.display = Display{Image: img, Size: c.current}
	return c, nil
}

func (c *resizeCoordinator) Update(current Size) (bool, error) {
	c.current = current
	if current == c.previous || current.Empty() {
		return false, nil
	}

	img, err := output_image.NewOutputImage(current.Pixels())
	if err != nil {
		return false, fmt.Errorf("resize coordinator: %w", err)
	}
	c.image = img
	c.display = Display{Image: img, Size: current}

	ev := ResizeEvent{Previous: c.previous, Current: current, Image: img}
	c.notifications++
	if err := c.notify(ev); err != nil {
		return false, err
	}

	common.Logger().Info("resize handled",
		"from", fmt.Sprintf("%vx%v", ev.Previous.Width, ev.Previous.Height),
		"to", fmt.Sprintf("%vx%v", current.Width, current.Height),
		"image", img.String(),
	)
	c.previous = current
	return true, nil
}

func (c *resizeCoordinator) Announce() error {
	return c.notify(ResizeEvent{Previous: c.previous, Current: c.previous, Image: c.image})
}

func (c *resizeCoordinator) notify(ev ResizeEvent) error {
	var errs []error
	for _, l := range c.listeners {
		if err := l.OnResize(ev); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("resize coordinator: listener failed: %w", errors.Join(errs...))
	}
	return nil
}

func (c *resizeCoordinator) AddListener(l ResizeListener) {
	if l != nil {
		c.listeners = append(c.listeners, l)
	}
}

func (c *resizeCoordinator) Image() output_image.OutputImage {
	return c.image
}

func (c *resizeCoordinator) Display() Display {
	return c.display
}

func (c *resizeCoordinator) Previous() Size {
	return c.previous
}

func (c *resizeCoordinator) Current() Size {
	return c.current
}

func (c *resizeCoordinator) Notifications() uint64 {
	return c.notifications
}
