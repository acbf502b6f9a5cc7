package resize_coordinator

type ResizeCoordinatorBuilderOption func(*resizeCoordinator)

// WithInitialSize sets the size the initial output image is allocated at.
//
// Parameters:
//   - width, height: the initial size in pixels
//
// Returns:
//   - ResizeCoordinatorBuilderOption: a function that sets the initial size
func WithInitialSize(width, height float32) ResizeCoordinatorBuilderOption {
	return func(c *resizeCoordinator) {
		c.current = Size{Width: width, Height: height}
	}
}

// WithListener registers a resize listener at construction.
//
// Parameters:
//   - l: the listener to add
//
// Returns:
//   - ResizeCoordinatorBuilderOption: a function that adds the listener
func WithListener(l ResizeListener) ResizeCoordinatorBuilderOption {
	return func(c *resizeCoordinator) {
		c.AddListener(l)
	}
}
