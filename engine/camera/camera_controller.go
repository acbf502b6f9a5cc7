package camera

// CameraController turns window input into camera motion. Input callbacks arrive on the window thread and are
// accumulated; Apply consumes everything accumulated since the previous call on the simulation thread.
//
// While panning (middle button held) cursor motion slides the camera in its view plane; otherwise scrolling moves it
// along its viewing direction. While rotating (right button held) cursor motion turns the viewing direction.
type CameraController interface {
	// CursorMoved records the cursor position in window coordinates.
	//
	// Parameters:
	//   - x, y: the cursor position
	CursorMoved(x, y float64)

	// Scrolled records a vertical scroll offset.
	//
	// Parameters:
	//   - offset: the scroll offset, positive away from the user
	Scrolled(offset float64)

	// SetPanning records whether the pan button is held.
	//
	// Parameters:
	//   - held: true while the button is held
	SetPanning(held bool)

	// SetRotating records whether the rotate button is held.
	//
	// Parameters:
	//   - held: true while the button is held
	SetRotating(held bool)

	// Apply moves and turns c by the input accumulated since the last call and clears it.
	//
	// Parameters:
	//   - c: the camera to drive
	Apply(c Camera)

	// PanSpeed returns the world units moved per pixel of cursor motion while panning.
	//
	// Returns:
	//   - float32: the pan speed
	PanSpeed() float32

	// ZoomSpeed returns the world units moved per scroll step.
	//
	// Returns:
	//   - float32: the zoom speed
	ZoomSpeed() float32
}
