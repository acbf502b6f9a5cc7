package window

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-raytracer/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

var errNotInitialized = errors.New("window: not initialized")

// glfwWindow is the GLFW side of an engineWindow. Every field except closeRequested is owned by the thread that
// created the window.
type glfwWindow struct {
	parent  *engineWindow
	window  *glfw.Window
	running bool

	closeRequested atomic.Bool
}

// platform returns the GLFW window behind w, or nil before newPlatformWindow succeeded.
func platform(w *engineWindow) *glfwWindow {
	gw, _ := w.internalWindow.(*glfwWindow)
	return gw
}

// newPlatformWindow initializes GLFW, creates a window without a client API for WebGPU to render into and wires
// its callbacks. The calling goroutine stays locked to its OS thread, as GLFW requires.
//
// GLFW reference: https://www.glfw.org/docs/latest/window_guide.html
func newPlatformWindow(w *engineWindow) error {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("failed to initialize GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	win, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("failed to create GLFW window: %w", err)
	}
	win.SetSizeLimits(w.minWidth, w.minHeight, w.maxWidth, w.maxHeight)

	gw := &glfwWindow{parent: w, window: win, running: true}
	gw.bindCallbacks()
	w.internalWindow = gw

	// The framebuffer can be larger than the requested size on high-DPI displays.
	w.width, w.height = win.GetFramebufferSize()
	return nil
}

// bindCallbacks forwards GLFW events to the parent's callbacks, read at event time so they may be set later.
func (gw *glfwWindow) bindCallbacks() {
	w := gw.parent

	gw.window.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		code := uint32(key)
		if code == common.KeyEsc && action == glfw.Press {
			gw.running = false
			gw.window.SetShouldClose(true)
			return
		}
		if action == glfw.Release {
			if w.onKeyUp != nil {
				w.onKeyUp(code)
			}
			return
		}
		// Press and Repeat
		if w.onKeyDown != nil {
			w.onKeyDown(code)
		}
	})

	gw.window.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		if w.onScroll != nil {
			w.onScroll(yoff)
		}
	})

	gw.window.SetMouseButtonCallback(func(win *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		if w.onMouseButton == nil || action == glfw.Repeat {
			return
		}
		x, y := win.GetCursorPos()
		w.onMouseButton(common.MouseButton(button), action == glfw.Press, x, y)
	})

	gw.window.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		if w.onMouseMove != nil {
			w.onMouseMove(x, y)
		}
	})

	// Framebuffer size, not window size, since the output image is allocated in pixels.
	gw.window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.width, w.height = width, height
		if w.onResize != nil {
			w.onResize(width, height)
		}
	})
}

// platformGetSurfaceDescriptor returns the wgpuglfw surface descriptor of the window, or nil before creation.
//
// Reference: https://pkg.go.dev/github.com/cogentcore/webgpu/wgpuglfw#GetSurfaceDescriptor
func platformGetSurfaceDescriptor(w *engineWindow) *wgpu.SurfaceDescriptor {
	gw := platform(w)
	if gw == nil {
		return nil
	}
	return wgpuglfw.GetSurfaceDescriptor(gw.window)
}

func platformIsRunningCheck(w *engineWindow) bool {
	gw := platform(w)
	return gw != nil && gw.running && !gw.window.ShouldClose()
}

func platformSetTitle(w *engineWindow, title string) {
	if gw := platform(w); gw != nil {
		gw.window.SetTitle(title)
	}
}

// platformRequestClose may be called from any goroutine; the next platformProcessMessages applies it.
func platformRequestClose(w *engineWindow) {
	if gw := platform(w); gw != nil {
		gw.closeRequested.Store(true)
	}
}

// platformCloseWindow destroys the window and terminates GLFW.
//
// Parameters:
//   - w: the engineWindow to close
//
// Returns:
//   - error: an error if the window was never created
func platformCloseWindow(w *engineWindow) error {
	gw := platform(w)
	if gw == nil {
		return errNotInitialized
	}
	gw.running = false
	gw.window.Destroy()
	glfw.Terminate()
	w.internalWindow = nil
	return nil
}

// platformProcessMessages polls pending events without blocking and applies a pending close request.
//
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#PollEvents
func platformProcessMessages(w *engineWindow) bool {
	glfw.PollEvents()
	if gw := platform(w); gw != nil && gw.closeRequested.Load() {
		gw.running = false
		gw.window.SetShouldClose(true)
	}
	return platformIsRunningCheck(w)
}
