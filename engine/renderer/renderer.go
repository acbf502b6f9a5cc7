// Package renderer owns the GPU device. It creates the raytracer's compute resources, records compute frames and
// presents the output image on the window surface.
package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device"
	"github.com/cogentcore/webgpu/wgpu"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	RendererBackend

	backendType RendererBackendType

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	clearColor           wgpu.Color
}

// Renderer is the GPU device used by the compute system. It is a device.Device and a device.Presenter backed by
// the selected backend, plus the surface management the window loop needs.
type Renderer interface {
	RendererBackend

	// Resize reconfigures the surface after the window changed size.
	//
	// Parameters:
	//   - width: the new surface width in pixels
	//   - height: the new surface height in pixels
	//
	// Returns:
	//   - error: an error if the surface could not be configured
	Resize(width, height int) error

	// BackendType returns the backend the renderer was created with.
	//
	// Returns:
	//   - RendererBackendType: the backend type
	BackendType() RendererBackendType
}

// Surface is whatever the renderer presents onto. window.Window implements it.
type Surface interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
	Width() int
	Height() int
}

var (
	_ Renderer         = &renderer{}
	_ device.Device    = &renderer{}
	_ device.Presenter = &renderer{}
)

// NewRenderer requests a GPU adapter and device for the surface and configures the surface at its current size.
//
// Parameters:
//   - backendType: the type of rendering backend to use (e.g., WGPU)
//   - surface: the window to present onto
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: an error if no adapter or device is available or the surface cannot be configured
func NewRenderer(backendType RendererBackendType, surface Surface, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		backendType: backendType,
		clearColor:  wgpu.Color{R: 0.1, G: 0.1, B: 0.1, A: 1.0},
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	desc := surface.SurfaceDescriptor()
	if desc == nil {
		return nil, fmt.Errorf("renderer: window has no surface")
	}

	switch backendType {
	case BackendTypeWGPU:
		fallthrough
	default:
		backend, err := newWGPURendererBackend(desc, r.forceFallbackAdapter, r.clearColor)
		if err != nil {
			return nil, err
		}
		r.RendererBackend = backend
	}

	if r.pendingPresentMode != nil {
		r.SetPresentMode(*r.pendingPresentMode)
	}
	if err := r.ConfigureSurface(surface.Width(), surface.Height()); err != nil {
		r.Release()
		return nil, err
	}
	return r, nil
}

func (r *renderer) Resize(width, height int) error {
	return r.ConfigureSurface(width, height)
}

func (r *renderer) BackendType() RendererBackendType {
	return r.backendType
}
