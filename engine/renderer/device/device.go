// Package device describes the GPU surface the compute core talks to. The WebGPU renderer implements it for real
// hardware and mock_device implements it in memory, so everything above this package can run without a GPU.
package device

import "fmt"

// BindingKind identifies how a resource is exposed to a compute kernel.
type BindingKind int

const (
	// BindingKindStorageTexture is a write-only rgba8unorm 2D storage texture.
	BindingKindStorageTexture BindingKind = iota

	// BindingKindReadOnlyStorage is a read-only storage buffer (var<storage, read>).
	BindingKindReadOnlyStorage

	// BindingKindStorage is a read-write storage buffer (var<storage, read_write>).
	BindingKindStorage

	// BindingKindUniform is a uniform buffer (var<uniform>).
	BindingKindUniform

	// BindingKindUnknown is any declaration the engine cannot bind (samplers, sampled textures, ...).
	BindingKindUnknown
)

func (k BindingKind) String() string {
	switch k {
	case BindingKindStorageTexture:
		return "storage_texture"
	case BindingKindReadOnlyStorage:
		return "read_only_storage"
	case BindingKindStorage:
		return "storage"
	case BindingKindUniform:
		return "uniform"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// IsBuffer reports whether the kind is backed by a GPU buffer.
func (k BindingKind) IsBuffer() bool {
	return k == BindingKindReadOnlyStorage || k == BindingKindStorage || k == BindingKindUniform
}

// Resource is any GPU object that must be released explicitly.
type Resource interface {
	// Release frees the GPU object. Calling Release more than once is a no-op.
	Release()
}

// Buffer is a GPU buffer created from a byte slice.
type Buffer interface {
	Resource

	// Size returns the buffer size in bytes.
	//
	// Returns:
	//   - uint64: the buffer size
	Size() uint64
}

// Texture is a 2D rgba8unorm image usable as a compute storage texture and as a sampled texture for presentation.
type Texture interface {
	Resource

	// Width returns the texture width in pixels.
	//
	// Returns:
	//   - uint32: width in pixels
	Width() uint32

	// Height returns the texture height in pixels.
	//
	// Returns:
	//   - uint32: height in pixels
	Height() uint32
}

// BindGroupLayout is the GPU form of a fixed binding layout.
type BindGroupLayout interface {
	Resource
}

// BindGroup is a set of resources bound against a BindGroupLayout.
type BindGroup interface {
	Resource
}

// ComputePipeline is a compiled compute kernel for one entry point.
type ComputePipeline interface {
	Resource

	// EntryPoint returns the WGSL entry point the pipeline was compiled for.
	//
	// Returns:
	//   - string: the entry point name
	EntryPoint() string
}

// LayoutEntry declares one binding of a BindGroupLayout.
type LayoutEntry struct {
	Binding uint32
	Kind    BindingKind
}

// BindEntry binds a resource at a binding index. Exactly one of Buffer or Texture is set.
type BindEntry struct {
	Binding uint32
	Buffer  Buffer
	Texture Texture
}

// ComputePipelineDescriptor describes a compute pipeline to compile.
type ComputePipelineDescriptor struct {
	Label      string
	Source     string
	EntryPoint string
	Layout     BindGroupLayout
}

// Device creates GPU resources and records compute work.
type Device interface {
	// CreateStorageBuffer creates a read-only storage buffer initialised with contents.
	//
	// Parameters:
	//   - label: a debug label for the buffer
	//   - contents: the initial bytes, must be non-empty and a multiple of 4 bytes
	//
	// Returns:
	//   - Buffer: the created buffer
	//   - error: an error if the buffer could not be created
	CreateStorageBuffer(label string, contents []byte) (Buffer, error)

	// CreateStorageTexture creates an output image texture with every pixel set to fill.
	//
	// Parameters:
	//   - label: a debug label for the texture
	//   - width: the width in pixels
	//   - height: the height in pixels
	//   - fill: the RGBA value written into every pixel
	//
	// Returns:
	//   - Texture: the created texture
	//   - error: an error if the texture could not be created
	CreateStorageTexture(label string, width, height uint32, fill [4]byte) (Texture, error)

	// CreateBindGroupLayout creates a compute-visible layout from entries.
	//
	// Parameters:
	//   - label: a debug label for the layout
	//   - entries: the binding entries of the layout
	//
	// Returns:
	//   - BindGroupLayout: the created layout
	//   - error: an error if the layout could not be created
	CreateBindGroupLayout(label string, entries []LayoutEntry) (BindGroupLayout, error)

	// CreateBindGroup binds resources against layout.
	//
	// Parameters:
	//   - label: a debug label for the bind group
	//   - layout: the layout the entries must match
	//   - entries: the resources to bind
	//
	// Returns:
	//   - BindGroup: the created bind group
	//   - error: an error if the bind group could not be created
	CreateBindGroup(label string, layout BindGroupLayout, entries []BindEntry) (BindGroup, error)

	// CreateComputePipeline compiles a compute pipeline. May block; callers that must not block run it on a worker.
	//
	// Parameters:
	//   - desc: the pipeline descriptor
	//
	// Returns:
	//   - ComputePipeline: the compiled pipeline
	//   - error: an error if compilation failed
	CreateComputePipeline(desc ComputePipelineDescriptor) (ComputePipeline, error)

	// BeginComputeFrame opens a command encoder for the frame's compute dispatches.
	//
	// Returns:
	//   - error: an error if the command encoder could not be created
	BeginComputeFrame() error

	// DispatchCompute records one compute pass inside the current compute frame.
	//
	// Parameters:
	//   - p: the pipeline to run
	//   - bindGroup: the bind group set at group 0
	//   - workGroupCount: the number of work groups in x, y and z
	DispatchCompute(p ComputePipeline, bindGroup BindGroup, workGroupCount [3]uint32)

	// EndComputeFrame finishes and submits the compute frame.
	EndComputeFrame()
}

// Presenter puts the output image on screen.
type Presenter interface {
	// SetPresentTarget points the presentation pass at a new output texture.
	//
	// Parameters:
	//   - t: the texture to present
	//
	// Returns:
	//   - error: an error if the presentation bindings could not be rebuilt
	SetPresentTarget(t Texture) error

	// Present draws the current present target onto the display surface.
	//
	// Returns:
	//   - error: an error if the surface could not be acquired
	Present() error
}
