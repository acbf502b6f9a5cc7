// Package pipeline_readiness gates which compute kernel is dispatched each frame while the kernels compile in the
// background. The stage only ever advances: Loading, then InitReady, then UpdateReady.
package pipeline_readiness

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-raytracer/common"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device"
)

// Entry point names of the two kernels.
const (
	EntryPointInit   = "init"
	EntryPointUpdate = "update"
)

// ErrPipelineFailed is returned when a kernel failed to compile. There is no recovery.
var ErrPipelineFailed = errors.New("pipeline readiness: kernel compilation failed")

// Stage is the readiness stage.
type Stage int

const (
	// StageLoading means the init kernel is not compiled yet. Nothing is dispatched.
	StageLoading Stage = iota

	// StageInitReady means the init kernel is dispatched every frame while the update kernel compiles.
	StageInitReady

	// StageUpdateReady is terminal. The update kernel is dispatched every frame.
	StageUpdateReady
)

func (s Stage) String() string {
	switch s {
	case StageLoading:
		return "loading"
	case StageInitReady:
		return "init_ready"
	case StageUpdateReady:
		return "update_ready"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Kernel identifies which kernel a stage dispatches.
type Kernel int

const (
	KernelNone Kernel = iota
	KernelInit
	KernelUpdate
)

func (k Kernel) String() string {
	switch k {
	case KernelNone:
		return "none"
	case KernelInit:
		return EntryPointInit
	case KernelUpdate:
		return EntryPointUpdate
	default:
		return fmt.Sprintf("kernel(%d)", int(k))
	}
}

// KernelSource is the non-blocking view of an asynchronous pipeline compiler.
type KernelSource interface {
	// Ready reports whether the pipeline for entryPoint has finished compiling. It must not block.
	//
	// Parameters:
	//   - entryPoint: the WGSL entry point
	//
	// Returns:
	//   - device.ComputePipeline: the compiled pipeline when ready
	//   - bool: true if the pipeline is ready
	//   - error: a non-nil error if compilation failed
	Ready(entryPoint string) (device.ComputePipeline, bool, error)
}

// SizedKernelSource is a KernelSource that also reports the @workgroup_size each pipeline was compiled with. The
// state machine sizes dispatch grids from it, so a reloaded kernel with different groups is still fully covered.
type SizedKernelSource interface {
	KernelSource

	// ReadySized is Ready plus the work group size of the shader the returned pipeline was compiled from.
	//
	// Parameters:
	//   - entryPoint: the WGSL entry point
	//
	// Returns:
	//   - device.ComputePipeline: the compiled pipeline when ready
	//   - [3]uint32: the pipeline's @workgroup_size when ready
	//   - bool: true if the pipeline is ready
	//   - error: a non-nil error if compilation failed
	ReadySized(entryPoint string) (device.ComputePipeline, [3]uint32, bool, error)
}

// KernelSourceFunc adapts a function to KernelSource.
type KernelSourceFunc func(entryPoint string) (device.ComputePipeline, bool, error)

func (f KernelSourceFunc) Ready(entryPoint string) (device.ComputePipeline, bool, error) {
	return f(entryPoint)
}

// WorkGroupCount returns the dispatch grid covering a width×height image with work groups of size.
//
// Parameters:
//   - width, height: the image size in pixels
//   - size: the work group size in x, y and z
//
// Returns:
//   - [3]uint32: ceil(width/size.x) × ceil(height/size.y) × 1
func WorkGroupCount(width, height uint32, size [3]uint32) [3]uint32 {
	return [3]uint32{common.CeilDiv(width, size[0]), common.CeilDiv(height, size[1]), 1}
}
