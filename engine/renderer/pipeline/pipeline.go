// Package pipeline compiles the raytracer's compute kernels in the background and swaps them when the kernel
// source changes on disk. A PipelineCache satisfies pipeline_readiness.KernelSource, so the readiness state
// machine polls it every frame without ever blocking on compilation.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/gogpu/naga"
)

var (
	// ErrInvalidShader is returned by NagaValidator when the WGSL source does not compile.
	ErrInvalidShader = errors.New("pipeline: invalid shader source")

	// ErrCacheReleased is returned when a released cache is asked for a pipeline.
	ErrCacheReleased = errors.New("pipeline: cache released")
)

// State is the compilation state of one entry point.
type State int

const (
	// StateUnknown means the entry point was never queued.
	StateUnknown State = iota

	// StateQueued means a compile task is waiting for a worker.
	StateQueued

	// StateCompiling means a worker is compiling the pipeline.
	StateCompiling

	// StateOk means a pipeline is available.
	StateOk

	// StateErr means the first compilation failed and no pipeline is available.
	StateErr
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateQueued:
		return "queued"
	case StateCompiling:
		return "compiling"
	case StateOk:
		return "ok"
	case StateErr:
		return "err"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Validator checks WGSL source before it is handed to the device.
type Validator func(source string) error

// NagaValidator compiles source to SPIR-V with naga and discards the output. It catches WGSL errors on the worker
// with a readable message before the device ever sees the source.
//
// Parameters:
//   - source: the pre-processed WGSL source
//
// Returns:
//   - error: nil, or an error wrapping ErrInvalidShader
func NagaValidator(source string) error {
	if _, err := naga.Compile(source); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidShader, err)
	}
	return nil
}
