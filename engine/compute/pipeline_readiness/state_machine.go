package pipeline_readiness

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-raytracer/common"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device"
)

// DefaultWorkgroupSize is used for a kernel whose source does not report its work group size and whose size was
// not configured.
var DefaultWorkgroupSize = [3]uint32{8, 8, 1}

// stateMachine is the implementation of the PipelineReadinessStateMachine interface.
type stateMachine struct {
	source        KernelSource
	stage         Stage
	pipelines     map[Kernel]device.ComputePipeline
	entryPoints   map[Kernel]string
	workgroupSize map[Kernel][3]uint32

	// compiled holds the sizes a SizedKernelSource reported for the pipelines in pipelines.
	compiled map[Kernel][3]uint32
}

// PipelineReadinessStateMachine observes kernel compilation once per frame and dispatches the kernel of the current
// stage. It belongs to the render side and is not safe for concurrent use.
type PipelineReadinessStateMachine interface {
	// Stage returns the current stage.
	//
	// Returns:
	//   - Stage: the current stage
	Stage() Stage

	// Kernel returns the kernel the current stage dispatches.
	//
	// Returns:
	//   - Kernel: KernelNone while loading
	Kernel() Kernel

	// Poll checks, without blocking, whether the pipeline the current stage waits on is ready and advances at most
	// one stage.
	//
	// Returns:
	//   - Stage: the stage after polling
	//   - error: ErrPipelineFailed (wrapped with the kernel's error) if the awaited kernel failed to compile
	Poll() (Stage, error)

	// Dispatch records the current stage's kernel over a grid covering width×height. Dispatch happens inside a
	// compute frame opened by the caller.
	//
	// Parameters:
	//   - d: the device to record on
	//   - bindGroup: the frame's bind group
	//   - width, height: the output image size in pixels
	//
	// Returns:
	//   - Kernel: the kernel dispatched, KernelNone while loading
	//   - [3]uint32: the work group count dispatched
	//   - error: an error if the source reports a failure for the dispatched kernel
	Dispatch(d device.Device, bindGroup device.BindGroup, width, height uint32) (Kernel, [3]uint32, error)

	// WorkgroupSize returns the work group size dispatches of k are sized with.
	//
	// Parameters:
	//   - k: the kernel
	//
	// Returns:
	//   - [3]uint32: the size the source reported for k's current pipeline, else the configured size, else
	//     DefaultWorkgroupSize
	WorkgroupSize(k Kernel) [3]uint32
}

var _ PipelineReadinessStateMachine = &stateMachine{}

// NewPipelineReadinessStateMachine creates a state machine in StageLoading observing source.
//
// Parameters:
//   - source: the asynchronous pipeline compiler to observe
//   - options: builder options
//
// Returns:
//   - PipelineReadinessStateMachine: the new state machine
func NewPipelineReadinessStateMachine(source KernelSource, options ...PipelineReadinessBuilderOption) PipelineReadinessStateMachine {
	m := &stateMachine{
		source:    source,
		stage:     StageLoading,
		pipelines: make(map[Kernel]device.ComputePipeline, 2),
		entryPoints: map[Kernel]string{
			KernelInit:   EntryPointInit,
			KernelUpdate: EntryPointUpdate,
		},
		workgroupSize: make(map[Kernel][3]uint32, 2),
		compiled:      make(map[Kernel][3]uint32, 2),
	}
	for _, option := range options {
		option(m)
	}
	return m
}

func (m *stateMachine) Stage() Stage {
	return m.stage
}

func (m *stateMachine) Kernel() Kernel {
	switch m.stage {
	case StageInitReady:
		return KernelInit
	case StageUpdateReady:
		return KernelUpdate
	default:
		return KernelNone
	}
}

func (m *stateMachine) Poll() (Stage, error) {
	var awaited Kernel
	switch m.stage {
	case StageLoading:
		awaited = KernelInit
	case StageInitReady:
		awaited = KernelUpdate
	default:
		return m.stage, nil
	}

	ready, err := m.refresh(awaited)
	if err != nil {
		return m.stage, err
	}
	if !ready {
		return m.stage, nil
	}

	m.stage++
	common.Logger().Info("pipeline stage advanced", "stage", m.stage.String(), "kernel", awaited.String())
	return m.stage, nil
}

func (m *stateMachine) Dispatch(d device.Device, bindGroup device.BindGroup, width, height uint32) (Kernel, [3]uint32, error) {
	k := m.Kernel()
	if k == KernelNone {
		return KernelNone, [3]uint32{}, nil
	}

	// The source may have swapped in a reloaded pipeline since the stage advanced.
	if _, err := m.refresh(k); err != nil {
		return KernelNone, [3]uint32{}, err
	}

	count := WorkGroupCount(width, height, m.WorkgroupSize(k))
	d.DispatchCompute(m.pipelines[k], bindGroup, count)
	return k, count, nil
}

func (m *stateMachine) WorkgroupSize(k Kernel) [3]uint32 {
	if size, ok := m.compiled[k]; ok {
		return size
	}
	if size, ok := m.workgroupSize[k]; ok {
		return size
	}
	return DefaultWorkgroupSize
}

// refresh asks the source for k's pipeline and, when it is ready, stores it together with the work group size it
// was compiled with. The pipeline and its size are always taken from the same source call.
func (m *stateMachine) refresh(k Kernel) (bool, error) {
	var (
		p     device.ComputePipeline
		size  [3]uint32
		sized bool
		ready bool
		err   error
	)
	if src, ok := m.source.(SizedKernelSource); ok {
		p, size, ready, err = src.ReadySized(m.entryPoints[k])
		sized = true
	} else {
		p, ready, err = m.source.Ready(m.entryPoints[k])
	}
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrPipelineFailed, m.entryPoints[k], err)
	}
	if !ready || p == nil {
		return false, nil
	}

	m.pipelines[k] = p
	if sized && size[0] > 0 && size[1] > 0 {
		if size[2] == 0 {
			size[2] = 1
		}
		if prev, ok := m.compiled[k]; ok && prev != size {
			common.Logger().Info("kernel work group size changed", "kernel", k.String(), "from", prev, "to", size)
		}
		m.compiled[k] = size
	}
	return true, nil
}
