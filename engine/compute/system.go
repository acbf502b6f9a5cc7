// Package compute wires the resource orchestration core into two per-frame steps: Simulate runs on the simulation
// side and ends with an extracted snapshot; Render consumes that snapshot on the render side.
package compute

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-raytracer/common"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/binding_set"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/buffer_registry"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/frame_extractor"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/output_image"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/pipeline_readiness"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/resize_coordinator"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/slot"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device"
)

// Producer writes simulation-side values into the registry once per frame.
type Producer interface {
	// WriteBuffers writes the producer's slots.
	//
	// Parameters:
	//   - r: the simulation-side registry
	//
	// Returns:
	//   - error: an error if a write was rejected
	WriteBuffers(r buffer_registry.BufferRegistry) error
}

// ProducerFunc adapts a function to Producer.
type ProducerFunc func(r buffer_registry.BufferRegistry) error

func (f ProducerFunc) WriteBuffers(r buffer_registry.BufferRegistry) error {
	return f(r)
}

// KernelSourceFactory creates the kernel source once the fixed bind group layout exists, so pipelines are compiled
// against the same layout every binding set uses.
type KernelSourceFactory func(layout device.BindGroupLayout) (pipeline_readiness.KernelSource, error)

// retiring is implemented by kernel sources that defer releasing replaced pipelines to the render side.
type retiring interface {
	ReleaseRetired()
}

// FrameResult describes what one Render call did.
type FrameResult struct {
	Frame         uint64
	Stage         pipeline_readiness.Stage
	Kernel        pipeline_readiness.Kernel
	WorkGroups    [3]uint32
	ImageReplaced bool
}

// system is the implementation of the System interface.
type system struct {
	device    device.Device
	presenter device.Presenter

	declarations []slot.Declaration
	initialSize  resize_coordinator.Size
	producers    []Producer
	readinessOpt []pipeline_readiness.PipelineReadinessBuilderOption
	label        string

	// simulation side
	registry    buffer_registry.BufferRegistry
	coordinator resize_coordinator.ResizeCoordinator
	extractor   frame_extractor.FrameExtractor

	// render side
	images    output_image.ImageCache
	assembler binding_set.BindingSetAssembler
	source    pipeline_readiness.KernelSource
	readiness pipeline_readiness.PipelineReadinessStateMachine
}

// System owns both sides of the compute core. Simulate and Render may run on different goroutines as long as each
// is only ever called from one goroutine and snapshots are handed over by value.
type System interface {
	// Simulate runs resize handling and every producer, then extracts the frame's snapshot.
	//
	// Parameters:
	//   - size: the output size observed this frame
	//
	// Returns:
	//   - frame_extractor.Snapshot: the frame's snapshot
	//   - error: a configuration error from resize handling or a producer
	Simulate(size resize_coordinator.Size) (frame_extractor.Snapshot, error)

	// Render resolves the output texture, assembles the binding set, polls readiness, dispatches and presents.
	//
	// Parameters:
	//   - snap: a snapshot produced by Simulate
	//
	// Returns:
	//   - FrameResult: what the frame did
	//   - error: an allocation, binding or pipeline error; frame processing must stop
	Render(snap frame_extractor.Snapshot) (FrameResult, error)

	// AddProducer registers a producer to run on every Simulate. Simulation side only.
	//
	// Parameters:
	//   - p: the producer to add
	AddProducer(p Producer)

	// Registry returns the simulation-side registry.
	//
	// Returns:
	//   - buffer_registry.BufferRegistry: the live registry
	Registry() buffer_registry.BufferRegistry

	// Coordinator returns the simulation-side resize coordinator.
	//
	// Returns:
	//   - resize_coordinator.ResizeCoordinator: the coordinator
	Coordinator() resize_coordinator.ResizeCoordinator

	// Readiness returns the render-side pipeline readiness state machine.
	//
	// Returns:
	//   - pipeline_readiness.PipelineReadinessStateMachine: the state machine
	Readiness() pipeline_readiness.PipelineReadinessStateMachine

	// Layout returns the fixed bind group layout.
	//
	// Returns:
	//   - device.BindGroupLayout: the layout
	Layout() device.BindGroupLayout

	// Release frees the output texture, the layout and the kernel source if it is releasable. Render side only.
	Release()
}

var _ System = &system{}

// NewSystem builds the registry, resize coordinator, extractor, image cache, assembler and readiness state machine,
// and seeds the size-derived slots from the initial image.
//
// Parameters:
//   - d: the device to create GPU resources on
//   - newSource: creates the kernel source against the fixed layout
//   - options: builder options
//
// Returns:
//   - System: the new system
//   - error: a configuration error from the slot table, layout or kernel source
func NewSystem(d device.Device, newSource KernelSourceFactory, options ...SystemBuilderOption) (System, error) {
	s := &system{
		device:       d,
		declarations: slot.Declarations(),
		initialSize:  resize_coordinator.Size{Width: 1280, Height: 720},
		label:        "Raytracer",
	}
	for _, option := range options {
		option(s)
	}

	registry, err := buffer_registry.NewBufferRegistry(s.declarations)
	if err != nil {
		return nil, fmt.Errorf("compute: %w", err)
	}
	coordinator, err := resize_coordinator.NewResizeCoordinator(
		resize_coordinator.WithInitialSize(s.initialSize.Width, s.initialSize.Height),
		resize_coordinator.WithListener(resize_coordinator.NewResolutionWriter(registry)),
	)
	if err != nil {
		return nil, fmt.Errorf("compute: %w", err)
	}
	if err := coordinator.Announce(); err != nil {
		return nil, fmt.Errorf("compute: %w", err)
	}

	assembler, err := binding_set.NewBindingSetAssembler(d, s.declarations, binding_set.WithLabel(s.label))
	if err != nil {
		return nil, fmt.Errorf("compute: %w", err)
	}
	source, err := newSource(assembler.Layout())
	if err != nil {
		assembler.Release()
		return nil, fmt.Errorf("compute: failed to create kernel source: %w", err)
	}

	s.registry = registry
	s.coordinator = coordinator
	s.extractor = frame_extractor.NewFrameExtractor(registry, coordinator)
	s.images = output_image.NewImageCache(d)
	s.assembler = assembler
	s.source = source
	s.readiness = pipeline_readiness.NewPipelineReadinessStateMachine(source, s.readinessOpt...)
	return s, nil
}

func (s *system) Simulate(size resize_coordinator.Size) (frame_extractor.Snapshot, error) {
	if _, err := s.coordinator.Update(size); err != nil {
		return frame_extractor.Snapshot{}, err
	}
	for _, p := range s.producers {
		if err := p.WriteBuffers(s.registry); err != nil {
			return frame_extractor.Snapshot{}, fmt.Errorf("compute: producer failed: %w", err)
		}
	}
	return s.extractor.Extract(), nil
}

func (s *system) Render(snap frame_extractor.Snapshot) (FrameResult, error) {
	res := FrameResult{Frame: snap.Frame}

	if r, ok := s.source.(retiring); ok {
		r.ReleaseRetired()
	}

	tex, replaced, err := s.images.Resolve(snap.Image)
	if err != nil {
		return res, fmt.Errorf("compute: frame %d: %w", snap.Frame, err)
	}
	res.ImageReplaced = replaced
	if replaced && s.presenter != nil {
		if err := s.presenter.SetPresentTarget(tex); err != nil {
			return res, fmt.Errorf("compute: frame %d: failed to retarget presenter: %w", snap.Frame, err)
		}
	}

	set, err := s.assembler.Assemble(snap, tex)
	if err != nil {
		return res, fmt.Errorf("compute: frame %d: %w", snap.Frame, err)
	}
	defer set.Release()

	stage, err := s.readiness.Poll()
	res.Stage = stage
	if err != nil {
		return res, fmt.Errorf("compute: frame %d: %w", snap.Frame, err)
	}

	if s.readiness.Kernel() != pipeline_readiness.KernelNone {
		if err := s.device.BeginComputeFrame(); err != nil {
			return res, fmt.Errorf("compute: frame %d: %w", snap.Frame, err)
		}
		k, count, err := s.readiness.Dispatch(s.device, set.BindGroup(), snap.Image.Width, snap.Image.Height)
		s.device.EndComputeFrame()
		if err != nil {
			return res, fmt.Errorf("compute: frame %d: %w", snap.Frame, err)
		}
		res.Kernel = k
		res.WorkGroups = count
	}

	if s.presenter != nil {
		if err := s.presenter.Present(); err != nil {
			return res, fmt.Errorf("compute: frame %d: present failed: %w", snap.Frame, err)
		}
	}

	common.Logger().Debug("frame rendered",
		"frame", snap.Frame,
		"stage", res.Stage.String(),
		"kernel", res.Kernel.String(),
		"image", snap.Image.String(),
	)
	return res, nil
}

func (s *system) AddProducer(p Producer) {
	if p != nil {
		s.producers = append(s.producers, p)
	}
}

func (s *system) Registry() buffer_registry.BufferRegistry {
	return s.registry
}

func (s *system) Coordinator() resize_coordinator.ResizeCoordinator {
	return s.coordinator
}

func (s *system) Readiness() pipeline_readiness.PipelineReadinessStateMachine {
	return s.readiness
}

func (s *system) Layout() device.BindGroupLayout {
	return s.assembler.Layout()
}

func (s *system) Release() {
	if r, ok := s.source.(interface{ Release() }); ok {
		r.Release()
	}
	s.images.Release()
	s.assembler.Release()
}
