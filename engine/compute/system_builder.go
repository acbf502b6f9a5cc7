package compute

import (
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/pipeline_readiness"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/resize_coordinator"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/slot"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device"
)

type SystemBuilderOption func(*system)

// WithPresenter sets the presenter retargeted on every new output image and presented after every frame.
//
// Parameters:
//   - p: the presenter
//
// Returns:
//   - SystemBuilderOption: a function that sets the presenter
func WithPresenter(p device.Presenter) SystemBuilderOption {
	return func(s *system) {
		s.presenter = p
	}
}

// WithInitialSize sets the size of the output image allocated at startup.
//
// Parameters:
//   - width, height: the initial output size
//
// Returns:
//   - SystemBuilderOption: a function that sets the initial size
func WithInitialSize(width, height float32) SystemBuilderOption {
	return func(s *system) {
		s.initialSize = resize_coordinator.Size{Width: width, Height: height}
	}
}

// WithProducer registers a producer at construction.
//
// Parameters:
//   - p: the producer
//
// Returns:
//   - SystemBuilderOption: a function that adds the producer
func WithProducer(p Producer) SystemBuilderOption {
	return func(s *system) {
		s.AddProducer(p)
	}
}

// WithDeclarations replaces the slot declaration table. Intended for tests; the table is still validated.
//
// Parameters:
//   - decls: the declaration table
//
// Returns:
//   - SystemBuilderOption: a function that sets the declarations
func WithDeclarations(decls []slot.Declaration) SystemBuilderOption {
	return func(s *system) {
		s.declarations = decls
	}
}

// WithReadinessOptions forwards options to the pipeline readiness state machine.
//
// Parameters:
//   - options: the state machine options, e.g. pipeline_readiness.WithWorkgroupSize
//
// Returns:
//   - SystemBuilderOption: a function that stores the options
func WithReadinessOptions(options ...pipeline_readiness.PipelineReadinessBuilderOption) SystemBuilderOption {
	return func(s *system) {
		s.readinessOpt = append(s.readinessOpt, options...)
	}
}

// WithLabel sets the prefix of every GPU debug label the system creates.
//
// Parameters:
//   - label: the label prefix
//
// Returns:
//   - SystemBuilderOption: a function that sets the label
func WithLabel(label string) SystemBuilderOption {
	return func(s *system) {
		if label != "" {
			s.label = label
		}
	}
}
