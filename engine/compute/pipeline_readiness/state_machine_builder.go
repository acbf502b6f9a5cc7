package pipeline_readiness

type PipelineReadinessBuilderOption func(*stateMachine)

// WithEntryPoints overrides the WGSL entry point names of the init and update kernels.
//
// Parameters:
//   - init: the init kernel entry point
//   - update: the update kernel entry point
//
// Returns:
//   - PipelineReadinessBuilderOption: a function that sets the entry points
func WithEntryPoints(init, update string) PipelineReadinessBuilderOption {
	return func(m *stateMachine) {
		if init != "" {
			m.entryPoints[KernelInit] = init
		}
		if update != "" {
			m.entryPoints[KernelUpdate] = update
		}
	}
}

// WithWorkgroupSize sets the work group size dispatches of k are sized with when the kernel source is not a
// SizedKernelSource. Zero components are replaced with 1.
//
// Parameters:
//   - k: the kernel
//   - size: the kernel's @workgroup_size
//
// Returns:
//   - PipelineReadinessBuilderOption: a function that sets the work group size
func WithWorkgroupSize(k Kernel, size [3]uint32) PipelineReadinessBuilderOption {
	return func(m *stateMachine) {
		for i := range size {
			if size[i] == 0 {
				size[i] = 1
			}
		}
		m.workgroupSize[k] = size
	}
}
