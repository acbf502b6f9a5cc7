package pipeline

import (
	"slices"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/slot"
)

// PipelineCacheBuilderOption is a functional option used to configure a PipelineCache during construction.
type PipelineCacheBuilderOption func(*pipelineCache)

// WithWorkers sets how many workers the cache's own pool runs. Ignored when WithWorkerPool is used.
//
// Parameters:
//   - n: the worker count, values below 1 are raised to 1
//
// Returns:
//   - PipelineCacheBuilderOption: a function that sets the worker count
func WithWorkers(n int) PipelineCacheBuilderOption {
	return func(c *pipelineCache) {
		c.workers = max(n, 1)
	}
}

// WithWorkerPool compiles on a shared pool instead of creating one.
//
// Parameters:
//   - pool: the worker pool to submit compile tasks to
//
// Returns:
//   - PipelineCacheBuilderOption: a function that sets the worker pool
func WithWorkerPool(pool worker.DynamicWorkerPool) PipelineCacheBuilderOption {
	return func(c *pipelineCache) {
		c.pool = pool
		c.poolSet = true
	}
}

// WithValidator runs v over the shader source on the worker before each compile. A nil validator disables the
// check, which is the default.
//
// Parameters:
//   - v: the validator, e.g. NagaValidator
//
// Returns:
//   - PipelineCacheBuilderOption: a function that sets the validator
func WithValidator(v Validator) PipelineCacheBuilderOption {
	return func(c *pipelineCache) {
		c.validator = v
	}
}

// WithPreload replaces the entry points queued at construction.
//
// Parameters:
//   - entryPoints: the @compute functions to compile immediately
//
// Returns:
//   - PipelineCacheBuilderOption: a function that sets the preloaded entry points
func WithPreload(entryPoints ...string) PipelineCacheBuilderOption {
	return func(c *pipelineCache) {
		c.preload = slices.Clone(entryPoints)
	}
}

// WithDeclarations sets the slot table shaders are validated against.
//
// Parameters:
//   - decls: the declaration table
//
// Returns:
//   - PipelineCacheBuilderOption: a function that sets the declarations
func WithDeclarations(decls []slot.Declaration) PipelineCacheBuilderOption {
	return func(c *pipelineCache) {
		c.declarations = decls
	}
}

// WithLabel sets the prefix of every pipeline's debug label.
//
// Parameters:
//   - label: the label prefix
//
// Returns:
//   - PipelineCacheBuilderOption: a function that sets the label
func WithLabel(label string) PipelineCacheBuilderOption {
	return func(c *pipelineCache) {
		c.label = label
	}
}
