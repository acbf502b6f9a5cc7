package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-raytracer/common"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/pipeline_readiness"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/slot"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/shader"
)

// entry tracks one entry point. current survives a reload until its replacement compiles.
type entry struct {
	name    string
	state   State
	current device.ComputePipeline
	err     error

	// size is the @workgroup_size of the shader current was compiled from.
	size [3]uint32

	// pending is the cache generation of the compile in flight. Results of older generations are discarded.
	pending uint64
}

// pipelineCache is the implementation of the PipelineCache interface.
type pipelineCache struct {
	mu *sync.Mutex

	device       device.Device
	layout       device.BindGroupLayout
	shader       shader.Shader
	declarations []slot.Declaration
	label        string

	pool      worker.DynamicWorkerPool
	poolSet   bool
	workers   int
	validator Validator
	preload   []string

	generation uint64
	taskID     int
	entries    map[string]*entry
	retired    []device.ComputePipeline
	released   bool
}

// PipelineCache compiles compute pipelines on a worker pool and hands them out without blocking.
type PipelineCache interface {
	pipeline_readiness.SizedKernelSource

	// Queue schedules compilation of an entry point. Queuing an entry point twice does nothing.
	//
	// Parameters:
	//   - entryPoint: the @compute function to compile
	//
	// Returns:
	//   - State: the entry point's state after the call
	Queue(entryPoint string) State

	// State reports the compilation state of an entry point. An entry point that compiled once reports StateOk
	// while a reload of it is in flight.
	//
	// Parameters:
	//   - entryPoint: the @compute function
	//
	// Returns:
	//   - State: the current state
	State(entryPoint string) State

	// Reload swaps in a new shader and recompiles every known entry point against it. Pipelines compiled from
	// the previous shader keep serving until their replacement is ready, and stay in place if it fails.
	//
	// Parameters:
	//   - s: the new shader
	//
	// Returns:
	//   - error: an error wrapping shader.ErrLayoutMismatch if s does not fit the slot table. The old shader stays.
	Reload(s shader.Shader) error

	// ReleaseRetired releases pipelines that were replaced by a reload. Called from the render side between
	// frames, once no recorded work can reference them.
	ReleaseRetired()

	// Shader returns the shader pipelines are currently compiled from.
	//
	// Returns:
	//   - shader.Shader: the active shader
	Shader() shader.Shader

	// Release releases every pipeline. Compiles that finish afterwards are released immediately.
	Release()
}

var _ PipelineCache = &pipelineCache{}

// NewPipelineCache creates a cache compiling s against layout and queues the preload entry points, init and
// update by default.
//
// Parameters:
//   - d: the device that compiles pipelines
//   - layout: the bind group layout every pipeline is compiled against
//   - s: the kernel shader
//   - options: builder options
//
// Returns:
//   - PipelineCache: the new cache
//   - error: an error wrapping shader.ErrLayoutMismatch if s does not fit the slot table
func NewPipelineCache(d device.Device, layout device.BindGroupLayout, s shader.Shader, options ...PipelineCacheBuilderOption) (PipelineCache, error) {
	c := &pipelineCache{
		mu:           &sync.Mutex{},
		device:       d,
		layout:       layout,
		shader:       s,
		declarations: slot.Declarations(),
		label:        "Raytracer",
		workers:      2,
		preload:      []string{pipeline_readiness.EntryPointInit, pipeline_readiness.EntryPointUpdate},
		entries:      make(map[string]*entry),
	}
	for _, option := range options {
		option(c)
	}

	if err := shader.ValidateLayout(s, c.declarations, c.preload...); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if !c.poolSet {
		c.pool = worker.NewDynamicWorkerPool(c.workers, 256, time.Second)
	}
	for _, name := range c.preload {
		c.Queue(name)
	}
	return c, nil
}

func (c *pipelineCache) Queue(entryPoint string) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[entryPoint]; ok {
		return e.stateLocked()
	}
	e := &entry{name: entryPoint}
	c.entries[entryPoint] = e
	if c.released {
		e.state, e.err = StateErr, ErrCacheReleased
		return e.state
	}
	if _, ok := c.shader.EntryPoint(entryPoint); !ok {
		e.state, e.err = StateErr, fmt.Errorf("%w: %s", shader.ErrMissingEntryPoint, entryPoint)
		return e.state
	}
	c.submitLocked(e)
	return e.state
}

func (c *pipelineCache) Ready(entryPoint string) (device.ComputePipeline, bool, error) {
	p, _, ready, err := c.ReadySized(entryPoint)
	return p, ready, err
}

func (c *pipelineCache) ReadySized(entryPoint string) (device.ComputePipeline, [3]uint32, bool, error) {
	c.mu.Lock()
	e, ok := c.entries[entryPoint]
	if !ok {
		c.mu.Unlock()
		c.Queue(entryPoint)
		return c.ReadySized(entryPoint)
	}
	defer c.mu.Unlock()

	switch {
	case e.current != nil:
		return e.current, e.size, true, nil
	case e.state == StateErr:
		return nil, [3]uint32{}, false, fmt.Errorf("pipeline %s: %w", entryPoint, e.err)
	default:
		return nil, [3]uint32{}, false, nil
	}
}

func (c *pipelineCache) State(entryPoint string) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[entryPoint]
	if !ok {
		return StateUnknown
	}
	return e.stateLocked()
}

func (c *pipelineCache) Reload(s shader.Shader) error {
	if err := shader.ValidateLayout(s, c.declarations); err != nil {
		common.Logger().Warn("shader reload rejected", "shader", s.Key(), "error", err)
		return fmt.Errorf("pipeline: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return ErrCacheReleased
	}
	c.shader = s
	c.generation++
	for _, e := range c.entries {
		if _, ok := s.EntryPoint(e.name); !ok {
			common.Logger().Warn("reloaded shader lacks entry point", "shader", s.Key(), "entry_point", e.name)
			if e.current == nil {
				e.state, e.err = StateErr, fmt.Errorf("%w: %s", shader.ErrMissingEntryPoint, e.name)
			}
			continue
		}
		c.submitLocked(e)
	}
	common.Logger().Info("shader reloaded", "shader", s.Key(), "generation", c.generation)
	return nil
}

func (c *pipelineCache) ReleaseRetired() {
	c.mu.Lock()
	retired := c.retired
	c.retired = nil
	c.mu.Unlock()

	for _, p := range retired {
		p.Release()
	}
}

func (c *pipelineCache) Shader() shader.Shader {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shader
}

func (c *pipelineCache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return
	}
	c.released = true
	for _, e := range c.entries {
		if e.current != nil {
			e.current.Release()
			e.current = nil
		}
		e.state, e.err = StateErr, ErrCacheReleased
	}
	for _, p := range c.retired {
		p.Release()
	}
	c.retired = nil
}

// submitLocked schedules a compile of e against the current shader and generation. c.mu must be held.
func (c *pipelineCache) submitLocked(e *entry) {
	s := c.shader
	gen := c.generation
	name := e.name
	e.pending = gen
	if e.current == nil {
		e.state, e.err = StateQueued, nil
	}

	id := c.taskID
	c.taskID++
	c.pool.SubmitTask(worker.Task{
		ID: id,
		Do: func() (any, error) {
			p, err := c.compile(name, s, gen)
			c.finish(name, gen, s.WorkgroupSize(name), p, err)
			return nil, err
		},
	})
}

func (c *pipelineCache) compile(name string, s shader.Shader, gen uint64) (device.ComputePipeline, error) {
	c.mu.Lock()
	if e := c.entries[name]; e != nil && e.pending == gen && e.current == nil {
		e.state = StateCompiling
	}
	c.mu.Unlock()

	if c.validator != nil {
		if err := c.validator(s.Source()); err != nil {
			return nil, err
		}
	}
	return c.device.CreateComputePipeline(device.ComputePipelineDescriptor{
		Label:      fmt.Sprintf("%s %s Pipeline", c.label, name),
		Source:     s.Source(),
		EntryPoint: name,
		Layout:     c.layout,
	})
}

func (c *pipelineCache) finish(name string, gen uint64, size [3]uint32, p device.ComputePipeline, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[name]
	if c.released || e == nil || e.pending != gen {
		if p != nil {
			p.Release()
		}
		return
	}

	if err != nil {
		if e.current != nil {
			common.Logger().Warn("pipeline reload failed, keeping previous pipeline", "entry_point", name, "generation", gen, "error", err)
			return
		}
		e.state, e.err = StateErr, err
		common.Logger().Error("pipeline compilation failed", "entry_point", name, "error", err)
		return
	}

	if e.current != nil {
		c.retired = append(c.retired, e.current)
	}
	e.current = p
	e.size = size
	e.state, e.err = StateOk, nil
	common.Logger().Info("pipeline compiled", "entry_point", name, "generation", gen, "workgroup_size", size)
}

func (e *entry) stateLocked() State {
	if e.current != nil {
		return StateOk
	}
	return e.state
}
