// Package mock_device is an in-memory implementation of device.Device used by tests. It keeps buffer and texture
// contents on the CPU, validates bind groups against their layouts the way a real backend would, and can run
// registered Go kernels over the output texture when a compute pass is dispatched.
package mock_device

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"sync"

	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device"
)

// Invocation is one kernel invocation at pixel (X, Y) of the bound output texture.
type Invocation struct {
	X, Y    uint32
	Output  *MockTexture
	Buffers map[uint32][]byte
}

// Kernel is a CPU stand-in for a compute entry point.
type Kernel func(inv Invocation)

// Dispatch records a single DispatchCompute call.
type Dispatch struct {
	EntryPoint     string
	WorkGroupCount [3]uint32
	Bindings       []uint32
}

// MockBuffer is a CPU-side device.Buffer.
type MockBuffer struct {
	Label    string
	Data     []byte
	released bool
}

func (b *MockBuffer) Size() uint64   { return uint64(len(b.Data)) }
func (b *MockBuffer) Release()       { b.released = true }
func (b *MockBuffer) Released() bool { return b.released }

// MockTexture is a CPU-side rgba8 device.Texture.
type MockTexture struct {
	Label         string
	Pixels        []byte
	width, height uint32
	released      bool
}

func (t *MockTexture) Width() uint32  { return t.width }
func (t *MockTexture) Height() uint32 { return t.height }
func (t *MockTexture) Release()       { t.released = true }
func (t *MockTexture) Released() bool { return t.released }

// Set writes an RGBA value at pixel (x, y).
func (t *MockTexture) Set(x, y uint32, rgba [4]byte) {
	i := (y*t.width + x) * 4
	copy(t.Pixels[i:i+4], rgba[:])
}

// At returns the RGBA value at pixel (x, y).
func (t *MockTexture) At(x, y uint32) [4]byte {
	i := (y*t.width + x) * 4
	return [4]byte(t.Pixels[i : i+4])
}

// MockLayout is a device.BindGroupLayout.
type MockLayout struct {
	Label    string
	Entries  []device.LayoutEntry
	released bool
}

func (l *MockLayout) Release() { l.released = true }

// MockBindGroup is a device.BindGroup.
type MockBindGroup struct {
	Label    string
	Layout   *MockLayout
	Entries  []device.BindEntry
	released bool
}

func (g *MockBindGroup) Release()       { g.released = true }
func (g *MockBindGroup) Released() bool { return g.released }

// MockPipeline is a device.ComputePipeline.
type MockPipeline struct {
	Label         string
	Source        string
	entryPoint    string
	workgroupSize [3]uint32
	released      bool
}

func (p *MockPipeline) EntryPoint() string { return p.entryPoint }
func (p *MockPipeline) Release()           { p.released = true }
func (p *MockPipeline) Released() bool     { return p.released }

// WorkgroupSize returns the group size dispatches of this pipeline execute with.
func (p *MockPipeline) WorkgroupSize() [3]uint32 { return p.workgroupSize }

// MockDevice is an in-memory device.Device.
type MockDevice struct {
	mu *sync.Mutex

	// WorkgroupSize expands dispatched work groups into kernel invocations for pipelines whose source does not
	// declare a @workgroup_size for their entry point.
	WorkgroupSize [3]uint32

	// Kernels maps entry points to CPU kernels run on dispatch. Entry points without a kernel only record the dispatch.
	Kernels map[string]Kernel

	// PipelineErrors makes CreateComputePipeline fail for the given entry points.
	PipelineErrors map[string]error

	// CompileGate, when set, blocks every CreateComputePipeline call until a value is received or it is closed.
	CompileGate chan struct{}

	// FailBuffers and FailTextures make the respective create calls fail.
	FailBuffers  bool
	FailTextures bool

	buffers    []*MockBuffer
	textures   []*MockTexture
	bindGroups []*MockBindGroup
	pipelines  []*MockPipeline
	dispatches []Dispatch

	frameOpen    bool
	framesBegun  int
	framesEnded  int
	presented    int
	presentTexts []device.Texture
}

var (
	_ device.Device    = &MockDevice{}
	_ device.Presenter = &MockDevice{}
)

// NewMockDevice creates an empty MockDevice with an 8×8×1 workgroup size.
//
// Returns:
//   - *MockDevice: the new device
func NewMockDevice() *MockDevice {
	return &MockDevice{
		mu:             &sync.Mutex{},
		WorkgroupSize:  [3]uint32{8, 8, 1},
		Kernels:        make(map[string]Kernel),
		PipelineErrors: make(map[string]error),
	}
}

func (d *MockDevice) CreateStorageBuffer(label string, contents []byte) (device.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.FailBuffers {
		return nil, fmt.Errorf("mock device: buffer %q allocation failed", label)
	}
	if len(contents) == 0 {
		return nil, fmt.Errorf("mock device: buffer %q has zero size", label)
	}
	if len(contents)%4 != 0 {
		return nil, fmt.Errorf("mock device: buffer %q size %d is not a multiple of 4", label, len(contents))
	}
	b := &MockBuffer{Label: label, Data: slices.Clone(contents)}
	d.buffers = append(d.buffers, b)
	return b, nil
}

func (d *MockDevice) CreateStorageTexture(label string, width, height uint32, fill [4]byte) (device.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.FailTextures {
		return nil, fmt.Errorf("mock device: texture %q allocation failed", label)
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("mock device: texture %q has zero extent %dx%d", label, width, height)
	}
	t := &MockTexture{Label: label, width: width, height: height, Pixels: make([]byte, width*height*4)}
	for i := 0; i < len(t.Pixels); i += 4 {
		copy(t.Pixels[i:i+4], fill[:])
	}
	d.textures = append(d.textures, t)
	return t, nil
}

func (d *MockDevice) CreateBindGroupLayout(label string, entries []device.LayoutEntry) (device.BindGroupLayout, error) {
	seen := make(map[uint32]bool, len(entries))
	for _, e := range entries {
		if seen[e.Binding] {
			return nil, fmt.Errorf("mock device: layout %q declares binding %d twice", label, e.Binding)
		}
		seen[e.Binding] = true
	}
	return &MockLayout{Label: label, Entries: slices.Clone(entries)}, nil
}

func (d *MockDevice) CreateBindGroup(label string, layout device.BindGroupLayout, entries []device.BindEntry) (device.BindGroup, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ml, ok := layout.(*MockLayout)
	if !ok || ml == nil {
		return nil, errors.New("mock device: bind group layout was not created by this device")
	}
	if len(entries) != len(ml.Entries) {
		return nil, fmt.Errorf("mock device: bind group %q has %d entries, layout expects %d", label, len(entries), len(ml.Entries))
	}
	byBinding := make(map[uint32]device.BindEntry, len(entries))
	for _, e := range entries {
		byBinding[e.Binding] = e
	}
	for _, le := range ml.Entries {
		e, ok := byBinding[le.Binding]
		if !ok {
			return nil, fmt.Errorf("mock device: bind group %q is missing binding %d", label, le.Binding)
		}
		switch {
		case le.Kind == device.BindingKindStorageTexture && e.Texture == nil:
			return nil, fmt.Errorf("mock device: binding %d expects a texture", le.Binding)
		case le.Kind.IsBuffer() && e.Buffer == nil:
			return nil, fmt.Errorf("mock device: binding %d expects a buffer", le.Binding)
		}
	}
	g := &MockBindGroup{Label: label, Layout: ml, Entries: slices.Clone(entries)}
	d.bindGroups = append(d.bindGroups, g)
	return g, nil
}

func (d *MockDevice) CreateComputePipeline(desc device.ComputePipelineDescriptor) (device.ComputePipeline, error) {
	if d.CompileGate != nil {
		<-d.CompileGate
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.PipelineErrors[desc.EntryPoint]; err != nil {
		return nil, err
	}
	wg, ok := sourceWorkgroupSize(desc.Source, desc.EntryPoint)
	if !ok {
		wg = d.WorkgroupSize
	}
	p := &MockPipeline{Label: desc.Label, Source: desc.Source, entryPoint: desc.EntryPoint, workgroupSize: wg}
	d.pipelines = append(d.pipelines, p)
	return p, nil
}

func (d *MockDevice) BeginComputeFrame() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.frameOpen {
		return errors.New("mock device: compute frame already open")
	}
	d.frameOpen = true
	d.framesBegun++
	return nil
}

func (d *MockDevice) DispatchCompute(p device.ComputePipeline, bindGroup device.BindGroup, workGroupCount [3]uint32) {
	d.mu.Lock()
	if !d.frameOpen {
		d.mu.Unlock()
		return
	}
	rec := Dispatch{EntryPoint: p.EntryPoint(), WorkGroupCount: workGroupCount}
	var entries []device.BindEntry
	if bg, ok := bindGroup.(*MockBindGroup); ok && bg != nil {
		entries = bg.Entries
	}
	var out *MockTexture
	bufs := make(map[uint32][]byte)
	for _, e := range entries {
		rec.Bindings = append(rec.Bindings, e.Binding)
		if e.Texture != nil {
			out, _ = e.Texture.(*MockTexture)
		}
		if e.Buffer != nil {
			if mb, ok := e.Buffer.(*MockBuffer); ok {
				bufs[e.Binding] = mb.Data
			}
		}
	}
	slices.Sort(rec.Bindings)
	d.dispatches = append(d.dispatches, rec)
	kernel := d.Kernels[p.EntryPoint()]
	wg := d.WorkgroupSize
	if mp, ok := p.(*MockPipeline); ok && mp.workgroupSize != [3]uint32{} {
		wg = mp.workgroupSize
	}
	d.mu.Unlock()

	if kernel == nil || out == nil {
		return
	}
	for gy := uint32(0); gy < workGroupCount[1]; gy++ {
		for gx := uint32(0); gx < workGroupCount[0]; gx++ {
			for ly := uint32(0); ly < wg[1]; ly++ {
				for lx := uint32(0); lx < wg[0]; lx++ {
					x, y := gx*wg[0]+lx, gy*wg[1]+ly
					if x >= out.width || y >= out.height {
						continue
					}
					kernel(Invocation{X: x, Y: y, Output: out, Buffers: bufs})
				}
			}
		}
	}
}

func (d *MockDevice) EndComputeFrame() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.frameOpen {
		return
	}
	d.frameOpen = false
	d.framesEnded++
}

func (d *MockDevice) SetPresentTarget(t device.Texture) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.presentTexts = append(d.presentTexts, t)
	return nil
}

func (d *MockDevice) Present() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.presented++
	return nil
}

// sourceWorkgroupSize reads the @workgroup_size attribute in front of fn entryPoint, the way a GPU backend
// executes it. Omitted dimensions are 1.
func sourceWorkgroupSize(source, entryPoint string) ([3]uint32, bool) {
	if source == "" || entryPoint == "" {
		return [3]uint32{}, false
	}
	re := regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?(?:,\s*(\d+)\s*)?,?\s*\)(?:\s*@\w+(?:\([^)]*\))?)*\s*fn\s+` +
		regexp.QuoteMeta(entryPoint) + `\b`)
	m := re.FindStringSubmatch(source)
	if m == nil {
		return [3]uint32{}, false
	}
	size := [3]uint32{1, 1, 1}
	for i := range size {
		if v, err := strconv.ParseUint(m[i+1], 10, 32); err == nil && v > 0 {
			size[i] = uint32(v)
		}
	}
	return size, true
}

// Dispatches returns every recorded dispatch in order.
func (d *MockDevice) Dispatches() []Dispatch {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.dispatches)
}

// Pipelines returns every pipeline created so far.
func (d *MockDevice) Pipelines() []*MockPipeline {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.pipelines)
}

// Textures returns every texture created so far.
func (d *MockDevice) Textures() []*MockTexture {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.textures)
}

// BindGroups returns every bind group created so far.
func (d *MockDevice) BindGroups() []*MockBindGroup {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.bindGroups)
}

// LiveBuffers returns the number of buffers that have not been released.
func (d *MockDevice) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, b := range d.buffers {
		if !b.released {
			n++
		}
	}
	return n
}

// PresentTargets returns every texture passed to SetPresentTarget.
func (d *MockDevice) PresentTargets() []device.Texture {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.presentTexts)
}

// Presented returns how many times Present was called.
func (d *MockDevice) Presented() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.presented
}

// ComputeFrames returns how many compute frames were begun and ended.
func (d *MockDevice) ComputeFrames() (begun, ended int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.framesBegun, d.framesEnded
}
