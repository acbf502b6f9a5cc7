package renderer

import (
	_ "embed"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-raytracer/common"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device"
	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed assets/present.wgsl
var presentShaderSource string

var (
	// ErrForeignResource is returned when a resource created by another device is passed to the backend.
	ErrForeignResource = errors.New("renderer: resource was not created by this backend")

	// errNoComputeFrame is logged when a dispatch is recorded outside BeginComputeFrame and EndComputeFrame.
	errNoComputeFrame = errors.New("renderer: dispatch outside a compute frame")
)

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat *wgpu.TextureFormat
	presentMode   wgpu.PresentMode // defaults to PresentModeImmediate (Uncapped)
	clearColor    wgpu.Color
	configured    bool

	// Presentation state: a fullscreen pass that copies the output image onto the surface
	presentLayout   *wgpu.BindGroupLayout
	presentPipeline *wgpu.RenderPipeline
	presentModule   *wgpu.ShaderModule
	presentGroup    *wgpu.BindGroup

	// Compute frame state for batching all compute dispatches into a single GPU submission
	computeFrameEncoder *wgpu.CommandEncoder
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool, clearColor wgpu.Color) (*wgpuRendererBackendImpl, error) {
	runtime.LockOSThread()
	w := &wgpuRendererBackendImpl{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
		clearColor:  clearColor,
	}
	w.surface = w.instance.CreateSurface(surfaceDescriptor)

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to request adapter: %w", err)
	}
	w.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to request device: %w", err)
	}
	w.device = d
	w.queue = d.GetQueue()

	common.Logger().Info("gpu adapter ready", "fallback", forceFallbackAdapter)
	return w, nil
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if width <= 0 || height <= 0 {
		return nil
	}

	capabilities := b.surface.GetCapabilities(b.adapter)
	if b.surfaceFormat == nil {
		b.surfaceFormat = &capabilities.Formats[0]
	}

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	b.configured = true

	if b.presentPipeline == nil {
		if err := b.createPresentPipelineLocked(); err != nil {
			return err
		}
	}
	return nil
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *wgpuRendererBackendImpl) CreateStorageBuffer(label string, contents []byte) (device.Buffer, error) {
	if len(contents) == 0 || len(contents)%4 != 0 {
		return nil, fmt.Errorf("renderer: buffer %q size %d must be a positive multiple of 4", label, len(contents))
	}
	buf, err := b.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: contents,
		Usage:    wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to create buffer %q: %w", label, err)
	}
	return &wgpuBuffer{releaseOnce: newReleaseOnce(), buffer: buf, size: uint64(len(contents))}, nil
}

func (b *wgpuRendererBackendImpl) CreateStorageTexture(label string, width, height uint32, fill [4]byte) (device.Texture, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("renderer: texture %q has zero extent %dx%d", label, width, height)
	}
	extent := wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1}
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Usage:         wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		Size:          extent,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to create texture %q: %w", label, err)
	}

	pixels := make([]byte, int(width)*int(height)*4)
	for i := 0; i < len(pixels); i += 4 {
		copy(pixels[i:i+4], fill[:])
	}
	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  width * 4,
			RowsPerImage: height,
		},
		&extent,
	)

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("renderer: failed to create view of %q: %w", label, err)
	}
	return &wgpuTexture{releaseOnce: newReleaseOnce(), texture: tex, view: view, width: width, height: height}, nil
}

func (b *wgpuRendererBackendImpl) CreateBindGroupLayout(label string, entries []device.LayoutEntry) (device.BindGroupLayout, error) {
	wgpuEntries := make([]wgpu.BindGroupLayoutEntry, len(entries))
	for i, e := range entries {
		wgpuEntries[i] = layoutEntry(e)
	}
	layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   label,
		Entries: wgpuEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to create layout %q: %w", label, err)
	}
	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label + " Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		layout.Release()
		return nil, fmt.Errorf("renderer: failed to create pipeline layout %q: %w", label, err)
	}
	return &wgpuLayout{releaseOnce: newReleaseOnce(), layout: layout, pipelineLayout: pipelineLayout}, nil
}

func (b *wgpuRendererBackendImpl) CreateBindGroup(label string, layout device.BindGroupLayout, entries []device.BindEntry) (device.BindGroup, error) {
	l, ok := layout.(*wgpuLayout)
	if !ok {
		return nil, fmt.Errorf("%w: layout for %q", ErrForeignResource, label)
	}

	wgpuEntries := make([]wgpu.BindGroupEntry, len(entries))
	for i, e := range entries {
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Texture != nil:
			t, ok := e.Texture.(*wgpuTexture)
			if !ok {
				return nil, fmt.Errorf("%w: texture at binding %d", ErrForeignResource, e.Binding)
			}
			entry.TextureView = t.view
		case e.Buffer != nil:
			buf, ok := e.Buffer.(*wgpuBuffer)
			if !ok {
				return nil, fmt.Errorf("%w: buffer at binding %d", ErrForeignResource, e.Binding)
			}
			entry.Buffer = buf.buffer
			entry.Offset = 0
			entry.Size = wgpu.WholeSize
		default:
			return nil, fmt.Errorf("renderer: bind group %q binding %d has no resource", label, e.Binding)
		}
		wgpuEntries[i] = entry
	}

	group, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label,
		Layout:  l.layout,
		Entries: wgpuEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to create bind group %q: %w", label, err)
	}
	return &wgpuBindGroup{releaseOnce: newReleaseOnce(), group: group}, nil
}

// CreateComputePipeline does not take the backend lock; wgpu serialises device access itself, and the render
// thread keeps recording frames while a worker compiles.
func (b *wgpuRendererBackendImpl) CreateComputePipeline(desc device.ComputePipelineDescriptor) (device.ComputePipeline, error) {
	l, ok := desc.Layout.(*wgpuLayout)
	if !ok {
		return nil, fmt.Errorf("%w: layout for pipeline %q", ErrForeignResource, desc.Label)
	}

	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.Source,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to create shader module %q: %w", desc.Label, err)
	}

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: l.pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: desc.EntryPoint,
		},
	})
	if err != nil {
		module.Release()
		return nil, fmt.Errorf("renderer: failed to create compute pipeline %q: %w", desc.Label, err)
	}
	return &wgpuPipeline{releaseOnce: newReleaseOnce(), pipeline: created, module: module, entryPoint: desc.EntryPoint}, nil
}

func (b *wgpuRendererBackendImpl) BeginComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder != nil {
		return errors.New("renderer: compute frame already open")
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	b.computeFrameEncoder = encoder
	return nil
}

func (b *wgpuRendererBackendImpl) EndComputeFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder == nil {
		return
	}

	commandBuffer, err := b.computeFrameEncoder.Finish(nil)
	if err != nil {
		common.Logger().Error("failed to finish compute frame", "error", err)
		b.computeFrameEncoder.Release()
		b.computeFrameEncoder = nil
		return
	}

	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	b.computeFrameEncoder.Release()
	b.computeFrameEncoder = nil
}

func (b *wgpuRendererBackendImpl) DispatchCompute(p device.ComputePipeline, bindGroup device.BindGroup, workGroupCount [3]uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder == nil {
		common.Logger().Error("compute dispatch dropped", "error", errNoComputeFrame)
		return
	}
	cp, ok := p.(*wgpuPipeline)
	bg, ok2 := bindGroup.(*wgpuBindGroup)
	if !ok || !ok2 {
		common.Logger().Error("compute dispatch dropped", "error", ErrForeignResource)
		return
	}

	pass := b.computeFrameEncoder.BeginComputePass(nil)
	pass.SetPipeline(cp.pipeline)
	pass.SetBindGroup(0, bg.group, nil)
	pass.DispatchWorkgroups(workGroupCount[0], workGroupCount[1], workGroupCount[2])
	pass.End()
}

func (b *wgpuRendererBackendImpl) SetPresentTarget(t device.Texture) error {
	tex, ok := t.(*wgpuTexture)
	if !ok {
		return fmt.Errorf("%w: present target", ErrForeignResource)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.presentLayout == nil {
		return errors.New("renderer: surface not configured")
	}
	group, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "Present Bind Group",
		Layout:  b.presentLayout,
		Entries: []wgpu.BindGroupEntry{{Binding: 0, TextureView: tex.view}},
	})
	if err != nil {
		return fmt.Errorf("renderer: failed to bind present target: %w", err)
	}
	if b.presentGroup != nil {
		b.presentGroup.Release()
	}
	b.presentGroup = group
	return nil
}

func (b *wgpuRendererBackendImpl) Present() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.configured {
		return nil
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	defer surfaceTexture.Release()

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		return err
	}
	defer view.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: b.clearColor,
			},
		},
	})
	if b.presentGroup != nil {
		pass.SetPipeline(b.presentPipeline)
		pass.SetBindGroup(0, b.presentGroup, nil)
		pass.Draw(3, 1, 0, 0)
	}
	pass.End()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()

	b.surface.Present()
	return nil
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.presentGroup != nil {
		b.presentGroup.Release()
		b.presentGroup = nil
	}
	if b.presentPipeline != nil {
		b.presentPipeline.Release()
		b.presentPipeline = nil
	}
	if b.presentModule != nil {
		b.presentModule.Release()
		b.presentModule = nil
	}
	if b.presentLayout != nil {
		b.presentLayout.Release()
		b.presentLayout = nil
	}
	if b.computeFrameEncoder != nil {
		b.computeFrameEncoder.Release()
		b.computeFrameEncoder = nil
	}
	b.device.Release()
	b.adapter.Release()
	b.surface.Release()
	b.instance.Release()
}

// createPresentPipelineLocked builds the fullscreen blit that draws the output image. b.mu must be held and the
// surface format must be known.
func (b *wgpuRendererBackendImpl) createPresentPipelineLocked() error {
	layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Present Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("renderer: failed to create present layout: %w", err)
	}

	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: "Present Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: presentShaderSource,
		},
	})
	if err != nil {
		layout.Release()
		return fmt.Errorf("renderer: failed to create present shader: %w", err)
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Present Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		module.Release()
		layout.Release()
		return fmt.Errorf("renderer: failed to create present pipeline layout: %w", err)
	}
	defer pipelineLayout.Release()

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Present Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    *b.surfaceFormat,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		module.Release()
		layout.Release()
		return fmt.Errorf("renderer: failed to create present pipeline: %w", err)
	}

	b.presentLayout = layout
	b.presentModule = module
	b.presentPipeline = created
	return nil
}
