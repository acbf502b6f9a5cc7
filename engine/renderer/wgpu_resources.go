package renderer

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device"
	"github.com/cogentcore/webgpu/wgpu"
)

// releaseOnce guards the Release of every wrapped wgpu object, since device.Resource allows repeated calls.
type releaseOnce struct {
	once *sync.Once
}

func newReleaseOnce() releaseOnce {
	return releaseOnce{once: &sync.Once{}}
}

type wgpuBuffer struct {
	releaseOnce
	buffer *wgpu.Buffer
	size   uint64
}

func (b *wgpuBuffer) Size() uint64 { return b.size }

func (b *wgpuBuffer) Release() {
	b.once.Do(b.buffer.Release)
}

type wgpuTexture struct {
	releaseOnce
	texture       *wgpu.Texture
	view          *wgpu.TextureView
	width, height uint32
}

func (t *wgpuTexture) Width() uint32  { return t.width }
func (t *wgpuTexture) Height() uint32 { return t.height }

func (t *wgpuTexture) Release() {
	t.once.Do(func() {
		t.view.Release()
		t.texture.Release()
	})
}

type wgpuLayout struct {
	releaseOnce
	layout         *wgpu.BindGroupLayout
	pipelineLayout *wgpu.PipelineLayout
}

func (l *wgpuLayout) Release() {
	l.once.Do(func() {
		l.pipelineLayout.Release()
		l.layout.Release()
	})
}

type wgpuBindGroup struct {
	releaseOnce
	group *wgpu.BindGroup
}

func (g *wgpuBindGroup) Release() {
	g.once.Do(g.group.Release)
}

type wgpuPipeline struct {
	releaseOnce
	pipeline   *wgpu.ComputePipeline
	module     *wgpu.ShaderModule
	entryPoint string
}

func (p *wgpuPipeline) EntryPoint() string { return p.entryPoint }

func (p *wgpuPipeline) Release() {
	p.once.Do(func() {
		p.pipeline.Release()
		p.module.Release()
	})
}

var (
	_ device.Buffer          = &wgpuBuffer{}
	_ device.Texture         = &wgpuTexture{}
	_ device.BindGroupLayout = &wgpuLayout{}
	_ device.BindGroup       = &wgpuBindGroup{}
	_ device.ComputePipeline = &wgpuPipeline{}
)

// layoutEntry converts a device layout entry into a compute-visible wgpu layout entry.
func layoutEntry(e device.LayoutEntry) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    e.Binding,
		Visibility: wgpu.ShaderStageCompute,
	}
	switch e.Kind {
	case device.BindingKindStorageTexture:
		entry.StorageTexture = wgpu.StorageTextureBindingLayout{
			Access:        wgpu.StorageTextureAccessWriteOnly,
			Format:        wgpu.TextureFormatRGBA8Unorm,
			ViewDimension: wgpu.TextureViewDimension2D,
		}
	case device.BindingKindReadOnlyStorage:
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
	case device.BindingKindStorage:
		entry.Buffer.Type = wgpu.BufferBindingTypeStorage
	case device.BindingKindUniform:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	}
	return entry
}
