package binding_set

import (
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-raytracer/common"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/frame_extractor"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/slot"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device"
)

// bindingSetAssembler is the implementation of the BindingSetAssembler interface.
type bindingSetAssembler struct {
	device       device.Device
	label        string
	declarations []slot.Declaration
	dataSlots    []slot.BufferSlot
	layout       device.BindGroupLayout
}

// BindingSetAssembler rebuilds the binding set from scratch every frame. The layout is created once from the slot
// declarations and every assembled set binds exactly those slots.
type BindingSetAssembler interface {
	// Assemble uploads every data buffer of snap's registry and binds them, together with tex at the output image
	// slot, into a new BindingSet. On error every resource created by the call is released.
	//
	// Parameters:
	//   - snap: the frame's snapshot
	//   - tex: the GPU texture backing snap.Image
	//
	// Returns:
	//   - BindingSet: the frame's binding set, to be released at frame end
	//   - error: ErrIncompleteBindingSet, ErrImageMismatch or a wrapped device error
	Assemble(snap frame_extractor.Snapshot, tex device.Texture) (BindingSet, error)

	// Layout returns the bind group layout every assembled set matches. Compute pipelines are created against it.
	//
	// Returns:
	//   - device.BindGroupLayout: the fixed layout
	Layout() device.BindGroupLayout

	// Declarations returns the slot declarations the layout was built from, ordered by slot.
	//
	// Returns:
	//   - []slot.Declaration: the declarations
	Declarations() []slot.Declaration

	// Release frees the layout.
	Release()
}

var _ BindingSetAssembler = &bindingSetAssembler{}

// NewBindingSetAssembler validates decls and creates the fixed bind group layout on d.
//
// Parameters:
//   - d: the device to create resources on
//   - decls: the full slot declaration table, typically slot.Declarations()
//   - options: builder options
//
// Returns:
//   - BindingSetAssembler: the new assembler
//   - error: an error if decls is invalid or the layout could not be created
func NewBindingSetAssembler(d device.Device, decls []slot.Declaration, options ...BindingSetAssemblerBuilderOption) (BindingSetAssembler, error) {
	if err := slot.Validate(decls); err != nil {
		return nil, fmt.Errorf("binding set: %w", err)
	}

	a := &bindingSetAssembler{
		device:       d,
		label:        "Raytracer",
		declarations: slices.Clone(decls),
	}
	for _, option := range options {
		option(a)
	}

	slices.SortFunc(a.declarations, func(x, y slot.Declaration) int { return int(x.Slot) - int(y.Slot) })
	for _, decl := range a.declarations {
		if decl.IsData() {
			a.dataSlots = append(a.dataSlots, decl.Slot)
		}
	}

	layout, err := d.CreateBindGroupLayout(a.label+" Bind Group Layout", LayoutEntries(a.declarations))
	if err != nil {
		return nil, fmt.Errorf("binding set: failed to create layout: %w", err)
	}
	a.layout = layout
	return a, nil
}

func (a *bindingSetAssembler) Assemble(snap frame_extractor.Snapshot, tex device.Texture) (BindingSet, error) {
	if snap.Registry == nil {
		return nil, incomplete(a.dataSlots, nil)
	}
	if got := snap.Registry.Slots(); !sameSlots(a.dataSlots, got) {
		return nil, incomplete(a.dataSlots, got)
	}
	if tex == nil {
		return nil, fmt.Errorf("%w: no texture for %s", ErrImageMismatch, snap.Image)
	}
	if tex.Width() != snap.Image.Width || tex.Height() != snap.Image.Height {
		return nil, fmt.Errorf("%w: texture is %dx%d, snapshot image is %s",
			ErrImageMismatch, tex.Width(), tex.Height(), snap.Image)
	}

	entries := make([]Entry, 0, len(a.declarations))
	binds := make([]device.BindEntry, 0, len(a.declarations))
	for _, decl := range a.declarations {
		if !decl.IsData() {
			entries = append(entries, Entry{Slot: decl.Slot, Texture: tex})
			binds = append(binds, device.BindEntry{Binding: decl.Slot.Binding(), Texture: tex})
			continue
		}

		data, err := snap.Registry.Bytes(decl.Slot)
		if err != nil {
			releaseBuffers(entries)
			return nil, fmt.Errorf("binding set: %w", err)
		}
		buf, err := a.device.CreateStorageBuffer(a.label+" "+decl.Name(), gpuBytes(decl, data))
		if err != nil {
			releaseBuffers(entries)
			return nil, fmt.Errorf("binding set: failed to create buffer for slot %s: %w", decl.Slot, err)
		}
		entries = append(entries, Entry{Slot: decl.Slot, Buffer: buf})
		binds = append(binds, device.BindEntry{Binding: decl.Slot.Binding(), Buffer: buf})
	}

	bg, err := a.device.CreateBindGroup(fmt.Sprintf("%s Bind Group #%d", a.label, snap.Frame), a.layout, binds)
	if err != nil {
		releaseBuffers(entries)
		return nil, fmt.Errorf("binding set: failed to create bind group: %w", err)
	}

	common.Logger().Debug("binding set assembled", "frame", snap.Frame, "entries", len(entries))
	return &bindingSet{frame: snap.Frame, bindGroup: bg, entries: entries}, nil
}

func (a *bindingSetAssembler) Layout() device.BindGroupLayout {
	return a.layout
}

func (a *bindingSetAssembler) Declarations() []slot.Declaration {
	out := make([]slot.Declaration, len(a.declarations))
	for i, d := range a.declarations {
		out[i] = d
		out[i].Initial = slices.Clone(d.Initial)
	}
	return out
}

func (a *bindingSetAssembler) Release() {
	if a.layout != nil {
		a.layout.Release()
		a.layout = nil
	}
}
