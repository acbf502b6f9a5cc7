// Package binding_set turns a frame snapshot and the output texture into GPU buffers and a single bind group that
// matches the fixed slot layout.
package binding_set

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/slot"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device"
)

var (
	// ErrIncompleteBindingSet is returned when the snapshot's registry does not hold exactly the declared data slots.
	ErrIncompleteBindingSet = errors.New("binding set: registry does not match declared slots")

	// ErrImageMismatch is returned when the output texture is missing or does not match the snapshot's image.
	ErrImageMismatch = errors.New("binding set: output texture does not match snapshot image")
)

// Entry is one resource of a BindingSet. Exactly one of Buffer or Texture is set.
type Entry struct {
	Slot    slot.BufferSlot
	Buffer  device.Buffer
	Texture device.Texture
}

// bindingSet is the implementation of the BindingSet interface.
type bindingSet struct {
	frame     uint64
	bindGroup device.BindGroup
	entries   []Entry
	released  bool
}

// BindingSet is the complete set of resources bound for one frame's dispatch. It is discarded at frame end.
type BindingSet interface {
	// Frame returns the index of the snapshot the set was assembled from.
	//
	// Returns:
	//   - uint64: the frame index
	Frame() uint64

	// BindGroup returns the GPU bind group set at group 0 for the dispatch.
	//
	// Returns:
	//   - device.BindGroup: the bind group
	BindGroup() device.BindGroup

	// Entries returns one entry per declared slot, ordered by slot.
	//
	// Returns:
	//   - []Entry: the bound resources
	Entries() []Entry

	// Slots returns the bound slots in ascending order.
	//
	// Returns:
	//   - []slot.BufferSlot: the bound slots
	Slots() []slot.BufferSlot

	// Release frees the bind group and every buffer created for the set. The output texture is not owned by the
	// set and is left untouched.
	Release()
}

var _ BindingSet = &bindingSet{}

func (s *bindingSet) Frame() uint64 {
	return s.frame
}

func (s *bindingSet) BindGroup() device.BindGroup {
	return s.bindGroup
}

func (s *bindingSet) Entries() []Entry {
	return slices.Clone(s.entries)
}

func (s *bindingSet) Slots() []slot.BufferSlot {
	out := make([]slot.BufferSlot, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Slot
	}
	return out
}

func (s *bindingSet) Release() {
	if s.released {
		return
	}
	s.released = true
	if s.bindGroup != nil {
		s.bindGroup.Release()
	}
	releaseBuffers(s.entries)
}

func releaseBuffers(entries []Entry) {
	for _, e := range entries {
		if e.Buffer != nil {
			e.Buffer.Release()
		}
	}
}

// LayoutEntries builds the bind group layout entries for decls, ordered by binding.
//
// Parameters:
//   - decls: the slot declarations
//
// Returns:
//   - []device.LayoutEntry: one layout entry per declaration
func LayoutEntries(decls []slot.Declaration) []device.LayoutEntry {
	entries := make([]device.LayoutEntry, 0, len(decls))
	for _, d := range decls {
		entries = append(entries, device.LayoutEntry{Binding: d.Slot.Binding(), Kind: d.Kind})
	}
	slices.SortFunc(entries, func(a, b device.LayoutEntry) int { return int(a.Binding) - int(b.Binding) })
	return entries
}

// gpuBytes returns the bytes uploaded for a slot. GPU buffers cannot be empty, so an empty array slot is uploaded
// as one zeroed element.
func gpuBytes(d slot.Declaration, data []byte) []byte {
	if len(data) == 0 {
		return make([]byte, d.ElementSize)
	}
	return data
}

func sameSlots(a, b []slot.BufferSlot) bool {
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

func describe(slots []slot.BufferSlot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.String()
	}
	return out
}

func incomplete(want, got []slot.BufferSlot) error {
	return fmt.Errorf("%w: declared %v, registry has %v", ErrIncompleteBindingSet, describe(want), describe(got))
}
