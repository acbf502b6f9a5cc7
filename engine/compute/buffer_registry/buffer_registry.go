// Package buffer_registry holds the simulation-side byte image of every data slot. Writes are checked against the
// slot's element size, and Clone produces the deep copy a frame snapshot carries to the render side.
package buffer_registry

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-raytracer/common"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/slot"
	"github.com/jinzhu/copier"
)

var (
	// ErrUnknownSlot is returned when a slot outside the registry is written or read.
	ErrUnknownSlot = errors.New("buffer registry: unknown slot")

	// ErrNotDataSlot is returned when the output image slot is written as bytes.
	ErrNotDataSlot = errors.New("buffer registry: slot does not hold a data buffer")

	// ErrElementSize is returned when a write's byte length does not fit the slot's element size.
	ErrElementSize = errors.New("buffer registry: byte length does not fit element size")
)

// DataBuffer is the raw byte image of the value held at a slot.
type DataBuffer struct {
	Slot  slot.BufferSlot
	Bytes []byte
}

// bufferRegistry is the implementation of the BufferRegistry interface.
type bufferRegistry struct {
	// buffers holds one entry per data slot, ordered by slot.
	buffers []DataBuffer

	// index maps a slot to its position in buffers. Shared read-only between clones.
	index map[slot.BufferSlot]int

	// declarations maps a slot to its static declaration. Shared read-only between clones.
	declarations map[slot.BufferSlot]slot.Declaration
}

// BufferRegistry is a fixed set of byte buffers, one per declared data slot. Writes replace a slot's buffer
// wholesale; no slot can be added or removed after construction.
//
// A registry is not safe for concurrent use. The simulation side owns the live registry and hands the render side a
// Clone each frame.
type BufferRegistry interface {
	// WriteBytes replaces the buffer at s with a copy of data. The write either fully succeeds or leaves the
	// registry unchanged.
	//
	// Parameters:
	//   - s: the slot to replace
	//   - data: the new raw bytes, which must fit the slot's element size
	//
	// Returns:
	//   - error: ErrUnknownSlot, ErrNotDataSlot or ErrElementSize (wrapped with the slot name), or nil
	WriteBytes(s slot.BufferSlot, data []byte) error

	// Bytes returns the current buffer at s. The returned slice must not be modified.
	//
	// Parameters:
	//   - s: the slot to read
	//
	// Returns:
	//   - []byte: the raw bytes at the slot
	//   - error: ErrUnknownSlot if the slot is not registered
	Bytes(s slot.BufferSlot) ([]byte, error)

	// Buffers returns every DataBuffer ordered by slot. The byte slices must not be modified.
	//
	// Returns:
	//   - []DataBuffer: one entry per registered slot
	Buffers() []DataBuffer

	// Slots returns the registered slots in ascending order.
	//
	// Returns:
	//   - []slot.BufferSlot: the registered slots
	Slots() []slot.BufferSlot

	// Declaration returns the static declaration a slot was registered with.
	//
	// Parameters:
	//   - s: the slot to look up
	//
	// Returns:
	//   - slot.Declaration: the declaration
	//   - bool: false if the slot is not registered
	Declaration(s slot.BufferSlot) (slot.Declaration, bool)

	// Len returns the number of registered slots.
	//
	// Returns:
	//   - int: the slot count
	Len() int

	// Clone returns a deep copy whose buffers share no memory with the receiver.
	//
	// Returns:
	//   - BufferRegistry: the independent copy
	Clone() BufferRegistry
}

var _ BufferRegistry = &bufferRegistry{}

// NewBufferRegistry validates decls as a complete slot table and seeds one buffer per data slot with its initial
// bytes. A missing, duplicate or inconsistent declaration is a configuration error.
//
// Parameters:
//   - decls: the full slot declaration table, typically slot.Declarations()
//
// Returns:
//   - BufferRegistry: the seeded registry
//   - error: an error wrapping a slot package sentinel if decls is not a valid table
func NewBufferRegistry(decls []slot.Declaration) (BufferRegistry, error) {
	if err := slot.Validate(decls); err != nil {
		return nil, fmt.Errorf("buffer registry: %w", err)
	}

	sorted := slices.Clone(decls)
	slices.SortFunc(sorted, func(a, b slot.Declaration) int { return int(a.Slot) - int(b.Slot) })

	r := &bufferRegistry{
		index:        make(map[slot.BufferSlot]int, len(sorted)),
		declarations: make(map[slot.BufferSlot]slot.Declaration, len(sorted)),
	}
	for _, d := range sorted {
		if !d.IsData() {
			continue
		}
		r.index[d.Slot] = len(r.buffers)
		r.declarations[d.Slot] = d
		r.buffers = append(r.buffers, DataBuffer{Slot: d.Slot, Bytes: own(d.Initial)})
	}
	return r, nil
}

// Write serializes values as their raw memory image and writes them to s. T must be a fixed-size plain-old-data
// type whose Go layout matches the WGSL layout of the slot (e.g. [3]float32 for vec3<f32>, mgl32.Mat4 for
// mat4x4<f32>).
//
// Parameters:
//   - r: the registry to write to
//   - s: the slot to replace
//   - values: the elements to write
//
// Returns:
//   - error: the same errors as BufferRegistry.WriteBytes
func Write[T any](r BufferRegistry, s slot.BufferSlot, values ...T) error {
	return r.WriteBytes(s, common.SliceToBytes(values))
}

func (r *bufferRegistry) WriteBytes(s slot.BufferSlot, data []byte) error {
	i, ok := r.index[s]
	if !ok {
		if d, declared := slot.Lookup(s); declared && !d.IsData() {
			return fmt.Errorf("%w: %s", ErrNotDataSlot, s)
		}
		return fmt.Errorf("%w: %s", ErrUnknownSlot, s)
	}
	d := r.declarations[s]
	if !d.Fits(len(data)) {
		return fmt.Errorf("%w: %s got %d bytes, element size %d", ErrElementSize, s, len(data), d.ElementSize)
	}
	r.buffers[i] = DataBuffer{Slot: s, Bytes: own(data)}
	return nil
}

func (r *bufferRegistry) Bytes(s slot.BufferSlot) ([]byte, error) {
	i, ok := r.index[s]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSlot, s)
	}
	return r.buffers[i].Bytes, nil
}

func (r *bufferRegistry) Buffers() []DataBuffer {
	return slices.Clone(r.buffers)
}

func (r *bufferRegistry) Slots() []slot.BufferSlot {
	out := make([]slot.BufferSlot, len(r.buffers))
	for i, b := range r.buffers {
		out[i] = b.Slot
	}
	return out
}

func (r *bufferRegistry) Declaration(s slot.BufferSlot) (slot.Declaration, bool) {
	d, ok := r.declarations[s]
	return d, ok
}

func (r *bufferRegistry) Len() int {
	return len(r.buffers)
}

func (r *bufferRegistry) Clone() BufferRegistry {
	var buffers []DataBuffer
	if err := copier.CopyWithOption(&buffers, &r.buffers, copier.Option{DeepCopy: true}); err != nil {
		// copier only fails on mismatched kinds, which cannot happen for identical slice types.
		panic(fmt.Sprintf("buffer registry: clone failed: %v", err))
	}
	// copier leaves nil for empty slices; buffers are never nil.
	for i := range buffers {
		if buffers[i].Bytes == nil {
			buffers[i].Bytes = []byte{}
		}
	}
	return &bufferRegistry{
		buffers:      buffers,
		index:        r.index,
		declarations: r.declarations,
	}
}

// own returns a non-nil copy of data.
func own(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	return out
}
