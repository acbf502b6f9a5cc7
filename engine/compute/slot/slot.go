// Package slot holds the static declaration table shared by the buffer registry, the binding set assembler and the
// shader pre-processor. Slots form a closed enumeration; each one fixes a binding index, a binding kind, a WGSL
// declaration and, for data slots, the element size and initial bytes.
package slot

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-raytracer/common"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device"
)

// BufferSlot identifies a fixed logical GPU resource. Its value is the @binding index in group 0.
type BufferSlot uint32

const (
	// SlotOutputImage is the storage texture the kernels paint into.
	SlotOutputImage BufferSlot = iota

	// SlotCameraPosition is the camera's world position, one vec3<f32>.
	SlotCameraPosition

	// SlotCameraDirection is the camera's forward vector, one vec3<f32>.
	SlotCameraDirection

	// SlotScreenResolution is the output resolution in pixels, one vec2<f32>.
	SlotScreenResolution

	// SlotScreenAspectRatio is width / height, one f32.
	SlotScreenAspectRatio

	// SlotInverseViewMatrix is the inverse of the camera's left-handed view matrix, one mat4x4<f32>.
	SlotInverseViewMatrix

	// SlotSpheres is the scene's sphere array, zero or more Sphere records.
	SlotSpheres

	slotCount
)

var (
	// ErrMissingSlot is returned when a declaration list omits a slot of the closed set.
	ErrMissingSlot = errors.New("slot: missing declaration")

	// ErrDuplicateSlot is returned when a declaration list declares a slot more than once.
	ErrDuplicateSlot = errors.New("slot: duplicate declaration")

	// ErrUnknownSlot is returned when a declaration list names a slot outside the closed set.
	ErrUnknownSlot = errors.New("slot: unknown slot")

	// ErrInvalidDeclaration is returned when a declaration is internally inconsistent.
	ErrInvalidDeclaration = errors.New("slot: invalid declaration")
)

var slotNames = [slotCount]string{
	SlotOutputImage:       "output_image",
	SlotCameraPosition:    "camera_position",
	SlotCameraDirection:   "camera_direction",
	SlotScreenResolution:  "screen_resolution",
	SlotScreenAspectRatio: "screen_aspect_ratio",
	SlotInverseViewMatrix: "inverse_view_matrix",
	SlotSpheres:           "spheres",
}

func (s BufferSlot) String() string {
	if s < slotCount {
		return slotNames[s]
	}
	return fmt.Sprintf("slot(%d)", uint32(s))
}

// Binding returns the @binding index of the slot within group 0.
func (s BufferSlot) Binding() uint32 {
	return uint32(s)
}

// Valid reports whether s belongs to the closed slot set.
func (s BufferSlot) Valid() bool {
	return s < slotCount
}

// Declaration is one row of the static slot table.
type Declaration struct {
	// Slot is the slot being declared.
	Slot BufferSlot

	// Kind is how the resource is bound in the kernels.
	Kind device.BindingKind

	// WGSLType is the type used in the generated WGSL declaration.
	WGSLType string

	// AddressSpace is the var<> qualifier used in the generated WGSL declaration, empty for textures.
	AddressSpace string

	// ElementSize is the size in bytes of one element. Zero for the output image.
	ElementSize int

	// Array is true when the slot holds zero or more elements instead of exactly one.
	Array bool

	// Initial holds the bytes the registry is seeded with. Nil for the output image.
	Initial []byte
}

// Name returns the WGSL variable name of the declaration.
func (d Declaration) Name() string {
	return d.Slot.String()
}

// IsData reports whether the declaration describes a byte buffer rather than the output image.
func (d Declaration) IsData() bool {
	return d.Kind.IsBuffer()
}

// Fits reports whether n bytes form a valid value for the declaration: exactly one element for scalar slots,
// a whole number of elements for array slots.
//
// Parameters:
//   - n: the byte length to check
//
// Returns:
//   - bool: true if n is a valid length
func (d Declaration) Fits(n int) bool {
	if d.ElementSize <= 0 {
		return false
	}
	if d.Array {
		return n >= 0 && n%d.ElementSize == 0
	}
	return n == d.ElementSize
}

// WGSL returns the group 0 declaration line for the slot.
//
// Returns:
//   - string: the WGSL declaration, e.g. "@group(0) @binding(1) var<storage, read> camera_position: vec3<f32>;"
func (d Declaration) WGSL() string {
	qualifier := "var"
	if d.AddressSpace != "" {
		qualifier = fmt.Sprintf("var<%s>", d.AddressSpace)
	}
	return fmt.Sprintf("@group(0) @binding(%d) %s %s: %s;", d.Slot.Binding(), qualifier, d.Name(), d.WGSLType)
}

func (d Declaration) clone() Declaration {
	d.Initial = slices.Clone(d.Initial)
	return d
}

// declarations is the static table. Initial values match the raytracer's startup state; the resolution and aspect
// are rewritten from the window size before the first frame.
var declarations = []Declaration{
	{
		Slot:     SlotOutputImage,
		Kind:     device.BindingKindStorageTexture,
		WGSLType: "texture_storage_2d<rgba8unorm, write>",
	},
	{
		Slot:         SlotCameraPosition,
		Kind:         device.BindingKindReadOnlyStorage,
		WGSLType:     "vec3<f32>",
		AddressSpace: "storage, read",
		ElementSize:  12,
		Initial:      common.Float32sToBytes(0, 0, 0),
	},
	{
		Slot:         SlotCameraDirection,
		Kind:         device.BindingKindReadOnlyStorage,
		WGSLType:     "vec3<f32>",
		AddressSpace: "storage, read",
		ElementSize:  12,
		Initial:      common.Float32sToBytes(0, 0, 0),
	},
	{
		Slot:         SlotScreenResolution,
		Kind:         device.BindingKindReadOnlyStorage,
		WGSLType:     "vec2<f32>",
		AddressSpace: "storage, read",
		ElementSize:  8,
		Initial:      common.Float32sToBytes(1920, 1080),
	},
	{
		Slot:         SlotScreenAspectRatio,
		Kind:         device.BindingKindReadOnlyStorage,
		WGSLType:     "f32",
		AddressSpace: "storage, read",
		ElementSize:  4,
		Initial:      common.Float32sToBytes(float32(1920.0) / 1080.0),
	},
	{
		Slot:         SlotInverseViewMatrix,
		Kind:         device.BindingKindReadOnlyStorage,
		WGSLType:     "mat4x4<f32>",
		AddressSpace: "storage, read",
		ElementSize:  64,
		Initial: common.Float32sToBytes(
			1, 0, 0, 0,
			0, 1, 0, 0,
			0, 0, 1, 0,
			0, 0, 0, 1,
		),
	},
	{
		Slot:         SlotSpheres,
		Kind:         device.BindingKindReadOnlyStorage,
		WGSLType:     "array<Sphere>",
		AddressSpace: "storage, read",
		ElementSize:  16,
		Array:        true,
		Initial: common.Float32sToBytes(
			0, 0, 5, 1,
			4, 0, 5, 2,
		),
	},
}

// Declarations returns a copy of the static table ordered by slot.
//
// Returns:
//   - []Declaration: one declaration per slot
func Declarations() []Declaration {
	out := make([]Declaration, len(declarations))
	for i, d := range declarations {
		out[i] = d.clone()
	}
	return out
}

// DataDeclarations returns the declarations that hold byte buffers, ordered by slot.
//
// Returns:
//   - []Declaration: every declaration except the output image
func DataDeclarations() []Declaration {
	out := make([]Declaration, 0, len(declarations)-1)
	for _, d := range declarations {
		if d.IsData() {
			out = append(out, d.clone())
		}
	}
	return out
}

// Lookup returns the static declaration of s.
//
// Parameters:
//   - s: the slot to look up
//
// Returns:
//   - Declaration: the declaration
//   - bool: false if s is outside the closed set
func Lookup(s BufferSlot) (Declaration, bool) {
	for _, d := range declarations {
		if d.Slot == s {
			return d.clone(), true
		}
	}
	return Declaration{}, false
}

// ByName returns the static declaration whose WGSL variable name is name.
//
// Parameters:
//   - name: the variable name, e.g. "camera_position"
//
// Returns:
//   - Declaration: the declaration
//   - bool: false if no slot has that name
func ByName(name string) (Declaration, bool) {
	for _, d := range declarations {
		if d.Name() == name {
			return d.clone(), true
		}
	}
	return Declaration{}, false
}

// Validate checks that decls declares every slot of the closed set exactly once, that only the output image is a
// texture, and that every data slot has a positive element size and initial bytes that fit it.
//
// Parameters:
//   - decls: the declaration list to check
//
// Returns:
//   - error: nil, or an error wrapping one of the package's sentinel errors and naming the slot
func Validate(decls []Declaration) error {
	seen := make(map[BufferSlot]bool, len(decls))
	for _, d := range decls {
		if !d.Slot.Valid() {
			return fmt.Errorf("%w: %s", ErrUnknownSlot, d.Slot)
		}
		if seen[d.Slot] {
			return fmt.Errorf("%w: %s", ErrDuplicateSlot, d.Slot)
		}
		seen[d.Slot] = true

		switch {
		case d.Slot == SlotOutputImage && d.Kind != device.BindingKindStorageTexture:
			return fmt.Errorf("%w: %s must be a storage texture, got %s", ErrInvalidDeclaration, d.Slot, d.Kind)
		case d.Slot != SlotOutputImage && !d.IsData():
			return fmt.Errorf("%w: %s must be a buffer, got %s", ErrInvalidDeclaration, d.Slot, d.Kind)
		case d.IsData() && d.ElementSize <= 0:
			return fmt.Errorf("%w: %s has element size %d", ErrInvalidDeclaration, d.Slot, d.ElementSize)
		case d.IsData() && !d.Fits(len(d.Initial)):
			return fmt.Errorf("%w: %s initial value is %d bytes, element size %d", ErrInvalidDeclaration, d.Slot, len(d.Initial), d.ElementSize)
		}
	}
	for s := BufferSlot(0); s < slotCount; s++ {
		if !seen[s] {
			return fmt.Errorf("%w: %s", ErrMissingSlot, s)
		}
	}
	return nil
}
