package shader

import "github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device"

// wgslTypeLayout holds the byte size and alignment for a WGSL type per the WGSL specification.
// Used to compute MinBindingSize for buffer bindings.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

// parsedField represents a single field extracted from a WGSL struct during parsing
type parsedField struct {
	name      string
	typeName  string
	isBuiltin bool
}

// parsedStruct represents a WGSL struct block extracted during parsing
type parsedStruct struct {
	name   string
	fields []parsedField
}

// Binding is one @group(N) @binding(M) resource declaration parsed from a shader.
type Binding struct {
	Group   uint32
	Binding uint32

	// Name is the WGSL variable name.
	Name string

	// Kind is how the declaration binds, BindingKindUnknown for samplers and sampled textures.
	Kind device.BindingKind

	// AddressSpace is the var<> qualifier, empty for handle types.
	AddressSpace string

	// TypeName is the declared WGSL type.
	TypeName string

	// MinBindingSize is the size of the bound type in bytes. Runtime-sized arrays report their element stride.
	// Zero for textures and types the parser cannot resolve.
	MinBindingSize uint64

	// Format and Access are the texel format and access mode of a storage texture.
	Format string
	Access string
}

// EntryPoint is one @compute function parsed from a shader.
type EntryPoint struct {
	Name string

	// WorkgroupSize is the @workgroup_size of the function. Omitted dimensions are 1.
	WorkgroupSize [3]uint32
}
