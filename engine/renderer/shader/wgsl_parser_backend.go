package shader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device"
)

// wgslPrimitiveLayoutMap maps WGSL scalar, vector and matrix type names to their byte size and alignment.
//
// Reference: https://www.w3.org/TR/WGSL/#alignment-and-size
var wgslPrimitiveLayoutMap = buildPrimitiveLayouts()

// buildPrimitiveLayouts expands the 32-bit scalar types into their vector aliases and adds the f32 matrices.
// A matCxR<f32> is C columns of vecR<f32>, each padded to the column alignment.
func buildPrimitiveLayouts() map[string]wgslTypeLayout {
	layouts := map[string]wgslTypeLayout{
		"bool":        {4, 4},
		"atomic<u32>": {4, 4},
		"atomic<i32>": {4, 4},
	}
	vec := [5]wgslTypeLayout{2: {8, 8}, 3: {12, 16}, 4: {16, 16}}
	for _, scalar := range []string{"f32", "i32", "u32"} {
		layouts[scalar] = wgslTypeLayout{4, 4}
		for n := 2; n <= 4; n++ {
			layouts[fmt.Sprintf("vec%d<%s>", n, scalar)] = vec[n]
			layouts[fmt.Sprintf("vec%d%c", n, scalar[0])] = vec[n]
		}
	}
	for c := 2; c <= 4; c++ {
		for r := 2; r <= 4; r++ {
			column := vec[r]
			size := uint64(c) * roundUpAlign(column.align, column.size)
			layouts[fmt.Sprintf("mat%dx%d<f32>", c, r)] = wgslTypeLayout{size, column.align}
			layouts[fmt.Sprintf("mat%dx%df", c, r)] = wgslTypeLayout{size, column.align}
		}
	}
	return layouts
}

// roundUpAlign rounds value up to the next multiple of alignment.
// Alignment must be a power of two.
//
// Parameters:
//   - alignment: the required alignment (must be a power of two)
//   - value: the value to align
//
// Returns:
//   - uint64: value rounded up to the next multiple of alignment
func roundUpAlign(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// resolveTypeLayout resolves a WGSL type name to its size and alignment using primitives and previously computed
// struct layouts. Fixed-size arrays report their full size; runtime-sized arrays report their element stride.
//
// Parameters:
//   - typeName: the WGSL type name to resolve, e.g. "f32", "Sphere", "array<Sphere>"
//   - knownTypes: a map of already-resolved type names to their layouts
//
// Returns:
//   - wgslTypeLayout: the resolved layout
//   - bool: true if the type could be resolved
func resolveTypeLayout(typeName string, knownTypes map[string]wgslTypeLayout) (wgslTypeLayout, bool) {
	if layout, ok := wgslPrimitiveLayoutMap[typeName]; ok {
		return layout, true
	}
	if layout, ok := knownTypes[typeName]; ok {
		return layout, true
	}

	base, params := splitTypeParams(typeName)
	if base != "array" || params == "" {
		return wgslTypeLayout{}, false
	}
	parts := splitAtTopLevelCommas(params)
	elemLayout, ok := resolveTypeLayout(strings.TrimSpace(parts[0]), knownTypes)
	if !ok {
		return wgslTypeLayout{}, false
	}
	stride := roundUpAlign(elemLayout.align, elemLayout.size)
	if len(parts) == 1 {
		return wgslTypeLayout{stride, elemLayout.align}, true
	}
	count, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return wgslTypeLayout{}, false
	}
	return wgslTypeLayout{count * stride, elemLayout.align}, true
}

// isRuntimeArray reports whether typeName is array<T> without an element count.
func isRuntimeArray(typeName string) bool {
	base, params := splitTypeParams(typeName)
	return base == "array" && len(splitAtTopLevelCommas(params)) == 1
}

// computeStructLayout computes the byte size and alignment of a single WGSL struct using WGSL struct layout rules:
// each field is placed at the next aligned offset, and the total size is rounded up to the struct's alignment.
// A trailing runtime-sized array contributes nothing to the size. Fields with @builtin attributes are skipped.
//
// Parameters:
//   - ps: the parsed struct whose layout to compute
//   - knownTypes: a map of already-resolved type names to their layouts
//
// Returns:
//   - wgslTypeLayout: the computed layout
//   - bool: true if all fields could be resolved
func computeStructLayout(ps parsedStruct, knownTypes map[string]wgslTypeLayout) (wgslTypeLayout, bool) {
	offset := uint64(0)
	maxAlign := uint64(1)

	for i, field := range ps.fields {
		if field.isBuiltin {
			continue
		}

		fieldLayout, ok := resolveTypeLayout(field.typeName, knownTypes)
		if !ok {
			return wgslTypeLayout{}, false
		}
		if fieldLayout.align > maxAlign {
			maxAlign = fieldLayout.align
		}
		offset = roundUpAlign(fieldLayout.align, offset)
		if isRuntimeArray(field.typeName) && i == len(ps.fields)-1 {
			break
		}
		offset += fieldLayout.size
	}

	return wgslTypeLayout{roundUpAlign(maxAlign, offset), maxAlign}, true
}

// computeStructSizes computes the byte size and alignment of all parsed WGSL structs, resolving structs that
// contain other structs iteratively.
//
// Parameters:
//   - structs: all parsed struct blocks from the WGSL source
//
// Returns:
//   - map[string]wgslTypeLayout: a map from struct name to computed layout
func computeStructSizes(structs []parsedStruct) map[string]wgslTypeLayout {
	resolved := make(map[string]wgslTypeLayout, len(structs))
	remaining := append([]parsedStruct(nil), structs...)

	for len(remaining) > 0 {
		next := remaining[:0]
		for _, ps := range remaining {
			if layout, ok := computeStructLayout(ps, resolved); ok {
				resolved[ps.name] = layout
			} else {
				next = append(next, ps)
			}
		}
		if len(next) == len(remaining) {
			break
		}
		remaining = next
	}

	return resolved
}

// classifyResource sets the binding kind of b from its address space and type name. Storage textures also get
// their texel format and access mode.
//
// Parameters:
//   - b: the parsed binding to classify
func classifyResource(b *Binding) {
	switch {
	case b.AddressSpace == "uniform":
		b.Kind = device.BindingKindUniform
	case strings.HasPrefix(b.AddressSpace, "storage"):
		if strings.Contains(b.AddressSpace, "read_write") {
			b.Kind = device.BindingKindStorage
		} else {
			b.Kind = device.BindingKindReadOnlyStorage
		}
	case b.AddressSpace == "" && strings.HasPrefix(b.TypeName, "texture_storage_2d<"):
		b.Kind = device.BindingKindStorageTexture
		_, params := splitTypeParams(b.TypeName)
		format, access, _ := strings.Cut(params, ",")
		b.Format = strings.TrimSpace(format)
		b.Access = strings.TrimSpace(access)
	default:
		b.Kind = device.BindingKindUnknown
	}
}

// splitTypeParams splits a WGSL parameterized type into its base name and parameter string.
// For "texture_storage_2d<rgba8unorm, write>" returns ("texture_storage_2d", "rgba8unorm, write").
// For "f32" (no params) returns ("f32", "").
//
// Parameters:
//   - typeName: the WGSL type string to split
//
// Returns:
//   - base: the type name before the first angle bracket
//   - params: the content between the outer angle brackets, or empty if none
func splitTypeParams(typeName string) (base string, params string) {
	before, after, ok := strings.Cut(typeName, "<")
	if !ok {
		return typeName, ""
	}
	return strings.TrimSpace(before), strings.TrimSpace(strings.TrimSuffix(after, ">"))
}

// stripComments removes both single-line (//) and block (/* */) comments from WGSL source.
// Block comments may be nested per the WGSL specification.
//
// Parameters:
//   - source: raw WGSL source string
//
// Returns:
//   - string: source with all comments removed
func stripComments(source string) string {
	return stripLineComments(stripBlockComments(source))
}

// stripLineComments removes single-line // comments from WGSL source
func stripLineComments(source string) string {
	var sb strings.Builder
	for line := range strings.SplitSeq(source, "\n") {
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// stripBlockComments removes block comments (/* ... */) from WGSL source, handling nesting
func stripBlockComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		if i+1 < len(source) {
			switch {
			case source[i] == '/' && source[i+1] == '*':
				depth++
				i++
				continue
			case source[i] == '*' && source[i+1] == '/' && depth > 0:
				depth--
				i++
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}

// splitAtTopLevelCommas splits a string at commas that are not nested inside angle brackets, so that
// array<Sphere, 4> stays one part.
//
// Parameters:
//   - s: the string to split
//
// Returns:
//   - []string: substrings between top-level commas
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}
