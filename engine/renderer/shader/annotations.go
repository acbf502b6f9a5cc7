// annotations.go defines the annotation types and parser for the raytracer's WGSL pre-processor. Annotations are
// single-line WGSL comments prefixed with @oxy: that inject struct sources and generate the group 0 slot
// declarations from the static slot table, so the kernels and the table cannot drift apart.
package shader

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/slot"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a WGSL comment line.
// Every annotation must appear on a line beginning with "//" followed by this prefix.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// annotationTypeInclude injects the WGSL source of a registered struct definition at the annotation site.
	//
	// Syntax: //@oxy:include <struct_type>
	//
	// Example: //@oxy:include sphere
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeSlot generates the @group(0) @binding(N) declaration of one slot and records it.
	//
	// Syntax: //@oxy:slot <slot_name>
	//
	// Example: //@oxy:slot camera_position
	AnnotationTypeSlot AnnotationType = "slot"

	// AnnotationTypeSlots generates the declarations of every slot in slot order and records each of them.
	//
	// Syntax: //@oxy:slots
	AnnotationTypeSlots AnnotationType = "slots"
)

// Annotation represents a single parsed @oxy: annotation from a WGSL shader source line.
type Annotation struct {
	// Type identifies which annotation was parsed.
	Type AnnotationType

	// Args holds the annotation's arguments:
	//   - include: [0] = struct type key (e.g. "sphere")
	//   - slot:    [0] = slot name (e.g. "camera_position")
	//   - slots:   none
	Args []AnnotationArg

	// Line is the 1-based line number in the original WGSL source. Used for error reporting.
	Line int

	// Slot is the slot a slot annotation declares. For a slots annotation one Annotation per slot is recorded.
	Slot *slot.BufferSlot
}

// AnnotationArg is a typed string used as an argument in annotations.
type AnnotationArg string

const (
	// AnnotationArgSphere identifies the Sphere struct.
	// Source: engine/scene/assets/sphere.wgsl
	AnnotationArgSphere AnnotationArg = "sphere"
)

// validStructTypes lists all AnnotationArg values accepted by @oxy:include. Each entry must have a corresponding
// registryEntry in the PreProcessor's structRegistry.
var validStructTypes = []AnnotationArg{
	AnnotationArgSphere,
}

// parseAnnotation attempts to parse a single line of WGSL source as an @oxy: annotation.
// Returns nil with no error for lines that do not contain the annotation prefix.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	comment, ok := strings.CutPrefix(trimmed, "//")
	if !ok {
		return nil, nil
	}
	after, ok := strings.CutPrefix(strings.TrimSpace(comment), annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch args[0] {
	case string(annotationTypeInclude):
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		if !slices.Contains(validStructTypes, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown struct type %q in @oxy include annotation", lineNum, args[1])
		}
		return &Annotation{
			Type: annotationTypeInclude,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	case string(AnnotationTypeSlot):
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy slot annotation requires exactly one argument (slot name)", lineNum)
		}
		d, ok := slot.ByName(args[1])
		if !ok {
			return nil, fmt.Errorf("line %d: unknown slot %q in @oxy slot annotation", lineNum, args[1])
		}
		return &Annotation{
			Type: AnnotationTypeSlot,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
			Slot: &d.Slot,
		}, nil
	case string(AnnotationTypeSlots):
		if len(args) != 1 {
			return nil, fmt.Errorf("line %d: @oxy slots annotation takes no arguments", lineNum)
		}
		return &Annotation{Type: AnnotationTypeSlots, Line: lineNum}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}
