// pre_processor.go implements the Oxy WGSL shader pre-processor. It scans shader source for @oxy: annotations,
// replaces them with injected struct sources or generated slot declarations, and records which slots were declared.
//
// The pre-processor maintains one registry:
//   - structRegistry: maps AnnotationArg keys to embedded WGSL struct sources. Used by @oxy:include.
//
// It can also rewrite every @workgroup_size attribute to a configured size, so the dispatch grid derived from the
// parsed shader always matches the groups the GPU runs.
package shader

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/slot"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/scene"
)

// registryEntry pairs a WGSL struct source string (embedded from a .wgsl asset file) with its WGSL type name.
type registryEntry struct {
	// Source is the raw WGSL struct definition text injected by @oxy:include.
	Source string

	// Type is the WGSL type name the source declares (e.g. "Sphere").
	Type string
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// structRegistry maps struct type argument keys to their embedded WGSL source and type name.
	structRegistry map[AnnotationArg]registryEntry

	// declarations accumulates one slot annotation per generated declaration during a Process call.
	declarations []Annotation

	// workgroupSize replaces the x and y of every @workgroup_size attribute when both are non-zero.
	workgroupSize [2]uint32
}

// PreProcessor processes raw WGSL shader source code containing @oxy: annotations.
type PreProcessor interface {
	// Process replaces every @oxy: annotation in source with its WGSL output. The declarations list is reset at
	// the start of each call.
	//
	// Parameters:
	//   - source: the raw WGSL shader source code containing annotations to be processed
	//
	// Returns:
	//   - string: the processed WGSL shader source code with annotations replaced
	//   - error: an error if any annotation is malformed, references an unknown type or declares a slot twice
	Process(source string) (string, error)

	// Declarations returns one AnnotationTypeSlot annotation per slot declaration generated by the most recent
	// call to Process, in source order.
	//
	// Returns:
	//   - []Annotation: the declarations collected during the last Process call
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a new PreProcessor with all registered struct types.
//
// Parameters:
//   - options: builder options
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor(options ...PreProcessorBuilderOption) PreProcessor {
	p := &preProcessor{
		structRegistry: map[AnnotationArg]registryEntry{
			AnnotationArgSphere: {Source: scene.GPUSphereSource, Type: "Sphere"},
		},
	}
	for _, option := range options {
		option(p)
	}
	return p
}


func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]
	declared := make(map[slot.BufferSlot]int)

	declare := func(d slot.Declaration, a Annotation) (string, error) {
		if line, ok := declared[d.Slot]; ok {
			return "", fmt.Errorf("line %d: slot %q already declared on line %d", a.Line, d.Name(), line)
		}
		declared[d.Slot] = a.Line
		s := d.Slot
		p.declarations = append(p.declarations, Annotation{
			Type: AnnotationTypeSlot,
			Args: []AnnotationArg{AnnotationArg(d.Name())},
			Line: a.Line,
			Slot: &s,
		})
		return d.WGSL(), nil
	}

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			entry, ok := p.structRegistry[a.Args[0]]
			if !ok {
				return "", fmt.Errorf("line %d: unknown @oxy:include argument %q", i+1, a.Args[0])
			}
			out = append(out, strings.TrimRight(entry.Source, "\n"))
		case AnnotationTypeSlot:
			d, _ := slot.Lookup(*a.Slot)
			decl, err := declare(d, *a)
			if err != nil {
				return "", err
			}
			out = append(out, decl)
		case AnnotationTypeSlots:
			for _, d := range slot.Declarations() {
				decl, err := declare(d, *a)
				if err != nil {
					return "", err
				}
				out = append(out, decl)
			}
		default:
			return "", fmt.Errorf("line %d: unknown annotation type %q", i+1, a.Type)
		}
	}
	processed := strings.Join(out, "\n")
	if p.workgroupSize[0] > 0 {
		processed = workgroupSizeRegex.ReplaceAllLiteralString(processed,
			fmt.Sprintf("@workgroup_size(%d, %d, 1)", p.workgroupSize[0], p.workgroupSize[1]))
	}
	return processed, nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}
