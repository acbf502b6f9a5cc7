package shader

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/Carmen-Shannon/oxy-raytracer/engine/compute/slot"
	"github.com/Carmen-Shannon/oxy-raytracer/engine/renderer/device"
)

var (
	// ErrLayoutMismatch is returned when a shader's group 0 declarations disagree with the slot table.
	ErrLayoutMismatch = errors.New("shader: binding layout mismatch")

	// ErrMissingEntryPoint is returned when a shader lacks a required @compute entry point.
	ErrMissingEntryPoint = errors.New("shader: missing entry point")
)

// outputImageFormat and outputImageAccess are the only storage texture configuration the output image supports.
const (
	outputImageFormat = "rgba8unorm"
	outputImageAccess = "write"
)

// shader is the implementation of the Shader interface.
// It holds the pre-processed source and everything parsed from it.
type shader struct {
	key          string
	path         string
	source       string
	entryPoints  []EntryPoint
	bindings     []Binding
	declarations []Annotation
	preprocess   []PreProcessorBuilderOption
}


// Shader is a loaded, pre-processed and parsed WGSL compute shader. It exposes the compute entry points with their
// workgroup sizes and the resource declarations needed to check the shader against the slot table.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the pre-processed WGSL source code.
	//
	// Returns:
	//   - string: the WGSL source code that is handed to the GPU
	Source() string

	// Path retrieves the file the shader was loaded from.
	//
	// Returns:
	//   - string: the source path, or an empty string for shaders built from memory
	Path() string

	// EntryPoints retrieves every @compute function in declaration order.
	//
	// Returns:
	//   - []EntryPoint: the compute entry points
	EntryPoints() []EntryPoint

	// EntryPoint looks up a compute entry point by function name.
	//
	// Parameters:
	//   - name: the function name
	//
	// Returns:
	//   - EntryPoint: the entry point
	//   - bool: false if the shader has no such @compute function
	EntryPoint(name string) (EntryPoint, bool)

	// WorkgroupSize returns the @workgroup_size of a compute entry point.
	// Returns [0, 0, 0] when the entry point does not exist and [1, 1, 1] when it omits @workgroup_size.
	//
	// Parameters:
	//   - name: the function name
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize(name string) [3]uint32

	// Bindings retrieves every resource declaration sorted by group and binding.
	//
	// Returns:
	//   - []Binding: the parsed declarations
	Bindings() []Binding

	// Binding looks up a resource declaration by group and binding index.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - Binding: the declaration
	//   - bool: false if nothing is declared there
	Binding(group, binding uint32) (Binding, bool)

	// Declarations returns the slot annotations the pre-processor expanded, in source order.
	//
	// Returns:
	//   - []Annotation: one AnnotationTypeSlot annotation per generated slot declaration
	Declarations() []Annotation
}

var _ Shader = &shader{}

// NewShader pre-processes and parses WGSL source held in memory.
//
// Parameters:
//   - key: a unique identifier for the shader, used for caching and lookups
//   - source: the raw WGSL source, which may contain @oxy: annotations
//   - options: builder options
//
// Returns:
//   - Shader: the parsed shader
//   - error: an error if an annotation is malformed or the source has no @compute entry point
func NewShader(key, source string, options ...ShaderBuilderOption) (Shader, error) {
	s := &shader{key: key}
	for _, option := range options {
		option(s)
	}
	if err := s.parse(source); err != nil {
		return nil, fmt.Errorf("shader %s: %w", key, err)
	}
	return s, nil
}

// NewShaderFromPath reads a WGSL file and parses it like NewShader.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - path: the file path to read WGSL source from
//   - options: builder options
//
// Returns:
//   - Shader: the parsed shader
//   - error: an error if the file cannot be read or the source is invalid
func NewShaderFromPath(key, path string, options ...ShaderBuilderOption) (Shader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shader %s: failed to read source file %q: %w", key, path, err)
	}
	s := &shader{key: key, path: path}
	for _, option := range options {
		option(s)
	}
	if err := s.parse(string(data)); err != nil {
		return nil, fmt.Errorf("shader %s: %q: %w", key, path, err)
	}
	return s, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) Path() string {
	return s.path
}

func (s *shader) EntryPoints() []EntryPoint {
	return slices.Clone(s.entryPoints)
}

func (s *shader) EntryPoint(name string) (EntryPoint, bool) {
	for _, ep := range s.entryPoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return EntryPoint{}, false
}

func (s *shader) WorkgroupSize(name string) [3]uint32 {
	ep, ok := s.EntryPoint(name)
	if !ok {
		return [3]uint32{}
	}
	return ep.WorkgroupSize
}

func (s *shader) Bindings() []Binding {
	return slices.Clone(s.bindings)
}

func (s *shader) Binding(group, binding uint32) (Binding, bool) {
	for _, b := range s.bindings {
		if b.Group == group && b.Binding == binding {
			return b, true
		}
	}
	return Binding{}, false
}

func (s *shader) Declarations() []Annotation {
	return slices.Clone(s.declarations)
}

// parse runs the pre-processor over source and extracts entry points and bindings from the result.
func (s *shader) parse(source string) error {
	pp := NewPreProcessor(s.preprocess...)
	processed, err := pp.Process(source)
	if err != nil {
		return fmt.Errorf("failed to pre-process shader source: %w", err)
	}
	s.source = processed
	s.declarations = slices.Clone(pp.Declarations())
	s.entryPoints = parseEntryPoints(processed)
	if len(s.entryPoints) == 0 {
		return fmt.Errorf("%w: no @compute function", ErrMissingEntryPoint)
	}
	s.bindings = parseBindings(processed)
	return nil
}

// ValidateLayout checks a shader against a slot declaration table. Every resource the shader declares must sit in
// group 0 at a declared slot, bind with the slot's kind and, for data slots, use the slot's element size. The
// output image must be a write-only rgba8unorm storage texture. Every named entry point must exist.
//
// Parameters:
//   - s: the shader to check
//   - decls: the slot declaration table the bind group layout is built from
//   - entryPoints: the @compute functions the caller will dispatch
//
// Returns:
//   - error: nil, or an error wrapping ErrLayoutMismatch or ErrMissingEntryPoint
func ValidateLayout(s Shader, decls []slot.Declaration, entryPoints ...string) error {
	for _, name := range entryPoints {
		if _, ok := s.EntryPoint(name); !ok {
			return fmt.Errorf("%w: %s has no @compute fn %s", ErrMissingEntryPoint, s.Key(), name)
		}
	}

	byBinding := make(map[uint32]slot.Declaration, len(decls))
	for _, d := range decls {
		byBinding[d.Slot.Binding()] = d
	}

	for _, b := range s.Bindings() {
		if b.Group != 0 {
			return fmt.Errorf("%w: %s declares %s in group %d", ErrLayoutMismatch, s.Key(), b.Name, b.Group)
		}
		d, ok := byBinding[b.Binding]
		if !ok {
			return fmt.Errorf("%w: %s declares %s at unknown binding %d", ErrLayoutMismatch, s.Key(), b.Name, b.Binding)
		}
		if b.Kind != d.Kind {
			return fmt.Errorf("%w: %s binding %d (%s) is %s, slot %s is %s", ErrLayoutMismatch, s.Key(), b.Binding, b.Name, b.Kind, d.Slot, d.Kind)
		}
		switch {
		case d.Kind == device.BindingKindStorageTexture:
			if b.Format != outputImageFormat || b.Access != outputImageAccess {
				return fmt.Errorf("%w: %s binding %d must be texture_storage_2d<%s, %s>, got %s", ErrLayoutMismatch, s.Key(), b.Binding, outputImageFormat, outputImageAccess, b.TypeName)
			}
		case b.MinBindingSize != uint64(d.ElementSize):
			return fmt.Errorf("%w: %s binding %d (%s) element is %d bytes, slot %s expects %d", ErrLayoutMismatch, s.Key(), b.Binding, b.Name, b.MinBindingSize, d.Slot, d.ElementSize)
		}
	}
	return nil
}
