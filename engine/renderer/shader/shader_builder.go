package shader

// ShaderBuilderOption is a functional option used to configure a Shader during construction.
type ShaderBuilderOption func(*shader)

// WithWorkgroupSize makes every @compute entry point run x×y×1 work groups, whatever the source declares.
//
// Parameters:
//   - x, y: the work group size, 0 to keep the source's
//
// Returns:
//   - ShaderBuilderOption: a function that sets the work group size
func WithWorkgroupSize(x, y uint32) ShaderBuilderOption {
	return func(s *shader) {
		s.preprocess = append(s.preprocess, WithWorkgroupOverride(x, y))
	}
}

// PreProcessorBuilderOption is a functional option used to configure a PreProcessor during construction.
type PreProcessorBuilderOption func(*preProcessor)

// WithWorkgroupOverride rewrites every @workgroup_size attribute to @workgroup_size(x, y, 1). Zero leaves the
// source's sizes untouched.
//
// Parameters:
//   - x, y: the work group size
//
// Returns:
//   - PreProcessorBuilderOption: a function that sets the override
func WithWorkgroupOverride(x, y uint32) PreProcessorBuilderOption {
	return func(p *preProcessor) {
		if x > 0 && y > 0 {
			p.workgroupSize = [2]uint32{x, y}
		}
	}
}
