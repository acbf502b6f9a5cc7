package binding_set

type BindingSetAssemblerBuilderOption func(*bindingSetAssembler)

// WithLabel sets the prefix used for the debug labels of every GPU object the assembler creates.
//
// Parameters:
//   - label: the label prefix
//
// Returns:
//   - BindingSetAssemblerBuilderOption: a function that sets the label prefix
func WithLabel(label string) BindingSetAssemblerBuilderOption {
	return func(a *bindingSetAssembler) {
		if label != "" {
			a.label = label
		}
	}
}
