package steps

// NewDefaultRegistry returns a registry holding every phrase the runner
// understands.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	registerCLISteps(r)
	registerServerSteps(r)
	registerOCMSteps(r)
	registerTUSSteps(r)
	registerAssertionSteps(r)
	return r
}
