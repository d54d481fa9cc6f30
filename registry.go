package depgraph

import "fmt"

// ComputeFunc computes the value for k using env to declare dependencies.
// Returning (nil, nil) is the "null-value sentinel": it means the function
// needs more dependencies and must be re-run once they settle (§4.3). It is
// only valid to return (nil, nil) when env.ValuesMissing() is true.
type ComputeFunc func(k Key, env *Environment) (Value, error)

// TagExtractFunc returns the diagnostic tag for a key, used by the event
// sink's regex filter. An empty string means "no tag" (always passes).
type TagExtractFunc func(k Key) string

type registration struct {
	compute     ComputeFunc
	extractTag  TagExtractFunc
}

// FunctionRegistry is the static mapping family -> (compute, extractTag)
// (§4.3, C3). It is built up before an evaluation starts and treated as
// immutable once Evaluate begins (§5, "Shared resources").
type FunctionRegistry struct {
	families map[string]registration
}

// NewFunctionRegistry returns an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{families: make(map[string]registration)}
}

// Register associates a family name with its compute function and an
// optional tag extractor (nil means every key in this family is untagged).
func (r *FunctionRegistry) Register(family string, compute ComputeFunc, extractTag TagExtractFunc) {
	if extractTag == nil {
		extractTag = func(Key) string { return "" }
	}
	r.families[family] = registration{compute: compute, extractTag: extractTag}
}

func (r *FunctionRegistry) lookup(k Key) (registration, error) {
	reg, ok := r.families[k.Family]
	if !ok {
		return registration{}, fmt.Errorf("%w: %q", ErrUnknownFamily, k.Family)
	}
	return reg, nil
}
