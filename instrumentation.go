package depgraph

import "context"

// Instrumentation wraps one compute invocation, middleware-style — the
// same Wrap(ctx, next) shape the teacher's Extension uses around resolve/
// update operations. Implementations call next() exactly once to run the
// wrapped compute, observing timing, errors, or emitting trace spans
// around it.
type Instrumentation interface {
	Name() string
	Wrap(ctx context.Context, k Key, next func() (Value, error)) (Value, error)
}

// BaseInstrumentation is a no-op default, the same role the teacher's
// BaseExtension plays for its Extension interface — embed it and override
// only the methods a concrete instrumentation needs.
type BaseInstrumentation struct {
	name string
}

func NewBaseInstrumentation(name string) BaseInstrumentation {
	return BaseInstrumentation{name: name}
}

func (b BaseInstrumentation) Name() string { return b.name }

func (b BaseInstrumentation) Wrap(ctx context.Context, k Key, next func() (Value, error)) (Value, error) {
	return next()
}

// WithInstrumentation registers an Instrumentation to wrap every compute
// invocation for the evaluation, in the order they were added (first
// added wraps outermost).
func WithInstrumentation(inst Instrumentation) EvalOption {
	return func(o *evalOptions) { o.instrumentations = append(o.instrumentations, inst) }
}
