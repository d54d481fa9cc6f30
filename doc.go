// Package depgraph provides a parallel evaluator for a demand-driven,
// keyed dependency graph: the engine underneath an incremental build
// system.
//
// # Overview
//
// depgraph organizes work around four concepts:
//
//  1. Keys: a (family, argument) pair naming one computation
//  2. A function registry: family -> compute function
//  3. A graph: the shared memo table of entries (state, value/error, deps)
//  4. An evaluator: the worker pool that drives compute functions to fixpoint
//
// A compute function declares its dependencies at runtime by asking its
// Environment for other keys' values. If a dependency isn't ready yet, the
// function returns early with "values missing" and is re-invoked once every
// requested dependency has settled.
//
// # Basic Usage
//
//	// A Key's argument must be comparable, so the edges of a concat node
//	// live in a side table keyed by the node's (comparable) id rather than
//	// inside the key itself.
//	children := map[string][]depgraph.Key{
//	    "ab": {depgraph.NewKey("leaf", "a"), depgraph.NewKey("leaf", "b")},
//	}
//
//	registry := depgraph.NewFunctionRegistry()
//	registry.Register("leaf", func(k depgraph.Key, env *depgraph.Environment) (depgraph.Value, error) {
//	    return k.Argument, nil
//	}, nil)
//	registry.Register("concat", func(k depgraph.Key, env *depgraph.Environment) (depgraph.Value, error) {
//	    values := env.GetValues(children[k.Argument.(string)])
//	    if env.ValuesMissing() {
//	        return nil, nil
//	    }
//	    out := ""
//	    for _, v := range values {
//	        out += v.(string)
//	    }
//	    return out, nil
//	}, nil)
//
//	graph := depgraph.NewMemoryGraph()
//	result, err := depgraph.Evaluate(context.Background(), graph, registry,
//	    []depgraph.Key{depgraph.NewKey("concat", "ab")},
//	    depgraph.WithParallelism(8),
//	)
//
// # Keys and Values
//
// A Key is a value-typed identifier: family names a registered compute
// function, argument is whatever that family needs and must be comparable.
// A Value is an opaque payload — the evaluator never looks inside it.
//
//	key := depgraph.NewKey("file-contents", "/etc/hosts")
//
// # The Environment
//
// Environment is handed to exactly one invocation of a compute function. It
// tracks which keys were requested this invocation (a "dep group") and
// whether any of them were missing:
//
//	v, ok := env.GetValue(childKey)     // single dep, own group
//	vs := env.GetValues(childKeys)      // batch dep, one group
//	v, err := env.GetValueOrThrow(childKey, myErrorClass)  // opt into recovery
//	if env.ValuesMissing() { return nil, nil }
//
// Requesting the same key across restarts of the same compute invocation
// does not create a second group; the first occurrence fixes group
// membership.
//
// # Failure Policies
//
// Evaluate accepts a keep-going option. Under keep-going, an error is local
// to its key: parents that did not opt into recovery inherit root causes,
// parents that did opt in may recover and continue. Under fail-fast, the
// first non-unrecoverable error triggers an orderly shutdown and only that
// error (plus whatever bubbling and cycle detection can attribute along the
// way) is surfaced:
//
//	result, err := depgraph.Evaluate(ctx, graph, registry, roots,
//	    depgraph.WithKeepGoing(true),
//	    depgraph.WithParallelism(200),
//	)
//
// # Errors and Recovery
//
// Compute functions signal failure by returning an error. An error that
// matches an ErrorClass can be caught by a parent that passes that class to
// GetValueOrThrow:
//
//	v, err := env.GetValueOrThrow(badKey, isParseError)
//	if err != nil {
//	    // parse errors from badKey are visible here; anything else already
//	    // failed this invocation with a DependencyError.
//	}
//
// A compute function marks a failure catastrophic by returning a
// *depgraph.CatastrophicError; this halts scheduling regardless of the
// keep-going policy.
//
// # Progress and Events
//
// A ProgressReceiver observes the shape of scheduling (enqueue/evaluated
// callbacks); an EventSink receives diagnostic events emitted by compute
// functions via Environment.Emit, filtered by a per-sink tag regex and
// replayed in original emission order whenever a dependent key finalizes:
//
//	sink := depgraph.NewMemoryEventSink(regexp.MustCompile(`^warn\.`))
//	result, err := depgraph.Evaluate(ctx, graph, registry, roots,
//	    depgraph.WithEventSink(sink),
//	    depgraph.WithProgressReceiver(myReceiver),
//	)
//
// # Cycles
//
// If scheduling idles with requested roots still unfinished, depgraph runs
// an iterative cycle detector before giving up. Every entry on a cycle, and
// every ancestor on a path leading into one, receives an ErrorInfo carrying
// the CycleInfo(s) involved. Detection dedupes multiple paths into the same
// cycle by the cycle's key set, not by entry point.
//
// # Extensions
//
// The extensions subpackage provides Instrumentation implementations that
// wrap each compute invocation with log/slog logging or OpenTelemetry spans
// and metrics, and renders the dependency subtree of failed roots as a tree
// for diagnostics.
//
// # Thread Safety
//
// The graph, function registry, event sink, and evaluator are all safe for
// concurrent use. Each entry is guarded by its own lock; the registry is
// immutable once evaluation begins; the first-exception slot and the
// catastrophic flag are updated atomically.
package depgraph
