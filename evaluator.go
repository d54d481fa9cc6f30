package depgraph

import "context"

// RootOutcome is one requested root's slot in an EvaluationResult (§6).
type RootOutcome struct {
	Value     Value
	Err       *ErrorInfo
	Attempted bool
}

// EvaluationResult is what Evaluate hands back: a value, an error, or
// "absent" (Attempted=false, only possible under fail-fast) for every
// requested root, plus the top-level hasError flag and, when fail-fast
// fired, the top-level exception (§6).
type EvaluationResult struct {
	Results      map[Key]RootOutcome
	HasError     bool
	TopException error
}

// Evaluate is the top-level entry point (C1-C8 orchestration). It schedules
// compute functions for roots on a worker pool, memoizes results in graph,
// bubbles errors, detects cycles, and returns a result mapping every
// requested root to a value, an error, or absent.
//
// graph may already contain DONE or ERRORED entries (§1 Non-goals: no
// incremental invalidation protocol) — Evaluate treats those as already
// resolved and never re-invokes their compute function.
func Evaluate(ctx context.Context, graph *MemoryGraph, registry *FunctionRegistry, roots []Key, opts ...EvalOption) (*EvaluationResult, error) {
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}

	options := defaultEvalOptions()
	for _, opt := range opts {
		opt(options)
	}

	run := newEvalRun(ctx, graph, registry, options, roots)

	needsWork := false
	for _, root := range roots {
		entry := graph.CreateIfAbsent(root)
		if !entry.isTerminal() {
			needsWork = true
			run.enqueue(entry)
		}
	}

	if needsWork {
		_ = run.run()
	}

	if ctx.Err() != nil {
		return nil, &CancelledError{}
	}

	if run.catastrophic.Load() {
		var catErr error
		if rec, ok := run.catastrophicErr.Load().(*catastrophicRecord); ok && rec != nil {
			catErr = rec.err
		}
		return run.buildResult(catErr), nil
	}

	run.firstExcMu.Lock()
	unrecoverable, isUnrecoverable := run.firstExc.(*UnrecoverableError)
	run.firstExcMu.Unlock()
	if isUnrecoverable {
		return nil, unrecoverable
	}

	if anyRootUnfinished(run) {
		run.bubble()
	}
	if anyRootUnfinished(run) {
		run.detectCycles()
	}

	run.firstExcMu.Lock()
	topExc := run.firstExc
	run.firstExcMu.Unlock()

	return run.buildResult(topExc), nil
}

func anyRootUnfinished(run *evalRun) bool {
	for _, root := range run.roots {
		e, ok := run.graph.Get(root)
		if !ok || !e.isTerminal() {
			return true
		}
	}
	return false
}

func (r *evalRun) buildResult(topException error) *EvaluationResult {
	res := &EvaluationResult{Results: make(map[Key]RootOutcome, len(r.roots))}

	for _, root := range r.roots {
		entry, ok := r.graph.Get(root)
		if !ok || !entry.isTerminal() {
			continue // absent: not attempted, only reachable under fail-fast
		}
		r.replayClosure(root)

		switch entry.State() {
		case StateDone:
			res.Results[root] = RootOutcome{Value: entry.Value(), Attempted: true}
		case StateErrored:
			res.Results[root] = RootOutcome{Err: entry.ErrorInfo(), Attempted: true}
			res.HasError = true
		}
	}

	res.TopException = topException
	if topException != nil {
		res.HasError = true
	}
	return res
}

// replayClosure walks root's dependency subgraph in an iterative,
// child-before-parent post-order and replays every still-DONE entry's
// stored events to the sink, gated by r.replayed so each key replays at
// most once per Evaluate call (§4.8, §8 invariant 3). This is what lets an
// already-DONE entry from a prior Evaluate call surface its diagnostics
// again when a dependent finalizes in a later call, without re-running
// compute (§1 Non-goals, S2).
func (r *evalRun) replayClosure(root Key) {
	type visitState struct{ expanded bool }
	stack := []Key{root}
	state := map[Key]*visitState{}
	var order []Key

	for len(stack) > 0 {
		k := stack[len(stack)-1]
		st, seen := state[k]
		if !seen {
			state[k] = &visitState{}
			entry, ok := r.graph.Get(k)
			if ok {
				for _, child := range entry.flatDeps() {
					if _, childSeen := state[child]; !childSeen {
						stack = append(stack, child)
					}
				}
			}
			continue
		}
		if !st.expanded {
			st.expanded = true
			order = append(order, k)
		}
		stack = stack[:len(stack)-1]
	}

	for _, k := range order {
		entry, ok := r.graph.Get(k)
		if !ok || entry.State() != StateDone {
			continue
		}
		r.replayEvents(k, entry.storedEventsSnapshot())
	}
}
