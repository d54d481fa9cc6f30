package depgraph

const maxCyclesPerRoot = 20

// detectCycles implements the cycle detector (C7, §4.7). It runs after the
// bubbler, once per requested root still missing a terminal entry. It is an
// iterative DFS with an explicit stack — never recursion — the same
// discipline the teacher's ReactiveGraph.FindDependents uses, since a
// cyclic key graph would overflow a recursive call stack.
//
// Under fail-fast, detection stops at the first cycle it finds, the same
// "stop at the first requested root" rule bubble() applies: fail-fast
// promises only the one failure that triggered the abort, not an
// exhaustive survey of every cycle reachable from it (§8, S5: one
// CycleInfo under fail-fast, two under keep-going for the same graph).
// Under keep-going, detection keeps going across every requested root up
// to maxCyclesPerRoot each.
func (r *evalRun) detectCycles() {
	for _, root := range r.roots {
		entry, ok := r.graph.Get(root)
		if !ok || entry.isTerminal() {
			continue
		}
		foundAny := r.detectCyclesFrom(root)
		if !r.keepGoing && foundAny {
			return
		}
	}
}

type dfsFrame struct {
	key      Key
	children []Key
	idx      int
}

func (r *evalRun) detectCyclesFrom(root Key) bool {
	var stack []dfsFrame
	onPath := map[Key]int{} // key -> index in stack, for cycle extraction
	seenCycleSets := map[string]bool{}
	var cyclesFound []CycleInfo

	limit := maxCyclesPerRoot
	if !r.keepGoing {
		limit = 1
	}

	push := func(k Key) {
		entry, ok := r.graph.Get(k)
		var children []Key
		if ok {
			children = entry.flatDeps()
		}
		stack = append(stack, dfsFrame{key: k, children: children})
		onPath[k] = len(stack) - 1
	}
	push(root)

	for len(stack) > 0 && len(cyclesFound) < limit {
		top := &stack[len(stack)-1]

		if top.idx >= len(top.children) {
			delete(onPath, top.key)
			stack = stack[:len(stack)-1]
			continue
		}

		child := top.children[top.idx]
		top.idx++

		if child == top.key {
			// Self-edge: a one-element cycle (§4.7 rule 3, §8 boundary
			// behavior).
			cycle := CycleInfo{Cycle: []Key{child}, PathToCycle: pathPrefix(stack, len(stack)-1)}
			recordCycle(&cyclesFound, seenCycleSets, cycle)
			continue
		}

		if idx, onStack := onPath[child]; onStack {
			cycleKeys := make([]Key, 0, len(stack)-idx)
			for i := idx; i < len(stack); i++ {
				cycleKeys = append(cycleKeys, stack[i].key)
			}
			cycle := CycleInfo{Cycle: cycleKeys, PathToCycle: pathPrefix(stack, idx)}
			recordCycle(&cyclesFound, seenCycleSets, cycle)
			continue
		}

		childEntry, ok := r.graph.Get(child)
		if !ok || childEntry.isTerminal() {
			continue
		}
		push(child)
	}

	r.applyCycles(cyclesFound)
	return len(cyclesFound) > 0
}

func pathPrefix(stack []dfsFrame, cycleEntryIdx int) []Key {
	out := make([]Key, cycleEntryIdx)
	for i := 0; i < cycleEntryIdx; i++ {
		out[i] = stack[i].key
	}
	return out
}

// recordCycle dedupes by the cycle's key set, not by which child edge was
// taken to reach it (§4.7 rule 4, §9 Open Questions).
func recordCycle(found *[]CycleInfo, seen map[string]bool, cycle CycleInfo) {
	setKey := cycle.cycleSetKey()
	if seen[setKey] {
		return
	}
	seen[setKey] = true
	*found = append(*found, cycle)
}

// applyCycles transitions every still-unfinished key on a discovered cycle,
// and every ancestor on a path into one, to ERRORED with an ErrorInfo
// carrying the relevant CycleInfo(s) (§4.7).
func (r *evalRun) applyCycles(cycles []CycleInfo) {
	byKey := map[Key][]CycleInfo{}
	for _, c := range cycles {
		for _, k := range c.Cycle {
			byKey[k] = append(byKey[k], c)
		}
		for _, k := range c.PathToCycle {
			byKey[k] = append(byKey[k], c)
		}
	}
	for k, cs := range byKey {
		entry, ok := r.graph.Get(k)
		if !ok || entry.isTerminal() {
			continue
		}
		info := &ErrorInfo{
			Exception:  &CycleError{Key: k, Cycles: cs},
			RootCauses: map[Key]struct{}{},
			Cycles:     cs,
		}
		entry.setError(info)
		r.errored.Store(k, struct{}{})
		r.progress.Evaluated(k, nil, Built)
	}
}
