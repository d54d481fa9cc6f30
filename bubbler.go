package depgraph

// bubble implements the error bubbler (C6, §4.6): a single-threaded,
// post-scheduling walk from every key that errored during scheduling,
// upward through reverse deps, toward the requested roots.
//
// Under keep-going, ordinary scheduling already gives every parent its
// chance to recover: the moment a child goes terminal, signalDep
// re-enqueues the parent, and its next compute invocation decides
// recover-vs-propagate for itself via Environment.GetValueOrThrow. By the
// time the scheduler idles, the bubbler normally finds nothing left to do.
//
// Under fail-fast, scheduling stops taking new work the instant it aborts,
// so whichever parents were still waiting on the failing key at that
// moment never get that re-invocation — and, per the observed fail-fast
// contract, do not get a second chance at recovery either: the bubbler
// assigns them a DependencyError inherited from the children that did
// error, mechanically, without calling compute again, and stops as soon as
// it reaches one requested root.
func (r *evalRun) bubble() {
	var frontier []Key
	r.errored.Range(func(k Key, _ struct{}) bool {
		frontier = append(frontier, k)
		return true
	})
	sortKeys(frontier)

	visited := map[Key]bool{}

	for len(frontier) > 0 {
		k := frontier[0]
		frontier = frontier[1:]

		childEntry, ok := r.graph.Get(k)
		if !ok {
			continue
		}

		for _, parentKey := range childEntry.reverseDepKeys() {
			if visited[parentKey] {
				continue
			}
			visited[parentKey] = true

			parentEntry := r.graph.CreateIfAbsent(parentKey)
			if !parentEntry.isTerminal() {
				r.inheritDependencyError(parentEntry, childEntry)
			}
			if !parentEntry.isTerminal() {
				// Still missing something else the bubbler cannot
				// resolve mechanically (likely a cycle); leave it for
				// the cycle detector.
				continue
			}

			frontier = append(frontier, parentKey)

			if !r.keepGoing && r.isRootKey(parentKey) {
				return
			}
		}
	}
}

// inheritDependencyError assigns parent a DependencyError whose root
// causes are child's, the propagation rule for a parent that did not opt
// into recovering this child (§4.6).
func (r *evalRun) inheritDependencyError(parent, child *Entry) {
	childInfo := child.ErrorInfo()
	if childInfo == nil {
		return
	}
	rootCauses := childInfo.RootCauseKeys()
	info := &ErrorInfo{
		Exception:  &DependencyError{Key: parent.key, RootCauses: rootCauses},
		RootCauses: map[Key]struct{}{},
		Catastrophic: childInfo.Catastrophic,
	}
	for _, rc := range rootCauses {
		info.RootCauses[rc] = struct{}{}
	}
	parent.setError(info)
	r.errored.Store(parent.key, struct{}{})
	r.progress.Evaluated(parent.key, nil, Built)
}
