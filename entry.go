package depgraph

import "sync"

// State is an entry's position in its lifecycle (§3). DONE and ERRORED are
// terminal; an entry reaches at most one of them per evaluation.
type State int

const (
	StateNew State = iota
	StateInProgress
	StateDone
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateInProgress:
		return "IN_PROGRESS"
	case StateDone:
		return "DONE"
	case StateErrored:
		return "ERRORED"
	default:
		return "UNKNOWN"
	}
}

// ObserverEvent names one of the three graph operations the testing hooks
// in §4.2/§9 attach to.
type ObserverEvent int

const (
	ObsCreateIfAbsent ObserverEvent = iota
	ObsAddReverseDep
	ObsSignal
)

// ObserverOrder distinguishes the hook firing before an operation mutates
// state from the hook firing after.
type ObserverOrder int

const (
	Before ObserverOrder = iota
	After
)

// GraphObserver receives BEFORE/AFTER notifications around
// CreateIfAbsent/AddReverseDep/Signal. Observers may block; the evaluator
// tolerates it (§9, "Observer hooks for testing").
type GraphObserver interface {
	Observe(k Key, event ObserverEvent, order ObserverOrder)
}

// Entry is the per-key graph node (§3). Every field is guarded by mu;
// callers never read a field directly.
type Entry struct {
	key Key

	mu        sync.Mutex
	state     State
	value     Value
	errorInfo *ErrorInfo

	// directDeps is the ordered sequence of dep groups requested by this
	// key's compute function across every restart. depGroup maps a key to
	// the index of the group it was first requested in; a later request
	// for the same key does not move it (§4.4).
	directDeps []*keySet
	depGroup   map[Key]int

	reverseDeps map[Key]struct{}

	// pending holds the deps requested during the invocation currently
	// running (or most recently run), not yet terminal. Once empty, the
	// entry is ready to be re-enqueued.
	pending map[Key]struct{}

	signaledCount int
	storedEvents  []Event

	enqueuedOnce   bool
	scheduled      bool
	computing      bool
	invocationCount int
}

func newEntry(k Key) *Entry {
	return &Entry{
		key:         k,
		state:       StateNew,
		depGroup:    make(map[Key]int),
		reverseDeps: make(map[Key]struct{}),
		pending:     make(map[Key]struct{}),
	}
}

func (e *Entry) Key() Key { return e.key }

func (e *Entry) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Entry) Value() Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

func (e *Entry) ErrorInfo() *ErrorInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errorInfo
}

// terminalSnapshot reads state, value, and errorInfo as one atomic
// operation. Environment.GetValue(s) calls this only after the dependency
// has already been subscribed to via markPending, so that a finalize
// racing the read is guaranteed to find the subscription in place: the
// two orderings are either "we see it terminal here and the real signal
// later finds pending already drained" or "the real signal lands first
// and we see it terminal here" — both deliver exactly once, never zero
// times (§4.4, §5 "Shared resources").
func (e *Entry) terminalSnapshot() (State, Value, *ErrorInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.value, e.errorInfo
}

func (e *Entry) isTerminal() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateDone || e.state == StateErrored
}

// tryClaim attempts to become the sole worker computing this entry (§3,
// "at most one worker computing a given key at any time"). It fails if the
// entry is already terminal or another worker already holds the claim —
// which can happen when the same key is queued twice (e.g. two parents
// discover it concurrently before either has been popped).
func (e *Entry) tryClaim() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateDone || e.state == StateErrored {
		return false
	}
	if e.computing {
		return false
	}
	e.computing = true
	e.state = StateInProgress
	e.pending = make(map[Key]struct{})
	e.invocationCount++
	return true
}

// release drops the exclusivity claim taken by tryClaim, without altering
// state — used both when a compute invocation transitions the entry
// terminal and when it suspends waiting on more dependencies.
func (e *Entry) release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.computing = false
}

func (e *Entry) wasRestarted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.invocationCount > 1
}

// recordDepGroup records keys as a new dep group, honoring first-occurrence
// group assignment (§4.4): a key that was already grouped by an earlier
// invocation keeps its original group. This runs for every key a compute
// function requests, whether or not it turns out to already be terminal —
// direct-dep bookkeeping (the bubbler's and cycle detector's traversal)
// needs the full edge regardless of whether this invocation still has to
// wait on it.
func (e *Entry) recordDepGroup(keys []Key) {
	e.mu.Lock()
	defer e.mu.Unlock()

	newMembers := newKeySet()
	for _, k := range keys {
		if _, exists := e.depGroup[k]; !exists {
			newMembers.add(k)
		}
	}
	if newMembers.len() > 0 {
		idx := len(e.directDeps)
		e.directDeps = append(e.directDeps, newMembers)
		for _, k := range newMembers.keys() {
			e.depGroup[k] = idx
		}
	}
}

// markPending adds keys to the set this invocation is still waiting on.
// A terminal key signals its reverse deps exactly once, at the moment it
// finalized, so a caller that passes a key which is already terminal must
// remove it again itself with signalDep; Environment does this for every
// key whose state it reads as DONE or ERRORED after subscribing.
func (e *Entry) markPending(keys []Key) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, k := range keys {
		e.pending[k] = struct{}{}
	}
}

// signalDep marks child as terminal from this entry's point of view and
// returns true iff this call drained the pending set to empty — the
// handoff that re-enqueues the entry (§4.2, §9).
func (e *Entry) signalDep(child Key) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.pending[child]; !ok {
		return false
	}
	delete(e.pending, child)
	e.signaledCount++
	return len(e.pending) == 0
}

func (e *Entry) pendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// addReverseDep records that parent depends on this entry. Returns true iff
// parent was not already recorded, preserving the reverse-dep/direct-dep
// consistency invariant in §3.
func (e *Entry) addReverseDep(parent Key) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.reverseDeps[parent]; ok {
		return false
	}
	e.reverseDeps[parent] = struct{}{}
	return true
}

func (e *Entry) reverseDepKeys() []Key {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Key, 0, len(e.reverseDeps))
	for k := range e.reverseDeps {
		out = append(out, k)
	}
	sortKeys(out)
	return out
}

func (e *Entry) setValue(v Value, events []Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateDone
	e.value = v
	e.storedEvents = events
}

func (e *Entry) setError(info *ErrorInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateErrored
	e.errorInfo = info
}

// directDepsSnapshot returns the dep groups in request order, each group's
// keys in request order — the traversal the bubbler and cycle detector walk
// (§4.6, §4.7).
func (e *Entry) directDepsSnapshot() [][]Key {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]Key, len(e.directDeps))
	for i, g := range e.directDeps {
		out[i] = g.keys()
	}
	return out
}

// DirectDeps is the exported form of directDepsSnapshot, for diagnostic
// tooling outside this package (e.g. extensions' dependency tree renderer)
// that needs to walk an entry's recorded dep groups without access to the
// bubbler/cycle-detector internals.
func (e *Entry) DirectDeps() [][]Key {
	return e.directDepsSnapshot()
}

func (e *Entry) flatDeps() []Key {
	groups := e.directDepsSnapshot()
	var out []Key
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func (e *Entry) storedEventsSnapshot() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Event, len(e.storedEvents))
	copy(out, e.storedEvents)
	return out
}

// markEnqueuedOnce reports whether this is the first time the entry has
// been marked enqueued, for the ProgressReceiver's once-per-key Enqueueing
// callback (§4.5). The flag lives on the entry and is never reset, so an
// entry that one evaluation enqueued and left unfinished does not report
// true again when a later evaluation over the same graph enqueues it.
func (e *Entry) markEnqueuedOnce() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.enqueuedOnce {
		return false
	}
	e.enqueuedOnce = true
	return true
}

// claimSchedule reports whether this is the first time anything has tried
// to put this entry into the pipeline — by a root push, a dependency
// discovery, or a ready-signal re-enqueue. Discovery (ensureScheduled)
// consults this so that two keys which mutually discover each other don't
// re-push one another forever without either side's pending ever draining;
// the unconditional re-enqueue paths (roots, signalParents) call it too, so
// a later discovery of an already-in-flight key is a no-op.
func (e *Entry) claimSchedule() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scheduled {
		return false
	}
	e.scheduled = true
	return true
}
