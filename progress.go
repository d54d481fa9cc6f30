package depgraph

// EvaluatedState classifies how a key reached a terminal state, reported to
// the ProgressReceiver's evaluated callback (§4.5).
type EvaluatedState int

const (
	// Built means compute ran at least once this evaluation and produced
	// the terminal value or error.
	Built EvaluatedState = iota
	// Clean means the entry was already DONE or ERRORED from a prior
	// evaluation and was reused without invoking compute.
	Clean
	// RestartedBuilt means compute ran, returned "values missing" one or
	// more times while dependencies settled, and was ultimately re-invoked
	// to completion.
	RestartedBuilt
)

func (s EvaluatedState) String() string {
	switch s {
	case Built:
		return "BUILT"
	case Clean:
		return "CLEAN"
	case RestartedBuilt:
		return "RESTARTED_BUILT"
	default:
		return "UNKNOWN"
	}
}

// ProgressReceiver observes the shape of scheduling without affecting it
// (§4.5, §4.8). Enqueueing fires at most once per key over the life of the
// graph, the first time the key is added to the work queue; a later
// evaluation that enqueues the same still-unfinished entry does not fire it
// again. Evaluated fires exactly once per key, when it reaches a terminal
// state.
type ProgressReceiver interface {
	Enqueueing(k Key)
	Evaluated(k Key, value Value, state EvaluatedState)
}

// nullProgressReceiver is used when the caller does not supply one.
type nullProgressReceiver struct{}

func (nullProgressReceiver) Enqueueing(Key)                        {}
func (nullProgressReceiver) Evaluated(Key, Value, EvaluatedState) {}
