package depgraph

// evalOptions collects the functional options passed to Evaluate, mirroring
// the teacher's ScopeOption/ExecutorOption pattern.
type evalOptions struct {
	keepGoing       bool
	parallelism     int
	sink            EventSink
	progress        ProgressReceiver
	instrumentations []Instrumentation
}

func defaultEvalOptions() *evalOptions {
	return &evalOptions{
		keepGoing:   false,
		parallelism: 200, // §5: "default in the reference material: 200"
	}
}

// EvalOption configures one call to Evaluate.
type EvalOption func(*evalOptions)

// WithKeepGoing selects the keep-going failure policy: evaluation continues
// past individual key failures instead of aborting on the first one (§4.1,
// §7).
func WithKeepGoing(keepGoing bool) EvalOption {
	return func(o *evalOptions) { o.keepGoing = keepGoing }
}

// WithParallelism sets the worker pool size. Values below 1 are treated as
// 1.
func WithParallelism(n int) EvalOption {
	return func(o *evalOptions) {
		if n < 1 {
			n = 1
		}
		o.parallelism = n
	}
}

// WithEventSink supplies the sink that receives diagnostic events emitted
// by compute functions and replayed from already-DONE entries (§4.8, §6).
func WithEventSink(sink EventSink) EvalOption {
	return func(o *evalOptions) { o.sink = sink }
}

// WithProgressReceiver supplies the observer notified of enqueue/evaluated
// events (§4.5, §4.8).
func WithProgressReceiver(p ProgressReceiver) EvalOption {
	return func(o *evalOptions) { o.progress = p }
}
