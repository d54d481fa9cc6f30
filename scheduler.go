package depgraph

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// evalRun holds the state shared by every worker and by the post-scheduling
// bubbler/cycle-detector phases for one call to Evaluate (§4.5, §5).
type evalRun struct {
	ctx    context.Context
	cancel context.CancelFunc

	graph    *MemoryGraph
	registry *FunctionRegistry

	keepGoing   bool
	parallelism int

	sink     EventSink
	progress ProgressReceiver

	queue *workQueue

	// pending counts keys that are queued or being processed; it never
	// spuriously reaches zero while a worker might still enqueue more
	// work, because a worker only decrements after every push its own
	// item caused has already happened (see handleWorkItem).
	pending int64

	firstExcMu  sync.Mutex
	firstExc    error
	firstExcKey Key

	catastrophic    atomic.Bool
	catastrophicErr atomic.Value

	aborted atomic.Bool

	replayed *typedMap[Key, struct{}]
	errored  *typedMap[Key, struct{}]

	roots            []Key
	rootSet          map[Key]struct{}
	instrumentations []Instrumentation
}

func newEvalRun(ctx context.Context, graph *MemoryGraph, registry *FunctionRegistry, opts *evalOptions, roots []Key) *evalRun {
	runCtx, cancel := context.WithCancel(ctx)
	rootSet := make(map[Key]struct{}, len(roots))
	for _, r := range roots {
		rootSet[r] = struct{}{}
	}
	sink := opts.sink
	if sink == nil {
		sink = nullEventSink{}
	}
	progress := opts.progress
	if progress == nil {
		progress = nullProgressReceiver{}
	}
	return &evalRun{
		ctx:         runCtx,
		cancel:      cancel,
		graph:       graph,
		registry:    registry,
		keepGoing:   opts.keepGoing,
		parallelism: opts.parallelism,
		sink:        sink,
		progress:    progress,
		queue:       newWorkQueue(),
		replayed:    newTypedMap[Key, struct{}](),
		errored:     newTypedMap[Key, struct{}](),
		roots:            roots,
		rootSet:          rootSet,
		instrumentations: opts.instrumentations,
	}
}

func (r *evalRun) isRootKey(k Key) bool {
	_, ok := r.rootSet[k]
	return ok
}

func (r *evalRun) isAborted() bool {
	return r.aborted.Load() || r.ctx.Err() != nil
}

// enqueue pushes an entry's key onto the work queue, firing the
// ProgressReceiver's Enqueueing callback exactly once per key (§4.5).
func (r *evalRun) enqueue(e *Entry) {
	if r.isAborted() {
		// Orderly shutdown: once fail-fast has fired, refuse new items
		// rather than race the worker pool's drain (§4.5 step 6). A parent
		// left stranded here is exactly what the bubbler exists to finalize.
		return
	}
	e.claimSchedule()
	if e.markEnqueuedOnce() {
		r.progress.Enqueueing(e.key)
	}
	atomic.AddInt64(&r.pending, 1)
	r.queue.push(e.key)
}

// ensureScheduled enqueues child the first time anything discovers it.
// Called every time a compute function requests a dependency, since
// discovering a key is what puts it on the work queue in the first place
// (§4.2, §4.4) — a dependency is otherwise never computed. The
// claimSchedule gate matters for mutually dependent keys: without it, two
// keys that each discover the other while both are still in flight would
// re-enqueue each other forever and pending would never drain to zero.
// Once a key is terminal or already in the pipeline, rediscovering it is a
// no-op; the only way it re-enters the queue afterward is a ready-signal
// from signalParents, which pushes unconditionally.
func (r *evalRun) ensureScheduled(child *Entry) {
	if child.isTerminal() {
		return
	}
	if child.claimSchedule() {
		r.enqueue(child)
	}
}

func (r *evalRun) finishOne() {
	if atomic.AddInt64(&r.pending, -1) == 0 {
		r.queue.close()
	}
}

// recordFirstException stores the first exception seen under fail-fast, if
// one hasn't already been recorded, and begins orderly shutdown (§4.5,
// step 6).
func (r *evalRun) recordFirstException(k Key, err error) {
	r.firstExcMu.Lock()
	defer r.firstExcMu.Unlock()
	if r.firstExc == nil {
		r.firstExc = err
		r.firstExcKey = k
	}
	r.aborted.Store(true)
	r.cancel()
}

func (r *evalRun) markCatastrophic(k Key, err error) {
	r.catastrophic.Store(true)
	r.catastrophicErr.Store(&catastrophicRecord{key: k, err: err})
	r.aborted.Store(true)
	r.cancel()
}

type catastrophicRecord struct {
	key Key
	err error
}

// run drives the worker pool with golang.org/x/sync/errgroup, the package
// the pack's AleutianLocal enricher uses to run work in parallel, here as a
// fixed-size worker set fed by a shared queue.
func (r *evalRun) run() error {
	group, _ := errgroup.WithContext(r.ctx)
	for i := 0; i < r.parallelism; i++ {
		group.Go(func() error {
			r.workerLoop()
			return nil
		})
	}
	return group.Wait()
}

func (r *evalRun) workerLoop() {
	for {
		if r.isAborted() {
			r.drainAborted()
			return
		}
		k, ok := r.queue.pop()
		if !ok {
			return
		}
		entry, exists := r.graph.Get(k)
		if !exists {
			r.finishOne()
			continue
		}
		r.handleWorkItem(entry)
		r.finishOne()
	}
}

// drainAborted empties the queue without processing once the run has been
// cancelled, satisfying the "workers refuse new items and return" shutdown
// contract (§4.5 step 6). Any item drained this way still needs its slot
// accounted for so pending reaches zero and the queue closes.
func (r *evalRun) drainAborted() {
	for {
		k, ok := r.queue.pop()
		if !ok {
			return
		}
		_ = k
		r.finishOne()
	}
}

// handleWorkItem implements the "life of a work item" state machine
// (§4.5).
func (r *evalRun) handleWorkItem(entry *Entry) {
	if entry.isTerminal() {
		return
	}
	if !entry.tryClaim() {
		return
	}

	reg, err := r.registry.lookup(entry.key)
	if err != nil {
		r.finalizeError(entry, &ErrorInfo{
			Exception:  err,
			RootCauses: map[Key]struct{}{entry.key: {}},
		})
		entry.release()
		return
	}

	env := newEnvironment(r, entry, reg.extractTag(entry.key))
	value, cerr, panicked := r.invokeCompute(reg.compute, entry.key, env)

	switch {
	case panicked != nil:
		r.finalizeUnrecoverable(entry, panicked)
	case cerr != nil:
		r.handleComputeFailure(entry, cerr)
	case env.unrecovered != nil:
		info := &ErrorInfo{
			Exception:  &DependencyError{Key: entry.key, RootCauses: env.unrecovered.RootCauseKeys()},
			RootCauses: env.unrecovered.RootCauses,
		}
		r.finalizeError(entry, info)
		entry.release()
	case env.ValuesMissing():
		entry.release()
	default:
		r.finalizeSuccess(entry, value, env.events)
		entry.release()
	}
}

type unrecoverablePanic struct {
	cause error
	stack []byte
}

// invokeCompute runs compute, recovering a panic into an unrecoverable
// error rather than letting it take down the worker (§4.5 step 7).
func (r *evalRun) invokeCompute(compute ComputeFunc, k Key, env *Environment) (value Value, cerr error, panicked *unrecoverablePanic) {
	defer func() {
		if rec := recover(); rec != nil {
			err, ok := rec.(error)
			if !ok {
				err = errors.New(errorMessageFromRecover(rec))
			}
			panicked = &unrecoverablePanic{cause: err, stack: debug.Stack()}
		}
	}()

	next := func() (Value, error) { return compute(k, env) }
	for i := len(r.instrumentations) - 1; i >= 0; i-- {
		inst := r.instrumentations[i]
		wrapped := next
		next = func() (Value, error) { return inst.Wrap(r.ctx, k, wrapped) }
	}

	value, cerr = next()
	return
}

func errorMessageFromRecover(rec any) string {
	if s, ok := rec.(string); ok {
		return s
	}
	return "panic in compute function"
}

func (r *evalRun) handleComputeFailure(entry *Entry, cerr error) {
	var cat *CatastrophicError
	if errors.As(cerr, &cat) {
		info := &ErrorInfo{Exception: cat, RootCauses: map[Key]struct{}{entry.key: {}}, Catastrophic: true}
		// Abort before signaling: a parent that would otherwise recover
		// must not be raced into re-running by its own signalParents call.
		r.markCatastrophic(entry.key, cat)
		r.finalizeError(entry, info)
		entry.release()
		return
	}

	wrapped := &ComputeError{Key: entry.key, Cause: cerr}
	if !r.keepGoing {
		r.recordFirstException(entry.key, wrapped)
	}

	info := newErrorInfo(entry.key, wrapped)
	r.finalizeError(entry, info)
	entry.release()
}

func (r *evalRun) finalizeUnrecoverable(entry *Entry, p *unrecoverablePanic) {
	parents := entry.reverseDepKeys()
	unrec := &UnrecoverableError{Key: entry.key, Parents: parents, Cause: p.cause, Stack: p.stack}
	// Never stored on the entry (§3, §7): it stays IN_PROGRESS and the
	// evaluation as a whole terminates instead.
	r.recordFirstException(entry.key, unrec)
	entry.release()
}

func (r *evalRun) finalizeSuccess(entry *Entry, value Value, events []Event) {
	state := Built
	if entry.wasRestarted() {
		state = RestartedBuilt
	}
	entry.setValue(value, events)
	r.progress.Evaluated(entry.key, value, state)
	r.replayEvents(entry.key, events)
	r.signalParents(entry)
}

func (r *evalRun) finalizeError(entry *Entry, info *ErrorInfo) {
	entry.setError(info)
	r.errored.Store(entry.key, struct{}{})
	r.progress.Evaluated(entry.key, nil, Built)
	r.signalParents(entry)
}

// signalParents notifies every reverse dep that entry is now terminal,
// re-enqueuing whichever ones become fully signaled as a result (§4.2).
func (r *evalRun) signalParents(entry *Entry) {
	for _, parentKey := range entry.reverseDepKeys() {
		ready := r.graph.signal(parentKey, entry.key)
		if ready {
			if parentEntry, ok := r.graph.Get(parentKey); ok {
				r.enqueue(parentEntry)
			}
		}
	}
}

// replayEvents forwards a DONE entry's stored events to the sink exactly
// once per evaluation (§4.8, §8 invariant 3), using the run-scoped typedMap
// as the CAS gate.
func (r *evalRun) replayEvents(k Key, events []Event) {
	if _, already := r.replayed.LoadOrStore(k, struct{}{}); already {
		return
	}
	for _, e := range events {
		r.sink.Record(e)
	}
}
