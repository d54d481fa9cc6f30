package depgraph

// Environment is handed to exactly one invocation of a compute function
// (C4, §4.4). It records every dependency requested during that
// invocation, tracks whether any of them were missing, and lets the
// compute function opt into recovering from a child's declared error
// class.
type Environment struct {
	key  Key
	run  *evalRun
	self *Entry

	missing     bool
	unrecovered *ErrorInfo // set when a requested child errored and no matching class caught it

	// defaultTag is the registry's extractTag result for this invocation's
	// own key (§4.3, §4.5 step 2), applied to any Emit call that doesn't
	// supply its own tag.
	defaultTag string

	events []Event
}

func newEnvironment(run *evalRun, self *Entry, defaultTag string) *Environment {
	return &Environment{key: self.key, run: run, self: self, defaultTag: defaultTag}
}

// Key returns the key being computed by this invocation.
func (env *Environment) Key() Key { return env.key }

// GetValue requests a single dependency, starting its own dep group
// (§4.4). It returns the dependency's value and true if it is DONE; if the
// dependency is not DONE, it returns (nil, false) and marks the invocation
// as having missing values. If the dependency is ERRORED, the invocation is
// marked with an unrecovered dependency error unless the caller instead
// uses GetValueOrThrow.
func (env *Environment) GetValue(k Key) (Value, bool) {
	child := env.run.graph.addReverseDepAndGetChild(env.key, k)
	env.run.ensureScheduled(child)
	env.self.recordDepGroup([]Key{k})

	// Subscribe before reading state (§4.4, §5): if the read happened
	// first, a finalize racing in the gap between the read and
	// markPending would call signalDep while k is still absent from
	// pending, drop that signal silently, and then markPending would add
	// k to a pending set no further signal will ever arrive for,
	// stranding this entry IN_PROGRESS permanently. Subscribing first
	// means the race instead resolves harmlessly either way: whichever of
	// the real signal or this call's own signalDep drain below runs first
	// simply empties the slot for the other.
	env.self.markPending([]Key{k})

	state, value, errInfo := child.terminalSnapshot()
	switch state {
	case StateDone:
		env.self.signalDep(k)
		return value, true
	case StateErrored:
		env.self.signalDep(k)
		env.recordUnrecovered(errInfo)
		env.missing = true
		return nil, false
	default:
		env.missing = true
		return nil, false
	}
}

// GetValues requests a batch of dependencies as a single new dep group
// (§4.4). Values are returned in the same order as ks; a missing or
// errored dependency yields a nil slot and marks the invocation
// accordingly. Every key in ks is subscribed via markPending before any of
// their states are read, for the same reason GetValue subscribes before
// reading (§4.4, §5).
func (env *Environment) GetValues(ks []Key) []Value {
	entries := make([]*Entry, len(ks))
	for i, k := range ks {
		entries[i] = env.run.graph.addReverseDepAndGetChild(env.key, k)
		env.run.ensureScheduled(entries[i])
	}
	env.self.recordDepGroup(ks)
	env.self.markPending(ks)

	values := make([]Value, len(ks))
	for i, child := range entries {
		state, value, errInfo := child.terminalSnapshot()
		switch state {
		case StateDone:
			env.self.signalDep(child.Key())
			values[i] = value
		case StateErrored:
			env.self.signalDep(child.Key())
			env.recordUnrecovered(errInfo)
			env.missing = true
		default:
			env.missing = true
		}
	}
	return values
}

// GetValueOrThrow behaves like GetValue, but if k is ERRORED with an error
// matching class, the underlying error is returned to the caller instead of
// being folded into an unrecovered dependency error (§4.4, §4.6).
func (env *Environment) GetValueOrThrow(k Key, class ErrorClass) (Value, error) {
	values, err := env.GetValuesOrThrow([]Key{k}, class)
	if err != nil {
		return nil, err
	}
	return values[0], nil
}

// GetValuesOrThrow is the batch form of GetValueOrThrow. Like GetValues, it
// subscribes every key in ks before reading any of their states, closing
// the same lost-wakeup window (§4.4, §5).
func (env *Environment) GetValuesOrThrow(ks []Key, class ErrorClass) ([]Value, error) {
	entries := make([]*Entry, len(ks))
	for i, k := range ks {
		entries[i] = env.run.graph.addReverseDepAndGetChild(env.key, k)
		env.run.ensureScheduled(entries[i])
	}
	env.self.recordDepGroup(ks)
	env.self.markPending(ks)

	values := make([]Value, len(ks))
	for i, child := range entries {
		state, value, errInfo := child.terminalSnapshot()
		switch state {
		case StateDone:
			env.self.signalDep(child.Key())
			values[i] = value
		case StateErrored:
			env.self.signalDep(child.Key())
			if errInfo != nil && class != nil && AsDomainError(errInfo.Exception, class) {
				return nil, errInfo.Exception
			}
			env.recordUnrecovered(errInfo)
			env.missing = true
		default:
			env.missing = true
		}
	}
	return values, nil
}

// ValuesMissing reports whether any dependency requested during this
// invocation was not yet DONE (§4.4). A compute function that observes
// true must return (nil, nil) — the null-value sentinel — without
// producing a value or an error.
func (env *Environment) ValuesMissing() bool {
	return env.missing
}

// Emit records a diagnostic event attributed to the key under evaluation.
// A blank tag falls back to the registry's extractTag result for this key
// (§4.3, §4.5 step 2), so a compute function that doesn't tag its own
// events still gets filtered the way its family was registered to be.
// Events are only persisted if the invocation ultimately transitions the
// entry to DONE (§3, "Events are stored only on the DONE transition").
func (env *Environment) Emit(kind EventKind, tag, message string) {
	if tag == "" {
		tag = env.defaultTag
	}
	env.events = append(env.events, Event{Kind: kind, Location: env.key, Tag: tag, Message: message})
}

func (env *Environment) recordUnrecovered(info *ErrorInfo) {
	if info == nil {
		return
	}
	if env.unrecovered == nil {
		env.unrecovered = &ErrorInfo{RootCauses: map[Key]struct{}{}}
	}
	env.unrecovered.mergeRootCauses(info)
}
