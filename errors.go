package depgraph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors, in the teacher's style (errors.go's use of plain
// errors.New plus %w-wrapping structs rather than a class hierarchy).
var (
	// ErrCancelled is returned, wrapped in a CancelledError, when the
	// caller's context is cancelled during an evaluation. A fail-fast abort
	// is not reported this way: it surfaces as EvaluationResult.TopException,
	// or as Evaluate's own error for an UnrecoverableError.
	ErrCancelled = errors.New("depgraph: evaluation cancelled")

	// ErrNoRoots is returned by Evaluate when called with an empty root set.
	ErrNoRoots = errors.New("depgraph: no root keys requested")

	// ErrUnknownFamily is returned when a key names a family the registry
	// never registered a compute function for.
	ErrUnknownFamily = errors.New("depgraph: unknown key family")
)

// ErrorClass identifies a domain error type a compute function may raise
// and a parent may opt to catch via Environment.GetValueOrThrow. Two
// ErrorClass values match when Matches returns true for the error.
type ErrorClass interface {
	// Matches reports whether err belongs to this class.
	Matches(err error) bool
}

// ErrorClassFunc adapts a plain function to ErrorClass.
type ErrorClassFunc func(error) bool

func (f ErrorClassFunc) Matches(err error) bool { return f(err) }

// ErrorInfo is the terminal error recorded on an ERRORED entry (§3).
type ErrorInfo struct {
	// Exception is the original error raised by the compute function, or
	// the wrapping/unrecoverable error that forced termination. Nil for a
	// pure cycle-only ErrorInfo.
	Exception error

	// RootCauses is the set of keys whose own (non-inherited) failure
	// contributed to this error.
	RootCauses map[Key]struct{}

	// Cycles lists every cycle this key's error is attributed to, either
	// because the key itself sits on a cycle or because it is an ancestor
	// on a path to one (§4.7).
	Cycles []CycleInfo

	// Catastrophic marks an error that must halt scheduling regardless of
	// the keep-going policy (§4.1, §7).
	Catastrophic bool
}

func newErrorInfo(rootCause Key, cause error) *ErrorInfo {
	return &ErrorInfo{
		Exception:  cause,
		RootCauses: map[Key]struct{}{rootCause: {}},
	}
}

// RootCauseKeys returns RootCauses as a deterministically sorted slice.
func (e *ErrorInfo) RootCauseKeys() []Key {
	out := make([]Key, 0, len(e.RootCauses))
	for k := range e.RootCauses {
		out = append(out, k)
	}
	sortKeys(out)
	return out
}

func (e *ErrorInfo) Error() string {
	switch {
	case e == nil:
		return "<nil ErrorInfo>"
	case len(e.Cycles) > 0 && e.Exception == nil:
		return fmt.Sprintf("cycle detected: %s", e.Cycles[0].String())
	case e.Exception != nil:
		return e.Exception.Error()
	default:
		return "depgraph: unspecified evaluation error"
	}
}

// mergeRootCauses unions another ErrorInfo's root causes into e, used when
// a parent inherits from more than one errored child (§4.6, DependencyError).
func (e *ErrorInfo) mergeRootCauses(other *ErrorInfo) {
	if other == nil {
		return
	}
	for k := range other.RootCauses {
		e.RootCauses[k] = struct{}{}
	}
	if other.Catastrophic {
		e.Catastrophic = true
	}
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Family != keys[j].Family {
			return keys[i].Family < keys[j].Family
		}
		return fmt.Sprint(keys[i].Argument) < fmt.Sprint(keys[j].Argument)
	})
}

// CycleInfo describes one detected cycle and the path an ancestor took to
// reach it (§3, §4.7).
type CycleInfo struct {
	// Cycle is the ordered list of keys forming the closed path; the first
	// and last keys are adjacent in the dependency graph (the sequence does
	// not literally repeat the first key at the end).
	Cycle []Key

	// PathToCycle is the ordered list of ancestors from a requested root
	// down to the key at which the cycle was entered (exclusive of the
	// cycle itself).
	PathToCycle []Key
}

func (c CycleInfo) String() string {
	parts := make([]string, len(c.Cycle))
	for i, k := range c.Cycle {
		parts[i] = k.String()
	}
	return strings.Join(parts, " -> ") + " -> " + parts[0]
}

// cycleSetKey canonicalizes a cycle for the dedup-by-set rule in §4.7/§9:
// "source dedupes by the cycle set only, not entry point". Rotation of the
// same cyclic sequence must map to the same set key.
func (c CycleInfo) cycleSetKey() string {
	keys := append([]Key(nil), c.Cycle...)
	sortKeys(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.String()
	}
	return strings.Join(parts, "|")
}

// ComputeError wraps a declared domain error raised by a compute function.
// RootCauses is always {self}.
type ComputeError struct {
	Key   Key
	Cause error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("compute error for %s: %v", e.Key, e.Cause)
}

func (e *ComputeError) Unwrap() error { return e.Cause }

// DependencyError wraps the failure of an un-caught child dependency.
type DependencyError struct {
	Key        Key
	RootCauses []Key
}

func (e *DependencyError) Error() string {
	causes := make([]string, len(e.RootCauses))
	for i, k := range e.RootCauses {
		causes[i] = k.String()
	}
	return fmt.Sprintf("%s failed because of dependency error(s) in: %s", e.Key, strings.Join(causes, ", "))
}

// CycleError reports that the cycle detector attributed one or more cycles
// to a key.
type CycleError struct {
	Key    Key
	Cycles []CycleInfo
}

func (e *CycleError) Error() string {
	strs := make([]string, len(e.Cycles))
	for i, c := range e.Cycles {
		strs[i] = c.String()
	}
	return fmt.Sprintf("%s participates in cycle(s): %s", e.Key, strings.Join(strs, "; "))
}

// UnrecoverableError wraps an unclassified exception raised by a compute
// function. It is always fatal and is never stored on an entry (§3, §7).
// The message names every parent that had requested the failing key at the
// time of failure (original_source/ParallelEvaluatorTest exercises this
// with more than one concurrent requester).
type UnrecoverableError struct {
	Key     Key
	Parents []Key
	Cause   error
	Stack   []byte // stack trace captured at the point of failure
}

func (e *UnrecoverableError) Error() string {
	parents := make([]string, len(e.Parents))
	for i, p := range e.Parents {
		parents[i] = p.String()
	}
	sort.Strings(parents)
	requestedBy := strings.Join(parents, "', '")
	return fmt.Sprintf(
		"Unrecoverable error while evaluating node '%s' (requested by nodes '%s'): %v",
		e.Key, requestedBy, e.Cause,
	)
}

func (e *UnrecoverableError) Unwrap() error { return e.Cause }

// CatastrophicError is raised by a compute function to halt all further
// scheduling regardless of the keep-going policy (§4.1, §7).
type CatastrophicError struct {
	Key   Key
	Cause error
}

func (e *CatastrophicError) Error() string {
	return fmt.Sprintf("catastrophic error at %s: %v", e.Key, e.Cause)
}

func (e *CatastrophicError) Unwrap() error { return e.Cause }

// CancelledError wraps ErrCancelled with the key being computed when
// cancellation was observed, if any.
type CancelledError struct {
	Key Key
}

func (e *CancelledError) Error() string {
	if e.Key == (Key{}) {
		return ErrCancelled.Error()
	}
	return fmt.Sprintf("%s: observed while evaluating %s", ErrCancelled, e.Key)
}

func (e *CancelledError) Unwrap() error { return ErrCancelled }

// AsDomainError reports whether err (or something it wraps) is classified
// by class, mirroring errors.As's unwrap walk. Environment.GetValuesOrThrow
// (and so GetValueOrThrow) uses this to decide whether a parent catches a
// child's failure.
func AsDomainError(err error, class ErrorClass) bool {
	if err == nil || class == nil {
		return false
	}
	for current := err; current != nil; current = errors.Unwrap(current) {
		if class.Matches(current) {
			return true
		}
	}
	return false
}
