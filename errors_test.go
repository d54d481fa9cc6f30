package depgraph

import (
	"errors"
	"strings"
	"testing"
)

func TestCycleInfoCycleSetKeyDedupesByRotation(t *testing.T) {
	a, b, c := NewKey("n", "a"), NewKey("n", "b"), NewKey("n", "c")
	enteredAtA := CycleInfo{Cycle: []Key{a, b, c}}
	enteredAtB := CycleInfo{Cycle: []Key{b, c, a}}

	if enteredAtA.cycleSetKey() != enteredAtB.cycleSetKey() {
		t.Errorf("rotations of the same cycle should produce the same set key: %q vs %q",
			enteredAtA.cycleSetKey(), enteredAtB.cycleSetKey())
	}

	different := CycleInfo{Cycle: []Key{a, b}}
	if enteredAtA.cycleSetKey() == different.cycleSetKey() {
		t.Error("a different cycle should not share a set key")
	}
}

func TestErrorInfoMergeRootCauses(t *testing.T) {
	x, y := NewKey("n", "x"), NewKey("n", "y")
	info := newErrorInfo(x, errors.New("x failed"))
	other := newErrorInfo(y, errors.New("y failed"))

	info.mergeRootCauses(other)

	causes := info.RootCauseKeys()
	if len(causes) != 2 || causes[0] != x || causes[1] != y {
		t.Errorf("RootCauseKeys() = %v, want [%v %v]", causes, x, y)
	}
}

func TestAsDomainErrorWalksUnwrapChain(t *testing.T) {
	leaf := errors.New("parse failure")
	wrapped := &ComputeError{Key: NewKey("n", "x"), Cause: leaf}

	isParseFailure := ErrorClassFunc(func(err error) bool { return err == leaf })
	if !AsDomainError(wrapped, isParseFailure) {
		t.Error("AsDomainError should find leaf through ComputeError's Unwrap")
	}

	isSomethingElse := ErrorClassFunc(func(err error) bool { return err.Error() == "does not match" })
	if AsDomainError(wrapped, isSomethingElse) {
		t.Error("AsDomainError should not match an unrelated class")
	}
}

func TestUnrecoverableErrorFormatsMultipleRequesters(t *testing.T) {
	err := &UnrecoverableError{
		Key:     NewKey("leaf", "x"),
		Parents: []Key{NewKey("top", "b"), NewKey("top", "a")},
		Cause:   errors.New("boom"),
	}
	msg := err.Error()
	if !strings.Contains(msg, "Unrecoverable error while evaluating node 'leaf(x)'") {
		t.Errorf("message = %q, missing expected node clause", msg)
	}
	if !strings.Contains(msg, "requested by nodes 'top(a)', 'top(b)'") {
		t.Errorf("message = %q, parents should be sorted", msg)
	}
	if !strings.Contains(msg, "boom") {
		t.Errorf("message = %q, missing cause", msg)
	}
}

func TestDependencyErrorMessage(t *testing.T) {
	err := &DependencyError{Key: NewKey("top", "t"), RootCauses: []Key{NewKey("leaf", "a")}}
	if !strings.Contains(err.Error(), "leaf(a)") {
		t.Errorf("message = %q, want it to name the root cause", err.Error())
	}
}
