package depgraph

import "testing"

func TestEntryLifecycleNewToInProgress(t *testing.T) {
	e := newEntry(NewKey("leaf", "a"))
	if e.State() != StateNew {
		t.Fatalf("new entry state = %v, want NEW", e.State())
	}
	if !e.tryClaim() {
		t.Fatal("tryClaim() on a NEW entry should succeed")
	}
	if e.State() != StateInProgress {
		t.Errorf("state after tryClaim = %v, want IN_PROGRESS", e.State())
	}
	if e.tryClaim() {
		t.Error("a second concurrent tryClaim should fail while the first is still computing")
	}
	e.release()
	if !e.tryClaim() {
		t.Error("tryClaim() should succeed again after release()")
	}
}

func TestEntryTryClaimFailsOnceTerminal(t *testing.T) {
	e := newEntry(NewKey("leaf", "a"))
	e.tryClaim()
	e.setValue("a", nil)
	e.release()

	if e.tryClaim() {
		t.Error("tryClaim() on a DONE entry should fail")
	}
	if e.State() != StateDone {
		t.Errorf("state = %v, want DONE", e.State())
	}
}

func TestEntryWasRestarted(t *testing.T) {
	e := newEntry(NewKey("leaf", "a"))
	e.tryClaim()
	if e.wasRestarted() {
		t.Error("wasRestarted() should be false on first invocation")
	}
	e.release()
	e.tryClaim()
	if !e.wasRestarted() {
		t.Error("wasRestarted() should be true on second invocation")
	}
}

func TestEntryDepGroupsFixFirstOccurrence(t *testing.T) {
	e := newEntry(NewKey("concat", "ab"))
	a, b, c := NewKey("leaf", "a"), NewKey("leaf", "b"), NewKey("leaf", "c")

	e.tryClaim()
	e.recordDepGroup([]Key{a, b})
	e.release()

	e.tryClaim()
	// Second invocation asks for a again (already grouped) plus a new key c.
	e.recordDepGroup([]Key{a, c})
	e.release()

	groups := e.directDepsSnapshot()
	if len(groups) != 2 {
		t.Fatalf("directDepsSnapshot() has %d groups, want 2", len(groups))
	}
	if len(groups[0]) != 2 || groups[0][0] != a || groups[0][1] != b {
		t.Errorf("first group = %v, want [%v %v]", groups[0], a, b)
	}
	if len(groups[1]) != 1 || groups[1][0] != c {
		t.Errorf("second group = %v, want [%v]", groups[1], c)
	}
}

func TestEntrySignalDepDrainsPending(t *testing.T) {
	e := newEntry(NewKey("concat", "ab"))
	a, b := NewKey("leaf", "a"), NewKey("leaf", "b")
	e.tryClaim()
	e.recordDepGroup([]Key{a, b})
	e.markPending([]Key{a, b})
	e.release()

	if ready := e.signalDep(a); ready {
		t.Error("signalDep(a) should not drain pending while b is still outstanding")
	}
	if e.pendingCount() != 1 {
		t.Errorf("pendingCount() = %d, want 1", e.pendingCount())
	}
	if ready := e.signalDep(b); !ready {
		t.Error("signalDep(b) should drain pending to empty and report ready")
	}
	if e.pendingCount() != 0 {
		t.Errorf("pendingCount() = %d, want 0", e.pendingCount())
	}
}

func TestEntryAddReverseDepIsIdempotent(t *testing.T) {
	e := newEntry(NewKey("leaf", "a"))
	p := NewKey("concat", "ab")
	if !e.addReverseDep(p) {
		t.Error("first addReverseDep should report true")
	}
	if e.addReverseDep(p) {
		t.Error("second addReverseDep for the same parent should report false")
	}
	keys := e.reverseDepKeys()
	if len(keys) != 1 || keys[0] != p {
		t.Errorf("reverseDepKeys() = %v, want [%v]", keys, p)
	}
}

func TestEntryStoredEventsOnlyOnDone(t *testing.T) {
	e := newEntry(NewKey("leaf", "a"))
	e.tryClaim()
	events := []Event{{Kind: EventWarning, Location: e.key, Message: "careful"}}
	e.setValue("a", events)
	e.release()

	got := e.storedEventsSnapshot()
	if len(got) != 1 || got[0].Message != "careful" {
		t.Errorf("storedEventsSnapshot() = %v, want one warning event", got)
	}

	errored := newEntry(NewKey("leaf", "b"))
	errored.tryClaim()
	errored.setError(&ErrorInfo{RootCauses: map[Key]struct{}{errored.key: {}}})
	errored.release()
	if got := errored.storedEventsSnapshot(); len(got) != 0 {
		t.Errorf("storedEventsSnapshot() on an ERRORED entry = %v, want none", got)
	}
}

func TestEntryMarkEnqueuedOnce(t *testing.T) {
	e := newEntry(NewKey("leaf", "a"))
	if !e.markEnqueuedOnce() {
		t.Error("first markEnqueuedOnce() should return true")
	}
	if e.markEnqueuedOnce() {
		t.Error("second markEnqueuedOnce() should return false")
	}
}
