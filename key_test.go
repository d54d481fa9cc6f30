package depgraph

import "testing"

func TestKeyString(t *testing.T) {
	k := NewKey("leaf", "a")
	if got, want := k.String(), "leaf(a)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestKeyEquality(t *testing.T) {
	a := NewKey("leaf", "x")
	b := NewKey("leaf", "x")
	c := NewKey("leaf", "y")

	if a != b {
		t.Errorf("expected equal keys to compare equal: %v != %v", a, b)
	}
	if a == c {
		t.Errorf("expected different arguments to compare unequal: %v == %v", a, c)
	}
}

func TestKeySetPreservesInsertionOrder(t *testing.T) {
	s := newKeySet()
	keys := []Key{NewKey("leaf", "c"), NewKey("leaf", "a"), NewKey("leaf", "b")}
	for _, k := range keys {
		if !s.add(k) {
			t.Fatalf("add(%v) returned false on first insertion", k)
		}
	}

	if s.add(keys[0]) {
		t.Errorf("re-adding %v should report false", keys[0])
	}

	got := s.keys()
	if len(got) != len(keys) {
		t.Fatalf("keys() returned %d keys, want %d", len(got), len(keys))
	}
	for i, k := range keys {
		if got[i] != k {
			t.Errorf("keys()[%d] = %v, want %v", i, got[i], k)
		}
	}
}

func TestKeySetContains(t *testing.T) {
	s := newKeySet(NewKey("leaf", "a"))
	if !s.contains(NewKey("leaf", "a")) {
		t.Error("contains(a) = false, want true")
	}
	if s.contains(NewKey("leaf", "b")) {
		t.Error("contains(b) = true, want false")
	}
	if s.len() != 1 {
		t.Errorf("len() = %d, want 1", s.len())
	}
}
