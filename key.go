package depgraph

import "fmt"

// Key identifies one computation in the graph: a family naming a registered
// compute function, plus an argument carrying whatever that family needs to
// do its work. Keys are compared and hashed by structural equality of the
// pair, so Argument must be a comparable value (a struct of comparable
// fields, a string, an int, and so on) — the same discipline Go's own map
// keys require, and the same discipline Bazel's SkyKey places on its
// argument.
type Key struct {
	Family   string
	Argument any
}

// NewKey constructs a Key for the given family and argument.
func NewKey(family string, argument any) Key {
	return Key{Family: family, Argument: argument}
}

func (k Key) String() string {
	return fmt.Sprintf("%s(%v)", k.Family, k.Argument)
}

// Value is the opaque, immutable payload a compute function produces on
// success. The evaluator never inspects it; only the compute function that
// asked for a key's value (via Environment.GetValue/GetValues) and the
// caller receiving the final EvaluationResult ever interpret it.
type Value = any

// keySet is an ordered set of Keys: a dep group, per §3 "Entry". Order is
// preserved because the scheduler re-requests dependencies in the order a
// compute function asked for them, and tests assert on that order.
type keySet struct {
	order []Key
	index map[Key]int
}

func newKeySet(keys ...Key) *keySet {
	s := &keySet{index: make(map[Key]int, len(keys))}
	for _, k := range keys {
		s.add(k)
	}
	return s
}

func (s *keySet) add(k Key) bool {
	if _, ok := s.index[k]; ok {
		return false
	}
	s.index[k] = len(s.order)
	s.order = append(s.order, k)
	return true
}

func (s *keySet) contains(k Key) bool {
	_, ok := s.index[k]
	return ok
}

func (s *keySet) len() int {
	return len(s.order)
}

func (s *keySet) keys() []Key {
	out := make([]Key, len(s.order))
	copy(out, s.order)
	return out
}
