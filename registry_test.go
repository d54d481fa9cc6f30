package depgraph

import (
	"errors"
	"testing"
)

func TestFunctionRegistryLookup(t *testing.T) {
	r := NewFunctionRegistry()
	r.Register("leaf", func(k Key, env *Environment) (Value, error) {
		return k.Argument, nil
	}, nil)

	reg, err := r.lookup(NewKey("leaf", "a"))
	if err != nil {
		t.Fatalf("lookup(leaf) returned error: %v", err)
	}
	if reg.compute == nil {
		t.Fatal("lookup(leaf) returned a registration with a nil compute func")
	}
	if tag := reg.extractTag(NewKey("leaf", "a")); tag != "" {
		t.Errorf("default extractTag = %q, want empty string", tag)
	}
}

func TestFunctionRegistryUnknownFamily(t *testing.T) {
	r := NewFunctionRegistry()
	_, err := r.lookup(NewKey("missing", "a"))
	if err == nil {
		t.Fatal("lookup(missing) should return an error")
	}
	if !errors.Is(err, ErrUnknownFamily) {
		t.Errorf("lookup(missing) error = %v, want it to wrap ErrUnknownFamily", err)
	}
}

func TestFunctionRegistryCustomTagExtractor(t *testing.T) {
	r := NewFunctionRegistry()
	r.Register("leaf", func(k Key, env *Environment) (Value, error) {
		return k.Argument, nil
	}, func(k Key) string {
		return "tag:" + k.Argument.(string)
	})

	reg, _ := r.lookup(NewKey("leaf", "a"))
	if got, want := reg.extractTag(NewKey("leaf", "a")), "tag:a"; got != want {
		t.Errorf("extractTag = %q, want %q", got, want)
	}
}
