package extensions

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/ahlfors/depgraph"
)

func TestGraphDebugExtensionLogOutcomeRendersFailedDependency(t *testing.T) {
	var buf bytes.Buffer
	multiWriter := io.MultiWriter(&buf, os.Stdout)
	handler := NewHumanHandler(multiWriter, slog.LevelError)
	debug := NewGraphDebugExtension(handler)

	registry := depgraph.NewFunctionRegistry()
	registry.Register("faulty", func(k depgraph.Key, env *depgraph.Environment) (depgraph.Value, error) {
		return nil, errors.New("db connection timeout")
	}, nil)
	registry.Register("top", func(k depgraph.Key, env *depgraph.Environment) (depgraph.Value, error) {
		env.GetValue(depgraph.NewKey("faulty", "bad"))
		if env.ValuesMissing() {
			return nil, nil
		}
		return "unreachable", nil
	}, nil)

	graph := depgraph.NewMemoryGraph()
	root := depgraph.NewKey("top", "t")
	result, err := depgraph.Evaluate(context.Background(), graph, registry, []depgraph.Key{root}, depgraph.WithKeepGoing(true))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}

	debug.LogOutcome(graph, []depgraph.Key{root}, result)

	output := buf.String()
	if !strings.Contains(output, "[GraphDebug] Evaluation Error") {
		t.Error("expected '[GraphDebug] Evaluation Error' header")
	}
	if !strings.Contains(output, "Root: top(t)") {
		t.Error("expected the failing root named in the output")
	}
	if !strings.Contains(output, "db connection timeout") {
		t.Error("expected the root cause's message in the output")
	}
	if !strings.Contains(output, "faulty(bad)") {
		t.Error("expected the failed dependency in the rendered tree")
	}
}

func TestGraphDebugExtensionLogOutcomeSkipsSuccess(t *testing.T) {
	var buf bytes.Buffer
	handler := NewHumanHandler(&buf, slog.LevelError)
	debug := NewGraphDebugExtension(handler)

	registry := depgraph.NewFunctionRegistry()
	registry.Register("leaf", func(k depgraph.Key, env *depgraph.Environment) (depgraph.Value, error) {
		return k.Argument, nil
	}, nil)

	graph := depgraph.NewMemoryGraph()
	root := depgraph.NewKey("leaf", "a")
	result, err := depgraph.Evaluate(context.Background(), graph, registry, []depgraph.Key{root})
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}

	debug.LogOutcome(graph, []depgraph.Key{root}, result)

	if buf.Len() != 0 {
		t.Errorf("expected no output for a successful outcome, got %q", buf.String())
	}
}

func TestSilentHandler(t *testing.T) {
	handler := NewSilentHandler()

	if handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected SilentHandler to be disabled for Debug level")
	}
	if handler.Enabled(context.Background(), slog.LevelError) {
		t.Error("expected SilentHandler to be disabled for Error level")
	}
	if err := handler.Handle(context.Background(), slog.Record{}); err != nil {
		t.Errorf("Handle should return nil, got %v", err)
	}
	if handler.WithAttrs([]slog.Attr{}) != handler {
		t.Error("WithAttrs should return self")
	}
	if handler.WithGroup("test") != handler {
		t.Error("WithGroup should return self")
	}
}
