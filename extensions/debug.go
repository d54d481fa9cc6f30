package extensions

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ahlfors/depgraph"
	"github.com/m1gwings/treedrawer/tree"
)

// GraphDebugExtension logs a rendered dependency tree for every requested
// root whose outcome carries an error: a cycle, an inherited dependency
// failure, or (via LogUnrecoverable) a panic that aborted the whole
// evaluation. It does not participate in scheduling — callers invoke it
// after Evaluate returns.
//
// Usage:
//
//	// Human-readable formatted output (with line breaks)
//	handler := extensions.NewHumanHandler(os.Stdout, slog.LevelError)
//	debug := extensions.NewGraphDebugExtension(handler)
//
//	// Structured JSON logging (compact, machine-readable)
//	handler := slog.NewJSONHandler(os.Stdout, nil)
//	debug := extensions.NewGraphDebugExtension(handler)
//
//	// Silent (for testing)
//	debug := extensions.NewGraphDebugExtension(extensions.NewSilentHandler())
//
//	result, err := depgraph.Evaluate(ctx, graph, registry, roots)
//	debug.LogOutcome(graph, roots, result)
type GraphDebugExtension struct {
	logger *slog.Logger
}

// NewGraphDebugExtension creates a new graph debug extension.
// logHandler: slog.Handler for logging (use HumanHandler for formatted output, or any other slog.Handler)
func NewGraphDebugExtension(logHandler slog.Handler) *GraphDebugExtension {
	return &GraphDebugExtension{logger: slog.New(logHandler)}
}

// LogOutcome walks every requested root that finished errored and logs its
// dependency subtree alongside the recorded ErrorInfo.
func (e *GraphDebugExtension) LogOutcome(graph *depgraph.MemoryGraph, roots []depgraph.Key, result *depgraph.EvaluationResult) {
	if result == nil || !result.HasError {
		return
	}
	for _, root := range roots {
		outcome, ok := result.Results[root]
		if !ok || outcome.Err == nil {
			continue
		}
		e.logger.Error("Evaluation Error",
			"root", root.String(),
			"error", outcome.Err.Error(),
			"dependency_tree", e.renderTree(graph, root),
		)
	}
}

// LogUnrecoverable logs the tree rooted at the key an UnrecoverableError
// names, for the fail-fast-and-abort-the-whole-run case where Evaluate
// never returns an EvaluationResult at all.
func (e *GraphDebugExtension) LogUnrecoverable(graph *depgraph.MemoryGraph, unrec *depgraph.UnrecoverableError) {
	e.logger.Error("Unrecoverable Error",
		"key", unrec.Key.String(),
		"error", unrec.Error(),
		"dependency_tree", e.renderTree(graph, unrec.Key),
	)
}

func (e *GraphDebugExtension) renderTree(graph *depgraph.MemoryGraph, root depgraph.Key) string {
	t := tree.NewTree(tree.NodeString(e.label(graph, root)))
	visited := map[depgraph.Key]bool{root: true}
	e.buildSubtree(graph, t, root, visited)
	return "\n" + t.String()
}

func (e *GraphDebugExtension) buildSubtree(graph *depgraph.MemoryGraph, node *tree.Tree, k depgraph.Key, visited map[depgraph.Key]bool) {
	entry, ok := graph.Get(k)
	if !ok {
		return
	}
	for _, group := range entry.DirectDeps() {
		for _, child := range group {
			if visited[child] {
				node.AddChild(tree.NodeString(e.label(graph, child) + " (revisited)"))
				continue
			}
			visited[child] = true
			childNode := node.AddChild(tree.NodeString(e.label(graph, child)))
			e.buildSubtree(graph, childNode, child, visited)
		}
	}
}

func (e *GraphDebugExtension) label(graph *depgraph.MemoryGraph, k depgraph.Key) string {
	entry, ok := graph.Get(k)
	if !ok {
		return k.String() + " (unknown)"
	}
	switch entry.State() {
	case depgraph.StateDone:
		return k.String() + " ✓"
	case depgraph.StateErrored:
		msg := ""
		if info := entry.ErrorInfo(); info != nil {
			msg = " (" + info.Error() + ")"
		}
		return k.String() + " ❌" + msg
	default:
		return k.String() + " (pending)"
	}
}

// SilentHandler is a slog.Handler that discards all log output
// Useful for testing when you don't want log output
type SilentHandler struct{}

// NewSilentHandler creates a new silent log handler
func NewSilentHandler() *SilentHandler {
	return &SilentHandler{}
}

func (h *SilentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return false // Never enabled, discards everything
}

func (h *SilentHandler) Handle(ctx context.Context, record slog.Record) error {
	return nil // Do nothing
}

func (h *SilentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h // Return self, no state to modify
}

func (h *SilentHandler) WithGroup(name string) slog.Handler {
	return h // Return self, no state to modify
}

// HumanHandler is a slog.Handler that formats logs for human readability
// with proper line breaks and visual formatting (especially for dependency
// trees).
type HumanHandler struct {
	writer io.Writer
	level  slog.Level
}

// NewHumanHandler creates a new human-readable log handler
func NewHumanHandler(writer io.Writer, level slog.Level) *HumanHandler {
	return &HumanHandler{
		writer: writer,
		level:  level,
	}
}

func (h *HumanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *HumanHandler) Handle(ctx context.Context, record slog.Record) error {
	switch record.Message {
	case "Evaluation Error", "Unrecoverable Error":
		return h.handleGraphError(record)
	}

	if _, err := fmt.Fprintf(h.writer, "[%s] %s\n", record.Level, record.Message); err != nil {
		return err
	}
	var writeErr error
	record.Attrs(func(a slog.Attr) bool {
		if _, err := fmt.Fprintf(h.writer, "  %s: %v\n", a.Key, a.Value); err != nil {
			writeErr = err
			return false
		}
		return true
	})
	return writeErr
}

func (h *HumanHandler) handleGraphError(record slog.Record) error {
	var root, key, errMsg, tree string

	record.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case "root":
			root = a.Value.String()
		case "key":
			key = a.Value.String()
		case "error":
			errMsg = a.Value.String()
		case "dependency_tree":
			tree = a.Value.String()
		}
		return true
	})

	writes := []func() error{
		func() error { _, err := fmt.Fprintln(h.writer); return err },
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
		func() error { _, err := fmt.Fprintf(h.writer, "[GraphDebug] %s\n", record.Message); return err },
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
	}
	if root != "" {
		writes = append(writes, func() error { _, err := fmt.Fprintf(h.writer, "\nRoot: %s\n", root); return err })
	}
	if key != "" {
		writes = append(writes, func() error { _, err := fmt.Fprintf(h.writer, "\nKey: %s\n", key); return err })
	}
	writes = append(writes,
		func() error { _, err := fmt.Fprintf(h.writer, "Error: %s\n", errMsg); return err },
		func() error { _, err := fmt.Fprintf(h.writer, "\nDependency Tree:%s", tree); return err },
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
		func() error { _, err := fmt.Fprintln(h.writer); return err },
	)

	for _, write := range writes {
		if err := write(); err != nil {
			return err
		}
	}
	return nil
}

func (h *HumanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *HumanHandler) WithGroup(name string) slog.Handler {
	return h
}
