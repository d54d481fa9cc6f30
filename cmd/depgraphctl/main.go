// Command depgraphctl drives the buildgraph example through depgraph's
// parallel evaluator from the shell, the same root-command-plus-subcommand
// shape the pack's other CLI tools use for wrapping a library behind a
// handful of verbs.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ahlfors/depgraph"
	"github.com/ahlfors/depgraph/examples/buildgraph"
	"github.com/ahlfors/depgraph/extensions"
)

var (
	keepGoing   bool
	parallelism int
	jsonOutput  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "depgraphctl",
	Short: "Evaluate build targets through depgraph's parallel evaluator",
}

var buildCmd = &cobra.Command{
	Use:   "build TARGET...",
	Short: "Evaluate one or more build targets and print their outputs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBuild,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&keepGoing, "keep-going", false, "continue past individual target failures instead of aborting the run")
	rootCmd.PersistentFlags().IntVar(&parallelism, "parallelism", 8, "worker pool size")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit structured JSON logs instead of human-readable ones")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	runID := uuid.New()

	var logHandler slog.Handler
	if jsonOutput {
		logHandler = slog.NewJSONHandler(os.Stdout, nil)
	} else {
		logHandler = extensions.NewHumanHandler(os.Stdout, slog.LevelInfo)
	}
	logger := slog.New(logHandler).With("run_id", runID.String())
	logger.Info("starting evaluation", "targets", args, "keep_going", keepGoing)

	g := buildgraph.New(demoTargets())
	registry := depgraph.NewFunctionRegistry()
	g.Register(registry)

	roots := make([]depgraph.Key, len(args))
	for i, name := range args {
		roots[i] = buildgraph.TargetKey(name)
	}

	sink := depgraph.NewMemoryEventSink(nil)
	graph := depgraph.NewMemoryGraph()
	debug := extensions.NewGraphDebugExtension(extensions.NewHumanHandler(os.Stdout, slog.LevelError))

	result, err := depgraph.Evaluate(context.Background(), graph, registry, roots,
		depgraph.WithKeepGoing(keepGoing),
		depgraph.WithParallelism(parallelism),
		depgraph.WithEventSink(sink),
		depgraph.WithInstrumentation(extensions.NewInstrumentationLogger(logger)),
	)
	if err != nil {
		var unrec *depgraph.UnrecoverableError
		if errors.As(err, &unrec) {
			debug.LogUnrecoverable(graph, unrec)
		}
		return err
	}

	debug.LogOutcome(graph, roots, result)

	for _, root := range roots {
		outcome := result.Results[root]
		if outcome.Err != nil {
			fmt.Printf("%s: ERROR %v\n", root, outcome.Err.Error())
			continue
		}
		fmt.Printf("%s: %v\n", root, outcome.Value)
	}
	for _, e := range sink.Events() {
		fmt.Printf("[%s] %s: %s\n", e.Kind, e.Location, e.Message)
	}

	if result.HasError && !keepGoing {
		return fmt.Errorf("evaluation aborted: %v", result.TopException)
	}
	return nil
}

// demoTargets builds a small diamond over the module's own go.mod and
// DESIGN.md so depgraphctl has something real to read without requiring a
// user-supplied project to point it at.
func demoTargets() []buildgraph.TargetSpec {
	return []buildgraph.TargetSpec{
		{
			Name:  "module",
			Files: []string{"go.mod"},
			Build: func(contents, _ map[string]string) (string, error) {
				return fmt.Sprintf("module manifest is %d bytes", len(contents["go.mod"])), nil
			},
		},
		{
			Name:  "design",
			Files: []string{"DESIGN.md"},
			Deps:  []string{"module"},
			Build: func(contents, deps map[string]string) (string, error) {
				return fmt.Sprintf("%s; design doc is %d bytes", deps["module"], len(contents["DESIGN.md"])), nil
			},
		},
		{
			Name: "report",
			Deps: []string{"module", "design"},
			Build: func(_ map[string]string, deps map[string]string) (string, error) {
				return fmt.Sprintf("report combining %q and %q", deps["module"], deps["design"]), nil
			},
		},
	}
}
