// Command ddltighten is a thin cobra binary wiring the five pipeline
// request types to the command dispatcher. It owns no tightening logic
// of its own: every subcommand parses flags into a request struct and
// hands it to the dispatcher. Layout: a root command in main.go, one
// file per subcommand, shared package-level flag vars.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/outsystems-tools/ddl-tightener/internal/clock"
	"github.com/outsystems-tools/ddl-tightener/internal/config"
	"github.com/outsystems-tools/ddl-tightener/internal/dispatch"
	"github.com/outsystems-tools/ddl-tightener/internal/fsfacade"
	"github.com/outsystems-tools/ddl-tightener/internal/oplog"
	"github.com/outsystems-tools/ddl-tightener/internal/pipeline"
	"github.com/outsystems-tools/ddl-tightener/internal/tracing"
)

var (
	projectDir  string
	opLogPath   string
	traceStdout bool
)

var rootCmd = &cobra.Command{
	Use:   "ddltighten",
	Short: "Tighten a logical data model into SQL Server DDL",
	Long: `ddltighten reads a logical data model and a database profile and
produces tightened SQL Server DDL, policy decision logs, opportunity
reports, and an evidence cache entry.

Examples:
  ddltighten build-ssdt --model model.json --profile-fixture profile.json --output-dir out/
  ddltighten analyze-tightening --model model.json --profile-fixture profile.json`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectDir, "project-dir", ".", "project directory containing .ddltighten/config.yaml")
	rootCmd.PersistentFlags().StringVar(&opLogPath, "op-log", "", "path to a rotating NDJSON operational log (disabled if empty)")
	rootCmd.PersistentFlags().BoolVar(&traceStdout, "trace-stdout", false, "emit one OpenTelemetry span per pipeline stage to stdout")

	rootCmd.AddCommand(buildSsdtCmd)
	rootCmd.AddCommand(analyzeTighteningCmd)
	rootCmd.AddCommand(extractModelCmd)
	rootCmd.AddCommand(captureProfileCmd)
	rootCmd.AddCommand(dmmCompareCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newDependencies assembles the Dependencies shared by every subcommand
// from the persistent flags and the project config layer.
func newDependencies() (pipeline.Dependencies, func(), error) {
	var opLog *oplog.Logger
	if opLogPath != "" {
		opLog = oplog.New(oplog.DefaultOptions(opLogPath))
	}

	tracingOpts := tracing.Disabled()
	shutdown := func() {}
	if traceStdout {
		opts, flush, err := tracing.NewStdout(os.Stdout)
		if err != nil {
			return pipeline.Dependencies{}, func() {}, fmt.Errorf("ddltighten: start tracing: %w", err)
		}
		tracingOpts = opts
		shutdown = func() { _ = flush(context.Background()) }
	}

	return pipeline.Dependencies{
		FS:      fsfacade.OS{},
		Clock:   clock.System{},
		Tracing: tracingOpts,
		OpLog:   opLog,
	}, shutdown, nil
}

func newRegistry(deps pipeline.Dependencies) *dispatch.Registry {
	return dispatch.NewDefaultRegistry(deps)
}

func projectConfig() config.ProjectConfig {
	return config.LoadWithEnv(projectDir)
}
