package main

import (
	"github.com/spf13/cobra"

	"github.com/outsystems-tools/ddl-tightener/internal/dispatch"
	"github.com/outsystems-tools/ddl-tightener/internal/pipeline"
)

var analyzeTighteningCmd = &cobra.Command{
	Use:   "analyze-tightening",
	Short: "Dry-run the tightening decisions a build-ssdt run would make",
	RunE:  runAnalyzeTightening,
}

var analyzeTighteningLogPath string
var analyzeTighteningBootstrapFlags *bootstrapFlags
var analyzeTighteningPolicyFlags *policyFlags

func init() {
	analyzeTighteningBootstrapFlags = addBootstrapFlags(analyzeTighteningCmd)
	analyzeTighteningPolicyFlags = addPolicyFlags(analyzeTighteningCmd, func() (string, string) {
		cfg := projectConfig()
		return cfg.DefaultPolicyMode, cfg.DefaultRemediation
	})
	analyzeTighteningCmd.Flags().StringVar(&analyzeTighteningLogPath, "log-path", "", "path the execution log is also written to")
}

func runAnalyzeTightening(cmd *cobra.Command, args []string) error {
	policyOpts, err := analyzeTighteningPolicyFlags.toOptions()
	if err != nil {
		return err
	}

	deps, shutdown, err := newDependencies()
	if err != nil {
		return err
	}
	defer shutdown()

	req := pipeline.TighteningAnalysisPipelineRequest{
		RequestID: cmd.CalledAs(),
		Bootstrap: analyzeTighteningBootstrapFlags.toRequest(),
		Policy:    policyOpts,
		LogPath:   analyzeTighteningLogPath,
	}

	registry := newRegistry(deps)
	out := registry.Dispatch(cmd.Context(), dispatch.AnalyzeTightening, req)
	if !out.IsOK() {
		return dispatchErr(out.Errors())
	}
	response, _ := out.Value()
	return printJSON(response)
}
