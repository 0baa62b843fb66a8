package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/outsystems-tools/ddl-tightener/internal/dispatch"
	"github.com/outsystems-tools/ddl-tightener/internal/pipeline"
)

var extractModelCmd = &cobra.Command{
	Use:   "extract-model",
	Short: "Validate and persist model JSON produced by an external metadata extractor",
	RunE:  runExtractModel,
}

var (
	extractModelSourcePath string
	extractModelOutputPath string
	extractModelLogPath    string
)

func init() {
	extractModelCmd.Flags().StringVar(&extractModelSourcePath, "source", "", "path to model JSON already produced by a metadata extractor (required)")
	extractModelCmd.Flags().StringVar(&extractModelOutputPath, "output", "", "path the validated model JSON is written to (required)")
	extractModelCmd.Flags().StringVar(&extractModelLogPath, "log-path", "", "path the execution log is also written to")
	_ = extractModelCmd.MarkFlagRequired("source")
	_ = extractModelCmd.MarkFlagRequired("output")
}

// fileExtractor reads a raw model JSON file from disk and hands it to the
// ExtractModel pipeline unchanged. The live database metadata extractor
// itself is an external collaborator this module never implements; this
// binary only supports pointing the pipeline at model JSON that
// collaborator already produced.
type fileExtractor struct {
	path string
}

func (f fileExtractor) Extract(ctx context.Context) ([]byte, error) {
	return os.ReadFile(f.path) // #nosec G304 -- path is an explicit CLI flag
}

func runExtractModel(cmd *cobra.Command, args []string) error {
	deps, shutdown, err := newDependencies()
	if err != nil {
		return err
	}
	defer shutdown()

	req := pipeline.ExtractModelPipelineRequest{
		RequestID:  cmd.CalledAs(),
		Extractor:  fileExtractor{path: extractModelSourcePath},
		OutputPath: extractModelOutputPath,
		LogPath:    extractModelLogPath,
	}

	registry := newRegistry(deps)
	out := registry.Dispatch(cmd.Context(), dispatch.ExtractModel, req)
	if !out.IsOK() {
		return dispatchErr(out.Errors())
	}
	response, _ := out.Value()
	return printJSON(response)
}
