package pipeline

import (
	"context"

	"github.com/outsystems-tools/ddl-tightener/internal/execlog"
	"github.com/outsystems-tools/ddl-tightener/internal/modelingest"
	"github.com/outsystems-tools/ddl-tightener/internal/result"
	"github.com/outsystems-tools/ddl-tightener/internal/tracing"
)

// ExtractModelPipelineRequest wires an injected ModelExtractor, the
// external database metadata extractor, to produce model JSON and
// validate it through the model ingestor before persisting it.
type ExtractModelPipelineRequest struct {
	RequestID  string
	Extractor  ModelExtractor
	OutputPath string
	LogPath    string
}

// ExtractModelPipelineResponse carries the path the extracted model was
// written to and any schema-validation warnings surfaced during ingest.
type ExtractModelPipelineResponse struct {
	OutputPath string
	Warnings   []string
	Log        []execlog.Entry
}

// RunExtractModel executes the ExtractModel pipeline.
func RunExtractModel(ctx context.Context, deps Dependencies, req ExtractModelPipelineRequest) result.Result[ExtractModelPipelineResponse] {
	const pipelineName = "ExtractModel"
	log := execlog.New(deps.clockOrDefault())
	log.Record("request.received", "extract-model request received", nil)

	_, span := deps.Tracing.StartStage(ctx, "extraction", tracing.StageAttr(pipelineName, req.RequestID)...)
	data, extractErr := req.Extractor.Extract(ctx)
	tracing.EndStage(span, &extractErr)
	if extractErr != nil {
		rec := result.NewError("modelExtraction.failed", extractErr.Error())
		recordFailure(log, []result.ErrorRecord{rec})
		writeFinalLog(deps.FS, req.LogPath, log.Build())
		return result.Err[ExtractModelPipelineResponse](rec)
	}

	ingestResult := modelingest.Ingest(data)
	if !ingestResult.IsOK() {
		recordFailure(log, ingestResult.Errors())
		writeFinalLog(deps.FS, req.LogPath, log.Build())
		return result.Err[ExtractModelPipelineResponse](ingestResult.Errors()...)
	}
	ingested, _ := ingestResult.Value()
	log.Record("model.ingested", "extracted model validated", map[string]any{"counts.modules": len(ingested.Model.Modules)})

	if err := deps.FS.WriteFileAtomic(req.OutputPath, data, 0o644); err != nil {
		rec := result.NewError("modelExtraction.writeFailed", err.Error()).WithDetail("path", req.OutputPath)
		recordFailure(log, []result.ErrorRecord{rec})
		writeFinalLog(deps.FS, req.LogPath, log.Build())
		return result.Err[ExtractModelPipelineResponse](rec)
	}

	log.Record("pipeline.completed", "ExtractModel pipeline completed", map[string]any{"paths.output": req.OutputPath})
	entries := log.Build()
	writeFinalLog(deps.FS, req.LogPath, entries)

	return result.Ok(ExtractModelPipelineResponse{
		OutputPath: req.OutputPath,
		Warnings:   ingested.Warnings,
		Log:        entries,
	})
}
