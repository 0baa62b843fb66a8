package pipeline

import (
	"context"

	"github.com/outsystems-tools/ddl-tightener/internal/bootstrap"
	"github.com/outsystems-tools/ddl-tightener/internal/execlog"
	"github.com/outsystems-tools/ddl-tightener/internal/policy"
	"github.com/outsystems-tools/ddl-tightener/internal/relational"
	"github.com/outsystems-tools/ddl-tightener/internal/result"
	"github.com/outsystems-tools/ddl-tightener/internal/tracing"
	"github.com/outsystems-tools/ddl-tightener/internal/typemapping"
	"github.com/outsystems-tools/ddl-tightener/internal/types"
)

// DmmComparePipelineRequest runs bootstrap + policy + relational
// projection, then hands the projected model and a reference script path
// to an injected ReferenceScriptComparer, the external SQL-text
// comparison collaborator.
type DmmComparePipelineRequest struct {
	RequestID           string
	Bootstrap           bootstrap.Request
	Policy              policy.Options
	TypeMapping         typemapping.Policy
	Relational          relational.BuildOptions
	Comparer            ReferenceScriptComparer
	ReferenceScriptPath string
	LogPath             string
}

// DmmComparePipelineResponse carries the diff result plus warnings and
// the execution log.
type DmmComparePipelineResponse struct {
	Result   types.DmmCompareResult
	Warnings []string
	Log      []execlog.Entry
}

// RunDmmCompare executes the DmmCompare pipeline.
func RunDmmCompare(ctx context.Context, deps Dependencies, req DmmComparePipelineRequest) result.Result[DmmComparePipelineResponse] {
	const pipelineName = "DmmCompare"
	log := execlog.New(deps.clockOrDefault())

	analysisResult := runAnalysis(ctx, deps, log, pipelineName, analysisRequest{
		RequestID: req.RequestID, Bootstrap: req.Bootstrap, Policy: req.Policy,
	})
	outcome, ok := analysisResult.Value()
	if !ok {
		recordFailure(log, analysisResult.Errors())
		writeFinalLog(deps.FS, req.LogPath, log.Build())
		return result.Err[DmmComparePipelineResponse](analysisResult.Errors()...)
	}

	relModelResult := buildRelationalModel(ctx, deps, log, pipelineName, req.RequestID,
		outcome.Bootstrap.Model, outcome.Policy.Decisions, req.TypeMapping, req.Relational)
	relModel, ok := relModelResult.Value()
	if !ok {
		recordFailure(log, relModelResult.Errors())
		writeFinalLog(deps.FS, req.LogPath, log.Build())
		return result.Err[DmmComparePipelineResponse](relModelResult.Errors()...)
	}

	_, span := deps.Tracing.StartStage(ctx, "dmmCompare", tracing.StageAttr(pipelineName, req.RequestID)...)
	diff, compareErr := req.Comparer.Compare(ctx, relModel, req.ReferenceScriptPath)
	tracing.EndStage(span, &compareErr)
	if compareErr != nil {
		rec := result.NewError("dmmCompare.failed", compareErr.Error())
		recordFailure(log, []result.ErrorRecord{rec})
		writeFinalLog(deps.FS, req.LogPath, log.Build())
		return result.Err[DmmComparePipelineResponse](rec)
	}

	log.Record("dmmCompare.completed", "reference script comparison completed", map[string]any{
		"flags.isMatch":             diff.IsMatch,
		"counts.modelDifferences": len(diff.ModelDifferences),
		"counts.ssdtDifferences":  len(diff.SsdtDifferences),
	})
	log.Record("pipeline.completed", "DmmCompare pipeline completed", map[string]any{"flags.isMatch": diff.IsMatch})
	entries := log.Build()
	writeFinalLog(deps.FS, req.LogPath, entries)

	return result.Ok(DmmComparePipelineResponse{
		Result:   diff,
		Warnings: outcome.Bootstrap.Warnings,
		Log:      entries,
	})
}
