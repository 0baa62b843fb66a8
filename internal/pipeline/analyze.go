package pipeline

import (
	"context"

	"github.com/outsystems-tools/ddl-tightener/internal/bootstrap"
	"github.com/outsystems-tools/ddl-tightener/internal/execlog"
	"github.com/outsystems-tools/ddl-tightener/internal/policy"
	"github.com/outsystems-tools/ddl-tightener/internal/result"
	"github.com/outsystems-tools/ddl-tightener/internal/types"
)

// TighteningAnalysisPipelineRequest runs bootstrap + policy without
// projecting or emitting anything: a dry-run over the decisions a
// BuildSsdt run would make.
type TighteningAnalysisPipelineRequest struct {
	RequestID string
	Bootstrap bootstrap.Request
	Policy    policy.Options
	LogPath   string
}

// TighteningAnalysisPipelineResponse carries the decision and
// opportunities reports plus warnings and the execution log.
type TighteningAnalysisPipelineResponse struct {
	DecisionReport types.PolicyDecisionReport
	Opportunities  types.OpportunitiesReport
	Warnings       []string
	Log            []execlog.Entry
}

// RunAnalyzeTightening executes the AnalyzeTightening pipeline.
func RunAnalyzeTightening(ctx context.Context, deps Dependencies, req TighteningAnalysisPipelineRequest) result.Result[TighteningAnalysisPipelineResponse] {
	const pipelineName = "AnalyzeTightening"
	log := execlog.New(deps.clockOrDefault())

	analysisResult := runAnalysis(ctx, deps, log, pipelineName, analysisRequest{
		RequestID: req.RequestID, Bootstrap: req.Bootstrap, Policy: req.Policy,
	})
	outcome, ok := analysisResult.Value()
	if !ok {
		recordFailure(log, analysisResult.Errors())
		writeFinalLog(deps.FS, req.LogPath, log.Build())
		return result.Err[TighteningAnalysisPipelineResponse](analysisResult.Errors()...)
	}

	decisionReport := buildDecisionReport(outcome.Bootstrap.Model, outcome.Policy.Decisions)
	log.Record("pipeline.completed", "AnalyzeTightening pipeline completed", map[string]any{"counts.warnings": len(outcome.Bootstrap.Warnings)})
	entries := log.Build()
	writeFinalLog(deps.FS, req.LogPath, entries)

	return result.Ok(TighteningAnalysisPipelineResponse{
		DecisionReport: decisionReport,
		Opportunities:  outcome.Policy.Opportunities,
		Warnings:       outcome.Bootstrap.Warnings,
		Log:            entries,
	})
}
