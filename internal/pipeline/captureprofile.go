package pipeline

import (
	"context"
	"encoding/json"

	"github.com/outsystems-tools/ddl-tightener/internal/execlog"
	"github.com/outsystems-tools/ddl-tightener/internal/fsfacade"
	"github.com/outsystems-tools/ddl-tightener/internal/modelingest"
	"github.com/outsystems-tools/ddl-tightener/internal/profile"
	"github.com/outsystems-tools/ddl-tightener/internal/result"
	"github.com/outsystems-tools/ddl-tightener/internal/tracing"
	"github.com/outsystems-tools/ddl-tightener/internal/types"
)

// CaptureProfilePipelineRequest runs the profile provider standalone
// and writes the resulting snapshot to disk, for callers that want to
// capture evidence once and feed it into later BuildSsdt runs as a
// fixture.
type CaptureProfilePipelineRequest struct {
	RequestID  string
	ModelPath  string
	Filter     modelingest.FilterOptions
	Live       *CaptureProfileLiveSource
	OutputPath string
	LogPath    string
}

// CaptureProfileLiveSource configures the live profile provider variant.
// Its parallelism defaults to DefaultProfileParallelism, not
// DefaultEmissionParallelism.
type CaptureProfileLiveSource struct {
	Factory     profile.ConnectionFactory
	Parallelism int
}

// CaptureProfilePipelineResponse carries the captured snapshot, the path
// it was written to, and any coverage-anomaly-driven warnings.
type CaptureProfilePipelineResponse struct {
	Snapshot   types.ProfileSnapshot
	OutputPath string
	Warnings   []string
	Log        []execlog.Entry
}

// RunCaptureProfile executes the CaptureProfile pipeline.
func RunCaptureProfile(ctx context.Context, deps Dependencies, req CaptureProfilePipelineRequest) result.Result[CaptureProfilePipelineResponse] {
	const pipelineName = "CaptureProfile"
	log := execlog.New(deps.clockOrDefault())
	log.Record("request.received", "capture-profile request received", nil)

	data, err := deps.FS.ReadFile(req.ModelPath)
	if err != nil {
		rec := result.NewError("model.notFound", err.Error()).WithDetail("path", req.ModelPath)
		recordFailure(log, []result.ErrorRecord{rec})
		writeFinalLog(deps.FS, req.LogPath, log.Build())
		return result.Err[CaptureProfilePipelineResponse](rec)
	}
	ingestResult := modelingest.Ingest(data)
	if !ingestResult.IsOK() {
		recordFailure(log, ingestResult.Errors())
		writeFinalLog(deps.FS, req.LogPath, log.Build())
		return result.Err[CaptureProfilePipelineResponse](ingestResult.Errors()...)
	}
	ingested, _ := ingestResult.Value()

	filterResult := modelingest.Filter(ingested.Model, req.Filter)
	if !filterResult.IsOK() {
		recordFailure(log, filterResult.Errors())
		writeFinalLog(deps.FS, req.LogPath, log.Build())
		return result.Err[CaptureProfilePipelineResponse](filterResult.Errors()...)
	}
	filtered, _ := filterResult.Value()

	_, span := deps.Tracing.StartStage(ctx, "profileCapture", tracing.StageAttr(pipelineName, req.RequestID)...)
	log.Record("profiling.capture.start", "profile capture starting", nil)

	parallelism := DefaultProfileParallelism
	if req.Live != nil && req.Live.Parallelism > 0 {
		parallelism = req.Live.Parallelism
	}
	opts := profile.DefaultLiveOptions()
	opts.Parallelism = parallelism

	var captureResult result.Result[profile.CaptureOutput]
	if req.Live != nil {
		captureResult = profile.CaptureLive(ctx, req.Live.Factory, filtered, opts, deps.clockOrDefault())
	} else {
		rec := result.NewError("profile.options.invalid", "capture-profile pipeline requires a live connection factory")
		captureResult = result.Err[profile.CaptureOutput](rec)
	}

	var captureErr error
	if !captureResult.IsOK() {
		captureErr = captureResult.Errors()[0]
	}
	tracing.EndStage(span, &captureErr)
	if !captureResult.IsOK() {
		recordFailure(log, captureResult.Errors())
		writeFinalLog(deps.FS, req.LogPath, log.Build())
		return result.Err[CaptureProfilePipelineResponse](captureResult.Errors()...)
	}
	captured, _ := captureResult.Value()

	var warningExample any
	if len(captured.Warnings) > 0 {
		warningExample = captured.Warnings[0]
	}
	log.Record("profiling.capture.completed", "profile capture completed", map[string]any{
		"counts.warningCount":  len(captured.Warnings),
		"flags.warningExample": warningExample,
	})

	if err := writeSnapshot(deps.FS, req.OutputPath, captured.Snapshot); err != nil {
		recordFailure(log, []result.ErrorRecord{*err})
		writeFinalLog(deps.FS, req.LogPath, log.Build())
		return result.Err[CaptureProfilePipelineResponse](*err)
	}

	log.Record("pipeline.completed", "CaptureProfile pipeline completed", map[string]any{"paths.output": req.OutputPath})
	entries := log.Build()
	writeFinalLog(deps.FS, req.LogPath, entries)

	return result.Ok(CaptureProfilePipelineResponse{
		Snapshot:   captured.Snapshot,
		OutputPath: req.OutputPath,
		Warnings:   captured.Warnings,
		Log:        entries,
	})
}

func writeSnapshot(fs fsfacade.FS, path string, snapshot types.ProfileSnapshot) *result.ErrorRecord {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		rec := result.NewError("profile.snapshot.encodeFailed", err.Error())
		return &rec
	}
	if err := fs.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		rec := result.NewError("profile.snapshot.writeFailed", err.Error()).WithDetail("path", path)
		return &rec
	}
	return nil
}
