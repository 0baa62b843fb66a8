// Package pipeline implements the pipeline orchestrator: it wires the
// bootstrapper, tightening policy, relational model factory, artifact
// emitter, and evidence cache as typed stages for each of the five named
// pipelines: BuildSsdt, DmmCompare, ExtractModel, CaptureProfile,
// AnalyzeTightening. Step ordering is enforced by the shape of the state
// threaded between stages, not by a runtime scheduler; a failed step
// aborts the remainder but always records a final pipeline.failed entry.
package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/outsystems-tools/ddl-tightener/internal/bootstrap"
	"github.com/outsystems-tools/ddl-tightener/internal/clock"
	"github.com/outsystems-tools/ddl-tightener/internal/evidencecache"
	"github.com/outsystems-tools/ddl-tightener/internal/execlog"
	"github.com/outsystems-tools/ddl-tightener/internal/fingerprint"
	"github.com/outsystems-tools/ddl-tightener/internal/fsfacade"
	"github.com/outsystems-tools/ddl-tightener/internal/oplog"
	"github.com/outsystems-tools/ddl-tightener/internal/policy"
	"github.com/outsystems-tools/ddl-tightener/internal/relational"
	"github.com/outsystems-tools/ddl-tightener/internal/result"
	"github.com/outsystems-tools/ddl-tightener/internal/tracing"
	"github.com/outsystems-tools/ddl-tightener/internal/typemapping"
	"github.com/outsystems-tools/ddl-tightener/internal/types"
)

// DefaultEmissionParallelism is the module parallelism used by every
// pipeline's emission stage except profile capture: deterministic,
// CPU-light file writes default to sequential.
const DefaultEmissionParallelism = 1

// DefaultProfileParallelism is the worker count used by the
// profile-capture pipeline: I/O-bound database round trips default to
// four concurrent workers.
const DefaultProfileParallelism = 4

// CacheOptions configures whether and how the evidence cache
// participates in a pipeline run. A nil *CacheOptions on a request means
// the run skips the cache stage entirely.
type CacheOptions struct {
	Root     string
	Refresh  bool
	TTL      *time.Duration
	Metadata map[string]string
	NoLock   bool
}

// SeedProvider is the external collaborator that synthesizes seed rows
// for every static entity in the projected relational model. This package
// only decides when to call it and renders its output through
// emit.EmitSeeds.
type SeedProvider interface {
	GenerateSeeds(ctx context.Context, model types.RelationalModel) ([]types.StaticEntitySeed, error)
}

// ModelExtractor is the external collaborator that reads a live catalog
// and produces model JSON ready for modelingest.Ingest.
type ModelExtractor interface {
	Extract(ctx context.Context) ([]byte, error)
}

// ReferenceScriptComparer is the external collaborator that diffs a
// projected relational model against a previously captured reference SQL
// script.
type ReferenceScriptComparer interface {
	Compare(ctx context.Context, model types.RelationalModel, referenceScriptPath string) (types.DmmCompareResult, error)
}

// Dependencies are the facades every pipeline run needs, injected so
// callers can substitute test doubles.
type Dependencies struct {
	FS      fsfacade.FS
	Clock   clock.Clock
	Tracing tracing.Options
	OpLog   *oplog.Logger
}

func (d Dependencies) clockOrDefault() clock.Clock {
	if d.Clock != nil {
		return d.Clock
	}
	return clock.System{}
}

func (d Dependencies) infof(message string, fields map[string]any) {
	if d.OpLog != nil {
		d.OpLog.Info(message, fields)
	}
}

func (d Dependencies) errorf(message string, fields map[string]any) {
	if d.OpLog != nil {
		d.OpLog.Error(message, fields)
	}
}

// analysisRequest bundles the inputs shared by every pipeline that needs a
// bootstrap + policy pass (BuildSsdt, AnalyzeTightening, DmmCompare).
type analysisRequest struct {
	RequestID string
	Bootstrap bootstrap.Request
	Policy    policy.Options
}

// analysisOutcome is what a bootstrap+policy pass produces before any
// pipeline-specific branching (relational projection, diffing, ...).
type analysisOutcome struct {
	Bootstrap bootstrap.Context
	Policy    policy.Output
}

// runAnalysis executes bootstrap then policy evaluation, recording
// policy.decisions.synthesized on success. Shared by every pipeline that
// needs tightening decisions.
func runAnalysis(ctx context.Context, deps Dependencies, log *execlog.Builder, pipelineName string, req analysisRequest) result.Result[analysisOutcome] {
	ctx, span := deps.Tracing.StartStage(ctx, "bootstrap", tracing.StageAttr(pipelineName, req.RequestID)...)
	bootstrapResult := bootstrap.Run(ctx, deps.FS, deps.clockOrDefault(), log, req.Bootstrap)
	var bootstrapErr error
	if !bootstrapResult.IsOK() {
		bootstrapErr = bootstrapResult.Errors()[0]
	}
	tracing.EndStage(span, &bootstrapErr)
	if !bootstrapResult.IsOK() {
		deps.errorf("bootstrap failed", map[string]any{"pipeline": pipelineName})
		return result.Err[analysisOutcome](bootstrapResult.Errors()...)
	}
	bootstrapCtx, _ := bootstrapResult.Value()

	_, policySpan := deps.Tracing.StartStage(ctx, "policy", tracing.StageAttr(pipelineName, req.RequestID)...)
	policyResult := policy.Evaluate(bootstrapCtx.Model, bootstrapCtx.Profile, req.Policy)
	var policyErr error
	if !policyResult.IsOK() {
		policyErr = policyResult.Errors()[0]
	}
	tracing.EndStage(policySpan, &policyErr)
	if !policyResult.IsOK() {
		deps.errorf("policy evaluation failed", map[string]any{"pipeline": pipelineName})
		return result.Err[analysisOutcome](policyResult.Errors()...)
	}
	policyOutput, _ := policyResult.Value()
	log.Record("policy.decisions.synthesized", "tightening decisions synthesized", map[string]any{
		"counts.nullability":  len(policyOutput.Decisions.Nullability),
		"counts.foreignKey":   len(policyOutput.Decisions.ForeignKey),
		"counts.uniqueIndex":  len(policyOutput.Decisions.UniqueIndex),
		"counts.diagnostics":  len(policyOutput.Decisions.Diagnostics),
		"counts.opportunities": len(policyOutput.Opportunities.Opportunities),
	})

	return result.Ok(analysisOutcome{Bootstrap: bootstrapCtx, Policy: policyOutput})
}

// buildRelationalModel runs the relational model factory and
// records smo.model.created, shared by BuildSsdt and DmmCompare.
func buildRelationalModel(ctx context.Context, deps Dependencies, log *execlog.Builder, pipelineName, requestID string, model types.Model, decisions types.PolicyDecisionSet, typePolicy typemapping.Policy, opts relational.BuildOptions) result.Result[types.RelationalModel] {
	_, span := deps.Tracing.StartStage(ctx, "relationalProjection", tracing.StageAttr(pipelineName, requestID)...)
	out := relational.Build(model, decisions, typePolicy, opts)
	var err error
	if !out.IsOK() {
		err = out.Errors()[0]
	}
	tracing.EndStage(span, &err)
	if !out.IsOK() {
		return out
	}
	relModel, _ := out.Value()
	log.Record("smo.model.created", "relational model projected", map[string]any{"counts.tables": len(relModel.Tables)})
	return out
}

// writeFinalLog flushes log to logPath, if set. Failures to persist the
// operator-facing log copy never fail the pipeline.
func writeFinalLog(fs fsfacade.FS, logPath string, entries []execlog.Entry) {
	if logPath == "" {
		return
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return
	}
	_ = fs.WriteFileAtomic(logPath, append(data, '\n'), 0o644)
}

func recordFailure(log *execlog.Builder, errs []result.ErrorRecord) {
	log.Record("pipeline.failed", "pipeline aborted", map[string]any{
		"counts.errors": len(errs),
		"flags.firstErrorCode": firstCode(errs),
	})
}

func firstCode(errs []result.ErrorRecord) string {
	if len(errs) == 0 {
		return ""
	}
	return errs[0].Code
}

// consultCache runs the evidence cache consult step, recording the
// matching log entry for the decision reached.
func consultCache(ctx context.Context, deps Dependencies, log *execlog.Builder, pipelineName, requestID string, opts *CacheOptions, inputs evidencecache.Inputs) (*types.CacheResult, *result.ErrorRecord) {
	if opts == nil {
		return nil, nil
	}
	ctx, span := deps.Tracing.StartStage(ctx, "cache", tracing.StageAttr(pipelineName, requestID)...)

	cache := evidencecache.New(deps.FS, deps.clockOrDefault())
	out := cache.Consult(ctx, evidencecache.Request{
		Root:    opts.Root,
		Inputs:  inputs,
		Refresh: opts.Refresh,
		TTL:     opts.TTL,
		NoLock:  opts.NoLock,
	})
	if !out.IsOK() {
		err := out.Errors()[0]
		var asErr error = err
		tracing.EndStage(span, &asErr)
		return nil, &err
	}
	cacheResult, _ := out.Value()
	span.SetAttributes(tracing.CacheDecisionAttr(string(cacheResult.Decision)))
	tracing.EndStage(span, nil)

	step := "evidence.cache.persisted"
	if cacheResult.Decision == types.CacheReused {
		step = "evidence.cache.reused"
	}
	log.Record(step, "evidence cache consulted", map[string]any{
		"flags.decision": string(cacheResult.Decision),
		"paths.directory": cacheResult.CacheDirectory,
	})
	return &cacheResult, nil
}

// emissionFingerprint computes the canonical fingerprint embedded in the
// manifest: the canonical-JSON hash of the projected relational model,
// computed by the orchestrator (not the emitter) so the emitter stays a
// pure writer.
func emissionFingerprint(model types.RelationalModel) (string, *result.ErrorRecord) {
	data, err := json.Marshal(model)
	if err != nil {
		rec := result.NewError("emission.fingerprint.failed", err.Error())
		return "", &rec
	}
	fp, err := fingerprint.FingerprintJSON(data)
	if err != nil {
		rec := result.NewError("emission.fingerprint.failed", err.Error())
		return "", &rec
	}
	return fp, nil
}
