package pipeline

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/outsystems-tools/ddl-tightener/internal/bootstrap"
	"github.com/outsystems-tools/ddl-tightener/internal/emit"
	"github.com/outsystems-tools/ddl-tightener/internal/evidencecache"
	"github.com/outsystems-tools/ddl-tightener/internal/execlog"
	"github.com/outsystems-tools/ddl-tightener/internal/policy"
	"github.com/outsystems-tools/ddl-tightener/internal/relational"
	"github.com/outsystems-tools/ddl-tightener/internal/result"
	"github.com/outsystems-tools/ddl-tightener/internal/tracing"
	"github.com/outsystems-tools/ddl-tightener/internal/typemapping"
	"github.com/outsystems-tools/ddl-tightener/internal/types"
)

// BuildSsdtRequest is the handler-level input for the BuildSsdt pipeline:
// a resolved input-path set (via Bootstrap), the
// tightening options block, the relational-projection and emission
// options, and optional evidence-cache and seed-provider wiring.
type BuildSsdtRequest struct {
	RequestID   string
	Bootstrap   bootstrap.Request
	Policy      policy.Options
	TypeMapping typemapping.Policy
	Relational  relational.BuildOptions
	Emission    emit.Options
	Cache       *CacheOptions
	Seed        SeedProvider
	LogPath     string
}

// BuildSsdtResponse carries the manifest, every artifact path, warnings,
// and the execution log.
type BuildSsdtResponse struct {
	Manifest       emit.Output
	SeedPaths      []string
	DecisionReport types.PolicyDecisionReport
	Opportunities  types.OpportunitiesReport
	Cache          *types.CacheResult
	Warnings       []string
	Log            []execlog.Entry
}

// RunBuildSsdt executes the full analysis-decision-emission pipeline:
// bootstrap -> policy -> relational projection -> emission -> [seeds] ->
// [evidence cache] -> log packaging.
func RunBuildSsdt(ctx context.Context, deps Dependencies, req BuildSsdtRequest) result.Result[BuildSsdtResponse] {
	const pipelineName = "BuildSsdt"
	log := execlog.New(deps.clockOrDefault())
	deps.infof("pipeline starting", map[string]any{"pipeline": pipelineName, "requestId": req.RequestID})

	if req.Emission.ModuleParallelism <= 0 {
		req.Emission.ModuleParallelism = DefaultEmissionParallelism
	}
	if req.LogPath == "" && req.Emission.OutputDir != "" {
		req.LogPath = filepath.Join(req.Emission.OutputDir, "pipeline-log.json")
	}

	analysisResult := runAnalysis(ctx, deps, log, pipelineName, analysisRequest{
		RequestID: req.RequestID, Bootstrap: req.Bootstrap, Policy: req.Policy,
	})
	outcome, ok := analysisResult.Value()
	if !ok {
		recordFailure(log, analysisResult.Errors())
		writeFinalLog(deps.FS, req.LogPath, log.Build())
		return result.Err[BuildSsdtResponse](analysisResult.Errors()...)
	}

	relModelResult := buildRelationalModel(ctx, deps, log, pipelineName, req.RequestID,
		outcome.Bootstrap.Model, outcome.Policy.Decisions, req.TypeMapping, req.Relational)
	relModel, ok := relModelResult.Value()
	if !ok {
		recordFailure(log, relModelResult.Errors())
		writeFinalLog(deps.FS, req.LogPath, log.Build())
		return result.Err[BuildSsdtResponse](relModelResult.Errors()...)
	}

	fp, fpErr := emissionFingerprint(relModel)
	if fpErr != nil {
		recordFailure(log, []result.ErrorRecord{*fpErr})
		writeFinalLog(deps.FS, req.LogPath, log.Build())
		return result.Err[BuildSsdtResponse](*fpErr)
	}

	decisionReport := buildDecisionReport(outcome.Bootstrap.Model, outcome.Policy.Decisions)

	_, emitSpan := deps.Tracing.StartStage(ctx, "emission", tracing.StageAttr(pipelineName, req.RequestID)...)
	emitResult := emit.Emit(deps.FS, relModel, decisionReport, outcome.Policy.Opportunities, fp, req.Emission)
	var emitErr error
	if !emitResult.IsOK() {
		emitErr = emitResult.Errors()[0]
	}
	tracing.EndStage(emitSpan, &emitErr)
	if !emitResult.IsOK() {
		recordFailure(log, emitResult.Errors())
		writeFinalLog(deps.FS, req.LogPath, log.Build())
		return result.Err[BuildSsdtResponse](emitResult.Errors()...)
	}
	manifest, _ := emitResult.Value()
	log.Record("ssdt.emission.completed", "relational model emitted", map[string]any{"counts.tables": len(manifest.TableFiles)})
	log.Record("policy.log.persisted", "decision and opportunities reports persisted", map[string]any{
		"paths.decisions":     manifest.DecisionsPath,
		"paths.opportunities": manifest.OpportunityPath,
	})

	var seedPaths []string
	if req.Seed != nil {
		seeds, err := req.Seed.GenerateSeeds(ctx, relModel)
		if err != nil {
			rec := result.NewError("emission.seed.failed", err.Error())
			recordFailure(log, []result.ErrorRecord{rec})
			writeFinalLog(deps.FS, req.LogPath, log.Build())
			return result.Err[BuildSsdtResponse](rec)
		}
		seedResult := emit.EmitSeeds(deps.FS, seeds, req.Emission.OutputDir)
		if !seedResult.IsOK() {
			recordFailure(log, seedResult.Errors())
			writeFinalLog(deps.FS, req.LogPath, log.Build())
			return result.Err[BuildSsdtResponse](seedResult.Errors()...)
		}
		seedPaths, _ = seedResult.Value()
		log.Record("staticData.seed.generated", "static-entity seeds emitted", map[string]any{"counts.seeds": len(seedPaths)})
	} else {
		log.Record("staticData.seed.skipped", "no seed provider configured", nil)
	}

	var cacheInputs evidencecache.Inputs
	if req.Cache != nil {
		cacheInputs = buildSsdtCacheInputs(req, manifest.Fingerprint)
	}
	cacheResult, cacheErr := consultCache(ctx, deps, log, pipelineName, req.RequestID, req.Cache, cacheInputs)
	if cacheErr != nil {
		recordFailure(log, []result.ErrorRecord{*cacheErr})
		writeFinalLog(deps.FS, req.LogPath, log.Build())
		return result.Err[BuildSsdtResponse](*cacheErr)
	}
	if deps.OpLog != nil && cacheResult != nil {
		deps.OpLog = deps.OpLog.WithCacheKey(cacheResult.Manifest.Key)
	}

	log.Record("pipeline.completed", "BuildSsdt pipeline completed", map[string]any{"counts.warnings": len(outcome.Bootstrap.Warnings)})
	entries := log.Build()
	writeFinalLog(deps.FS, req.LogPath, entries)
	deps.infof("pipeline completed", map[string]any{"pipeline": pipelineName, "requestId": req.RequestID})

	return result.Ok(BuildSsdtResponse{
		Manifest:       manifest,
		SeedPaths:      seedPaths,
		DecisionReport: decisionReport,
		Opportunities:  outcome.Policy.Opportunities,
		Cache:          cacheResult,
		Warnings:       outcome.Bootstrap.Warnings,
		Log:            entries,
	})
}

// buildSsdtCacheInputs derives the cache key inputs for a BuildSsdt run:
// the model/supplemental/profile file paths (a disabled supplemental source
// or a profile without a fixture path adds no entry; an entry with an empty
// path contributes the cache package's own sentinel), the normalized module selection, and any
// caller-supplied metadata plus the emission fingerprint so a changed
// output always busts the cache too.
func buildSsdtCacheInputs(req BuildSsdtRequest, fp string) evidencecache.Inputs {
	metadata := map[string]string{}
	for k, v := range req.Cache.Metadata {
		metadata[k] = v
	}
	metadata["emission.fingerprint"] = fp

	files := []evidencecache.InputFile{
		{Kind: "model", Path: req.Bootstrap.Model.Path},
	}
	if req.Bootstrap.Supplemental.Enabled {
		files = append(files, evidencecache.InputFile{Kind: "supplemental", Path: req.Bootstrap.Supplemental.Path})
	}
	if req.Bootstrap.Profile.FixturePath != "" {
		files = append(files, evidencecache.InputFile{Kind: "profile", Path: req.Bootstrap.Profile.FixturePath})
	}

	return evidencecache.Inputs{
		CommandName:     "BuildSsdt",
		Files:           files,
		ModuleSelection: evidencecache.NormalizeModuleSelection(req.Bootstrap.Filter.Modules),
		Metadata:        metadata,
	}
}

// buildDecisionReport rolls decisions up by module and outcome-qualified
// kind for the persisted policy-decisions.json. Module
// attribution comes from the coordinate's schema+table, matched back to
// the entity that declared it.
func buildDecisionReport(model types.Model, decisions types.PolicyDecisionSet) types.PolicyDecisionReport {
	moduleByCoord := map[string]string{}
	for _, module := range model.Modules {
		for _, entity := range module.Entities {
			moduleByCoord[entity.Schema+"."+entity.PhysicalName] = module.Name
		}
	}

	counts := map[[2]string]int{}
	bump := func(coord types.Coordinate, kind string) {
		module := moduleByCoord[coord.Schema+"."+coord.Table]
		counts[[2]string{module, kind}]++
	}
	for _, d := range decisions.Nullability {
		bump(d.Coordinate, "nullability."+string(d.Outcome))
	}
	for _, d := range decisions.ForeignKey {
		bump(d.Coordinate, "foreignKey."+string(d.Outcome))
	}
	for _, d := range decisions.UniqueIndex {
		bump(d.Coordinate, "uniqueIndex."+string(d.Outcome))
	}

	rollup := make([]types.ModuleKindCount, 0, len(counts))
	for key, count := range counts {
		rollup = append(rollup, types.ModuleKindCount{Module: key[0], Kind: key[1], Count: count})
	}
	sort.Slice(rollup, func(i, j int) bool {
		if rollup[i].Module != rollup[j].Module {
			return rollup[i].Module < rollup[j].Module
		}
		return rollup[i].Kind < rollup[j].Kind
	})

	return types.PolicyDecisionReport{Counts: rollup, Decisions: decisions}
}
