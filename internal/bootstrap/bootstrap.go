// Package bootstrap implements the bootstrapper: it composes the
// model ingestor & filter with the profile provider into a
// single BootstrapContext, recording the request.received through
// profiling.capture.completed steps on the execution log.
package bootstrap

import (
	"context"

	"github.com/outsystems-tools/ddl-tightener/internal/clock"
	"github.com/outsystems-tools/ddl-tightener/internal/execlog"
	"github.com/outsystems-tools/ddl-tightener/internal/fsfacade"
	"github.com/outsystems-tools/ddl-tightener/internal/modelingest"
	"github.com/outsystems-tools/ddl-tightener/internal/profile"
	"github.com/outsystems-tools/ddl-tightener/internal/result"
	"github.com/outsystems-tools/ddl-tightener/internal/types"
)

// Context is the composed output of bootstrapping: the filtered model,
// any supplemental entities merged into it, the captured profile, and
// accumulated insights/warnings.
type Context struct {
	Model               types.Model
	SupplementalApplied bool
	Profile             types.ProfileSnapshot
	Insights            []string
	Warnings            []string
}

// ModelSource is where the logical model JSON is read from.
type ModelSource struct {
	Path string
}

// SupplementalSource is an optional extra model JSON merged into the base
// model after filtering.
type SupplementalSource struct {
	Enabled bool
	Path    string
}

// ProfileSource selects between the fixture and live profile provider
// variants. Exactly one of FixturePath or Live should be set.
type ProfileSource struct {
	FixturePath string
	Live        *LiveProfileSource
}

// LiveProfileSource configures the live provider when ProfileSource.Live
// is set.
type LiveProfileSource struct {
	Factory profile.ConnectionFactory
	Options profile.LiveOptions
}

// Request bundles every input the bootstrapper needs.
type Request struct {
	Model        ModelSource
	Supplemental SupplementalSource
	Profile      ProfileSource
	Filter       modelingest.FilterOptions
	Validation   modelingest.IngestOptions
}

// Run executes the bootstrap sequence, recording telemetry on log as it
// goes: request.received, model.ingested, model.filtered,
// supplemental.loaded, profiling.capture.start, profiling.capture.completed.
func Run(ctx context.Context, fs fsfacade.FS, c clock.Clock, log *execlog.Builder, req Request) result.Result[Context] {
	log.Record("request.received", "bootstrap request received", nil)

	data, err := fs.ReadFile(req.Model.Path)
	if err != nil {
		return result.Err[Context](result.NewError("model.notFound", err.Error()).WithDetail("path", req.Model.Path))
	}

	ingestResult := modelingest.IngestWithOptions(data, req.Validation)
	if !ingestResult.IsOK() {
		return result.Err[Context](ingestResult.Errors()...)
	}
	ingested, _ := ingestResult.Value()
	log.Record("model.ingested", "model parsed", map[string]any{"counts.modules": len(ingested.Model.Modules)})

	filterResult := modelingest.Filter(ingested.Model, req.Filter)
	if !filterResult.IsOK() {
		return result.Err[Context](filterResult.Errors()...)
	}
	filtered, _ := filterResult.Value()
	log.Record("model.filtered", "module/entity filter applied", map[string]any{"counts.modules": len(filtered.Modules)})

	warnings := append([]string(nil), ingested.Warnings...)
	supplementalApplied := false
	if req.Supplemental.Enabled {
		suppData, err := fs.ReadFile(req.Supplemental.Path)
		if err != nil {
			return result.Err[Context](result.NewError("model.supplemental.notFound", err.Error()).WithDetail("path", req.Supplemental.Path))
		}
		suppIngest := modelingest.Ingest(suppData)
		if !suppIngest.IsOK() {
			return result.Err[Context](suppIngest.Errors()...)
		}
		suppValue, _ := suppIngest.Value()
		filtered = modelingest.MergeSupplemental(filtered, suppValue.Model)
		warnings = append(warnings, suppValue.Warnings...)
		supplementalApplied = true
	}
	log.Record("supplemental.loaded", "supplemental entities merged", map[string]any{"flags.applied": supplementalApplied})

	log.Record("profiling.capture.start", "profile capture starting", nil)
	snapshot, profileWarnings, profErr := captureProfile(ctx, fs, c, req.Profile, filtered)
	if profErr != nil {
		return result.Err[Context](*profErr)
	}
	warnings = append(warnings, profileWarnings...)

	var warningExample any
	if len(profileWarnings) > 0 {
		warningExample = profileWarnings[0]
	}
	log.Record("profiling.capture.completed", "profile capture completed", map[string]any{
		"counts.warningCount":  len(profileWarnings),
		"flags.warningExample": warningExample,
	})

	return result.Ok(Context{
		Model:               filtered,
		SupplementalApplied: supplementalApplied,
		Profile:             snapshot,
		Insights:            nil,
		Warnings:            warnings,
	})
}

func captureProfile(ctx context.Context, fs fsfacade.FS, c clock.Clock, src ProfileSource, model types.Model) (types.ProfileSnapshot, []string, *result.ErrorRecord) {
	if src.Live != nil {
		out := profile.CaptureLive(ctx, src.Live.Factory, model, src.Live.Options, c)
		if !out.IsOK() {
			errs := out.Errors()
			return types.ProfileSnapshot{}, nil, &errs[0]
		}
		value, _ := out.Value()
		return value.Snapshot, value.Warnings, nil
	}
	out := profile.CaptureFixture(fs, src.FixturePath)
	if !out.IsOK() {
		errs := out.Errors()
		return types.ProfileSnapshot{}, nil, &errs[0]
	}
	value, _ := out.Value()
	return value.Snapshot, value.Warnings, nil
}
