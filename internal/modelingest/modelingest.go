// Package modelingest implements the model ingestor & filter: parses
// the logical model JSON, runs a lightweight structural validator that
// reports issues as non-fatal warnings, applies the module/entity filter,
// and merges supplemental entities.
//
// Uses a JSON-first ingestion style generalized to a single structural
// document, with the result-or-errors discipline from internal/result.
package modelingest

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/outsystems-tools/ddl-tightener/internal/result"
	"github.com/outsystems-tools/ddl-tightener/internal/types"
)

// maxSchemaIssueExamples bounds how many individual schema-validation
// issue strings are retained; beyond this only the summary count grows.
const maxSchemaIssueExamples = 10

// IngestResult is the parsed model plus any non-fatal warnings the
// structural validator produced.
type IngestResult struct {
	Model    types.Model
	Warnings []string
}

// IngestOptions relaxes structural checks for named modules
// (case-insensitive), for lossy exports where a missing schema or primary
// key is a known property of the source rather than a defect.
type IngestOptions struct {
	AllowMissingSchema     []string
	AllowMissingPrimaryKey []string
}

func (o IngestOptions) allowsMissingSchema(module string) bool {
	return containsFold(o.AllowMissingSchema, module)
}

func (o IngestOptions) allowsMissingPrimaryKey(module string) bool {
	return containsFold(o.AllowMissingPrimaryKey, module)
}

func containsFold(names []string, want string) bool {
	for _, n := range names {
		if strings.EqualFold(n, want) {
			return true
		}
	}
	return false
}

// Ingest parses model JSON bytes with no validation overrides. A JSON
// syntax error is fatal (`model.malformed`); structural issues below the
// syntax level (missing physical names, unreferenced index columns, and
// similar) are collected as warnings, capped at maxSchemaIssueExamples
// examples, and never block ingestion.
func Ingest(data []byte) result.Result[IngestResult] {
	return IngestWithOptions(data, IngestOptions{})
}

// IngestWithOptions is Ingest with per-module validation overrides
// suppressing the warnings the overrides name.
func IngestWithOptions(data []byte, opts IngestOptions) result.Result[IngestResult] {
	var model types.Model
	if err := json.Unmarshal(data, &model); err != nil {
		return result.Err[IngestResult](result.NewError("model.malformed", fmt.Sprintf("model JSON is malformed: %v", err)))
	}

	issues := validateStructure(model, opts)
	warnings := summarizeIssues(issues)

	return result.Ok(IngestResult{Model: model, Warnings: warnings})
}

func summarizeIssues(issues []string) []string {
	if len(issues) == 0 {
		return nil
	}
	warnings := []string{fmt.Sprintf("Schema validation encountered %d issue(s). Proceeding with best-effort import.", len(issues))}
	limit := len(issues)
	if limit > maxSchemaIssueExamples {
		limit = maxSchemaIssueExamples
	}
	warnings = append(warnings, issues[:limit]...)
	return warnings
}

// validateStructure performs the lightweight, non-fatal schema check: it
// never fails ingestion, only reports what it found, minus anything the
// per-module overrides suppress.
func validateStructure(model types.Model, opts IngestOptions) []string {
	var issues []string
	for _, module := range model.Modules {
		if strings.TrimSpace(module.Name) == "" {
			issues = append(issues, "module has an empty name")
			continue
		}
		for _, entity := range module.Entities {
			coord := module.Name + "." + entity.Name
			if strings.TrimSpace(entity.PhysicalName) == "" {
				issues = append(issues, fmt.Sprintf("entity %s has no physical table name", coord))
			}
			if strings.TrimSpace(entity.Schema) == "" && !opts.allowsMissingSchema(module.Name) {
				issues = append(issues, fmt.Sprintf("entity %s has no db schema", coord))
			}
			columnNames := make(map[string]bool, len(entity.Attributes))
			hasIdentifier := false
			for _, attr := range entity.Attributes {
				columnNames[attr.PhysicalName] = true
				if attr.IsIdentifier {
					hasIdentifier = true
				}
				if strings.TrimSpace(attr.DataType) == "" {
					issues = append(issues, fmt.Sprintf("attribute %s.%s has no declared data type", coord, attr.Name))
				}
			}
			if !hasIdentifier && len(entity.Attributes) > 0 && !opts.allowsMissingPrimaryKey(module.Name) {
				issues = append(issues, fmt.Sprintf("entity %s has no identifier attribute", coord))
			}
			for _, idx := range entity.Indexes {
				for _, col := range idx.Columns {
					if !columnNames[col] {
						issues = append(issues, fmt.Sprintf("index %s on %s references unknown column %s", idx.Name, coord, col))
					}
				}
			}
		}
	}
	return issues
}

// FilterOptions selects which modules and entities survive ingestion.
type FilterOptions struct {
	// Modules, if non-empty, restricts output to these module names
	// (case-insensitive). Empty means "all modules subject to the
	// IncludeSystem/IncludeInactive flags below."
	Modules []string
	// EntityAllowlist restricts a named module's entities to this set
	// (case-insensitive, keyed by module name). A module absent from this
	// map keeps all its entities.
	EntityAllowlist map[string][]string
	IncludeSystem   bool
	IncludeInactive bool
}

// Filter applies the module/entity filter to model. Missing requested
// modules or entities fail with `modelFilter.modules.missing` /
// `modelFilter.entities.missing`, one error per missing name, accumulated
// rather than short-circuited.
func Filter(model types.Model, opts FilterOptions) result.Result[types.Model] {
	var errs []result.ErrorRecord

	byLowerName := make(map[string]types.Module, len(model.Modules))
	for _, m := range model.Modules {
		byLowerName[strings.ToLower(m.Name)] = m
	}

	var selectedNames []string
	if len(opts.Modules) > 0 {
		requested := normalizeNames(opts.Modules)
		for _, want := range requested {
			if _, ok := byLowerName[strings.ToLower(want)]; !ok {
				errs = append(errs, result.NewError("modelFilter.modules.missing",
					fmt.Sprintf("requested module %q was not found in the model", want)).WithDetail("module", want))
				continue
			}
			selectedNames = append(selectedNames, want)
		}
	} else {
		for _, m := range model.Modules {
			if m.IsSystem && !opts.IncludeSystem {
				continue
			}
			if !m.IsActive && !opts.IncludeInactive {
				continue
			}
			selectedNames = append(selectedNames, m.Name)
		}
	}

	if len(errs) > 0 {
		return result.Err[types.Model](errs...)
	}

	selectedSet := make(map[string]bool, len(selectedNames))
	for _, n := range selectedNames {
		selectedSet[strings.ToLower(n)] = true
	}

	var filteredModules []types.Module
	for _, m := range model.Modules {
		if !selectedSet[strings.ToLower(m.Name)] {
			continue
		}
		allowlist, hasAllowlist := lookupAllowlist(opts.EntityAllowlist, m.Name)
		if !hasAllowlist {
			filteredModules = append(filteredModules, m)
			continue
		}

		entityByLower := make(map[string]types.Entity, len(m.Entities))
		for _, e := range m.Entities {
			entityByLower[strings.ToLower(e.Name)] = e
		}
		var filteredEntities []types.Entity
		for _, want := range allowlist {
			e, ok := entityByLower[strings.ToLower(want)]
			if !ok {
				errs = append(errs, result.NewError("modelFilter.entities.missing",
					fmt.Sprintf("requested entity %q was not found in module %q", want, m.Name)).
					WithDetail("module", m.Name).WithDetail("entity", want))
				continue
			}
			filteredEntities = append(filteredEntities, e)
		}
		mCopy := m
		mCopy.Entities = filteredEntities
		filteredModules = append(filteredModules, mCopy)
	}

	if len(errs) > 0 {
		return result.Err[types.Model](errs...)
	}

	return result.Ok(types.Model{ExportedAtUTC: model.ExportedAtUTC, Modules: filteredModules})
}

func lookupAllowlist(m map[string][]string, moduleName string) ([]string, bool) {
	for k, v := range m {
		if strings.EqualFold(k, moduleName) {
			return v, true
		}
	}
	return nil, false
}

// normalizeNames sorts and dedupes names case-insensitively so the
// module-list output is deterministic regardless of request order.
func normalizeNames(names []string) []string {
	seen := make(map[string]string, len(names))
	for _, n := range names {
		key := strings.ToLower(n)
		if existing, ok := seen[key]; !ok || n < existing {
			seen[key] = n
		}
	}
	out := make([]string, 0, len(seen))
	for _, v := range seen {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}

// MergeSupplemental merges supplemental module/entity data into model,
// matching entities by physical name within a module (case-insensitive
// module match). Supplemental data only fills attributes absent from the
// existing entity; it never overrides one that is already present. An
// entity with no physical-name match in the target module is appended as
// a new entity; a supplemental module with no match in the target model
// is appended as a new module.
func MergeSupplemental(base types.Model, supplemental types.Model) types.Model {
	out := base
	out.Modules = append([]types.Module(nil), base.Modules...)

	indexByLower := make(map[string]int, len(out.Modules))
	for i, m := range out.Modules {
		indexByLower[strings.ToLower(m.Name)] = i
	}

	for _, suppModule := range supplemental.Modules {
		idx, ok := indexByLower[strings.ToLower(suppModule.Name)]
		if !ok {
			out.Modules = append(out.Modules, suppModule)
			indexByLower[strings.ToLower(suppModule.Name)] = len(out.Modules) - 1
			continue
		}
		out.Modules[idx] = mergeModuleEntities(out.Modules[idx], suppModule)
	}
	return out
}

func mergeModuleEntities(base types.Module, supplemental types.Module) types.Module {
	out := base
	out.Entities = append([]types.Entity(nil), base.Entities...)

	indexByPhysical := make(map[string]int, len(out.Entities))
	for i, e := range out.Entities {
		indexByPhysical[strings.ToLower(e.PhysicalName)] = i
	}

	for _, suppEntity := range supplemental.Entities {
		idx, ok := indexByPhysical[strings.ToLower(suppEntity.PhysicalName)]
		if !ok {
			out.Entities = append(out.Entities, suppEntity)
			indexByPhysical[strings.ToLower(suppEntity.PhysicalName)] = len(out.Entities) - 1
			continue
		}
		out.Entities[idx] = mergeEntityAttributes(out.Entities[idx], suppEntity)
	}
	return out
}

func mergeEntityAttributes(base types.Entity, supplemental types.Entity) types.Entity {
	out := base
	out.Attributes = append([]types.Attribute(nil), base.Attributes...)

	present := make(map[string]bool, len(out.Attributes))
	for _, a := range out.Attributes {
		present[strings.ToLower(a.PhysicalName)] = true
	}
	for _, a := range supplemental.Attributes {
		if present[strings.ToLower(a.PhysicalName)] {
			continue
		}
		out.Attributes = append(out.Attributes, a)
		present[strings.ToLower(a.PhysicalName)] = true
	}
	return out
}
