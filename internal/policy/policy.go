// Package policy implements the tightening policy: deterministic
// per-column nullability, per-index uniqueness, and per-foreign-key
// constraint decisions synthesized from the declared logical model and the
// observed profile snapshot.
package policy

import (
	"fmt"
	"sort"

	"github.com/outsystems-tools/ddl-tightener/internal/result"
	"github.com/outsystems-tools/ddl-tightener/internal/types"
)

// RationaleOrder is the fixed tie-break order: when more than one
// rationale could describe a decision, the first one in this list wins.
var RationaleOrder = []types.RationaleCode{
	types.RationaleEvidenceConfirmed,
	types.RationaleEvidenceMissing,
	types.RationaleDeclaredMandatory,
	types.RationalePolicyOverride,
	types.RationaleRemediationTolerate,
}

// Options carries the policy toggles in effect for a run.
type Options struct {
	OnMissingEvidence types.OnMissingEvidence
	RemediationMode   types.RemediationMode
}

// Output is the full result of evaluating the policy over a model/profile
// pair: the raw decision set, the module/kind rollup report, and the
// opportunities report.
type Output struct {
	Decisions     types.PolicyDecisionSet
	Report        types.PolicyDecisionReport
	Opportunities types.OpportunitiesReport
}

// Evaluate computes tightening decisions for every column, index, and
// foreign key in model, against profile, under opts.
func Evaluate(model types.Model, profile types.ProfileSnapshot, opts Options) result.Result[Output] {
	if err := validateOptions(opts); err != nil {
		return result.Err[Output](*err)
	}

	var nullability []types.NullabilityDecision
	var fks []types.ForeignKeyDecision
	var uniques []types.UniqueIndexDecision
	var diagnostics []types.Diagnostic
	var opportunities []types.Opportunity

	for _, module := range model.Modules {
		for _, entity := range module.Entities {
			for _, attr := range entity.Attributes {
				coord := types.Coordinate{Schema: entity.Schema, Table: entity.PhysicalName, Column: attr.PhysicalName}
				decision, diag, opp := decideNullability(coord, attr, profile, opts)
				nullability = append(nullability, decision)
				if diag != nil {
					diagnostics = append(diagnostics, *diag)
				}
				if opp != nil {
					opportunities = append(opportunities, *opp)
				}
			}

			for _, idx := range entity.Indexes {
				if !idx.IsUnique {
					continue
				}
				decision, opp := decideUniqueIndex(entity, idx, profile)
				uniques = append(uniques, decision)
				if opp != nil {
					opportunities = append(opportunities, *opp)
				}
			}

			for _, rel := range entity.Relationships {
				decision, opp := decideForeignKey(entity, rel, profile, opts)
				fks = append(fks, decision)
				if opp != nil {
					opportunities = append(opportunities, *opp)
				}
			}
		}
	}

	decisions := types.PolicyDecisionSet{
		Nullability: nullability,
		ForeignKey:  fks,
		UniqueIndex: uniques,
		Diagnostics: diagnostics,
		Toggles:     types.ToggleSnapshot{OnMissingEvidence: opts.OnMissingEvidence, RemediationMode: opts.RemediationMode},
	}

	return result.Ok(Output{
		Decisions:     decisions,
		Report:        buildReport(model, decisions),
		Opportunities: types.OpportunitiesReport{Opportunities: opportunities},
	})
}

func validateOptions(opts Options) *result.ErrorRecord {
	switch opts.OnMissingEvidence {
	case types.Conservative, types.EvidenceGated, types.Aggressive:
	default:
		err := result.NewError("policy.toggle.invalid", fmt.Sprintf("unrecognized onMissingEvidence toggle %q", opts.OnMissingEvidence))
		return &err
	}
	switch opts.RemediationMode {
	case types.RemediationWithhold, types.RemediationTolerate:
	default:
		err := result.NewError("policy.toggle.invalid", fmt.Sprintf("unrecognized remediationMode toggle %q", opts.RemediationMode))
		return &err
	}
	return nil
}

func decideNullability(coord types.Coordinate, attr types.Attribute, profile types.ProfileSnapshot, opts Options) (types.NullabilityDecision, *types.Diagnostic, *types.Opportunity) {
	var opportunity *types.Opportunity
	if attr.Reality != nil && attr.Reality.IsPresentButInactive {
		opportunity = &types.Opportunity{
			Coordinate:  coord,
			Disposition: types.NeedsRemediation,
			Category:    types.CategoryInformational,
			Type:        "presentButInactiveColumn",
			Risk:        types.RiskLow,
			Message:     fmt.Sprintf("column %s is present in the database but deactivated in the logical model", coord.String()),
		}
	}

	mandatory := attr.IsMandatory || attr.IsIdentifier || attr.IsAutoNumber
	if !mandatory {
		return types.NullabilityDecision{Coordinate: coord, Outcome: types.KeepNullable, Rationale: types.RationaleDeclaredOptional}, nil, opportunity
	}

	colProfile, found := profile.ColumnByCoordinate(coord)
	if found && colProfile.Probe.Status == types.ProbeSucceeded {
		if colProfile.NullCount == 0 {
			return types.NullabilityDecision{Coordinate: coord, Outcome: types.MakeNotNull, Rationale: types.RationaleEvidenceConfirmed}, nil, opportunity
		}
		// Contradiction: declared mandatory, but the profile found actual
		// nulls. Keep nullable and surface it as a finding rather than
		// silently tightening over bad data.
		contradiction := &types.Opportunity{
			Coordinate:  coord,
			Disposition: types.NeedsRemediation,
			Category:    types.CategoryContradiction,
			Type:        "mandatoryColumnContainsNulls",
			Risk:        types.RiskMedium,
			Message:     fmt.Sprintf("column %s is declared mandatory but %d row(s) are null", coord.String(), colProfile.NullCount),
		}
		return types.NullabilityDecision{Coordinate: coord, Outcome: types.KeepNullable, Rationale: types.RationaleEvidenceContradicted}, nil, mergeOpportunity(opportunity, contradiction)
	}

	switch opts.OnMissingEvidence {
	case types.Aggressive:
		diag := &types.Diagnostic{Coordinate: coord, Severity: types.SeverityWarning, Code: "policy.missingEvidence.aggressive",
			Message: fmt.Sprintf("column %s tightened to NOT NULL without confirming evidence", coord.String())}
		return types.NullabilityDecision{Coordinate: coord, Outcome: types.MakeNotNull, Rationale: types.RationalePolicyOverride}, diag, opportunity
	case types.EvidenceGated:
		diag := &types.Diagnostic{Coordinate: coord, Severity: types.SeverityWarning, Code: "policy.missingEvidence.gated",
			Message: fmt.Sprintf("column %s kept nullable pending evidence", coord.String())}
		return types.NullabilityDecision{Coordinate: coord, Outcome: types.KeepNullable, Rationale: types.RationaleEvidenceMissing}, diag, opportunity
	default: // Conservative
		return types.NullabilityDecision{Coordinate: coord, Outcome: types.KeepNullable, Rationale: types.RationaleEvidenceMissing}, nil, opportunity
	}
}

// mergeOpportunity keeps the first non-nil opportunity, so a mandatory
// column that is both present-but-inactive and found to contain nulls
// reports only the present-but-inactive opportunity (its decision still
// carries the evidence.contradicted rationale).
func mergeOpportunity(existing, next *types.Opportunity) *types.Opportunity {
	if existing != nil {
		return existing
	}
	return next
}

func decideUniqueIndex(entity types.Entity, idx types.Index, profile types.ProfileSnapshot) (types.UniqueIndexDecision, *types.Opportunity) {
	if len(idx.Columns) == 1 {
		coord := types.Coordinate{Schema: entity.Schema, Table: entity.PhysicalName, Column: idx.Columns[0], Index: idx.Name}
		candidate, found := profile.UniqueCandidateByCoordinate(coord)
		if !found || candidate.Probe.Status != types.ProbeSucceeded {
			return types.UniqueIndexDecision{Coordinate: coord, Outcome: types.UniqueKeepNonUnique, Rationale: types.RationaleEvidenceMissing},
				opportunityForUnenforcedIndex(coord, "missing uniqueness evidence")
		}
		if !candidate.HasDuplicate {
			return types.UniqueIndexDecision{Coordinate: coord, Outcome: types.UniqueEnforce, Rationale: types.RationaleEvidenceConfirmed}, nil
		}
		return types.UniqueIndexDecision{Coordinate: coord, Outcome: types.UniqueKeepNonUnique, Rationale: types.RationaleEvidenceContradicted},
			opportunityForUnenforcedIndex(coord, "duplicate values observed")
	}

	coord := types.Coordinate{Schema: entity.Schema, Table: entity.PhysicalName, Index: idx.Name}
	composite, found := profile.CompositeCandidate(entity.Schema, entity.PhysicalName, idx.Name)
	if !found || composite.Probe.Status != types.ProbeSucceeded {
		return types.UniqueIndexDecision{Coordinate: coord, Outcome: types.UniqueKeepNonUnique, Rationale: types.RationaleEvidenceMissing},
			opportunityForUnenforcedIndex(coord, "missing uniqueness evidence")
	}
	if !everyPrefixCovered(entity, idx.Columns, profile) {
		return types.UniqueIndexDecision{Coordinate: coord, Outcome: types.UniqueKeepNonUnique, Rationale: types.RationaleEvidenceMissing},
			opportunityForUnenforcedIndex(coord, "not every column prefix has column-level evidence")
	}
	if composite.HasDuplicate {
		return types.UniqueIndexDecision{Coordinate: coord, Outcome: types.UniqueKeepNonUnique, Rationale: types.RationaleEvidenceContradicted},
			opportunityForUnenforcedIndex(coord, "duplicate values observed")
	}
	return types.UniqueIndexDecision{Coordinate: coord, Outcome: types.UniqueEnforce, Rationale: types.RationaleEvidenceConfirmed}, nil
}

// everyPrefixCovered requires every column participating in a composite
// unique candidate to have its own successful column-level probe; a
// composite index is only enforced when every prefix is covered.
func everyPrefixCovered(entity types.Entity, columns []string, profile types.ProfileSnapshot) bool {
	for _, col := range columns {
		coord := types.Coordinate{Schema: entity.Schema, Table: entity.PhysicalName, Column: col}
		colProfile, found := profile.ColumnByCoordinate(coord)
		if !found || colProfile.Probe.Status != types.ProbeSucceeded {
			return false
		}
	}
	return true
}

func opportunityForUnenforcedIndex(coord types.Coordinate, reason string) *types.Opportunity {
	return &types.Opportunity{
		Coordinate:  coord,
		Disposition: types.NeedsRemediation,
		Category:    types.CategoryImprovement,
		Type:        "uniqueIndexNotEnforced",
		Risk:        types.RiskMedium,
		Message:     fmt.Sprintf("unique index %s not enforced: %s", coord.String(), reason),
	}
}

func decideForeignKey(entity types.Entity, rel types.Relationship, profile types.ProfileSnapshot, opts Options) (types.ForeignKeyDecision, *types.Opportunity) {
	coord := types.Coordinate{Schema: entity.Schema, Table: entity.PhysicalName, Index: rel.Name}
	reality, found := profile.ForeignKeyRealityFor(rel.FromTable, rel.ToTable, rel.Name)

	if !found || reality.Probe.Status != types.ProbeSucceeded {
		return types.ForeignKeyDecision{Coordinate: coord, Outcome: types.FKKeepMissing, Rationale: types.RationaleEvidenceMissing, IsNoCheck: rel.IsNoCheck},
			&types.Opportunity{
				Coordinate: coord, Disposition: types.NeedsRemediation, Category: types.CategoryInformational,
				Type: "foreignKeyEvidenceMissing", Risk: types.RiskLow,
				Message: fmt.Sprintf("foreign key %s has no confirmed orphan-row evidence", coord.String()),
			}
	}

	if !reality.HasOrphan && (!reality.HasDatabaseConstraint || !reality.IsNoCheck) {
		return types.ForeignKeyDecision{Coordinate: coord, Outcome: types.FKCreate, Rationale: types.RationaleEvidenceConfirmed, IsNoCheck: rel.IsNoCheck}, nil
	}

	if reality.HasOrphan {
		if opts.RemediationMode == types.RemediationTolerate {
			return types.ForeignKeyDecision{Coordinate: coord, Outcome: types.FKCreateNoCheck, Rationale: types.RationaleRemediationTolerate, IsNoCheck: true}, nil
		}
		return types.ForeignKeyDecision{Coordinate: coord, Outcome: types.FKKeepMissing, Rationale: types.RationaleEvidenceContradicted, IsNoCheck: rel.IsNoCheck},
			&types.Opportunity{
				Coordinate: coord, Disposition: types.NeedsRemediation, Category: types.CategoryContradiction,
				Type: "foreignKeyOrphanRows", Risk: types.RiskMedium,
				Message: fmt.Sprintf("foreign key %s has orphan rows and cannot be safely created", coord.String()),
			}
	}

	return types.ForeignKeyDecision{Coordinate: coord, Outcome: types.FKCreate, Rationale: types.RationaleEvidenceConfirmed, IsNoCheck: rel.IsNoCheck}, nil
}

func buildReport(model types.Model, decisions types.PolicyDecisionSet) types.PolicyDecisionReport {
	moduleOf := make(map[types.Coordinate]string)
	for _, module := range model.Modules {
		for _, entity := range module.Entities {
			for _, attr := range entity.Attributes {
				moduleOf[types.Coordinate{Schema: entity.Schema, Table: entity.PhysicalName, Column: attr.PhysicalName}] = module.Name
			}
			for _, idx := range entity.Indexes {
				if len(idx.Columns) == 1 {
					moduleOf[types.Coordinate{Schema: entity.Schema, Table: entity.PhysicalName, Column: idx.Columns[0], Index: idx.Name}] = module.Name
				}
				moduleOf[types.Coordinate{Schema: entity.Schema, Table: entity.PhysicalName, Index: idx.Name}] = module.Name
			}
			for _, rel := range entity.Relationships {
				moduleOf[types.Coordinate{Schema: entity.Schema, Table: entity.PhysicalName, Index: rel.Name}] = module.Name
			}
		}
	}

	counts := map[[2]string]int{}
	bump := func(coord types.Coordinate, kind string) {
		counts[[2]string{moduleOf[coord], kind}]++
	}
	for _, d := range decisions.Nullability {
		bump(d.Coordinate, "nullability")
	}
	for _, d := range decisions.ForeignKey {
		bump(d.Coordinate, "foreignKey")
	}
	for _, d := range decisions.UniqueIndex {
		bump(d.Coordinate, "uniqueIndex")
	}

	out := make([]types.ModuleKindCount, 0, len(counts))
	for k, v := range counts {
		out = append(out, types.ModuleKindCount{Module: k[0], Kind: k[1], Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Module != out[j].Module {
			return out[i].Module < out[j].Module
		}
		return out[i].Kind < out[j].Kind
	})

	return types.PolicyDecisionReport{Counts: out, Decisions: decisions}
}
