package policy

import (
	"testing"
	"time"

	"github.com/outsystems-tools/ddl-tightener/internal/types"
)

func baseModel() types.Model {
	return types.Model{
		Modules: []types.Module{
			{
				Name: "AppCore",
				Entities: []types.Entity{
					{
						Name: "Customer", PhysicalName: "Customer", Schema: "dbo",
						Attributes: []types.Attribute{
							{Name: "Id", PhysicalName: "Id", DataType: "Integer", IsMandatory: true, IsIdentifier: true},
							{Name: "Email", PhysicalName: "Email", DataType: "Text", IsMandatory: true},
							{Name: "Nickname", PhysicalName: "Nickname", DataType: "Text"},
						},
						Indexes: []types.Index{
							{Name: "IX_Customer_Email", IsUnique: true, Columns: []string{"Email"}},
							{Name: "IX_Customer_FirstLast", IsUnique: true, Columns: []string{"FirstName", "LastName"}},
						},
						Relationships: []types.Relationship{
							{Name: "FK_Customer_Account", FromTable: "Customer", ToTable: "Account"},
						},
					},
				},
			},
		},
	}
}

func defaultOpts() Options {
	return Options{OnMissingEvidence: types.Conservative, RemediationMode: types.RemediationWithhold}
}

func probe(status types.ProbeStatus) types.Probe {
	return types.Probe{Status: status, CapturedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestEvaluateRejectsUnknownToggles(t *testing.T) {
	r := Evaluate(baseModel(), types.ProfileSnapshot{}, Options{})
	if r.IsOK() {
		t.Fatal("expected failure for zero-value toggles")
	}
	if r.Errors()[0].Code != "policy.toggle.invalid" {
		t.Fatalf("unexpected error code: %s", r.Errors()[0].Code)
	}
}

func TestNullabilityMakeNotNullOnConfirmedEvidence(t *testing.T) {
	snapshot := types.ProfileSnapshot{
		Columns: []types.ColumnProfile{
			{Coordinate: types.Coordinate{Schema: "dbo", Table: "Customer", Column: "Id"}, NullCount: 0, Probe: probe(types.ProbeSucceeded)},
			{Coordinate: types.Coordinate{Schema: "dbo", Table: "Customer", Column: "Email"}, NullCount: 0, Probe: probe(types.ProbeSucceeded)},
		},
	}
	out, ok := Evaluate(baseModel(), snapshot, defaultOpts()).Value()
	if !ok {
		t.Fatal("expected success")
	}
	byCol := map[string]types.NullabilityDecision{}
	for _, d := range out.Decisions.Nullability {
		byCol[d.Coordinate.Column] = d
	}
	if byCol["Id"].Outcome != types.MakeNotNull || byCol["Id"].Rationale != types.RationaleEvidenceConfirmed {
		t.Fatalf("unexpected Id decision: %+v", byCol["Id"])
	}
	if byCol["Nickname"].Outcome != types.KeepNullable || byCol["Nickname"].Rationale != types.RationaleDeclaredOptional {
		t.Fatalf("unexpected Nickname decision: %+v", byCol["Nickname"])
	}
}

func TestNullabilityKeepsNullableOnContradiction(t *testing.T) {
	snapshot := types.ProfileSnapshot{
		Columns: []types.ColumnProfile{
			{Coordinate: types.Coordinate{Schema: "dbo", Table: "Customer", Column: "Email"}, NullCount: 3, Probe: probe(types.ProbeSucceeded)},
		},
	}
	out, ok := Evaluate(baseModel(), snapshot, defaultOpts()).Value()
	if !ok {
		t.Fatal("expected success")
	}
	var found bool
	for _, d := range out.Decisions.Nullability {
		if d.Coordinate.Column == "Email" {
			found = true
			if d.Outcome != types.KeepNullable || d.Rationale != types.RationaleEvidenceContradicted {
				t.Fatalf("unexpected Email decision: %+v", d)
			}
		}
	}
	if !found {
		t.Fatal("expected an Email decision")
	}
	var sawContradiction bool
	for _, o := range out.Opportunities.Opportunities {
		if o.Type == "mandatoryColumnContainsNulls" {
			sawContradiction = true
		}
	}
	if !sawContradiction {
		t.Fatal("expected a mandatoryColumnContainsNulls opportunity")
	}
}

func TestNullabilityMissingEvidenceTogglesByMode(t *testing.T) {
	cases := []struct {
		mode    types.OnMissingEvidence
		outcome types.NullabilityOutcome
	}{
		{types.Conservative, types.KeepNullable},
		{types.EvidenceGated, types.KeepNullable},
		{types.Aggressive, types.MakeNotNull},
	}
	for _, tc := range cases {
		opts := Options{OnMissingEvidence: tc.mode, RemediationMode: types.RemediationWithhold}
		out, ok := Evaluate(baseModel(), types.ProfileSnapshot{}, opts).Value()
		if !ok {
			t.Fatalf("mode %s: expected success", tc.mode)
		}
		for _, d := range out.Decisions.Nullability {
			if d.Coordinate.Column == "Id" && d.Outcome != tc.outcome {
				t.Fatalf("mode %s: want %s, got %s", tc.mode, tc.outcome, d.Outcome)
			}
		}
	}
}

func TestUniqueIndexEnforcedOnConfirmedSingleColumn(t *testing.T) {
	snapshot := types.ProfileSnapshot{
		UniqueCandidates: []types.UniqueCandidateProfile{
			{Coordinate: types.Coordinate{Schema: "dbo", Table: "Customer", Column: "Email", Index: "IX_Customer_Email"}, HasDuplicate: false, Probe: probe(types.ProbeSucceeded)},
		},
	}
	out, ok := Evaluate(baseModel(), snapshot, defaultOpts()).Value()
	if !ok {
		t.Fatal("expected success")
	}
	var decision *types.UniqueIndexDecision
	for i := range out.Decisions.UniqueIndex {
		if out.Decisions.UniqueIndex[i].Coordinate.Index == "IX_Customer_Email" {
			decision = &out.Decisions.UniqueIndex[i]
		}
	}
	if decision == nil || decision.Outcome != types.UniqueEnforce {
		t.Fatalf("expected IX_Customer_Email enforced, got %+v", decision)
	}
}

func TestCompositeUniqueIndexRequiresEveryPrefixCovered(t *testing.T) {
	snapshot := types.ProfileSnapshot{
		CompositeUniqueCandidates: []types.CompositeUniqueCandidateProfile{
			{Schema: "dbo", Table: "Customer", IndexName: "IX_Customer_FirstLast", Columns: []string{"FirstName", "LastName"}, HasDuplicate: false, Probe: probe(types.ProbeSucceeded)},
		},
		// FirstName has no column-level evidence; LastName does.
		Columns: []types.ColumnProfile{
			{Coordinate: types.Coordinate{Schema: "dbo", Table: "Customer", Column: "LastName"}, Probe: probe(types.ProbeSucceeded)},
		},
	}
	out, ok := Evaluate(baseModel(), snapshot, defaultOpts()).Value()
	if !ok {
		t.Fatal("expected success")
	}
	var decision *types.UniqueIndexDecision
	for i := range out.Decisions.UniqueIndex {
		if out.Decisions.UniqueIndex[i].Coordinate.Index == "IX_Customer_FirstLast" {
			decision = &out.Decisions.UniqueIndex[i]
		}
	}
	if decision == nil || decision.Outcome != types.UniqueKeepNonUnique || decision.Rationale != types.RationaleEvidenceMissing {
		t.Fatalf("expected composite index kept non-unique for missing prefix evidence, got %+v", decision)
	}
}

func TestCompositeUniqueIndexEnforcedWhenAllPrefixesCovered(t *testing.T) {
	snapshot := types.ProfileSnapshot{
		CompositeUniqueCandidates: []types.CompositeUniqueCandidateProfile{
			{Schema: "dbo", Table: "Customer", IndexName: "IX_Customer_FirstLast", Columns: []string{"FirstName", "LastName"}, HasDuplicate: false, Probe: probe(types.ProbeSucceeded)},
		},
		Columns: []types.ColumnProfile{
			{Coordinate: types.Coordinate{Schema: "dbo", Table: "Customer", Column: "FirstName"}, Probe: probe(types.ProbeSucceeded)},
			{Coordinate: types.Coordinate{Schema: "dbo", Table: "Customer", Column: "LastName"}, Probe: probe(types.ProbeSucceeded)},
		},
	}
	out, ok := Evaluate(baseModel(), snapshot, defaultOpts()).Value()
	if !ok {
		t.Fatal("expected success")
	}
	for _, d := range out.Decisions.UniqueIndex {
		if d.Coordinate.Index == "IX_Customer_FirstLast" && d.Outcome != types.UniqueEnforce {
			t.Fatalf("expected composite index enforced, got %+v", d)
		}
	}
}

func TestForeignKeyCreatedWhenNoOrphans(t *testing.T) {
	snapshot := types.ProfileSnapshot{
		ForeignKeys: []types.ForeignKeyReality{
			{FromTable: "Customer", ToTable: "Account", RelationshipName: "FK_Customer_Account", HasOrphan: false, Probe: probe(types.ProbeSucceeded)},
		},
	}
	out, ok := Evaluate(baseModel(), snapshot, defaultOpts()).Value()
	if !ok {
		t.Fatal("expected success")
	}
	if len(out.Decisions.ForeignKey) != 1 || out.Decisions.ForeignKey[0].Outcome != types.FKCreate {
		t.Fatalf("unexpected FK decisions: %+v", out.Decisions.ForeignKey)
	}
}

func TestForeignKeyWithholdsOnOrphans(t *testing.T) {
	snapshot := types.ProfileSnapshot{
		ForeignKeys: []types.ForeignKeyReality{
			{FromTable: "Customer", ToTable: "Account", RelationshipName: "FK_Customer_Account", HasOrphan: true, Probe: probe(types.ProbeSucceeded)},
		},
	}
	out, ok := Evaluate(baseModel(), snapshot, defaultOpts()).Value()
	if !ok {
		t.Fatal("expected success")
	}
	if out.Decisions.ForeignKey[0].Outcome != types.FKKeepMissing {
		t.Fatalf("expected KeepMissing, got %+v", out.Decisions.ForeignKey[0])
	}
}

func TestForeignKeyCreateNoCheckWhenToleratingOrphans(t *testing.T) {
	snapshot := types.ProfileSnapshot{
		ForeignKeys: []types.ForeignKeyReality{
			{FromTable: "Customer", ToTable: "Account", RelationshipName: "FK_Customer_Account", HasOrphan: true, Probe: probe(types.ProbeSucceeded)},
		},
	}
	opts := Options{OnMissingEvidence: types.Conservative, RemediationMode: types.RemediationTolerate}
	out, ok := Evaluate(baseModel(), snapshot, opts).Value()
	if !ok {
		t.Fatal("expected success")
	}
	d := out.Decisions.ForeignKey[0]
	if d.Outcome != types.FKCreateNoCheck || !d.IsNoCheck || d.Rationale != types.RationaleRemediationTolerate {
		t.Fatalf("unexpected FK decision: %+v", d)
	}
}

func TestReportRollsUpCountsByModuleAndKind(t *testing.T) {
	out, ok := Evaluate(baseModel(), types.ProfileSnapshot{}, defaultOpts()).Value()
	if !ok {
		t.Fatal("expected success")
	}
	var nullabilityCount int
	for _, c := range out.Report.Counts {
		if c.Module == "AppCore" && c.Kind == "nullability" {
			nullabilityCount = c.Count
		}
	}
	if nullabilityCount != 3 {
		t.Fatalf("expected 3 nullability decisions rolled up, got %d", nullabilityCount)
	}
}
