package relational

import (
	"testing"

	"github.com/outsystems-tools/ddl-tightener/internal/typemapping"
	"github.com/outsystems-tools/ddl-tightener/internal/types"
)

func sampleModel() types.Model {
	return types.Model{
		Modules: []types.Module{
			{
				Name: "AppCore",
				Entities: []types.Entity{
					{
						Name: "Customer", PhysicalName: "Customer", Schema: "dbo",
						Attributes: []types.Attribute{
							{Name: "Id", PhysicalName: "Id", DataType: "Integer", IsMandatory: true, IsIdentifier: true, IsAutoNumber: true},
							{Name: "Email", PhysicalName: "Email", DataType: "Text", IsMandatory: true},
						},
						Indexes: []types.Index{
							{Name: "IX_Customer_Email", IsUnique: true, Columns: []string{"Email"}},
							{Name: "IX_Auto", IsUnique: false, IsPlatformAuto: true, Columns: []string{"Id"}},
						},
						Relationships: []types.Relationship{
							{Name: "FK_Customer_Account", FromTable: "Customer", ToTable: "Account",
								Columns: []types.ColumnPair{{FromColumn: "AccountId", ToColumn: "Id"}}},
						},
					},
				},
			},
		},
	}
}

func samplePolicy(t *testing.T) typemapping.Policy {
	t.Helper()
	p, err := typemapping.Parse([]byte(`
[[mapping]]
declaredType = "Integer"
sqlType = "int"

[[mapping]]
declaredType = "Text"
sqlType = "nvarchar"
length = 200
`))
	if err != nil {
		t.Fatalf("parse type mapping: %v", err)
	}
	return p
}

func TestBuildProjectsColumnsAndAppliesNullabilityDecisions(t *testing.T) {
	decisions := types.PolicyDecisionSet{
		Nullability: []types.NullabilityDecision{
			{Coordinate: types.Coordinate{Schema: "dbo", Table: "Customer", Column: "Id"}, Outcome: types.MakeNotNull, Rationale: types.RationaleEvidenceConfirmed},
			{Coordinate: types.Coordinate{Schema: "dbo", Table: "Customer", Column: "Email"}, Outcome: types.MakeNotNull, Rationale: types.RationaleEvidenceConfirmed},
		},
		UniqueIndex: []types.UniqueIndexDecision{
			{Coordinate: types.Coordinate{Schema: "dbo", Table: "Customer", Column: "Email", Index: "IX_Customer_Email"}, Outcome: types.UniqueEnforce, Rationale: types.RationaleEvidenceConfirmed},
		},
		ForeignKey: []types.ForeignKeyDecision{
			{Coordinate: types.Coordinate{Schema: "dbo", Table: "Customer", Index: "FK_Customer_Account"}, Outcome: types.FKCreate, Rationale: types.RationaleEvidenceConfirmed},
		},
	}

	out, ok := Build(sampleModel(), decisions, samplePolicy(t), BuildOptions{}).Value()
	if !ok {
		t.Fatal("expected success")
	}
	if len(out.Tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(out.Tables))
	}
	table := out.Tables[0]
	if len(table.Columns) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(table.Columns))
	}
	for _, c := range table.Columns {
		if c.IsNullable {
			t.Fatalf("expected %s to be NOT NULL, got nullable", c.PhysicalName)
		}
	}
	if len(table.Indexes) != 1 {
		t.Fatalf("expected platform-auto index filtered, got %d indexes", len(table.Indexes))
	}
	if !table.Indexes[0].IsUnique {
		t.Fatal("expected IX_Customer_Email enforced as unique")
	}
	if len(table.ForeignKeys) != 1 {
		t.Fatalf("expected 1 foreign key, got %d", len(table.ForeignKeys))
	}
}

func TestBuildFailsOnMissingTypeMapping(t *testing.T) {
	p, _ := typemapping.Parse([]byte(`
[[mapping]]
declaredType = "Integer"
sqlType = "int"
`))
	out := Build(sampleModel(), types.PolicyDecisionSet{}, p, BuildOptions{})
	if out.IsOK() {
		t.Fatal("expected failure for missing Text mapping")
	}
	if out.Errors()[0].Code != "typeMapping.missing" {
		t.Fatalf("unexpected error code: %s", out.Errors()[0].Code)
	}
}

func TestBuildAppliesNamingOverride(t *testing.T) {
	out, ok := Build(sampleModel(), types.PolicyDecisionSet{}, samplePolicy(t), BuildOptions{
		NamingOverrides: []NamingOverride{{Module: "AppCore", Entity: "Customer", Name: "OS_Customer"}},
	}).Value()
	if !ok {
		t.Fatal("expected success")
	}
	if out.Tables[0].PhysicalName != "OS_Customer" {
		t.Fatalf("expected renamed table, got %s", out.Tables[0].PhysicalName)
	}
}

func TestBuildIncludesPlatformAutoIndexesWhenRequested(t *testing.T) {
	out, ok := Build(sampleModel(), types.PolicyDecisionSet{}, samplePolicy(t), BuildOptions{IncludePlatformAutoIndexes: true}).Value()
	if !ok {
		t.Fatal("expected success")
	}
	if len(out.Tables[0].Indexes) != 2 {
		t.Fatalf("expected both indexes included, got %d", len(out.Tables[0].Indexes))
	}
}

func TestBuildWithholdsForeignKeyKeptMissing(t *testing.T) {
	decisions := types.PolicyDecisionSet{
		ForeignKey: []types.ForeignKeyDecision{
			{Coordinate: types.Coordinate{Schema: "dbo", Table: "Customer", Index: "FK_Customer_Account"}, Outcome: types.FKKeepMissing, Rationale: types.RationaleEvidenceMissing},
		},
	}
	out, ok := Build(sampleModel(), decisions, samplePolicy(t), BuildOptions{}).Value()
	if !ok {
		t.Fatal("expected success")
	}
	if len(out.Tables[0].ForeignKeys) != 0 {
		t.Fatalf("expected withheld FK to be absent, got %d", len(out.Tables[0].ForeignKeys))
	}
	if len(out.Coverage.Unsupported) != 2 {
		t.Fatalf("expected 2 unsupported-construct entries (filtered index + withheld FK), got %d", len(out.Coverage.Unsupported))
	}
}
