package emit

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/outsystems-tools/ddl-tightener/internal/fsfacade"
	"github.com/outsystems-tools/ddl-tightener/internal/types"
)

func sampleRelationalModel() types.RelationalModel {
	return types.RelationalModel{
		Tables: []types.Table{
			{
				Module: "App Core", Schema: "dbo", PhysicalName: "Customer",
				Columns: []types.Column{
					{PhysicalName: "Id", SQLType: "int", IsIdentity: true},
					{PhysicalName: "Email", SQLType: "nvarchar", Length: 200},
				},
				Indexes: []types.RelationalIndex{
					{Name: "IX_Customer_Email", IsUnique: true, Columns: []string{"Email"}},
				},
				ForeignKeys: []types.RelationalForeignKey{
					{Name: "FK_Customer_Account", Columns: []types.ColumnPair{{FromColumn: "AccountId", ToColumn: "Id"}}, ReferencedTable: "Account", ReferencedColumns: []string{"Id"}},
				},
			},
		},
	}
}

func TestEmitWritesTableSQLAndManifest(t *testing.T) {
	fs := fsfacade.NewMemFS()
	out, ok := Emit(fs, sampleRelationalModel(), types.PolicyDecisionReport{}, types.OpportunitiesReport{}, "fp123", Options{OutputDir: "out"}).Value()
	if !ok {
		t.Fatal("expected success")
	}
	if len(out.TableFiles) != 1 {
		t.Fatalf("expected 1 table file, got %d", len(out.TableFiles))
	}
	// module name sanitized: space -> underscore
	if !strings.Contains(out.TableFiles[0], "App_Core") {
		t.Fatalf("expected sanitized module directory, got %s", out.TableFiles[0])
	}

	sql, err := fs.ReadFile("out/" + out.TableFiles[0])
	if err != nil {
		t.Fatalf("read emitted SQL: %v", err)
	}
	if !strings.Contains(string(sql), "CREATE TABLE [dbo].[Customer]") {
		t.Fatalf("unexpected SQL content: %s", sql)
	}
	if !strings.Contains(string(sql), "FOREIGN KEY") {
		t.Fatalf("expected foreign key clause in SQL: %s", sql)
	}

	manifestData, err := fs.ReadFile("out/manifest.json")
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if manifest.Fingerprint.Algorithm != "sha256" || manifest.Fingerprint.Value != "fp123" {
		t.Fatalf("expected sha256/fp123 fingerprint, got %+v", manifest.Fingerprint)
	}

	if _, err := fs.ReadFile("out/" + out.ValidationsPath); err != nil {
		t.Fatalf("expected validations.json written: %v", err)
	}
}

func TestEmitFailsOnSanitizedPathCollision(t *testing.T) {
	model := types.RelationalModel{
		Tables: []types.Table{
			{Module: "App!Core", Schema: "dbo", PhysicalName: "X"},
			{Module: "App?Core", Schema: "dbo", PhysicalName: "X"},
		},
	}
	fs := fsfacade.NewMemFS()
	r := Emit(fs, model, types.PolicyDecisionReport{}, types.OpportunitiesReport{}, "fp", Options{OutputDir: "out"})
	if r.IsOK() {
		t.Fatal("expected a path collision failure")
	}
	if r.Errors()[0].Code != "emission.path.collision" {
		t.Fatalf("unexpected error code: %s", r.Errors()[0].Code)
	}
}

func TestEmitSplitsOpportunitiesByDisposition(t *testing.T) {
	opportunities := types.OpportunitiesReport{
		Opportunities: []types.Opportunity{
			{Coordinate: types.Coordinate{Schema: "dbo", Table: "A", Column: "X"}, Disposition: types.SafeToApply, Message: "safe one"},
			{Coordinate: types.Coordinate{Schema: "dbo", Table: "B", Column: "Y"}, Disposition: types.NeedsRemediation, Message: "needs remediation one"},
		},
	}
	fs := fsfacade.NewMemFS()
	out, ok := Emit(fs, types.RelationalModel{}, types.PolicyDecisionReport{}, opportunities, "fp", Options{OutputDir: "out"}).Value()
	if !ok {
		t.Fatal("expected success")
	}
	safe, err := fs.ReadFile("out/" + out.SafeToApplyPath)
	if err != nil {
		t.Fatalf("read safe-to-apply.sql: %v", err)
	}
	if !strings.Contains(string(safe), "safe one") || strings.Contains(string(safe), "needs remediation one") {
		t.Fatalf("unexpected safe-to-apply contents: %s", safe)
	}
	remediation, err := fs.ReadFile("out/" + out.RemediationPath)
	if err != nil {
		t.Fatalf("read needs-remediation.sql: %v", err)
	}
	if !strings.Contains(string(remediation), "needs remediation one") {
		t.Fatalf("unexpected needs-remediation contents: %s", remediation)
	}
}
