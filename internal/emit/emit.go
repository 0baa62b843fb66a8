// Package emit implements the artifact emitter: it writes the
// projected relational model, decision report, and opportunities report
// to an output directory as per-table SQL files plus JSON/SQL manifests,
// every write going through fsfacade's write-then-rename primitive so a
// crash never leaves a half-written artifact.
package emit

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/outsystems-tools/ddl-tightener/internal/fsfacade"
	"github.com/outsystems-tools/ddl-tightener/internal/result"
	"github.com/outsystems-tools/ddl-tightener/internal/types"
)

// Options controls manifest content and output layout.
type Options struct {
	OutputDir string
	// ModuleParallelism bounds how many per-table SQL writes run
	// concurrently. Table-file collision detection and the final
	// manifest's table list stay deterministic regardless of this value:
	// writes race only on I/O, never on the ordering of tableFiles,
	// which is sorted before use.
	ModuleParallelism int
}

// Output lists every path the emitter wrote, for the orchestrator to
// thread into telemetry and, eventually, the evidence-cache artifact list.
type Output struct {
	TableFiles      []string
	ManifestPath    string
	DecisionsPath   string
	OpportunityPath string
	ValidationsPath string
	SafeToApplyPath string
	RemediationPath string
	Fingerprint     string
}

// Manifest is the persisted manifest.json shape.
type Manifest struct {
	Tables      []string                     `json:"tables"`
	Coverage    types.EmissionCoverage       `json:"coverage"`
	Fingerprint types.Fingerprint            `json:"emission.fingerprint"`
	Unsupported []types.UnsupportedConstruct `json:"unsupported"`
}

// Emit writes every artifact for model under opts.OutputDir, returning the
// set of paths written. fp is the precomputed emission fingerprint,
// computed by the caller over the canonicalized relational model so the
// emitter itself stays a pure writer.
func Emit(fs fsfacade.FS, model types.RelationalModel, decisions types.PolicyDecisionReport, opportunities types.OpportunitiesReport, fp string, opts Options) result.Result[Output] {
	relPaths := make([]string, len(model.Tables))
	seenPaths := map[string]string{}
	for i, table := range model.Tables {
		relPath := tablePath(table)
		if existing, collide := seenPaths[strings.ToLower(relPath)]; collide {
			return result.Err[Output](result.NewError("emission.path.collision",
				fmt.Sprintf("sanitized table path %q collides with %q", relPath, existing)))
		}
		seenPaths[strings.ToLower(relPath)] = relPath
		relPaths[i] = relPath
	}

	parallelism := opts.ModuleParallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	g := new(errgroup.Group)
	g.SetLimit(parallelism)
	for i, table := range model.Tables {
		i, table := i, table
		g.Go(func() error {
			sql := renderTableSQL(table)
			fullPath := filepath.Join(opts.OutputDir, relPaths[i])
			return fs.WriteFileAtomic(fullPath, []byte(sql), 0o644)
		})
	}
	if err := g.Wait(); err != nil {
		return result.Err[Output](result.NewError("emission.artifact.writeFailed", err.Error()))
	}

	tableFiles := append([]string(nil), relPaths...)
	sort.Strings(tableFiles)

	manifest := Manifest{
		Tables:      tableFiles,
		Coverage:    model.Coverage,
		Fingerprint: types.Fingerprint{Algorithm: "sha256", Value: fp},
		Unsupported: model.Coverage.Unsupported,
	}
	manifestPath := filepath.Join(opts.OutputDir, "manifest.json")
	if err := writeJSON(fs, manifestPath, manifest); err != nil {
		return result.Err[Output](*err)
	}

	decisionsPath := filepath.Join(opts.OutputDir, "policy-decisions.json")
	if err := writeJSON(fs, decisionsPath, decisions); err != nil {
		return result.Err[Output](*err)
	}

	opportunitiesPath := filepath.Join(opts.OutputDir, "opportunities.json")
	if err := writeJSON(fs, opportunitiesPath, opportunities); err != nil {
		return result.Err[Output](*err)
	}

	validations := decisions.Decisions.Diagnostics
	if validations == nil {
		validations = []types.Diagnostic{}
	}
	validationsPath := filepath.Join(opts.OutputDir, "validations.json")
	if err := writeJSON(fs, validationsPath, validations); err != nil {
		return result.Err[Output](*err)
	}

	safeToApplyPath := filepath.Join(opts.OutputDir, "safe-to-apply.sql")
	if err := fs.WriteFileAtomic(safeToApplyPath, []byte(renderOpportunityBatch(opportunities.SafeToApply())), 0o644); err != nil {
		return result.Err[Output](result.NewError("emission.artifact.writeFailed", err.Error()).WithDetail("path", safeToApplyPath))
	}

	remediationPath := filepath.Join(opts.OutputDir, "needs-remediation.sql")
	if err := fs.WriteFileAtomic(remediationPath, []byte(renderOpportunityBatch(opportunities.NeedsRemediation())), 0o644); err != nil {
		return result.Err[Output](result.NewError("emission.artifact.writeFailed", err.Error()).WithDetail("path", remediationPath))
	}

	return result.Ok(Output{
		TableFiles:      tableFiles,
		ManifestPath:    "manifest.json",
		DecisionsPath:   "policy-decisions.json",
		OpportunityPath: "opportunities.json",
		ValidationsPath: "validations.json",
		SafeToApplyPath: "safe-to-apply.sql",
		RemediationPath: "needs-remediation.sql",
		Fingerprint:     fp,
	})
}

// EmitSeeds renders one INSERT-batch SQL file per static-entity seed under
// Seeds/<sanitized-schema>.<sanitized-table>.sql, via the same
// write-then-rename primitive as every other artifact. Row synthesis
// itself is the SeedProvider's responsibility; this function only turns
// already-synthesized rows into SQL text and decides where the file
// lives.
func EmitSeeds(fs fsfacade.FS, seeds []types.StaticEntitySeed, outputDir string) result.Result[[]string] {
	var paths []string
	seenPaths := map[string]string{}

	for _, seed := range seeds {
		relPath := filepath.Join("Seeds", fmt.Sprintf("%s.%s.sql",
			sanitizeIdentifier(seed.Table.Schema), sanitizeIdentifier(seed.Table.Table)))
		if existing, collide := seenPaths[strings.ToLower(relPath)]; collide {
			return result.Err[[]string](result.NewError("emission.seed.pathCollision",
				fmt.Sprintf("sanitized seed path %q collides with %q", relPath, existing)))
		}
		seenPaths[strings.ToLower(relPath)] = relPath

		sql := renderSeedSQL(seed)
		fullPath := filepath.Join(outputDir, relPath)
		if err := fs.WriteFileAtomic(fullPath, []byte(sql), 0o644); err != nil {
			return result.Err[[]string](result.NewError("emission.seed.failed", err.Error()).WithDetail("path", fullPath))
		}
		paths = append(paths, relPath)
	}
	sort.Strings(paths)
	return result.Ok(paths)
}

// renderSeedSQL renders a deterministic INSERT statement per row, columns
// sorted lexicographically so repeated runs over the same rows produce
// byte-identical output.
func renderSeedSQL(seed types.StaticEntitySeed) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "-- Static data seed for [%s].[%s]\n", seed.Table.Schema, seed.Table.Table)
	for _, row := range seed.Rows {
		columns := make([]string, 0, len(row))
		for col := range row {
			columns = append(columns, col)
		}
		sort.Strings(columns)

		values := make([]string, 0, len(columns))
		for _, col := range columns {
			values = append(values, sqlLiteral(row[col]))
		}
		fmt.Fprintf(&sb, "INSERT INTO [%s].[%s] (%s) VALUES (%s);\n",
			seed.Table.Schema, seed.Table.Table, strings.Join(bracketAll(columns), ", "), strings.Join(values, ", "))
	}
	return sb.String()
}

// sqlLiteral renders a Go value decoded from JSON as a T-SQL literal.
// Strings are single-quote escaped; nil becomes NULL; everything else
// (numbers, bools) renders via its default formatting.
func sqlLiteral(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case bool:
		if val {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprintf("%v", val)
	}
}

func tablePath(table types.Table) string {
	module := sanitizeIdentifier(table.Module)
	file := fmt.Sprintf("%s.%s.sql", sanitizeIdentifier(table.Schema), sanitizeIdentifier(table.PhysicalName))
	return filepath.Join("Modules", module, file)
}

// sanitizeIdentifier replaces every non [A-Za-z0-9_] character with an
// underscore so module/table/schema names are always path-safe.
func sanitizeIdentifier(s string) string {
	b := []byte(s)
	for i, c := range b {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			continue
		}
		b[i] = '_'
	}
	return string(b)
}

func renderTableSQL(table types.Table) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE TABLE [%s].[%s] (\n", table.Schema, table.PhysicalName)
	for i, col := range table.Columns {
		nullability := "NOT NULL"
		if col.IsNullable {
			nullability = "NULL"
		}
		sqlType := col.SQLType
		if col.Length > 0 {
			sqlType = fmt.Sprintf("%s(%d)", sqlType, col.Length)
		}
		identity := ""
		if col.IsIdentity {
			identity = " IDENTITY(1,1)"
		}
		comma := ","
		if i == len(table.Columns)-1 {
			comma = ""
		}
		fmt.Fprintf(&sb, "    [%s] %s%s %s%s\n", col.PhysicalName, sqlType, identity, nullability, comma)
	}
	sb.WriteString(");\n")

	for _, idx := range table.Indexes {
		unique := ""
		if idx.IsUnique {
			unique = "UNIQUE "
		}
		fmt.Fprintf(&sb, "CREATE %sINDEX [%s] ON [%s].[%s] (%s);\n",
			unique, idx.Name, table.Schema, table.PhysicalName, strings.Join(bracketAll(idx.Columns), ", "))
	}

	for _, fk := range table.ForeignKeys {
		noCheck := ""
		if fk.IsNoCheck {
			noCheck = "NOCHECK "
		}
		fromCols := make([]string, 0, len(fk.Columns))
		for _, pair := range fk.Columns {
			fromCols = append(fromCols, pair.FromColumn)
		}
		fmt.Fprintf(&sb, "ALTER TABLE [%s].[%s] %sADD CONSTRAINT [%s] FOREIGN KEY (%s) REFERENCES [%s] (%s);\n",
			table.Schema, table.PhysicalName, noCheck, fk.Name,
			strings.Join(bracketAll(fromCols), ", "), fk.ReferencedTable, strings.Join(bracketAll(fk.ReferencedColumns), ", "))
	}

	return sb.String()
}

func bracketAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = "[" + n + "]"
	}
	return out
}

// renderOpportunityBatch renders a SQL batch for opportunities.SafeToApply
// or .NeedsRemediation, each entry preceded by a sorted "-- Evidence:"
// comment so round-trip diffs against a previous run are stable.
func renderOpportunityBatch(opportunities []types.Opportunity) string {
	sorted := append([]types.Opportunity(nil), opportunities...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Coordinate.String() < sorted[j].Coordinate.String()
	})

	var sb strings.Builder
	for _, o := range sorted {
		fmt.Fprintf(&sb, "-- Evidence: %s (%s/%s/%s)\n", o.Message, o.Category, o.Type, o.Risk)
		if o.EvidenceSQL != "" {
			sb.WriteString(o.EvidenceSQL)
			sb.WriteString("\n")
		}
		if o.RemediationSQL != "" {
			sb.WriteString(o.RemediationSQL)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func writeJSON(fs fsfacade.FS, path string, v any) *result.ErrorRecord {
	data, err := canonicalMarshal(v)
	if err != nil {
		rec := result.NewError("emission.artifact.encodeFailed", err.Error()).WithDetail("path", path)
		return &rec
	}
	if err := fs.WriteFileAtomic(path, data, 0o644); err != nil {
		rec := result.NewError("emission.artifact.writeFailed", err.Error()).WithDetail("path", path)
		return &rec
	}
	return nil
}

// canonicalMarshal renders v as indented JSON; encoding/json already sorts
// map[string]... keys, and every slice in this package's inputs is built
// in a deterministic order upstream, so repeated runs over identical
// inputs produce byte-identical output.
func canonicalMarshal(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
