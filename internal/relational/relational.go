// Package relational implements the relational model factory: it
// projects a filtered logical model (supplemental entities included) and
// its tightening decisions, under a type-mapping policy, into a
// RelationalModel ready for emission. It does not read the profile
// snapshot; profile evidence reaches it only through the decisions.
package relational

import (
	"fmt"
	"sort"

	"github.com/outsystems-tools/ddl-tightener/internal/result"
	"github.com/outsystems-tools/ddl-tightener/internal/typemapping"
	"github.com/outsystems-tools/ddl-tightener/internal/types"
)

// NamingOverride renames a table, scoped either to a whole module (Entity
// empty) or to one entity within it.
type NamingOverride struct {
	Module string
	Entity string
	Name   string
}

// BuildOptions controls optional projection behavior.
type BuildOptions struct {
	IncludePlatformAutoIndexes bool
	NamingOverrides            []NamingOverride
}

// Build projects model+decisions into a RelationalModel under the given
// type-mapping policy and build options.
func Build(model types.Model, decisions types.PolicyDecisionSet, typePolicy typemapping.Policy, opts BuildOptions) result.Result[types.RelationalModel] {
	nullability := indexNullability(decisions.Nullability)
	uniqueIdx := indexUniqueIndex(decisions.UniqueIndex)
	fkDecisions := indexForeignKey(decisions.ForeignKey)
	overrides := indexOverrides(opts.NamingOverrides)
	targets := indexEntityTargets(model)

	var tables []types.Table
	var errs []result.ErrorRecord
	coverage := types.EmissionCoverage{}
	seenNames := map[string]string{} // lower(module+name) -> logical entity name, for collision detection

	for _, module := range model.Modules {
		for _, entity := range module.Entities {
			table, tableErrs, tableCoverage := buildTable(module, entity, nullability, uniqueIdx, fkDecisions, typePolicy, overrides, targets, opts)
			errs = append(errs, tableErrs...)
			coverage.ColumnsDeclared += tableCoverage.ColumnsDeclared
			coverage.ColumnsEmitted += tableCoverage.ColumnsEmitted
			coverage.ConstraintsDeclared += tableCoverage.ConstraintsDeclared
			coverage.ConstraintsEmitted += tableCoverage.ConstraintsEmitted
			coverage.Unsupported = append(coverage.Unsupported, tableCoverage.Unsupported...)

			key := lowerASCII(module.Name) + "." + lowerASCII(table.PhysicalName)
			if existing, collide := seenNames[key]; collide {
				errs = append(errs, result.NewError("relationalFactory.naming.collision",
					fmt.Sprintf("table name %q collides with %q after naming overrides", table.PhysicalName, existing)).
					WithDetail("module", module.Name))
				continue
			}
			seenNames[key] = entity.Name

			tables = append(tables, table)
		}
	}

	if len(errs) > 0 {
		return result.Err[types.RelationalModel](errs...)
	}

	sort.SliceStable(tables, func(i, j int) bool {
		if tables[i].Module != tables[j].Module {
			return tables[i].Module < tables[j].Module
		}
		return tables[i].PhysicalName < tables[j].PhysicalName
	})

	return result.Ok(types.RelationalModel{Tables: tables, Coverage: coverage})
}

func buildTable(module types.Module, entity types.Entity, nullability map[types.Coordinate]types.NullabilityDecision,
	uniqueIdx map[types.Coordinate]types.UniqueIndexDecision, fkDecisions map[types.Coordinate]types.ForeignKeyDecision,
	typePolicy typemapping.Policy, overrides map[string]string, targets map[string]entityTarget, opts BuildOptions) (types.Table, []result.ErrorRecord, types.EmissionCoverage) {

	coverage := types.EmissionCoverage{}
	var errs []result.ErrorRecord

	physicalName := entity.PhysicalName
	if override, ok := overrides[lowerASCII(module.Name)+"."+lowerASCII(entity.Name)]; ok {
		physicalName = override
	} else if override, ok := overrides[lowerASCII(module.Name)+".*"]; ok {
		physicalName = override
	}

	var columns []types.Column
	for _, attr := range entity.Attributes {
		coverage.ColumnsDeclared++
		coord := types.Coordinate{Schema: entity.Schema, Table: entity.PhysicalName, Column: attr.PhysicalName}
		mapping, ok := typePolicy.Resolve(attr.DataType)
		if !ok {
			errs = append(errs, result.NewError("typeMapping.missing",
				fmt.Sprintf("no type mapping for declared type %q on %s", attr.DataType, coord.String())).
				WithDetail("coordinate", coord))
			continue
		}

		isNullable := !attr.IsMandatory
		if decision, ok := nullability[coord]; ok {
			isNullable = decision.Outcome != types.MakeNotNull
		}

		columns = append(columns, types.Column{
			PhysicalName: attr.PhysicalName,
			SQLType:      mapping.SQLType,
			Length:       mapping.Length,
			IsNullable:   isNullable,
			IsIdentity:   attr.IsAutoNumber,
		})
		coverage.ColumnsEmitted++
	}

	var indexes []types.RelationalIndex
	for _, idx := range entity.Indexes {
		coverage.ConstraintsDeclared++
		if idx.IsPlatformAuto && !opts.IncludePlatformAutoIndexes {
			coverage.Unsupported = append(coverage.Unsupported, types.UnsupportedConstruct{
				Coordinate: types.Coordinate{Schema: entity.Schema, Table: entity.PhysicalName, Index: idx.Name},
				Message:    fmt.Sprintf("platform-auto index %s filtered by build option", idx.Name),
			})
			continue
		}
		isUnique := idx.IsUnique
		coord := uniqueIndexCoordinate(entity, idx)
		if decision, ok := uniqueIdx[coord]; ok {
			isUnique = decision.Outcome == types.UniqueEnforce
		}
		indexes = append(indexes, types.RelationalIndex{
			Name: idx.Name, IsUnique: isUnique, IsPlatformAuto: idx.IsPlatformAuto, Columns: idx.Columns,
		})
		coverage.ConstraintsEmitted++
	}

	var fks []types.RelationalForeignKey
	for _, rel := range entity.Relationships {
		coverage.ConstraintsDeclared++
		coord := types.Coordinate{Schema: entity.Schema, Table: entity.PhysicalName, Index: rel.Name}
		decision, hasDecision := fkDecisions[coord]
		if hasDecision && decision.Outcome == types.FKKeepMissing {
			coverage.Unsupported = append(coverage.Unsupported, types.UnsupportedConstruct{
				Coordinate: coord,
				Message:    fmt.Sprintf("foreign key %s withheld pending remediation", rel.Name),
			})
			continue
		}
		isNoCheck := rel.IsNoCheck
		if hasDecision {
			isNoCheck = decision.IsNoCheck
		}
		toColumns := make([]string, 0, len(rel.Columns))
		for _, pair := range rel.Columns {
			toColumns = append(toColumns, pair.ToColumn)
		}
		target := targets[lowerASCII(rel.ToTable)]
		fks = append(fks, types.RelationalForeignKey{
			Name: rel.Name, Columns: rel.Columns, ReferencedModule: target.module,
			ReferencedTable: rel.ToTable, ReferencedSchema: target.schema,
			ReferencedColumns: toColumns, DeleteAction: rel.DeleteAction, IsNoCheck: isNoCheck,
		})
		coverage.ConstraintsEmitted++
	}

	table := types.Table{
		Module:       module.Name,
		Schema:       entity.Schema,
		PhysicalName: physicalName,
		LogicalName:  entity.Name,
		Columns:      columns,
		Indexes:      indexes,
		ForeignKeys:  fks,
		Triggers:     entity.Triggers,
	}
	return table, errs, coverage
}

// entityTarget locates the module and schema a physical table name belongs
// to, for resolving the referenced side of a foreign key.
type entityTarget struct {
	module string
	schema string
}

func indexEntityTargets(model types.Model) map[string]entityTarget {
	out := make(map[string]entityTarget)
	for _, module := range model.Modules {
		for _, entity := range module.Entities {
			out[lowerASCII(entity.PhysicalName)] = entityTarget{module: module.Name, schema: entity.Schema}
		}
	}
	return out
}

func uniqueIndexCoordinate(entity types.Entity, idx types.Index) types.Coordinate {
	if len(idx.Columns) == 1 {
		return types.Coordinate{Schema: entity.Schema, Table: entity.PhysicalName, Column: idx.Columns[0], Index: idx.Name}
	}
	return types.Coordinate{Schema: entity.Schema, Table: entity.PhysicalName, Index: idx.Name}
}

func indexNullability(decisions []types.NullabilityDecision) map[types.Coordinate]types.NullabilityDecision {
	out := make(map[types.Coordinate]types.NullabilityDecision, len(decisions))
	for _, d := range decisions {
		out[d.Coordinate] = d
	}
	return out
}

func indexUniqueIndex(decisions []types.UniqueIndexDecision) map[types.Coordinate]types.UniqueIndexDecision {
	out := make(map[types.Coordinate]types.UniqueIndexDecision, len(decisions))
	for _, d := range decisions {
		out[d.Coordinate] = d
	}
	return out
}

func indexForeignKey(decisions []types.ForeignKeyDecision) map[types.Coordinate]types.ForeignKeyDecision {
	out := make(map[types.Coordinate]types.ForeignKeyDecision, len(decisions))
	for _, d := range decisions {
		out[d.Coordinate] = d
	}
	return out
}

func indexOverrides(overrides []NamingOverride) map[string]string {
	out := make(map[string]string, len(overrides))
	for _, o := range overrides {
		entityKey := o.Entity
		if entityKey == "" {
			entityKey = "*"
		}
		out[lowerASCII(o.Module)+"."+lowerASCII(entityKey)] = o.Name
	}
	return out
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
