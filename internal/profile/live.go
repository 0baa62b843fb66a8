package profile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/outsystems-tools/ddl-tightener/internal/clock"
	"github.com/outsystems-tools/ddl-tightener/internal/result"
	"github.com/outsystems-tools/ddl-tightener/internal/types"
)

// Querier executes the parameterized scan queries one table's profile
// probes need. Transport-level connection handling stays with the caller,
// who supplies a Querier backed by whatever SQL Server driver their
// deployment uses.
type Querier interface {
	CountRows(ctx context.Context, schema, table string) (int64, error)
	CountNulls(ctx context.Context, schema, table, column string, rowCap int64) (int64, error)
	HasDuplicate(ctx context.Context, schema, table, column string, rowCap int64) (bool, error)
	HasCompositeDuplicate(ctx context.Context, schema, table string, columns []string, rowCap int64) (bool, error)
	HasOrphan(ctx context.Context, fromSchema, fromTable, toSchema, toTable string, columns []types.ColumnPair, rowCap int64) (bool, error)
}

// ConnectionFactory opens the Querier used for one capture run. Left as an
// interface so the core never imports a concrete SQL Server driver.
type ConnectionFactory interface {
	Open(ctx context.Context) (Querier, error)
}

// LiveOptions configures the live profile provider's degree of
// parallelism and per-table bounds.
type LiveOptions struct {
	Parallelism     int
	PerTableTimeout time.Duration
	RowCap          int64
}

// DefaultLiveOptions returns four workers, a thirty second per-table
// timeout, and no row cap.
func DefaultLiveOptions() LiveOptions {
	return LiveOptions{Parallelism: 4, PerTableTimeout: 30 * time.Second, RowCap: 0}
}

// tableTarget is one (schema, table) pair to profile, carrying the
// attribute/index/relationship declarations needed to know which probes to
// run.
type tableTarget struct {
	schema   string
	entity   types.Entity
	fromRels []types.Relationship
}

// CaptureLive scans model through factory, batching per-table probes with
// opts.Parallelism concurrent workers. A probe that times out is
// downgraded to ProbeUnknown, and one that errors otherwise to
// ProbeFailed; either is recorded as a CoverageAnomaly — never fatal. Only a failure to open the connection at all is a fatal error for
// the whole call (`profile.connection.failed`).
func CaptureLive(ctx context.Context, factory ConnectionFactory, model types.Model, opts LiveOptions, c clock.Clock) result.Result[CaptureOutput] {
	if opts.Parallelism <= 0 {
		return result.Err[CaptureOutput](result.NewError("profile.options.invalid", "parallelism must be positive"))
	}

	querier, err := factory.Open(ctx)
	if err != nil {
		return result.Err[CaptureOutput](result.NewError("profile.connection.failed", err.Error()))
	}

	targets := collectTargets(model)

	var mu sync.Mutex
	snapshot := types.ProfileSnapshot{}
	addColumn := func(p types.ColumnProfile) { mu.Lock(); snapshot.Columns = append(snapshot.Columns, p); mu.Unlock() }
	addUnique := func(p types.UniqueCandidateProfile) {
		mu.Lock()
		snapshot.UniqueCandidates = append(snapshot.UniqueCandidates, p)
		mu.Unlock()
	}
	addComposite := func(p types.CompositeUniqueCandidateProfile) {
		mu.Lock()
		snapshot.CompositeUniqueCandidates = append(snapshot.CompositeUniqueCandidates, p)
		mu.Unlock()
	}
	addFK := func(p types.ForeignKeyReality) { mu.Lock(); snapshot.ForeignKeys = append(snapshot.ForeignKeys, p); mu.Unlock() }
	addAnomaly := func(a types.CoverageAnomaly) {
		mu.Lock()
		snapshot.CoverageAnomalies = append(snapshot.CoverageAnomalies, a)
		mu.Unlock()
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(opts.Parallelism)

	// Captured once, before fan-out: the clock facade's Sequence variant is
	// not safe for concurrent calls, and every probe in one run shares a
	// single capture timestamp regardless.
	capturedAt := c.NowUTC()

	for _, target := range targets {
		target := target
		group.Go(func() error {
			tableCtx, cancel := context.WithTimeout(groupCtx, opts.PerTableTimeout)
			defer cancel()
			profileTable(tableCtx, querier, target, opts.RowCap, capturedAt, addColumn, addUnique, addComposite, addFK, addAnomaly)
			return nil
		})
	}
	// errgroup.Wait only returns an error if a worker returns one; workers
	// here never do, they downgrade failures to coverage anomalies instead.
	_ = group.Wait()

	warnings := make([]string, 0, len(snapshot.CoverageAnomalies))
	for _, a := range snapshot.CoverageAnomalies {
		warnings = append(warnings, fmt.Sprintf("Coverage anomaly at %s: %s", a.Coordinate.String(), a.Reason))
	}

	return result.Ok(CaptureOutput{Snapshot: snapshot, Warnings: warnings})
}

func collectTargets(model types.Model) []tableTarget {
	var targets []tableTarget
	for _, module := range model.Modules {
		for _, entity := range module.Entities {
			if entity.IsExternal || !entity.IsActive {
				continue
			}
			targets = append(targets, tableTarget{schema: entity.Schema, entity: entity, fromRels: entity.Relationships})
		}
	}
	return targets
}

func profileTable(
	ctx context.Context,
	q Querier,
	target tableTarget,
	rowCap int64,
	capturedAt time.Time,
	addColumn func(types.ColumnProfile),
	addUnique func(types.UniqueCandidateProfile),
	addComposite func(types.CompositeUniqueCandidateProfile),
	addFK func(types.ForeignKeyReality),
	addAnomaly func(types.CoverageAnomaly),
) {
	schema, table := target.schema, target.entity.PhysicalName

	for _, attr := range target.entity.Attributes {
		coord := types.Coordinate{Schema: schema, Table: table, Column: attr.PhysicalName}
		nullCount, rowCount, status, reason := runNullProbe(ctx, q, schema, table, attr.PhysicalName, rowCap)
		if status != types.ProbeSucceeded {
			addAnomaly(types.CoverageAnomaly{Coordinate: coord, Reason: reason})
		}
		addColumn(types.ColumnProfile{
			Coordinate: coord,
			RowCount:   rowCount,
			NullCount:  nullCount,
			Probe:      newProbe(status, capturedAt),
		})
	}

	for _, idx := range target.entity.Indexes {
		if !idx.IsUnique {
			continue
		}
		if len(idx.Columns) == 1 {
			coord := types.Coordinate{Schema: schema, Table: table, Column: idx.Columns[0], Index: idx.Name}
			dup, status, reason := runDuplicateProbe(ctx, q, schema, table, idx.Columns[0], rowCap)
			if status != types.ProbeSucceeded {
				addAnomaly(types.CoverageAnomaly{Coordinate: coord, Reason: reason})
			}
			addUnique(types.UniqueCandidateProfile{Coordinate: coord, HasDuplicate: dup, Probe: newProbe(status, capturedAt)})
			continue
		}
		coord := types.Coordinate{Schema: schema, Table: table, Index: idx.Name}
		dup, status, reason := runCompositeDuplicateProbe(ctx, q, schema, table, idx.Columns, rowCap)
		if status != types.ProbeSucceeded {
			addAnomaly(types.CoverageAnomaly{Coordinate: coord, Reason: reason})
		}
		addComposite(types.CompositeUniqueCandidateProfile{
			Schema: schema, Table: table, IndexName: idx.Name, Columns: idx.Columns,
			HasDuplicate: dup, Probe: newProbe(status, capturedAt),
		})
	}

	for _, rel := range target.fromRels {
		coord := types.Coordinate{Schema: schema, Table: table, Index: rel.Name}
		hasOrphan, status, reason := runOrphanProbe(ctx, q, schema, table, rel, rowCap)
		if status != types.ProbeSucceeded {
			addAnomaly(types.CoverageAnomaly{Coordinate: coord, Reason: reason})
		}
		addFK(types.ForeignKeyReality{
			FromTable: rel.FromTable, ToTable: rel.ToTable, RelationshipName: rel.Name,
			HasOrphan: hasOrphan, IsNoCheck: rel.IsNoCheck, HasDatabaseConstraint: rel.HasDatabaseConstraint,
			Probe: newProbe(status, capturedAt),
		})
	}
}

func newProbe(status types.ProbeStatus, capturedAt time.Time) types.Probe {
	return types.Probe{Status: status, CapturedAt: capturedAt}
}

func runNullProbe(ctx context.Context, q Querier, schema, table, column string, rowCap int64) (nullCount, rowCount int64, status types.ProbeStatus, reason string) {
	rowCount, err := q.CountRows(ctx, schema, table)
	if err != nil {
		return 0, 0, downgradeStatus(err), errReason(err)
	}
	nullCount, err = q.CountNulls(ctx, schema, table, column, rowCap)
	if err != nil {
		return 0, rowCount, downgradeStatus(err), errReason(err)
	}
	return nullCount, rowCount, types.ProbeSucceeded, ""
}

func runDuplicateProbe(ctx context.Context, q Querier, schema, table, column string, rowCap int64) (bool, types.ProbeStatus, string) {
	dup, err := q.HasDuplicate(ctx, schema, table, column, rowCap)
	if err != nil {
		return false, downgradeStatus(err), errReason(err)
	}
	return dup, types.ProbeSucceeded, ""
}

func runCompositeDuplicateProbe(ctx context.Context, q Querier, schema, table string, columns []string, rowCap int64) (bool, types.ProbeStatus, string) {
	dup, err := q.HasCompositeDuplicate(ctx, schema, table, columns, rowCap)
	if err != nil {
		return false, downgradeStatus(err), errReason(err)
	}
	return dup, types.ProbeSucceeded, ""
}

func runOrphanProbe(ctx context.Context, q Querier, schema, table string, rel types.Relationship, rowCap int64) (bool, types.ProbeStatus, string) {
	hasOrphan, err := q.HasOrphan(ctx, schema, table, schema, rel.ToTable, rel.Columns, rowCap)
	if err != nil {
		return false, downgradeStatus(err), errReason(err)
	}
	return hasOrphan, types.ProbeSucceeded, ""
}

func downgradeStatus(err error) types.ProbeStatus {
	if errors.Is(err, context.DeadlineExceeded) {
		return types.ProbeUnknown
	}
	return types.ProbeFailed
}

func errReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "probe timed out"
	}
	return fmt.Sprintf("probe failed: %v", err)
}
