package types

import "time"

// ProbeStatus is the outcome of a single evidence probe against the
// database. A probe that did not complete (timed out, errored, or was
// skipped under a row cap) reports Unknown or Failed, never a guessed
// value; decisions downstream treat both the same way unless the policy
// toggle says otherwise.
type ProbeStatus string

const (
	ProbeSucceeded ProbeStatus = "Succeeded"
	ProbeFailed    ProbeStatus = "Failed"
	ProbeUnknown   ProbeStatus = "Unknown"
)

// Probe carries the common metadata every profile measurement records
// alongside its outcome.
type Probe struct {
	Status       ProbeStatus `json:"status"`
	SamplingSize int64       `json:"samplingSize,omitempty"`
	CapturedAt   time.Time   `json:"capturedAt"`
}

// ColumnProfile is the observed row/null counts for one column.
type ColumnProfile struct {
	Coordinate Coordinate `json:"coordinate"`
	RowCount   int64      `json:"rowCount"`
	NullCount  int64      `json:"nullCount"`
	Probe      Probe      `json:"probe"`
}

// UniqueCandidateProfile is the observed duplicate-check outcome for a
// single-column unique index candidate.
type UniqueCandidateProfile struct {
	Coordinate   Coordinate `json:"coordinate"`
	HasDuplicate bool       `json:"hasDuplicate"`
	Probe        Probe      `json:"probe"`
}

// CompositeUniqueCandidateProfile is the observed duplicate-check outcome
// for a multi-column unique index candidate.
type CompositeUniqueCandidateProfile struct {
	Schema       string   `json:"schema"`
	Table        string   `json:"table"`
	IndexName    string   `json:"indexName"`
	Columns      []string `json:"columns"`
	HasDuplicate bool     `json:"hasDuplicate"`
	Probe        Probe    `json:"probe"`
}

// ForeignKeyReality is the observed orphan-row and constraint-presence
// outcome for one declared relationship.
type ForeignKeyReality struct {
	FromTable             string `json:"fromTable"`
	ToTable               string `json:"toTable"`
	RelationshipName      string `json:"relationshipName"`
	HasOrphan             bool   `json:"hasOrphan"`
	IsNoCheck             bool   `json:"isNoCheck"`
	HasDatabaseConstraint bool   `json:"hasDatabaseConstraint"`
	Probe                 Probe  `json:"probe"`
}

// CoverageAnomaly explains why a probe did not succeed: a table-scan
// timeout, a row cap exceeded, or a connection error. Coverage anomalies
// are never fatal; they downgrade the dependent decision to its
// missing-evidence branch.
type CoverageAnomaly struct {
	Coordinate Coordinate `json:"coordinate"`
	Reason     string     `json:"reason"`
	Detail     string     `json:"detail,omitempty"`
}

// ProfileSnapshot is the full captured profile for one run: every probe
// result plus the anomalies that explain gaps in coverage.
type ProfileSnapshot struct {
	Columns                   []ColumnProfile                   `json:"columns"`
	UniqueCandidates          []UniqueCandidateProfile          `json:"uniqueCandidates"`
	CompositeUniqueCandidates []CompositeUniqueCandidateProfile `json:"compositeUniqueCandidates"`
	ForeignKeys               []ForeignKeyReality               `json:"foreignKeys"`
	CoverageAnomalies         []CoverageAnomaly                 `json:"coverageAnomalies"`
}

// ColumnByCoordinate returns the column profile at the coordinate, if any.
func (s *ProfileSnapshot) ColumnByCoordinate(c Coordinate) (ColumnProfile, bool) {
	for _, cp := range s.Columns {
		if cp.Coordinate == c {
			return cp, true
		}
	}
	return ColumnProfile{}, false
}

// UniqueCandidateByCoordinate returns the single-column uniqueness probe
// at the coordinate, if any.
func (s *ProfileSnapshot) UniqueCandidateByCoordinate(c Coordinate) (UniqueCandidateProfile, bool) {
	for _, u := range s.UniqueCandidates {
		if u.Coordinate == c {
			return u, true
		}
	}
	return UniqueCandidateProfile{}, false
}

// CompositeCandidate returns the composite-uniqueness probe matching the
// schema/table/index, if any.
func (s *ProfileSnapshot) CompositeCandidate(schema, table, index string) (CompositeUniqueCandidateProfile, bool) {
	for _, c := range s.CompositeUniqueCandidates {
		if c.Schema == schema && c.Table == table && c.IndexName == index {
			return c, true
		}
	}
	return CompositeUniqueCandidateProfile{}, false
}

// ForeignKeyRealityFor returns the FK reality matching fromTable/toTable/name.
func (s *ProfileSnapshot) ForeignKeyRealityFor(fromTable, toTable, name string) (ForeignKeyReality, bool) {
	for _, fk := range s.ForeignKeys {
		if fk.FromTable == fromTable && fk.ToTable == toTable && fk.RelationshipName == name {
			return fk, true
		}
	}
	return ForeignKeyReality{}, false
}
