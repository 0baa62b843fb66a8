// Package types defines the shared data model consumed by every stage of
// the analysis-decision-emission pipeline: the logical model ingested from
// the low-code platform, the database profile captured separately, the
// tightening decisions synthesized from the two, and the relational model
// projected for emission.
package types

import "time"

// Coordinate identifies a physical location in the target database:
// a schema, a table, and optionally a column or index name within it.
type Coordinate struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Column string `json:"column,omitempty"`
	Index  string `json:"index,omitempty"`
}

// String renders the coordinate as "schema.table[.column|#index]" for logs
// and diagnostics. It is not used for equality; compare fields directly.
func (c Coordinate) String() string {
	s := c.Schema + "." + c.Table
	if c.Column != "" {
		s += "." + c.Column
	}
	if c.Index != "" {
		s += "#" + c.Index
	}
	return s
}

// Model is the exported logical data model: an ordered sequence of modules
// as read from the platform's model JSON.
type Model struct {
	ExportedAtUTC time.Time `json:"exportedAtUtc"`
	Modules       []Module  `json:"modules"`
}

// Module groups entities that were exported together.
type Module struct {
	Name     string   `json:"name"`
	IsSystem bool     `json:"isSystem"`
	IsActive bool     `json:"isActive"`
	Entities []Entity `json:"entities"`
}

// Entity is a logical table within a module.
type Entity struct {
	Name          string         `json:"name"`
	PhysicalName  string         `json:"physicalName"`
	Schema        string         `json:"db_schema"`
	Catalog       string         `json:"catalog,omitempty"`
	IsActive      bool           `json:"isActive"`
	IsStatic      bool           `json:"isStatic"`
	IsExternal    bool           `json:"isExternal"`
	Attributes    []Attribute    `json:"attributes"`
	Indexes       []Index        `json:"indexes"`
	Relationships []Relationship `json:"relationships"`
	Triggers      []Trigger      `json:"triggers"`
}

// ModuleQualifiedName returns "<module>.<entity>", the identifier that must
// be unique within a module per the model's uniqueness invariant.
func (e Entity) ModuleQualifiedName(moduleName string) string {
	return moduleName + "." + e.Name
}

// Reality captures what was observed about a declared attribute's physical
// column: its default, and whether it is a computed or present-but-inactive
// column. It carries no nullability observation; null counts live only in
// the profile snapshot's ColumnProfile.
type Reality struct {
	HasDefault           bool   `json:"hasDefault"`
	DefaultExpression    string `json:"defaultExpression,omitempty"`
	IsComputed           bool   `json:"isComputed"`
	IsPresentButInactive bool   `json:"isPresentButInactive"`
}

// Attribute is a logical column belonging to an entity.
type Attribute struct {
	Name         string   `json:"name"`
	PhysicalName string   `json:"physicalName"`
	DataType     string   `json:"dataType"`
	IsMandatory  bool     `json:"isMandatory"`
	IsIdentifier bool     `json:"isIdentifier"`
	IsAutoNumber bool     `json:"isAutoNumber"`
	IsActive     bool     `json:"isActive"`
	Reality      *Reality `json:"reality,omitempty"`
}

// Index is a declared index over an ordered set of columns.
type Index struct {
	Name           string   `json:"name"`
	IsUnique       bool     `json:"isUnique"`
	IsPlatformAuto bool     `json:"isPlatformAuto"`
	Columns        []string `json:"columns"`
}

// DeleteAction enumerates the referential actions a foreign key may declare.
type DeleteAction string

const (
	DeleteActionNoAction DeleteAction = "NoAction"
	DeleteActionCascade  DeleteAction = "Cascade"
	DeleteActionSetNull  DeleteAction = "SetNull"
)

// ColumnPair is one (from, to) column pairing within a multi-column
// foreign key, in declared order.
type ColumnPair struct {
	FromColumn string `json:"fromColumn"`
	ToColumn   string `json:"toColumn"`
}

// Relationship is a declared foreign key from this entity to another.
type Relationship struct {
	Name                  string       `json:"name"`
	FromTable             string       `json:"fromTable"`
	ToTable               string       `json:"toTable"`
	Columns               []ColumnPair `json:"columns"`
	DeleteAction          DeleteAction `json:"deleteAction"`
	HasDatabaseConstraint bool         `json:"hasDatabaseConstraint"`
	IsNoCheck             bool         `json:"isNoCheck"`
}

// Trigger is an opaque, named database trigger carried through to emission
// without interpretation by the policy or factory stages.
type Trigger struct {
	Name string `json:"name"`
	Body string `json:"body,omitempty"`
}
