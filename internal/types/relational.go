package types

// Column is a physical column in the projected relational model.
type Column struct {
	PhysicalName      string   `json:"physicalName"`
	SQLType           string   `json:"sqlType"`
	Length            int      `json:"length,omitempty"`
	Precision         int      `json:"precision,omitempty"`
	Scale             int      `json:"scale,omitempty"`
	Collation         string   `json:"collation,omitempty"`
	IsNullable        bool     `json:"isNullable"`
	IsIdentity        bool     `json:"isIdentity"`
	DefaultExpression string   `json:"defaultExpression,omitempty"`
	CheckConstraints  []string `json:"checkConstraints,omitempty"`
	Description       string   `json:"description,omitempty"`
}

// RelationalIndex is a physical index in the projected relational model.
type RelationalIndex struct {
	Name           string   `json:"name"`
	IsUnique       bool     `json:"isUnique"`
	IsPrimary      bool     `json:"isPrimary"`
	IsPlatformAuto bool     `json:"isPlatformAuto"`
	Columns        []string `json:"columns"`
}

// RelationalForeignKey is a physical foreign key in the projected
// relational model.
type RelationalForeignKey struct {
	Name              string       `json:"name"`
	Columns           []ColumnPair `json:"columns"`
	ReferencedModule  string       `json:"referencedModule"`
	ReferencedTable   string       `json:"referencedTable"`
	ReferencedSchema  string       `json:"referencedSchema"`
	ReferencedColumns []string     `json:"referencedColumns"`
	DeleteAction      DeleteAction `json:"deleteAction"`
	IsNoCheck         bool         `json:"isNoCheck"`
}

// Table is one physical table in the projected relational model.
type Table struct {
	Module       string                 `json:"module"`
	Schema       string                 `json:"schema"`
	PhysicalName string                 `json:"physicalName"`
	LogicalName  string                 `json:"logicalName"`
	Description  string                 `json:"description,omitempty"`
	Columns      []Column               `json:"columns"`
	Indexes      []RelationalIndex      `json:"indexes"`
	ForeignKeys  []RelationalForeignKey `json:"foreignKeys"`
	Triggers     []Trigger              `json:"triggers"`
}

// UnsupportedConstruct records a declared construct that the relational
// factory could not project, with a human-readable explanation.
type UnsupportedConstruct struct {
	Coordinate Coordinate `json:"coordinate"`
	Message    string     `json:"message"`
}

// EmissionCoverage summarizes how much of the declared model made it into
// the relational projection.
type EmissionCoverage struct {
	ColumnsDeclared     int                    `json:"columnsDeclared"`
	ColumnsEmitted      int                    `json:"columnsEmitted"`
	ConstraintsDeclared int                    `json:"constraintsDeclared"`
	ConstraintsEmitted  int                    `json:"constraintsEmitted"`
	Unsupported         []UnsupportedConstruct `json:"unsupported"`
}

// RelationalModel is the single source of truth for emission: every table
// the pipeline will write out, in deterministic order.
type RelationalModel struct {
	Tables   []Table          `json:"tables"`
	Coverage EmissionCoverage `json:"coverage"`
}
