// Package typemapping implements the type-mapping table loader: a
// TOML document mapping the logical model's declared attribute types to
// SQL Server column types, consumed by the relational model factory.
package typemapping

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Mapping is one declared-type -> SQL-type rule.
type Mapping struct {
	DeclaredType string `toml:"declaredType"`
	SQLType      string `toml:"sqlType"`
	Length       int    `toml:"length"`
}

// document is the raw TOML shape: a top-level array of tables under the
// "mapping" key.
type document struct {
	Mapping []Mapping `toml:"mapping"`
}

// Policy is the resolved type-mapping policy: declared type name (as
// written in the logical model) to its SQL rendering rule.
type Policy struct {
	byDeclaredType map[string]Mapping
}

// Load parses a type-mapping TOML file at path into a Policy.
func Load(path string) (Policy, error) {
	var doc document
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return Policy{}, fmt.Errorf("typemapping: decode %s: %w", path, err)
	}
	return fromDocument(doc), nil
}

// Parse builds a Policy from raw TOML bytes, for callers that already hold
// the file contents (e.g. after reading it through the file-system facade).
func Parse(data []byte) (Policy, error) {
	var doc document
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return Policy{}, fmt.Errorf("typemapping: decode: %w", err)
	}
	return fromDocument(doc), nil
}

func fromDocument(doc document) Policy {
	byType := make(map[string]Mapping, len(doc.Mapping))
	for _, m := range doc.Mapping {
		byType[m.DeclaredType] = m
	}
	return Policy{byDeclaredType: byType}
}

// Resolve returns the SQL rendering rule for a declared type. The second
// return value is false when the declared type has no entry; callers
// surface this as the error typeMapping.missing rather than silently
// defaulting.
func (p Policy) Resolve(declaredType string) (Mapping, bool) {
	m, ok := p.byDeclaredType[declaredType]
	return m, ok
}
