package pipeline

import (
	"testing"
	"time"

	"github.com/outsystems-tools/ddl-tightener/internal/clock"
	"github.com/outsystems-tools/ddl-tightener/internal/fsfacade"
	"github.com/outsystems-tools/ddl-tightener/internal/tracing"
	"github.com/outsystems-tools/ddl-tightener/internal/typemapping"
)

const sampleModelJSON = `{"exportedAtUtc":"2026-01-01T00:00:00Z","modules":[{"name":"AppCore","isActive":true,"entities":[{"name":"Customer","physicalName":"Customer","db_schema":"dbo","isActive":true,"attributes":[{"name":"Id","physicalName":"Id","dataType":"Integer","isIdentifier":true,"isMandatory":true},{"name":"Email","physicalName":"Email","dataType":"Text","isMandatory":true}]}]}]}`
const sampleProfileJSON = `{"columns":[{"coordinate":{"schema":"dbo","table":"Customer","column":"Id"},"rowCount":10,"nullCount":0,"probe":{"status":"Succeeded"}},{"coordinate":{"schema":"dbo","table":"Customer","column":"Email"},"rowCount":10,"nullCount":0,"probe":{"status":"Succeeded"}}]}`

func newFixtureFS() *fsfacade.MemFS {
	fs := fsfacade.NewMemFS()
	fs.Seed("model.json", []byte(sampleModelJSON))
	fs.Seed("profile.json", []byte(sampleProfileJSON))
	return fs
}

func testDeps(fs fsfacade.FS) Dependencies {
	return Dependencies{
		FS:      fs,
		Clock:   clock.Fixed{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		Tracing: tracing.Disabled(),
	}
}

func sampleTypeMapping(t *testing.T) typemapping.Policy {
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
