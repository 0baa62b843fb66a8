package profile

import (
	"testing"

	"github.com/outsystems-tools/ddl-tightener/internal/fsfacade"
)

func TestCaptureFixtureParsesSnapshot(t *testing.T) {
	fs := fsfacade.NewMemFS()
	fs.Seed("profile.json", []byte(`{"columns":[{"coordinate":{"schema":"dbo","table":"Customer","column":"Email"},"rowCount":100,"nullCount":0,"probe":{"status":"Succeeded"}}]}`))

	r := CaptureFixture(fs, "profile.json")
	if !r.IsOK() {
		t.Fatalf("expected success, got %v", r.Errors())
	}
	out, _ := r.Value()
	if len(out.Snapshot.Columns) != 1 {
		t.Fatalf("expected 1 column, got %d", len(out.Snapshot.Columns))
	}
}

func TestCaptureFixtureFailsWhenMissing(t *testing.T) {
	fs := fsfacade.NewMemFS()
	r := CaptureFixture(fs, "missing.json")
	if r.IsOK() {
		t.Fatal("expected failure for missing fixture")
	}
	if r.Errors()[0].Code != "profile.fixture.notFound" {
		t.Fatalf("unexpected error code: %s", r.Errors()[0].Code)
	}
}

func TestCaptureFixtureFailsOnMalformedJSON(t *testing.T) {
	fs := fsfacade.NewMemFS()
	fs.Seed("profile.json", []byte(`{not json`))
	r := CaptureFixture(fs, "profile.json")
	if r.IsOK() {
		t.Fatal("expected failure for malformed fixture")
	}
	if r.Errors()[0].Code != "profile.fixture.malformed" {
		t.Fatalf("unexpected error code: %s", r.Errors()[0].Code)
	}
}
