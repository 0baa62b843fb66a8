// Package profile implements the profile provider: a fixture variant
// that reads a captured snapshot from disk and a live variant that scans a
// relational database through an injected connection factory, both behind
// a common (snapshot, warnings) return shape.
package profile

import (
	"encoding/json"
	"fmt"

	"github.com/outsystems-tools/ddl-tightener/internal/fsfacade"
	"github.com/outsystems-tools/ddl-tightener/internal/result"
	"github.com/outsystems-tools/ddl-tightener/internal/types"
)

// CaptureOutput is the common result shape returned by every profile
// provider variant: the snapshot plus any non-fatal warnings.
type CaptureOutput struct {
	Snapshot types.ProfileSnapshot
	Warnings []string
}

// CaptureFixture reads a JSON-encoded ProfileSnapshot from path through
// the file-system facade. A missing file or malformed JSON is fatal
// (`profile.fixture.notFound` / `profile.fixture.malformed`) — unlike the
// model's schema validator, a profile fixture has no best-effort partial
// mode, since the remainder of the pipeline treats its absence as a
// decision-affecting evidence gap, not a cosmetic defect.
func CaptureFixture(fs fsfacade.FS, path string) result.Result[CaptureOutput] {
	data, err := fs.ReadFile(path)
	if err != nil {
		return result.Err[CaptureOutput](result.NewError("profile.fixture.notFound",
			fmt.Sprintf("profile fixture %q not found: %v", path, err)).WithDetail("path", path))
	}

	var snapshot types.ProfileSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return result.Err[CaptureOutput](result.NewError("profile.fixture.malformed",
			fmt.Sprintf("profile fixture %q is malformed: %v", path, err)).WithDetail("path", path))
	}

	return result.Ok(CaptureOutput{Snapshot: snapshot})
}
