package pipeline

import (
	"context"
	"testing"

	"github.com/outsystems-tools/ddl-tightener/internal/bootstrap"
	"github.com/outsystems-tools/ddl-tightener/internal/policy"
	"github.com/outsystems-tools/ddl-tightener/internal/types"
)

func TestRunAnalyzeTighteningReturnsDecisionsWithoutEmitting(t *testing.T) {
	fs := newFixtureFS()
	deps := testDeps(fs)

	req := TighteningAnalysisPipelineRequest{
		RequestID: "req-1",
		Bootstrap: bootstrap.Request{
			Model:   bootstrap.ModelSource{Path: "model.json"},
			Profile: bootstrap.ProfileSource{FixturePath: "profile.json"},
		},
		Policy: policy.Options{OnMissingEvidence: types.Conservative, RemediationMode: types.RemediationWithhold},
	}

	out := RunAnalyzeTightening(context.Background(), deps, req)
	if !out.IsOK() {
		t.Fatalf("expected success, got %v", out.Errors())
	}
	resp, _ := out.Value()

	if len(resp.DecisionReport.Counts) == 0 && len(resp.DecisionReport.Decisions.Nullability) == 0 {
		t.Fatal("expected at least one nullability decision in the report")
	}
	if entries, err := fs.Exists("out"); err == nil && entries {
		t.Fatal("analyze-tightening must not write emission artifacts")
	}

	lastStep := resp.Log[len(resp.Log)-1].Step
	if lastStep != "pipeline.completed" {
		t.Fatalf("expected last step pipeline.completed, got %q", lastStep)
	}
}

func TestRunAnalyzeTighteningFailsOnInvalidPolicyOptions(t *testing.T) {
	fs := newFixtureFS()
	deps := testDeps(fs)

	req := TighteningAnalysisPipelineRequest{
		RequestID: "req-1",
		Bootstrap: bootstrap.Request{
			Model:   bootstrap.ModelSource{Path: "model.json"},
			Profile: bootstrap.ProfileSource{FixturePath: "profile.json"},
		},
		Policy: policy.Options{OnMissingEvidence: "Bogus", RemediationMode: types.RemediationWithhold},
	}

	out := RunAnalyzeTightening(context.Background(), deps, req)
	if out.IsOK() {
		t.Fatal("expected failure for invalid policy options")
	}
}
