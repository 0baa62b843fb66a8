package tracing

import (
	"context"
	"errors"
	"testing"
)

func TestDisabledStartStageIsNoop(t *testing.T) {
	opts := Disabled()
	if opts.Enabled {
		t.Fatal("Disabled() should not be Enabled")
	}

	ctx, span := opts.StartStage(context.Background(), "bootstrap", StageAttr("BuildSsdt", "req-1")...)
	if ctx == nil {
		t.Fatal("StartStage returned a nil context")
	}

	err := errors.New("boom")
	EndStage(span, &err) // must not panic on a no-op span
}

func TestEndStageNilErrorIsSafe(t *testing.T) {
	_, span := Disabled().StartStage(context.Background(), "policy")
	EndStage(span, nil)
}

func TestStageAttrFields(t *testing.T) {
	attrs := StageAttr("DmmCompare", "req-42")
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if string(attrs[0].Key) != "pipeline.name" || attrs[0].Value.AsString() != "DmmCompare" {
		t.Errorf("unexpected first attribute: %+v", attrs[0])
	}
	if string(attrs[1].Key) != "pipeline.requestId" || attrs[1].Value.AsString() != "req-42" {
		t.Errorf("unexpected second attribute: %+v", attrs[1])
	}
}

func TestCacheDecisionAttr(t *testing.T) {
	attr := CacheDecisionAttr("Reused")
	if string(attr.Key) != "cache.decision" || attr.Value.AsString() != "Reused" {
		t.Errorf("unexpected attribute: %+v", attr)
	}
}

func TestNewStdoutEnablesTracing(t *testing.T) {
	opts, shutdown, err := NewStdout(new(noopWriter))
	if err != nil {
		t.Fatalf("NewStdout failed: %v", err)
	}
	if !opts.Enabled {
		t.Fatal("NewStdout should return Enabled tracing")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

type noopWriter struct{}

func (*noopWriter) Write(p []byte) (int, error) { return len(p), nil }
