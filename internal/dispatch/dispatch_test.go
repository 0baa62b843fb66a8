package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/outsystems-tools/ddl-tightener/internal/clock"
	"github.com/outsystems-tools/ddl-tightener/internal/fsfacade"
	"github.com/outsystems-tools/ddl-tightener/internal/pipeline"
	"github.com/outsystems-tools/ddl-tightener/internal/result"
	"github.com/outsystems-tools/ddl-tightener/internal/tracing"
)

func defaultDeps() pipeline.Dependencies {
	return pipeline.Dependencies{
		FS:      fsfacade.NewMemFS(),
		Clock:   clock.Fixed{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		Tracing: tracing.Disabled(),
	}
}

func TestDispatchUnregisteredRequestType(t *testing.T) {
	reg := NewRegistry()

	out := reg.Dispatch(context.Background(), BuildSsdt, struct{}{})
	if out.IsOK() {
		t.Fatal("expected unregistered request type to fail")
	}
	if got := out.Errors()[0].Code; got != "dispatch.unregistered" {
		t.Errorf("expected code dispatch.unregistered, got %q", got)
	}
}

func TestDispatchRoutesToRegisteredHandler(t *testing.T) {
	reg := NewRegistry()
	reg.Register(BuildSsdt, func(ctx context.Context, request any) result.Result[any] {
		return result.Ok[any]("handled")
	})

	out := reg.Dispatch(context.Background(), BuildSsdt, nil)
	if !out.IsOK() {
		t.Fatalf("expected success, got errors: %v", out.Errors())
	}
	v, _ := out.Value()
	if v != "handled" {
		t.Errorf("expected %q, got %v", "handled", v)
	}
}

func TestDispatchHandlersLists(t *testing.T) {
	reg := NewRegistry()
	reg.Register(BuildSsdt, func(ctx context.Context, request any) result.Result[any] {
		return result.Ok[any](nil)
	})
	reg.Register(DmmCompare, func(ctx context.Context, request any) result.Result[any] {
		return result.Ok[any](nil)
	})

	handlers := reg.Handlers()
	if len(handlers) != 2 {
		t.Fatalf("expected 2 registered handlers, got %d", len(handlers))
	}
}

func TestDefaultRegistryRequestTypeMismatch(t *testing.T) {
	reg := NewDefaultRegistry(defaultDeps())

	out := reg.Dispatch(context.Background(), BuildSsdt, "not a BuildSsdtRequest")
	if out.IsOK() {
		t.Fatal("expected a type mismatch to fail")
	}
	if got := out.Errors()[0].Code; got != "dispatch.requestType.mismatch" {
		t.Errorf("expected code dispatch.requestType.mismatch, got %q", got)
	}
}
