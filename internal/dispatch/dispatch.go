// Package dispatch implements the command dispatcher: a
// process-scoped registry mapping a request type to a handler, so
// callers never switch on concrete request types themselves. Response
// payloads are boxed to `any` because the registry is type-indexed, not
// generic over a single request/response pair.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/outsystems-tools/ddl-tightener/internal/pipeline"
	"github.com/outsystems-tools/ddl-tightener/internal/result"
)

// RequestType names one of the five pipeline entry points a handler can
// be registered under.
type RequestType string

const (
	BuildSsdt         RequestType = "BuildSsdt"
	DmmCompare        RequestType = "DmmCompare"
	ExtractModel      RequestType = "ExtractModel"
	CaptureProfile    RequestType = "CaptureProfile"
	AnalyzeTightening RequestType = "AnalyzeTightening"
)

// Handler executes one registered request type. It receives the request
// boxed as `any` and is responsible for type-asserting it back to its
// concrete *Request struct.
type Handler func(ctx context.Context, request any) result.Result[any]

// Registry is a type-indexed map (RequestType) -> Handler: tagged
// variants plus a registry, not open inheritance.
type Registry struct {
	mu       sync.RWMutex
	handlers map[RequestType]Handler
}

// NewRegistry creates an empty dispatcher.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[RequestType]Handler)}
}

// Register installs the handler for a request type. Registering the
// same type twice replaces the previous handler; callers that want
// strict uniqueness should check Handlers() first.
func (r *Registry) Register(t RequestType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = h
}

// Handlers returns the set of currently registered request types.
func (r *Registry) Handlers() []RequestType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RequestType, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	return out
}

// Dispatch routes request to the handler registered for t, returning a
// structured error for an unregistered type rather than panicking.
func (r *Registry) Dispatch(ctx context.Context, t RequestType, request any) result.Result[any] {
	r.mu.RLock()
	h, ok := r.handlers[t]
	r.mu.RUnlock()
	if !ok {
		rec := result.NewError("dispatch.unregistered", fmt.Sprintf("no handler registered for request type %q", t)).
			WithDetail("requestType", string(t))
		return result.Err[any](rec)
	}
	return h(ctx, request)
}

// NewDefaultRegistry wires the five pipeline entry points as
// handlers under their canonical request types, sharing the same
// Dependencies across all of them. This is the registry cmd/ddltighten
// builds at startup.
func NewDefaultRegistry(deps pipeline.Dependencies) *Registry {
	reg := NewRegistry()

	reg.Register(BuildSsdt, func(ctx context.Context, request any) result.Result[any] {
		req, ok := request.(pipeline.BuildSsdtRequest)
		if !ok {
			return mismatch(BuildSsdt, request)
		}
		return box(pipeline.RunBuildSsdt(ctx, deps, req))
	})

	reg.Register(DmmCompare, func(ctx context.Context, request any) result.Result[any] {
		req, ok := request.(pipeline.DmmComparePipelineRequest)
		if !ok {
			return mismatch(DmmCompare, request)
		}
		return box(pipeline.RunDmmCompare(ctx, deps, req))
	})

	reg.Register(ExtractModel, func(ctx context.Context, request any) result.Result[any] {
		req, ok := request.(pipeline.ExtractModelPipelineRequest)
		if !ok {
			return mismatch(ExtractModel, request)
		}
		return box(pipeline.RunExtractModel(ctx, deps, req))
	})

	reg.Register(CaptureProfile, func(ctx context.Context, request any) result.Result[any] {
		req, ok := request.(pipeline.CaptureProfilePipelineRequest)
		if !ok {
			return mismatch(CaptureProfile, request)
		}
		return box(pipeline.RunCaptureProfile(ctx, deps, req))
	})

	reg.Register(AnalyzeTightening, func(ctx context.Context, request any) result.Result[any] {
		req, ok := request.(pipeline.TighteningAnalysisPipelineRequest)
		if !ok {
			return mismatch(AnalyzeTightening, request)
		}
		return box(pipeline.RunAnalyzeTightening(ctx, deps, req))
	})

	return reg
}

func mismatch(t RequestType, request any) result.Result[any] {
	rec := result.NewError("dispatch.requestType.mismatch", fmt.Sprintf("handler for %q received a %T", t, request))
	return result.Err[any](rec)
}

// box erases a typed pipeline result down to `any` so every handler can
// share the single Handler signature; the concrete response type is
// still recoverable by the caller via a type assertion on the value.
func box[T any](r result.Result[T]) result.Result[any] {
	if !r.IsOK() {
		return result.Err[any](r.Errors()...)
	}
	v, _ := r.Value()
	return result.Ok[any](v)
}
