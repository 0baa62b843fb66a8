// Package tracing implements the tracing spans: one OpenTelemetry
// span per pipeline stage (bootstrap, policy, relationalProjection,
// emission, cache), with a pluggable exporter (stdout by default for CLI
// runs, no-op when tracing is disabled). Tracing never fails the
// pipeline: span creation and export errors are swallowed.
//
// Spans come from a tracer held in Options (taken from an SDK provider),
// carry attribute tags, and record errors when they end; the process-wide
// otel provider is set to an SDK provider rather than left a global no-op.
package tracing

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/outsystems-tools/ddl-tightener/pipeline"

// Options carries the tracer a pipeline run reports spans to. The zero
// value is a safe no-op: Enabled is false and every Start call returns the
// incoming context unchanged with a no-op span.
type Options struct {
	Enabled bool
	tracer  trace.Tracer
}

// Disabled returns the no-op tracing configuration, the default for
// library callers that never opted into tracing.
func Disabled() Options {
	return Options{}
}

// NewStdout builds an Options that reports every span to w as indented
// JSON via the SDK's stdout exporter. Returns the Options and a shutdown
// func the caller must invoke (flushes buffered spans) when the run
// completes.
func NewStdout(w io.Writer) (Options, func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return Options{}, func(context.Context) error { return nil }, err
	}
	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	return Options{Enabled: true, tracer: provider.Tracer(instrumentationName)}, provider.Shutdown, nil
}

// StartStage starts a span named "ddltighten.<stage>" with the given
// attributes, or a no-op span when tracing is disabled. Callers should
// always defer EndStage(span, &err) so an eventual error is recorded.
func (o Options) StartStage(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if !o.Enabled || o.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return o.tracer.Start(ctx, "ddltighten."+stage, trace.WithAttributes(attrs...))
}

// EndStage records *errPtr on span, if non-nil, and ends it. Safe to call
// on a no-op span.
func EndStage(span trace.Span, errPtr *error) {
	if errPtr != nil && *errPtr != nil {
		span.RecordError(*errPtr)
		span.SetStatus(codes.Error, (*errPtr).Error())
	}
	span.End()
}

// StageAttr builds the common attribute set recorded on every stage span.
func StageAttr(pipelineName, requestID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("pipeline.name", pipelineName),
		attribute.String("pipeline.requestId", requestID),
	}
}

// CacheDecisionAttr is the additional attribute recorded on the cache
// stage's span once a decision is known.
func CacheDecisionAttr(decision string) attribute.KeyValue {
	return attribute.String("cache.decision", decision)
}

// The process-wide provider defaults to an exporterless SDK provider so
// any package that reaches for otel.Tracer directly (rather than
// threading Options through) still produces real span contexts.
func init() {
	otel.SetTracerProvider(sdktrace.NewTracerProvider())
}
