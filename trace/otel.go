package trace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	gotrace "go.opentelemetry.io/otel/trace"
)

// OtelTracer wraps the global OpenTelemetry TracerProvider. Configure it via
// otel.SetTracerProvider (typically through clue.ConfigureOpenTelemetry or
// OTEL_EXPORTER_OTLP_ENDPOINT) before the core starts spawning steps.
type OtelTracer struct {
	tracer gotrace.Tracer
}

// NewOtelTracer constructs a Tracer backed by the named OTEL tracer.
func NewOtelTracer(instrumentationName string) Tracer {
	return &OtelTracer{tracer: otel.Tracer(instrumentationName)}
}

// Start creates a new span, returning a context carrying it and a handle for
// ending/annotating it.
func (t *OtelTracer) Start(ctx context.Context, name string, opts ...gotrace.SpanStartOption) (context.Context, Span) {
	newCtx, span := t.tracer.Start(ctx, name, opts...)
	return newCtx, &otelSpan{span: span}
}

type otelSpan struct {
	span gotrace.Span
}

func (s *otelSpan) End()                                           { s.span.End() }
func (s *otelSpan) SetAttributes(kv ...attribute.KeyValue)         { s.span.SetAttributes(kv...) }
func (s *otelSpan) SetStatus(code codes.Code, description string)  { s.span.SetStatus(code, description) }
func (s *otelSpan) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}
