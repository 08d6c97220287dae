package trace

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	gotrace "go.opentelemetry.io/otel/trace"
)

type (
	// NoopLogger discards all log messages. Used by tests and by hosts that
	// have not wired a logging transport.
	NoopLogger struct{}

	// NoopTracer creates no-op spans.
	NoopTracer struct{}

	// NoopMetrics discards all recorded metrics.
	NoopMetrics struct{}

	noopSpan struct{}
)

// NewNoopLogger constructs a Logger that discards all log messages.
func NewNoopLogger() Logger { return NoopLogger{} }

// NewNoopTracer constructs a Tracer that creates no-op spans.
func NewNoopTracer() Tracer { return NoopTracer{} }

// NewNoopMetrics constructs a Metrics recorder that discards everything.
func NewNoopMetrics() Metrics { return NoopMetrics{} }

// IncCounter discards the counter increment.
func (NoopMetrics) IncCounter(string, float64, ...string) {}

// RecordTimer discards the timer recording.
func (NoopMetrics) RecordTimer(string, time.Duration, ...string) {}

// Debug discards the log message.
func (NoopLogger) Debug(context.Context, string, ...any) {}

// Info discards the log message.
func (NoopLogger) Info(context.Context, string, ...any) {}

// Warn discards the log message.
func (NoopLogger) Warn(context.Context, string, ...any) {}

// Error discards the log message.
func (NoopLogger) Error(context.Context, string, ...any) {}

// With returns the receiver unchanged; there is no state to accumulate.
func (n NoopLogger) With(...any) Logger { return n }

// Start returns a no-op span without modifying the context.
func (NoopTracer) Start(ctx context.Context, _ string, _ ...gotrace.SpanStartOption) (context.Context, Span) {
	return ctx, noopSpan{}
}

func (noopSpan) End()                                {}
func (noopSpan) SetAttributes(...attribute.KeyValue) {}
func (noopSpan) SetStatus(codes.Code, string)        {}
func (noopSpan) RecordError(error)                   {}
