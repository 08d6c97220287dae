package trace

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	gotrace "go.opentelemetry.io/otel/trace"
)

type (
	// Logger captures structured logging used throughout the step execution
	// core. Implementations typically delegate to Clue but the interface is
	// intentionally small so tests can provide lightweight stubs.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)

		// With returns a Logger that attaches the given key-value pairs to
		// every subsequent call, used by the executor to derive a per-step,
		// per-trace child logger.
		With(keyvals ...any) Logger
	}

	// Tracer abstracts span creation so runtime code stays agnostic of the
	// underlying OpenTelemetry provider.
	Tracer interface {
		Start(ctx context.Context, name string, opts ...gotrace.SpanStartOption) (context.Context, Span)
	}

	// Span represents an in-flight tracing span for a single step invocation
	// or event emission.
	Span interface {
		End()
		SetAttributes(kv ...attribute.KeyValue)
		SetStatus(code codes.Code, description string)
		RecordError(err error)
	}

	// Metrics records counters and timers for the executor and event
	// manager.
	Metrics interface {
		IncCounter(name string, value float64, tags ...string)
		RecordTimer(name string, duration time.Duration, tags ...string)
	}
)

// Fields is a convenience alias used when building keyvals programmatically
// (as opposed to inline variadic calls).
type Fields map[string]any

// KeyVals flattens Fields into the (k1, v1, k2, v2, ...) shape accepted by
// Logger methods. Iteration order is unspecified, matching map semantics;
// callers needing stable ordering should pass keyvals inline instead.
func (f Fields) KeyVals() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
