package trace

import (
	"context"

	"goa.design/clue/log"
)

// ClueLogger wraps goa.design/clue/log for step execution core logging.
type ClueLogger struct {
	fields []log.Fielder
}

// NewClueLogger constructs a Logger that delegates to goa.design/clue/log.
// The logger reads formatting and debug settings from the context (set via
// log.Context and log.WithFormat/log.WithDebug) in cmd/stepflowd's startup
// path.
func NewClueLogger() Logger {
	return ClueLogger{}
}

// Debug emits a debug-level log message with structured key-value pairs.
func (c ClueLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	log.Debug(ctx, c.fielders(msg, keyvals)...)
}

// Info emits an info-level log message with structured key-value pairs.
func (c ClueLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	log.Info(ctx, c.fielders(msg, keyvals)...)
}

// Warn emits a warning-level log message with structured key-value pairs.
func (c ClueLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	fielders := append(c.fielders(msg, keyvals), log.KV{K: "severity", V: "warning"})
	log.Warn(ctx, fielders...)
}

// Error emits an error-level log message with structured key-value pairs.
func (c ClueLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	log.Error(ctx, nil, c.fielders(msg, keyvals)...)
}

// With returns a Logger that attaches keyvals to every subsequent call.
func (c ClueLogger) With(keyvals ...any) Logger {
	return ClueLogger{fields: append(append([]log.Fielder{}, c.fields...), kvSliceToClue(keyvals)...)}
}

func (c ClueLogger) fielders(msg string, keyvals []any) []log.Fielder {
	out := make([]log.Fielder, 0, len(c.fields)+len(keyvals)/2+1)
	out = append(out, log.KV{K: "msg", V: msg})
	out = append(out, c.fields...)
	out = append(out, kvSliceToClue(keyvals)...)
	return out
}

// kvSliceToClue converts variadic key-value pairs (k1, v1, k2, v2, ...) into
// Clue fielders, dropping a trailing unpaired key rather than panicking.
func kvSliceToClue(keyvals []any) []log.Fielder {
	fielders := make([]log.Fielder, 0, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		fielders = append(fielders, log.KV{K: key, V: keyvals[i+1]})
	}
	return fielders
}
