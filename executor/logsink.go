package executor

import (
	"context"

	"goa.design/stepflow/process"
	"goa.design/stepflow/trace"
)

// logSink adapts a trace.Logger to process.LogSink, routing a worker's
// classified stdout/stderr into the structured logger.
type logSink struct {
	logger trace.Logger
}

func newLogSink(l trace.Logger) process.LogSink { return logSink{logger: l} }

func (s logSink) Structured(fields map[string]any) {
	msg, _ := fields["msg"].(string)
	if msg == "" {
		msg = "worker log"
	}
	kv := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		if k == "msg" {
			continue
		}
		kv = append(kv, k, v)
	}
	s.logger.Info(context.Background(), msg, kv...)
}

func (s logSink) Text(severity, line string) {
	if severity == "error" {
		s.logger.Error(context.Background(), line)
		return
	}
	s.logger.Info(context.Background(), line)
}
