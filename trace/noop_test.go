package trace

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNoopLoggerWithReturnsUsableLogger(t *testing.T) {
	l := NewNoopLogger()
	child := l.With("step", "s1")
	require.NotPanics(t, func() {
		child.Info(context.Background(), "hello", "k", "v")
	})
}

func TestNoopTracerStartLeavesContextUnchanged(t *testing.T) {
	tr := NewNoopTracer()
	ctx := context.Background()
	newCtx, span := tr.Start(ctx, "op")
	require.Equal(t, ctx, newCtx)
	require.NotPanics(t, span.End)
}

func TestNoopMetricsDiscardsSilently(t *testing.T) {
	m := NewNoopMetrics()
	require.NotPanics(t, func() {
		m.IncCounter("x", 1, "a=b")
		m.RecordTimer("y", time.Second)
	})
}
