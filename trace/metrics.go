package trace

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OtelMetrics wraps the global OpenTelemetry MeterProvider. Configure it via
// otel.SetMeterProvider (typically through clue.ConfigureOpenTelemetry)
// before the core starts executing steps.
type OtelMetrics struct {
	meter metric.Meter
}

// NewOtelMetrics constructs a Metrics recorder backed by the named OTEL
// meter.
func NewOtelMetrics(instrumentationName string) Metrics {
	return &OtelMetrics{meter: otel.Meter(instrumentationName)}
}

// IncCounter increments a counter metric by value.
func (m *OtelMetrics) IncCounter(name string, value float64, tags ...string) {
	counter, err := m.meter.Float64Counter(name)
	if err != nil {
		return
	}
	counter.Add(context.Background(), value, metric.WithAttributes(tagsToAttrs(tags)...))
}

// RecordTimer records a duration on a histogram metric, in seconds.
func (m *OtelMetrics) RecordTimer(name string, duration time.Duration, tags ...string) {
	histogram, err := m.meter.Float64Histogram(name)
	if err != nil {
		return
	}
	histogram.Record(context.Background(), duration.Seconds(), metric.WithAttributes(tagsToAttrs(tags)...))
}

// tagsToAttrs converts "key=value" tag strings to OTEL attributes, dropping
// any tag missing the separator rather than panicking.
func tagsToAttrs(tags []string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(tags))
	for _, t := range tags {
		k, v, ok := splitTag(t)
		if !ok {
			continue
		}
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

func splitTag(tag string) (key, value string, ok bool) {
	for i := 0; i < len(tag); i++ {
		if tag[i] == '=' {
			return tag[:i], tag[i+1:], true
		}
	}
	return "", "", false
}
