package event

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	gotrace "go.opentelemetry.io/otel/trace"

	"goa.design/stepflow/step"
	"goa.design/stepflow/trace"
)

const metricEmissions = "stepflow.event.emissions"

// Subscribers is the subset of step.Registry the event manager needs: a
// lock-free lookup of the steps currently subscribing a topic.
type Subscribers interface {
	Subscribers(topic string) []*step.Step
}

// Executor is the step executor, invoked once per (subscriber, event) pair.
// The event manager logs execution failures in ModeAsync and returns the
// first one in ModeSync; per-subscriber failures never affect siblings.
type Executor interface {
	Execute(ctx context.Context, st *step.Step, ev Event) error
}

// Manager is the event manager.
type Manager struct {
	registry Subscribers
	executor Executor
	tracer   trace.Tracer
	logger   trace.Logger
	metrics  trace.Metrics

	wg sync.WaitGroup // outstanding async dispatches, for graceful shutdown
}

// Option configures a Manager.
type Option func(*Manager)

// WithTracer installs the tracer used to span each emission.
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) { m.tracer = t }
}

// WithLogger installs the logger used to report async dispatch failures.
func WithLogger(l trace.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics installs the metrics recorder used to count emissions.
func WithMetrics(mt trace.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// NewManager constructs a Manager over registry and executor.
func NewManager(registry Subscribers, executor Executor, opts ...Option) *Manager {
	m := &Manager{
		registry: registry,
		executor: executor,
		tracer:   trace.NewNoopTracer(),
		logger:   trace.NewNoopLogger(),
		metrics:  trace.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Emit dispatches ev to every step currently subscribing ev.Topic.
// sourceFilePath, when non-empty, tags the span for operator diagnostics
// (e.g. "this emission originated from a manual trigger in foo.step.py").
//
// In ModeAsync (the default caller mode), Emit returns once every subscriber
// has been scheduled; in ModeSync it blocks until all have completed, the
// mode required for the in-handler synchronous re-emit.
func (m *Manager) Emit(ctx context.Context, ev Event, mode Mode, sourceFilePath string) error {
	subs := m.registry.Subscribers(ev.Topic)

	ctx, span := m.tracer.Start(ctx, "event.emit",
		gotrace.WithAttributes(
			attribute.String("topic", ev.Topic),
			attribute.String("trace_id", ev.TraceID),
			attribute.String("mode", mode.String()),
			attribute.Int("subscriber_count", len(subs)),
		),
	)
	if sourceFilePath != "" {
		span.SetAttributes(attribute.String("source_file", sourceFilePath))
	}
	defer span.End()

	m.metrics.IncCounter(metricEmissions, 1, "topic="+ev.Topic, "mode="+mode.String())

	if len(subs) == 0 {
		return nil
	}

	if mode == ModeSync {
		return m.dispatchSync(ctx, subs, ev)
	}
	m.dispatchAsync(ctx, subs, ev)
	return nil
}

func (m *Manager) dispatchSync(ctx context.Context, subs []*step.Step, ev Event) error {
	var (
		wg      sync.WaitGroup
		errOnce sync.Once
		first   error
	)
	for _, st := range subs {
		if !st.Config.Executable() {
			continue
		}
		st := st
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.executor.Execute(ctx, st, ev); err != nil {
				errOnce.Do(func() { first = err })
			}
		}()
	}
	wg.Wait()
	return first
}

func (m *Manager) dispatchAsync(ctx context.Context, subs []*step.Step, ev Event) {
	detached := context.WithoutCancel(ctx)
	for _, st := range subs {
		if !st.Config.Executable() {
			continue
		}
		st := st
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := m.executor.Execute(detached, st, ev); err != nil {
				m.logger.Error(detached, "step execution failed",
					"step", st.Name(), "topic", ev.Topic, "trace_id", ev.TraceID, "error", err)
			}
		}()
	}
}

// Wait blocks until every async dispatch scheduled so far has completed.
// Intended for graceful shutdown and tests; not part of the emit path.
func (m *Manager) Wait() {
	m.wg.Wait()
}
