// Package executor implements the step executor: given a step and a
// triggering event, it selects a runner, spawns the worker process via the
// process supervisor, brokers the worker's RPC calls against the state
// store, stream registry, and event manager, and reports the terminal
// outcome. It is the largest component in the core: a small Execute entry
// point surrounded by telemetry and side-effect plumbing.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	gotrace "go.opentelemetry.io/otel/trace"

	"goa.design/stepflow/event"
	"goa.design/stepflow/process"
	"goa.design/stepflow/state"
	"goa.design/stepflow/step"
	"goa.design/stepflow/stream"
	"goa.design/stepflow/trace"
)

// Emitter is the event manager's Emit method, depended on as an interface so
// executor and event can wire to each other without an import cycle:
// event.Manager implements event.Executor (defined in that package) by
// calling back into Executor.Execute, while Executor calls back into
// event.Manager.Emit for every worker-issued emit.
type Emitter interface {
	Emit(ctx context.Context, ev event.Event, mode event.Mode, sourceFilePath string) error
}

// PayloadValidator validates a triggering event's data against a step's
// declared input schema before a worker is spawned for it.
type PayloadValidator interface {
	ValidatePayload(schemaRaw, payload json.RawMessage) error
}

// noopValidator accepts every payload, the default when no validator is
// installed.
type noopValidator struct{}

func (noopValidator) ValidatePayload(json.RawMessage, json.RawMessage) error { return nil }

// Executor is the step executor.
type Executor struct {
	runners   *RunnerRegistry
	state     state.Store
	streams   stream.Registry
	commander process.Commander
	emitter   Emitter
	validator PayloadValidator

	logger  trace.Logger
	tracer  trace.Tracer
	metrics trace.Metrics
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger installs the base logger; Execute derives a per-invocation
// child from it via Logger.With.
func WithLogger(l trace.Logger) Option { return func(e *Executor) { e.logger = l } }

// WithTracer installs the tracer used to span each invocation.
func WithTracer(t trace.Tracer) Option { return func(e *Executor) { e.tracer = t } }

// WithMetrics installs the metrics recorder used to count and time
// invocations.
func WithMetrics(m trace.Metrics) Option { return func(e *Executor) { e.metrics = m } }

// WithCommander overrides the process.Commander used to spawn workers,
// primarily for tests.
func WithCommander(c process.Commander) Option { return func(e *Executor) { e.commander = c } }

// WithPayloadValidator installs the validator used to check a triggering
// event's data against the step's declared bodySchema/inputSchema before a
// worker is spawned. Without one, payloads are never rejected.
func WithPayloadValidator(v PayloadValidator) Option {
	return func(e *Executor) { e.validator = v }
}

// New constructs an Executor. The Emitter must be supplied separately via
// SetEmitter once the event.Manager wrapping this Executor exists, since the
// two are mutually dependent at construction time.
func New(runners *RunnerRegistry, st state.Store, streams stream.Registry, opts ...Option) *Executor {
	e := &Executor{
		runners:   runners,
		state:     st,
		streams:   streams,
		validator: noopValidator{},
		logger:    trace.NewNoopLogger(),
		tracer:    trace.NewNoopTracer(),
		metrics:   trace.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetEmitter completes the two-phase wiring between Executor and
// event.Manager: construct the Executor, construct the Manager over it, then
// call SetEmitter(manager) before the first Execute.
func (e *Executor) SetEmitter(em Emitter) { e.emitter = em }

// Execute implements event.Executor: given a step and the event that
// triggered it, run one worker invocation end to end.
func (e *Executor) Execute(ctx context.Context, st *step.Step, ev event.Event) (execErr error) {
	logger := e.logger.With("step", st.Name(), "trace_id", ev.TraceID)
	ctx, span := e.tracer.Start(ctx, "executor.execute",
		gotrace.WithAttributes(
			attribute.String("step", st.Name()),
			attribute.String("trace_id", ev.TraceID),
		),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		e.metrics.RecordTimer("stepflow.executor.duration", time.Since(start), "step="+st.Name())
		outcome := "success"
		if execErr != nil {
			outcome = "failure"
		}
		e.metrics.IncCounter("stepflow.executor.invocations", 1, "step="+st.Name(), "outcome="+outcome)
	}()

	ext := filepath.Ext(st.FilePath)
	runner, ok := e.runners.RunnerFor(ext)
	if !ok {
		err := fmt.Errorf("%w: %q (step %q)", ErrRunnerNotFound, ext, st.Name())
		span.RecordError(err)
		span.SetStatus(codes.Error, "runner not found")
		return err
	}

	if schemaRaw := st.Config.Schema(); len(schemaRaw) > 0 {
		if err := e.validator.ValidatePayload(schemaRaw, ev.Data); err != nil {
			err = fmt.Errorf("%w: step %q: %v", ErrInvalidPayload, st.Name(), err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid payload")
			return err
		}
	}

	envelope := Envelope{
		Data:              ev.Data,
		Flows:             ev.Flows,
		TraceID:           ev.TraceID,
		ContextInFirstArg: st.Config.Kind == step.KindCron,
		Streams:           streamDecls(e.streams),
	}
	envelopeJSON, err := json.Marshal(envelope)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("executor: marshal envelope for step %q: %w", st.Name(), err)
	}

	sup := process.NewSupervisor(e.commander, newLogSink(logger))
	spec := process.Spec{Command: runner.Command, Args: runner.Args(st.FilePath, string(envelopeJSON))}

	channel, err := sup.Spawn(ctx, spec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "spawn failed")
		return fmt.Errorf("executor: spawn step %q: %w", st.Name(), err)
	}
	defer sup.Close()

	inv := &invocation{
		executor: e,
		step:     st,
		event:    ev,
		logger:   logger,
	}
	inv.installHandlers(sup)

	runErrCh := make(chan error, 1)
	go func() {
		err := channel.Run(ctx)
		if err != nil {
			// A protocol violation ends the invocation: kill the worker so
			// sup.Wait below does not block on a process that keeps running.
			_ = sup.Kill()
		}
		runErrCh <- err
	}()

	code, waitErr := sup.Wait()
	runErr := <-runErrCh

	if waitErr != nil {
		span.RecordError(waitErr)
		span.SetStatus(codes.Error, "spawn error")
		return fmt.Errorf("executor: step %q: %w", st.Name(), waitErr)
	}
	if code != 0 {
		err := fmt.Errorf("%w: step %q exited with code %d", ErrProcessExit, st.Name(), code)
		span.RecordError(err)
		span.SetStatus(codes.Error, "nonzero exit")
		return err
	}
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "protocol violation")
		_ = sup.Kill()
		return fmt.Errorf("executor: step %q: %w", st.Name(), runErr)
	}

	span.SetStatus(codes.Ok, "completed")
	if inv.hasResult {
		span.SetAttributes(attribute.String("result", string(inv.result)))
		logger.Info(ctx, "step completed", "result", string(inv.result))
	} else {
		logger.Info(ctx, "step completed")
	}
	return nil
}

func streamDecls(reg stream.Registry) []StreamDecl {
	if reg == nil {
		return nil
	}
	names := reg.Streams()
	out := make([]StreamDecl, len(names))
	for i, n := range names {
		out[i] = StreamDecl{Name: n}
	}
	return out
}
