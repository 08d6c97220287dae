// Package step holds the canonical set of loaded steps: the topic graph,
// name uniqueness, and schema validation at load time. Registry publishes
// immutable snapshots so readers (the event manager) never block behind a
// writer.
package step

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"goa.design/stepflow/trace"
)

// SchemaValidator validates a raw JSON Schema document. The schema package
// implements this against github.com/santhosh-tekuri/jsonschema/v6; Registry
// only depends on the interface to avoid a cyclic import.
type SchemaValidator interface {
	Validate(raw json.RawMessage) error
}

// StreamLister is the subset of stream.Registry the step registry needs to
// answer GetStreams.
type StreamLister interface {
	Streams() []string
}

type snapshot struct {
	steps  map[string]*Step // by Config.Name()
	topics map[string][]*Step
}

func emptySnapshot() *snapshot {
	return &snapshot{steps: make(map[string]*Step), topics: make(map[string][]*Step)}
}

// Registry is the concurrency-safe step registry. The zero value is not
// usable; construct with New.
type Registry struct {
	mu        sync.Mutex // serializes writers; readers never take it
	current   atomic.Pointer[snapshot]
	validator SchemaValidator
	streams   StreamLister
	logger    trace.Logger
	strict    bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithSchemaValidator installs schema validation for bodySchema/inputSchema
// documents encountered during AddStep/UpdateStep.
func WithSchemaValidator(v SchemaValidator) Option {
	return func(r *Registry) { r.validator = v }
}

// WithStreamLister installs the stream registry backing GetStreams.
func WithStreamLister(sl StreamLister) Option {
	return func(r *Registry) { r.streams = sl }
}

// WithLogger installs a structured logger for diff diagnostics.
func WithLogger(l trace.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithStrictTopics rejects AddStep/UpdateStep outright when a step
// subscribes a topic with no emitter anywhere in the graph, instead of
// merely reporting it in the returned Diff. Off by default because
// externally triggered topics (HTTP, cron) are legitimately "subscribed,
// never emitted in-graph".
func WithStrictTopics() Option {
	return func(r *Registry) { r.strict = true }
}

// New returns an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{logger: trace.NewNoopLogger()}
	r.current.Store(emptySnapshot())
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Snapshot returns the current immutable view. Cheap: callers hold a
// reference, never the registry's lock.
func (r *Registry) Snapshot() (steps map[string]*Step, topics map[string][]*Step) {
	snap := r.current.Load()
	return snap.steps, snap.topics
}

// Subscribers returns the steps currently subscribing topic, or nil.
func (r *Registry) Subscribers(topic string) []*Step {
	snap := r.current.Load()
	return snap.topics[topic]
}

// AddStep validates and registers a new step, returning the post-mutation
// diff for operator visibility.
func (r *Registry) AddStep(_ context.Context, st *Step) (Diff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.current.Load()
	if _, exists := prev.steps[st.Name()]; exists {
		return Diff{}, fmt.Errorf("%w: %q", ErrDuplicateName, st.Name())
	}
	return r.commitLocked(withStep(prev, st))
}

// RemoveStep drops a step by name. After it returns, no subsequent emit
// invokes the removed step.
func (r *Registry) RemoveStep(_ context.Context, name string) (Diff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.current.Load()
	if _, exists := prev.steps[name]; !exists {
		return Diff{}, fmt.Errorf("%w: %q", ErrStepNotFound, name)
	}
	next := emptySnapshot()
	for n, s := range prev.steps {
		if n == name {
			continue
		}
		next.steps[n] = s
	}
	rebuildTopics(next)
	return r.commitLocked(next)
}

// UpdateStep atomically replaces a previously registered step, enabling hot
// reload: readers observe the remove and add as a single swap, never a
// window with the step missing.
func (r *Registry) UpdateStep(_ context.Context, st *Step) (Diff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.current.Load()
	if _, exists := prev.steps[st.Name()]; !exists {
		return Diff{}, fmt.Errorf("%w: %q", ErrStepNotFound, st.Name())
	}
	without := emptySnapshot()
	for n, s := range prev.steps {
		if n == st.Name() {
			continue
		}
		without.steps[n] = s
	}
	return r.commitLocked(withStep(without, st))
}

// GetStreams returns the names of all streams currently declared, via the
// injected StreamLister.
func (r *Registry) GetStreams() []string {
	if r.streams == nil {
		return nil
	}
	return r.streams.Streams()
}

func withStep(snap *snapshot, st *Step) *snapshot {
	next := emptySnapshot()
	for n, s := range snap.steps {
		next.steps[n] = s
	}
	next.steps[st.Name()] = st
	rebuildTopics(next)
	return next
}

func rebuildTopics(snap *snapshot) {
	for _, st := range snap.steps {
		for _, topic := range st.Config.Subscribes() {
			snap.topics[topic] = append(snap.topics[topic], st)
		}
	}
}

// commitLocked validates next, publishes it as current on success, and
// returns its diff. Must be called with r.mu held.
func (r *Registry) commitLocked(next *snapshot) (Diff, error) {
	if err := r.validate(next); err != nil {
		return Diff{}, err
	}
	diff := diffSnapshot(next)
	if r.strict && len(diff.DanglingSubscriptions) > 0 {
		return Diff{}, fmt.Errorf("%w: %v", ErrUnknownTopic, diff.DanglingSubscriptions)
	}
	r.current.Store(next)
	if !diff.Empty() {
		r.logger.Info(context.Background(), diff.String())
	}
	return diff, nil
}

func (r *Registry) validate(snap *snapshot) error {
	for _, st := range snap.steps {
		if st.Name() == "" {
			return fmt.Errorf("%w: step at %s has no name", ErrDuplicateName, st.FilePath)
		}
		for _, e := range st.Config.Emits() {
			if e.Topic == "" {
				return fmt.Errorf("%w: step %q", ErrEmptyTopic, st.Name())
			}
		}
		for _, t := range st.Config.Subscribes() {
			if t == "" {
				return fmt.Errorf("%w: step %q", ErrEmptyTopic, st.Name())
			}
		}
		if err := r.validateSchemas(st); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) validateSchemas(st *Step) error {
	if r.validator == nil {
		return nil
	}
	switch st.Config.Kind {
	case KindAPI:
		if len(st.Config.API.BodySchema) > 0 {
			if err := r.validator.Validate(st.Config.API.BodySchema); err != nil {
				return fmt.Errorf("%w: step %q bodySchema: %v", ErrInvalidSchema, st.Name(), err)
			}
		}
	case KindEvent:
		if len(st.Config.Event.InputSchema) > 0 {
			if err := r.validator.Validate(st.Config.Event.InputSchema); err != nil {
				return fmt.Errorf("%w: step %q inputSchema: %v", ErrInvalidSchema, st.Name(), err)
			}
		}
	}
	return nil
}
