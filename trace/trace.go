// Package trace provides the flow-scoped trace context that threads through
// every event, state access, and stream mutation in the step execution core.
//
// A trace ID is minted once at the origin of a flow (an API request, a cron
// fire, or a manual emit) and propagated unchanged through every downstream
// emission. Logs, state reads/writes, and stream operations performed by a
// worker on behalf of that flow are tagged with the same trace ID by the
// parent, never by the worker itself.
package trace

import "github.com/google/uuid"

// NewID mints a new trace identifier for the origin of a flow.
func NewID() string {
	return uuid.NewString()
}

// Context carries the identifying information attached to every log line,
// state operation, and stream mutation performed within a single flow
// instance.
type Context struct {
	// TraceID scopes state and stream reads/writes to this flow instance.
	TraceID string
	// Flows lists the flow labels the triggering step declared; used for
	// grouping and trace tagging only, never for routing.
	Flows []string
	// Step is the name of the step currently executing under this trace.
	// Empty at the point of origin, before any step has run.
	Step string
}

// WithStep returns a copy of c tagged with the given step name, deriving a
// per-invocation context without mutating the caller's context.
func (c Context) WithStep(step string) Context {
	c.Step = step
	return c
}
