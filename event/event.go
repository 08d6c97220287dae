// Package event implements the event manager: it resolves the subscribers of
// an emitted topic from the step registry and dispatches the step executor
// for each, fanning out concurrently with no cross-subscriber ordering
// guarantee.
package event

import (
	"encoding/json"

	"goa.design/stepflow/trace"
)

// Event is a single emission travelling through the topic graph. TraceID is
// assigned once at the flow's origin and propagated unchanged through every
// downstream emission; a worker cannot forge it because the executor
// ignores any traceId a handler supplies on emit.
type Event struct {
	Topic   string
	Data    json.RawMessage
	TraceID string
	Flows   []string
	Logger  trace.Logger
}

// Mode selects how Manager.Emit reports completion.
type Mode int

const (
	// ModeAsync schedules every subscriber and returns once scheduling (not
	// execution) has completed. This is the default: completion is only
	// observable through logs, state, or further emissions.
	ModeAsync Mode = iota

	// ModeSync blocks until every subscriber invocation has completed. Used
	// for the synchronous re-emit issued from inside a running handler, so
	// that state writes made by the sub-flow are visible to the caller upon
	// return.
	ModeSync
)

func (m Mode) String() string {
	if m == ModeSync {
		return "sync"
	}
	return "async"
}
