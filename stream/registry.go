// Package stream defines the per-named-stream CRUD registry with change
// notifications: a namespace distinct from flow state, intended for
// user-facing push updates rather than intra-flow data passing.
package stream

import (
	"context"
	"fmt"
)

// ItemKey identifies one item within a named stream's group.
type ItemKey struct {
	Stream  string
	GroupID string
	ID      string
}

// String renders the key as "stream/group/id" for logging and error text.
func (k ItemKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Stream, k.GroupID, k.ID)
}

// Schema describes a stream declared at load time. Registry stores Raw as
// declared and is schema-agnostic storage: items written to a stream are
// not validated against it.
type Schema struct {
	Name string
	Raw  []byte // the declared JSON Schema document, or nil if unconstrained
}

// Mutation is pushed to subscribers whenever a stream item changes.
type Mutation struct {
	Key    ItemKey
	Value  any  // nil for a delete
	Delete bool
}

// Subscription is an active registration on a Registry. Closing it stops
// delivery and releases the subscriber's channel; Close is idempotent.
type Subscription interface {
	Close()
}

// DefaultSubscriberBuffer is a capacity for the channel a caller passes to
// Subscribe. Registries never allocate or resize subscriber channels; the
// caller chooses the capacity. stream/inmem drops a mutation that does not
// fit in a full channel rather than blocking the mutating handler.
const DefaultSubscriberBuffer = 64

// Registry is the abstract interface every stream backend implements.
type Registry interface {
	// Declare registers a stream's schema at load time. Declaring an
	// already-declared stream with an identical schema is a no-op;
	// declaring it with a different schema is an error.
	Declare(ctx context.Context, schema Schema) error

	Get(ctx context.Context, key ItemKey) (any, error)
	Set(ctx context.Context, key ItemKey, value any) (any, error)
	Delete(ctx context.Context, key ItemKey) error
	GetGroup(ctx context.Context, stream, groupID string) ([]any, error)

	// Subscribe registers ch to receive every Mutation matching stream and
	// groupID (and, if id is non-empty, scoped further to that item).
	// The caller owns ch's lifetime via the returned Subscription.
	Subscribe(stream, groupID, id string, ch chan<- Mutation) Subscription

	// Streams lists the names currently declared, used by the executor to
	// install streams.<name>.* handlers and by step.Registry.GetStreams.
	Streams() []string
}
