package step

import "errors"

var (
	// ErrDuplicateName is returned by AddStep when another loaded step
	// already uses the same Config.Name().
	ErrDuplicateName = errors.New("step: duplicate step name")

	// ErrEmptyTopic is returned when a step declares a blank entry in
	// Emits or Subscribes.
	ErrEmptyTopic = errors.New("step: topic must not be empty")

	// ErrUnknownTopic is returned when a step subscribes a topic that no
	// loaded step (or virtual noop emitter) ever emits. Since external
	// triggers may originate topics with no in-graph emitter, this check
	// only flags subscriptions, never emits.
	ErrUnknownTopic = errors.New("step: subscribed topic has no emitter")

	// ErrInvalidSchema is returned when a declared bodySchema or
	// inputSchema fails validation against the JSON Schema meta-schema.
	ErrInvalidSchema = errors.New("step: invalid schema document")

	// ErrStepNotFound is returned by RemoveStep/UpdateStep when the named
	// step is not currently loaded.
	ErrStepNotFound = errors.New("step: step not found")
)
