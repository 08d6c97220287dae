package executor

import "errors"

var (
	// ErrRunnerNotFound is returned when a step's file extension has no
	// registered Runner.
	ErrRunnerNotFound = errors.New("executor: no runner registered for extension")

	// ErrProcessExit is returned when the worker process exits with a
	// nonzero status.
	ErrProcessExit = errors.New("executor: process exited with nonzero code")

	// ErrInvalidPayload is returned when a triggering event's data fails
	// validation against the step's declared schema.
	ErrInvalidPayload = errors.New("executor: payload does not match step schema")
)
