package rpc

import "errors"

var (
	// ErrChannelClosed is returned by Call and Send once the channel has
	// been closed, either by the peer exiting or by a parent-requested
	// close.
	ErrChannelClosed = errors.New("rpc: channel closed")

	// ErrProtocolViolation marks a malformed frame or other violation of
	// the wire protocol. The channel is closed and the worker is killed
	// when this occurs.
	ErrProtocolViolation = errors.New("rpc: protocol violation")

	// ErrUnknownMethod is returned when a request names a method with no
	// registered handler.
	ErrUnknownMethod = errors.New("rpc: unknown method")

	// ErrAfterResult marks an RPC received from a worker after it already
	// sent a result frame, a protocol error.
	ErrAfterResult = errors.New("rpc: request received after result")
)
