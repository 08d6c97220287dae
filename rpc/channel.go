package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// HandlerFunc answers a single RPC request issued by the worker. Returning a
// non-nil error causes the channel to send an error response frame; the
// handler's own side effects (state writes, emits, ...) still take effect
// unless the caller rolls them back explicitly.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (result any, err error)

// Channel is a full-duplex, length-framed RPC connection to one worker
// process. A worker process is single-threaded from the parent's
// perspective: the channel serializes the worker's requests by dispatching
// them one at a time in Run's read loop, so a handler never races a sibling
// request from the same worker.
type Channel struct {
	codec *Codec

	handlersMu sync.RWMutex
	handlers   map[string]HandlerFunc

	pendingMu sync.Mutex
	pending   map[int64]chan Frame

	nextID int64

	closeOnce sync.Once
	closed    chan struct{}
}

// NewChannel wraps r/w (typically a worker's RPC pipe pair) in a Channel.
// Register handlers with Handle before calling Run so no request arrives
// before its handler is registered; buffering is unnecessary here because
// Run's single read loop only starts once the caller invokes Run, after
// registration.
func NewChannel(r io.Reader, w io.Writer) *Channel {
	return &Channel{
		codec:    NewCodec(r, w),
		handlers: make(map[string]HandlerFunc),
		pending:  make(map[int64]chan Frame),
		closed:   make(chan struct{}),
	}
}

// Handle registers fn as the parent-side implementation of method. Handle is
// not safe to call concurrently with Run's dispatch of that same method, but
// is safe to call before Run starts or between invocations.
func (c *Channel) Handle(method string, fn HandlerFunc) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[method] = fn
}

// Call invokes a worker-side method and blocks for its response. It backs
// process.Supervisor.Send and is symmetric with the worker's calls into the
// parent; the executor itself issues no parent-initiated calls.
func (c *Channel) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("rpc: marshal params: %w", err)
	}
	id := atomic.AddInt64(&c.nextID, 1)
	wait := make(chan Frame, 1)

	c.pendingMu.Lock()
	c.pending[id] = wait
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.codec.Encode(Frame{Type: TypeRequest, ID: id, Method: method, Params: raw}); err != nil {
		return nil, err
	}

	select {
	case f := <-wait:
		if f.Error != "" {
			return nil, fmt.Errorf("rpc: %s: %s", method, f.Error)
		}
		return f.Result, nil
	case <-c.closed:
		return nil, ErrChannelClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run reads frames until the stream closes or a protocol violation occurs.
// It dispatches each incoming request to its registered handler, in arrival
// order, synchronously with respect to the read loop: the channel never
// reads the worker's next frame until the current request's response has
// been written, which is how the single-threaded-worker guarantee is
// enforced.
func (c *Channel) Run(ctx context.Context) error {
	defer c.closeLocked()

	resultSeen := false
	for {
		f, err := c.codec.Decode()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		switch {
		case f.IsResponse():
			c.resolve(f)

		case f.IsRequest():
			if resultSeen {
				return fmt.Errorf("%w: method %q after result", ErrAfterResult, f.Method)
			}
			if f.Method == "result" {
				resultSeen = true
			}
			if err := c.dispatch(ctx, f); err != nil {
				return err
			}

		default:
			return fmt.Errorf("%w: unhandled frame type %q", ErrProtocolViolation, f.Type)
		}
	}
}

func (c *Channel) dispatch(ctx context.Context, f Frame) error {
	c.handlersMu.RLock()
	fn, ok := c.handlers[f.Method]
	c.handlersMu.RUnlock()

	if !ok {
		_ = c.codec.Encode(Frame{Type: TypeResponse, ID: f.ID, Error: ErrUnknownMethod.Error()})
		return fmt.Errorf("%w: %q", ErrUnknownMethod, f.Method)
	}

	result, err := fn(ctx, f.Params)
	if err != nil {
		return c.codec.Encode(Frame{Type: TypeResponse, ID: f.ID, Error: err.Error()})
	}
	raw, merr := json.Marshal(result)
	if merr != nil {
		return c.codec.Encode(Frame{Type: TypeResponse, ID: f.ID, Error: merr.Error()})
	}
	return c.codec.Encode(Frame{Type: TypeResponse, ID: f.ID, Result: raw})
}

func (c *Channel) resolve(f Frame) {
	c.pendingMu.Lock()
	wait, ok := c.pending[f.ID]
	c.pendingMu.Unlock()
	if !ok {
		return
	}
	wait <- f
}

// Close marks the channel closed, unblocking any pending Call. It does not
// close the underlying reader/writer; the process supervisor owns that.
func (c *Channel) Close() {
	c.closeLocked()
}

func (c *Channel) closeLocked() {
	c.closeOnce.Do(func() { close(c.closed) })
}
