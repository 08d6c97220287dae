// Package process implements the spawn/monitor/kill lifecycle for a single
// language-specific worker process.
//
// The RPC channel does not share stdout with the worker's free-form
// diagnostic prints. Instead it runs over a dedicated pair of pipes attached
// as extra file descriptors (3 and 4 in the child), so stdout/stderr remain
// fully available to the JSON-or-text log classifier this package
// implements, with no risk of an RPC frame being mistaken for a log line or
// vice versa. Worker-language runner SDKs are expected to read/write the RPC
// channel on fd 3/4 and use stdout/stderr for anything else, exactly like
// the classifier already assumes.
package process

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"goa.design/stepflow/rpc"
)

type (
	// Spec describes how to launch a worker process: the executable, its
	// arguments (including the runner file, step file path, and envelope
	// JSON), and any additional environment variables.
	Spec struct {
		Command string
		Args    []string
		Env     []string
	}

	// Commander abstracts process construction so tests can substitute a
	// fake without depending on *exec.Cmd directly, mirroring the seam used
	// throughout the example pack's dev-process runners.
	Commander interface {
		Command(ctx context.Context, spec Spec) (Cmd, error)
	}

	// Cmd abstracts a started OS process and its pipes.
	Cmd interface {
		Start() error
		Wait() error
		Stdout() io.ReadCloser
		Stderr() io.ReadCloser
		RPCReader() io.ReadCloser
		RPCWriter() io.WriteCloser
		Kill() error
	}

	// LogSink receives classified output from a worker process.
	LogSink interface {
		// Structured is invoked for stdout lines that parse as JSON.
		Structured(fields map[string]any)
		// Text is invoked for stdout lines that do not parse as JSON, and
		// for every stderr line regardless of content.
		Text(severity string, line string)
	}

	// Supervisor owns one worker process and its RPC channel for the
	// duration of a single step invocation.
	Supervisor struct {
		commander Commander
		sink      LogSink

		mu          sync.Mutex
		cmd         Cmd
		channel     *rpc.Channel
		closeOnce   sync.Once
		onClose     []func(code int, err error)
		exitCode    int
		exitErr     error
		processDone chan struct{}
	}
)

// NewSupervisor constructs a Supervisor. commander defaults to the real
// os/exec-backed implementation when nil.
func NewSupervisor(commander Commander, sink LogSink) *Supervisor {
	if commander == nil {
		commander = OSCommander{}
	}
	if sink == nil {
		sink = discardSink{}
	}
	return &Supervisor{commander: commander, sink: sink, processDone: make(chan struct{})}
}

// Spawn starts the worker process and its RPC channel. It returns once the
// pipes are attached and the process has started; it does not wait for the
// worker to complete.
func (s *Supervisor) Spawn(ctx context.Context, spec Spec) (*rpc.Channel, error) {
	cmd, err := s.commander.Command(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("process: build command %s: %w", spec.Command, err)
	}

	if err := cmd.Start(); err != nil {
		if os.IsNotExist(err) || errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrExecutableNotFound, spec.Command)
		}
		return nil, fmt.Errorf("process: start %s: %w", spec.Command, err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.channel = rpc.NewChannel(cmd.RPCReader(), cmd.RPCWriter())
	s.mu.Unlock()

	go s.classify(cmd.Stdout(), "info", true)
	go s.classify(cmd.Stderr(), "error", false)
	go s.wait()

	return s.channel, nil
}

// Handler registers a parent-side RPC handler, delegating to the
// underlying channel. Safe to call any time after Spawn returns.
func (s *Supervisor) Handler(method string, fn rpc.HandlerFunc) {
	s.mu.Lock()
	ch := s.channel
	s.mu.Unlock()
	if ch != nil {
		ch.Handle(method, fn)
	}
}

// Send invokes a worker-side method and waits for its response.
func (s *Supervisor) Send(ctx context.Context, method string, params any) (json.RawMessage, error) {
	s.mu.Lock()
	ch := s.channel
	s.mu.Unlock()
	if ch == nil {
		return nil, rpc.ErrChannelClosed
	}
	return ch.Call(ctx, method, params)
}

// OnProcessClose registers a callback invoked once, when the process exits
// for any reason (success, failure, or kill).
func (s *Supervisor) OnProcessClose(cb func(code int, err error)) {
	s.mu.Lock()
	s.onClose = append(s.onClose, cb)
	s.mu.Unlock()
}

// Kill forcibly terminates the worker process.
func (s *Supervisor) Kill() error {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()
	if cmd == nil {
		return nil
	}
	return cmd.Kill()
}

// Close marks the RPC channel closed, unblocking any pending Send. Handler
// registrations are left in place. It does not kill the process; callers
// that want to guarantee termination should call Kill first.
func (s *Supervisor) Close() {
	s.mu.Lock()
	ch := s.channel
	s.mu.Unlock()
	if ch != nil {
		ch.Close()
	}
}

// Wait blocks until the process exits and returns its terminal status. err
// is non-nil only when the process could not be waited on at all; a clean
// nonzero exit is reported through code alone.
func (s *Supervisor) Wait() (code int, err error) {
	<-s.processDone
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode, s.exitErr
}

func (s *Supervisor) wait() {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()

	waitErr := cmd.Wait()
	code := 0
	var err error
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			code = -1
			err = waitErr
		}
	}

	s.mu.Lock()
	s.exitCode = code
	s.exitErr = err
	callbacks := append([]func(int, error){}, s.onClose...)
	s.mu.Unlock()

	s.closeOnce.Do(func() { close(s.processDone) })
	for _, cb := range callbacks {
		cb(code, err)
	}
}

// classify reads newline-delimited output and routes each line to the sink,
// attempting a JSON decode first when asStructured is true (stdout); stderr
// is always logged as plain text.
func (s *Supervisor) classify(r io.ReadCloser, severity string, asStructured bool) {
	if r == nil {
		return
	}
	defer r.Close()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if asStructured {
			var fields map[string]any
			if err := json.Unmarshal([]byte(line), &fields); err == nil {
				s.sink.Structured(fields)
				continue
			}
		}
		s.sink.Text(severity, line)
	}
}

type discardSink struct{}

func (discardSink) Structured(map[string]any) {}
func (discardSink) Text(string, string)       {}
