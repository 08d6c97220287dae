package rpc

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// pipePair wires a Channel to an in-process peer using io.Pipe, standing in
// for a worker's RPC pipes without spawning a real process.
func pipePair(t *testing.T) (*Channel, *Codec) {
	t.Helper()
	parentR, workerW := io.Pipe()
	workerR, parentW := io.Pipe()
	ch := NewChannel(parentR, parentW)
	workerCodec := NewCodec(workerR, workerW)
	return ch, workerCodec
}

func TestChannelDispatchesRequestAndResponds(t *testing.T) {
	ch, worker := pipePair(t)

	var gotParams string
	ch.Handle("log", func(_ context.Context, params json.RawMessage) (any, error) {
		var p struct {
			Msg string `json:"msg"`
		}
		require.NoError(t, json.Unmarshal(params, &p))
		gotParams = p.Msg
		return map[string]any{"ok": true}, nil
	})

	go func() { _ = ch.Run(context.Background()) }()

	require.NoError(t, worker.Encode(Frame{
		Type:   TypeRequest,
		ID:     1,
		Method: "log",
		Params: json.RawMessage(`{"msg":"hello"}`),
	}))

	resp, err := worker.Decode()
	require.NoError(t, err)
	require.True(t, resp.IsResponse())
	require.Equal(t, int64(1), resp.ID)
	require.Empty(t, resp.Error)
	require.Equal(t, "hello", gotParams)
}

func TestChannelUnknownMethodIsProtocolViolation(t *testing.T) {
	ch, worker := pipePair(t)

	runErr := make(chan error, 1)
	go func() { runErr <- ch.Run(context.Background()) }()

	require.NoError(t, worker.Encode(Frame{Type: TypeRequest, ID: 1, Method: "does.not.exist"}))

	// io.Pipe is unbuffered: the channel writes an error response before Run
	// returns, so the worker side must read it.
	resp, err := worker.Decode()
	require.NoError(t, err)
	require.Equal(t, ErrUnknownMethod.Error(), resp.Error)

	select {
	case err := <-runErr:
		require.ErrorIs(t, err, ErrUnknownMethod)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not terminate on unknown method")
	}
}

func TestChannelRejectsRequestAfterResult(t *testing.T) {
	ch, worker := pipePair(t)
	ch.Handle("result", func(context.Context, json.RawMessage) (any, error) { return nil, nil })
	ch.Handle("log", func(context.Context, json.RawMessage) (any, error) { return nil, nil })

	runErr := make(chan error, 1)
	go func() { runErr <- ch.Run(context.Background()) }()

	require.NoError(t, worker.Encode(Frame{Type: TypeRequest, ID: 1, Method: "result"}))
	_, err := worker.Decode()
	require.NoError(t, err)

	require.NoError(t, worker.Encode(Frame{Type: TypeRequest, ID: 2, Method: "log"}))

	select {
	case err := <-runErr:
		require.ErrorIs(t, err, ErrAfterResult)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not terminate on request after result")
	}
}

func TestCodecEncodeDecodeRoundTrip(t *testing.T) {
	r, w := io.Pipe()
	enc := NewCodec(nil, w)
	dec := NewCodec(r, nil)

	want := Frame{Type: TypeRequest, ID: 42, Method: "emit", Params: json.RawMessage(`{"topic":"a"}`)}
	go func() { require.NoError(t, enc.Encode(want)) }()

	got, err := dec.Decode()
	require.NoError(t, err)
	require.Equal(t, want, got)
}
