package process

import (
	"context"
	"io"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeCmd is an in-memory Cmd used so tests never spawn a real OS process.
type fakeCmd struct {
	startErr error
	waitErr  error
	stdout   io.ReadCloser
	stderr   io.ReadCloser
	rpcR     io.ReadCloser
	rpcW     io.WriteCloser
	killed   bool
}

func (f *fakeCmd) Start() error                 { return f.startErr }
func (f *fakeCmd) Wait() error                  { return f.waitErr }
func (f *fakeCmd) Stdout() io.ReadCloser        { return f.stdout }
func (f *fakeCmd) Stderr() io.ReadCloser        { return f.stderr }
func (f *fakeCmd) RPCReader() io.ReadCloser     { return f.rpcR }
func (f *fakeCmd) RPCWriter() io.WriteCloser    { return f.rpcW }
func (f *fakeCmd) Kill() error                  { f.killed = true; return nil }

type fakeCommander struct {
	cmd *fakeCmd
	err error
}

func (c fakeCommander) Command(context.Context, Spec) (Cmd, error) {
	return c.cmd, c.err
}

type recordingSink struct {
	structured []map[string]any
	text       []string
}

func (s *recordingSink) Structured(fields map[string]any) { s.structured = append(s.structured, fields) }
func (s *recordingSink) Text(severity, line string)        { s.text = append(s.text, severity+": "+line) }

func TestSupervisorClassifiesStdout(t *testing.T) {
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	rpcR, _ := io.Pipe()
	_, rpcW := io.Pipe()

	cmd := &fakeCmd{
		stdout: stdoutR,
		stderr: stderrR,
		rpcR:   rpcR,
		rpcW:   rpcW,
	}
	sink := &recordingSink{}
	sup := NewSupervisor(fakeCommander{cmd: cmd}, sink)

	_, err := sup.Spawn(context.Background(), Spec{Command: "fake"})
	require.NoError(t, err)

	go func() {
		_, _ = stdoutW.Write([]byte("{\"level\":\"info\",\"msg\":\"hi\"}\n"))
		_, _ = stdoutW.Write([]byte("plain text line\n"))
		stdoutW.Close()
		_, _ = stderrW.Write([]byte("boom\n"))
		stderrW.Close()
	}()

	require.Eventually(t, func() bool {
		return len(sink.structured) == 1 && len(sink.text) == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, "hi", sink.structured[0]["msg"])
	require.Contains(t, sink.text, "info: plain text line")
	require.Contains(t, sink.text, "error: boom")
}

func TestSupervisorReportsExitCode(t *testing.T) {
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	rpcR, _ := io.Pipe()
	_, rpcW := io.Pipe()
	go func() { stdoutW.Close(); stderrW.Close() }()

	cmd := &fakeCmd{stdout: stdoutR, stderr: stderrR, rpcR: rpcR, rpcW: rpcW}
	sup := NewSupervisor(fakeCommander{cmd: cmd}, nil)

	done := make(chan struct{})
	var gotCode int
	sup.OnProcessClose(func(code int, err error) {
		gotCode = code
		close(done)
	})

	_, err := sup.Spawn(context.Background(), Spec{Command: "fake"})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("OnProcessClose callback never fired")
	}
	require.Equal(t, 0, gotCode)
}

func TestSupervisorReportsNonzeroExitWithoutError(t *testing.T) {
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	rpcR, _ := io.Pipe()
	_, rpcW := io.Pipe()
	go func() { stdoutW.Close(); stderrW.Close() }()

	exitErr := exec.Command("sh", "-c", "exit 9").Run()
	require.Error(t, exitErr)

	cmd := &fakeCmd{stdout: stdoutR, stderr: stderrR, rpcR: rpcR, rpcW: rpcW, waitErr: exitErr}
	sup := NewSupervisor(fakeCommander{cmd: cmd}, nil)

	_, err := sup.Spawn(context.Background(), Spec{Command: "fake"})
	require.NoError(t, err)

	code, waitErr := sup.Wait()
	require.NoError(t, waitErr)
	require.Equal(t, 9, code)
}
