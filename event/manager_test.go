package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"goa.design/stepflow/step"
)

type fakeSubscribers struct {
	byTopic map[string][]*step.Step
}

func (f fakeSubscribers) Subscribers(topic string) []*step.Step { return f.byTopic[topic] }

type recordingExecutor struct {
	mu       sync.Mutex
	calls    []string
	delay    time.Duration
	failFor  string
}

func (r *recordingExecutor) Execute(_ context.Context, st *step.Step, _ Event) error {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	r.calls = append(r.calls, st.Name())
	r.mu.Unlock()
	if st.Name() == r.failFor {
		return errors.New("boom")
	}
	return nil
}

func eventSub(name string) *step.Step {
	return &step.Step{
		Config: step.Config{Kind: step.KindEvent, Event: &step.EventConfig{Name: name}},
	}
}

func noopSub(name string) *step.Step {
	return &step.Step{
		Config: step.Config{Kind: step.KindNoop, Noop: &step.NoopConfig{Name: name}},
	}
}

func TestEmitSyncWaitsForAllSubscribers(t *testing.T) {
	exec := &recordingExecutor{delay: 10 * time.Millisecond}
	subs := fakeSubscribers{byTopic: map[string][]*step.Step{
		"a": {eventSub("s1"), eventSub("s2")},
	}}
	m := NewManager(subs, exec)

	err := m.Emit(context.Background(), Event{Topic: "a", TraceID: "t1"}, ModeSync, "")
	require.NoError(t, err)

	exec.mu.Lock()
	defer exec.mu.Unlock()
	require.ElementsMatch(t, []string{"s1", "s2"}, exec.calls)
}

func TestEmitSyncReturnsFirstError(t *testing.T) {
	exec := &recordingExecutor{failFor: "s1"}
	subs := fakeSubscribers{byTopic: map[string][]*step.Step{
		"a": {eventSub("s1")},
	}}
	m := NewManager(subs, exec)

	err := m.Emit(context.Background(), Event{Topic: "a"}, ModeSync, "")
	require.Error(t, err)
}

func TestEmitAsyncReturnsImmediatelyThenCompletes(t *testing.T) {
	exec := &recordingExecutor{delay: 20 * time.Millisecond}
	subs := fakeSubscribers{byTopic: map[string][]*step.Step{
		"a": {eventSub("s1")},
	}}
	m := NewManager(subs, exec)

	start := time.Now()
	err := m.Emit(context.Background(), Event{Topic: "a"}, ModeAsync, "")
	require.NoError(t, err)
	require.Less(t, time.Since(start), 20*time.Millisecond)

	m.Wait()
	exec.mu.Lock()
	defer exec.mu.Unlock()
	require.Equal(t, []string{"s1"}, exec.calls)
}

func TestEmitSkipsNoopSubscribers(t *testing.T) {
	exec := &recordingExecutor{}
	subs := fakeSubscribers{byTopic: map[string][]*step.Step{
		"a": {noopSub("gateway")},
	}}
	m := NewManager(subs, exec)

	require.NoError(t, m.Emit(context.Background(), Event{Topic: "a"}, ModeSync, ""))
	exec.mu.Lock()
	defer exec.mu.Unlock()
	require.Empty(t, exec.calls)
}

func TestEmitWithNoSubscribersIsNoop(t *testing.T) {
	exec := &recordingExecutor{}
	m := NewManager(fakeSubscribers{byTopic: map[string][]*step.Step{}}, exec)
	require.NoError(t, m.Emit(context.Background(), Event{Topic: "nobody-listens"}, ModeAsync, ""))
}
