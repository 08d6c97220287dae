package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"goa.design/stepflow/event"
	"goa.design/stepflow/process"
	"goa.design/stepflow/state"
	"goa.design/stepflow/step"
	"goa.design/stepflow/stream"
	"goa.design/stepflow/trace"
)

// invocation holds the per-Execute-call state shared by every RPC handler
// installed on one worker's channel.
type invocation struct {
	executor *Executor
	step     *step.Step
	event    event.Event
	logger   trace.Logger

	// result holds the value reported through the worker's "result" RPC, if
	// any. Handlers on a single worker's channel run one at a time, so no
	// lock is needed between the write here and Execute's read of it after
	// the channel's read loop returns.
	result    json.RawMessage
	hasResult bool
}

func (inv *invocation) installHandlers(sup *process.Supervisor) {
	sup.Handler("log", inv.handleLog)

	sup.Handler("state.get", inv.handleStateGet)
	sup.Handler("state.set", inv.handleStateSet)
	sup.Handler("state.delete", inv.handleStateDelete)
	sup.Handler("state.clear", inv.handleStateClear)
	sup.Handler("state.getGroup", inv.handleStateGetGroup)

	for _, decl := range streamDecls(inv.executor.streams) {
		name := decl.Name
		sup.Handler("streams."+name+".get", inv.streamGet(name))
		sup.Handler("streams."+name+".set", inv.streamSet(name))
		sup.Handler("streams."+name+".delete", inv.streamDelete(name))
		sup.Handler("streams."+name+".getGroup", inv.streamGetGroup(name))
	}

	sup.Handler("emit", inv.handleEmit)
	sup.Handler("result", inv.handleResult)
	sup.Handler("close", inv.handleClose)
}

func (inv *invocation) handleLog(ctx context.Context, params json.RawMessage) (any, error) {
	var entry struct {
		Level string `json:"level"`
		Msg   string `json:"msg"`
	}
	if err := json.Unmarshal(params, &entry); err != nil {
		return nil, fmt.Errorf("log: decode params: %w", err)
	}
	switch entry.Level {
	case "debug":
		inv.logger.Debug(ctx, entry.Msg)
	case "warn", "warning":
		inv.logger.Warn(ctx, entry.Msg)
	case "error":
		inv.logger.Error(ctx, entry.Msg)
	default:
		inv.logger.Info(ctx, entry.Msg)
	}
	return nil, nil
}

type stateKeyParams struct {
	Key string `json:"key"`
}

func (inv *invocation) stateKey(key string) state.Key {
	// The trace id is always the executor's own, never the worker's: a
	// worker cannot read or write a flow it was not invoked with.
	return state.Key{TraceID: inv.event.TraceID, Key: key}
}

func (inv *invocation) handleStateGet(ctx context.Context, params json.RawMessage) (any, error) {
	var p stateKeyParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("state.get: decode params: %w", err)
	}
	return inv.executor.state.Get(ctx, inv.stateKey(p.Key))
}

func (inv *invocation) handleStateSet(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		Key   string `json:"key"`
		Value any    `json:"value"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("state.set: decode params: %w", err)
	}
	return nil, inv.executor.state.Set(ctx, inv.stateKey(p.Key), p.Value)
}

func (inv *invocation) handleStateDelete(ctx context.Context, params json.RawMessage) (any, error) {
	var p stateKeyParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("state.delete: decode params: %w", err)
	}
	return nil, inv.executor.state.Delete(ctx, inv.stateKey(p.Key))
}

func (inv *invocation) handleStateClear(ctx context.Context, _ json.RawMessage) (any, error) {
	return nil, inv.executor.state.Clear(ctx, inv.event.TraceID)
}

func (inv *invocation) handleStateGetGroup(ctx context.Context, _ json.RawMessage) (any, error) {
	return inv.executor.state.GetGroup(ctx, inv.event.TraceID)
}

type streamItemParams struct {
	GroupID string `json:"groupId"`
	ID      string `json:"id"`
}

func (inv *invocation) streamGet(name string) func(context.Context, json.RawMessage) (any, error) {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		var p streamItemParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("streams.%s.get: decode params: %w", name, err)
		}
		return inv.executor.streams.Get(ctx, stream.ItemKey{Stream: name, GroupID: p.GroupID, ID: p.ID})
	}
}

func (inv *invocation) streamSet(name string) func(context.Context, json.RawMessage) (any, error) {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			GroupID string `json:"groupId"`
			ID      string `json:"id"`
			Data    any    `json:"data"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("streams.%s.set: decode params: %w", name, err)
		}
		return inv.executor.streams.Set(ctx, stream.ItemKey{Stream: name, GroupID: p.GroupID, ID: p.ID}, p.Data)
	}
}

func (inv *invocation) streamDelete(name string) func(context.Context, json.RawMessage) (any, error) {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		var p streamItemParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("streams.%s.delete: decode params: %w", name, err)
		}
		return nil, inv.executor.streams.Delete(ctx, stream.ItemKey{Stream: name, GroupID: p.GroupID, ID: p.ID})
	}
}

func (inv *invocation) streamGetGroup(name string) func(context.Context, json.RawMessage) (any, error) {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			GroupID string `json:"groupId"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("streams.%s.getGroup: decode params: %w", name, err)
		}
		return inv.executor.streams.GetGroup(ctx, name, p.GroupID)
	}
}

// handleEmit enforces that an emission is forwarded only if its topic is
// declared in the emitting step's Config.Emits(). A violation is dropped,
// not propagated as an RPC error, so the handler's own execution is
// unaffected.
func (inv *invocation) handleEmit(ctx context.Context, params json.RawMessage) (any, error) {
	var p struct {
		Topic string          `json:"topic"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("emit: decode params: %w", err)
	}

	if !inv.isAuthorizedEmit(p.Topic) {
		inv.logger.Warn(ctx, "invalid emit: topic not declared", "step", inv.step.Name(), "topic", p.Topic)
		return nil, nil
	}

	ev := event.Event{
		Topic:   p.Topic,
		Data:    p.Data,
		TraceID: inv.event.TraceID, // never trust a worker-supplied traceId
		Flows:   inv.event.Flows,
		Logger:  inv.logger,
	}
	if inv.executor.emitter == nil {
		return nil, fmt.Errorf("executor: no emitter configured, dropping emit to %q", p.Topic)
	}
	if err := inv.executor.emitter.Emit(ctx, ev, event.ModeAsync, inv.step.FilePath); err != nil {
		return nil, fmt.Errorf("emit %q: %w", p.Topic, err)
	}
	return nil, nil
}

func (inv *invocation) isAuthorizedEmit(topic string) bool {
	for _, e := range inv.step.Config.Emits() {
		if e.Topic == topic {
			return true
		}
	}
	return false
}

func (inv *invocation) handleResult(_ context.Context, params json.RawMessage) (any, error) {
	inv.result = params
	inv.hasResult = true
	return nil, nil
}

func (inv *invocation) handleClose(_ context.Context, _ json.RawMessage) (any, error) {
	return nil, nil
}
