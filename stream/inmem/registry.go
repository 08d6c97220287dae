// Package inmem provides an in-memory implementation of stream.Registry. It
// is the default for single-host deployments; stream/remote is available
// when notifications must fan out across processes sharing a Redis backend.
package inmem

import (
	"context"
	"fmt"
	"sync"

	"goa.design/stepflow/stream"
)

type subscriberKey struct {
	stream  string
	groupID string
	id      string // empty means "whole group"
}

type subscriberEntry struct {
	key subscriberKey
	ch  chan<- stream.Mutation
}

// Registry is an in-memory, concurrency-safe stream.Registry.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]stream.Schema
	items   map[stream.ItemKey]any

	subsMu sync.RWMutex
	subs   map[*subscriberEntry]struct{}
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		schemas: make(map[string]stream.Schema),
		items:   make(map[stream.ItemKey]any),
		subs:    make(map[*subscriberEntry]struct{}),
	}
}

// Declare implements stream.Registry.
func (r *Registry) Declare(_ context.Context, schema stream.Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.schemas[schema.Name]; ok {
		if string(existing.Raw) != string(schema.Raw) {
			return fmt.Errorf("stream: %q already declared with a different schema", schema.Name)
		}
		return nil
	}
	r.schemas[schema.Name] = schema
	return nil
}

// Get implements stream.Registry.
func (r *Registry) Get(_ context.Context, key stream.ItemKey) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.items[key], nil
}

// Set implements stream.Registry, notifying every matching subscriber.
func (r *Registry) Set(_ context.Context, key stream.ItemKey, value any) (any, error) {
	r.mu.Lock()
	r.items[key] = value
	r.mu.Unlock()

	r.notify(stream.Mutation{Key: key, Value: value})
	return value, nil
}

// Delete implements stream.Registry, notifying every matching subscriber.
func (r *Registry) Delete(_ context.Context, key stream.ItemKey) error {
	r.mu.Lock()
	delete(r.items, key)
	r.mu.Unlock()

	r.notify(stream.Mutation{Key: key, Delete: true})
	return nil
}

// GetGroup implements stream.Registry.
func (r *Registry) GetGroup(_ context.Context, streamName, groupID string) ([]any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []any
	for k, v := range r.items {
		if k.Stream == streamName && k.GroupID == groupID {
			out = append(out, v)
		}
	}
	return out, nil
}

// Subscribe implements stream.Registry. A full subscriber channel drops the
// newest mutation for that subscriber rather than blocking Set/Delete.
func (r *Registry) Subscribe(streamName, groupID, id string, ch chan<- stream.Mutation) stream.Subscription {
	entry := &subscriberEntry{key: subscriberKey{stream: streamName, groupID: groupID, id: id}, ch: ch}
	r.subsMu.Lock()
	r.subs[entry] = struct{}{}
	r.subsMu.Unlock()
	return &subscription{registry: r, entry: entry}
}

// Streams implements stream.Registry.
func (r *Registry) Streams() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		out = append(out, name)
	}
	return out
}

func (r *Registry) notify(m stream.Mutation) {
	r.subsMu.RLock()
	defer r.subsMu.RUnlock()
	for entry := range r.subs {
		if !matches(entry.key, m.Key) {
			continue
		}
		select {
		case entry.ch <- m:
		default:
			// Subscriber is slow; drop rather than block the writer.
		}
	}
}

func matches(sub subscriberKey, key stream.ItemKey) bool {
	if sub.stream != key.Stream || sub.groupID != key.GroupID {
		return false
	}
	return sub.id == "" || sub.id == key.ID
}

type subscription struct {
	registry *Registry
	entry    *subscriberEntry
	once     sync.Once
}

func (s *subscription) Close() {
	s.once.Do(func() {
		s.registry.subsMu.Lock()
		delete(s.registry.subs, s.entry)
		s.registry.subsMu.Unlock()
	})
}
