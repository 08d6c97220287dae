// Package remote provides a Redis-backed stream.Registry. Items are stored
// as Redis hashes (one per stream+group); mutations are additionally
// published on a Redis Pub/Sub channel per (stream, group) so subscribers
// attached to other processes sharing the same Redis instance observe
// writes made anywhere. This is purely a notification fan-out: each process
// still executes its own steps locally.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"goa.design/stepflow/stream"
)

// Client is the subset of *redis.Client this package depends on.
type Client interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// wireMutation is the JSON envelope published on the notification channel.
type wireMutation struct {
	ID     string `json:"id"`
	Value  any    `json:"value,omitempty"`
	Delete bool   `json:"delete,omitempty"`
}

// Registry is a Redis-backed stream.Registry.
type Registry struct {
	client Client

	mu      sync.RWMutex
	schemas map[string]stream.Schema
}

// New returns a Registry backed by client.
func New(client Client) *Registry {
	return &Registry{client: client, schemas: make(map[string]stream.Schema)}
}

func hashKey(streamName, groupID string) string {
	return fmt.Sprintf("stepflow:stream:%s:%s", streamName, groupID)
}

func channelKey(streamName, groupID string) string {
	return fmt.Sprintf("stepflow:stream:notify:%s:%s", streamName, groupID)
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
func (r *Registry) Get(ctx context.Context, key stream.ItemKey) (any, error) {
	raw, err := r.client.HGet(ctx, hashKey(key.Stream, key.GroupID), key.ID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stream/remote: get %s: %w", key, err)
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("stream/remote: decode %s: %w", key, err)
	}
	return v, nil
}

// Set implements stream.Registry, persisting then publishing the mutation.
func (r *Registry) Set(ctx context.Context, key stream.ItemKey, value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("stream/remote: encode %s: %w", key, err)
	}
	if err := r.client.HSet(ctx, hashKey(key.Stream, key.GroupID), key.ID, raw).Err(); err != nil {
		return nil, fmt.Errorf("stream/remote: set %s: %w", key, err)
	}
	r.publish(ctx, key, wireMutation{ID: key.ID, Value: value})
	return value, nil
}

// Delete implements stream.Registry.
func (r *Registry) Delete(ctx context.Context, key stream.ItemKey) error {
	if err := r.client.HDel(ctx, hashKey(key.Stream, key.GroupID), key.ID).Err(); err != nil {
		return fmt.Errorf("stream/remote: delete %s: %w", key, err)
	}
	r.publish(ctx, key, wireMutation{ID: key.ID, Delete: true})
	return nil
}

// GetGroup implements stream.Registry.
func (r *Registry) GetGroup(ctx context.Context, streamName, groupID string) ([]any, error) {
	raws, err := r.client.HGetAll(ctx, hashKey(streamName, groupID)).Result()
	if err != nil {
		return nil, fmt.Errorf("stream/remote: get group %s/%s: %w", streamName, groupID, err)
	}
	out := make([]any, 0, len(raws))
	for _, raw := range raws {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("stream/remote: decode group item: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *Registry) publish(ctx context.Context, key stream.ItemKey, m wireMutation) {
	raw, err := json.Marshal(m)
	if err != nil {
		return
	}
	_ = r.client.Publish(ctx, channelKey(key.Stream, key.GroupID), raw)
}

// Subscribe opens a Redis Pub/Sub subscription for (streamName, groupID) and
// forwards decoded mutations to ch until the returned Subscription is
// closed. Unlike stream/inmem, a slow consumer here risks falling behind the
// underlying Pub/Sub client buffer rather than simply dropping the newest
// notification locally; callers needing strict back-pressure semantics
// should read ch promptly.
func (r *Registry) Subscribe(streamName, groupID, id string, ch chan<- stream.Mutation) stream.Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, channelKey(streamName, groupID))

	go func() {
		defer pubsub.Close()
		for {
			msg, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				return
			}
			var wm wireMutation
			if err := json.Unmarshal([]byte(msg.Payload), &wm); err != nil {
				continue
			}
			if id != "" && wm.ID != id {
				continue
			}
			mutation := stream.Mutation{
				Key:    stream.ItemKey{Stream: streamName, GroupID: groupID, ID: wm.ID},
				Value:  wm.Value,
				Delete: wm.Delete,
			}
			select {
			case ch <- mutation:
			case <-ctx.Done():
				return
			}
		}
	}()

	return &subscription{cancel: cancel}
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

type subscription struct {
	cancel context.CancelFunc
	once   sync.Once
}

func (s *subscription) Close() {
	s.once.Do(s.cancel)
}
