// Package remote provides a Redis-backed implementation of state.Store,
// shared across processes and hosts. It namespaces keys under
// "stepflow:state:{traceID}:{key}" and tracks each trace's key set in a
// companion Redis set so Clear and GetGroup do not require a KEYS scan.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"goa.design/stepflow/state"
)

// Client is the subset of *redis.Client this package depends on, so callers
// can pass a *redis.ClusterClient or a test double that satisfies it.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...any) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

// Store is a Redis-backed state.Store.
type Store struct {
	client Client
	ttl    time.Duration
}

// New returns a Store using client, optionally expiring every value after
// ttl (zero disables TTL).
func New(client Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func keyOf(k state.Key) string {
	return fmt.Sprintf("stepflow:state:%s:%s", k.TraceID, k.Key)
}

func indexOf(traceID string) string {
	return fmt.Sprintf("stepflow:state:index:%s", traceID)
}

// Get implements state.Store.
func (s *Store) Get(ctx context.Context, key state.Key) (any, error) {
	raw, err := s.client.Get(ctx, keyOf(key)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", state.ErrBackendUnavailable, keyOf(key), err)
	}
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", state.ErrBackendUnavailable, keyOf(key), err)
	}
	return value, nil
}

// Set implements state.Store, last-write-wins via Redis SET.
func (s *Store) Set(ctx context.Context, key state.Key, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state/remote: encode %s: %w", keyOf(key), err)
	}
	if err := s.client.Set(ctx, keyOf(key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", state.ErrBackendUnavailable, keyOf(key), err)
	}
	if err := s.client.SAdd(ctx, indexOf(key.TraceID), key.Key).Err(); err != nil {
		return fmt.Errorf("%w: index %s: %v", state.ErrBackendUnavailable, keyOf(key), err)
	}
	return nil
}

// Delete implements state.Store. Deleting an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, key state.Key) error {
	if err := s.client.Del(ctx, keyOf(key)).Err(); err != nil {
		return fmt.Errorf("%w: del %s: %v", state.ErrBackendUnavailable, keyOf(key), err)
	}
	if err := s.client.SRem(ctx, indexOf(key.TraceID), key.Key).Err(); err != nil {
		return fmt.Errorf("%w: unindex %s: %v", state.ErrBackendUnavailable, keyOf(key), err)
	}
	return nil
}

// Clear implements state.Store, removing every key recorded in the trace's
// index set. It is idempotent: clearing an already-empty trace is a no-op.
func (s *Store) Clear(ctx context.Context, traceID string) error {
	members, err := s.client.SMembers(ctx, indexOf(traceID)).Result()
	if err != nil {
		return fmt.Errorf("%w: list index for %s: %v", state.ErrBackendUnavailable, traceID, err)
	}
	if len(members) == 0 {
		return nil
	}
	keys := make([]string, 0, len(members)+1)
	for _, m := range members {
		keys = append(keys, keyOf(state.Key{TraceID: traceID, Key: m}))
	}
	keys = append(keys, indexOf(traceID))
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: clear %s: %v", state.ErrBackendUnavailable, traceID, err)
	}
	return nil
}

// GetGroup implements state.Store.
func (s *Store) GetGroup(ctx context.Context, traceID string) (map[string]any, error) {
	members, err := s.client.SMembers(ctx, indexOf(traceID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list index for %s: %v", state.ErrBackendUnavailable, traceID, err)
	}
	out := make(map[string]any, len(members))
	for _, m := range members {
		v, err := s.Get(ctx, state.Key{TraceID: traceID, Key: m})
		if err != nil {
			return nil, err
		}
		out[m] = v
	}
	return out, nil
}
