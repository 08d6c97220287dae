// Package inmem provides an in-memory implementation of state.Store.
//
// It is intended for tests and local development; it is non-persistent and
// process-local. Production deployments needing durability should use
// state/file, and deployments sharing state across processes should use
// state/remote.
package inmem

import (
	"context"
	"sync"
	"time"

	"goa.design/stepflow/state"
)

type entry struct {
	value     any
	expiresAt time.Time // zero means no TTL
}

// Store is an in-memory, TTL-capable implementation of state.Store. It is
// safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	data map[state.Key]entry

	ttl      time.Duration // zero disables TTL
	stopOnce sync.Once
	stop     chan struct{}
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithTTL evicts entries a duration after they are last set. A zero
// duration (the default) disables TTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// New returns an empty Store and, if WithTTL was given, starts a background
// janitor goroutine. Call Close to stop the janitor.
func New(opts ...Option) *Store {
	s := &Store{data: make(map[state.Key]entry), stop: make(chan struct{})}
	for _, opt := range opts {
		opt(s)
	}
	if s.ttl > 0 {
		go s.janitor()
	}
	return s
}

// Close stops the TTL janitor goroutine, if one is running.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Get implements state.Store.
func (s *Store) Get(_ context.Context, key state.Key) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	if !ok || s.expired(e) {
		return nil, nil
	}
	return e.value, nil
}

// Set implements state.Store. Last write wins.
func (s *Store) Set(_ context.Context, key state.Key, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := entry{value: value}
	if s.ttl > 0 {
		e.expiresAt = time.Now().Add(s.ttl)
	}
	s.data[key] = e
	return nil
}

// Delete implements state.Store. Deleting an absent key is a no-op.
func (s *Store) Delete(_ context.Context, key state.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Clear implements state.Store, removing every key under traceID. A second
// call for the same trace is a no-op.
func (s *Store) Clear(_ context.Context, traceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.data {
		if k.TraceID == traceID {
			delete(s.data, k)
		}
	}
	return nil
}

// GetGroup implements state.Store.
func (s *Store) GetGroup(_ context.Context, traceID string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any)
	for k, e := range s.data {
		if k.TraceID != traceID || s.expired(e) {
			continue
		}
		out[k.Key] = e.value
	}
	return out, nil
}

func (s *Store) expired(e entry) bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}

func (s *Store) janitor() {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.data {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(s.data, k)
		}
	}
}
