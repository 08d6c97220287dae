// Package file provides a single-process, restart-durable implementation of
// state.Store backed by one JSON document per trace, flushed atomically via
// write-temp-then-rename.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"goa.design/stepflow/state"
)

// Store persists each trace's keys as a single JSON file under Dir, named
// "<traceID>.json". It is safe for concurrent use; writes to different
// traces do not block each other.
type Store struct {
	dir string

	mu     sync.Mutex // guards the trace-lock map itself
	locks  map[string]*sync.Mutex
}

// New returns a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("state/file: create dir %s: %w", dir, err)
	}
	return &Store{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

func (s *Store) traceLock(traceID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[traceID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[traceID] = l
	}
	return l
}

func (s *Store) path(traceID string) string {
	return filepath.Join(s.dir, traceID+".json")
}

func (s *Store) load(traceID string) (map[string]any, error) {
	data, err := os.ReadFile(s.path(traceID))
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", state.ErrBackendUnavailable, traceID, err)
	}
	doc := map[string]any{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", state.ErrBackendUnavailable, traceID, err)
		}
	}
	return doc, nil
}

// save writes doc atomically: write to a temp file in the same directory,
// then rename over the target, so a crash mid-write never leaves a
// truncated document.
func (s *Store) save(traceID string, doc map[string]any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("state/file: encode %s: %w", traceID, err)
	}
	tmp, err := os.CreateTemp(s.dir, traceID+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", state.ErrBackendUnavailable, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: write temp file: %v", state.ErrBackendUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: close temp file: %v", state.ErrBackendUnavailable, err)
	}
	if err := os.Rename(tmpPath, s.path(traceID)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: rename temp file: %v", state.ErrBackendUnavailable, err)
	}
	return nil
}

// Get implements state.Store.
func (s *Store) Get(_ context.Context, key state.Key) (any, error) {
	lock := s.traceLock(key.TraceID)
	lock.Lock()
	defer lock.Unlock()
	doc, err := s.load(key.TraceID)
	if err != nil {
		return nil, err
	}
	return doc[key.Key], nil
}

// Set implements state.Store.
func (s *Store) Set(_ context.Context, key state.Key, value any) error {
	lock := s.traceLock(key.TraceID)
	lock.Lock()
	defer lock.Unlock()
	doc, err := s.load(key.TraceID)
	if err != nil {
		return err
	}
	doc[key.Key] = value
	return s.save(key.TraceID, doc)
}

// Delete implements state.Store.
func (s *Store) Delete(_ context.Context, key state.Key) error {
	lock := s.traceLock(key.TraceID)
	lock.Lock()
	defer lock.Unlock()
	doc, err := s.load(key.TraceID)
	if err != nil {
		return err
	}
	if _, ok := doc[key.Key]; !ok {
		return nil
	}
	delete(doc, key.Key)
	return s.save(key.TraceID, doc)
}

// Clear implements state.Store by removing the trace's document entirely.
func (s *Store) Clear(_ context.Context, traceID string) error {
	lock := s.traceLock(traceID)
	lock.Lock()
	defer lock.Unlock()
	err := os.Remove(s.path(traceID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove %s: %v", state.ErrBackendUnavailable, traceID, err)
	}
	return nil
}

// GetGroup implements state.Store.
func (s *Store) GetGroup(_ context.Context, traceID string) (map[string]any, error) {
	lock := s.traceLock(traceID)
	lock.Lock()
	defer lock.Unlock()
	return s.load(traceID)
}
