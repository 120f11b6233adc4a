// Package memory is the in-memory Store variant: a plain map guarded by a
// sync.RWMutex, the same concurrency idiom the teacher's Store uses for its
// durable backend (internal/store/store.go in the teacher repo), minus any
// disk I/O. Used by tests and by peers started with no kvPath.
package memory

import (
	"sync"

	"github.com/nodeweave/peerdb/internal/record"
)

type Store struct {
	mu      sync.RWMutex
	nodes   map[string]*record.Record
	history map[string][]*record.Record
}

func New() *Store {
	return &Store{
		nodes:   make(map[string]*record.Record),
		history: make(map[string][]*record.Record),
	}
}

func (s *Store) SetNode(rec *record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes[rec.ID] = rec.Clone()
	s.history[rec.ID] = append(s.history[rec.ID], rec.Clone())
	return nil
}

func (s *Store) GetNode(id string) (*record.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.nodes[id]
	if !ok {
		return nil, false, nil
	}
	return rec.Clone(), true, nil
}

func (s *Store) DeleteNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.nodes, id)
	return nil
}

func (s *Store) ListNodes(yield func(*record.Record) bool) error {
	s.mu.RLock()
	snapshot := make([]*record.Record, 0, len(s.nodes))
	for _, rec := range s.nodes {
		snapshot = append(snapshot, rec.Clone())
	}
	s.mu.RUnlock()

	for _, rec := range snapshot {
		if !yield(rec) {
			break
		}
	}
	return nil
}

func (s *Store) GetNodeHistory(id string) ([]*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.history[id]
	out := make([]*record.Record, len(entries))
	for i, rec := range entries {
		out[i] = rec.Clone()
	}
	return out, nil
}

func (s *Store) Close() error { return nil }
