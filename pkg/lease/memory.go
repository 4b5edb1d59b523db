package lease

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps leases in a map. Uniqueness holds within one process,
// which makes it a store for tests and single-instance deployments.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: map[string]Record{}}
}

func (s *MemoryStore) Probe(context.Context) error { return nil }

func (s *MemoryStore) InsertUnique(_ context.Context, rec Record) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[rec.Key]; ok {
		return AlreadyHeld, nil
	}
	s.rows[rec.Key] = rec
	return Claimed, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.rows, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, r := range s.rows {
		if r.CreatedAt.Before(cutoff) {
			delete(s.rows, k)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Close() error { return nil }

// Get returns the row for key, if any.
func (s *MemoryStore) Get(key string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[key]
	return r, ok
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
