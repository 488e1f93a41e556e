package reliability

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for tests and for embedding relink
// without a database. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	priors  map[string]Record
	records map[string]Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore seeded with the given priors.
// Nil priors means DefaultPriors.
func NewMemoryStore(priors map[string]Record) *MemoryStore {
	if priors == nil {
		priors = DefaultPriors()
	}
	return &MemoryStore{
		priors:  priors,
		records: make(map[string]Record),
	}
}

// Snapshot returns a copy of the belief table with priors filled in for
// every configured branch not yet updated.
func (s *MemoryStore) Snapshot(ctx context.Context) (map[string]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Record, len(s.priors)+len(s.records))
	for name, r := range s.priors {
		out[name] = r
	}
	for name, r := range s.records {
		out[name] = r
	}
	return out, nil
}

// Update applies one conjugate increment under the store mutex.
func (s *MemoryStore) Update(ctx context.Context, branch string, wasCorrect bool) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[branch]
	if !ok {
		rec = priorFor(s.priors, branch)
	}
	if wasCorrect {
		rec.Alpha++
	} else {
		rec.Beta++
	}
	s.records[branch] = rec
	return rec, nil
}
