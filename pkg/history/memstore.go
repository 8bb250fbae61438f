package history

import (
	"context"
	"sync"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory [Store]. It is the default backend when no
// database is configured and the workhorse for tests. Safe for concurrent
// use.
type MemStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Append implements [Store].
func (s *MemStore) Append(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// List implements [Store]. Records are returned in insertion order, which
// matches resolution order since Append is called as prompts resolve.
func (s *MemStore) List(_ context.Context, opts QueryOpts) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, rec := range s.records {
		if !matches(rec, opts) {
			continue
		}
		out = append(out, rec)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

// Summarize implements [Store].
func (s *MemStore) Summarize(_ context.Context, sessionID string) (Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum Summary
	for _, rec := range s.records {
		if rec.SessionID != sessionID {
			continue
		}
		sum.add(rec.Response)
	}
	return sum, nil
}

// Close implements [Store].
func (s *MemStore) Close() error { return nil }

func matches(rec Record, opts QueryOpts) bool {
	if opts.SessionID != "" && rec.SessionID != opts.SessionID {
		return false
	}
	if opts.Response != "" && rec.Response != opts.Response {
		return false
	}
	if !opts.After.IsZero() && !rec.ResolvedAt.After(opts.After) {
		return false
	}
	if !opts.Before.IsZero() && !rec.ResolvedAt.Before(opts.Before) {
		return false
	}
	return true
}
