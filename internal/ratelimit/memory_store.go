package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore is a process-local CounterStore. It is only shared between
// goroutines of one process, so it suits single-instance deployments and tests.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	now        func() time.Time
	sweepEvery int
	ops        int
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces time.Now, which lets tests advance time.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// WithSweepEvery sets how many Acquire calls pass between expired-entry sweeps.
func WithSweepEvery(n int) MemoryOption {
	return func(s *MemoryStore) { s.sweepEvery = n }
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries:    make(map[string]memoryEntry),
		now:        time.Now,
		sweepEvery: 1024,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Acquire implements CounterStore.
func (s *MemoryStore) Acquire(_ context.Context, key string, limit int64, ttl time.Duration) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[key]
	if ok && !now.Before(entry.expiresAt) {
		ok = false
	}
	if ok && entry.count >= limit {
		return entry.count, false, nil
	}
	if !ok {
		entry = memoryEntry{expiresAt: now.Add(ttl)}
	}
	entry.count++
	s.entries[key] = entry

	s.ops++
	if s.sweepEvery > 0 && s.ops >= s.sweepEvery {
		s.ops = 0
		s.sweepLocked(now)
	}
	return entry.count, true, nil
}

// Count returns the live count for key; absent or expired keys count as 0.
func (s *MemoryStore) Count(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok || !s.now().Before(entry.expiresAt) {
		return 0
	}
	return entry.count
}

// Len returns the number of stored entries, expired ones included until swept.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}
