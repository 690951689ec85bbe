package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	windowStart time.Time
	count       int64
}

// MemoryCounterStore keeps fixed-window counters in process memory. The
// mutex serializes the increment-then-check sequence so concurrent requests
// for one user never lose updates.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*memoryEntry
	now      func() time.Time
}

// NewMemoryCounterStore constructs an empty in-process counter store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		counters: make(map[string]*memoryEntry),
		now:      time.Now,
	}
}

// Incr implements CounterStore with lazy window reset: the counter restarts
// the first time it is touched after its window boundary passes.
func (s *MemoryCounterStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.counters[key]
	if entry == nil || now.Sub(entry.windowStart) >= window {
		entry = &memoryEntry{windowStart: now}
		s.counters[key] = entry
	}
	entry.count++
	remaining := window - now.Sub(entry.windowStart)
	return entry.count, remaining, nil
}
