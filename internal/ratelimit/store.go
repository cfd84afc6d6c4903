package ratelimit

import (
	"sync"
	"time"
)

// Store tracks failed login attempts per key. Implementations must be safe
// for concurrent use; the in-memory store below is the default, a shared
// backend can be swapped in behind the same interface.
type Store interface {
	// Allowed reports whether the key may attempt again.
	Allowed(key string, now time.Time) bool
	// RecordFailure registers a failed attempt for the key.
	RecordFailure(key string, now time.Time)
	// Reset clears the key after a successful attempt.
	Reset(key string)
}

// MemoryStore is a sliding-window attempt counter kept in process memory.
type MemoryStore struct {
	maxAttempts int
	window      time.Duration

	mu       sync.Mutex
	attempts map[string][]time.Time
}

// NewMemoryStore limits each key to maxAttempts failures per window.
func NewMemoryStore(maxAttempts int, window time.Duration) *MemoryStore {
	return &MemoryStore{
		maxAttempts: maxAttempts,
		window:      window,
		attempts:    make(map[string][]time.Time),
	}
}

func (s *MemoryStore) Allowed(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prune(key, now)) < s.maxAttempts
}

func (s *MemoryStore) RecordFailure(key string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[key] = append(s.prune(key, now), now)
}

func (s *MemoryStore) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, key)
}

// prune drops attempts older than the window. Caller holds the lock.
func (s *MemoryStore) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-s.window)
	kept := s.attempts[key][:0]
	for _, at := range s.attempts[key] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	if len(kept) == 0 {
		delete(s.attempts, key)
		return nil
	}
	s.attempts[key] = kept
	return kept
}
