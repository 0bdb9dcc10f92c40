package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/benvon/scam-hunter/internal/models"
)

// CounterStore persists per-key window counters. Hit applies one check for key:
// it opens a fresh window when none exists or the current one has expired, and
// increments the counter only when it is below max. The returned entry is the
// state after the check.
type CounterStore interface {
	Hit(ctx context.Context, key string, now time.Time, window time.Duration, max int) (models.RateLimitEntry, bool, error)
}

// applyHit is the fixed-window transition. It reports whether the request is allowed,
// which is also the only case where the entry needs to be written back.
func applyHit(entry *models.RateLimitEntry, now time.Time, window time.Duration, max int) (allowed bool) {
	if entry.ResetTime.IsZero() || entry.Expired(now) {
		entry.Count = 0
		entry.ResetTime = now.Add(window)
	}
	if entry.Count < max {
		entry.Count++
		return true
	}
	return false
}

// MemoryStore is a process-local CounterStore.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*models.RateLimitEntry
}

// NewMemoryStore creates an empty in-memory counter store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*models.RateLimitEntry)}
}

// Hit implements CounterStore. The read-modify-write happens under one lock.
func (s *MemoryStore) Hit(_ context.Context, key string, now time.Time, window time.Duration, max int) (models.RateLimitEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.entries[key]
	next := models.RateLimitEntry{}
	if ok {
		next = *cur
	}
	allowed := applyHit(&next, now, window, max)
	if allowed {
		s.entries[key] = &next
	}
	return next, allowed, nil
}

// Sweep removes entries whose window closed before now and returns how many were removed
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if e.Expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Reset drops all counters
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*models.RateLimitEntry)
}
