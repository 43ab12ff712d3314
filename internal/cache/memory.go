package cache

import (
	"context"
	"sync"
	"time"

	"github.com/fieldlens/reporting/internal/domain"
)

// MemoryStore is a process-local Store backed by a mutex-guarded map.
// Expired entries are dropped lazily on access and by Purge.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]domain.CacheEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]domain.CacheEntry),
		now:     time.Now,
	}
}

// Get returns the entry for key unless it is absent or expired.
func (s *MemoryStore) Get(_ context.Context, key string) (domain.CacheEntry, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return domain.CacheEntry{}, false, nil
	}
	if entry.Expired(s.now()) {
		s.mu.Lock()
		// Re-check under the write lock; another writer may have replaced it.
		if current, still := s.entries[key]; still && current.Expired(s.now()) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return domain.CacheEntry{}, false, nil
	}
	return entry, true, nil
}

// Put creates or replaces the entry, resetting its hit count.
func (s *MemoryStore) Put(_ context.Context, entry domain.CacheEntry) error {
	entry.Hits = 0
	s.mu.Lock()
	s.entries[entry.Key] = entry
	s.mu.Unlock()
	return nil
}

// IncrementHits bumps the entry's hit counter if it is still present.
func (s *MemoryStore) IncrementHits(_ context.Context, key string) error {
	s.mu.Lock()
	if entry, ok := s.entries[key]; ok {
		entry.Hits++
		s.entries[key] = entry
	}
	s.mu.Unlock()
	return nil
}

// Purge drops every expired entry and reports how many were removed.
func (s *MemoryStore) Purge() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if entry.Expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
