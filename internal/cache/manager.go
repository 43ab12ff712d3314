package cache

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/fieldlens/reporting/internal/domain"
)

// Store is the key/value collaborator the manager reads and writes through.
// Get must never return an expired entry.
type Store interface {
	Get(ctx context.Context, key string) (domain.CacheEntry, bool, error)
	Put(ctx context.Context, entry domain.CacheEntry) error
	IncrementHits(ctx context.Context, key string) error
}

// Manager fronts a Store with TTL bookkeeping and request coalescing:
// concurrent requests for the same uncached key share a single in-flight
// computation. Store failures degrade to cache misses; caching is a
// performance optimization, never a correctness requirement.
type Manager struct {
	store  Store
	flight singleflight.Group
	now    func() time.Time
}

// NewManager creates a manager over the given store.
func NewManager(store Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

type flightResult struct {
	payload []byte
	hit     bool
}

// Do returns the cached payload for key when a live entry exists, otherwise
// runs compute exactly once across concurrent callers, stores the result
// with the given TTL, and returns it. The boolean reports whether the
// payload came from the store. Failed computations are never stored.
func (m *Manager) Do(ctx context.Context, reportID uuid.UUID, key string, ttl time.Duration, compute func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	if payload, ok := m.lookup(ctx, key); ok {
		return payload, true, nil
	}

	v, err, _ := m.flight.Do(key, func() (any, error) {
		// A concurrent leader may have stored the entry between our miss
		// and acquiring the flight.
		if payload, ok := m.lookup(ctx, key); ok {
			return flightResult{payload: payload, hit: true}, nil
		}

		payload, err := compute(ctx)
		if err != nil {
			return flightResult{}, err
		}

		now := m.now()
		entry := domain.CacheEntry{
			ReportID:      reportID,
			Key:           key,
			ParameterHash: key,
			Payload:       payload,
			CreatedAt:     now,
			ExpiresAt:     now.Add(ttl),
		}
		if ttl <= 0 {
			return flightResult{payload: payload}, nil
		}
		if err := m.store.Put(ctx, entry); err != nil {
			log.Printf("[CACHE] failed to store entry %s: %v", key, err)
		}
		return flightResult{payload: payload}, nil
	})
	if err != nil {
		return nil, false, err
	}

	result := v.(flightResult)
	return result.payload, result.hit, nil
}

// lookup reads the store, demoting errors and expired entries to misses.
// The hit counter update happens off the read path.
func (m *Manager) lookup(ctx context.Context, key string) ([]byte, bool) {
	entry, ok, err := m.store.Get(ctx, key)
	if err != nil {
		log.Printf("[CACHE] lookup failed for %s, treating as miss: %v", key, err)
		return nil, false
	}
	if !ok || entry.Expired(m.now()) {
		return nil, false
	}

	go func() {
		bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.store.IncrementHits(bg, key); err != nil {
			log.Printf("[CACHE] hit count update failed for %s: %v", key, err)
		}
	}()

	return entry.Payload, true
}
