package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fieldlens/reporting/internal/domain"
)

func TestManager_MissThenHit(t *testing.T) {
	m := NewManager(NewMemoryStore())
	id := uuid.New()
	calls := 0

	payload, hit, err := m.Do(context.Background(), id, "k1", time.Minute, func(context.Context) ([]byte, error) {
		calls++
		return []byte(`{"rows":1}`), nil
	})
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if hit {
		t.Fatal("first call must be a miss")
	}
	if string(payload) != `{"rows":1}` {
		t.Fatalf("unexpected payload %q", payload)
	}

	payload, hit, err = m.Do(context.Background(), id, "k1", time.Minute, func(context.Context) ([]byte, error) {
		calls++
		return nil, errors.New("should not run")
	})
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if !hit {
		t.Fatal("second call must be served from the store")
	}
	if string(payload) != `{"rows":1}` {
		t.Fatalf("unexpected cached payload %q", payload)
	}
	if calls != 1 {
		t.Fatalf("compute ran %d times, want 1", calls)
	}
}

func TestManager_ExpiredEntryRecomputed(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store)
	id := uuid.New()

	base := time.Now()
	current := base
	clock := func() time.Time { return current }
	m.now = clock
	store.now = clock

	compute := func(context.Context) ([]byte, error) { return []byte("v1"), nil }
	if _, _, err := m.Do(context.Background(), id, "k", time.Minute, compute); err != nil {
		t.Fatalf("seed: %v", err)
	}

	current = base.Add(2 * time.Minute)

	ran := false
	payload, hit, err := m.Do(context.Background(), id, "k", time.Minute, func(context.Context) ([]byte, error) {
		ran = true
		return []byte("v2"), nil
	})
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if hit || !ran {
		t.Fatal("an expired entry must never be served")
	}
	if string(payload) != "v2" {
		t.Fatalf("unexpected payload %q", payload)
	}
}

func TestManager_CoalescesConcurrentCallers(t *testing.T) {
	m := NewManager(NewMemoryStore())
	id := uuid.New()

	var executions int32
	release := make(chan struct{})
	compute := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&executions, 1)
		<-release
		return []byte("shared"), nil
	}

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload, _, err := m.Do(context.Background(), id, "hot", time.Minute, compute)
			if err != nil {
				errs <- err
				return
			}
			if string(payload) != "shared" {
				errs <- errors.New("caller got a different payload")
			}
		}()
	}

	// Let every caller reach the flight before the leader finishes.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&executions); n != 1 {
		t.Fatalf("compute ran %d times across concurrent callers, want 1", n)
	}
}

func TestManager_FailedComputeNotStored(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store)
	id := uuid.New()

	boom := errors.New("query failed")
	_, _, err := m.Do(context.Background(), id, "bad", time.Minute, func(context.Context) ([]byte, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the compute error, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatal("failed computations must not be cached")
	}

	// The next caller retries the computation.
	payload, hit, err := m.Do(context.Background(), id, "bad", time.Minute, func(context.Context) ([]byte, error) {
		return []byte("ok"), nil
	})
	if err != nil || hit || string(payload) != "ok" {
		t.Fatalf("retry after failure: payload=%q hit=%v err=%v", payload, hit, err)
	}
}

func TestManager_StoreErrorsDegradeToMiss(t *testing.T) {
	m := NewManager(failingStore{})
	id := uuid.New()

	payload, hit, err := m.Do(context.Background(), id, "k", time.Minute, func(context.Context) ([]byte, error) {
		return []byte("computed"), nil
	})
	if err != nil {
		t.Fatalf("store failures must not fail the request: %v", err)
	}
	if hit {
		t.Fatal("a failing store can never produce a hit")
	}
	if string(payload) != "computed" {
		t.Fatalf("unexpected payload %q", payload)
	}
}

func TestManager_ZeroTTLSkipsStore(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store)

	_, _, err := m.Do(context.Background(), uuid.New(), "k", 0, func(context.Context) ([]byte, error) {
		return []byte("v"), nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if store.Len() != 0 {
		t.Fatal("a zero TTL must bypass the store entirely")
	}
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (domain.CacheEntry, bool, error) {
	return domain.CacheEntry{}, false, errors.New("store down")
}

func (failingStore) Put(context.Context, domain.CacheEntry) error {
	return errors.New("store down")
}

func (failingStore) IncrementHits(context.Context, string) error {
	return errors.New("store down")
}
