package repository

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryHold struct {
	owner     string
	expiresAt time.Time
}

// MemoryHoldStore is an in-process hold store with the same semantics as
// RedisHoldStore.  A single mutex makes every operation atomic.  It backs
// unit tests and single-process development runs without Redis.
type MemoryHoldStore struct {
	mu    sync.Mutex
	holds map[string]memoryHold
	now   func() time.Time
}

// NewMemoryHoldStore returns an empty store using the wall clock.
func NewMemoryHoldStore() *MemoryHoldStore {
	return NewMemoryHoldStoreWithClock(time.Now)
}

// NewMemoryHoldStoreWithClock returns an empty store that reads time from now.
func NewMemoryHoldStoreWithClock(now func() time.Time) *MemoryHoldStore {
	return &MemoryHoldStore{holds: make(map[string]memoryHold), now: now}
}

// live returns the unexpired hold at key, dropping it if it lapsed.
// Callers must hold s.mu.
func (s *MemoryHoldStore) live(key string) (memoryHold, bool) {
	h, ok := s.holds[key]
	if !ok {
		return memoryHold{}, false
	}
	if !s.now().Before(h.expiresAt) {
		delete(s.holds, key)
		return memoryHold{}, false
	}
	return h, true
}

func (s *MemoryHoldStore) Acquire(_ context.Context, key, owner string, ttl time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.live(key)
	if ok && h.owner != owner {
		return h.owner, false, nil
	}
	s.holds[key] = memoryHold{owner: owner, expiresAt: s.now().Add(ttl)}
	return owner, true, nil
}

func (s *MemoryHoldStore) Release(_ context.Context, key, owner string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.live(key)
	if !ok || h.owner != owner {
		return false, nil
	}
	delete(s.holds, key)
	return true, nil
}

func (s *MemoryHoldStore) Extend(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.live(key)
	if !ok || h.owner != owner {
		return false, nil
	}
	h.expiresAt = s.now().Add(ttl)
	s.holds[key] = h
	return true, nil
}

func (s *MemoryHoldStore) Get(_ context.Context, keys ...string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(keys))
	for i, k := range keys {
		if h, ok := s.live(k); ok {
			out[i] = h.owner
		}
	}
	return out, nil
}

func (s *MemoryHoldStore) Scan(_ context.Context, prefix string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string)
	for k := range s.holds {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if h, ok := s.live(k); ok {
			out[k] = h.owner
		}
	}
	return out, nil
}
