package core

import (
	"sync"
	"time"
)

// TTLStore is a key-value store with per-entry expiry. Components that need
// short-lived shared state (rate-limit windows, replay guards) take a
// TTLStore instead of owning a process-global map, so deployments can swap
// in an external store without touching the components.
type TTLStore interface {
	// Set stores value under key for ttl.
	Set(key string, value interface{}, ttl time.Duration)
	// Get returns the value for key, or false if absent or expired.
	Get(key string) (interface{}, bool)
	// Delete removes key.
	Delete(key string)
	// Increment adds one to the counter at key, creating it with ttl if
	// absent, and returns the new count. The ttl is not extended on
	// subsequent increments (fixed-window semantics).
	Increment(key string, ttl time.Duration) int64
}

type ttlEntry struct {
	value     interface{}
	expiresAt time.Time
}

// MemoryTTLStore is the in-process TTLStore. A janitor goroutine evicts
// expired entries so long-running processes do not accumulate dead keys.
type MemoryTTLStore struct {
	mu      sync.Mutex
	entries map[string]*ttlEntry
	done    chan struct{}
	once    sync.Once
}

// NewMemoryTTLStore creates a MemoryTTLStore and starts its janitor.
func NewMemoryTTLStore(sweepInterval time.Duration) *MemoryTTLStore {
	s := &MemoryTTLStore{
		entries: make(map[string]*ttlEntry),
		done:    make(chan struct{}),
	}

	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.evictExpired()
			case <-s.done:
				return
			}
		}
	}()

	return s
}

func (s *MemoryTTLStore) Set(key string, value interface{}, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &ttlEntry{value: value, expiresAt: time.Now().Add(ttl)}
}

func (s *MemoryTTLStore) Get(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(s.entries, key)
		return nil, false
	}
	return e.value, true
}

func (s *MemoryTTLStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

func (s *MemoryTTLStore) Increment(key string, ttl time.Duration) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		s.entries[key] = &ttlEntry{value: int64(1), expiresAt: time.Now().Add(ttl)}
		return 1
	}

	count, _ := e.value.(int64)
	count++
	e.value = count
	return count
}

// Close stops the janitor goroutine.
func (s *MemoryTTLStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *MemoryTTLStore) evictExpired() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}

var _ TTLStore = (*MemoryTTLStore)(nil)
