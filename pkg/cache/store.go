package cache

import (
	"path"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Store is an in-memory key-value cache with per-key TTLs, glob-pattern
// bulk invalidation and scheduled future invalidation. It is safe for
// concurrent use. The cache is an optimization, not a correctness
// requirement: callers must tolerate misses.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	timers  map[string]*time.Timer

	stop     chan struct{}
	stopOnce sync.Once
}

// NewStore creates a store and starts its expiry sweep.
func NewStore() *Store {
	s := &Store{
		entries: make(map[string]*entry),
		timers:  make(map[string]*time.Timer),
		stop:    make(chan struct{}),
	}

	go s.cleanupExpired()

	return s
}

// Get returns the cached payload for key, or false when the key is
// absent or expired.
func (s *Store) Get(key string) ([]byte, bool) {
	now := time.Now()

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false
	}

	return e.value, true
}

// Set stores value under key with the given TTL. A zero TTL means the
// entry never expires on its own.
func (s *Store) Set(key string, value []byte, ttl time.Duration) {
	if key == "" {
		return
	}

	expiresAt := time.Time{}
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = &entry{value: value, expiresAt: expiresAt}
	s.mu.Unlock()
}

// Invalidate removes a single key.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// InvalidatePattern removes every key matching the glob pattern and
// returns how many were removed.
func (s *Store) InvalidatePattern(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.entries {
		if ok, err := path.Match(pattern, key); err == nil && ok {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Keys returns the keys currently matching the glob pattern.
func (s *Store) Keys(pattern string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for key := range s.entries {
		if ok, err := path.Match(pattern, key); err == nil && ok {
			keys = append(keys, key)
		}
	}
	return keys
}

// ScheduleInvalidation arranges for key to be removed at the given
// instant. Scheduling again for the same key replaces the previous
// schedule. Schedules are process-local and must be re-established on
// startup; the bootstrap sync does this for gameweek deadlines.
func (s *Store) ScheduleInvalidation(key string, at time.Time) {
	delay := time.Until(at)
	if delay < 0 {
		s.Invalidate(key)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	s.timers[key] = time.AfterFunc(delay, func() {
		s.Invalidate(key)
		s.mu.Lock()
		delete(s.timers, key)
		s.mu.Unlock()
	})
}

// Len returns the number of live entries, counting expired ones not yet
// swept.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the expiry sweep and cancels all scheduled invalidations.
func (s *Store) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})

	s.mu.Lock()
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
	s.mu.Unlock()
}

// cleanupExpired periodically removes expired entries.
func (s *Store) cleanupExpired() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for key, e := range s.entries {
				if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		}
	}
}
