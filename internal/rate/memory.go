package rate

import (
	"context"
	"sync"
	"time"
)

type memoryCounter struct {
	count   int64
	resetAt time.Time
}

type memorySet struct {
	members map[string]struct{}
	resetAt time.Time
}

// MemoryStore is the in-process fallback counter store. Same window
// semantics as [RedisStore] but node-local scope: when the shared store is
// down every instance enforces its own budget, which is the accepted
// degradation.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
	sets     map[string]*memorySet
	now      func() time.Time

	ops int // sweep pacing
}

// NewMemoryStore returns an empty in-process counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*memoryCounter),
		sets:     make(map[string]*memorySet),
		now:      time.Now,
	}
}

// SetClock overrides the store clock. Test hook.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.maybeSweep(now)

	c, ok := s.counters[key]
	if !ok || !now.Before(c.resetAt) {
		c = &memoryCounter{resetAt: now.Add(ttl)}
		s.counters[key] = c
	}
	c.count++

	return c.count, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || !s.now().Before(c.resetAt) {
		return 0, nil
	}

	return c.count, nil
}

func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok {
		return 0, nil
	}
	ttl := c.resetAt.Sub(s.now())
	if ttl < 0 {
		return 0, nil
	}

	return ttl, nil
}

func (s *MemoryStore) Clear(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.counters, key)
		delete(s.sets, key)
	}

	return nil
}

func (s *MemoryStore) AddToSet(_ context.Context, key, member string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	set, ok := s.sets[key]
	if !ok || !now.Before(set.resetAt) {
		set = &memorySet{members: make(map[string]struct{}), resetAt: now.Add(ttl)}
		s.sets[key] = set
	}
	set.members[member] = struct{}{}

	return int64(len(set.members)), nil
}

// maybeSweep drops expired entries every few hundred mutations so the maps
// cannot grow without bound. Caller holds the lock.
func (s *MemoryStore) maybeSweep(now time.Time) {
	s.ops++
	if s.ops%256 != 0 {
		return
	}
	for key, c := range s.counters {
		if !now.Before(c.resetAt) {
			delete(s.counters, key)
		}
	}
	for key, set := range s.sets {
		if !now.Before(set.resetAt) {
			delete(s.sets, key)
		}
	}
}
