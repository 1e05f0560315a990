package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	createdAt time.Time
	ttl       time.Duration
}

func (e *memoryEntry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// MemoryStore is the in-process Store implementation. It is the
// always-available tier: no external dependency, bounded by capacity.
//
// When full it evicts the entry inserted earliest among those still
// present. This is deliberately insertion-order eviction, not LRU:
// reading an entry does not protect it.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]*memoryEntry
	order      []string // insertion order of the keys currently in entries
	capacity   int
	defaultTTL time.Duration
	stats      Stats
	logger     *slog.Logger

	sweepStop chan struct{}
	sweepDone chan struct{}
}

// MemoryOption configures the store.
type MemoryOption func(*MemoryStore)

// WithSweepInterval starts a background goroutine purging expired
// entries every interval. Purely a memory bound; reads already treat
// expired entries as absent.
func WithSweepInterval(interval time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.sweepStop = make(chan struct{})
			s.sweepDone = make(chan struct{})
			go s.sweepLoop(interval)
		}
	}
}

// WithMemoryLogger sets the logger.
func WithMemoryLogger(logger *slog.Logger) MemoryOption {
	return func(s *MemoryStore) {
		s.logger = logger
	}
}

// NewMemoryStore creates a bounded in-memory store.
func NewMemoryStore(capacity int, defaultTTL time.Duration, opts ...MemoryOption) *MemoryStore {
	if capacity <= 0 {
		capacity = 1000
	}
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	s := &MemoryStore{
		entries:    make(map[string]*memoryEntry),
		capacity:   capacity,
		defaultTTL: defaultTTL,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		s.stats.Misses++
		return nil, false, nil
	}
	if e.expired(time.Now()) {
		delete(s.entries, key)
		s.removeOrderLocked(key)
		s.stats.Misses++
		return nil, false, nil
	}
	s.stats.Hits++
	return e.value, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists {
		if len(s.entries) >= s.capacity {
			s.evictOldestLocked()
		}
		s.order = append(s.order, key)
	}
	s.entries[key] = &memoryEntry{value: value, createdAt: time.Now(), ttl: ttl}
	s.stats.Sets++
	return nil
}

// evictOldestLocked removes the oldest-inserted entry.
func (s *MemoryStore) evictOldestLocked() {
	if len(s.order) == 0 {
		return
	}
	oldest := s.order[0]
	s.order = s.order[1:]
	delete(s.entries, oldest)
}

// removeOrderLocked drops key's slot from the insertion order. Every
// path that deletes from entries must call it, or the slice would grow
// without bound under churn that stays below capacity.
func (s *MemoryStore) removeOrderLocked(key string) {
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// compactOrderLocked rebuilds the insertion order from the keys still
// in entries, preserving their relative order.
func (s *MemoryStore) compactOrderLocked() {
	live := s.order[:0]
	for _, k := range s.order {
		if _, ok := s.entries[k]; ok {
			live = append(live, k)
		}
	}
	s.order = live
}

func (s *MemoryStore) Delete(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return false, nil
	}
	delete(s.entries, key)
	s.removeOrderLocked(key)
	s.stats.Deletes++
	return true, nil
}

func (s *MemoryStore) Clear(ctx context.Context, pattern string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.entries {
		if matchesPattern(key, pattern) {
			delete(s.entries, key)
			removed++
		}
	}
	if removed > 0 {
		s.compactOrderLocked()
	}
	s.stats.Deletes += int64(removed)
	return removed, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	stats.Size = int64(len(s.entries))
	return stats, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	if s.sweepStop != nil {
		close(s.sweepStop)
		<-s.sweepDone
		s.sweepStop = nil
	}
	return nil
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	defer close(s.sweepDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.sweepStop:
			return
		case <-ticker.C:
			purged := s.sweep()
			if purged > 0 {
				s.logger.Debug("cache sweep purged expired entries", slog.Int("count", purged))
			}
		}
	}
}

func (s *MemoryStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	purged := 0
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
			purged++
		}
	}
	if purged > 0 {
		s.compactOrderLocked()
	}
	return purged
}
