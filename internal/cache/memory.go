package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"madspark/internal/logging"
	"madspark/internal/types"
)

// MemoryStore is a bounded in-memory LRU with per-entry TTL. Eviction happens
// on insert once capacity is reached; expired entries are dropped lazily on
// Get. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	capacity int
	ttl      time.Duration

	hits   int64
	misses int64
}

// NewMemoryStore creates an LRU store. capacity <= 0 falls back to 10000;
// ttl <= 0 disables expiry.
func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	if capacity <= 0 {
		capacity = 10000
	}
	return &MemoryStore{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
		ttl:      ttl,
	}
}

// Get implements Store. The returned entry is a copy with Meta.Cached set.
func (s *MemoryStore) Get(ctx context.Context, key string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		s.misses++
		return nil, false
	}

	entry := el.Value.(*Entry)
	if entry.expired(time.Now()) {
		s.order.Remove(el)
		delete(s.entries, key)
		s.misses++
		logging.CacheDebug("entry %s expired, evicting", key)
		return nil, false
	}

	s.order.MoveToFront(el)
	s.hits++

	out := *entry
	out.Record = entry.Record // records are treated as immutable once cached
	out.Meta.Cached = true
	return &out, true
}

// Set implements Store, evicting the least recently used entry when full.
func (s *MemoryStore) Set(ctx context.Context, key string, record map[string]interface{}, meta types.LLMResponseMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		entry := el.Value.(*Entry)
		entry.Record = record
		entry.Meta = meta
		entry.InsertedAt = time.Now()
		s.order.MoveToFront(el)
		return
	}

	if s.order.Len() >= s.capacity {
		oldest := s.order.Back()
		if oldest != nil {
			evicted := oldest.Value.(*Entry)
			s.order.Remove(oldest)
			delete(s.entries, evicted.Key)
			logging.CacheDebug("capacity %d reached, evicted %s", s.capacity, evicted.Key)
		}
	}

	entry := &Entry{
		Key:        key,
		Record:     record,
		Meta:       meta,
		InsertedAt: time.Now(),
		TTL:        s.ttl,
	}
	s.entries[key] = s.order.PushFront(entry)
}

// Len implements Store.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Stats reports hit/miss counters since creation.
func (s *MemoryStore) Stats() (hits, misses int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits, s.misses
}

// Clear drops every entry.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*list.Element)
	s.order.Init()
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
