package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/JakeFAU/turboduck/internal/metrics"
	"github.com/JakeFAU/turboduck/internal/search"
)

// Config tunes a Store.
type Config struct {
	// TTL applies to Put calls that pass a non-positive ttl.
	TTL time.Duration
	// MaxEntries bounds the total number of live entries across all shards.
	MaxEntries int
	// Shards spreads keys over independent locks. Clamped to [1, MaxEntries].
	Shards int
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

type shard[V any] struct {
	mu  sync.Mutex
	lru *simplelru.LRU[string, entry[V]]
}

// Store is a TTL-bounded LRU cache safe for concurrent use. Keys in different
// shards never contend on the same lock. Capacity is global: a Put evicts only
// when the total across all shards would exceed MaxEntries, taking the least
// recently used entry of the shard being written (or of the next non-empty
// shard when that one holds nothing else).
type Store[V any] struct {
	shards     []*shard[V]
	ttl        time.Duration
	clock      search.Clock
	maxEntries int64
	size       atomic.Int64
}

// New builds a Store. A nil clock uses wall time.
func New[V any](cfg Config, clock search.Clock) (*Store[V], error) {
	if cfg.MaxEntries <= 0 {
		return nil, fmt.Errorf("cache max entries must be positive, got %d", cfg.MaxEntries)
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %s", cfg.TTL)
	}
	count := cfg.Shards
	if count <= 0 {
		count = 1
	}
	if count > cfg.MaxEntries {
		count = cfg.MaxEntries
	}
	if clock == nil {
		clock = wallClock{}
	}

	s := &Store[V]{
		shards:     make([]*shard[V], count),
		ttl:        cfg.TTL,
		clock:      clock,
		maxEntries: int64(cfg.MaxEntries),
	}
	for i := range s.shards {
		// Every shard may grow to the global bound; the store enforces the total.
		lru, err := simplelru.NewLRU[string, entry[V]](cfg.MaxEntries, nil)
		if err != nil {
			return nil, fmt.Errorf("create cache shard %d: %w", i, err)
		}
		s.shards[i] = &shard[V]{lru: lru}
	}
	return s, nil
}

func (s *Store[V]) shardIndex(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(s.shards)))
}

func (s *Store[V]) shardFor(key string) *shard[V] {
	return s.shards[s.shardIndex(key)]
}

// Get returns the live value stored under key. An expired entry counts as a
// miss and is removed.
func (s *Store[V]) Get(key string) (V, bool) {
	var zero V
	sh := s.shardFor(key)
	now := s.clock.Now()

	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.lru.Get(key)
	if !ok {
		return zero, false
	}
	if !now.Before(e.expiresAt) {
		if sh.lru.Remove(key) {
			s.size.Add(-1)
		}
		metrics.ObserveCacheEviction("expired")
		return zero, false
	}
	return e.value, true
}

// Put stores value under key, overwriting any existing entry and resetting its
// expiry. A non-positive ttl uses the configured default.
func (s *Store[V]) Put(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.ttl
	}
	idx := s.shardIndex(key)
	sh := s.shards[idx]
	e := entry[V]{value: value, expiresAt: s.clock.Now().Add(ttl)}

	sh.mu.Lock()
	existed := sh.lru.Contains(key)
	if sh.lru.Add(key, e) {
		s.size.Add(-1)
		metrics.ObserveCacheEviction("capacity")
	}
	sh.mu.Unlock()
	if existed {
		return
	}
	if s.size.Add(1) > s.maxEntries {
		s.evictOne(idx, key)
	}
}

// evictOne drops one least recently used entry, starting at shard start and
// never dropping keep. Shard locks are taken one at a time.
func (s *Store[V]) evictOne(start int, keep string) {
	for i := range s.shards {
		sh := s.shards[(start+i)%len(s.shards)]
		sh.mu.Lock()
		oldest, _, ok := sh.lru.GetOldest()
		if ok && oldest != keep {
			sh.lru.RemoveOldest()
			sh.mu.Unlock()
			s.size.Add(-1)
			metrics.ObserveCacheEviction("capacity")
			return
		}
		sh.mu.Unlock()
	}
}

// Delete removes key and reports whether it was present.
func (s *Store[V]) Delete(key string) bool {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if !sh.lru.Remove(key) {
		return false
	}
	s.size.Add(-1)
	return true
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (s *Store[V]) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		total += sh.lru.Len()
		sh.mu.Unlock()
	}
	return total
}

// Sweep removes every expired entry and returns how many were dropped.
func (s *Store[V]) Sweep() int {
	now := s.clock.Now()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, key := range sh.lru.Keys() {
			e, ok := sh.lru.Peek(key)
			if ok && !now.Before(e.expiresAt) && sh.lru.Remove(key) {
				removed++
			}
		}
		sh.mu.Unlock()
	}
	s.size.Add(-int64(removed))
	for range removed {
		metrics.ObserveCacheEviction("expired")
	}
	return removed
}

// Run sweeps on every interval tick until ctx is canceled.
func (s *Store[V]) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }
