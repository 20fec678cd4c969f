// Package ratelimit implements the per-identity sliding-window admission gate
// that fronts every search surface.
//
// Each identity owns a bucket of request timestamps. Admission purges hits that
// are at least one window old, denies when the remaining count has reached the
// maximum, and otherwise records the hit. Buckets live in xxhash-selected
// shards so unrelated identities never share a lock; a periodic Sweep drops
// buckets that have been idle for a full window.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/JakeFAU/turboduck/internal/metrics"
	"github.com/JakeFAU/turboduck/internal/search"
)

const defaultShards = 32

// Config holds limiter configuration.
type Config struct {
	// MaxRequests is the number of admissions allowed per identity per window.
	MaxRequests int
	// Window is the trailing interval admissions are counted over.
	Window time.Duration
	// Shards is the number of independently locked identity maps.
	Shards int
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed bool
	// Remaining is how many more admissions the identity has in the current window.
	Remaining int
	// RetryAfter is set on denial: the time until the oldest counted hit leaves the window.
	RetryAfter time.Duration
}

type bucket struct {
	mu      sync.Mutex
	hits    []time.Time
	evicted bool
}

type shard struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// Limiter is a sliding-window admission controller safe for concurrent use.
type Limiter struct {
	max    int
	window time.Duration
	shards []*shard
	clock  search.Clock
}

// New creates a Limiter. A nil clock uses wall time.
func New(cfg Config, clock search.Clock) (*Limiter, error) {
	if cfg.MaxRequests <= 0 {
		return nil, fmt.Errorf("ratelimit max requests must be positive, got %d", cfg.MaxRequests)
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("ratelimit window must be positive, got %s", cfg.Window)
	}
	count := cfg.Shards
	if count <= 0 {
		count = defaultShards
	}
	if clock == nil {
		clock = wallClock{}
	}
	l := &Limiter{
		max:    cfg.MaxRequests,
		window: cfg.Window,
		shards: make([]*shard, count),
		clock:  clock,
	}
	for i := range l.shards {
		l.shards[i] = &shard{buckets: make(map[string]*bucket)}
	}
	return l, nil
}

// Allow runs one admission check for identity. A denial records nothing.
func (l *Limiter) Allow(identity string) Decision {
	for {
		b := l.bucketFor(identity)
		b.mu.Lock()
		if b.evicted {
			// Swept between lookup and lock; fetch the replacement.
			b.mu.Unlock()
			continue
		}
		d := l.admit(b, l.clock.Now())
		b.mu.Unlock()
		metrics.ObserveAdmission(d.Allowed)
		return d
	}
}

// Admit adapts Allow to the search.AdmissionError taxonomy.
func (l *Limiter) Admit(identity string) error {
	d := l.Allow(identity)
	if d.Allowed {
		return nil
	}
	return &search.AdmissionError{Identity: identity, RetryAfter: d.RetryAfter}
}

func (l *Limiter) admit(b *bucket, now time.Time) Decision {
	cutoff := now.Add(-l.window)
	stale := 0
	for stale < len(b.hits) && !b.hits[stale].After(cutoff) {
		stale++
	}
	if stale > 0 {
		n := copy(b.hits, b.hits[stale:])
		b.hits = b.hits[:n]
	}

	if len(b.hits) >= l.max {
		return Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: b.hits[0].Add(l.window).Sub(now),
		}
	}
	b.hits = append(b.hits, now)
	return Decision{Allowed: true, Remaining: l.max - len(b.hits)}
}

func (l *Limiter) bucketFor(identity string) *bucket {
	sh := l.shards[xxhash.Sum64String(identity)%uint64(len(l.shards))]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	b, ok := sh.buckets[identity]
	if !ok {
		b = &bucket{hits: make([]time.Time, 0, min(l.max, 16))}
		sh.buckets[identity] = b
	}
	return b
}

// Sweep drops buckets whose newest hit is at least one window old and returns
// how many were removed.
func (l *Limiter) Sweep() int {
	cutoff := l.clock.Now().Add(-l.window)
	removed := 0
	for _, sh := range l.shards {
		sh.mu.Lock()
		for identity, b := range sh.buckets {
			b.mu.Lock()
			if len(b.hits) == 0 || !b.hits[len(b.hits)-1].After(cutoff) {
				b.evicted = true
				delete(sh.buckets, identity)
				removed++
			}
			b.mu.Unlock()
		}
		sh.mu.Unlock()
	}
	metrics.SetTrackedIdentities(l.Len())
	return removed
}

// Len returns the number of tracked identities.
func (l *Limiter) Len() int {
	total := 0
	for _, sh := range l.shards {
		sh.mu.Lock()
		total += len(sh.buckets)
		sh.mu.Unlock()
	}
	return total
}

// Run sweeps idle buckets every interval until ctx is canceled.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
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
			l.Sweep()
		}
	}
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }
