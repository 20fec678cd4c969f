// Package throttle paces outbound requests with a token bucket per host so the
// gateway stays polite to upstream search engines and enriched sites.
package throttle

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/turboduck/internal/metrics"
)

// DefaultMaxHosts bounds the bucket table when Config.MaxHosts is unset.
const DefaultMaxHosts = 1024

// Config holds throttle configuration.
type Config struct {
	// Name labels wait metrics, e.g. "backend" or "enrich".
	Name string
	// RPS is the steady request rate per host. Zero or negative disables pacing.
	RPS float64
	// Burst is the number of requests allowed back to back per host.
	Burst int
	// MaxHosts caps the tracked buckets; the least recently used host is
	// dropped first and starts over with a full bucket.
	MaxHosts int
}

// Throttle manages per-host token buckets.
type Throttle struct {
	mu       sync.Mutex
	limiters *simplelru.LRU[string, *rate.Limiter]
	name     string
	rate     rate.Limit
	burst    int
}

// New creates a new Throttle.
func New(cfg Config) *Throttle {
	r := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	maxHosts := cfg.MaxHosts
	if maxHosts <= 0 {
		maxHosts = DefaultMaxHosts
	}
	name := cfg.Name
	if name == "" {
		name = "default"
	}
	// NewLRU only fails on a non-positive size.
	limiters, _ := simplelru.NewLRU[string, *rate.Limiter](maxHosts, nil)
	return &Throttle{
		limiters: limiters,
		name:     name,
		rate:     r,
		burst:    burst,
	}
}

// Enabled reports whether the throttle paces requests at all.
func (t *Throttle) Enabled() bool {
	return t != nil && t.rate != rate.Inf
}

// Wait blocks until a token is available for the host of rawURL, respecting the context.
func (t *Throttle) Wait(ctx context.Context, rawURL string) error {
	if !t.Enabled() {
		return nil
	}
	host := hostOf(rawURL)
	limiter := t.limiterFor(host)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("throttle wait for %s: %w", host, err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveThrottleDelay(t.name, waited)
	}
	return nil
}

// Hosts returns how many hosts currently have a bucket.
func (t *Throttle) Hosts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.limiters.Len()
}

func (t *Throttle) limiterFor(host string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	limiter, ok := t.limiters.Get(host)
	if !ok {
		limiter = rate.NewLimiter(t.rate, t.burst)
		t.limiters.Add(host, limiter)
	}
	return limiter
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
