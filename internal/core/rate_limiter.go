package core

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
)

type tokenWindow struct {
	start time.Time
	count int
}

// RateLimiter is a fixed-window counter per key. Keys live in an LRU so a
// flood of distinct remote addresses cannot grow memory without bound.
type RateLimiter struct {
	mu      sync.Mutex
	clock   clock.Clock
	limit   int
	window  time.Duration
	buckets *lru.Cache[string, tokenWindow]
}

func NewRateLimiter(limit int, window time.Duration, maxKeys int, clk clock.Clock) *RateLimiter {
	if limit <= 0 {
		limit = 120
	}
	if window <= 0 {
		window = time.Minute
	}
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	if clk == nil {
		clk = clock.New()
	}
	// lru.New only fails on a non-positive size.
	buckets, _ := lru.New[string, tokenWindow](maxKeys)
	return &RateLimiter{
		clock:   clk,
		limit:   limit,
		window:  window,
		buckets: buckets,
	}
}

func (r *RateLimiter) Allow(key string) bool {
	if key == "" {
		key = "anonymous"
	}
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	b, _ := r.buckets.Get(key)
	if b.start.IsZero() || now.Sub(b.start) >= r.window {
		r.buckets.Add(key, tokenWindow{start: now, count: 1})
		return true
	}
	if b.count >= r.limit {
		return false
	}
	b.count++
	r.buckets.Add(key, b)
	return true
}
