// Package respcache provides a keyed in-memory cache with TTL expiry and
// single-flight recomputation.
package respcache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry struct {
	value      any
	computedAt time.Time
}

// Cache caches computed response payloads per key. A missing or expired key
// triggers exactly one computation; concurrent callers for the same key wait
// for and share that computation's result. A failed computation is surfaced
// only to the callers of that attempt and never stored, so a previous value
// keeps serving until a recompute succeeds.
//
// One instance is constructed per process and injected into the aggregators.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	group   singleflight.Group
	now     func() time.Time
}

// New creates an empty cache using the wall clock.
func New() *Cache {
	return NewWithClock(time.Now)
}

// NewWithClock creates a cache with an injected clock, for deterministic TTL
// tests.
func NewWithClock(now func() time.Time) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     now,
	}
}

// GetOrCompute returns the live cached value for key, or computes it. If the
// caller's context ends while a computation is in flight, only this caller's
// wait is aborted; the computation finishes for the remaining waiters.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func() (any, error)) (any, error) {
	if v, ok := c.get(key, ttl); ok {
		return v, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// A racing caller may have repopulated the key before this flight
		// started.
		if v, ok := c.get(key, ttl); ok {
			return v, nil
		}
		v, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(key, v)
		return v, nil
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ComputedAt reports when the key's current value was stored.
func (c *Cache) ComputedAt(key string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return time.Time{}, false
	}
	return e.computedAt, true
}

// Prune drops entries older than maxAge and returns how many were removed.
// Expiry is otherwise evaluated lazily at read time; pruning only bounds
// memory.
func (c *Cache) Prune(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if now.Sub(e.computedAt) > maxAge {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

func (c *Cache) get(key string, ttl time.Duration) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.computedAt) > ttl {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, computedAt: c.now()}
}
