package cache

import (
	"sort"
	"sync"
	"time"
)

// ExpiringCacheConfig holds configuration for ExpiringCache.
type ExpiringCacheConfig struct {
	// TTL is the maximum age of an entry that Get will still return.
	TTL time.Duration
	// MaxEntries bounds the entry count after each Cleanup.
	// Zero or negative disables the overflow phase.
	MaxEntries int
}

// DefaultExpiringCacheConfig returns the default configuration.
func DefaultExpiringCacheConfig() ExpiringCacheConfig {
	return ExpiringCacheConfig{
		TTL:        5 * time.Minute,
		MaxEntries: 50,
	}
}

// Entry is a single cached payload together with the time it was stored.
type Entry[V any] struct {
	Key      string
	Payload  V
	StoredAt time.Time
}

// ExpiringCache is an in-memory key/value store bounded by age and size.
//
// Eviction is pull-based: nothing is removed until the owner calls Cleanup.
// Get checks staleness on its own, so a stale entry that has not been swept
// yet is reported as a miss but still occupies a slot.
type ExpiringCache[V any] struct {
	mu      sync.Mutex
	entries map[string]Entry[V]

	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewExpiringCache creates an empty ExpiringCache.
func NewExpiringCache[V any](cfg ExpiringCacheConfig) *ExpiringCache[V] {
	return newExpiringCache[V](cfg, time.Now)
}

// newExpiringCache creates an ExpiringCache with a given clock.
// This is used for dependency injection in tests.
func newExpiringCache[V any](cfg ExpiringCacheConfig, now func() time.Time) *ExpiringCache[V] {
	return &ExpiringCache[V]{
		entries:    make(map[string]Entry[V]),
		ttl:        cfg.TTL,
		maxEntries: cfg.MaxEntries,
		now:        now,
	}
}

// Get returns the payload stored under key if it is younger than the TTL.
func (c *ExpiringCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.StoredAt) >= c.ttl {
		return zero, false
	}
	return e.Payload, true
}

// Put stores payload under key, replacing any previous entry.
func (c *ExpiringCache[V]) Put(key string, payload V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = Entry[V]{
		Key:      key,
		Payload:  payload,
		StoredAt: c.now(),
	}
}

// Cleanup removes expired entries and then, if the cache is still over
// capacity, the oldest entries until MaxEntries remain.
// It returns the number of entries removed.
func (c *ExpiringCache[V]) Cleanup(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if now.Sub(e.StoredAt) > c.ttl {
			delete(c.entries, key)
			removed++
		}
	}

	if c.maxEntries <= 0 || len(c.entries) <= c.maxEntries {
		return removed
	}

	ordered := c.sortedLocked()
	overflow := len(ordered) - c.maxEntries
	for _, e := range ordered[:overflow] {
		delete(c.entries, e.Key)
	}

	return removed + overflow
}

// Len returns the number of entries currently held, stale ones included.
func (c *ExpiringCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Snapshot returns a copy of all entries ordered oldest first.
func (c *ExpiringCache[V]) Snapshot() []Entry[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sortedLocked()
}

// sortedLocked orders entries by StoredAt ascending, ties broken by key.
// Caller must hold c.mu.
func (c *ExpiringCache[V]) sortedLocked() []Entry[V] {
	out := make([]Entry[V], 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StoredAt.Equal(out[j].StoredAt) {
			return out[i].StoredAt.Before(out[j].StoredAt)
		}
		return out[i].Key < out[j].Key
	})
	return out
}
