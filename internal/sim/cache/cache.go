// Package cache provides a small time-based key-value cache with lazy expiry.
// Expiry housekeeping runs on the calling goroutine of public operations, at
// most once per configured interval; nothing here spawns goroutines.
package cache

import (
	"sync"
	"time"
)

// Config carries the optional behaviors of a Cache. Zero values are usable:
// no load function, no in-use veto, no post-removal hook.
type Config[K comparable, V any] struct {
	// Now is the clock; defaults to time.Now. Injectable for tests.
	Now func() time.Time
	// Retention is how long an entry survives after its last access.
	Retention time.Duration
	// LazyFrequency caps how often the expiry sweep may run.
	LazyFrequency time.Duration
	// Load materializes a value for a missing key. The bool argument is the
	// caller's create flag; returning ok=false is a valid "no value" outcome.
	Load func(key K, create bool) (V, bool)
	// InUse vetoes removal of an expired entry; vetoed entries get a fresh
	// retention period.
	InUse func(key K, value V) bool
	// PostRemoval runs for entries evicted by expiry, never for Invalidate.
	PostRemoval func(key K, value V)
}

type Cache[K comparable, V any] struct {
	mu sync.Mutex

	now           func() time.Time
	retention     time.Duration
	lazyFrequency time.Duration
	load          func(K, bool) (V, bool)
	inUse         func(K, V) bool
	postRemoval   func(K, V)

	entries map[K]V
	expiry  map[K]time.Time

	lastLazyCheck time.Time
}

func New[K comparable, V any](cfg Config[K, V]) *Cache[K, V] {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 5 * time.Minute
	}
	return &Cache[K, V]{
		now:           cfg.Now,
		retention:     cfg.Retention,
		lazyFrequency: cfg.LazyFrequency,
		load:          cfg.Load,
		inUse:         cfg.InUse,
		postRemoval:   cfg.PostRemoval,
		entries:       map[K]V{},
		expiry:        map[K]time.Time{},
	}
}

// Put inserts or overwrites a value and resets its expiry. A zero value is a
// valid entry and is distinct from an absent key.
func (c *Cache[K, V]) Put(key K, value V) {
	c.lazyCheck()

	c.mu.Lock()
	c.entries[key] = value
	c.expiry[key] = c.now().Add(c.retention)
	c.mu.Unlock()
}

// Get returns the value for key, invoking the load function with create=true
// when the key is absent. Accessing a key refreshes its expiry.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	return c.get(key, true)
}

// GetIfPresent is Get with create=false: the load function is still consulted
// for keys not in memory (it may find persisted state), but is told not to
// make anything new.
func (c *Cache[K, V]) GetIfPresent(key K) (V, bool) {
	return c.get(key, false)
}

func (c *Cache[K, V]) get(key K, create bool) (V, bool) {
	c.lazyCheck()

	c.mu.Lock()
	defer c.mu.Unlock()

	value, ok := c.entries[key]
	if !ok && c.load != nil {
		value, ok = c.load(key, create)
		if ok {
			c.entries[key] = value
		}
	}
	if ok {
		c.expiry[key] = c.now().Add(c.retention)
	}
	return value, ok
}

func (c *Cache[K, V]) ContainsKey(key K) bool {
	c.lazyCheck()

	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Invalidate forcibly removes a key even if it is in use. The post-removal
// hook does not run.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	delete(c.expiry, key)
	c.mu.Unlock()

	c.lazyCheck()
}

// ExpireAll forces every entry through the in-use check, removing any not in
// use. Entries that survive get a fresh retention period.
func (c *Cache[K, V]) ExpireAll() {
	c.mu.Lock()
	for key := range c.expiry {
		c.expiry[key] = time.Time{}
	}
	c.lastLazyCheck = time.Time{}
	c.mu.Unlock()

	c.lazyCheck()
}

// Each calls fn for a snapshot of current entries, outside the internal lock.
// Entries added or removed during iteration may or may not be observed.
func (c *Cache[K, V]) Each(fn func(key K, value V)) {
	c.mu.Lock()
	keys := make([]K, 0, len(c.entries))
	values := make([]V, 0, len(c.entries))
	for k, v := range c.entries {
		keys = append(keys, k)
		values = append(values, v)
	}
	c.mu.Unlock()

	for i, k := range keys {
		fn(k, values[i])
	}
}

// lazyCheck sweeps expired entries. In-use entries get their expiry pushed a
// full retention period forward. Hooks run after the lock is released so a
// hook may safely call back into the cache.
func (c *Cache[K, V]) lazyCheck() {
	now := c.now()

	c.mu.Lock()
	if c.lastLazyCheck.After(now.Add(-c.lazyFrequency)) {
		c.mu.Unlock()
		return
	}
	c.lastLazyCheck = now

	var removedKeys []K
	var removedValues []V
	next := now.Add(c.retention)
	for key, expires := range c.expiry {
		if expires.After(now) {
			continue
		}
		value, ok := c.entries[key]
		if ok && c.inUse != nil && c.inUse(key, value) {
			c.expiry[key] = next
			continue
		}
		delete(c.entries, key)
		delete(c.expiry, key)
		if ok {
			removedKeys = append(removedKeys, key)
			removedValues = append(removedValues, value)
		}
	}
	c.mu.Unlock()

	if c.postRemoval != nil {
		for i, key := range removedKeys {
			c.postRemoval(key, removedValues[i])
		}
	}
}
