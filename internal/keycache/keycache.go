// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// keycache.go — in-process LRU cache of key descriptors with TTL expiry, plus
// a cached snapshot of the full key listing used by merge validation.

// Package keycache caches attribute key descriptors in memory.
package keycache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AndrewDonelson/eav/internal/clock"
	"github.com/AndrewDonelson/eav/internal/record"
)

// Options configures a Cache.
type Options struct {
	// TTL bounds how long a descriptor is served without asking the registry.
	// Zero disables expiry.
	TTL time.Duration
	// MaxEntries caps the per-name cache; zero means unbounded.
	MaxEntries int
	Clock      clock.Clock
}

type entry struct {
	key       record.Key
	expiresAt time.Time
	elem      *list.Element
}

// Cache is an LRU of key descriptors indexed by name. Safe for concurrent use.
type Cache struct {
	mu        sync.Mutex
	items     map[string]*entry
	lru       *list.List
	all       []record.Key
	allExpiry time.Time
	allValid  bool
	opts      Options
	hits      atomic.Int64
	misses    atomic.Int64
}

// New creates an empty Cache.
func New(opts Options) *Cache {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &Cache{
		items: make(map[string]*entry),
		lru:   list.New(),
		opts:  opts,
	}
}

func (c *Cache) expiry() time.Time {
	if c.opts.TTL <= 0 {
		return time.Time{}
	}
	return c.opts.Clock.Now().Add(c.opts.TTL)
}

func (c *Cache) expired(at time.Time) bool {
	return !at.IsZero() && c.opts.Clock.Now().After(at)
}

// Get returns the cached descriptor for name.
func (c *Cache) Get(name string) (record.Key, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[name]
	if !ok {
		c.misses.Add(1)
		return record.Key{}, false
	}
	if c.expired(e.expiresAt) {
		c.remove(e)
		c.misses.Add(1)
		return record.Key{}, false
	}
	c.lru.MoveToFront(e.elem)
	c.hits.Add(1)
	return e.key, true
}

// Put caches k under its name.
func (c *Cache) Put(k record.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(k, c.expiry())
}

func (c *Cache) put(k record.Key, expiresAt time.Time) {
	if e, ok := c.items[k.Name]; ok {
		e.key = k
		e.expiresAt = expiresAt
		c.lru.MoveToFront(e.elem)
		return
	}
	if c.opts.MaxEntries > 0 && len(c.items) >= c.opts.MaxEntries {
		if back := c.lru.Back(); back != nil {
			c.remove(back.Value.(*entry))
		}
	}
	e := &entry{key: k, expiresAt: expiresAt}
	e.elem = c.lru.PushFront(e)
	c.items[k.Name] = e
}

// All returns the cached full key listing.
func (c *Cache) All() ([]record.Key, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.allValid || c.expired(c.allExpiry) {
		c.allValid = false
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	out := make([]record.Key, len(c.all))
	copy(out, c.all)
	return out, true
}

// PutAll caches the full key listing and each descriptor in it.
func (c *Cache) PutAll(keys []record.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	exp := c.expiry()
	c.all = append(c.all[:0], keys...)
	c.allExpiry = exp
	c.allValid = true
	for _, k := range keys {
		c.put(k, exp)
	}
}

// Invalidate drops name and the cached listing.
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[name]; ok {
		c.remove(e)
	}
	c.allValid = false
}

// Flush empties the cache.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*entry)
	c.lru.Init()
	c.all = nil
	c.allValid = false
}

func (c *Cache) remove(e *entry) {
	delete(c.items, e.key.Name)
	c.lru.Remove(e.elem)
}

// Stats holds hit/miss/entry counts.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// Stats returns current statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	n := len(c.items)
	c.mu.Unlock()
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Entries: n}
}
