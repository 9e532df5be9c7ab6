// Package cache memoizes immutable chain data in a bounded LRU map with
// single-flight fetch coalescing. Callers decide what is immutable; the
// cache never expires entries and holds no persistence.
package cache

import (
	"container/list"
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Recorder receives cache events. The metrics package implements it; a nil
// Recorder disables recording.
type Recorder interface {
	CacheHit()
	CacheMiss()
	CacheEviction()
	CacheSize(n int)
}

// Cache is a bounded least-recently-used cache keyed by string. Eviction is
// synchronous on insert once capacity is reached. Safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	cap   int
	ll    *list.List
	items map[string]*list.Element
	group singleflight.Group
	rec   Recorder
}

type entry struct {
	key   string
	value any
}

// New creates a cache holding at most capacity entries. rec may be nil.
func New(capacity int, rec Recorder) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		cap:   capacity,
		ll:    list.New(),
		items: make(map[string]*list.Element),
		rec:   rec,
	}
}

// Get returns the cached value for key, marking it most recently used.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		c.record(func(r Recorder) { r.CacheMiss() })
		return nil, false
	}
	c.ll.MoveToFront(el)
	c.record(func(r Recorder) { r.CacheHit() })
	return el.Value.(*entry).value, true
}

// Add inserts or refreshes key, evicting the least-recently-used entry if
// the cache is at capacity.
func (c *Cache) Add(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.add(key, value)
}

func (c *Cache) add(key string, value any) {
	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		el.Value.(*entry).value = value
		return
	}
	if c.ll.Len() >= c.cap {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*entry).key)
			c.record(func(r Recorder) { r.CacheEviction() })
		}
	}
	c.items[key] = c.ll.PushFront(&entry{key: key, value: value})
	c.record(func(r Recorder) { r.CacheSize(c.ll.Len()) })
}

// GetOrFetch returns the cached value for key, or runs fetch to produce it.
// Concurrent calls for the same key share a single in-flight fetch; every
// waiter receives the same value or error. fetch's second return reports
// whether the value may be stored; uncacheable values still coalesce their
// waiters but leave the cache untouched. Errors are not remembered. A waiter
// whose ctx ends returns the context error while the shared fetch continues
// for the others.
func (c *Cache) GetOrFetch(ctx context.Context, key string, fetch func() (any, bool, error)) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// Recheck: another flight may have inserted between Get and here.
		c.mu.Lock()
		if el, ok := c.items[key]; ok {
			c.ll.MoveToFront(el)
			v := el.Value.(*entry).value
			c.mu.Unlock()
			return v, nil
		}
		c.mu.Unlock()

		v, store, err := fetch()
		if err != nil {
			return nil, err
		}
		if store {
			c.Add(key, v)
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val, nil
	}
}

// Contains reports whether key is cached without touching recency.
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Invalidate removes key from the cache.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.ll.Remove(el)
		delete(c.items, key)
		c.record(func(r Recorder) { r.CacheSize(c.ll.Len()) })
	}
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *Cache) record(f func(Recorder)) {
	if c.rec != nil {
		f(c.rec)
	}
}
