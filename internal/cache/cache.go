// Package cache memoises zero-argument fetches for a per-call window.
package cache

import (
	"errors"
	"time"

	"github.com/bluele/gcache"
)

// entry is a stored result and the time it was fetched.
type entry struct {
	value    any
	filledAt time.Time
}

// Observer receives hit/miss notifications per key.
type Observer interface {
	CacheHit(key string)
	CacheMiss(key string)
}

// Cache maps keys to their last fetched value. Entries are overwritten when
// their window has passed and are never removed otherwise.
type Cache struct {
	store    gcache.Cache
	clock    gcache.Clock
	observer Observer
}

// New builds a cache holding up to size keys. A nil clock uses the process
// clock; obs may be nil.
func New(size int, clock gcache.Clock, obs Observer) *Cache {
	if clock == nil {
		clock = gcache.NewRealClock()
	}
	if size <= 0 {
		size = 16
	}
	return &Cache{
		store:    gcache.New(size).Simple().Clock(clock).Build(),
		clock:    clock,
		observer: obs,
	}
}

// Get returns the value stored under key if it was fetched less than window
// ago. Otherwise it calls fetch, stores the result stamped with the time the
// call started and returns it. Errors from fetch are returned and nothing is
// stored.
//
// fetch runs outside any lock: concurrent misses on one key may each fetch,
// and the last one to finish wins.
func (c *Cache) Get(key string, window time.Duration, fetch func() (any, error)) (any, error) {
	now := c.clock.Now()
	if v, err := c.store.Get(key); err == nil {
		if e, ok := v.(entry); ok && now.Sub(e.filledAt) < window {
			if c.observer != nil {
				c.observer.CacheHit(key)
			}
			return e.value, nil
		}
	} else if !errors.Is(err, gcache.KeyNotFoundError) {
		return nil, err
	}

	if c.observer != nil {
		c.observer.CacheMiss(key)
	}
	value, err := fetch()
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(key, entry{value: value, filledAt: now}); err != nil {
		return nil, err
	}
	return value, nil
}

// Len reports how many keys have been filled.
func (c *Cache) Len() int {
	return c.store.Len(false)
}

// Fetch is Get with a typed fetch function.
func Fetch[T any](c *Cache, key string, window time.Duration, fn func() (T, error)) (T, error) {
	v, err := c.Get(key, window, func() (any, error) { return fn() })
	if err != nil {
		var zero T
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}
