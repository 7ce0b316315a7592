// Package cache holds short-lived values such as provider OAuth tokens.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type item[T any] struct {
	value T
	until time.Time
}

// InMemory is a TTL map. Loads for the same key are collapsed so a burst of
// requests triggers one token fetch.
type InMemory[T any] struct {
	mu      sync.RWMutex
	items   map[string]item[T]
	maxTTL  time.Duration
	now     func() time.Time
	loads   singleflight.Group
	stop    chan struct{}
	stopped sync.Once
}

// New creates a cache whose entries live at most maxTTL.
func New[T any](maxTTL time.Duration) *InMemory[T] {
	c := &InMemory[T]{
		items:  make(map[string]item[T]),
		maxTTL: maxTTL,
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	go c.sweep(time.Minute)
	return c
}

// Get returns the live value for key.
func (c *InMemory[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(it.until) {
		var zero T
		return zero, false
	}
	return it.value, true
}

// Set stores value for the maximum TTL.
func (c *InMemory[T]) Set(key string, value T) {
	c.SetTTL(key, value, c.maxTTL)
}

// SetTTL stores value for ttl, clamped to (0, maxTTL].
func (c *InMemory[T]) SetTTL(key string, value T, ttl time.Duration) {
	if ttl <= 0 || ttl > c.maxTTL {
		ttl = c.maxTTL
	}
	c.mu.Lock()
	c.items[key] = item[T]{value: value, until: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Delete drops key.
func (c *InMemory[T]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// GetOrLoad returns the cached value for key, or calls load once for all
// concurrent callers and stores its result for the returned ttl. hit is true
// when no load was needed.
func (c *InMemory[T]) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (T, time.Duration, error)) (value T, hit bool, err error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}
	res, err, _ := c.loads.Do(key, func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, ttl, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.SetTTL(key, v, ttl)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return res.(T), false, nil
}

// Close stops the background sweep.
func (c *InMemory[T]) Close() {
	c.stopped.Do(func() { close(c.stop) })
}

func (c *InMemory[T]) sweep(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-t.C:
		}
		now := c.now()
		c.mu.Lock()
		for k, it := range c.items {
			if !now.Before(it.until) {
				delete(c.items, k)
			}
		}
		c.mu.Unlock()
	}
}
