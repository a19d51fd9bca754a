package genai

import (
	"context"
	"errors"
	"sync"

	"github.com/kalambet/adcraft/internal/metrics"
)

// Cache memoizes completion results by request fingerprint for the lifetime
// of the process. It has no TTL and no capacity bound. Concurrent misses on
// the same key share one upstream call.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]string
	inflight map[string]*call
	metrics  *metrics.Metrics
}

type call struct {
	done chan struct{}
	val  string
	err  error
}

// NewCache creates an empty cache. m may be nil.
func NewCache(m *metrics.Metrics) *Cache {
	return &Cache{
		entries:  make(map[string]string),
		inflight: make(map[string]*call),
		metrics:  m,
	}
}

// Do returns the cached value for key, or runs fn and caches its result.
// Errors are returned to every waiter and never cached. A waiter whose
// context is still live does not inherit the leader's cancellation: it runs
// fn itself instead.
func (c *Cache) Do(ctx context.Context, key string, fn func() (string, error)) (string, error) {
	for {
		c.mu.Lock()
		if v, ok := c.entries[key]; ok {
			c.mu.Unlock()
			c.metrics.CacheHit()
			return v, nil
		}
		cl, ok := c.inflight[key]
		if !ok {
			return c.lead(key, fn)
		}
		c.mu.Unlock()

		select {
		case <-cl.done:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		if isContextErr(cl.err) && ctx.Err() == nil {
			continue
		}
		c.metrics.CacheHit()
		return cl.val, cl.err
	}
}

// lead registers an in-flight call for key and runs fn. c.mu must be held.
func (c *Cache) lead(key string, fn func() (string, error)) (string, error) {
	cl := &call{done: make(chan struct{})}
	c.inflight[key] = cl
	c.mu.Unlock()

	c.metrics.CacheMiss()
	cl.val, cl.err = fn()

	c.mu.Lock()
	if cl.err == nil {
		c.entries[key] = cl.val
	}
	delete(c.inflight, key)
	c.mu.Unlock()
	close(cl.done)

	return cl.val, cl.err
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Get returns the cached value for key without calling upstream.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
