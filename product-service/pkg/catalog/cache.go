package catalog

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL bounds how stale a cached catalog may be.
const DefaultTTL = 60 * time.Second

// refreshTimeout bounds a shared refresh, which outlives any one caller.
const refreshTimeout = 15 * time.Second

// Cache keeps the last good snapshot for ttl and collapses concurrent
// refreshes into one fetch. It is safe for concurrent use.
type Cache struct {
	src Source
	ttl time.Duration
	now func() time.Time

	sfg singleflight.Group

	mu        sync.RWMutex
	snapshot  *Catalog
	fetchedAt time.Time
}

func NewCache(src Source, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{src: src, ttl: ttl, now: time.Now}
}

// Fetch implements Source.
func (c *Cache) Fetch(ctx context.Context) (*Catalog, error) {
	c.mu.RLock()
	if c.snapshot != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		snap := c.snapshot
		c.mu.RUnlock()
		return snap, nil
	}
	c.mu.RUnlock()

	// The refresh is shared by every waiter, so it must not die with the
	// first caller's request.
	ch := c.sfg.DoChan("catalog", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		snap, err := c.src.Fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.snapshot = snap
		c.fetchedAt = c.now()
		c.mu.Unlock()
		return snap, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Catalog), nil
	}
}

// Invalidate drops the cached snapshot.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.snapshot = nil
	c.mu.Unlock()
}
