package funnelpages

import (
	"sync"
	"time"
)

// PageCache is an in-memory cache of published funnel pages with TTL,
// backing the public delivery path and the sitemap.
type PageCache struct {
	mu      sync.RWMutex
	pages   []PageDocument
	fetched time.Time
	ttl     time.Duration
	store   *Store
}

// NewPageCache creates a PageCache backed by the given Store.
func NewPageCache(s *Store, ttl time.Duration) *PageCache {
	return &PageCache{store: s, ttl: ttl}
}

func (c *PageCache) valid() bool {
	return c.pages != nil && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
// Called after every save, restore, and publish state change.
func (c *PageCache) Invalidate() {
	c.mu.Lock()
	c.pages = nil
	c.mu.Unlock()
}

// ensureLoaded returns cached pages after ensuring the cache is fresh.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *PageCache) ensureLoaded() ([]PageDocument, error) {
	c.mu.RLock()
	if c.valid() {
		pages := c.pages
		c.mu.RUnlock()
		return pages, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid() {
		return c.pages, nil
	}
	pages, err := c.store.ListPublishedPages()
	if err != nil {
		return nil, err
	}
	if pages == nil {
		pages = []PageDocument{}
	}
	c.pages = pages
	c.fetched = time.Now()
	return c.pages, nil
}

// ListPublished returns all published pages.
func (c *PageCache) ListPublished() ([]PageDocument, error) {
	return c.ensureLoaded()
}

// GetPublished returns a single published page by type and id.
func (c *PageCache) GetPublished(pt PageType, id string) (PageDocument, error) {
	pages, err := c.ensureLoaded()
	if err != nil {
		return PageDocument{}, err
	}
	for _, p := range pages {
		if p.ID == id && p.Type == pt {
			return p, nil
		}
	}
	return PageDocument{}, ErrNotFound
}
