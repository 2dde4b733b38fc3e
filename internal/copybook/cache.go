package copybook

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Cache holds copybook bodies keyed by resolved name.
// Entries never change once stored, so one Cache can serve many concurrent runs.
type Cache struct {
	entries *lru.Cache[string, string]
	group   singleflight.Group
}

// NewCache creates a cache bounded to size entries
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		return nil, fmt.Errorf("copybook cache size must be > 0, got %d", size)
	}
	entries, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create copybook cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// Load returns the cached body for key, calling load at most once per key
// even when several runs ask for it at the same time.
func (c *Cache) Load(key string, load func() (string, error)) (string, error) {
	if body, ok := c.entries.Get(key); ok {
		return body, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if body, ok := c.entries.Get(key); ok {
			return body, nil
		}
		body, err := load()
		if err != nil {
			return "", err
		}
		c.entries.Add(key, body)
		return body, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Purge drops every cached entry
func (c *Cache) Purge() {
	c.entries.Purge()
}
