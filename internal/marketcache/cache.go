package marketcache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"cryptoSignalAgent/internal/domain"
	"cryptoSignalAgent/internal/ports"
)

// Cache is a time-bounded memo of market data payloads keyed by string.
// Entries are never evicted; a successful Put supersedes the previous payload.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]domain.CacheEntry
	repo    ports.CacheRepository // optional write-through store
	logger  ports.Logger
	now     func() time.Time
}

// New creates an empty cache.
func New(repo ports.CacheRepository, logger ports.Logger) (*Cache, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for cache")
	}
	return &Cache{
		entries: make(map[string]domain.CacheEntry),
		repo:    repo,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Load restores persisted entries. Existing in-memory entries with a newer
// timestamp are kept.
func (c *Cache) Load(ctx context.Context) error {
	if c.repo == nil {
		return nil
	}
	stored, err := c.repo.LoadCacheEntries(ctx)
	if err != nil {
		return fmt.Errorf("loading cache entries: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range stored {
		if cur, ok := c.entries[e.Key]; ok && cur.StoredAt.After(e.StoredAt) {
			continue
		}
		c.entries[e.Key] = e
	}
	c.logger.Debug(ctx, "Cache entries loaded", map[string]interface{}{"count": len(stored)})
	return nil
}

// Get returns the payload for key if it was stored no more than maxAge ago.
func (c *Cache) Get(key string, maxAge time.Duration) (json.RawMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.StoredAt) > maxAge {
		return nil, false
	}
	return e.Payload, true
}

// GetStale returns the last stored payload for key regardless of age.
func (c *Cache) GetStale(key string) (json.RawMessage, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, time.Time{}, false
	}
	return e.Payload, e.StoredAt, true
}

// Put encodes value as JSON and stores it under key. The entry is written
// through to the repository; a write failure is logged and the in-memory
// entry stays.
func (c *Cache) Put(ctx context.Context, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding cache entry %s: %w", key, err)
	}
	entry := domain.CacheEntry{Key: key, StoredAt: c.now(), Payload: payload}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()

	if c.repo != nil {
		if err := c.repo.SaveCacheEntry(ctx, entry); err != nil {
			c.logger.Error(ctx, err, "Failed to persist cache entry", map[string]interface{}{"key": key})
		}
	}
	return nil
}

// Keys returns the stored keys in sorted order.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
