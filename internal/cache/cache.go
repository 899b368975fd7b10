// Package cache implements the in-memory change-detection cache backed by
// the persisted cache table.
package cache

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/pzntech/showcase-crawler/internal/catalog"
)

// Cache maps "{type}:{name}" keys to content hashes. The persisted table is
// the source of truth; this map is a best-effort accelerator rebuilt from
// storage at the start of every run, so a crash mid-run only costs redundant
// work on the next run, never correctness.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]string
	store   catalog.CacheStore
	logger  *zap.Logger
}

// New creates a Cache over the given store.
func New(store catalog.CacheStore, logger *zap.Logger) *Cache {
	return &Cache{
		entries: make(map[string]string),
		store:   store,
		logger:  logger,
	}
}

// Load replaces the in-memory snapshot with the full persisted cache table.
func (c *Cache) Load(ctx context.Context) error {
	entries, err := c.store.LoadCacheEntries(ctx)
	if err != nil {
		return fmt.Errorf("load cache snapshot: %w", err)
	}
	snapshot := make(map[string]string, len(entries))
	for _, e := range entries {
		snapshot[catalog.Key(e.Type, e.Name)] = e.Hash
	}
	c.mu.Lock()
	c.entries = snapshot
	c.mu.Unlock()
	c.logger.Debug("cache snapshot loaded", zap.Int("entries", len(snapshot)))
	return nil
}

// Get returns the cached hash for (t, name) and whether it was present.
func (c *Cache) Get(t catalog.CacheType, name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	hash, ok := c.entries[catalog.Key(t, name)]
	return hash, ok
}

// Put persists the entry and then updates the in-memory map. The persist
// happens first so an entity is never marked seen in memory before its row
// exists.
func (c *Cache) Put(ctx context.Context, t catalog.CacheType, name, hash string) error {
	entry := catalog.CacheEntry{Type: t, Name: name, Hash: hash}
	if err := c.store.UpsertCacheEntry(ctx, entry); err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[catalog.Key(t, name)] = hash
	c.mu.Unlock()
	return nil
}

// Len reports the number of entries in the current snapshot.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
