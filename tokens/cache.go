package tokens

import (
	"context"
	"sync"
	"time"
)

// Entry is a cached access token in plaintext, with its hard expiry.
type Entry struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Cache is best-effort storage for access tokens between invocations. It is
// never the source of truth: a cold or lost cache only costs one refresh
// round-trip, so implementations swallow their own errors.
type Cache interface {
	Get(ctx context.Context, integrationID int64) (Entry, bool)
	Set(ctx context.Context, integrationID int64, entry Entry)
	Invalidate(ctx context.Context, integrationID int64)
}

// MemoryCache is the in-process implementation.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[int64]Entry
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[int64]Entry)}
}

func (c *MemoryCache) Get(_ context.Context, integrationID int64) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[integrationID]

	return entry, ok
}

func (c *MemoryCache) Set(_ context.Context, integrationID int64, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[integrationID] = entry
}

func (c *MemoryCache) Invalidate(_ context.Context, integrationID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, integrationID)
}
