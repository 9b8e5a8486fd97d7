package authz

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryCache backs the resolution cache with an in-process expirable LRU.
// Suitable for single-instance deployments and tests.
type MemoryCache struct {
	entries *lru.LRU[string, Snapshot]
}

// NewMemoryCache builds a MemoryCache bounded to size entries with the
// given TTL.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 10_000
	}
	return &MemoryCache{entries: lru.NewLRU[string, Snapshot](size, nil, ttl)}
}

// Get returns the cached snapshot for a subject, ok=false on miss.
func (c *MemoryCache) Get(ctx context.Context, subjectID string) (Snapshot, bool) {
	return c.entries.Get(subjectID)
}

// Set stores a snapshot under the configured TTL.
func (c *MemoryCache) Set(ctx context.Context, subjectID string, snap Snapshot) {
	c.entries.Add(subjectID, snap)
}

// Invalidate removes a subject's entry unconditionally.
func (c *MemoryCache) Invalidate(ctx context.Context, subjectID string) {
	c.entries.Remove(subjectID)
}
