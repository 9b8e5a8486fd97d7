package authz

import "context"

// Cache holds per-subject snapshots of the unscoped permission and role
// sets. Implementations must be safe for concurrent use. Lookups never
// error: any backend failure is treated as a miss so resolution falls
// through to storage.
type Cache interface {
	// Get returns the cached snapshot for a subject, ok=false on miss.
	Get(ctx context.Context, subjectID string) (Snapshot, bool)
	// Set stores a snapshot under the configured expiration.
	Set(ctx context.Context, subjectID string, snap Snapshot)
	// Invalidate removes a subject's entry unconditionally.
	Invalidate(ctx context.Context, subjectID string)
}

// NopCache disables caching; every lookup misses.
type NopCache struct{}

// Get always misses.
func (NopCache) Get(ctx context.Context, subjectID string) (Snapshot, bool) {
	return Snapshot{}, false
}

// Set discards the snapshot.
func (NopCache) Set(ctx context.Context, subjectID string, snap Snapshot) {}

// Invalidate is a no-op.
func (NopCache) Invalidate(ctx context.Context, subjectID string) {}
