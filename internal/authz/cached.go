package authz

import (
	"context"
	"errors"
	"slices"

	"golang.org/x/sync/singleflight"

	"github.com/rivoli-ai/gatekeeper/internal/observability"
)

// Checker is the decision surface consumed by the authorization gate and
// the HTTP handler. Both Resolver and CachedResolver satisfy it.
type Checker interface {
	CheckPermission(ctx context.Context, subjectID, permission, resourceID string) (Decision, error)
	CheckAnyPermission(ctx context.Context, subjectID string, permissions []string, resourceID string) (Decision, error)
	GetPermissions(ctx context.Context, subjectID, applicationCode string) ([]string, error)
	GetRoles(ctx context.Context, subjectID, applicationCode string) ([]string, error)
}

// CachedResolver serves unscoped, unfiltered reads from the resolution
// cache. Any call carrying a resource instance or an application filter
// bypasses the cache entirely, because the cached snapshot represents
// exactly the unfiltered global view. Concurrent misses for the same
// subject are collapsed with singleflight.
type CachedResolver struct {
	resolver *Resolver
	cache    Cache
	metrics  *observability.Metrics
	group    singleflight.Group
}

// NewCachedResolver wraps a Resolver with a cache; metrics may be nil.
func NewCachedResolver(resolver *Resolver, cache Cache, metrics *observability.Metrics) *CachedResolver {
	if cache == nil {
		cache = NopCache{}
	}
	return &CachedResolver{resolver: resolver, cache: cache, metrics: metrics}
}

// CheckPermission answers an unscoped check from the cached snapshot,
// delegating scoped checks to the resolver.
func (c *CachedResolver) CheckPermission(ctx context.Context, subjectID, permission, resourceID string) (Decision, error) {
	if resourceID != "" {
		return c.resolver.CheckPermission(ctx, subjectID, permission, resourceID)
	}
	code, err := c.resolver.Qualify(ctx, permission)
	if err != nil {
		return Decision{}, err
	}
	snap, err := c.snapshot(ctx, subjectID)
	if errors.Is(err, ErrSubjectNotFound) {
		return c.decide(Deny(ReasonSubjectNotFound)), nil
	}
	if errors.Is(err, ErrSubjectInactive) {
		return c.decide(Deny(ReasonSubjectInactive)), nil
	}
	if err != nil {
		return Decision{}, err
	}
	if slices.Contains(snap.Permissions, code.String()) {
		return c.decide(Allow()), nil
	}
	return c.decide(Deny(ReasonDenied)), nil
}

// CheckAnyPermission short-circuits on the first individually allowed
// permission.
func (c *CachedResolver) CheckAnyPermission(ctx context.Context, subjectID string, permissions []string, resourceID string) (Decision, error) {
	for _, permission := range permissions {
		decision, err := c.CheckPermission(ctx, subjectID, permission, resourceID)
		if err != nil {
			return Decision{}, err
		}
		if decision.Allowed {
			return decision, nil
		}
		if decision.Reason != ReasonDenied {
			return decision, nil
		}
	}
	return Deny(ReasonDenied), nil
}

// GetPermissions serves the unfiltered set from cache; application-filtered
// calls go straight to the resolver.
func (c *CachedResolver) GetPermissions(ctx context.Context, subjectID, applicationCode string) ([]string, error) {
	if applicationCode != "" {
		return c.resolver.GetPermissions(ctx, subjectID, applicationCode)
	}
	snap, err := c.snapshot(ctx, subjectID)
	if errors.Is(err, ErrSubjectNotFound) || errors.Is(err, ErrSubjectInactive) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return snap.Permissions, nil
}

// GetRoles serves the unfiltered set from cache; application-filtered calls
// go straight to the resolver.
func (c *CachedResolver) GetRoles(ctx context.Context, subjectID, applicationCode string) ([]string, error) {
	if applicationCode != "" {
		return c.resolver.GetRoles(ctx, subjectID, applicationCode)
	}
	snap, err := c.snapshot(ctx, subjectID)
	if errors.Is(err, ErrSubjectNotFound) || errors.Is(err, ErrSubjectInactive) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return snap.Roles, nil
}

func (c *CachedResolver) snapshot(ctx context.Context, subjectID string) (Snapshot, error) {
	if snap, ok := c.cache.Get(ctx, subjectID); ok {
		c.metrics.RecordCacheLookup(true)
		return snap, nil
	}
	c.metrics.RecordCacheLookup(false)
	v, err, _ := c.group.Do(subjectID, func() (any, error) {
		snap, err := c.resolver.Snapshot(ctx, subjectID)
		if err != nil {
			return Snapshot{}, err
		}
		c.cache.Set(ctx, subjectID, snap)
		return snap, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return v.(Snapshot), nil
}

func (c *CachedResolver) decide(d Decision) Decision {
	c.metrics.RecordDecision(d.Allowed)
	return d
}
