package authz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newCachedFixture(t *testing.T) (*fakeStore, *CachedResolver, Cache) {
	t.Helper()
	store := newFakeStore()
	alice := store.addSubject("alice", true)
	viewer := store.addRole("viewer", strPtr(testApp), nil)
	store.setRolePermissions(viewer, "crm:document:read")
	store.assignSubjectRole(alice, viewer, nil, nil)
	cache := NewMemoryCache(16, time.Minute)
	cached := NewCachedResolver(newTestResolver(store), cache, nil)
	return store, cached, cache
}

func TestCachedResolverServesFromCache(t *testing.T) {
	store, cached, _ := newCachedFixture(t)
	ctx := context.Background()

	decision, err := cached.CheckPermission(ctx, "alice", "crm:document:read", "")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	missLookups := store.lookupCount()

	// The second unscoped check is answered entirely from the cache.
	decision, err = cached.CheckPermission(ctx, "alice", "crm:document:read", "")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Equal(t, missLookups, store.lookupCount())
}

func TestCachedResolverInvalidateForcesReload(t *testing.T) {
	store, cached, cache := newCachedFixture(t)
	ctx := context.Background()

	_, err := cached.CheckPermission(ctx, "alice", "crm:document:read", "")
	require.NoError(t, err)

	cache.Invalidate(ctx, "alice")
	before := store.lookupCount()
	decision, err := cached.CheckPermission(ctx, "alice", "crm:document:read", "")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Greater(t, store.lookupCount(), before)
}

func TestCachedResolverScopedCheckBypassesCache(t *testing.T) {
	store, cached, _ := newCachedFixture(t)
	alice := store.subjects["alice"].ID
	store.addInstance(testApp, "document", "doc-123", &alice)
	ctx := context.Background()

	_, err := cached.CheckPermission(ctx, "alice", "crm:document:read", "")
	require.NoError(t, err)
	cachedLookups := store.lookupCount()

	// Scoped checks always hit storage; ownership and per-instance grants
	// are never cached.
	decision, err := cached.CheckPermission(ctx, "alice", "crm:document:delete", "doc-123")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Greater(t, store.lookupCount(), cachedLookups)
}

func TestCachedResolverFilteredEnumerationBypassesCache(t *testing.T) {
	store, cached, _ := newCachedFixture(t)
	ctx := context.Background()

	_, err := cached.GetPermissions(ctx, "alice", "")
	require.NoError(t, err)
	cachedLookups := store.lookupCount()

	permissions, err := cached.GetPermissions(ctx, "alice", testApp)
	require.NoError(t, err)
	require.Equal(t, []string{"crm:document:read"}, permissions)
	require.Greater(t, store.lookupCount(), cachedLookups)
}

func TestCachedResolverSubjectStatesNeverCached(t *testing.T) {
	store, cached, _ := newCachedFixture(t)
	store.addSubject("bob", false)
	ctx := context.Background()

	decision, err := cached.CheckPermission(ctx, "ghost", "crm:document:read", "")
	require.NoError(t, err)
	require.Equal(t, ReasonSubjectNotFound, decision.Reason)

	decision, err = cached.CheckPermission(ctx, "bob", "crm:document:read", "")
	require.NoError(t, err)
	require.Equal(t, ReasonSubjectInactive, decision.Reason)

	permissions, err := cached.GetPermissions(ctx, "ghost", "")
	require.NoError(t, err)
	require.Empty(t, permissions)

	roles, err := cached.GetRoles(ctx, "bob", "")
	require.NoError(t, err)
	require.Empty(t, roles)
}

func TestCachedResolverCheckAny(t *testing.T) {
	_, cached, _ := newCachedFixture(t)
	ctx := context.Background()

	decision, err := cached.CheckAnyPermission(ctx, "alice", []string{"crm:document:write", "crm:document:read"}, "")
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	decision, err = cached.CheckAnyPermission(ctx, "alice", []string{"crm:document:write", "crm:document:delete"}, "")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
}
