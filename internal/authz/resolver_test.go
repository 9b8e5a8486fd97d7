package authz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rivoli-ai/gatekeeper/internal/catalog"
)

const testApp = "crm"

func newTestResolver(store *fakeStore) *Resolver {
	return NewResolver(store, testApp, nil, nil)
}

func TestCheckPermissionSubjectStates(t *testing.T) {
	store := newFakeStore()
	store.addSubject("alice", true)
	store.addSubject("bob", false)
	resolver := newTestResolver(store)
	ctx := context.Background()

	decision, err := resolver.CheckPermission(ctx, "ghost", "crm:document:read", "")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonSubjectNotFound, decision.Reason)

	decision, err = resolver.CheckPermission(ctx, "bob", "crm:document:read", "")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonSubjectInactive, decision.Reason)

	decision, err = resolver.CheckPermission(ctx, "alice", "crm:document:read", "")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonDenied, decision.Reason)
}

func TestCheckPermissionRoleChain(t *testing.T) {
	store := newFakeStore()
	alice := store.addSubject("alice", true)
	viewer := store.addRole("viewer", strPtr(testApp), nil)
	editor := store.addRole("editor", strPtr(testApp), &viewer)
	admin := store.addRole("admin", strPtr(testApp), &editor)
	store.setRolePermissions(viewer, "crm:document:read")
	store.setRolePermissions(editor, "crm:document:write")
	store.setRolePermissions(admin, "crm:document:delete")
	store.assignSubjectRole(alice, admin, nil, nil)
	resolver := newTestResolver(store)
	ctx := context.Background()

	for _, permission := range []string{"crm:document:read", "crm:document:write", "crm:document:delete"} {
		decision, err := resolver.CheckPermission(ctx, "alice", permission, "")
		require.NoError(t, err)
		require.True(t, decision.Allowed, permission)
	}

	decision, err := resolver.CheckPermission(ctx, "alice", "crm:document:publish", "")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
}

func TestCheckPermissionDefaultApplication(t *testing.T) {
	store := newFakeStore()
	alice := store.addSubject("alice", true)
	viewer := store.addRole("viewer", strPtr(testApp), nil)
	store.setRolePermissions(viewer, "crm:document:read")
	store.assignSubjectRole(alice, viewer, nil, nil)
	resolver := newTestResolver(store)

	decision, err := resolver.CheckPermission(context.Background(), "alice", "document:read", "")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestCheckPermissionClientApplication(t *testing.T) {
	store := newFakeStore()
	alice := store.addSubject("alice", true)
	reader := store.addRole("reader", strPtr("sales"), nil)
	store.setRolePermissions(reader, "sales:document:read")
	store.assignSubjectRole(alice, reader, nil, nil)

	// No configured default: the calling client's application qualifies
	// two-segment codes.
	resolver := NewResolver(store, "", nil, nil)
	_, err := resolver.CheckPermission(context.Background(), "alice", "document:read", "")
	require.ErrorIs(t, err, catalog.ErrInvalidPermissionCode)

	ctx := ContextWithApplication(context.Background(), "sales")
	decision, err := resolver.CheckPermission(ctx, "alice", "document:read", "")
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	// The client application wins over the configured default.
	decision, err = newTestResolver(store).CheckPermission(ctx, "alice", "document:read", "")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestCheckPermissionParentCycleTerminates(t *testing.T) {
	store := newFakeStore()
	alice := store.addSubject("alice", true)
	a := store.addRole("a", strPtr(testApp), nil)
	b := store.addRole("b", strPtr(testApp), &a)
	// close the loop a -> b -> a
	node := store.roleNodes[a]
	node.ParentRoleID = &b
	store.roleNodes[a] = node
	store.setRolePermissions(b, "crm:report:read")
	store.assignSubjectRole(alice, a, nil, nil)
	resolver := newTestResolver(store)

	decision, err := resolver.CheckPermission(context.Background(), "alice", "crm:report:read", "")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestCheckPermissionTeamInheritance(t *testing.T) {
	store := newFakeStore()
	alice := store.addSubject("alice", true)
	store.addSubject("carol", true)
	team := store.addTeam("support")
	store.addMember(team, alice)
	viewer := store.addRole("viewer", strPtr(testApp), nil)
	store.setRolePermissions(viewer, "crm:ticket:read")
	store.assignTeamRole(team, viewer, nil, nil)
	resolver := newTestResolver(store)
	ctx := context.Background()

	decision, err := resolver.CheckPermission(ctx, "alice", "crm:ticket:read", "")
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	decision, err = resolver.CheckPermission(ctx, "carol", "crm:ticket:read", "")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
}

func TestCheckPermissionInstanceScope(t *testing.T) {
	store := newFakeStore()
	alice := store.addSubject("alice", true)
	editor := store.addRole("editor", strPtr(testApp), nil)
	store.setRolePermissions(editor, "crm:document:write")
	instance := store.addInstance(testApp, "document", "doc-123", nil)
	store.addInstance(testApp, "document", "doc-999", nil)
	store.assignSubjectRole(alice, editor, &instance, nil)
	resolver := newTestResolver(store)
	ctx := context.Background()

	decision, err := resolver.CheckPermission(ctx, "alice", "crm:document:write", "doc-123")
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	// The scoped role contributes nothing on another instance.
	decision, err = resolver.CheckPermission(ctx, "alice", "crm:document:write", "doc-999")
	require.NoError(t, err)
	require.False(t, decision.Allowed)

	// Nor on an unscoped check.
	decision, err = resolver.CheckPermission(ctx, "alice", "crm:document:write", "")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
}

func TestCheckPermissionUnknownInstance(t *testing.T) {
	store := newFakeStore()
	store.addSubject("alice", true)
	resolver := newTestResolver(store)

	decision, err := resolver.CheckPermission(context.Background(), "alice", "crm:document:read", "doc-404")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonDenied, decision.Reason)
}

func TestCheckPermissionDirectInstanceGrant(t *testing.T) {
	store := newFakeStore()
	alice := store.addSubject("alice", true)
	instance := store.addInstance(testApp, "document", "doc-123", nil)
	store.grantInstancePermission(instance, alice, "crm:document:read", nil)
	resolver := newTestResolver(store)
	ctx := context.Background()

	decision, err := resolver.CheckPermission(ctx, "alice", "crm:document:read", "doc-123")
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	decision, err = resolver.CheckPermission(ctx, "alice", "crm:document:write", "doc-123")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
}

func TestCheckPermissionOwnershipBypass(t *testing.T) {
	store := newFakeStore()
	alice := store.addSubject("alice", true)
	store.addSubject("bob", true)
	store.addInstance(testApp, "document", "doc-123", &alice)
	resolver := newTestResolver(store)
	ctx := context.Background()

	// The owner holds every permission on the owned instance without any
	// role or grant.
	decision, err := resolver.CheckPermission(ctx, "alice", "crm:document:delete", "doc-123")
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	decision, err = resolver.CheckPermission(ctx, "bob", "crm:document:delete", "doc-123")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
}

func TestCheckPermissionExpiry(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	alice := store.addSubject("alice", true)
	viewer := store.addRole("viewer", strPtr(testApp), nil)
	editor := store.addRole("editor", strPtr(testApp), nil)
	store.setRolePermissions(viewer, "crm:document:read")
	store.setRolePermissions(editor, "crm:document:write")
	store.assignSubjectRole(alice, viewer, nil, timePtr(now.Add(-time.Minute)))
	store.assignSubjectRole(alice, editor, nil, timePtr(now.Add(time.Hour)))
	resolver := newTestResolver(store)
	resolver.now = func() time.Time { return now }
	ctx := context.Background()

	decision, err := resolver.CheckPermission(ctx, "alice", "crm:document:read", "")
	require.NoError(t, err)
	require.False(t, decision.Allowed)

	decision, err = resolver.CheckPermission(ctx, "alice", "crm:document:write", "")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestCheckPermissionExpiredInstanceGrant(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	alice := store.addSubject("alice", true)
	instance := store.addInstance(testApp, "document", "doc-123", nil)
	store.grantInstancePermission(instance, alice, "crm:document:read", timePtr(now.Add(-time.Second)))
	resolver := newTestResolver(store)
	resolver.now = func() time.Time { return now }

	decision, err := resolver.CheckPermission(context.Background(), "alice", "crm:document:read", "doc-123")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
}

func TestCheckAnyPermission(t *testing.T) {
	store := newFakeStore()
	alice := store.addSubject("alice", true)
	store.addSubject("bob", false)
	viewer := store.addRole("viewer", strPtr(testApp), nil)
	store.setRolePermissions(viewer, "crm:document:read")
	store.assignSubjectRole(alice, viewer, nil, nil)
	resolver := newTestResolver(store)
	ctx := context.Background()

	decision, err := resolver.CheckAnyPermission(ctx, "alice", []string{"crm:document:delete", "crm:document:read"}, "")
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	decision, err = resolver.CheckAnyPermission(ctx, "alice", []string{"crm:document:delete", "crm:document:write"}, "")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonDenied, decision.Reason)

	decision, err = resolver.CheckAnyPermission(ctx, "bob", []string{"crm:document:read", "crm:document:write"}, "")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, ReasonSubjectInactive, decision.Reason)
}

func TestGetPermissions(t *testing.T) {
	store := newFakeStore()
	alice := store.addSubject("alice", true)
	viewer := store.addRole("viewer", strPtr(testApp), nil)
	reporter := store.addRole("reporter", strPtr("bi"), nil)
	store.setRolePermissions(viewer, "crm:document:read", "crm:ticket:read")
	store.setRolePermissions(reporter, "bi:report:read")
	store.assignSubjectRole(alice, viewer, nil, nil)
	store.assignSubjectRole(alice, reporter, nil, nil)
	resolver := newTestResolver(store)
	ctx := context.Background()

	all, err := resolver.GetPermissions(ctx, "alice", "")
	require.NoError(t, err)
	require.Equal(t, []string{"bi:report:read", "crm:document:read", "crm:ticket:read"}, all)

	filtered, err := resolver.GetPermissions(ctx, "alice", "bi")
	require.NoError(t, err)
	require.Equal(t, []string{"bi:report:read"}, filtered)

	empty, err := resolver.GetPermissions(ctx, "ghost", "")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestGetPermissionsExcludesScopedGrants(t *testing.T) {
	store := newFakeStore()
	alice := store.addSubject("alice", true)
	editor := store.addRole("editor", strPtr(testApp), nil)
	store.setRolePermissions(editor, "crm:document:write")
	instance := store.addInstance(testApp, "document", "doc-123", nil)
	store.assignSubjectRole(alice, editor, &instance, nil)
	store.grantInstancePermission(instance, alice, "crm:document:read", nil)
	resolver := newTestResolver(store)

	// Scoped assignments and direct instance grants never leak into the
	// unscoped enumeration.
	all, err := resolver.GetPermissions(context.Background(), "alice", "")
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestGetRoles(t *testing.T) {
	store := newFakeStore()
	alice := store.addSubject("alice", true)
	viewer := store.addRole("viewer", strPtr(testApp), nil)
	editor := store.addRole("editor", strPtr(testApp), &viewer)
	auditor := store.addRole("auditor", nil, nil)
	store.assignSubjectRole(alice, editor, nil, nil)
	store.assignSubjectRole(alice, auditor, nil, nil)
	resolver := newTestResolver(store)
	ctx := context.Background()

	all, err := resolver.GetRoles(ctx, "alice", "")
	require.NoError(t, err)
	require.Equal(t, []string{"auditor", "editor", "viewer"}, all)

	// Global roles pass the application filter.
	filtered, err := resolver.GetRoles(ctx, "alice", testApp)
	require.NoError(t, err)
	require.Equal(t, []string{"auditor", "editor", "viewer"}, filtered)

	other, err := resolver.GetRoles(ctx, "alice", "bi")
	require.NoError(t, err)
	require.Equal(t, []string{"auditor"}, other)
}

func TestSnapshotSentinels(t *testing.T) {
	store := newFakeStore()
	store.addSubject("bob", false)
	resolver := newTestResolver(store)
	ctx := context.Background()

	_, err := resolver.Snapshot(ctx, "ghost")
	require.ErrorIs(t, err, ErrSubjectNotFound)

	_, err = resolver.Snapshot(ctx, "bob")
	require.ErrorIs(t, err, ErrSubjectInactive)
}
