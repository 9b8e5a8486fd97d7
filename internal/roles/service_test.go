package roles

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivoli-ai/gatekeeper/internal/catalog"
)

type fakeRepo struct {
	roles    map[int64]Role
	perms    map[int64]map[int64]struct{}
	attached []int64
	detached []int64
	nextID   int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{roles: map[int64]Role{}, perms: map[int64]map[int64]struct{}{}, nextID: 1}
}

func (f *fakeRepo) add(role Role) Role {
	role.ID = f.nextID
	f.nextID++
	f.roles[role.ID] = role
	return role
}

func (f *fakeRepo) ListRoles(ctx context.Context, applicationCode string) ([]Role, error) {
	var out []Role
	for _, r := range f.roles {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRepo) RoleByID(ctx context.Context, id int64) (Role, error) {
	role, ok := f.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return role, nil
}

func (f *fakeRepo) RoleByCode(ctx context.Context, code, applicationCode string) (Role, error) {
	for _, r := range f.roles {
		if r.Code == code {
			return r, nil
		}
	}
	return Role{}, ErrNotFound
}

func (f *fakeRepo) CreateRole(ctx context.Context, params CreateRoleParams) (Role, error) {
	for _, r := range f.roles {
		if r.Code == params.Code {
			return Role{}, ErrDuplicate
		}
	}
	return f.add(Role{Code: params.Code, Name: params.Name, IsSystem: params.IsSystem, ParentRoleID: params.ParentRoleID, CreatedAt: time.Now()}), nil
}

func (f *fakeRepo) UpdateRole(ctx context.Context, id int64, name string, parentRoleID *int64) (Role, error) {
	role, ok := f.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	role.Name = name
	role.ParentRoleID = parentRoleID
	f.roles[id] = role
	return role, nil
}

func (f *fakeRepo) DeleteRole(ctx context.Context, id int64) (int64, error) {
	if _, ok := f.roles[id]; !ok {
		return 0, nil
	}
	delete(f.roles, id)
	return 1, nil
}

func (f *fakeRepo) ListRolePermissions(ctx context.Context, roleID int64) ([]catalog.Permission, error) {
	var out []catalog.Permission
	for id := range f.perms[roleID] {
		out = append(out, catalog.Permission{ID: id})
	}
	return out, nil
}

func (f *fakeRepo) AttachPermission(ctx context.Context, roleID, permissionID int64) error {
	if f.perms[roleID] == nil {
		f.perms[roleID] = map[int64]struct{}{}
	}
	f.perms[roleID][permissionID] = struct{}{}
	f.attached = append(f.attached, permissionID)
	return nil
}

func (f *fakeRepo) DetachPermission(ctx context.Context, roleID, permissionID int64) error {
	delete(f.perms[roleID], permissionID)
	f.detached = append(f.detached, permissionID)
	return nil
}

func TestDeleteRoleRefusesSystemRole(t *testing.T) {
	repo := newFakeRepo()
	role := repo.add(Role{Code: "admin", IsSystem: true})
	svc := NewService(repo)

	err := svc.DeleteRole(context.Background(), role.ID)
	require.ErrorIs(t, err, ErrSystemRole)
	_, err = repo.RoleByID(context.Background(), role.ID)
	assert.NoError(t, err, "system role must not be deleted")
}

func TestDeleteRoleRemovesRegularRole(t *testing.T) {
	repo := newFakeRepo()
	role := repo.add(Role{Code: "viewer"})
	svc := NewService(repo)

	require.NoError(t, svc.DeleteRole(context.Background(), role.ID))
	_, err := repo.RoleByID(context.Background(), role.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetRolePermissionsAppliesDifference(t *testing.T) {
	repo := newFakeRepo()
	role := repo.add(Role{Code: "editor"})
	repo.perms[role.ID] = map[int64]struct{}{1: {}, 2: {}}
	svc := NewService(repo)

	require.NoError(t, svc.SetRolePermissions(context.Background(), role.ID, []int64{2, 3}))
	assert.Equal(t, []int64{3}, repo.attached)
	assert.Equal(t, []int64{1}, repo.detached)
}

func TestUpdateRoleRejectsCycle(t *testing.T) {
	repo := newFakeRepo()
	grand := repo.add(Role{Code: "grand"})
	parent := repo.add(Role{Code: "parent", ParentRoleID: &grand.ID})
	child := repo.add(Role{Code: "child", ParentRoleID: &parent.ID})
	svc := NewService(repo)

	_, err := svc.UpdateRole(context.Background(), grand.ID, "grand", &child.ID)
	assert.ErrorIs(t, err, ErrCycle)

	_, err = svc.UpdateRole(context.Background(), child.ID, "child", &child.ID)
	assert.ErrorIs(t, err, ErrCycle)
}

func TestCreateRoleRequiresExistingParent(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	missing := int64(42)

	_, err := svc.CreateRole(context.Background(), CreateRoleParams{Code: "orphan", ParentRoleID: &missing})
	assert.ErrorIs(t, err, ErrNotFound)
}
