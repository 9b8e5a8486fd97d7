package roles

import (
	"context"
	"errors"

	"github.com/rivoli-ai/gatekeeper/internal/catalog"
)

// Package sentinels returned by repositories and services.
var (
	ErrNotFound   = errors.New("roles: not found")
	ErrDuplicate  = errors.New("roles: duplicate")
	ErrSystemRole = errors.New("roles: system roles cannot be deleted")
	ErrCycle      = errors.New("roles: parent chain would form a cycle")
)

// CreateRoleParams collects inputs for role creation.
type CreateRoleParams struct {
	ApplicationCode string
	Code            string
	Name            string
	IsSystem        bool
	ParentRoleID    *int64
}

// RepositoryPort defines data access for the role graph.
type RepositoryPort interface {
	ListRoles(ctx context.Context, applicationCode string) ([]Role, error)
	RoleByID(ctx context.Context, id int64) (Role, error)
	RoleByCode(ctx context.Context, code, applicationCode string) (Role, error)
	CreateRole(ctx context.Context, params CreateRoleParams) (Role, error)
	UpdateRole(ctx context.Context, id int64, name string, parentRoleID *int64) (Role, error)
	DeleteRole(ctx context.Context, id int64) (int64, error)

	ListRolePermissions(ctx context.Context, roleID int64) ([]catalog.Permission, error)
	AttachPermission(ctx context.Context, roleID, permissionID int64) error
	DetachPermission(ctx context.Context, roleID, permissionID int64) error
}
