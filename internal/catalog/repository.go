package catalog

import (
	"context"
	"errors"
)

// Package sentinels returned by repositories and services.
var (
	ErrNotFound  = errors.New("catalog: not found")
	ErrDuplicate = errors.New("catalog: duplicate")
)

// RepositoryPort defines data access for catalog reference data.
type RepositoryPort interface {
	ListApplications(ctx context.Context) ([]Application, error)
	CreateApplication(ctx context.Context, code, name string) (Application, error)
	ApplicationByCode(ctx context.Context, code string) (Application, error)

	ListResourceTypes(ctx context.Context, applicationCode string) ([]ResourceType, error)
	CreateResourceType(ctx context.Context, applicationCode, code, name string, supportsInstances bool) (ResourceType, error)

	ListActions(ctx context.Context) ([]Action, error)
	CreateAction(ctx context.Context, code, name string) (Action, error)

	ListPermissions(ctx context.Context, applicationCode string) ([]Permission, error)
	EnsurePermission(ctx context.Context, code PermissionCode) (Permission, error)
	PermissionByCode(ctx context.Context, code PermissionCode) (Permission, error)
}
