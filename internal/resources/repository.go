package resources

import (
	"context"
	"errors"
)

// Package sentinels returned by repositories and services.
var (
	ErrNotFound  = errors.New("resources: not found")
	ErrDuplicate = errors.New("resources: duplicate")
)

// RepositoryPort defines data access for resource instances.
type RepositoryPort interface {
	ListInstances(ctx context.Context, applicationCode, resourceTypeCode string) ([]Instance, error)
	CreateInstance(ctx context.Context, applicationCode, resourceTypeCode, externalID string, ownerExternalID string) (Instance, error)
	InstanceByExternalID(ctx context.Context, applicationCode, resourceTypeCode, externalID string) (Instance, error)
	SetOwner(ctx context.Context, instanceID int64, ownerExternalID string) (Instance, error)
}
