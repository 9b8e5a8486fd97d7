package resources

import (
	"context"
	"errors"
	"strings"
)

// Service handles resource instance management.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListInstances returns instances filtered by application and resource type.
func (s *Service) ListInstances(ctx context.Context, applicationCode, resourceTypeCode string) ([]Instance, error) {
	return s.repo.ListInstances(ctx, strings.TrimSpace(applicationCode), strings.TrimSpace(resourceTypeCode))
}

// RegisterInstance records a resource instance, optionally with an owner.
func (s *Service) RegisterInstance(ctx context.Context, applicationCode, resourceTypeCode, externalID, ownerExternalID string) (Instance, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return Instance{}, errors.New("resources: external id required")
	}
	return s.repo.CreateInstance(ctx, strings.TrimSpace(applicationCode), strings.TrimSpace(resourceTypeCode), externalID, strings.TrimSpace(ownerExternalID))
}

// GetInstance fetches an instance by its (type, external id) key.
func (s *Service) GetInstance(ctx context.Context, applicationCode, resourceTypeCode, externalID string) (Instance, error) {
	return s.repo.InstanceByExternalID(ctx, strings.TrimSpace(applicationCode), strings.TrimSpace(resourceTypeCode), strings.TrimSpace(externalID))
}

// SetOwner assigns or clears the owning subject of an instance. Ownership is
// consulted only on instance-scoped checks, which never read the resolution
// cache, so no invalidation is needed here.
func (s *Service) SetOwner(ctx context.Context, applicationCode, resourceTypeCode, externalID, ownerExternalID string) (Instance, error) {
	inst, err := s.GetInstance(ctx, applicationCode, resourceTypeCode, externalID)
	if err != nil {
		return Instance{}, err
	}
	return s.repo.SetOwner(ctx, inst.ID, strings.TrimSpace(ownerExternalID))
}
