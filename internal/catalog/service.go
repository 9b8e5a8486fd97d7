package catalog

import (
	"context"
	"errors"
	"strings"
)

// Service orchestrates catalog reference data.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListApplications returns all registered applications.
func (s *Service) ListApplications(ctx context.Context) ([]Application, error) {
	return s.repo.ListApplications(ctx)
}

// CreateApplication registers a new client application.
func (s *Service) CreateApplication(ctx context.Context, code, name string) (Application, error) {
	code = strings.TrimSpace(strings.ToLower(code))
	if code == "" {
		return Application{}, errors.New("catalog: application code required")
	}
	return s.repo.CreateApplication(ctx, code, strings.TrimSpace(name))
}

// ListResourceTypes returns resource types, optionally filtered by application.
func (s *Service) ListResourceTypes(ctx context.Context, applicationCode string) ([]ResourceType, error) {
	return s.repo.ListResourceTypes(ctx, strings.TrimSpace(applicationCode))
}

// CreateResourceType registers a resource type under an application.
func (s *Service) CreateResourceType(ctx context.Context, applicationCode, code, name string, supportsInstances bool) (ResourceType, error) {
	code = strings.TrimSpace(strings.ToLower(code))
	if code == "" {
		return ResourceType{}, errors.New("catalog: resource type code required")
	}
	return s.repo.CreateResourceType(ctx, strings.TrimSpace(applicationCode), code, strings.TrimSpace(name), supportsInstances)
}

// ListActions returns the global action catalog.
func (s *Service) ListActions(ctx context.Context) ([]Action, error) {
	return s.repo.ListActions(ctx)
}

// CreateAction registers a new global action.
func (s *Service) CreateAction(ctx context.Context, code, name string) (Action, error) {
	code = strings.TrimSpace(strings.ToLower(code))
	if code == "" {
		return Action{}, errors.New("catalog: action code required")
	}
	return s.repo.CreateAction(ctx, code, strings.TrimSpace(name))
}

// ListPermissions returns permissions, optionally filtered by application.
func (s *Service) ListPermissions(ctx context.Context, applicationCode string) ([]Permission, error) {
	return s.repo.ListPermissions(ctx, strings.TrimSpace(applicationCode))
}

// EnsurePermission upserts the permission identified by a fully qualified code.
func (s *Service) EnsurePermission(ctx context.Context, rawCode string) (Permission, error) {
	code, err := ParsePermissionCode(rawCode)
	if err != nil {
		return Permission{}, err
	}
	return s.repo.EnsurePermission(ctx, code)
}
