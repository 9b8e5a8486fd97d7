package roles

import (
	"context"
	"errors"
	"strings"

	"github.com/rivoli-ai/gatekeeper/internal/catalog"
)

// Service orchestrates role graph management.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListRoles returns roles visible to an application (global roles included).
func (s *Service) ListRoles(ctx context.Context, applicationCode string) ([]Role, error) {
	return s.repo.ListRoles(ctx, strings.TrimSpace(applicationCode))
}

// GetRole fetches a role by id.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.RoleByID(ctx, id)
}

// CreateRole inserts a new role after validating its parent reference.
func (s *Service) CreateRole(ctx context.Context, params CreateRoleParams) (Role, error) {
	params.Code = strings.TrimSpace(strings.ToLower(params.Code))
	if params.Code == "" {
		return Role{}, errors.New("roles: role code required")
	}
	params.Name = strings.TrimSpace(params.Name)
	if params.ParentRoleID != nil {
		if _, err := s.repo.RoleByID(ctx, *params.ParentRoleID); err != nil {
			return Role{}, err
		}
	}
	return s.repo.CreateRole(ctx, params)
}

// UpdateRole updates a role's name and parent, refusing parent chains that
// would loop back to the role itself.
func (s *Service) UpdateRole(ctx context.Context, id int64, name string, parentRoleID *int64) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("roles: role name required")
	}
	if parentRoleID != nil {
		if err := s.checkNoCycle(ctx, id, *parentRoleID); err != nil {
			return Role{}, err
		}
	}
	return s.repo.UpdateRole(ctx, id, name, parentRoleID)
}

// DeleteRole removes a role. System roles are protected.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	role, err := s.repo.RoleByID(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrSystemRole
	}
	deleted, err := s.repo.DeleteRole(ctx, id)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRolePermissions returns the permissions attached directly to a role.
func (s *Service) ListRolePermissions(ctx context.Context, roleID int64) ([]catalog.Permission, error) {
	if _, err := s.repo.RoleByID(ctx, roleID); err != nil {
		return nil, err
	}
	return s.repo.ListRolePermissions(ctx, roleID)
}

// SetRolePermissions replaces a role's direct permission set, attaching and
// detaching only the difference.
func (s *Service) SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	current, err := s.repo.ListRolePermissions(ctx, roleID)
	if err != nil {
		return err
	}
	existing := make(map[int64]struct{}, len(current))
	for _, p := range current {
		existing[p.ID] = struct{}{}
	}
	keep := make(map[int64]struct{}, len(permissionIDs))
	for _, id := range permissionIDs {
		keep[id] = struct{}{}
		if _, ok := existing[id]; !ok {
			if err := s.repo.AttachPermission(ctx, roleID, id); err != nil {
				return err
			}
		}
	}
	for id := range existing {
		if _, ok := keep[id]; !ok {
			if err := s.repo.DetachPermission(ctx, roleID, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkNoCycle rejects a parent assignment that would make the chain loop
// back through roleID.
func (s *Service) checkNoCycle(ctx context.Context, roleID, parentID int64) error {
	if roleID == parentID {
		return ErrCycle
	}
	var walkErr error
	chain := Chain(parentID, func(id int64) (*int64, bool) {
		role, err := s.repo.RoleByID(ctx, id)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				walkErr = err
			}
			return nil, false
		}
		return role.ParentRoleID, true
	})
	if walkErr != nil {
		return walkErr
	}
	for _, id := range chain {
		if id == roleID {
			return ErrCycle
		}
	}
	return nil
}
