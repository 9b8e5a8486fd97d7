package authz

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/rivoli-ai/gatekeeper/internal/catalog"
	"github.com/rivoli-ai/gatekeeper/internal/observability"
	"github.com/rivoli-ai/gatekeeper/internal/roles"
)

// Resolver computes allow/deny decisions by combining role assignments
// (direct and team-inherited), per-instance grants and resource ownership.
// It performs only reads and holds no mutable state of its own.
type Resolver struct {
	store      Store
	defaultApp string
	logger     *slog.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

// NewResolver constructs a Resolver. defaultApp qualifies permission codes
// supplied without an application segment; metrics may be nil.
func NewResolver(store Store, defaultApp string, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:      store,
		defaultApp: defaultApp,
		logger:     logger,
		metrics:    metrics,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Qualify normalizes a permission code, filling in the application segment
// when the caller supplied only resourceType:action. The calling client
// application on the context takes precedence over the configured default.
func (r *Resolver) Qualify(ctx context.Context, permission string) (catalog.PermissionCode, error) {
	app := r.defaultApp
	if code, ok := ApplicationFromContext(ctx); ok {
		app = code
	}
	return catalog.QualifyPermissionCode(permission, app)
}

// CheckPermission decides whether the subject holds the permission,
// optionally scoped to one resource instance. Unknown or inactive subjects
// are denied with an explanatory reason, never an error.
func (r *Resolver) CheckPermission(ctx context.Context, subjectID, permission, resourceID string) (Decision, error) {
	code, err := r.Qualify(ctx, permission)
	if err != nil {
		return Decision{}, err
	}

	subject, err := r.store.SubjectByExternalID(ctx, subjectID)
	if errors.Is(err, ErrNotFound) {
		return r.decide(Deny(ReasonSubjectNotFound)), nil
	}
	if err != nil {
		return Decision{}, err
	}
	if !subject.IsActive {
		return r.decide(Deny(ReasonSubjectInactive)), nil
	}

	teamIDs, err := r.store.TeamIDsForSubject(ctx, subject.ID)
	if err != nil {
		return Decision{}, err
	}

	grants, err := r.store.UnscopedRoleGrants(ctx, subject.ID, teamIDs)
	if err != nil {
		return Decision{}, err
	}

	var instance *InstanceRef
	if resourceID != "" {
		inst, err := r.store.Instance(ctx, code.Application, code.ResourceType, resourceID)
		switch {
		case errors.Is(err, ErrNotFound):
			// Unknown instance: scoped grants and ownership contribute nothing.
		case err != nil:
			return Decision{}, err
		default:
			instance = &inst
			scoped, err := r.store.InstanceRoleGrants(ctx, subject.ID, teamIDs, inst.ID)
			if err != nil {
				return Decision{}, err
			}
			grants = append(grants, scoped...)
		}
	}

	allowed, err := r.rolesGrant(ctx, grants, code.String())
	if err != nil {
		return Decision{}, err
	}
	if allowed {
		return r.decide(Allow()), nil
	}

	if instance != nil {
		directGrants, err := r.store.InstanceGrants(ctx, subject.ID, instance.ID)
		if err != nil {
			return Decision{}, err
		}
		target := code.String()
		for _, g := range directGrants {
			if r.expired(g.ExpiresAt) {
				continue
			}
			if g.Permission == target {
				return r.decide(Allow()), nil
			}
		}
		// Owners hold every permission on their own resource.
		if instance.OwnerSubjectID != nil && *instance.OwnerSubjectID == subject.ID {
			return r.decide(Allow()), nil
		}
	}

	return r.decide(Deny(ReasonDenied)), nil
}

// CheckAnyPermission decides whether the subject holds at least one of the
// permissions, short-circuiting on the first individual allow.
func (r *Resolver) CheckAnyPermission(ctx context.Context, subjectID string, permissions []string, resourceID string) (Decision, error) {
	for _, permission := range permissions {
		decision, err := r.CheckPermission(ctx, subjectID, permission, resourceID)
		if err != nil {
			return Decision{}, err
		}
		if decision.Allowed {
			return decision, nil
		}
		// A subject-level denial applies to every element identically.
		if decision.Reason != ReasonDenied {
			return decision, nil
		}
	}
	return Deny(ReasonDenied), nil
}

// GetPermissions returns the subject's unscoped effective permission codes,
// optionally restricted to one application. Unknown and inactive subjects
// yield the empty set.
func (r *Resolver) GetPermissions(ctx context.Context, subjectID, applicationCode string) ([]string, error) {
	snap, err := r.Snapshot(ctx, subjectID)
	if errors.Is(err, ErrSubjectNotFound) || errors.Is(err, ErrSubjectInactive) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if applicationCode == "" {
		return snap.Permissions, nil
	}
	out := make([]string, 0, len(snap.Permissions))
	prefix := applicationCode + ":"
	for _, code := range snap.Permissions {
		if strings.HasPrefix(code, prefix) {
			out = append(out, code)
		}
	}
	return out, nil
}

// GetRoles returns the subject's unscoped effective role codes, optionally
// restricted to one application. Global roles pass every filter.
func (r *Resolver) GetRoles(ctx context.Context, subjectID, applicationCode string) ([]string, error) {
	if applicationCode == "" {
		snap, err := r.Snapshot(ctx, subjectID)
		if errors.Is(err, ErrSubjectNotFound) || errors.Is(err, ErrSubjectInactive) {
			return []string{}, nil
		}
		if err != nil {
			return nil, err
		}
		return snap.Roles, nil
	}

	nodes, err := r.effectiveRoleNodes(ctx, subjectID)
	if errors.Is(err, ErrSubjectNotFound) || errors.Is(err, ErrSubjectInactive) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if node.ApplicationCode == nil || *node.ApplicationCode == applicationCode {
			out = append(out, node.Code)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Snapshot computes the unscoped, unfiltered permission and role sets for a
// subject. This is exactly the shape the resolution cache stores.
func (r *Resolver) Snapshot(ctx context.Context, subjectID string) (Snapshot, error) {
	nodes, err := r.effectiveRoleNodes(ctx, subjectID)
	if err != nil {
		return Snapshot{}, err
	}

	permSet := make(map[string]struct{})
	roleSet := make(map[string]struct{}, len(nodes))
	for _, node := range nodes {
		roleSet[node.Code] = struct{}{}
		codes, err := r.store.RolePermissionCodes(ctx, node.ID)
		if err != nil {
			return Snapshot{}, err
		}
		for _, code := range codes {
			permSet[code] = struct{}{}
		}
	}

	snap := Snapshot{Permissions: make([]string, 0, len(permSet)), Roles: make([]string, 0, len(roleSet))}
	for code := range permSet {
		snap.Permissions = append(snap.Permissions, code)
	}
	for code := range roleSet {
		snap.Roles = append(snap.Roles, code)
	}
	sort.Strings(snap.Permissions)
	sort.Strings(snap.Roles)
	return snap, nil
}

// effectiveRoleNodes builds the unscoped candidate role set and expands each
// candidate through its parent chain.
func (r *Resolver) effectiveRoleNodes(ctx context.Context, subjectID string) ([]RoleNode, error) {
	subject, err := r.store.SubjectByExternalID(ctx, subjectID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrSubjectNotFound
	}
	if err != nil {
		return nil, err
	}
	if !subject.IsActive {
		return nil, ErrSubjectInactive
	}

	teamIDs, err := r.store.TeamIDsForSubject(ctx, subject.ID)
	if err != nil {
		return nil, err
	}
	grants, err := r.store.UnscopedRoleGrants(ctx, subject.ID, teamIDs)
	if err != nil {
		return nil, err
	}

	visited := make(map[int64]struct{})
	var nodes []RoleNode
	var walkErr error
	parentOf := func(id int64) (*int64, bool) {
		node, err := r.store.RoleNode(ctx, id)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				walkErr = err
			}
			return nil, false
		}
		return node.ParentRoleID, true
	}
	for _, grant := range grants {
		if r.expired(grant.ExpiresAt) {
			continue
		}
		for _, id := range roles.Chain(grant.RoleID, parentOf) {
			if walkErr != nil {
				return nil, walkErr
			}
			if _, seen := visited[id]; seen {
				continue
			}
			visited[id] = struct{}{}
			node, err := r.store.RoleNode(ctx, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		}
	}
	if walkErr != nil {
		return nil, walkErr
	}
	return nodes, nil
}

// rolesGrant reports whether any candidate role's effective permission set,
// expanded through parent chains, contains target.
func (r *Resolver) rolesGrant(ctx context.Context, grants []RoleGrant, target string) (bool, error) {
	visited := make(map[int64]struct{})
	var walkErr error
	parentOf := func(id int64) (*int64, bool) {
		node, err := r.store.RoleNode(ctx, id)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				walkErr = err
			}
			return nil, false
		}
		return node.ParentRoleID, true
	}
	for _, grant := range grants {
		if r.expired(grant.ExpiresAt) {
			continue
		}
		for _, id := range roles.Chain(grant.RoleID, parentOf) {
			if walkErr != nil {
				return false, walkErr
			}
			if _, seen := visited[id]; seen {
				continue
			}
			visited[id] = struct{}{}
			codes, err := r.store.RolePermissionCodes(ctx, id)
			if err != nil {
				return false, err
			}
			if slices.Contains(codes, target) {
				return true, nil
			}
		}
	}
	if walkErr != nil {
		return false, walkErr
	}
	return false, nil
}

func (r *Resolver) expired(expiresAt *time.Time) bool {
	return expiresAt != nil && !expiresAt.After(r.now())
}

func (r *Resolver) decide(d Decision) Decision {
	r.metrics.RecordDecision(d.Allowed)
	return d
}
