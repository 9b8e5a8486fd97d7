package authz

import (
	"context"
	"time"

	"github.com/rivoli-ai/gatekeeper/internal/catalog"
)

// Store is the read side consumed by the resolver. All methods are pure
// reads; expired rows are returned as-is and filtered by the resolver.
type Store interface {
	SubjectByExternalID(ctx context.Context, externalID string) (Subject, error)
	TeamIDsForSubject(ctx context.Context, subjectID int64) ([]int64, error)

	// UnscopedRoleGrants unions the subject's own unscoped role rows with the
	// unscoped rows of every team in teamIDs.
	UnscopedRoleGrants(ctx context.Context, subjectID int64, teamIDs []int64) ([]RoleGrant, error)
	// InstanceRoleGrants does the same for rows scoped to exactly instanceID.
	InstanceRoleGrants(ctx context.Context, subjectID int64, teamIDs []int64, instanceID int64) ([]RoleGrant, error)

	RoleNode(ctx context.Context, roleID int64) (RoleNode, error)
	RolePermissionCodes(ctx context.Context, roleID int64) ([]string, error)

	Instance(ctx context.Context, application, resourceType, externalID string) (InstanceRef, error)
	InstanceGrants(ctx context.Context, subjectID, instanceID int64) ([]InstanceGrant, error)
}

// MutationStore is the write side consumed by the mutation service.
type MutationStore interface {
	SubjectByExternalID(ctx context.Context, externalID string) (Subject, error)
	TeamByCode(ctx context.Context, code string) (Team, error)
	TeamMemberExternalIDs(ctx context.Context, teamID int64) ([]string, error)
	RoleIDByCode(ctx context.Context, code, applicationCode string) (int64, error)
	PermissionID(ctx context.Context, code catalog.PermissionCode) (int64, error)

	// EnsureInstance registers the instance row on first reference, provided
	// the resource type exists and supports instances.
	EnsureInstance(ctx context.Context, application, resourceType, externalID string) (int64, error)

	InsertSubjectRole(ctx context.Context, subjectID, roleID int64, instanceID *int64, expiresAt *time.Time) error
	DeleteSubjectRole(ctx context.Context, subjectID, roleID int64, instanceID *int64) (int64, error)
	InsertTeamRole(ctx context.Context, teamID, roleID int64, instanceID *int64, expiresAt *time.Time) error
	DeleteTeamRole(ctx context.Context, teamID, roleID int64, instanceID *int64) (int64, error)
	InsertInstancePermission(ctx context.Context, instanceID, subjectID, permissionID int64, expiresAt *time.Time) error
	DeleteInstancePermission(ctx context.Context, instanceID, subjectID, permissionID int64) (int64, error)
	InsertTeamMember(ctx context.Context, teamID, subjectID int64) error
	DeleteTeamMember(ctx context.Context, teamID, subjectID int64) (int64, error)
}
