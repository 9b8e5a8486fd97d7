package authz

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rivoli-ai/gatekeeper/internal/catalog"
)

// Repository implements Store and MutationStore on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// SubjectByExternalID fetches the resolver's view of a subject.
func (r *Repository) SubjectByExternalID(ctx context.Context, externalID string) (Subject, error) {
	var s Subject
	err := r.pool.QueryRow(ctx,
		`SELECT id, external_id, is_active FROM subjects WHERE external_id = $1`, externalID).
		Scan(&s.ID, &s.ExternalID, &s.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return Subject{}, ErrNotFound
	}
	return s, err
}

// TeamIDsForSubject returns the ids of every team the subject belongs to.
func (r *Repository) TeamIDsForSubject(ctx context.Context, subjectID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT team_id FROM team_members WHERE subject_id = $1`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) roleGrants(ctx context.Context, subjectID int64, teamIDs []int64, instanceID *int64) ([]RoleGrant, error) {
	rows, err := r.pool.Query(ctx, `
SELECT role_id, expires_at FROM subject_roles
WHERE subject_id = $1 AND resource_instance_id IS NOT DISTINCT FROM $3
UNION ALL
SELECT role_id, expires_at FROM team_roles
WHERE team_id = ANY($2) AND resource_instance_id IS NOT DISTINCT FROM $3`,
		subjectID, teamIDs, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []RoleGrant
	for rows.Next() {
		var g RoleGrant
		if err := rows.Scan(&g.RoleID, &g.ExpiresAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// UnscopedRoleGrants unions the subject's and its teams' unscoped role rows.
func (r *Repository) UnscopedRoleGrants(ctx context.Context, subjectID int64, teamIDs []int64) ([]RoleGrant, error) {
	return r.roleGrants(ctx, subjectID, teamIDs, nil)
}

// InstanceRoleGrants unions the rows scoped to exactly one instance.
func (r *Repository) InstanceRoleGrants(ctx context.Context, subjectID int64, teamIDs []int64, instanceID int64) ([]RoleGrant, error) {
	return r.roleGrants(ctx, subjectID, teamIDs, &instanceID)
}

// RoleNode fetches the role graph shape of one role.
func (r *Repository) RoleNode(ctx context.Context, roleID int64) (RoleNode, error) {
	var node RoleNode
	err := r.pool.QueryRow(ctx, `
SELECT r.id, r.code, a.code, r.parent_role_id
FROM roles r
LEFT JOIN applications a ON a.id = r.application_id
WHERE r.id = $1`, roleID).
		Scan(&node.ID, &node.Code, &node.ApplicationCode, &node.ParentRoleID)
	if errors.Is(err, pgx.ErrNoRows) {
		return RoleNode{}, ErrNotFound
	}
	return node, err
}

// RolePermissionCodes returns the wire codes attached directly to a role.
func (r *Repository) RolePermissionCodes(ctx context.Context, roleID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
SELECT a.code || ':' || rt.code || ':' || ac.code
FROM role_permissions rp
JOIN permissions p ON p.id = rp.permission_id
JOIN resource_types rt ON rt.id = p.resource_type_id
JOIN applications a ON a.id = rt.application_id
JOIN actions ac ON ac.id = p.action_id
WHERE rp.role_id = $1`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// Instance resolves a resource instance by its (type, external id) key.
func (r *Repository) Instance(ctx context.Context, application, resourceType, externalID string) (InstanceRef, error) {
	var ref InstanceRef
	err := r.pool.QueryRow(ctx, `
SELECT ri.id, ri.owner_subject_id
FROM resource_instances ri
JOIN resource_types rt ON rt.id = ri.resource_type_id
JOIN applications a ON a.id = rt.application_id
WHERE a.code = $1 AND rt.code = $2 AND ri.external_id = $3`,
		application, resourceType, externalID).
		Scan(&ref.ID, &ref.OwnerSubjectID)
	if errors.Is(err, pgx.ErrNoRows) {
		return InstanceRef{}, ErrNotFound
	}
	return ref, err
}

// InstanceGrants returns the subject's direct grants on one instance.
func (r *Repository) InstanceGrants(ctx context.Context, subjectID, instanceID int64) ([]InstanceGrant, error) {
	rows, err := r.pool.Query(ctx, `
SELECT a.code || ':' || rt.code || ':' || ac.code, ip.expires_at
FROM instance_permissions ip
JOIN permissions p ON p.id = ip.permission_id
JOIN resource_types rt ON rt.id = p.resource_type_id
JOIN applications a ON a.id = rt.application_id
JOIN actions ac ON ac.id = p.action_id
WHERE ip.subject_id = $1 AND ip.resource_instance_id = $2`, subjectID, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []InstanceGrant
	for rows.Next() {
		var g InstanceGrant
		if err := rows.Scan(&g.Permission, &g.ExpiresAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// TeamByCode fetches the mutation view of a team.
func (r *Repository) TeamByCode(ctx context.Context, code string) (Team, error) {
	var t Team
	err := r.pool.QueryRow(ctx, `SELECT id, code FROM teams WHERE code = $1`, code).
		Scan(&t.ID, &t.Code)
	if errors.Is(err, pgx.ErrNoRows) {
		return Team{}, ErrNotFound
	}
	return t, err
}

// TeamMemberExternalIDs lists the external ids of a team's current members,
// the fan-out set for cache invalidation.
func (r *Repository) TeamMemberExternalIDs(ctx context.Context, teamID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
SELECT s.external_id
FROM team_members tm
JOIN subjects s ON s.id = tm.subject_id
WHERE tm.team_id = $1`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RoleIDByCode resolves a role code; an application-scoped match wins over
// a global role of the same code.
func (r *Repository) RoleIDByCode(ctx context.Context, code, applicationCode string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
SELECT r.id
FROM roles r
LEFT JOIN applications a ON a.id = r.application_id
WHERE r.code = $1 AND (r.application_id IS NULL OR a.code = $2)
ORDER BY r.application_id NULLS LAST
LIMIT 1`, code, applicationCode).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return id, err
}

// PermissionID resolves a fully qualified permission code to its row id.
func (r *Repository) PermissionID(ctx context.Context, code catalog.PermissionCode) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
SELECT p.id
FROM permissions p
JOIN resource_types rt ON rt.id = p.resource_type_id
JOIN applications a ON a.id = rt.application_id
JOIN actions ac ON ac.id = p.action_id
WHERE a.code = $1 AND rt.code = $2 AND ac.code = $3`,
		code.Application, code.ResourceType, code.Action).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return id, err
}

// EnsureInstance registers the instance row on first reference, provided
// the resource type exists and supports instances.
func (r *Repository) EnsureInstance(ctx context.Context, application, resourceType, externalID string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO resource_instances (resource_type_id, external_id)
SELECT rt.id, $3
FROM resource_types rt
JOIN applications a ON a.id = rt.application_id
WHERE a.code = $1 AND rt.code = $2 AND rt.supports_instances
ON CONFLICT (resource_type_id, external_id) DO UPDATE SET external_id = EXCLUDED.external_id
RETURNING id`, application, resourceType, externalID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return id, err
}

// InsertSubjectRole adds a subject-role row.
func (r *Repository) InsertSubjectRole(ctx context.Context, subjectID, roleID int64, instanceID *int64, expiresAt *time.Time) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO subject_roles (subject_id, role_id, resource_instance_id, expires_at)
VALUES ($1, $2, $3, $4)`, subjectID, roleID, instanceID, expiresAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// DeleteSubjectRole removes a subject-role row, returning rows affected.
func (r *Repository) DeleteSubjectRole(ctx context.Context, subjectID, roleID int64, instanceID *int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
DELETE FROM subject_roles
WHERE subject_id = $1 AND role_id = $2 AND resource_instance_id IS NOT DISTINCT FROM $3`,
		subjectID, roleID, instanceID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InsertTeamRole adds a team-role row.
func (r *Repository) InsertTeamRole(ctx context.Context, teamID, roleID int64, instanceID *int64, expiresAt *time.Time) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO team_roles (team_id, role_id, resource_instance_id, expires_at)
VALUES ($1, $2, $3, $4)`, teamID, roleID, instanceID, expiresAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// DeleteTeamRole removes a team-role row, returning rows affected.
func (r *Repository) DeleteTeamRole(ctx context.Context, teamID, roleID int64, instanceID *int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
DELETE FROM team_roles
WHERE team_id = $1 AND role_id = $2 AND resource_instance_id IS NOT DISTINCT FROM $3`,
		teamID, roleID, instanceID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InsertInstancePermission adds a direct grant row.
func (r *Repository) InsertInstancePermission(ctx context.Context, instanceID, subjectID, permissionID int64, expiresAt *time.Time) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO instance_permissions (resource_instance_id, subject_id, permission_id, expires_at)
VALUES ($1, $2, $3, $4)`, instanceID, subjectID, permissionID, expiresAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// DeleteInstancePermission removes a direct grant row, returning rows affected.
func (r *Repository) DeleteInstancePermission(ctx context.Context, instanceID, subjectID, permissionID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
DELETE FROM instance_permissions
WHERE resource_instance_id = $1 AND subject_id = $2 AND permission_id = $3`,
		instanceID, subjectID, permissionID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InsertTeamMember adds a membership row.
func (r *Repository) InsertTeamMember(ctx context.Context, teamID, subjectID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO team_members (team_id, subject_id) VALUES ($1, $2)`, teamID, subjectID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// DeleteTeamMember removes a membership row, returning rows affected.
func (r *Repository) DeleteTeamMember(ctx context.Context, teamID, subjectID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM team_members WHERE team_id = $1 AND subject_id = $2`, teamID, subjectID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
