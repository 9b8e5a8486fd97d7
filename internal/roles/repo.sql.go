package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rivoli-ai/gatekeeper/internal/catalog"
)

// Repository provides PostgreSQL backed persistence for the role graph.
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

const roleColumns = `r.id, r.application_id, a.code, r.code, r.name, r.is_system, r.parent_role_id, r.created_at, r.updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.ApplicationID, &role.ApplicationCode, &role.Code,
		&role.Name, &role.IsSystem, &role.ParentRoleID, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, ErrNotFound
	}
	return role, err
}

// ListRoles returns roles, optionally filtered by application. Global roles
// always pass the filter.
func (r *Repository) ListRoles(ctx context.Context, applicationCode string) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+roleColumns+`
FROM roles r
LEFT JOIN applications a ON a.id = r.application_id
WHERE $1 = '' OR r.application_id IS NULL OR a.code = $1
ORDER BY r.code`, applicationCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// RoleByID fetches one role.
func (r *Repository) RoleByID(ctx context.Context, id int64) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `
SELECT `+roleColumns+`
FROM roles r
LEFT JOIN applications a ON a.id = r.application_id
WHERE r.id = $1`, id))
}

// RoleByCode resolves a role code. An application-scoped match wins over a
// global role of the same code.
func (r *Repository) RoleByCode(ctx context.Context, code, applicationCode string) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `
SELECT `+roleColumns+`
FROM roles r
LEFT JOIN applications a ON a.id = r.application_id
WHERE r.code = $1 AND (r.application_id IS NULL OR a.code = $2)
ORDER BY r.application_id NULLS LAST
LIMIT 1`, code, applicationCode))
}

// CreateRole inserts a new role. An empty ApplicationCode creates a global role.
func (r *Repository) CreateRole(ctx context.Context, params CreateRoleParams) (Role, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO roles (application_id, code, name, is_system, parent_role_id)
VALUES ((SELECT id FROM applications WHERE code = NULLIF($1, '')), $2, $3, $4, $5)
RETURNING id`,
		params.ApplicationCode, params.Code, params.Name, params.IsSystem, params.ParentRoleID).Scan(&id)
	if isUniqueViolation(err) {
		return Role{}, ErrDuplicate
	}
	if err != nil {
		return Role{}, err
	}
	return r.RoleByID(ctx, id)
}

// UpdateRole updates a role's name and parent.
func (r *Repository) UpdateRole(ctx context.Context, id int64, name string, parentRoleID *int64) (Role, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE roles SET name = $2, parent_role_id = $3, updated_at = now() WHERE id = $1`,
		id, name, parentRoleID)
	if err != nil {
		return Role{}, err
	}
	if tag.RowsAffected() == 0 {
		return Role{}, ErrNotFound
	}
	return r.RoleByID(ctx, id)
}

// DeleteRole removes a role and returns the number of rows deleted.
func (r *Repository) DeleteRole(ctx context.Context, id int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListRolePermissions returns the permissions attached directly to a role.
func (r *Repository) ListRolePermissions(ctx context.Context, roleID int64) ([]catalog.Permission, error) {
	rows, err := r.pool.Query(ctx, `
SELECT p.id, p.resource_type_id, p.action_id, a.code, rt.code, ac.code
FROM role_permissions rp
JOIN permissions p ON p.id = rp.permission_id
JOIN resource_types rt ON rt.id = p.resource_type_id
JOIN applications a ON a.id = rt.application_id
JOIN actions ac ON ac.id = p.action_id
WHERE rp.role_id = $1
ORDER BY a.code, rt.code, ac.code`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []catalog.Permission
	for rows.Next() {
		var p catalog.Permission
		if err := rows.Scan(&p.ID, &p.ResourceTypeID, &p.ActionID, &p.Code.Application, &p.Code.ResourceType, &p.Code.Action); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// AttachPermission links a permission to a role.
func (r *Repository) AttachPermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		roleID, permissionID)
	return err
}

// DetachPermission unlinks a permission from a role.
func (r *Repository) DetachPermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`,
		roleID, permissionID)
	return err
}
