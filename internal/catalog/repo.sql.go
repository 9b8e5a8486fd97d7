package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for catalog data.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// ListApplications returns all registered applications.
func (r *Repository) ListApplications(ctx context.Context) ([]Application, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, created_at FROM applications ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var apps []Application
	for rows.Next() {
		var app Application
		if err := rows.Scan(&app.ID, &app.Code, &app.Name, &app.CreatedAt); err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// CreateApplication registers a new application.
func (r *Repository) CreateApplication(ctx context.Context, code, name string) (Application, error) {
	var app Application
	err := r.pool.QueryRow(ctx,
		`INSERT INTO applications (code, name) VALUES ($1, $2) RETURNING id, code, name, created_at`,
		code, name).Scan(&app.ID, &app.Code, &app.Name, &app.CreatedAt)
	if isUniqueViolation(err) {
		return Application{}, ErrDuplicate
	}
	return app, err
}

// ApplicationByCode fetches one application by its unique code.
func (r *Repository) ApplicationByCode(ctx context.Context, code string) (Application, error) {
	var app Application
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, name, created_at FROM applications WHERE code = $1`, code).
		Scan(&app.ID, &app.Code, &app.Name, &app.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Application{}, ErrNotFound
	}
	return app, err
}

// ListResourceTypes returns resource types, optionally filtered by application.
func (r *Repository) ListResourceTypes(ctx context.Context, applicationCode string) ([]ResourceType, error) {
	rows, err := r.pool.Query(ctx, `
SELECT rt.id, rt.application_id, a.code, rt.code, rt.name, rt.supports_instances
FROM resource_types rt
JOIN applications a ON a.id = rt.application_id
WHERE $1 = '' OR a.code = $1
ORDER BY a.code, rt.code`, applicationCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var types []ResourceType
	for rows.Next() {
		var rt ResourceType
		if err := rows.Scan(&rt.ID, &rt.ApplicationID, &rt.ApplicationCode, &rt.Code, &rt.Name, &rt.SupportsInstances); err != nil {
			return nil, err
		}
		types = append(types, rt)
	}
	return types, rows.Err()
}

// CreateResourceType registers a resource type under an application.
func (r *Repository) CreateResourceType(ctx context.Context, applicationCode, code, name string, supportsInstances bool) (ResourceType, error) {
	app, err := r.ApplicationByCode(ctx, applicationCode)
	if err != nil {
		return ResourceType{}, err
	}
	var rt ResourceType
	err = r.pool.QueryRow(ctx, `
INSERT INTO resource_types (application_id, code, name, supports_instances)
VALUES ($1, $2, $3, $4)
RETURNING id, application_id, code, name, supports_instances`,
		app.ID, code, name, supportsInstances).
		Scan(&rt.ID, &rt.ApplicationID, &rt.Code, &rt.Name, &rt.SupportsInstances)
	if isUniqueViolation(err) {
		return ResourceType{}, ErrDuplicate
	}
	if err != nil {
		return ResourceType{}, err
	}
	rt.ApplicationCode = app.Code
	return rt, nil
}

// ListActions returns the global action catalog.
func (r *Repository) ListActions(ctx context.Context) ([]Action, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name FROM actions ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var actions []Action
	for rows.Next() {
		var a Action
		if err := rows.Scan(&a.ID, &a.Code, &a.Name); err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// CreateAction registers a new global action.
func (r *Repository) CreateAction(ctx context.Context, code, name string) (Action, error) {
	var a Action
	err := r.pool.QueryRow(ctx,
		`INSERT INTO actions (code, name) VALUES ($1, $2) RETURNING id, code, name`,
		code, name).Scan(&a.ID, &a.Code, &a.Name)
	if isUniqueViolation(err) {
		return Action{}, ErrDuplicate
	}
	return a, err
}

// ListPermissions returns permissions, optionally filtered by application.
func (r *Repository) ListPermissions(ctx context.Context, applicationCode string) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `
SELECT p.id, p.resource_type_id, p.action_id, a.code, rt.code, ac.code
FROM permissions p
JOIN resource_types rt ON rt.id = p.resource_type_id
JOIN applications a ON a.id = rt.application_id
JOIN actions ac ON ac.id = p.action_id
WHERE $1 = '' OR a.code = $1
ORDER BY a.code, rt.code, ac.code`, applicationCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.ResourceTypeID, &p.ActionID, &p.Code.Application, &p.Code.ResourceType, &p.Code.Action); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// EnsurePermission upserts the permission for (resourceType, action).
func (r *Repository) EnsurePermission(ctx context.Context, code PermissionCode) (Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx, `
INSERT INTO permissions (resource_type_id, action_id)
SELECT rt.id, ac.id
FROM resource_types rt
JOIN applications a ON a.id = rt.application_id
JOIN actions ac ON ac.code = $3
WHERE a.code = $1 AND rt.code = $2
ON CONFLICT (resource_type_id, action_id) DO UPDATE SET action_id = EXCLUDED.action_id
RETURNING id, resource_type_id, action_id`,
		code.Application, code.ResourceType, code.Action).
		Scan(&p.ID, &p.ResourceTypeID, &p.ActionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, ErrNotFound
	}
	if err != nil {
		return Permission{}, err
	}
	p.Code = code
	return p, nil
}

// PermissionByCode resolves a fully qualified permission code to its row.
func (r *Repository) PermissionByCode(ctx context.Context, code PermissionCode) (Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx, `
SELECT p.id, p.resource_type_id, p.action_id
FROM permissions p
JOIN resource_types rt ON rt.id = p.resource_type_id
JOIN applications a ON a.id = rt.application_id
JOIN actions ac ON ac.id = p.action_id
WHERE a.code = $1 AND rt.code = $2 AND ac.code = $3`,
		code.Application, code.ResourceType, code.Action).
		Scan(&p.ID, &p.ResourceTypeID, &p.ActionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, ErrNotFound
	}
	if err != nil {
		return Permission{}, err
	}
	p.Code = code
	return p, nil
}
