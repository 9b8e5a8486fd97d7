package resources

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for resource instances.
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

const instanceSelect = `
SELECT ri.id, ri.resource_type_id, a.code, rt.code, ri.external_id,
       ri.owner_subject_id, s.external_id, ri.created_at
FROM resource_instances ri
JOIN resource_types rt ON rt.id = ri.resource_type_id
JOIN applications a ON a.id = rt.application_id
LEFT JOIN subjects s ON s.id = ri.owner_subject_id`

func scanInstance(row pgx.Row) (Instance, error) {
	var inst Instance
	err := row.Scan(&inst.ID, &inst.ResourceTypeID, &inst.ApplicationCode, &inst.ResourceTypeCode,
		&inst.ExternalID, &inst.OwnerSubjectID, &inst.OwnerSubjectExtID, &inst.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Instance{}, ErrNotFound
	}
	return inst, err
}

// ListInstances returns instances filtered by application and resource type.
func (r *Repository) ListInstances(ctx context.Context, applicationCode, resourceTypeCode string) ([]Instance, error) {
	rows, err := r.pool.Query(ctx, instanceSelect+`
WHERE ($1 = '' OR a.code = $1) AND ($2 = '' OR rt.code = $2)
ORDER BY a.code, rt.code, ri.external_id`, applicationCode, resourceTypeCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// CreateInstance registers a resource instance. ownerExternalID may be empty.
func (r *Repository) CreateInstance(ctx context.Context, applicationCode, resourceTypeCode, externalID string, ownerExternalID string) (Instance, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO resource_instances (resource_type_id, external_id, owner_subject_id)
SELECT rt.id, $3, (SELECT id FROM subjects WHERE external_id = NULLIF($4, ''))
FROM resource_types rt
JOIN applications a ON a.id = rt.application_id
WHERE a.code = $1 AND rt.code = $2 AND rt.supports_instances
RETURNING id`,
		applicationCode, resourceTypeCode, externalID, ownerExternalID).Scan(&id)
	if isUniqueViolation(err) {
		return Instance{}, ErrDuplicate
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return Instance{}, ErrNotFound
	}
	if err != nil {
		return Instance{}, err
	}
	return scanInstance(r.pool.QueryRow(ctx, instanceSelect+` WHERE ri.id = $1`, id))
}

// InstanceByExternalID fetches one instance by its (type, external id) key.
func (r *Repository) InstanceByExternalID(ctx context.Context, applicationCode, resourceTypeCode, externalID string) (Instance, error) {
	return scanInstance(r.pool.QueryRow(ctx, instanceSelect+`
WHERE a.code = $1 AND rt.code = $2 AND ri.external_id = $3`,
		applicationCode, resourceTypeCode, externalID))
}

// SetOwner assigns or clears the owning subject of an instance.
func (r *Repository) SetOwner(ctx context.Context, instanceID int64, ownerExternalID string) (Instance, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE resource_instances
SET owner_subject_id = (SELECT id FROM subjects WHERE external_id = NULLIF($2, ''))
WHERE id = $1`, instanceID, ownerExternalID)
	if err != nil {
		return Instance{}, err
	}
	if tag.RowsAffected() == 0 {
		return Instance{}, ErrNotFound
	}
	return scanInstance(r.pool.QueryRow(ctx, instanceSelect+` WHERE ri.id = $1`, instanceID))
}
