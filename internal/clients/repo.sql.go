package clients

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements RepositoryPort on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Create inserts a client app bound to an existing application.
func (r *Repository) Create(ctx context.Context, app ClientApp) (ClientApp, error) {
	err := r.pool.QueryRow(ctx, `
INSERT INTO client_apps (application_id, name, key_id, key_hash, is_active)
SELECT a.id, $2, $3, $4, TRUE
FROM applications a
WHERE a.code = $1
RETURNING id, created_at`,
		app.ApplicationCode, app.Name, app.KeyID, app.KeyHash).
		Scan(&app.ID, &app.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ClientApp{}, ErrNotFound
	}
	if isUniqueViolation(err) {
		return ClientApp{}, ErrDuplicate
	}
	if err != nil {
		return ClientApp{}, err
	}
	app.IsActive = true
	return app, nil
}

// FindByKeyID fetches a client app by its public key id.
func (r *Repository) FindByKeyID(ctx context.Context, keyID string) (ClientApp, error) {
	var app ClientApp
	err := r.pool.QueryRow(ctx, `
SELECT c.id, a.code, c.name, c.key_id, c.key_hash, c.is_active, c.created_at
FROM client_apps c
JOIN applications a ON a.id = c.application_id
WHERE c.key_id = $1`, keyID).
		Scan(&app.ID, &app.ApplicationCode, &app.Name, &app.KeyID, &app.KeyHash, &app.IsActive, &app.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ClientApp{}, ErrNotFound
	}
	return app, err
}

// List returns every registered client app.
func (r *Repository) List(ctx context.Context) ([]ClientApp, error) {
	rows, err := r.pool.Query(ctx, `
SELECT c.id, a.code, c.name, c.key_id, c.key_hash, c.is_active, c.created_at
FROM client_apps c
JOIN applications a ON a.id = c.application_id
ORDER BY c.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var apps []ClientApp
	for rows.Next() {
		var app ClientApp
		if err := rows.Scan(&app.ID, &app.ApplicationCode, &app.Name, &app.KeyID, &app.KeyHash, &app.IsActive, &app.CreatedAt); err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// SetActive toggles a client app's active flag.
func (r *Repository) SetActive(ctx context.Context, keyID string, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE client_apps SET is_active = $2 WHERE key_id = $1`, keyID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
