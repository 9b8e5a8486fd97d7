package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for subjects and teams.
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

const subjectColumns = `id, provider, external_id, display_name, is_active, created_at`

func scanSubject(row pgx.Row) (Subject, error) {
	var s Subject
	err := row.Scan(&s.ID, &s.Provider, &s.ExternalID, &s.DisplayName, &s.IsActive, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Subject{}, ErrNotFound
	}
	return s, err
}

// ListSubjects returns all subjects.
func (r *Repository) ListSubjects(ctx context.Context) ([]Subject, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+subjectColumns+` FROM subjects ORDER BY external_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Subject
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CreateSubject registers a new subject.
func (r *Repository) CreateSubject(ctx context.Context, provider, externalID, displayName string) (Subject, error) {
	s, err := scanSubject(r.pool.QueryRow(ctx, `
INSERT INTO subjects (provider, external_id, display_name, is_active)
VALUES ($1, $2, $3, TRUE)
RETURNING `+subjectColumns, provider, externalID, displayName))
	if isUniqueViolation(err) {
		return Subject{}, ErrDuplicate
	}
	return s, err
}

// SubjectByExternalID fetches one subject by external id.
func (r *Repository) SubjectByExternalID(ctx context.Context, externalID string) (Subject, error) {
	return scanSubject(r.pool.QueryRow(ctx,
		`SELECT `+subjectColumns+` FROM subjects WHERE external_id = $1`, externalID))
}

// SetSubjectActive flips a subject's active flag.
func (r *Repository) SetSubjectActive(ctx context.Context, externalID string, active bool) (Subject, error) {
	return scanSubject(r.pool.QueryRow(ctx, `
UPDATE subjects SET is_active = $2 WHERE external_id = $1
RETURNING `+subjectColumns, externalID, active))
}

// ListTeams returns all teams.
func (r *Repository) ListTeams(ctx context.Context) ([]Team, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, code, name, parent_team_id, created_at FROM teams ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Team
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.ID, &t.Code, &t.Name, &t.ParentTeamID, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateTeam registers a new team.
func (r *Repository) CreateTeam(ctx context.Context, code, name string, parentTeamID *int64) (Team, error) {
	var t Team
	err := r.pool.QueryRow(ctx, `
INSERT INTO teams (code, name, parent_team_id)
VALUES ($1, $2, $3)
RETURNING id, code, name, parent_team_id, created_at`, code, name, parentTeamID).
		Scan(&t.ID, &t.Code, &t.Name, &t.ParentTeamID, &t.CreatedAt)
	if isUniqueViolation(err) {
		return Team{}, ErrDuplicate
	}
	return t, err
}

// TeamByCode fetches one team by its unique code.
func (r *Repository) TeamByCode(ctx context.Context, code string) (Team, error) {
	var t Team
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, name, parent_team_id, created_at FROM teams WHERE code = $1`, code).
		Scan(&t.ID, &t.Code, &t.Name, &t.ParentTeamID, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Team{}, ErrNotFound
	}
	return t, err
}

// ListTeamMembers returns the subjects currently in a team.
func (r *Repository) ListTeamMembers(ctx context.Context, teamID int64) ([]Subject, error) {
	rows, err := r.pool.Query(ctx, `
SELECT s.id, s.provider, s.external_id, s.display_name, s.is_active, s.created_at
FROM team_members tm
JOIN subjects s ON s.id = tm.subject_id
WHERE tm.team_id = $1
ORDER BY s.external_id`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Subject
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
