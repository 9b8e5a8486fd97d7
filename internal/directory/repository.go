package directory

import (
	"context"
	"errors"
)

// Package sentinels returned by repositories and services.
var (
	ErrNotFound  = errors.New("directory: not found")
	ErrDuplicate = errors.New("directory: duplicate")
)

// RepositoryPort defines data access for subjects and teams.
type RepositoryPort interface {
	ListSubjects(ctx context.Context) ([]Subject, error)
	CreateSubject(ctx context.Context, provider, externalID, displayName string) (Subject, error)
	SubjectByExternalID(ctx context.Context, externalID string) (Subject, error)
	SetSubjectActive(ctx context.Context, externalID string, active bool) (Subject, error)

	ListTeams(ctx context.Context) ([]Team, error)
	CreateTeam(ctx context.Context, code, name string, parentTeamID *int64) (Team, error)
	TeamByCode(ctx context.Context, code string) (Team, error)
	ListTeamMembers(ctx context.Context, teamID int64) ([]Subject, error)
}
