package directory

import (
	"context"
	"errors"
	"strings"
)

// Service handles subject and team management.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListSubjects returns all subjects.
func (s *Service) ListSubjects(ctx context.Context) ([]Subject, error) {
	return s.repo.ListSubjects(ctx)
}

// CreateSubject registers a new subject identity.
func (s *Service) CreateSubject(ctx context.Context, provider, externalID, displayName string) (Subject, error) {
	provider = strings.TrimSpace(provider)
	externalID = strings.TrimSpace(externalID)
	if provider == "" || externalID == "" {
		return Subject{}, errors.New("directory: provider and external id required")
	}
	return s.repo.CreateSubject(ctx, provider, externalID, strings.TrimSpace(displayName))
}

// GetSubject fetches a subject by external id.
func (s *Service) GetSubject(ctx context.Context, externalID string) (Subject, error) {
	return s.repo.SubjectByExternalID(ctx, strings.TrimSpace(externalID))
}

// SetSubjectActive flips a subject's active flag. Inactive subjects are
// denied everywhere without being deleted.
func (s *Service) SetSubjectActive(ctx context.Context, externalID string, active bool) (Subject, error) {
	return s.repo.SetSubjectActive(ctx, strings.TrimSpace(externalID), active)
}

// ListTeams returns all teams.
func (s *Service) ListTeams(ctx context.Context) ([]Team, error) {
	return s.repo.ListTeams(ctx)
}

// CreateTeam registers a new team.
func (s *Service) CreateTeam(ctx context.Context, code, name string, parentTeamID *int64) (Team, error) {
	code = strings.TrimSpace(strings.ToLower(code))
	if code == "" {
		return Team{}, errors.New("directory: team code required")
	}
	return s.repo.CreateTeam(ctx, code, strings.TrimSpace(name), parentTeamID)
}

// GetTeam fetches a team by code.
func (s *Service) GetTeam(ctx context.Context, code string) (Team, error) {
	return s.repo.TeamByCode(ctx, strings.TrimSpace(code))
}

// ListTeamMembers returns the subjects currently in a team.
func (s *Service) ListTeamMembers(ctx context.Context, teamID int64) ([]Subject, error) {
	return s.repo.ListTeamMembers(ctx, teamID)
}
