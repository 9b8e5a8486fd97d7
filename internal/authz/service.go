package authz

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/rivoli-ai/gatekeeper/internal/catalog"
)

// WarmupEnqueuer schedules a background refresh of a subject's snapshot
// after its cache entry has been invalidated. Best effort; a nil enqueuer
// disables warmup.
type WarmupEnqueuer interface {
	EnqueueSubjectWarmup(ctx context.Context, subjectID string) error
}

// Service performs assignment mutations. Every successful mutation
// synchronously invalidates the affected subjects' cache entries before
// returning, so a subsequent read on the same process never sees stale
// grants.
type Service struct {
	store      MutationStore
	cache      Cache
	defaultApp string
	logger     *slog.Logger
	enqueuer   WarmupEnqueuer
}

// NewService constructs the mutation service. cache must be the same cache
// instance the CachedResolver reads from; enqueuer may be nil.
func NewService(store MutationStore, cache Cache, defaultApp string, logger *slog.Logger, enqueuer WarmupEnqueuer) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		cache = NopCache{}
	}
	return &Service{store: store, cache: cache, defaultApp: defaultApp, logger: logger, enqueuer: enqueuer}
}

// InstanceParams identifies one resource instance for a scoped assignment.
type InstanceParams struct {
	ResourceType string
	ExternalID   string
}

// AssignRoleParams collects the inputs of a role assignment.
type AssignRoleParams struct {
	Role        string
	Application string
	Instance    *InstanceParams
	ExpiresAt   *time.Time
}

// AssignSubjectRole grants a role to a subject, optionally scoped to one
// resource instance and optionally time-bounded.
func (s *Service) AssignSubjectRole(ctx context.Context, subjectID string, params AssignRoleParams) (Outcome, error) {
	subject, outcome, err := s.subject(ctx, subjectID)
	if !outcome.OK() || err != nil {
		return outcome, err
	}
	roleID, instanceID, outcome, err := s.assignmentTargets(ctx, params)
	if !outcome.OK() || err != nil {
		return outcome, err
	}
	err = s.store.InsertSubjectRole(ctx, subject.ID, roleID, instanceID, params.ExpiresAt)
	if errors.Is(err, ErrDuplicate) {
		return conflictOutcome("role already assigned"), nil
	}
	if err != nil {
		return Outcome{}, err
	}
	s.invalidate(ctx, subject.ExternalID)
	return okOutcome(), nil
}

// RevokeSubjectRole removes a role assignment from a subject.
func (s *Service) RevokeSubjectRole(ctx context.Context, subjectID string, params AssignRoleParams) (Outcome, error) {
	subject, outcome, err := s.subject(ctx, subjectID)
	if !outcome.OK() || err != nil {
		return outcome, err
	}
	roleID, instanceID, outcome, err := s.assignmentTargets(ctx, params)
	if !outcome.OK() || err != nil {
		return outcome, err
	}
	deleted, err := s.store.DeleteSubjectRole(ctx, subject.ID, roleID, instanceID)
	if err != nil {
		return Outcome{}, err
	}
	if deleted == 0 {
		return notFoundOutcome("role assignment not found"), nil
	}
	s.invalidate(ctx, subject.ExternalID)
	return okOutcome(), nil
}

// AssignTeamRole grants a role to every current and future member of a
// team. All current members' cache entries are invalidated.
func (s *Service) AssignTeamRole(ctx context.Context, teamCode string, params AssignRoleParams) (Outcome, error) {
	team, outcome, err := s.team(ctx, teamCode)
	if !outcome.OK() || err != nil {
		return outcome, err
	}
	roleID, instanceID, outcome, err := s.assignmentTargets(ctx, params)
	if !outcome.OK() || err != nil {
		return outcome, err
	}
	err = s.store.InsertTeamRole(ctx, team.ID, roleID, instanceID, params.ExpiresAt)
	if errors.Is(err, ErrDuplicate) {
		return conflictOutcome("role already assigned to team"), nil
	}
	if err != nil {
		return Outcome{}, err
	}
	if err := s.invalidateTeam(ctx, team.ID); err != nil {
		return Outcome{}, err
	}
	return okOutcome(), nil
}

// RevokeTeamRole removes a role assignment from a team, invalidating every
// current member's cache entry.
func (s *Service) RevokeTeamRole(ctx context.Context, teamCode string, params AssignRoleParams) (Outcome, error) {
	team, outcome, err := s.team(ctx, teamCode)
	if !outcome.OK() || err != nil {
		return outcome, err
	}
	roleID, instanceID, outcome, err := s.assignmentTargets(ctx, params)
	if !outcome.OK() || err != nil {
		return outcome, err
	}
	deleted, err := s.store.DeleteTeamRole(ctx, team.ID, roleID, instanceID)
	if err != nil {
		return Outcome{}, err
	}
	if deleted == 0 {
		return notFoundOutcome("team role assignment not found"), nil
	}
	if err := s.invalidateTeam(ctx, team.ID); err != nil {
		return Outcome{}, err
	}
	return okOutcome(), nil
}

// GrantParams collects the inputs of a direct instance permission grant.
type GrantParams struct {
	Application  string
	ResourceType string
	ResourceID   string
	Action       string
	ExpiresAt    *time.Time
}

// GrantInstancePermission gives a subject one permission on one resource
// instance, independent of any role. The instance row is registered on
// first reference.
func (s *Service) GrantInstancePermission(ctx context.Context, subjectID string, params GrantParams) (Outcome, error) {
	subject, outcome, err := s.subject(ctx, subjectID)
	if !outcome.OK() || err != nil {
		return outcome, err
	}
	code, outcome := s.grantCode(ctx, params)
	if !outcome.OK() {
		return outcome, nil
	}
	permissionID, err := s.store.PermissionID(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return notFoundOutcome("permission " + code.String() + " not found"), nil
	}
	if err != nil {
		return Outcome{}, err
	}
	instanceID, err := s.store.EnsureInstance(ctx, code.Application, code.ResourceType, params.ResourceID)
	if errors.Is(err, ErrNotFound) {
		return notFoundOutcome("resource type does not support instances"), nil
	}
	if err != nil {
		return Outcome{}, err
	}
	err = s.store.InsertInstancePermission(ctx, instanceID, subject.ID, permissionID, params.ExpiresAt)
	if errors.Is(err, ErrDuplicate) {
		return conflictOutcome("instance permission already granted"), nil
	}
	if err != nil {
		return Outcome{}, err
	}
	s.invalidate(ctx, subject.ExternalID)
	return okOutcome(), nil
}

// RevokeInstancePermission removes a direct instance grant.
func (s *Service) RevokeInstancePermission(ctx context.Context, subjectID string, params GrantParams) (Outcome, error) {
	subject, outcome, err := s.subject(ctx, subjectID)
	if !outcome.OK() || err != nil {
		return outcome, err
	}
	code, outcome := s.grantCode(ctx, params)
	if !outcome.OK() {
		return outcome, nil
	}
	permissionID, err := s.store.PermissionID(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return notFoundOutcome("permission " + code.String() + " not found"), nil
	}
	if err != nil {
		return Outcome{}, err
	}
	instanceID, err := s.store.EnsureInstance(ctx, code.Application, code.ResourceType, params.ResourceID)
	if errors.Is(err, ErrNotFound) {
		return notFoundOutcome("resource type does not support instances"), nil
	}
	if err != nil {
		return Outcome{}, err
	}
	deleted, err := s.store.DeleteInstancePermission(ctx, instanceID, subject.ID, permissionID)
	if err != nil {
		return Outcome{}, err
	}
	if deleted == 0 {
		return notFoundOutcome("instance permission not found"), nil
	}
	s.invalidate(ctx, subject.ExternalID)
	return okOutcome(), nil
}

// AddTeamMember puts a subject into a team. The subject immediately
// inherits the team's roles, so its cache entry is invalidated.
func (s *Service) AddTeamMember(ctx context.Context, teamCode, subjectID string) (Outcome, error) {
	team, outcome, err := s.team(ctx, teamCode)
	if !outcome.OK() || err != nil {
		return outcome, err
	}
	subject, outcome, err := s.subject(ctx, subjectID)
	if !outcome.OK() || err != nil {
		return outcome, err
	}
	err = s.store.InsertTeamMember(ctx, team.ID, subject.ID)
	if errors.Is(err, ErrDuplicate) {
		return conflictOutcome("subject is already a team member"), nil
	}
	if err != nil {
		return Outcome{}, err
	}
	s.invalidate(ctx, subject.ExternalID)
	return okOutcome(), nil
}

// RemoveTeamMember takes a subject out of a team, revoking its inherited
// roles; the cache entry is invalidated.
func (s *Service) RemoveTeamMember(ctx context.Context, teamCode, subjectID string) (Outcome, error) {
	team, outcome, err := s.team(ctx, teamCode)
	if !outcome.OK() || err != nil {
		return outcome, err
	}
	subject, outcome, err := s.subject(ctx, subjectID)
	if !outcome.OK() || err != nil {
		return outcome, err
	}
	deleted, err := s.store.DeleteTeamMember(ctx, team.ID, subject.ID)
	if err != nil {
		return Outcome{}, err
	}
	if deleted == 0 {
		return notFoundOutcome("team membership not found"), nil
	}
	s.invalidate(ctx, subject.ExternalID)
	return okOutcome(), nil
}

func (s *Service) subject(ctx context.Context, subjectID string) (Subject, Outcome, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return Subject{}, invalidOutcome("subject id required"), nil
	}
	subject, err := s.store.SubjectByExternalID(ctx, subjectID)
	if errors.Is(err, ErrNotFound) {
		return Subject{}, notFoundOutcome("subject " + subjectID + " not found"), nil
	}
	if err != nil {
		return Subject{}, Outcome{}, err
	}
	return subject, okOutcome(), nil
}

func (s *Service) team(ctx context.Context, teamCode string) (Team, Outcome, error) {
	teamCode = strings.TrimSpace(teamCode)
	if teamCode == "" {
		return Team{}, invalidOutcome("team code required"), nil
	}
	team, err := s.store.TeamByCode(ctx, teamCode)
	if errors.Is(err, ErrNotFound) {
		return Team{}, notFoundOutcome("team " + teamCode + " not found"), nil
	}
	if err != nil {
		return Team{}, Outcome{}, err
	}
	return team, okOutcome(), nil
}

// assignmentTargets resolves the role and the optional instance scope of an
// assignment mutation.
func (s *Service) assignmentTargets(ctx context.Context, params AssignRoleParams) (int64, *int64, Outcome, error) {
	role := strings.TrimSpace(params.Role)
	if role == "" {
		return 0, nil, invalidOutcome("role code required"), nil
	}
	app := s.application(ctx, params.Application)
	roleID, err := s.store.RoleIDByCode(ctx, role, app)
	if errors.Is(err, ErrNotFound) {
		return 0, nil, notFoundOutcome("role " + role + " not found"), nil
	}
	if err != nil {
		return 0, nil, Outcome{}, err
	}
	var instanceID *int64
	if params.Instance != nil {
		if params.Instance.ResourceType == "" || params.Instance.ExternalID == "" {
			return 0, nil, invalidOutcome("instance scope requires resource type and resource id"), nil
		}
		id, err := s.store.EnsureInstance(ctx, app, params.Instance.ResourceType, params.Instance.ExternalID)
		if errors.Is(err, ErrNotFound) {
			return 0, nil, notFoundOutcome("resource type does not support instances"), nil
		}
		if err != nil {
			return 0, nil, Outcome{}, err
		}
		instanceID = &id
	}
	return roleID, instanceID, okOutcome(), nil
}

// application picks the application scope of a mutation: an explicit
// parameter wins, then the calling client's application, then the
// configured default.
func (s *Service) application(ctx context.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if code, ok := ApplicationFromContext(ctx); ok {
		return code
	}
	return s.defaultApp
}

func (s *Service) grantCode(ctx context.Context, params GrantParams) (catalog.PermissionCode, Outcome) {
	app := s.application(ctx, params.Application)
	if params.ResourceType == "" || params.ResourceID == "" || params.Action == "" {
		return catalog.PermissionCode{}, invalidOutcome("resource type, resource id and action required")
	}
	code, err := catalog.QualifyPermissionCode(params.ResourceType+":"+params.Action, app)
	if err != nil {
		return catalog.PermissionCode{}, invalidOutcome(err.Error())
	}
	return code, okOutcome()
}

// invalidate drops one subject's cache entry and schedules a warmup.
func (s *Service) invalidate(ctx context.Context, subjectID string) {
	s.cache.Invalidate(ctx, subjectID)
	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueSubjectWarmup(ctx, subjectID); err != nil {
			s.logger.Warn("enqueue warmup", slog.String("subject", subjectID), slog.Any("error", err))
		}
	}
}

// invalidateTeam fans the invalidation out to every current member.
func (s *Service) invalidateTeam(ctx context.Context, teamID int64) error {
	members, err := s.store.TeamMemberExternalIDs(ctx, teamID)
	if err != nil {
		return err
	}
	for _, subjectID := range members {
		s.invalidate(ctx, subjectID)
	}
	return nil
}
