package authz

import (
	"context"
	"sync"
	"time"

	"github.com/rivoli-ai/gatekeeper/internal/catalog"
)

type subjectRoleRow struct {
	subjectID  int64
	roleID     int64
	instanceID *int64
	expiresAt  *time.Time
}

type teamRoleRow struct {
	teamID     int64
	roleID     int64
	instanceID *int64
	expiresAt  *time.Time
}

type instanceGrantRow struct {
	instanceID   int64
	subjectID    int64
	permissionID int64
	expiresAt    *time.Time
}

// fakeStore is an in-memory Store and MutationStore used across the
// package tests.
type fakeStore struct {
	mu sync.Mutex

	nextID int64

	subjects    map[string]Subject
	teams       map[string]Team
	teamMembers map[int64][]int64

	roleNodes map[int64]RoleNode
	rolePerms map[int64][]string

	permissionIDs map[string]int64

	instances         map[string]InstanceRef
	supportsInstances map[string]bool

	subjectRoles   []subjectRoleRow
	teamRoles      []teamRoleRow
	instanceGrants []instanceGrantRow

	subjectLookups int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subjects:          make(map[string]Subject),
		teams:             make(map[string]Team),
		teamMembers:       make(map[int64][]int64),
		roleNodes:         make(map[int64]RoleNode),
		rolePerms:         make(map[int64][]string),
		permissionIDs:     make(map[string]int64),
		instances:         make(map[string]InstanceRef),
		supportsInstances: make(map[string]bool),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) addSubject(externalID string, active bool) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id()
	f.subjects[externalID] = Subject{ID: id, ExternalID: externalID, IsActive: active}
	return id
}

func (f *fakeStore) addTeam(code string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id()
	f.teams[code] = Team{ID: id, Code: code}
	return id
}

func (f *fakeStore) addMember(teamID, subjectID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teamMembers[teamID] = append(f.teamMembers[teamID], subjectID)
}

func (f *fakeStore) addRole(code string, applicationCode *string, parentRoleID *int64) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id()
	f.roleNodes[id] = RoleNode{ID: id, Code: code, ApplicationCode: applicationCode, ParentRoleID: parentRoleID}
	return id
}

func (f *fakeStore) setRolePermissions(roleID int64, codes ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rolePerms[roleID] = codes
	for _, code := range codes {
		if _, ok := f.permissionIDs[code]; !ok {
			f.permissionIDs[code] = f.id()
		}
	}
}

func (f *fakeStore) addPermission(code string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.permissionIDs[code]; ok {
		return id
	}
	id := f.id()
	f.permissionIDs[code] = id
	return id
}

func (f *fakeStore) addResourceType(application, resourceType string, supportsInstances bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.supportsInstances[application+"/"+resourceType] = supportsInstances
}

func (f *fakeStore) addInstance(application, resourceType, externalID string, ownerSubjectID *int64) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.supportsInstances[application+"/"+resourceType] = true
	key := application + "/" + resourceType + "/" + externalID
	id := f.id()
	f.instances[key] = InstanceRef{ID: id, OwnerSubjectID: ownerSubjectID}
	return id
}

func (f *fakeStore) assignSubjectRole(subjectID, roleID int64, instanceID *int64, expiresAt *time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjectRoles = append(f.subjectRoles, subjectRoleRow{subjectID, roleID, instanceID, expiresAt})
}

func (f *fakeStore) assignTeamRole(teamID, roleID int64, instanceID *int64, expiresAt *time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teamRoles = append(f.teamRoles, teamRoleRow{teamID, roleID, instanceID, expiresAt})
}

func (f *fakeStore) grantInstancePermission(instanceID, subjectID int64, code string, expiresAt *time.Time) {
	permissionID := f.addPermission(code)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instanceGrants = append(f.instanceGrants, instanceGrantRow{instanceID, subjectID, permissionID, expiresAt})
}

func (f *fakeStore) SubjectByExternalID(_ context.Context, externalID string) (Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjectLookups++
	subject, ok := f.subjects[externalID]
	if !ok {
		return Subject{}, ErrNotFound
	}
	return subject, nil
}

func (f *fakeStore) TeamIDsForSubject(_ context.Context, subjectID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for teamID, members := range f.teamMembers {
		for _, member := range members {
			if member == subjectID {
				ids = append(ids, teamID)
				break
			}
		}
	}
	return ids, nil
}

func (f *fakeStore) roleGrantRows(subjectID int64, teamIDs []int64, instanceID *int64) []RoleGrant {
	sameScope := func(rowInstance *int64) bool {
		if instanceID == nil {
			return rowInstance == nil
		}
		return rowInstance != nil && *rowInstance == *instanceID
	}
	var grants []RoleGrant
	for _, row := range f.subjectRoles {
		if row.subjectID == subjectID && sameScope(row.instanceID) {
			grants = append(grants, RoleGrant{RoleID: row.roleID, ExpiresAt: row.expiresAt})
		}
	}
	for _, row := range f.teamRoles {
		for _, teamID := range teamIDs {
			if row.teamID == teamID && sameScope(row.instanceID) {
				grants = append(grants, RoleGrant{RoleID: row.roleID, ExpiresAt: row.expiresAt})
			}
		}
	}
	return grants
}

func (f *fakeStore) UnscopedRoleGrants(_ context.Context, subjectID int64, teamIDs []int64) ([]RoleGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roleGrantRows(subjectID, teamIDs, nil), nil
}

func (f *fakeStore) InstanceRoleGrants(_ context.Context, subjectID int64, teamIDs []int64, instanceID int64) ([]RoleGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roleGrantRows(subjectID, teamIDs, &instanceID), nil
}

func (f *fakeStore) RoleNode(_ context.Context, roleID int64) (RoleNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	node, ok := f.roleNodes[roleID]
	if !ok {
		return RoleNode{}, ErrNotFound
	}
	return node, nil
}

func (f *fakeStore) RolePermissionCodes(_ context.Context, roleID int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rolePerms[roleID], nil
}

func (f *fakeStore) Instance(_ context.Context, application, resourceType, externalID string) (InstanceRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref, ok := f.instances[application+"/"+resourceType+"/"+externalID]
	if !ok {
		return InstanceRef{}, ErrNotFound
	}
	return ref, nil
}

func (f *fakeStore) InstanceGrants(_ context.Context, subjectID, instanceID int64) ([]InstanceGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	codeByID := make(map[int64]string, len(f.permissionIDs))
	for code, id := range f.permissionIDs {
		codeByID[id] = code
	}
	var grants []InstanceGrant
	for _, row := range f.instanceGrants {
		if row.subjectID == subjectID && row.instanceID == instanceID {
			grants = append(grants, InstanceGrant{Permission: codeByID[row.permissionID], ExpiresAt: row.expiresAt})
		}
	}
	return grants, nil
}

func (f *fakeStore) TeamByCode(_ context.Context, code string) (Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	team, ok := f.teams[code]
	if !ok {
		return Team{}, ErrNotFound
	}
	return team, nil
}

func (f *fakeStore) TeamMemberExternalIDs(_ context.Context, teamID int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, memberID := range f.teamMembers[teamID] {
		for _, subject := range f.subjects {
			if subject.ID == memberID {
				out = append(out, subject.ExternalID)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) RoleIDByCode(_ context.Context, code, applicationCode string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var globalID int64
	for _, node := range f.roleNodes {
		if node.Code != code {
			continue
		}
		if node.ApplicationCode != nil && *node.ApplicationCode == applicationCode {
			return node.ID, nil
		}
		if node.ApplicationCode == nil {
			globalID = node.ID
		}
	}
	if globalID != 0 {
		return globalID, nil
	}
	return 0, ErrNotFound
}

func (f *fakeStore) PermissionID(_ context.Context, code catalog.PermissionCode) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.permissionIDs[code.String()]
	if !ok {
		return 0, ErrNotFound
	}
	return id, nil
}

func (f *fakeStore) EnsureInstance(_ context.Context, application, resourceType, externalID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.supportsInstances[application+"/"+resourceType] {
		return 0, ErrNotFound
	}
	key := application + "/" + resourceType + "/" + externalID
	if ref, ok := f.instances[key]; ok {
		return ref.ID, nil
	}
	id := f.id()
	f.instances[key] = InstanceRef{ID: id}
	return id, nil
}

func (f *fakeStore) InsertSubjectRole(_ context.Context, subjectID, roleID int64, instanceID *int64, expiresAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.subjectRoles {
		if row.subjectID == subjectID && row.roleID == roleID && sameInstance(row.instanceID, instanceID) {
			return ErrDuplicate
		}
	}
	f.subjectRoles = append(f.subjectRoles, subjectRoleRow{subjectID, roleID, instanceID, expiresAt})
	return nil
}

func (f *fakeStore) DeleteSubjectRole(_ context.Context, subjectID, roleID int64, instanceID *int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []subjectRoleRow
	var deleted int64
	for _, row := range f.subjectRoles {
		if row.subjectID == subjectID && row.roleID == roleID && sameInstance(row.instanceID, instanceID) {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	f.subjectRoles = kept
	return deleted, nil
}

func (f *fakeStore) InsertTeamRole(_ context.Context, teamID, roleID int64, instanceID *int64, expiresAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.teamRoles {
		if row.teamID == teamID && row.roleID == roleID && sameInstance(row.instanceID, instanceID) {
			return ErrDuplicate
		}
	}
	f.teamRoles = append(f.teamRoles, teamRoleRow{teamID, roleID, instanceID, expiresAt})
	return nil
}

func (f *fakeStore) DeleteTeamRole(_ context.Context, teamID, roleID int64, instanceID *int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []teamRoleRow
	var deleted int64
	for _, row := range f.teamRoles {
		if row.teamID == teamID && row.roleID == roleID && sameInstance(row.instanceID, instanceID) {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	f.teamRoles = kept
	return deleted, nil
}

func (f *fakeStore) InsertInstancePermission(_ context.Context, instanceID, subjectID, permissionID int64, expiresAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.instanceGrants {
		if row.instanceID == instanceID && row.subjectID == subjectID && row.permissionID == permissionID {
			return ErrDuplicate
		}
	}
	f.instanceGrants = append(f.instanceGrants, instanceGrantRow{instanceID, subjectID, permissionID, expiresAt})
	return nil
}

func (f *fakeStore) DeleteInstancePermission(_ context.Context, instanceID, subjectID, permissionID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []instanceGrantRow
	var deleted int64
	for _, row := range f.instanceGrants {
		if row.instanceID == instanceID && row.subjectID == subjectID && row.permissionID == permissionID {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	f.instanceGrants = kept
	return deleted, nil
}

func (f *fakeStore) InsertTeamMember(_ context.Context, teamID, subjectID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, member := range f.teamMembers[teamID] {
		if member == subjectID {
			return ErrDuplicate
		}
	}
	f.teamMembers[teamID] = append(f.teamMembers[teamID], subjectID)
	return nil
}

func (f *fakeStore) DeleteTeamMember(_ context.Context, teamID, subjectID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []int64
	var deleted int64
	for _, member := range f.teamMembers[teamID] {
		if member == subjectID {
			deleted++
			continue
		}
		kept = append(kept, member)
	}
	f.teamMembers[teamID] = kept
	return deleted, nil
}

func (f *fakeStore) lookupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subjectLookups
}

func sameInstance(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

var _ Store = (*fakeStore)(nil)
var _ MutationStore = (*fakeStore)(nil)

// ptr helpers used by the fixtures.
func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }
