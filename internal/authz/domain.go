package authz

import (
	"errors"
	"time"
)

// Denial reasons surfaced on check decisions.
const (
	ReasonSubjectNotFound = "Subject not found"
	ReasonSubjectInactive = "Subject is inactive"
	ReasonDenied          = "Permission denied"
)

// Resolution sentinels. Read paths translate these into denials or empty
// sets; they are never surfaced as HTTP errors.
var (
	ErrSubjectNotFound = errors.New("authz: subject not found")
	ErrSubjectInactive = errors.New("authz: subject is inactive")
	ErrNotFound        = errors.New("authz: not found")
	ErrDuplicate       = errors.New("authz: duplicate")
)

// Decision is the result of a permission check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Allow builds an allowing decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny builds a denying decision with a reason.
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Subject is the resolver's view of an identity.
type Subject struct {
	ID         int64
	ExternalID string
	IsActive   bool
}

// Team is the resolver's view of a team.
type Team struct {
	ID   int64
	Code string
}

// RoleGrant is one subject-role or team-role row as seen by the resolver.
// Expiry filtering happens in the resolver so that a stored expired row
// stays inert without being deleted.
type RoleGrant struct {
	RoleID    int64
	ExpiresAt *time.Time
}

// RoleNode is the role graph shape the resolver walks.
type RoleNode struct {
	ID              int64
	Code            string
	ApplicationCode *string
	ParentRoleID    *int64
}

// InstanceRef identifies a resource instance and its optional owner.
type InstanceRef struct {
	ID             int64
	OwnerSubjectID *int64
}

// InstanceGrant is one direct per-instance permission grant.
type InstanceGrant struct {
	Permission string
	ExpiresAt  *time.Time
}

// Snapshot is the cached unscoped view of a subject: the flattened
// permission and role code sets with no instance scoping and no
// application filtering applied.
type Snapshot struct {
	Permissions []string `json:"permissions"`
	Roles       []string `json:"roles"`
}

// OutcomeKind classifies a mutation result.
type OutcomeKind string

// Mutation outcome kinds.
const (
	OutcomeOK       OutcomeKind = "ok"
	OutcomeNotFound OutcomeKind = "not_found"
	OutcomeConflict OutcomeKind = "conflict"
	OutcomeInvalid  OutcomeKind = "invalid"
)

// Outcome is the uniform result of every assignment mutation. Mutations
// never panic or throw on expectable conditions; callers inspect the kind.
type Outcome struct {
	Kind   OutcomeKind `json:"kind"`
	Detail string      `json:"detail,omitempty"`
}

// OK reports whether the mutation succeeded.
func (o Outcome) OK() bool {
	return o.Kind == OutcomeOK
}

func okOutcome() Outcome {
	return Outcome{Kind: OutcomeOK}
}

func notFoundOutcome(detail string) Outcome {
	return Outcome{Kind: OutcomeNotFound, Detail: detail}
}

func conflictOutcome(detail string) Outcome {
	return Outcome{Kind: OutcomeConflict, Detail: detail}
}

func invalidOutcome(detail string) Outcome {
	return Outcome{Kind: OutcomeInvalid, Detail: detail}
}
