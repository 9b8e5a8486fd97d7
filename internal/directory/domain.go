package directory

import "time"

// Subject is a user or service account identity, keyed by (provider, external id).
type Subject struct {
	ID          int64
	Provider    string
	ExternalID  string
	DisplayName string
	IsActive    bool
	CreatedAt   time.Time
}

// Team groups subjects. The parent reference is organisational only and is
// never consulted during permission resolution.
type Team struct {
	ID           int64
	Code         string
	Name         string
	ParentTeamID *int64
	CreatedAt    time.Time
}

// TeamMember links a subject to a team.
type TeamMember struct {
	TeamID    int64
	SubjectID int64
	CreatedAt time.Time
}
