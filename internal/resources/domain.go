package resources

import "time"

// Instance is one concrete addressable object of a resource type,
// optionally owned by a subject.
type Instance struct {
	ID                int64
	ResourceTypeID    int64
	ApplicationCode   string
	ResourceTypeCode  string
	ExternalID        string
	OwnerSubjectID    *int64
	OwnerSubjectExtID *string
	CreatedAt         time.Time
}
