package catalog

import "time"

// Application is a client application sharing the authorization backend.
type Application struct {
	ID        int64
	Code      string
	Name      string
	CreatedAt time.Time
}

// ResourceType is a kind of protected object owned by an application.
type ResourceType struct {
	ID                int64
	ApplicationID     int64
	ApplicationCode   string
	Code              string
	Name              string
	SupportsInstances bool
}

// Action is a global catalog verb such as read, write or delete.
type Action struct {
	ID   int64
	Code string
	Name string
}

// Permission pairs a resource type with an action. Its wire identity is
// the code "application:resourceType:action".
type Permission struct {
	ID             int64
	ResourceTypeID int64
	ActionID       int64
	Code           PermissionCode
}
