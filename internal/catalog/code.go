package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPermissionCode indicates a malformed permission code.
var ErrInvalidPermissionCode = errors.New("catalog: invalid permission code")

// PermissionCode is the parsed form of "application:resourceType:action".
type PermissionCode struct {
	Application  string
	ResourceType string
	Action       string
}

// ParsePermissionCode parses a fully qualified three-segment code.
func ParsePermissionCode(raw string) (PermissionCode, error) {
	return QualifyPermissionCode(raw, "")
}

// QualifyPermissionCode parses a permission code, filling in the application
// segment from defaultApp when the caller supplied only resourceType:action.
func QualifyPermissionCode(raw, defaultApp string) (PermissionCode, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return PermissionCode{}, fmt.Errorf("%w: empty", ErrInvalidPermissionCode)
	}
	parts := strings.Split(raw, ":")
	switch len(parts) {
	case 2:
		if defaultApp == "" {
			return PermissionCode{}, fmt.Errorf("%w: %q has no application segment and no default application is configured", ErrInvalidPermissionCode, raw)
		}
		parts = append([]string{defaultApp}, parts...)
	case 3:
	default:
		return PermissionCode{}, fmt.Errorf("%w: %q must have 2 or 3 colon-separated segments", ErrInvalidPermissionCode, raw)
	}
	code := PermissionCode{
		Application:  strings.TrimSpace(parts[0]),
		ResourceType: strings.TrimSpace(parts[1]),
		Action:       strings.TrimSpace(parts[2]),
	}
	if code.Application == "" || code.ResourceType == "" || code.Action == "" {
		return PermissionCode{}, fmt.Errorf("%w: %q has an empty segment", ErrInvalidPermissionCode, raw)
	}
	return code, nil
}

// String renders the wire form of the code.
func (c PermissionCode) String() string {
	return c.Application + ":" + c.ResourceType + ":" + c.Action
}

// IsZero reports whether the code is unset.
func (c PermissionCode) IsZero() bool {
	return c.Application == "" && c.ResourceType == "" && c.Action == ""
}
