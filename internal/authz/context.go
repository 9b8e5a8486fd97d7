package authz

import "context"

type contextKey int

const (
	subjectKey contextKey = iota
	applicationKey
)

// ContextWithSubject stashes the authenticated subject's external id.
func ContextWithSubject(ctx context.Context, subjectID string) context.Context {
	return context.WithValue(ctx, subjectKey, subjectID)
}

// SubjectFromContext returns the authenticated subject's external id, if any.
func SubjectFromContext(ctx context.Context) (string, bool) {
	subjectID, ok := ctx.Value(subjectKey).(string)
	return subjectID, ok && subjectID != ""
}

// ContextWithApplication stashes the calling client application's code. It
// becomes the default application segment for two-segment permission codes
// within the request.
func ContextWithApplication(ctx context.Context, applicationCode string) context.Context {
	return context.WithValue(ctx, applicationKey, applicationCode)
}

// ApplicationFromContext returns the calling client application's code, if any.
func ApplicationFromContext(ctx context.Context) (string, bool) {
	code, ok := ctx.Value(applicationKey).(string)
	return code, ok && code != ""
}
