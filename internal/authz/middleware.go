package authz

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Middleware is the authorization gate: it translates per-route
// requirements into resolver calls and a boolean verdict. It holds no
// decision state of its own.
type Middleware struct {
	Checker Checker
	Logger  *slog.Logger
}

// RequirePermission ensures the authenticated subject holds the permission,
// unscoped.
func (m Middleware) RequirePermission(code string) func(http.Handler) http.Handler {
	return m.RequireScopedPermission(code, "")
}

// RequireScopedPermission ensures the authenticated subject holds the
// permission on the resource instance named by the resourceParam route
// value. The route value is preferred; the query string is the fallback;
// a missing value degrades to an unscoped check.
func (m Middleware) RequireScopedPermission(code, resourceParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subjectID, ok := SubjectFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			resourceID := ""
			if resourceParam != "" {
				resourceID = extractResourceID(r, resourceParam)
			}
			decision, err := m.Checker.CheckPermission(r.Context(), subjectID, code, resourceID)
			if err != nil {
				m.logError("require permission", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !decision.Allowed {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny ensures the authenticated subject holds at least one of the
// permissions, unscoped. An empty code list never matches, so a route
// registered without codes denies every request rather than skipping the
// gate.
func (m Middleware) RequireAny(codes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subjectID, ok := SubjectFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			if len(codes) == 0 {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			decision, err := m.Checker.CheckAnyPermission(r.Context(), subjectID, codes, "")
			if err != nil {
				m.logError("require any permission", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !decision.Allowed {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole ensures the authenticated subject holds the named role,
// matched case-insensitively against the unscoped role set.
func (m Middleware) RequireRole(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subjectID, ok := SubjectFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			roleCodes, err := m.Checker.GetRoles(r.Context(), subjectID, "")
			if err != nil {
				m.logError("require role", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			for _, code := range roleCodes {
				if strings.EqualFold(code, name) {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

func (m Middleware) logError(op string, err error) {
	if m.Logger != nil {
		m.Logger.Error(op, slog.Any("error", err))
	}
}

func extractResourceID(r *http.Request, param string) string {
	if value := chi.URLParam(r, param); value != "" {
		return value
	}
	return r.URL.Query().Get(param)
}
