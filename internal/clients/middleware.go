package clients

import (
	"log/slog"
	"net/http"

	"github.com/rivoli-ai/gatekeeper/internal/authz"
	"github.com/rivoli-ai/gatekeeper/internal/platform/httpx"
)

// Request headers consumed by the authentication middleware.
const (
	HeaderAPIKey  = "X-API-Key"
	HeaderSubject = "X-Subject-Id"
)

// Middleware authenticates calling applications by API key and attaches
// the caller's application code and the acting subject to the request
// context.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Authenticate rejects requests without a valid API key. The X-Subject-Id
// header, when present, names the subject on whose behalf the caller acts.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get(HeaderAPIKey)
		if apiKey == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing API key")
			return
		}
		app, err := m.Service.Authenticate(r.Context(), apiKey)
		if err != nil {
			m.logWarn(r, err)
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid API key")
			return
		}
		ctx := authz.ContextWithApplication(r.Context(), app.ApplicationCode)
		if subjectID := r.Header.Get(HeaderSubject); subjectID != "" {
			ctx = authz.ContextWithSubject(ctx, subjectID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) logWarn(r *http.Request, err error) {
	if m.Logger != nil {
		m.Logger.Warn("client authentication failed",
			slog.String("path", r.URL.Path), slog.Any("error", err))
	}
}
