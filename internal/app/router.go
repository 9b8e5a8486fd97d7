package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/rivoli-ai/gatekeeper/internal/authz"
	"github.com/rivoli-ai/gatekeeper/internal/catalog"
	"github.com/rivoli-ai/gatekeeper/internal/clients"
	"github.com/rivoli-ai/gatekeeper/internal/directory"
	"github.com/rivoli-ai/gatekeeper/internal/observability"
	"github.com/rivoli-ai/gatekeeper/internal/resources"
	"github.com/rivoli-ai/gatekeeper/internal/roles"
	"github.com/rivoli-ai/gatekeeper/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	AuthzHandler     *authz.Handler
	CatalogHandler   *catalog.Handler
	RolesHandler     *roles.Handler
	DirectoryHandler *directory.Handler
	ResourceHandler  *resources.Handler
	ClientsHandler   *clients.Handler
	JobHandler       *jobs.Handler

	ClientAuth clients.Middleware
	Gate       authz.Middleware
	Metrics    *observability.Metrics
}

// NewRouter constructs the chi.Router with Gatekeeper defaults. Everything
// under /v1 requires an authenticated client application; the management
// surfaces are additionally gated on the service's own permission codes.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(params.ClientAuth.Authenticate)

		r.Route("/authz", func(r chi.Router) {
			params.AuthzHandler.MountRoutes(r)
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Use(params.Gate.RequirePermission("gatekeeper:catalog:manage"))
			params.CatalogHandler.MountRoutes(r)
		})

		r.Route("/roles", func(r chi.Router) {
			r.Use(params.Gate.RequirePermission("gatekeeper:role:manage"))
			params.RolesHandler.MountRoutes(r)
		})

		r.Route("/directory", func(r chi.Router) {
			r.Use(params.Gate.RequirePermission("gatekeeper:directory:manage"))
			params.DirectoryHandler.MountRoutes(r)
		})

		r.Route("/resources", func(r chi.Router) {
			r.Use(params.Gate.RequirePermission("gatekeeper:resource:manage"))
			params.ResourceHandler.MountRoutes(r)
		})

		r.Route("/clients", func(r chi.Router) {
			r.Use(params.Gate.RequirePermission("gatekeeper:client:manage"))
			params.ClientsHandler.MountRoutes(r)
		})

		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	return r
}
