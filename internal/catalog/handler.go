package catalog

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rivoli-ai/gatekeeper/internal/platform/httpx"
)

// Handler exposes the catalog management surface.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/applications", h.listApplications)
	r.Post("/applications", h.createApplication)
	r.Get("/resource-types", h.listResourceTypes)
	r.Post("/resource-types", h.createResourceType)
	r.Get("/actions", h.listActions)
	r.Post("/actions", h.createAction)
	r.Get("/permissions", h.listPermissions)
	r.Post("/permissions", h.ensurePermission)
}

type createApplicationRequest struct {
	Code string `json:"code" validate:"required"`
	Name string `json:"name"`
}

type createResourceTypeRequest struct {
	Application       string `json:"application" validate:"required"`
	Code              string `json:"code" validate:"required"`
	Name              string `json:"name"`
	SupportsInstances bool   `json:"supports_instances"`
}

type createActionRequest struct {
	Code string `json:"code" validate:"required"`
	Name string `json:"name"`
}

type ensurePermissionRequest struct {
	Code string `json:"code" validate:"required"`
}

func (h *Handler) listApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.service.ListApplications(r.Context())
	if err != nil {
		h.fail(w, "list applications", err)
		return
	}
	type item struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	out := make([]item, 0, len(apps))
	for _, app := range apps {
		out = append(out, item{Code: app.Code, Name: app.Name})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"applications": out})
}

func (h *Handler) createApplication(w http.ResponseWriter, r *http.Request) {
	var req createApplicationRequest
	if !h.decode(w, r, &req) {
		return
	}
	app, err := h.service.CreateApplication(r.Context(), req.Code, req.Name)
	if err != nil {
		h.fail(w, "create application", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"code": app.Code, "name": app.Name})
}

func (h *Handler) listResourceTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.service.ListResourceTypes(r.Context(), r.URL.Query().Get("application"))
	if err != nil {
		h.fail(w, "list resource types", err)
		return
	}
	type item struct {
		Application       string `json:"application"`
		Code              string `json:"code"`
		Name              string `json:"name"`
		SupportsInstances bool   `json:"supports_instances"`
	}
	out := make([]item, 0, len(types))
	for _, rt := range types {
		out = append(out, item{Application: rt.ApplicationCode, Code: rt.Code, Name: rt.Name, SupportsInstances: rt.SupportsInstances})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"resource_types": out})
}

func (h *Handler) createResourceType(w http.ResponseWriter, r *http.Request) {
	var req createResourceTypeRequest
	if !h.decode(w, r, &req) {
		return
	}
	rt, err := h.service.CreateResourceType(r.Context(), req.Application, req.Code, req.Name, req.SupportsInstances)
	if err != nil {
		h.fail(w, "create resource type", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"application": rt.ApplicationCode, "code": rt.Code})
}

func (h *Handler) listActions(w http.ResponseWriter, r *http.Request) {
	actions, err := h.service.ListActions(r.Context())
	if err != nil {
		h.fail(w, "list actions", err)
		return
	}
	type item struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	out := make([]item, 0, len(actions))
	for _, a := range actions {
		out = append(out, item{Code: a.Code, Name: a.Name})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"actions": out})
}

func (h *Handler) createAction(w http.ResponseWriter, r *http.Request) {
	var req createActionRequest
	if !h.decode(w, r, &req) {
		return
	}
	action, err := h.service.CreateAction(r.Context(), req.Code, req.Name)
	if err != nil {
		h.fail(w, "create action", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"code": action.Code, "name": action.Name})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context(), r.URL.Query().Get("application"))
	if err != nil {
		h.fail(w, "list permissions", err)
		return
	}
	codes := make([]string, 0, len(perms))
	for _, p := range perms {
		codes = append(codes, p.Code.String())
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": codes})
}

func (h *Handler) ensurePermission(w http.ResponseWriter, r *http.Request) {
	var req ensurePermissionRequest
	if !h.decode(w, r, &req) {
		return
	}
	perm, err := h.service.EnsurePermission(r.Context(), req.Code)
	if err != nil {
		h.fail(w, "ensure permission", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"code": perm.Code.String()})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrInvalidPermissionCode):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
