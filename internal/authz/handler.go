package authz

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rivoli-ai/gatekeeper/internal/catalog"
	"github.com/rivoli-ai/gatekeeper/internal/platform/httpx"
)

// Handler exposes the check and assignment surface.
type Handler struct {
	logger   *slog.Logger
	checker  Checker
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, checker Checker, service *Service) *Handler {
	return &Handler{logger: logger, checker: checker, service: service, validate: validator.New()}
}

// MountRoutes registers check and assignment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/check", h.check)
	r.Post("/check-any", h.checkAny)
	r.Get("/subjects/{subjectID}/permissions", h.subjectPermissions)
	r.Get("/subjects/{subjectID}/roles", h.subjectRoles)
	r.Post("/subjects/{subjectID}/roles", h.assignSubjectRole)
	r.Delete("/subjects/{subjectID}/roles", h.revokeSubjectRole)
	r.Post("/subjects/{subjectID}/grants", h.grantInstancePermission)
	r.Delete("/subjects/{subjectID}/grants", h.revokeInstancePermission)
	r.Post("/teams/{teamCode}/roles", h.assignTeamRole)
	r.Delete("/teams/{teamCode}/roles", h.revokeTeamRole)
	r.Post("/teams/{teamCode}/members", h.addTeamMember)
	r.Delete("/teams/{teamCode}/members/{subjectID}", h.removeTeamMember)
}

type checkRequest struct {
	SubjectID  string `json:"subject_id" validate:"required"`
	Permission string `json:"permission" validate:"required"`
	ResourceID string `json:"resource_id"`
}

type checkAnyRequest struct {
	SubjectID   string   `json:"subject_id" validate:"required"`
	Permissions []string `json:"permissions" validate:"required,min=1"`
	ResourceID  string   `json:"resource_id"`
}

type assignRoleRequest struct {
	Role         string     `json:"role" validate:"required"`
	Application  string     `json:"application"`
	ResourceType string     `json:"resource_type"`
	ResourceID   string     `json:"resource_id"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

type grantRequest struct {
	Application  string     `json:"application"`
	ResourceType string     `json:"resource_type" validate:"required"`
	ResourceID   string     `json:"resource_id" validate:"required"`
	Action       string     `json:"action" validate:"required"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

type addMemberRequest struct {
	SubjectID string `json:"subject_id" validate:"required"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !h.decode(w, r, &req) {
		return
	}
	decision, err := h.checker.CheckPermission(r.Context(), req.SubjectID, req.Permission, req.ResourceID)
	if err != nil {
		h.fail(w, "check permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, decision)
}

func (h *Handler) checkAny(w http.ResponseWriter, r *http.Request) {
	var req checkAnyRequest
	if !h.decode(w, r, &req) {
		return
	}
	decision, err := h.checker.CheckAnyPermission(r.Context(), req.SubjectID, req.Permissions, req.ResourceID)
	if err != nil {
		h.fail(w, "check any permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, decision)
}

func (h *Handler) subjectPermissions(w http.ResponseWriter, r *http.Request) {
	permissions, err := h.checker.GetPermissions(r.Context(),
		chi.URLParam(r, "subjectID"), r.URL.Query().Get("application"))
	if err != nil {
		h.fail(w, "get permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": permissions})
}

func (h *Handler) subjectRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.checker.GetRoles(r.Context(),
		chi.URLParam(r, "subjectID"), r.URL.Query().Get("application"))
	if err != nil {
		h.fail(w, "get roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *Handler) assignSubjectRole(w http.ResponseWriter, r *http.Request) {
	var req assignRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	outcome, err := h.service.AssignSubjectRole(r.Context(), chi.URLParam(r, "subjectID"), req.assignParams())
	h.respondOutcome(w, "assign subject role", outcome, err)
}

func (h *Handler) revokeSubjectRole(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.service.RevokeSubjectRole(r.Context(), chi.URLParam(r, "subjectID"), assignParamsFromQuery(r))
	h.respondOutcome(w, "revoke subject role", outcome, err)
}

func (h *Handler) assignTeamRole(w http.ResponseWriter, r *http.Request) {
	var req assignRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	outcome, err := h.service.AssignTeamRole(r.Context(), chi.URLParam(r, "teamCode"), req.assignParams())
	h.respondOutcome(w, "assign team role", outcome, err)
}

func (h *Handler) revokeTeamRole(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.service.RevokeTeamRole(r.Context(), chi.URLParam(r, "teamCode"), assignParamsFromQuery(r))
	h.respondOutcome(w, "revoke team role", outcome, err)
}

func (h *Handler) grantInstancePermission(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if !h.decode(w, r, &req) {
		return
	}
	outcome, err := h.service.GrantInstancePermission(r.Context(), chi.URLParam(r, "subjectID"), GrantParams{
		Application:  req.Application,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		Action:       req.Action,
		ExpiresAt:    req.ExpiresAt,
	})
	h.respondOutcome(w, "grant instance permission", outcome, err)
}

func (h *Handler) revokeInstancePermission(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	outcome, err := h.service.RevokeInstancePermission(r.Context(), chi.URLParam(r, "subjectID"), GrantParams{
		Application:  q.Get("application"),
		ResourceType: q.Get("resource_type"),
		ResourceID:   q.Get("resource_id"),
		Action:       q.Get("action"),
	})
	h.respondOutcome(w, "revoke instance permission", outcome, err)
}

func (h *Handler) addTeamMember(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if !h.decode(w, r, &req) {
		return
	}
	outcome, err := h.service.AddTeamMember(r.Context(), chi.URLParam(r, "teamCode"), req.SubjectID)
	h.respondOutcome(w, "add team member", outcome, err)
}

func (h *Handler) removeTeamMember(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.service.RemoveTeamMember(r.Context(),
		chi.URLParam(r, "teamCode"), chi.URLParam(r, "subjectID"))
	h.respondOutcome(w, "remove team member", outcome, err)
}

func (req assignRoleRequest) assignParams() AssignRoleParams {
	params := AssignRoleParams{
		Role:        req.Role,
		Application: req.Application,
		ExpiresAt:   req.ExpiresAt,
	}
	if req.ResourceType != "" || req.ResourceID != "" {
		params.Instance = &InstanceParams{ResourceType: req.ResourceType, ExternalID: req.ResourceID}
	}
	return params
}

func assignParamsFromQuery(r *http.Request) AssignRoleParams {
	q := r.URL.Query()
	params := AssignRoleParams{
		Role:        q.Get("role"),
		Application: q.Get("application"),
	}
	if q.Get("resource_type") != "" || q.Get("resource_id") != "" {
		params.Instance = &InstanceParams{ResourceType: q.Get("resource_type"), ExternalID: q.Get("resource_id")}
	}
	return params
}

// respondOutcome maps mutation outcomes onto HTTP statuses.
func (h *Handler) respondOutcome(w http.ResponseWriter, op string, outcome Outcome, err error) {
	if err != nil {
		h.fail(w, op, err)
		return
	}
	switch outcome.Kind {
	case OutcomeOK:
		httpx.JSON(w, http.StatusOK, outcome)
	case OutcomeNotFound:
		httpx.Problem(w, http.StatusNotFound, "Not Found", outcome.Detail)
	case OutcomeConflict:
		httpx.Problem(w, http.StatusConflict, "Conflict", outcome.Detail)
	case OutcomeInvalid:
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", outcome.Detail)
	default:
		h.logger.Error(op, slog.String("outcome", string(outcome.Kind)))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
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
	case errors.Is(err, catalog.ErrInvalidPermissionCode):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
