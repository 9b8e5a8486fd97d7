package directory

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rivoli-ai/gatekeeper/internal/platform/httpx"
)

// Handler exposes subject and team management.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers directory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/subjects", h.listSubjects)
	r.Post("/subjects", h.createSubject)
	r.Get("/subjects/{subjectID}", h.getSubject)
	r.Put("/subjects/{subjectID}/active", h.setSubjectActive)
	r.Get("/teams", h.listTeams)
	r.Post("/teams", h.createTeam)
	r.Get("/teams/{teamCode}/members", h.listTeamMembers)
}

type subjectResponse struct {
	Provider    string `json:"provider"`
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name,omitempty"`
	IsActive    bool   `json:"is_active"`
}

func toSubjectResponse(s Subject) subjectResponse {
	return subjectResponse{Provider: s.Provider, ExternalID: s.ExternalID, DisplayName: s.DisplayName, IsActive: s.IsActive}
}

type createSubjectRequest struct {
	Provider    string `json:"provider" validate:"required"`
	ExternalID  string `json:"external_id" validate:"required"`
	DisplayName string `json:"display_name"`
}

type setActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type createTeamRequest struct {
	Code         string `json:"code" validate:"required"`
	Name         string `json:"name"`
	ParentTeamID *int64 `json:"parent_team_id"`
}

func (h *Handler) listSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.service.ListSubjects(r.Context())
	if err != nil {
		h.fail(w, "list subjects", err)
		return
	}
	out := make([]subjectResponse, 0, len(subjects))
	for _, s := range subjects {
		out = append(out, toSubjectResponse(s))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"subjects": out})
}

func (h *Handler) createSubject(w http.ResponseWriter, r *http.Request) {
	var req createSubjectRequest
	if !h.decode(w, r, &req) {
		return
	}
	subject, err := h.service.CreateSubject(r.Context(), req.Provider, req.ExternalID, req.DisplayName)
	if err != nil {
		h.fail(w, "create subject", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toSubjectResponse(subject))
}

func (h *Handler) getSubject(w http.ResponseWriter, r *http.Request) {
	subject, err := h.service.GetSubject(r.Context(), chi.URLParam(r, "subjectID"))
	if err != nil {
		h.fail(w, "get subject", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSubjectResponse(subject))
}

func (h *Handler) setSubjectActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if !h.decode(w, r, &req) {
		return
	}
	subject, err := h.service.SetSubjectActive(r.Context(), chi.URLParam(r, "subjectID"), *req.Active)
	if err != nil {
		h.fail(w, "set subject active", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSubjectResponse(subject))
}

func (h *Handler) listTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.service.ListTeams(r.Context())
	if err != nil {
		h.fail(w, "list teams", err)
		return
	}
	type item struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	out := make([]item, 0, len(teams))
	for _, t := range teams {
		out = append(out, item{Code: t.Code, Name: t.Name})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"teams": out})
}

func (h *Handler) createTeam(w http.ResponseWriter, r *http.Request) {
	var req createTeamRequest
	if !h.decode(w, r, &req) {
		return
	}
	team, err := h.service.CreateTeam(r.Context(), req.Code, req.Name, req.ParentTeamID)
	if err != nil {
		h.fail(w, "create team", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"code": team.Code, "name": team.Name})
}

func (h *Handler) listTeamMembers(w http.ResponseWriter, r *http.Request) {
	team, err := h.service.GetTeam(r.Context(), chi.URLParam(r, "teamCode"))
	if err != nil {
		h.fail(w, "get team", err)
		return
	}
	members, err := h.service.ListTeamMembers(r.Context(), team.ID)
	if err != nil {
		h.fail(w, "list team members", err)
		return
	}
	out := make([]subjectResponse, 0, len(members))
	for _, s := range members {
		out = append(out, toSubjectResponse(s))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"members": out})
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
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
