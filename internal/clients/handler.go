package clients

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rivoli-ai/gatekeeper/internal/platform/httpx"
)

// Handler exposes the client app management surface.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers client app routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.issue)
	r.Post("/{keyID}/deactivate", h.deactivate)
	r.Post("/{keyID}/activate", h.activate)
}

type issueRequest struct {
	Application string `json:"application" validate:"required"`
	Name        string `json:"name" validate:"required"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	apps, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, "list client apps", err)
		return
	}
	type item struct {
		Application string `json:"application"`
		Name        string `json:"name"`
		KeyID       string `json:"key_id"`
		IsActive    bool   `json:"is_active"`
	}
	out := make([]item, 0, len(apps))
	for _, app := range apps {
		out = append(out, item{Application: app.ApplicationCode, Name: app.Name, KeyID: app.KeyID, IsActive: app.IsActive})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"client_apps": out})
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	app, apiKey, err := h.service.Issue(r.Context(), req.Application, req.Name)
	if err != nil {
		h.fail(w, "issue client key", err)
		return
	}
	// The plaintext key is shown exactly once.
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"application": app.ApplicationCode,
		"key_id":      app.KeyID,
		"api_key":     apiKey,
	})
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	if err := h.service.SetActive(r.Context(), chi.URLParam(r, "keyID"), active); err != nil {
		h.fail(w, "set client active", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"is_active": active})
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
