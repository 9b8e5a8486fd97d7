package resources

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rivoli-ai/gatekeeper/internal/platform/httpx"
)

// Handler exposes resource instance management.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers resource instance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listInstances)
	r.Post("/", h.registerInstance)
	r.Put("/owner", h.setOwner)
}

type instanceResponse struct {
	Application  string  `json:"application"`
	ResourceType string  `json:"resource_type"`
	ExternalID   string  `json:"external_id"`
	Owner        *string `json:"owner,omitempty"`
}

func toInstanceResponse(inst Instance) instanceResponse {
	return instanceResponse{
		Application:  inst.ApplicationCode,
		ResourceType: inst.ResourceTypeCode,
		ExternalID:   inst.ExternalID,
		Owner:        inst.OwnerSubjectExtID,
	}
}

type registerInstanceRequest struct {
	Application  string `json:"application" validate:"required"`
	ResourceType string `json:"resource_type" validate:"required"`
	ExternalID   string `json:"external_id" validate:"required"`
	Owner        string `json:"owner"`
}

type setOwnerRequest struct {
	Application  string `json:"application" validate:"required"`
	ResourceType string `json:"resource_type" validate:"required"`
	ExternalID   string `json:"external_id" validate:"required"`
	Owner        string `json:"owner"`
}

func (h *Handler) listInstances(w http.ResponseWriter, r *http.Request) {
	instances, err := h.service.ListInstances(r.Context(), r.URL.Query().Get("application"), r.URL.Query().Get("resource_type"))
	if err != nil {
		h.fail(w, "list instances", err)
		return
	}
	out := make([]instanceResponse, 0, len(instances))
	for _, inst := range instances {
		out = append(out, toInstanceResponse(inst))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"instances": out})
}

func (h *Handler) registerInstance(w http.ResponseWriter, r *http.Request) {
	var req registerInstanceRequest
	if !h.decode(w, r, &req) {
		return
	}
	inst, err := h.service.RegisterInstance(r.Context(), req.Application, req.ResourceType, req.ExternalID, req.Owner)
	if err != nil {
		h.fail(w, "register instance", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toInstanceResponse(inst))
}

func (h *Handler) setOwner(w http.ResponseWriter, r *http.Request) {
	var req setOwnerRequest
	if !h.decode(w, r, &req) {
		return
	}
	inst, err := h.service.SetOwner(r.Context(), req.Application, req.ResourceType, req.ExternalID, req.Owner)
	if err != nil {
		h.fail(w, "set owner", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInstanceResponse(inst))
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
