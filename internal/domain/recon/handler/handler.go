// Package handler exposes the reconciliation HTTP endpoints.
package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/obrastack/conciliador/internal/domain/common"
	"github.com/obrastack/conciliador/internal/domain/recon/engine"
	"github.com/obrastack/conciliador/internal/domain/recon/repository"
	"github.com/obrastack/conciliador/internal/domain/recon/service"
	"github.com/obrastack/conciliador/pkg/middleware"
)

// ReconHandler serves the reconciliation endpoints.
type ReconHandler struct {
	svc    *service.ReconService
	logger *slog.Logger
}

// NewReconHandler creates the handler.
func NewReconHandler(svc *service.ReconService, logger *slog.Logger) *ReconHandler {
	return &ReconHandler{svc: svc, logger: logger}
}

// Routes mounts the reconciliation endpoints on r.
func (h *ReconHandler) Routes(r chi.Router) {
	r.Get("/transactions/{txID}/suggestions", h.suggestions)
	r.Post("/transactions/{txID}/match", h.match)
	r.Post("/transactions/{txID}/unlink", h.unlink)
	r.Post("/transactions/{txID}/ignore", h.ignore)
	r.Post("/reconciliation/rerun", h.rerun)
	r.Get("/entities/search", h.searchEntities)
}

func txIDFromURL(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "txID"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid transaction id", common.ErrBadRequest)
	}
	return id, nil
}

func (h *ReconHandler) suggestions(w http.ResponseWriter, r *http.Request) {
	txID, err := txIDFromURL(r)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	suggestions, err := h.svc.Suggestions(r.Context(), middleware.TenantFromContext(r.Context()), txID)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	if suggestions == nil {
		suggestions = []engine.Suggestion{}
	}
	common.WriteJSON(w, http.StatusOK, suggestions)
}

type matchRequest struct {
	EntityType string    `json:"entity_type"`
	EntityID   uuid.UUID `json:"entity_id"`
	EntityName string    `json:"entity_name"`
}

func (h *ReconHandler) match(w http.ResponseWriter, r *http.Request) {
	txID, err := txIDFromURL(r)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, h.logger, fmt.Errorf("%w: invalid body", common.ErrBadRequest))
		return
	}

	err = h.svc.Match(r.Context(), middleware.TenantFromContext(r.Context()), txID,
		repository.EntityType(req.EntityType), req.EntityID, req.EntityName)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, http.StatusNoContent, nil)
}

func (h *ReconHandler) unlink(w http.ResponseWriter, r *http.Request) {
	txID, err := txIDFromURL(r)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	if err := h.svc.Unlink(r.Context(), middleware.TenantFromContext(r.Context()), txID); err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, http.StatusNoContent, nil)
}

func (h *ReconHandler) ignore(w http.ResponseWriter, r *http.Request) {
	txID, err := txIDFromURL(r)
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	if err := h.svc.Ignore(r.Context(), middleware.TenantFromContext(r.Context()), txID); err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, http.StatusNoContent, nil)
}

type rerunResponse struct {
	Matched int `json:"matched"`
}

func (h *ReconHandler) rerun(w http.ResponseWriter, r *http.Request) {
	matched, err := h.svc.RerunAutoReconcile(r.Context(), middleware.TenantFromContext(r.Context()))
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, rerunResponse{Matched: matched})
}

type entityResponse struct {
	Type     string    `json:"type"`
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Document string    `json:"document,omitempty"`
}

func (h *ReconHandler) searchEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := h.svc.SearchEntities(r.Context(), middleware.TenantFromContext(r.Context()), r.URL.Query().Get("q"))
	if err != nil {
		common.WriteError(w, h.logger, err)
		return
	}

	out := make([]entityResponse, 0, len(entities))
	for _, e := range entities {
		out = append(out, entityResponse{
			Type:     string(e.Type),
			ID:       e.ID,
			Name:     e.Name,
			Document: e.Document,
		})
	}
	common.WriteJSON(w, http.StatusOK, out)
}
