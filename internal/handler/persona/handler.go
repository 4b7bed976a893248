package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/knightrooks/agent-hub/internal/model/persona"
	"github.com/knightrooks/agent-hub/pkg/utils"
)

// Handler serves the persona catalogue.
type Handler struct {
	personas persona.Registry
}

// New creates a persona handler.
func New(personas persona.Registry) *Handler {
	return &Handler{
		personas: personas,
	}
}

// RegisterRoutes registers persona routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleListPersonas)
	r.Get("/personas/{agentID}", h.handleGetPersona)
}

// handleListPersonas lists every configured persona.
func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.personas.List())
}

// handleGetPersona returns one persona by id.
func (h *Handler) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	def, ok := h.personas.FindByID(agentID)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "persona not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, def)
}
