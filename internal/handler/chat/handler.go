package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatservice "github.com/knightrooks/agent-hub/internal/service/chat"
)

// Handler exposes the conversation orchestrator over HTTP.
type Handler struct {
	chatSvc *chatservice.Service
}

// New creates the chat handler.
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes registers session and chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Post("/chat", h.handleChat)
	r.Get("/sessions", h.handleListSessions)
	r.Get("/session/{sessionID}/transcript", h.handleTranscript)
	r.Delete("/session/{sessionID}", h.handleCloseSession)
}

// handleCreateSession provisions a session bound to a persona.
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AgentID string `json:"agentId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.AgentID == "" {
		respondError(w, http.StatusBadRequest, "agentId is required")
		return
	}

	session, err := h.chatSvc.CreateSession(r.Context(), payload.AgentID)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, session)
}

// handleChat runs one orchestrated turn and returns the reply.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"sessionId"`
		AgentID   string `json:"agentId"`
		Message   string `json:"message"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.chatSvc.Handle(r.Context(), payload.SessionID, payload.AgentID, payload.Message)
	if err != nil {
		if errors.Is(err, chatservice.ErrBusy) {
			// Retryable: the previous generation is still running.
			respondJSON(w, http.StatusConflict, map[string]any{
				"error":     "generation already in flight",
				"retryable": true,
			})
			return
		}
		respondError(w, statusForError(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, reply)
}

// handleListSessions lists retained sessions.
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.chatSvc.Sessions(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, summaries)
}

// handleTranscript replays the retained turns of a session.
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	turns, err := h.chatSvc.Transcript(r.Context(), sessionID)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, turns)
}

// handleCloseSession marks a session closed.
func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.chatSvc.CloseSession(r.Context(), sessionID); err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// statusForError maps orchestrator failures onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, chatservice.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, chatservice.ErrUnknownAgent):
		return http.StatusNotFound
	case errors.Is(err, chatservice.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatservice.ErrAgentMismatch):
		return http.StatusConflict
	case errors.Is(err, chatservice.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, chatservice.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, chatservice.ErrGenerationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
