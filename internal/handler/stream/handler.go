package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	chatservice "github.com/knightrooks/agent-hub/internal/service/chat"
	"github.com/knightrooks/agent-hub/pkg/utils"
)

// Handler delivers orchestrated replies via Server-Sent Events.
type Handler struct {
	chatSvc *chatservice.Service
}

// New creates a stream handler.
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// StreamResponse is one SSE chunk.
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Backend   string `json:"backend,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HandleStreamRequest runs one orchestrated turn for the session and emits
// start / message / end events. Failures are reported as an error event on
// the open stream rather than an HTTP status.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	session, err := h.chatSvc.GetSession(ctx, sessionID)
	if err != nil {
		h.sendError(w, flusher, sessionID, "session not found", false)
		return err
	}

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "start",
		SessionID: sessionID,
	})

	reply, err := h.chatSvc.Handle(ctx, sessionID, session.AgentID, userMessage)
	if err != nil {
		retryable := errors.Is(err, chatservice.ErrBusy) || errors.Is(err, chatservice.ErrGenerationFailed)
		h.sendError(w, flusher, sessionID, err.Error(), retryable)
		return err
	}

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "message",
		SessionID: sessionID,
		Content:   reply.Content,
		Backend:   reply.BackendUsed,
	})

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "end",
		SessionID: sessionID,
		Finished:  true,
	})

	log.Printf("[stream] completed response for session=%s, agent=%s, backend=%s", sessionID, session.AgentID, reply.BackendUsed)
	return nil
}

func (h *Handler) sendError(w http.ResponseWriter, flusher http.Flusher, sessionID, message string, retryable bool) {
	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "error",
		SessionID: sessionID,
		Error:     message,
		Retryable: retryable,
	})
}
