package ws

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	chatservice "github.com/knightrooks/agent-hub/internal/service/chat"
)

// Handler is the push delivery channel: a WebSocket connection bound to one
// session, carrying user messages in and orchestrated replies out.
type Handler struct {
	chatSvc  *chatservice.Service
	upgrader websocket.Upgrader
}

// New creates the WebSocket handler.
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes registers the WebSocket chat route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/chat/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed for session=%s: %v", sessionID, err)
		return
	}
	defer conn.Close()

	log.Printf("[ws] connection opened for session=%s, agent=%s", sessionID, session.AgentID)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read error for session=%s: %v", sessionID, err)
			}
			return
		}

		if inbound.Type != "message" {
			h.send(conn, outgoingMessage{
				Type:      "error",
				SessionID: sessionID,
				Error:     "unsupported message type",
			})
			continue
		}

		reply, err := h.chatSvc.Handle(r.Context(), sessionID, session.AgentID, inbound.Content)
		if err != nil {
			h.send(conn, outgoingMessage{
				Type:      "error",
				SessionID: sessionID,
				Error:     err.Error(),
				Retryable: errors.Is(err, chatservice.ErrBusy) || errors.Is(err, chatservice.ErrGenerationFailed),
			})
			if errors.Is(err, chatservice.ErrSessionClosed) {
				return
			}
			continue
		}

		h.send(conn, outgoingMessage{
			Type:      "reply",
			SessionID: sessionID,
			Data:      reply,
		})
	}
}

func (h *Handler) send(conn *websocket.Conn, msg outgoingMessage) {
	msg.Timestamp = time.Now().UnixMilli()
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[ws] write failed for session=%s: %v", msg.SessionID, err)
	}
}
