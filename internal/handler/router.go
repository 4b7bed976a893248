package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/knightrooks/agent-hub/internal/handler/chat"
	"github.com/knightrooks/agent-hub/internal/handler/persona"
	"github.com/knightrooks/agent-hub/internal/handler/stream"
	"github.com/knightrooks/agent-hub/internal/handler/ws"
	middlewarePkg "github.com/knightrooks/agent-hub/internal/middleware"
	personaModel "github.com/knightrooks/agent-hub/internal/model/persona"
	"github.com/knightrooks/agent-hub/internal/service/backend"
	chatService "github.com/knightrooks/agent-hub/internal/service/chat"
	"github.com/knightrooks/agent-hub/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(personas personaModel.Registry, chatSvc *chatService.Service, health *backend.HealthRegistry) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	personaHandler := persona.New(personas)
	chatHandler := chat.New(chatSvc)
	streamHandler := stream.New(chatSvc)
	wsHandler := ws.New(chatSvc)

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)

		api.Get("/stream/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			userMessage := r.URL.Query().Get("message")

			if userMessage == "" {
				utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}

			if err := streamHandler.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
				log.Printf("[stream] error handling request: %v", err)
			}
		})

		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			summaries, err := chatSvc.Sessions(r.Context())
			if err != nil {
				utils.RespondError(w, http.StatusInternalServerError, err.Error())
				return
			}
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"status":         "ok",
				"backends":       health.Snapshot(),
				"activeSessions": len(summaries),
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
