package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/knightrooks/agent-hub/internal/config"
	"github.com/knightrooks/agent-hub/internal/handler"
	"github.com/knightrooks/agent-hub/internal/metrics"
	"github.com/knightrooks/agent-hub/internal/model/persona"
	"github.com/knightrooks/agent-hub/internal/service/backend"
	"github.com/knightrooks/agent-hub/internal/service/chat"
	"github.com/knightrooks/agent-hub/internal/service/dispatch"
	"github.com/knightrooks/agent-hub/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	registry, err := loadPersonas(cfg.Personas)
	if err != nil {
		log.Fatalf("failed to load personas: %v", err)
	}
	log.Printf("loaded %d personas", len(registry.List()))

	sessionStore, err := buildStore(cfg.Store)
	if err != nil {
		log.Fatalf("failed to open session store: %v", err)
	}
	defer sessionStore.Close()

	adapters := buildAdapters(ctx, cfg)
	if len(adapters) == 0 {
		log.Println("warning: no model backend configured - every generation will fail")
	}

	healthRegistry := backend.NewHealthRegistry()
	checker := backend.NewChecker(healthRegistry, adapters, cfg.Health.CheckInterval)
	go checker.Run(ctx)

	m := metrics.New()
	dispatcher := dispatch.New(registry, healthRegistry, adapters)
	chatService := chat.NewService(sessionStore, dispatcher, registry, m, cfg.Chat.MaxMessageChars)

	sweeper := store.NewSweeper(sessionStore, cfg.Store.SweepInterval, cfg.Store.IdleTimeout, m.Swept)
	go sweeper.Run(ctx)

	router := handler.NewRouter(registry, chatService, healthRegistry)

	startServer(ctx, cfg.Server, router)
}

// loadPersonas reads the persona file when configured, falling back to the
// built-in seed definitions.
func loadPersonas(cfg config.PersonaConfig) (persona.Registry, error) {
	if cfg.Path == "" {
		log.Println("PERSONAS_PATH not set, using seed personas")
		return persona.NewRegistry(persona.Seed()), nil
	}

	defs, err := persona.LoadFile(cfg.Path)
	if err != nil {
		return nil, err
	}
	return persona.NewRegistry(defs), nil
}

func buildStore(cfg config.StoreConfig) (store.Store, error) {
	if cfg.Driver == "sqlite" {
		log.Printf("using sqlite session store at %s", cfg.SQLitePath)
		return store.NewSQLiteStore(cfg.SQLitePath, cfg.RetentionCap)
	}
	return store.NewMemoryStore(cfg.RetentionCap), nil
}

// buildAdapters constructs every configured backend adapter. A missing or
// misconfigured backend is skipped, not fatal; the dispatcher falls back
// to whatever remains.
func buildAdapters(ctx context.Context, cfg *config.Config) []backend.Adapter {
	var adapters []backend.Adapter

	if cfg.Ollama.Enabled() {
		adapters = append(adapters, backend.NewOllama(cfg.Ollama.BaseURL, cfg.Ollama.Model))
		log.Printf("ollama backend registered (model %s)", cfg.Ollama.Model)
	} else {
		log.Println("OLLAMA_MODEL not set, skipping local backend")
	}

	if cfg.Ark.Enabled() {
		chatModel, err := cfg.Ark.NewChatModel(ctx)
		if err != nil {
			log.Printf("warning: failed to initialize ark backend: %v", err)
		} else {
			defaults := backend.Params{Temperature: cfg.Ark.Temperature, MaxTokens: cfg.Ark.MaxTokens}
			adapters = append(adapters, backend.NewArk(chatModel, cfg.Ark.BaseURL, defaults))
			log.Printf("ark backend registered (model %s)", cfg.Ark.Model)
		}
	} else {
		log.Println("ark credentials not configured, skipping remote backend")
	}

	return adapters
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("agent hub listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
