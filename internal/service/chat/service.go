// Package chat contains the conversation orchestrator: the single entry
// point for producing an agent reply to a user message.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/knightrooks/agent-hub/internal/metrics"
	"github.com/knightrooks/agent-hub/internal/model/chat"
	"github.com/knightrooks/agent-hub/internal/model/persona"
	"github.com/knightrooks/agent-hub/internal/service/backend"
	"github.com/knightrooks/agent-hub/internal/service/dispatch"
	"github.com/knightrooks/agent-hub/internal/store"
)

var (
	// ErrInvalidInput rejects empty or over-long messages before any
	// session mutation happens.
	ErrInvalidInput = errors.New("invalid message")
	// ErrBusy means a generation is already in flight for the session.
	// Retryable; the caller waits instead of queuing.
	ErrBusy = errors.New("generation already in flight")
	// ErrSessionClosed rejects messages to an explicitly closed session.
	ErrSessionClosed = errors.New("session is closed")
	// ErrGenerationFailed wraps any backend-level failure. The user turn
	// stays persisted and the session is back to idle when this surfaces.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrAgentMismatch and ErrUnknownAgent are re-exported so handlers
	// only depend on this package for failure discrimination.
	ErrAgentMismatch = store.ErrAgentMismatch
	ErrUnknownAgent  = dispatch.ErrUnknownAgent
	ErrNotFound      = store.ErrNotFound
)

// DefaultMaxMessageChars bounds inbound message length (and with it the
// cost of a single backend call).
const DefaultMaxMessageChars = 8000

// Reply is a successful generation result.
type Reply struct {
	SessionID   string    `json:"sessionId"`
	AgentID     string    `json:"agentId"`
	Content     string    `json:"content"`
	BackendUsed string    `json:"backendUsed"`
	Turn        chat.Turn `json:"turn"`
}

// Service orchestrates sessions, dispatch and generation.
type Service struct {
	store           store.Store
	dispatcher      *dispatch.Dispatcher
	personas        persona.Registry
	metrics         *metrics.Metrics
	maxMessageChars int
}

// NewService wires the orchestrator. metrics may be nil (tests).
func NewService(st store.Store, dispatcher *dispatch.Dispatcher, personas persona.Registry, m *metrics.Metrics, maxMessageChars int) *Service {
	if maxMessageChars <= 0 {
		maxMessageChars = DefaultMaxMessageChars
	}
	return &Service{
		store:           st,
		dispatcher:      dispatcher,
		personas:        personas,
		metrics:         m,
		maxMessageChars: maxMessageChars,
	}
}

// CreateSession provisions a new session bound to a persona.
func (s *Service) CreateSession(ctx context.Context, agentID string) (chat.Session, error) {
	if _, ok := s.personas.FindByID(agentID); !ok {
		return chat.Session{}, ErrUnknownAgent
	}
	return s.store.CreateOrGet(ctx, uuid.NewString(), agentID)
}

// Handle produces an agent reply for userMessage within the session,
// enforcing the single-flight guarantee: at most one generation proceeds
// per session, overlapping calls fail fast with ErrBusy.
func (s *Service) Handle(ctx context.Context, sessionID, agentID, userMessage string) (Reply, error) {
	message := strings.TrimSpace(userMessage)
	if sessionID == "" || message == "" || utf8.RuneCountInString(message) > s.maxMessageChars {
		return Reply{}, ErrInvalidInput
	}

	// Persona lookup comes before session creation so an unknown agent
	// never leaves a session behind.
	def, ok := s.personas.FindByID(agentID)
	if !ok {
		return Reply{}, ErrUnknownAgent
	}

	session, err := s.store.CreateOrGet(ctx, sessionID, agentID)
	if err != nil {
		return Reply{}, err
	}
	if session.State == chat.StateClosed {
		return Reply{}, ErrSessionClosed
	}

	// The single-flight gate. Everything between here and the deferred
	// release runs with this session exclusively in Generating.
	won, err := s.store.CompareAndSetState(ctx, sessionID, chat.StateIdle, chat.StateGenerating)
	if err != nil {
		return Reply{}, err
	}
	if !won {
		if current, loadErr := s.store.Load(ctx, sessionID); loadErr == nil && current.State == chat.StateClosed {
			return Reply{}, ErrSessionClosed
		}
		s.metrics.BusyRejected()
		return Reply{}, ErrBusy
	}

	// The session must never stay Generating after Handle returns, even
	// when the request context is already cancelled.
	defer func() {
		releaseCtx := context.WithoutCancel(ctx)
		if _, err := s.store.CompareAndSetState(releaseCtx, sessionID, chat.StateGenerating, chat.StateIdle); err != nil {
			log.Printf("[chat] failed to release session %s: %v", sessionID, err)
		}
	}()

	// User turn is persisted before generation; a failed generation must
	// not lose the user's message.
	if _, err := s.store.AppendTurn(ctx, chat.Turn{
		SessionID: sessionID,
		Role:      chat.RoleUser,
		Content:   message,
	}); err != nil {
		return Reply{}, err
	}

	prompt, err := s.buildPrompt(ctx, sessionID, def, message)
	if err != nil {
		return Reply{}, err
	}
	params := backend.Params{Temperature: def.Temperature, MaxTokens: def.MaxTokens}

	content, backendID, err := s.generate(ctx, def, prompt, params)
	if err != nil {
		return Reply{}, err
	}

	agentTurn, err := s.store.AppendTurn(ctx, chat.Turn{
		SessionID:   sessionID,
		Role:        chat.RoleAgent,
		Content:     content,
		BackendUsed: backendID,
	})
	if err != nil {
		return Reply{}, err
	}

	return Reply{
		SessionID:   sessionID,
		AgentID:     agentID,
		Content:     content,
		BackendUsed: backendID,
		Turn:        agentTurn,
	}, nil
}

// buildPrompt assembles system prompt plus the bounded context window. The
// just-appended user turn is excluded from history; it rides separately as
// the new message.
func (s *Service) buildPrompt(ctx context.Context, sessionID string, def persona.Definition, message string) (backend.Prompt, error) {
	turns, err := s.store.Turns(ctx, sessionID)
	if err != nil {
		return backend.Prompt{}, err
	}
	if n := len(turns); n > 0 && turns[n-1].Role == chat.RoleUser && turns[n-1].Content == message {
		turns = turns[:n-1]
	}
	if window := def.ContextWindow(); len(turns) > window {
		turns = turns[len(turns)-window:]
	}
	return backend.Prompt{
		System:      def.SystemPrompt,
		History:     turns,
		UserMessage: message,
	}, nil
}

// generate runs one attempt against the dispatched backend and at most one
// retry against the next fallback. The same backend is never retried; a
// timeout there would only compound latency.
func (s *Service) generate(ctx context.Context, def persona.Definition, prompt backend.Prompt, params backend.Params) (string, string, error) {
	adapter, err := s.dispatcher.Select(def.ID)
	if err != nil {
		s.metrics.NoBackend()
		return "", "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	content, genErr := s.generateOnce(ctx, adapter, def, prompt, params)
	if genErr == nil {
		return content, adapter.ID(), nil
	}
	log.Printf("[chat] backend %s failed for agent %s: %v", adapter.ID(), def.ID, genErr)

	fallback, selErr := s.dispatcher.Select(def.ID, adapter.ID())
	if selErr != nil {
		return "", "", fmt.Errorf("%w: %w", ErrGenerationFailed, genErr)
	}

	content, retryErr := s.generateOnce(ctx, fallback, def, prompt, params)
	if retryErr != nil {
		log.Printf("[chat] fallback backend %s failed for agent %s: %v", fallback.ID(), def.ID, retryErr)
		return "", "", fmt.Errorf("%w: %w", ErrGenerationFailed, retryErr)
	}
	return content, fallback.ID(), nil
}

func (s *Service) generateOnce(ctx context.Context, adapter backend.Adapter, def persona.Definition, prompt backend.Prompt, params backend.Params) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, def.GenerationTimeout())
	defer cancel()

	content, err := adapter.Generate(genCtx, prompt, params)
	if err != nil {
		s.metrics.GenerationResult(adapter.ID(), outcomeOf(err))
		return "", err
	}
	s.metrics.GenerationResult(adapter.ID(), "success")
	return content, nil
}

func outcomeOf(err error) string {
	var backendErr *backend.Error
	if errors.As(err, &backendErr) {
		return string(backendErr.Kind)
	}
	return "error"
}

// Transcript returns the retained turns for a session, oldest first.
func (s *Service) Transcript(ctx context.Context, sessionID string) ([]chat.Turn, error) {
	return s.store.Turns(ctx, sessionID)
}

// Sessions lists all retained sessions.
func (s *Service) Sessions(ctx context.Context) ([]chat.Summary, error) {
	return s.store.List(ctx)
}

// CloseSession marks a session closed; the next sweep removes it.
func (s *Service) CloseSession(ctx context.Context, sessionID string) error {
	return s.store.CloseSession(ctx, sessionID)
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(ctx context.Context, sessionID string) (chat.Session, error) {
	return s.store.Load(ctx, sessionID)
}
