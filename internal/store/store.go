// Package store persists chat sessions and their turns. Two implementations
// exist: an in-memory map for single-process deployments and a SQLite store
// that survives restarts.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/knightrooks/agent-hub/internal/model/chat"
)

var (
	// ErrNotFound is a normal outcome for Load; a hard error elsewhere.
	ErrNotFound = errors.New("session not found")
	// ErrAgentMismatch means a session id was reused with a different agent.
	ErrAgentMismatch = errors.New("session belongs to a different agent")
)

// Store is the session-store contract. CompareAndSetState is the primitive
// the orchestrator uses for its single-flight guarantee; implementations
// must make it atomic per session without taking a store-wide lock across
// the comparison.
type Store interface {
	// CreateOrGet returns the existing session for id, creating it Idle
	// when absent. Returns ErrAgentMismatch when the session exists under
	// a different agent.
	CreateOrGet(ctx context.Context, sessionID, agentID string) (chat.Session, error)

	// Load fetches a session; ErrNotFound when absent.
	Load(ctx context.Context, sessionID string) (chat.Session, error)

	// AppendTurn stores a turn, assigning its ID and timestamp, and
	// refreshes the session's LastActiveAt. When the retained turn count
	// would exceed the retention cap, the oldest turns are evicted first.
	AppendTurn(ctx context.Context, turn chat.Turn) (chat.Turn, error)

	// Turns returns the retained turns for a session, oldest first.
	Turns(ctx context.Context, sessionID string) ([]chat.Turn, error)

	// CompareAndSetState atomically transitions the session state.
	// Returns false when the current state did not match expected.
	CompareAndSetState(ctx context.Context, sessionID string, expected, next chat.SessionState) (bool, error)

	// List returns summaries of every retained session.
	List(ctx context.Context) ([]chat.Summary, error)

	// CloseSession marks the session Closed. Closed sessions reject new
	// generations and are removed by the next sweep.
	CloseSession(ctx context.Context, sessionID string) error

	// SweepExpired removes sessions idle for longer than idleTimeout,
	// plus any closed sessions, and reports how many were removed.
	// Sessions mid-generation are never swept.
	SweepExpired(ctx context.Context, idleTimeout time.Duration) (int, error)

	// Close releases any underlying resources.
	Close() error
}

// DefaultRetentionCap bounds per-session history when no cap is configured.
// It is deliberately larger than any persona's prompt window so the
// transcript endpoint can replay more than what is sent to the backend.
const DefaultRetentionCap = 200
