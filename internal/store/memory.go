package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/knightrooks/agent-hub/internal/model/chat"
)

// MemoryStore keeps sessions in process memory. The top-level mutex only
// guards the map itself; per-session state lives behind each entry's own
// lock so sessions never contend with each other.
type MemoryStore struct {
	mu           sync.RWMutex
	entries      map[string]*memoryEntry
	retentionCap int
	now          func() time.Time
}

type memoryEntry struct {
	mu      sync.Mutex
	session chat.Session
	turns   []chat.Turn
}

// NewMemoryStore builds an empty MemoryStore with the given retention cap.
func NewMemoryStore(retentionCap int) *MemoryStore {
	if retentionCap <= 0 {
		retentionCap = DefaultRetentionCap
	}
	return &MemoryStore{
		entries:      make(map[string]*memoryEntry),
		retentionCap: retentionCap,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) lookup(sessionID string) (*memoryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[sessionID]
	return entry, ok
}

// CreateOrGet returns the session for sessionID, creating it when absent.
func (s *MemoryStore) CreateOrGet(_ context.Context, sessionID, agentID string) (chat.Session, error) {
	s.mu.Lock()
	entry, ok := s.entries[sessionID]
	if !ok {
		now := s.now()
		entry = &memoryEntry{
			session: chat.Session{
				ID:           sessionID,
				AgentID:      agentID,
				State:        chat.StateIdle,
				CreatedAt:    now,
				LastActiveAt: now,
			},
			turns: make([]chat.Turn, 0, 16),
		}
		s.entries[sessionID] = entry
	}
	s.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.session.AgentID != agentID {
		return chat.Session{}, ErrAgentMismatch
	}
	return entry.session, nil
}

// Load fetches a session snapshot.
func (s *MemoryStore) Load(_ context.Context, sessionID string) (chat.Session, error) {
	entry, ok := s.lookup(sessionID)
	if !ok {
		return chat.Session{}, ErrNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session, nil
}

// AppendTurn appends and evicts oldest turns beyond the retention cap.
func (s *MemoryStore) AppendTurn(_ context.Context, turn chat.Turn) (chat.Turn, error) {
	entry, ok := s.lookup(turn.SessionID)
	if !ok {
		return chat.Turn{}, ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	turn.ID = uuid.NewString()
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = s.now()
	}

	entry.turns = append(entry.turns, turn)
	if excess := len(entry.turns) - s.retentionCap; excess > 0 {
		entry.turns = append(entry.turns[:0:0], entry.turns[excess:]...)
	}
	entry.session.LastActiveAt = s.now()
	return turn, nil
}

// Turns returns a copy of the retained turns, oldest first.
func (s *MemoryStore) Turns(_ context.Context, sessionID string) ([]chat.Turn, error) {
	entry, ok := s.lookup(sessionID)
	if !ok {
		return nil, ErrNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	copied := make([]chat.Turn, len(entry.turns))
	copy(copied, entry.turns)
	return copied, nil
}

// CompareAndSetState transitions the session state atomically.
func (s *MemoryStore) CompareAndSetState(_ context.Context, sessionID string, expected, next chat.SessionState) (bool, error) {
	entry, ok := s.lookup(sessionID)
	if !ok {
		return false, ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.session.State != expected {
		return false, nil
	}
	entry.session.State = next
	entry.session.LastActiveAt = s.now()
	return true, nil
}

// List summarizes all retained sessions.
func (s *MemoryStore) List(_ context.Context) ([]chat.Summary, error) {
	s.mu.RLock()
	snapshot := make([]*memoryEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		snapshot = append(snapshot, entry)
	}
	s.mu.RUnlock()

	summaries := make([]chat.Summary, 0, len(snapshot))
	for _, entry := range snapshot {
		entry.mu.Lock()
		summaries = append(summaries, chat.Summary{
			ID:           entry.session.ID,
			AgentID:      entry.session.AgentID,
			State:        entry.session.State,
			TurnCount:    len(entry.turns),
			CreatedAt:    entry.session.CreatedAt,
			LastActiveAt: entry.session.LastActiveAt,
		})
		entry.mu.Unlock()
	}
	return summaries, nil
}

// CloseSession marks a session Closed.
func (s *MemoryStore) CloseSession(_ context.Context, sessionID string) error {
	entry, ok := s.lookup(sessionID)
	if !ok {
		return ErrNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.session.State = chat.StateClosed
	entry.session.LastActiveAt = s.now()
	return nil
}

// SweepExpired removes idle-expired and closed sessions. Each entry is
// inspected under its own lock; live sessions are never blocked for longer
// than a single entry evaluation.
func (s *MemoryStore) SweepExpired(_ context.Context, idleTimeout time.Duration) (int, error) {
	cutoff := s.now().Add(-idleTimeout)

	s.mu.RLock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	removed := 0
	for _, id := range ids {
		entry, ok := s.lookup(id)
		if !ok {
			continue
		}
		entry.mu.Lock()
		expired := entry.session.State != chat.StateGenerating &&
			(entry.session.State == chat.StateClosed || entry.session.LastActiveAt.Before(cutoff))
		entry.mu.Unlock()
		if !expired {
			continue
		}

		s.mu.Lock()
		if current, ok := s.entries[id]; ok && current == entry {
			delete(s.entries, id)
			removed++
		}
		s.mu.Unlock()
	}
	return removed, nil
}

// Close implements Store; nothing to release for the in-memory variant.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
