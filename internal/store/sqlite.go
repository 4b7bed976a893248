package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/knightrooks/agent-hub/internal/model/chat"
)

// SQLiteStore persists sessions across restarts. A single shared connection
// avoids writer lock contention with SQLite under concurrent goroutines;
// the per-session CAS becomes a conditional UPDATE, which SQLite applies
// atomically.
type SQLiteStore struct {
	db           *sql.DB
	retentionCap int
	now          func() time.Time
}

// NewSQLiteStore creates or opens the session database at path.
func NewSQLiteStore(path string, retentionCap int) (*SQLiteStore, error) {
	if retentionCap <= 0 {
		retentionCap = DefaultRetentionCap
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create session db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{
		db:           db,
		retentionCap: retentionCap,
		now:          func() time.Time { return time.Now().UTC() },
	}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			state TEXT NOT NULL,
			created_at_ms INTEGER NOT NULL,
			last_active_at_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS turns (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			backend_used TEXT NOT NULL DEFAULT '',
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS turns_session_idx ON turns(session_id, seq);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init session db: %w", err)
		}
	}
	return nil
}

// CreateOrGet inserts the session when absent and returns it.
func (s *SQLiteStore) CreateOrGet(ctx context.Context, sessionID, agentID string) (chat.Session, error) {
	nowMS := s.now().UnixMilli()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, agent_id, state, created_at_ms, last_active_at_ms)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		sessionID, agentID, string(chat.StateIdle), nowMS, nowMS)
	if err != nil {
		return chat.Session{}, fmt.Errorf("create session: %w", err)
	}

	session, err := s.Load(ctx, sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	if session.AgentID != agentID {
		return chat.Session{}, ErrAgentMismatch
	}
	return session, nil
}

// Load fetches a session row.
func (s *SQLiteStore) Load(ctx context.Context, sessionID string) (chat.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, agent_id, state, created_at_ms, last_active_at_ms FROM sessions WHERE id = ?`,
		sessionID)

	var session chat.Session
	var state string
	var createdMS, activeMS int64
	if err := row.Scan(&session.ID, &session.AgentID, &state, &createdMS, &activeMS); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return chat.Session{}, ErrNotFound
		}
		return chat.Session{}, fmt.Errorf("load session: %w", err)
	}
	session.State = chat.SessionState(state)
	session.CreatedAt = time.UnixMilli(createdMS).UTC()
	session.LastActiveAt = time.UnixMilli(activeMS).UTC()
	return session, nil
}

// AppendTurn inserts the turn and evicts history beyond the retention cap.
func (s *SQLiteStore) AppendTurn(ctx context.Context, turn chat.Turn) (chat.Turn, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return chat.Turn{}, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, turn.SessionID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return chat.Turn{}, ErrNotFound
		}
		return chat.Turn{}, fmt.Errorf("check session: %w", err)
	}

	turn.ID = uuid.NewString()
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = s.now()
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO turns (id, session_id, role, content, backend_used, created_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.SessionID, string(turn.Role), turn.Content, turn.BackendUsed, turn.CreatedAt.UnixMilli()); err != nil {
		return chat.Turn{}, fmt.Errorf("insert turn: %w", err)
	}

	// Oldest-first eviction: keep only the newest retentionCap rows.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM turns WHERE session_id = ? AND seq NOT IN (
			SELECT seq FROM turns WHERE session_id = ? ORDER BY seq DESC LIMIT ?)`,
		turn.SessionID, turn.SessionID, s.retentionCap); err != nil {
		return chat.Turn{}, fmt.Errorf("evict turns: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET last_active_at_ms = ? WHERE id = ?`,
		s.now().UnixMilli(), turn.SessionID); err != nil {
		return chat.Turn{}, fmt.Errorf("touch session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return chat.Turn{}, fmt.Errorf("commit append: %w", err)
	}
	return turn, nil
}

// Turns returns retained turns, oldest first.
func (s *SQLiteStore) Turns(ctx context.Context, sessionID string) ([]chat.Turn, error) {
	if _, err := s.Load(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, backend_used, created_at_ms
		 FROM turns WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []chat.Turn
	for rows.Next() {
		var turn chat.Turn
		var role string
		var createdMS int64
		if err := rows.Scan(&turn.ID, &turn.SessionID, &role, &turn.Content, &turn.BackendUsed, &createdMS); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turn.Role = chat.Role(role)
		turn.CreatedAt = time.UnixMilli(createdMS).UTC()
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// CompareAndSetState performs the transition as a conditional UPDATE.
func (s *SQLiteStore) CompareAndSetState(ctx context.Context, sessionID string, expected, next chat.SessionState) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET state = ?, last_active_at_ms = ? WHERE id = ? AND state = ?`,
		string(next), s.now().UnixMilli(), sessionID, string(expected))
	if err != nil {
		return false, fmt.Errorf("cas state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cas state: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	// Distinguish a lost race from a missing session.
	if _, err := s.Load(ctx, sessionID); err != nil {
		return false, err
	}
	return false, nil
}

// List summarizes all retained sessions.
func (s *SQLiteStore) List(ctx context.Context) ([]chat.Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.agent_id, s.state, s.created_at_ms, s.last_active_at_ms,
		        (SELECT COUNT(*) FROM turns t WHERE t.session_id = s.id)
		 FROM sessions s ORDER BY s.last_active_at_ms DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var summaries []chat.Summary
	for rows.Next() {
		var summary chat.Summary
		var state string
		var createdMS, activeMS int64
		if err := rows.Scan(&summary.ID, &summary.AgentID, &state, &createdMS, &activeMS, &summary.TurnCount); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		summary.State = chat.SessionState(state)
		summary.CreatedAt = time.UnixMilli(createdMS).UTC()
		summary.LastActiveAt = time.UnixMilli(activeMS).UTC()
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// CloseSession marks the session Closed.
func (s *SQLiteStore) CloseSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET state = ?, last_active_at_ms = ? WHERE id = ?`,
		string(chat.StateClosed), s.now().UnixMilli(), sessionID)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SweepExpired deletes idle-expired and closed sessions with their turns.
func (s *SQLiteStore) SweepExpired(ctx context.Context, idleTimeout time.Duration) (int, error) {
	cutoffMS := s.now().Add(-idleTimeout).UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin sweep: %w", err)
	}
	defer tx.Rollback()

	condition := `state != ? AND (state = ? OR last_active_at_ms < ?)`
	args := []any{string(chat.StateGenerating), string(chat.StateClosed), cutoffMS}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM turns WHERE session_id IN (SELECT id FROM sessions WHERE `+condition+`)`,
		args...); err != nil {
		return 0, fmt.Errorf("sweep turns: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE `+condition, args...)
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit sweep: %w", err)
	}
	return int(affected), nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
