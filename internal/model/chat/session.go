package chat

import "time"

// SessionState tracks where a session is in its lifecycle. Generating is
// entered by at most one caller at a time; that transition is the
// single-flight gate.
type SessionState string

const (
	StateIdle       SessionState = "idle"
	StateGenerating SessionState = "generating"
	StateClosed     SessionState = "closed"
)

// Session captures one ongoing conversation between a user and a persona.
type Session struct {
	ID           string       `json:"id"`
	AgentID      string       `json:"agentId"`
	State        SessionState `json:"state"`
	CreatedAt    time.Time    `json:"createdAt"`
	LastActiveAt time.Time    `json:"lastActiveAt"`
}

// Summary is the listing view of a session.
type Summary struct {
	ID           string       `json:"id"`
	AgentID      string       `json:"agentId"`
	State        SessionState `json:"state"`
	TurnCount    int          `json:"turnCount"`
	CreatedAt    time.Time    `json:"createdAt"`
	LastActiveAt time.Time    `json:"lastActiveAt"`
}
