package chat

import "time"

// Role identifies who produced a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Turn is one message within a session. Immutable once stored.
type Turn struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	Role        Role      `json:"role"`
	Content     string    `json:"content"`
	BackendUsed string    `json:"backendUsed,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
