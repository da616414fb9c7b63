package models

import "time"

// Status is the terminal-or-in-progress state of an agent run. The set is
// a superset covering every status used by either revision of the source
// the teacher carried side by side.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusMaxTurns  Status = "max_turns"
	StatusHalted    Status = "halted"
)

// Terminal reports whether s is one from which a run does not continue.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusMaxTurns, StatusHalted:
		return true
	default:
		return false
	}
}

// SessionMetadata is the small denormalized summary carried in a Session
// export envelope, kept separate from the full message history so callers
// can cheaply list sessions without paying for history decode.
type SessionMetadata struct {
	Status   Status `json:"status"`
	Turns    int    `json:"turns"`
	Provider string `json:"provider"`
}

// Session is the export envelope handed to a persistence.Store. It is a
// serializable value, never mutated after construction.
type Session struct {
	ID        string          `json:"id"`
	Messages  []Message       `json:"messages"`
	Usage     Usage           `json:"usage"`
	Metadata  SessionMetadata `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
