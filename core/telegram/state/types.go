package state

import "time"

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Session stores conversation state and captured values for a user.
type Session struct {
	State     State
	Data      map[string]string
	UpdatedAt time.Time
}

// Idle reports whether the session carries no active conversation.
func (s Session) Idle() bool {
	return s.State == "" || s.State == StateIdle
}

// Value returns a captured value or "".
func (s Session) Value(key string) string {
	if s.Data == nil {
		return ""
	}
	return s.Data[key]
}

// Manager owns sessions keyed by user id. Implementations must be safe for
// concurrent use. Storing an idle session removes it.
type Manager interface {
	Get(userID int64) Session
	Put(userID int64, s Session)
	Clear(userID int64)
	InProgress(userID int64) bool
	Len() int
}
