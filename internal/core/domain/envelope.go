package domain

import "encoding/json"

// Envelope is the uniform wrapper of every backend response body.
type Envelope[T any] struct {
	Success bool            `json:"success"`
	Data    *T              `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Meta    json.RawMessage `json:"meta,omitempty"`
}

// Failure builds the envelope returned to callers when a request failed
// before or outside a well-formed backend answer.
func Failure[T any](err error) *Envelope[T] {
	return &Envelope[T]{Success: false, Error: Message(err)}
}

// Result is what session operations hand back to forms.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// AuthState is the session store state machine position.
type AuthState string

const (
	StateInitializing  AuthState = "initializing"
	StateAuthenticated AuthState = "authenticated"
	StateAnonymous     AuthState = "anonymous"
)

// Snapshot is the read-only session view consumers render from.
type Snapshot struct {
	User            *User     `json:"user"`
	IsAuthenticated bool      `json:"is_authenticated"`
	IsLoading       bool      `json:"is_loading"`
	State           AuthState `json:"state"`
}

// NewSnapshot derives IsAuthenticated from user; it is never set on its own.
func NewSnapshot(user *User, state AuthState, loading bool) Snapshot {
	return Snapshot{
		User:            user.Clone(),
		IsAuthenticated: user != nil,
		IsLoading:       loading,
		State:           state,
	}
}
