package pipeline

import (
	"fmt"

	"github.com/ppiankov/donortrace/internal/model"
)

// ValidationError is a request problem caught before any model call
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SessionError names the phase and session a failure happened in
type SessionError struct {
	Phase   string
	Session model.Session
	Err     error
}

func (e *SessionError) Error() string {
	name := e.Session.Name
	if name == "" {
		name = "session " + e.Session.ID.String()
	}
	return fmt.Sprintf("%s failed for %s: %v", e.Phase, name, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}
