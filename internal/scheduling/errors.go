package scheduling

import (
	"errors"
	"fmt"
)

// ErrorKind classifies the recoverable failures the engine can report.
// The API layer maps kinds to HTTP statuses; none are fatal to the process.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindScheduleConflict  ErrorKind = "schedule_conflict"
	KindNotOpen           ErrorKind = "not_open"
	KindAlreadyRegistered ErrorKind = "already_registered"
	KindFull              ErrorKind = "full"
	KindUnauthorized      ErrorKind = "unauthorized"
)

// Error is a typed engine error carrying its kind.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind from err, or "" when err is not an engine
// error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
