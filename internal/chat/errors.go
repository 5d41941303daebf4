// Package chat implements the domain core of the relay: room registry,
// session table, and the per-connection protocol state machine that validates
// client intents, persists messages, and fans results out to room members.
package chat

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Every error reported to a client wraps exactly one of
// these; the gateway never sees a raw store or codec error.
var (
	// ErrValidation covers bad nickname/room-name lengths and malformed frames.
	ErrValidation = errors.New("validation")
	// ErrDuplicate is returned when a nickname is already taken.
	ErrDuplicate = errors.New("duplicate")
	// ErrNotFound is returned for unknown room ids.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when a non-creator tries to delete a room.
	ErrForbidden = errors.New("forbidden")
	// ErrStore wraps persistence failures on append or read.
	ErrStore = errors.New("store")
	// ErrUnknownType is returned for unrecognized intent types.
	ErrUnknownType = errors.New("unknown type")
)

// Error is a client-reportable error: Message is the text placed in the error
// frame, kind is one of the sentinels above and drives errors.Is matching.
type Error struct {
	kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

// Unwrap exposes the error kind for errors.Is.
func (e *Error) Unwrap() error { return e.kind }

func newError(kind error, format string, args ...any) *Error {
	return &Error{kind: kind, Message: fmt.Sprintf(format, args...)}
}

func validationf(format string, args ...any) error {
	return newError(ErrValidation, format, args...)
}

func storeErr(op string, err error) error {
	return newError(ErrStore, "Failed to %s: %v", op, err)
}
