package calendar

import "errors"

// ErrorKind classifies engine failures so callers can pick a degradation path.
type ErrorKind string

const (
	KindNetwork        ErrorKind = "network"
	KindValidation     ErrorKind = "validation"
	KindUnresolvedDrop ErrorKind = "unresolved_drop"
	KindNotFound       ErrorKind = "not_found"
	KindStaleGesture   ErrorKind = "stale_gesture"
)

// Common errors
var (
	ErrNetwork        = &Error{Kind: KindNetwork, message: "event repository unavailable"}
	ErrValidation     = &Error{Kind: KindValidation, message: "invalid request"}
	ErrUnresolvedDrop = &Error{Kind: KindUnresolvedDrop, message: "drop target could not be resolved"}
	ErrNotFound       = &Error{Kind: KindNotFound, message: "event not found"}
	ErrStaleGesture   = &Error{Kind: KindStaleGesture, message: "gesture is not the active drag"}

	ErrMissingBusiness  = NewValidationError("business id is required")
	ErrInvalidTimeRange = NewValidationError("end time must not be before start time")
	ErrInvalidModule    = NewValidationError("invalid module")
	ErrInvalidEventType = NewValidationError("invalid event type")
	ErrInvalidViewMode  = NewValidationError("invalid view mode")
)

// Error type
type Error struct {
	Kind    ErrorKind
	message string
	err     error
}

func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, message: message}
}

func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, message: message}
}

// NetworkError wraps a repository failure.
func NetworkError(op string, err error) *Error {
	return &Error{Kind: KindNetwork, message: op + ": event repository unavailable", err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.message + ": " + e.err.Error()
	}
	return e.message
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is matches on kind, so errors.Is(err, ErrNetwork) holds for every network error.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.message == e.message || isSentinel(t))
}

func isSentinel(e *Error) bool {
	switch e {
	case ErrNetwork, ErrValidation, ErrUnresolvedDrop, ErrNotFound, ErrStaleGesture:
		return true
	}
	return false
}

// KindOf returns the kind of a calendar error, or "" for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
