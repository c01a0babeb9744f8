package model

import (
	"errors"
	"fmt"
)

// Sentinel error kinds shared by the match session packages. Callers match
// them with errors.Is.
var (
	// ErrValidation: the input violates a precondition the caller could check.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidEvent: an event-type specific relation is violated.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrNotFound: the referenced event or player does not exist.
	ErrNotFound = errors.New("not found")
	// ErrIllegalState: the operation is not allowed in the current clock phase.
	ErrIllegalState = errors.New("illegal state")
	// ErrScoreUnderflow: a score would drop below zero, which means the
	// ledger and score went out of sync.
	ErrScoreUnderflow = errors.New("score underflow")
)

// Error carries the failing operation and its kind.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewKind returns an error of the given kind for op.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// WrapKind tags err with kind for op.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Errorf is WrapKind with a formatted cause.
func Errorf(op string, kind error, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the sentinel kind of err, or nil if err carries none.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrInvalidEvent, ErrNotFound, ErrIllegalState, ErrScoreUnderflow} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
