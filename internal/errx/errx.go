// Package errx provides application error kinds that map cleanly to HTTP status codes.
// Gone and Forbidden exist for the redirect path: a link that was found but may not
// be served is a different outcome from a link that was never there.

package errx

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	Unknown Kind = iota
	NotFound
	Gone
	Conflict
	Invalid
	Unauthorized
	Forbidden
	Unavailable
	Internal
)

type Error struct {
	Op   string
	Kind Kind
	Err  error
}

// E wraps err with an operation name and kind. A nil err yields nil so
// callers can write `return errx.E(op, kind, err)` unconditionally.
func E(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// Wrap re-labels err with op while keeping the kind of the innermost errx.Error.
func Wrap(op string, err error) error {
	return E(op, KindOf(err), err)
}

// String returns the string representation of the error kind.
func (k Kind) String() string {
	switch k {
	case Unknown:
		return "Unknown"
	case NotFound:
		return "NotFound"
	case Gone:
		return "Gone"
	case Conflict:
		return "Conflict"
	case Invalid:
		return "Invalid"
	case Unauthorized:
		return "Unauthorized"
	case Forbidden:
		return "Forbidden"
	case Unavailable:
		return "Unavailable"
	case Internal:
		return "Internal"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

func OpOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}
