package service

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuth
	KindOwnership
	KindNotFound
	KindConflict
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindOwnership:
		return "ownership"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindStore:
		return "store"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the single failure type returned by every operation. Message is
// safe to show to clients; Err is for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err. Errors that did not come from this
// package count as store failures.
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindStore
}

// MessageOf returns the client-facing message of err.
func MessageOf(err error) string {
	var se *Error
	if errors.As(err, &se) && se.Kind != KindStore {
		return se.Message
	}
	return "internal error"
}

func invalid(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func unauthorized(msg string) error {
	return &Error{Kind: KindAuth, Message: msg}
}

func forbidden() error {
	return &Error{Kind: KindOwnership, Message: "not allowed to act on behalf of another user"}
}

func notFound(what string) error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func conflict(msg string) error {
	return &Error{Kind: KindConflict, Message: msg}
}
