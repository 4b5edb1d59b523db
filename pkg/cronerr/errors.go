// Package cronerr defines the single error type surfaced by cronlease.
//
// Every failure reported to a caller is a *Error. Kind tells configuration
// mistakes, bad scheduling parameters and store failures apart. Claim
// collisions are never errors.
package cronerr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindConfiguration is caller misuse: mode set twice, schedule chained,
	// missing task name, missing store.
	KindConfiguration Kind = iota + 1
	// KindValidation is a malformed or out-of-range scheduling parameter.
	KindValidation
	// KindStore is an unreachable, misconfigured or unprovisioned store.
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindValidation:
		return "validation"
	case KindStore:
		return "store"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error carries a user-facing message. Msg is returned verbatim by Error()
// so callers can compare fixed messages.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String() + " error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

func Configuration(msg string) error {
	return &Error{Kind: KindConfiguration, Msg: msg}
}

func Validation(msg string) error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// Store wraps a backend failure. msg may be empty, in which case the
// underlying error text is used as is.
func Store(msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindStore, Msg: msg, Err: err}
}

// Is reports whether err is (or wraps) a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf returns the kind of err, or 0 when err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
