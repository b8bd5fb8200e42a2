// Package errs defines the error taxonomy shared by the domain managers and
// the HTTP layer.
package errs

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindAuthentication   Kind = "authentication"
	KindProfileLookup    Kind = "profile_lookup"
	KindRegistration     Kind = "registration"
	KindAuthorization    Kind = "authorization"
	KindNotFound         Kind = "not_found"
	KindSend             Kind = "send"
	KindUpload           Kind = "upload"
	KindDuplicateRequest Kind = "duplicate_request"
	KindConflict         Kind = "conflict"
	KindValidation       Kind = "validation"
	KindTransport        Kind = "transport"
	KindInconsistent     Kind = "inconsistent_state"
)

// Error is a classified failure. Message is safe to show to end users; Err
// keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, errs.ErrNotFound) works
// for any not-found failure.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. An err that is already an *Error keeps its own kind.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports the kind of err, KindTransport for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransport
}

// Message returns the user facing text of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Sentinels for errors.Is comparisons.
var (
	ErrAuthentication   = &Error{Kind: KindAuthentication}
	ErrProfileLookup    = &Error{Kind: KindProfileLookup}
	ErrRegistration     = &Error{Kind: KindRegistration}
	ErrAuthorization    = &Error{Kind: KindAuthorization}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrSend             = &Error{Kind: KindSend}
	ErrUpload           = &Error{Kind: KindUpload}
	ErrDuplicateRequest = &Error{Kind: KindDuplicateRequest}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrValidation       = &Error{Kind: KindValidation}
	ErrTransport        = &Error{Kind: KindTransport}
	ErrInconsistent     = &Error{Kind: KindInconsistent}
)
