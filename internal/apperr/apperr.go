// Package apperr is the error taxonomy shared by the ledger, its store
// adapters and the HTTP boundary. Every failure that leaves an operation
// carries exactly one kind; callers branch with errors.Is on the kind
// sentinels or use KindOf.
package apperr

import (
	"errors"
	"strings"
)

// Kind sentinels.
var (
	ErrConfiguration    = errors.New("configuration error")
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyConfirmed = errors.New("already confirmed")
	ErrStore            = errors.New("store error")
)

var kinds = []error{ErrConfiguration, ErrValidation, ErrNotFound, ErrAlreadyConfirmed, ErrStore}

// Error is a classified failure. Kind is one of the sentinels above, Op names
// the operation that failed (for logs), Field is set for validation errors
// and Err is the underlying cause, if any.
type Error struct {
	Kind  error
	Op    string
	Field string
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Field != "" {
		b.WriteString(": ")
		b.WriteString(e.Field)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func Configuration(field string, cause error) error {
	return &Error{Kind: ErrConfiguration, Op: "config", Field: field, Err: cause}
}

func Validation(field, msg string) error {
	return &Error{Kind: ErrValidation, Op: "validate", Field: field, Err: errors.New(msg)}
}

func NotFound(op string) error {
	return &Error{Kind: ErrNotFound, Op: op}
}

func AlreadyConfirmed(op string) error {
	return &Error{Kind: ErrAlreadyConfirmed, Op: op}
}

// Store classifies a failure of the remote store. The cause is kept verbatim
// so operators see what the backend said.
func Store(op string, cause error) error {
	if cause == nil {
		return nil
	}
	var ae *Error
	if errors.As(cause, &ae) && errors.Is(ae.Kind, ErrStore) {
		return cause
	}
	return &Error{Kind: ErrStore, Op: op, Err: cause}
}

// KindOf returns the kind sentinel carried by err, or nil when err is nil or
// unclassified.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
