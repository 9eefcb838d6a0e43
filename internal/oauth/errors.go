package oauth

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed login so the HTTP layer can map it
type ErrorKind string

const (
	// KindInvalidCode means the inbound authorization code was malformed
	KindInvalidCode ErrorKind = "invalid_code"
	// KindUpstream absorbs every provider failure: transport errors,
	// non-2xx statuses and responses that do not match the expected schema
	KindUpstream ErrorKind = "upstream_error"
	// KindStorage means the identity store could not resolve the account
	KindStorage ErrorKind = "storage_error"
)

// Error is the single tagged error type carried from the flow to the HTTP boundary
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func invalidCode(format string, args ...any) error {
	return &Error{Kind: KindInvalidCode, Op: "validate code", Err: fmt.Errorf(format, args...)}
}

func upstream(op string, err error) error {
	return &Error{Kind: KindUpstream, Op: op, Err: err}
}

// KindOf returns the kind of a flow error, or "" if err is not one
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
