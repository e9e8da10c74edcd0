package upstream

import (
	"errors"
	"fmt"
)

// Sentinel kinds for errors.Is checks against *Error.
var (
	// ErrUnreachable covers connection failures, TLS failures and timeouts.
	ErrUnreachable = errors.New("upstream unreachable")
	// ErrMalformed covers bodies that are not JSON or lack required fields.
	ErrMalformed = errors.New("upstream response malformed")
	// ErrRejected covers non-2xx statuses.
	ErrRejected = errors.New("upstream rejected request")
)

// Error is a failed upstream exchange.
type Error struct {
	Kind   error  // one of ErrUnreachable, ErrMalformed, ErrRejected
	Op     string // e.g. "GET /api/fetch-scripture"
	Status int    // HTTP status, when one was received
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Detail())
}

// Detail is the error message without the kind prefix.
func (e *Error) Detail() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the error's kind sentinel.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func unreachable(op string, err error, msg string) *Error {
	return &Error{Kind: ErrUnreachable, Op: op, Msg: msg, Err: err}
}

func malformed(op string, err error, msg string) *Error {
	return &Error{Kind: ErrMalformed, Op: op, Msg: msg, Err: err}
}
