package router

import (
	"context"
	"errors"

	"github.com/bobmcallan/translation-helps-proxy/internal/upstream"
)

// Per-call error kinds raised by the router itself. Upstream failures keep
// their *upstream.Error.
var (
	ErrToolNotFound     = errors.New("tool not found")
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrRouting          = errors.New("routing error")
)

// Error is a per-call failure raised before or around the upstream call.
type Error struct {
	Kind error
	Tool string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	return e.Kind.Error() + ": " + e.Detail()
}

// Detail is the error message without the kind prefix.
func (e *Error) Detail() string {
	if e.Msg == "" && e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the error's kind sentinel.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// KindName returns the client-facing name of err's kind.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrToolNotFound):
		return "ToolNotFound"
	case errors.Is(err, ErrInvalidArguments):
		return "InvalidArguments"
	case errors.Is(err, ErrRouting):
		return "RoutingError"
	case errors.Is(err, upstream.ErrUnreachable):
		return "UpstreamUnreachable"
	case errors.Is(err, upstream.ErrMalformed):
		return "UpstreamMalformed"
	case errors.Is(err, upstream.ErrRejected):
		return "UpstreamRejected"
	case errors.Is(err, context.Canceled):
		return "Cancelled"
	default:
		return "InternalError"
	}
}

// ErrorText renders err as the single text line of an error envelope:
// "<Kind>: <message>".
func ErrorText(err error) string {
	var d interface{ Detail() string }
	if errors.As(err, &d) {
		return KindName(err) + ": " + d.Detail()
	}
	return KindName(err) + ": " + err.Error()
}
