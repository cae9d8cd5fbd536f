// Package agoraerr defines the error taxonomy shared by every Agora
// component: metaserver, gateway, publisher, subscriber and relay all
// wrap failures in one of these kinds so that callers can branch on
// Is() instead of parsing message text.
package agoraerr

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed.
type Kind int

const (
	// KindInternal marks a broken invariant; should be unreachable.
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindTransport
	KindStale
	KindSerialisation
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindConflict:
		return "ConflictError"
	case KindNotFound:
		return "NotFoundError"
	case KindTransport:
		return "TransportError"
	case KindStale:
		return "StaleError"
	case KindSerialisation:
		return "SerialisationError"
	default:
		return "InternalError"
	}
}

// Error is a taxonomy-tagged error carrying the component and method
// that raised it, matching the "Agora component::method Error: msg"
// convention that operator-facing output relies on.
type Error struct {
	Kind      Kind
	Component string
	Method    string
	Msg       string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("Agora %s::%s Error: %s: %v", e.Component, e.Method, e.Msg, e.Cause)
	}
	return fmt.Sprintf("Agora %s::%s Error: %s", e.Component, e.Method, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newf(kind Kind, component, method, format string, args ...any) *Error {
	return &Error{Kind: kind, Component: component, Method: method, Msg: fmt.Sprintf(format, args...)}
}

func Validation(component, method, format string, args ...any) *Error {
	return newf(KindValidation, component, method, format, args...)
}

func Conflict(component, method, format string, args ...any) *Error {
	return newf(KindConflict, component, method, format, args...)
}

func NotFound(component, method, format string, args ...any) *Error {
	return newf(KindNotFound, component, method, format, args...)
}

func Internal(component, method, format string, args ...any) *Error {
	return newf(KindInternal, component, method, format, args...)
}

// Transport wraps a lower-level I/O error (bind, connect, upgrade, send,
// receive) under the TransportError kind, preserving the cause for
// errors.Is/errors.As chains.
func Transport(component, method string, cause error) *Error {
	return &Error{Kind: KindTransport, Component: component, Method: method, Msg: "transport failure", Cause: cause}
}

func Stale(component, method, format string, args ...any) *Error {
	return newf(KindStale, component, method, format, args...)
}

func Serialisation(component, method string, cause error) *Error {
	return &Error{Kind: KindSerialisation, Component: component, Method: method, Msg: "serialisation failure", Cause: cause}
}

// Is reports whether err carries the given taxonomy Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
