// Package errs defines the typed errors returned by the controller runtime.
//
// Every error carries a Kind identifying the failing subsystem and a human
// description. Errors are logged at creation time, so a failure stays
// observable even when a caller discards the returned value.
package errs

import (
	"fmt"
	"log/slog"
)

// Kind classifies a controller error.
type Kind int

const (
	// Discovery covers scan and browse-session failures.
	Discovery Kind = iota
	// Request covers transport failures and device-side serialization
	// failures while sending requests to a device.
	Request
	// InvalidParameter covers request parameter values that do not match
	// the route's parameter schema.
	InvalidParameter
	// JsonResponse covers JSON response body decoding failures.
	JsonResponse
	// StreamResponse covers byte stream response decoding failures.
	StreamResponse
	// Sender covers device and route lookup failures while constructing
	// a request sender.
	Sender
	// Events covers event subscription and task management failures.
	Events
)

func (k Kind) String() string {
	switch k {
	case Discovery:
		return "Discovery"
	case Request:
		return "Request"
	case InvalidParameter:
		return "Invalid Parameter"
	case JsonResponse:
		return "Json Response"
	case StreamResponse:
		return "Stream Response"
	case Sender:
		return "Response Sender"
	case Events:
		return "Events"
	default:
		return "Unknown"
	}
}

// Error is a controller error with a kind and a description.
type Error struct {
	Kind        Kind
	Description string
}

// New creates an Error, logging its description.
func New(kind Kind, description string) *Error {
	slog.Error(description, "kind", kind.String())
	return &Error{Kind: kind, Description: description}
}

// Newf creates an Error with a formatted description, logging it.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap creates an Error whose description includes the wrapped error.
func Wrap(kind Kind, err error) *Error {
	return New(kind, err.Error())
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Description)
}

// Is makes errors.Is match on the kind: errs.New(k, ...) matches any other
// *Error with the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		var ok bool
		if e, ok = err.(*Error); ok {
			return e.Kind == kind
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
