// Package fault defines the error taxonomy shared by the store, the
// inference client and the journal pipeline. Stage policy (degrade vs.
// surface) is decided purely from the Kind attached to an error.
package fault

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// Transport covers network errors and timeouts talking to an external
	// service. Retryable by the caller, never auto-retried internally.
	Transport Kind = iota + 1
	// SafetyBlocked means the inference service refused the request.
	SafetyBlocked
	// MalformedResponse means a response arrived but could not be parsed
	// into the structure the stage expected.
	MalformedResponse
	// StoreWrite means the persistence layer could not commit; the
	// mutation was discarded.
	StoreWrite
	// NotFound means an entry or user referenced by the operation is
	// absent from the store.
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case SafetyBlocked:
		return "safety_blocked"
	case MalformedResponse:
		return "malformed_response"
	case StoreWrite:
		return "store_write"
	case NotFound:
		return "not_found"
	}
	return "unknown"
}

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind carried by err, or 0 for untagged errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
