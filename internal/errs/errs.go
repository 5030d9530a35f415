// Package errs holds the error taxonomy shared by the matching path and the
// transports that surface it to callers (see spec §7): ClientError and
// NotFound are synchronous and side-effect free, Capacity signals
// backpressure, and Invariant marks a fatal book inconsistency that should
// abort the owning engine task.
package errs

import "errors"

// Kind classifies an error for transport-layer mapping.
type Kind int

const (
	// KindClient marks a validation failure at intake. No side effects.
	KindClient Kind = iota
	// KindNotFound marks a lookup miss (cancel of unknown order, unknown symbol).
	KindNotFound
	// KindCapacity marks a full channel/buffer; the caller should back off.
	KindCapacity
	// KindInvariant marks a fatal internal inconsistency; the owning task
	// must abort and an operator must restart it.
	KindInvariant
)

// Error wraps a domain error with a Kind and an optional machine-readable
// code matching spec §6 (e.g. "INVALID_QUANTITY", "ORDER_NOT_FOUND").
type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return e.Code + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

// Client builds a KindClient error with the given spec §6 error code.
func Client(code string, err error) *Error { return newErr(KindClient, code, err) }

// NotFound builds a KindNotFound error.
func NotFound(code string, err error) *Error { return newErr(KindNotFound, code, err) }

// Capacity builds a KindCapacity error.
func Capacity(code string, err error) *Error { return newErr(KindCapacity, code, err) }

// Invariant builds a KindInvariant error.
func Invariant(code string, err error) *Error { return newErr(KindInvariant, code, err) }

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

var (
	// ErrUnknownSymbol is returned when an order targets a symbol outside
	// the configured supported set.
	ErrUnknownSymbol = errors.New("unknown symbol")
	// ErrOrderNotFound is returned when a cancel targets an order that is
	// not currently resting in the book.
	ErrOrderNotFound = errors.New("order not found")
)
