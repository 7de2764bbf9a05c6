package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure per §7. Callers use errors.Is/errors.As
// against the sentinel values below rather than string matching.
type ErrorKind string

const (
	KindInvalidInput ErrorKind = "invalid_input"
	KindNotFound     ErrorKind = "not_found"
	KindIllegalState ErrorKind = "illegal_state"
	KindUnavailable  ErrorKind = "unavailable"
	KindTimeout      ErrorKind = "timeout"
	KindWorkerError  ErrorKind = "worker_error"
	KindInternal     ErrorKind = "internal"
)

// Sentinel errors, one per kind, for errors.Is comparisons.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrIllegalState = errors.New("illegal state")
	ErrUnavailable  = errors.New("unavailable")
	ErrTimeout      = errors.New("timeout")
	ErrWorkerError  = errors.New("worker reported error")
	ErrInternal     = errors.New("internal error")
)

var kindToSentinel = map[ErrorKind]error{
	KindInvalidInput: ErrInvalidInput,
	KindNotFound:     ErrNotFound,
	KindIllegalState: ErrIllegalState,
	KindUnavailable:  ErrUnavailable,
	KindTimeout:      ErrTimeout,
	KindWorkerError:  ErrWorkerError,
	KindInternal:     ErrInternal,
}

// DomainError wraps an underlying error with a kind for HTTP-status mapping
// and caller-facing reporting (§7 propagation table).
type DomainError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *DomainError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// Is reports whether target matches this error's kind sentinel.
func (e *DomainError) Is(target error) bool {
	sentinel, ok := kindToSentinel[e.Kind]
	return ok && errors.Is(sentinel, target)
}

// NewError constructs a DomainError of the given kind.
func NewError(kind ErrorKind, op string, err error) *DomainError {
	return &DomainError{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the ErrorKind from err, defaulting to KindInternal when
// err does not wrap a *DomainError.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
