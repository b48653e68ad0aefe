package storage

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel error kinds for this package. These allow errors.Is from callers.
var (
	ErrStoreUnavailable = errors.New("graph store unavailable")
	ErrTimeout          = errors.New("graph store query timed out")
	ErrCanceled         = errors.New("graph store query canceled")
	ErrQuery            = errors.New("graph store query failed")
)

// Kind classifies a store failure.
type Kind int

const (
	// KindQuery is a failure reported by the store for a reachable backend.
	KindQuery Kind = iota
	// KindUnavailable covers connectivity and authentication failures.
	KindUnavailable
	// KindTimeout means the query exceeded its deadline.
	KindTimeout
	// KindCanceled means the caller canceled the query.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	default:
		return "query"
	}
}

// StoreError wraps a backend error with the operation and its category.
type StoreError struct {
	Op      string
	Backend string
	Kind    Kind
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Backend, e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is matches the package sentinels against the error's kind.
func (e *StoreError) Is(target error) bool {
	switch target {
	case ErrStoreUnavailable:
		return e.Kind == KindUnavailable
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrCanceled:
		return e.Kind == KindCanceled
	case ErrQuery:
		return e.Kind == KindQuery
	}
	return false
}

// IsRetryable reports whether repeating the failed operation may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// KindOf returns the category of err, or KindQuery for foreign errors.
func KindOf(err error) Kind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindQuery
}

// newStoreError builds a StoreError, letting context state take precedence
// over whatever the driver reported.
func newStoreError(ctx context.Context, backend, op string, kind Kind, err error) *StoreError {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		kind = KindCanceled
	}
	return &StoreError{Op: op, Backend: backend, Kind: kind, Err: err}
}
