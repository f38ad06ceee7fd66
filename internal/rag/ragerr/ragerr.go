// Package ragerr tags pipeline failures with a kind so callers can branch on the category
// instead of on concrete error types.
package ragerr

import (
	"context"
	"errors"
	"fmt"
)

type Kind int

const (
	Internal Kind = iota
	// TransientDependency: an embedding, graph or generation call failed after the
	// dependency's own retry policy gave up.
	TransientDependency
	// Degraded: a component returned an empty/default value instead of failing.
	Degraded
	// InvalidArgument: programmer error, e.g. unknown centrality kind or vector length mismatch.
	InvalidArgument
	// NotFound: unknown or expired task id.
	NotFound
)

func (k Kind) String() string {
	switch k {
	case TransientDependency:
		return "transient_dependency"
	case Degraded:
		return "degraded"
	case InvalidArgument:
		return "invalid_argument"
	case NotFound:
		return "not_found"
	default:
		return "internal"
	}
}

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return e.Op + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return e.Op + ": " + e.Kind.String()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Transient(op string, err error) *Error { return New(TransientDependency, op, err) }

func Invalid(op string, format string, args ...any) *Error {
	return New(InvalidArgument, op, fmt.Errorf(format, args...))
}

func NotFoundf(op string, format string, args ...any) *Error {
	return New(NotFound, op, fmt.Errorf(format, args...))
}

// KindOf returns the kind of the outermost tagged error in err's chain. Context
// cancellation and deadlines count as transient.
func KindOf(err error) Kind {
	if err == nil {
		return Internal
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return TransientDependency
	}
	return Internal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
