package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/yungbote/graphrag-core/internal/rag/ragerr"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// FromError maps a pipeline error onto an HTTP status and a stable code.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch ragerr.KindOf(err) {
	case ragerr.InvalidArgument:
		return New(http.StatusBadRequest, "invalid_argument", err)
	case ragerr.NotFound:
		return New(http.StatusNotFound, "not_found", err)
	case ragerr.TransientDependency:
		return New(http.StatusBadGateway, "dependency_unavailable", err)
	default:
		return New(http.StatusInternalServerError, "internal", err)
	}
}
