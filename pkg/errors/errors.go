package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrRebuild           = errors.New("index already built")
	ErrEmptyQuery        = errors.New("query vector is empty")
	ErrMissingPopularity = errors.New("missing popularity score")
	ErrDegenerateVector  = errors.New("vector has zero maximum weight")
	ErrNoQueries         = errors.New("no queries evaluated")
	ErrUnknownDocument   = errors.New("unknown document")
	ErrNotBuilt          = errors.New("index not built")
	ErrInvalidInput      = errors.New("invalid input")
	ErrMalformedInput    = errors.New("malformed input")
	ErrInternal          = errors.New("internal error")
	ErrTimeout           = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Is and As re-export the standard helpers so callers need a single import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrUnknownDocument):
		return http.StatusNotFound
	case errors.Is(err, ErrEmptyQuery),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrMalformedInput),
		errors.Is(err, ErrDegenerateVector):
		return http.StatusBadRequest
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrNotBuilt):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
