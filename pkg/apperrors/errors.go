package apperrors

import (
	"errors"
	"net/http"
)

// Exception is an error safe to show to the caller: Code is the HTTP status
// and Message the user-facing text. Err keeps the underlying cause for logs.
type Exception struct {
	Code    int
	Message string
	Err     error
}

func (e *Exception) Error() string {
	return e.Message
}

func (e *Exception) Unwrap() error {
	return e.Err
}

// Option customizes an Exception.
type Option func(*Exception)

// WithMessage overrides the user-facing message.
func WithMessage(message string) Option {
	return func(e *Exception) {
		e.Message = message
	}
}

// WithError attaches the underlying cause.
func WithError(err error) Option {
	return func(e *Exception) {
		e.Err = err
	}
}

func newException(code int, message string, opts []Option) *Exception {
	e := &Exception{Code: code, Message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BadRequest is a validation failure (400).
func BadRequest(opts ...Option) *Exception {
	return newException(http.StatusBadRequest, "bad request", opts)
}

// Unauthorized means the caller identity is missing (401).
func Unauthorized(opts ...Option) *Exception {
	return newException(http.StatusUnauthorized, "unauthorized", opts)
}

// NotFound means the entity does not exist or is not owned by the caller (404).
func NotFound(opts ...Option) *Exception {
	return newException(http.StatusNotFound, "not found", opts)
}

// Conflict is a uniqueness violation (409).
func Conflict(opts ...Option) *Exception {
	return newException(http.StatusConflict, "conflict", opts)
}

// BadGateway is a payment processor failure surfaced to the caller (502).
func BadGateway(opts ...Option) *Exception {
	return newException(http.StatusBadGateway, "payment gateway error", opts)
}

// Unexpected is anything else (500).
func Unexpected(opts ...Option) *Exception {
	return newException(http.StatusInternalServerError, "internal server error", opts)
}

// As extracts an *Exception from err. Errors that are not exceptions become
// Unexpected with err as the cause.
func As(err error) *Exception {
	var e *Exception
	if errors.As(err, &e) {
		return e
	}
	return Unexpected(WithError(err))
}

// HasCode reports whether err is an Exception with the given status code.
func HasCode(err error, code int) bool {
	var e *Exception
	return errors.As(err, &e) && e.Code == code
}
