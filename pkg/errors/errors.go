// Package errors defines the API error type rendered by pkg/response and the
// sentinels shared across services.
package errors

import (
	"errors"
	"net/http"
)

// AppError is an error with a stable code and HTTP status. Message is safe to
// show clients; Internal is for logs only.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// New declares an AppError. Services use it for their own sentinels.
func New(code, message string, statusCode int) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusCode}
}

var (
	ErrBadRequest          = New("BAD_REQUEST", "Invalid request", http.StatusBadRequest)
	ErrInvalidCredentials  = New("INVALID_CREDENTIALS", "Invalid credentials", http.StatusBadRequest)
	ErrUnauthorized        = New("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrNotFound            = New("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrRateLimit           = New("RATE_LIMIT_EXCEEDED", "Too many requests, please slow down", http.StatusTooManyRequests)
	ErrInternalServer      = New("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
	ErrUpstreamUnavailable = New("UPSTREAM_UNAVAILABLE", "Dependent service unavailable", http.StatusBadGateway)
)

func (e *AppError) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.Internal != nil:
		return e.Message + ": " + e.Internal.Error()
	default:
		return e.Message
	}
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches on Code so copies made by WithMessage or WithInternal still
// satisfy errors.Is against their sentinel.
func (e *AppError) Is(target error) bool {
	other, ok := target.(*AppError)
	return ok && e != nil && other != nil && e.Code == other.Code
}

// WithMessage returns a copy carrying a different client-facing message.
func (e *AppError) WithMessage(message string) *AppError {
	return e.clone(func(c *AppError) { c.Message = message })
}

// WithInternal returns a copy that records err as the underlying cause.
func (e *AppError) WithInternal(err error) *AppError {
	return e.clone(func(c *AppError) { c.Internal = err })
}

func (e *AppError) clone(mutate func(*AppError)) *AppError {
	if e == nil {
		return nil
	}
	cp := *e
	mutate(&cp)
	return &cp
}

// NewBadRequest is a 400 with a specific message.
func NewBadRequest(message string) *AppError {
	return ErrBadRequest.WithMessage(message)
}

// FromError returns the first AppError in err's chain, or a 500 that keeps err
// as its internal cause.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServer.WithInternal(err)
}
