package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so errors.Is works against
// the predefined sentinels even after Clone or Wrap.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// Authentication reports whether the error should send the client back to the login page.
func (e *Error) Authentication() bool {
	return e != nil && e.Status == http.StatusUnauthorized
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrValidation          = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrUnauthorized        = New("UNAUTHORIZED", http.StatusUnauthorized, "not authenticated")
	ErrInvalidCredentials  = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid user id or password")
	ErrInvalidRefreshToken = New("INVALID_REFRESH_TOKEN", http.StatusUnauthorized, "invalid refresh token")
	ErrRefreshTokenExpired = New("REFRESH_TOKEN_EXPIRED", http.StatusUnauthorized, "refresh token expired")
	ErrStaleRefreshToken   = New("STALE_REFRESH_TOKEN", http.StatusUnauthorized, "refresh token already used")
	ErrOAuthState          = New("OAUTH_STATE_MISMATCH", http.StatusUnauthorized, "social login state is invalid or expired")
	ErrNotFound            = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrDatabase            = New("DATABASE_ERROR", http.StatusInternalServerError, "database error")
	ErrInternal            = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrOAuthExchange       = New("OAUTH_EXCHANGE_FAILED", http.StatusBadGateway, "social login provider exchange failed")
	ErrServiceUnavailable  = New("SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, "service temporarily unavailable")
	ErrOAuthDisabled       = New("OAUTH_DISABLED", http.StatusNotFound, "social login is not configured")
)

// ErrCacheMiss signals that a cache key holds no value.
var ErrCacheMiss = errors.New("cache miss")

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
