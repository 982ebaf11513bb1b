// Package errors defines the service error model shared by all handlers.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is a machine-readable error code returned to clients.
type ErrorCode string

const (
	CodeValidation        ErrorCode = "validation_error"
	CodeUnauthorized      ErrorCode = "unauthorized"
	CodeInvalidToken      ErrorCode = "invalid_token"
	CodeForbidden         ErrorCode = "forbidden"
	CodeNotFound          ErrorCode = "not_found"
	CodeConflict          ErrorCode = "conflict"
	CodeRateLimited       ErrorCode = "rate_limit_exceeded"
	CodeUpstream          ErrorCode = "upstream_error"
	CodeInternal          ErrorCode = "internal_error"
	CodeReauthRequired    ErrorCode = "youtube_reauth_required"
	CodeInsufficientTier  ErrorCode = "insufficient_tier"
	CodeInsufficientFunds ErrorCode = "insufficient_credits"
)

// ServiceError carries an error code, a client-safe message, the HTTP status
// to respond with, and optional structured details. The wrapped cause is
// logged but never serialized to clients.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	cause      error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is/As.
func (e *ServiceError) Unwrap() error { return e.cause }

// WithDetails attaches a structured detail to the error and returns it.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// GetServiceError returns the ServiceError in err's chain, or nil.
func GetServiceError(err error) *ServiceError {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}
	return nil
}

// Validation returns a 400 error for malformed or missing input.
func Validation(message string) *ServiceError {
	return &ServiceError{Code: CodeValidation, Message: message, HTTPStatus: http.StatusBadRequest}
}

// Unauthorized returns a 401 error.
func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "Authentication required"
	}
	return &ServiceError{Code: CodeUnauthorized, Message: message, HTTPStatus: http.StatusUnauthorized}
}

// InvalidToken returns a 401 error for token validation failures.
func InvalidToken(cause error) *ServiceError {
	return &ServiceError{Code: CodeInvalidToken, Message: "Invalid or expired token", HTTPStatus: http.StatusUnauthorized, cause: cause}
}

// Forbidden returns a 403 error.
func Forbidden(message string) *ServiceError {
	if message == "" {
		message = "Access denied"
	}
	return &ServiceError{Code: CodeForbidden, Message: message, HTTPStatus: http.StatusForbidden}
}

// NotFound returns a 404 error for the named resource. Ownership misses use
// this same shape so clients cannot distinguish hidden rows from absent ones.
func NotFound(resource string) *ServiceError {
	return &ServiceError{Code: CodeNotFound, Message: resource + " not found", HTTPStatus: http.StatusNotFound}
}

// Conflict returns a 409 error.
func Conflict(message string) *ServiceError {
	return &ServiceError{Code: CodeConflict, Message: message, HTTPStatus: http.StatusConflict}
}

// RateLimitExceeded returns a 429 error describing the limit.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return (&ServiceError{
		Code:       CodeRateLimited,
		Message:    "Rate limit exceeded",
		HTTPStatus: http.StatusTooManyRequests,
	}).WithDetails("limit", limit).WithDetails("window", window)
}

// Upstream returns a sanitized 500 for a third-party API failure. The
// provider name is returned; the underlying error is only logged.
func Upstream(provider string, cause error) *ServiceError {
	return (&ServiceError{
		Code:       CodeUpstream,
		Message:    "Upstream service request failed",
		HTTPStatus: http.StatusInternalServerError,
		cause:      cause,
	}).WithDetails("provider", provider)
}

// Internal returns a sanitized 500.
func Internal(message string, cause error) *ServiceError {
	if message == "" {
		message = "Internal server error"
	}
	return &ServiceError{Code: CodeInternal, Message: message, HTTPStatus: http.StatusInternalServerError, cause: cause}
}

// ReauthRequired returns a 401 signalling the YouTube connection must be
// re-authorized.
func ReauthRequired() *ServiceError {
	return &ServiceError{Code: CodeReauthRequired, Message: "YouTube connection requires re-authorization", HTTPStatus: http.StatusUnauthorized}
}

// InsufficientTier returns a 403 for features gated to higher plans.
func InsufficientTier(feature string) *ServiceError {
	return (&ServiceError{
		Code:       CodeInsufficientTier,
		Message:    "Current plan does not include this feature",
		HTTPStatus: http.StatusForbidden,
	}).WithDetails("feature", feature)
}

// InsufficientCredits returns a 403 when the credit balance cannot cover the
// requested operation.
func InsufficientCredits(required, available int) *ServiceError {
	return (&ServiceError{
		Code:       CodeInsufficientFunds,
		Message:    "Not enough credits",
		HTTPStatus: http.StatusForbidden,
	}).WithDetails("required", required).WithDetails("available", available)
}
