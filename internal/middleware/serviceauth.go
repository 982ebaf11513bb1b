// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/Danejw/viewbait/internal/errors"
	internalhttputil "github.com/Danejw/viewbait/internal/httputil"
	"github.com/Danejw/viewbait/internal/logging"
)

const (
	// InternalSecretHeader carries the shared secret for internal calls.
	InternalSecretHeader = "X-Internal-Secret"

	// UserIDHeader identifies the acting user on internal calls.
	UserIDHeader = "X-User-ID"
)

// InternalAuthMiddleware authenticates backend-to-backend calls with a shared
// secret. It protects endpoints that end users must never reach directly,
// such as internal notification fan-out.
type InternalAuthMiddleware struct {
	secret []byte
	logger *logging.Logger
}

// NewInternalAuthMiddleware creates a new internal authentication middleware.
func NewInternalAuthMiddleware(secret string, logger *logging.Logger) *InternalAuthMiddleware {
	return &InternalAuthMiddleware{
		secret: []byte(secret),
		logger: logger,
	}
}

// Handler returns the middleware handler function.
func (m *InternalAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(m.secret) == 0 {
			m.respondError(w, r, errors.Forbidden("Internal endpoints are disabled"))
			return
		}

		provided := r.Header.Get(InternalSecretHeader)
		if provided == "" {
			m.respondError(w, r, errors.Unauthorized("Missing internal secret"))
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), m.secret) != 1 {
			m.logger.LogSecurityEvent(r.Context(), "internal_secret_mismatch", map[string]interface{}{
				"path":   r.URL.Path,
				"method": r.Method,
			})
			m.respondError(w, r, errors.Forbidden("Invalid internal secret"))
			return
		}

		// Validate X-User-ID format when present
		userID := r.Header.Get(UserIDHeader)
		if userID != "" && !isValidUserID(userID) {
			m.respondError(w, r, errors.Validation("Invalid X-User-ID format"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// respondError sends an error response.
func (m *InternalAuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.Internal("Internal authentication failed", err)
	}

	internalhttputil.WriteErrorResponse(w, r, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)

	m.logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
		"status": serviceErr.HTTPStatus,
	}).Warn("Internal authentication failed")
}

// isValidUserID validates user ID format (UUID).
func isValidUserID(userID string) bool {
	// Basic UUID format validation: 8-4-4-4-12 hex characters
	if len(userID) != 36 {
		return false
	}

	parts := strings.Split(userID, "-")
	if len(parts) != 5 {
		return false
	}

	expectedLengths := []int{8, 4, 4, 4, 12}
	for i, part := range parts {
		if len(part) != expectedLengths[i] {
			return false
		}
		for _, c := range part {
			if !isHexChar(c) {
				return false
			}
		}
	}

	return true
}

// isHexChar checks if a character is a valid hexadecimal character.
func isHexChar(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
