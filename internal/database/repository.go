package database

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Sentinel errors returned by repository operations.
var (
	// ErrInvalidInput marks request-level validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDatabaseError marks failures talking to Supabase.
	ErrDatabaseError = errors.New("database error")
	// ErrDuplicateEvent marks an idempotent insert that hit an existing row.
	ErrDuplicateEvent = errors.New("duplicate event")
)

// NotFoundError indicates a row does not exist or is hidden from the caller.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NewNotFoundError creates a NotFoundError for the given resource and id.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// Repository provides access to all Supabase tables used by the service.
type Repository struct {
	client *Client
}

// NewRepository creates a repository backed by the given client.
func NewRepository(client *Client) *Repository {
	return &Repository{client: client}
}

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidateUserID checks a user id is present and well-formed.
func ValidateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user_id cannot be empty", ErrInvalidInput)
	}
	if !idPattern.MatchString(userID) {
		return fmt.Errorf("%w: user_id contains invalid characters", ErrInvalidInput)
	}
	return nil
}

// ValidateID checks a row id is present and well-formed.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidInput)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: id contains invalid characters", ErrInvalidInput)
	}
	return nil
}

// ValidateStatus checks that status is one of the allowed values.
func ValidateStatus(status string, allowed []string) error {
	for _, a := range allowed {
		if status == a {
			return nil
		}
	}
	return fmt.Errorf("%w: status must be one of %s", ErrInvalidInput, strings.Join(allowed, ", "))
}

// SanitizeString strips characters that would break a PostgREST filter value.
func SanitizeString(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case ',', '.', '(', ')', '&', '=', '\n', '\r':
			return -1
		}
		return r
	}, s)
}
