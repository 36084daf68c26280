package apierr

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the portal rejects the viewer's credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned when the requested game, challenge or instance does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTransient covers network failures and server errors that the next poll may recover from.
	ErrTransient = errors.New("transient network error")

	// ErrMalformedPayload is returned when a pushed event cannot be decoded.
	ErrMalformedPayload = errors.New("malformed push payload")
)

// ValidationError is surfaced to the user without changing any state.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsPhaseAffecting reports whether err forces a session phase change.
func IsPhaseAffecting(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNotFound)
}

// Message returns a user-facing description of err that never exposes the raw error chain.
func Message(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ve.Message
	case errors.Is(err, ErrUnauthorized):
		return "please log in again"
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrMalformedPayload):
		return "received an unreadable update"
	default:
		return "network error, please retry"
	}
}
