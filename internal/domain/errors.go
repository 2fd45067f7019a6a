package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors shared by services, repositories and the HTTP layer.
var (
	// ErrNotFound is returned when a resource does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when a request is structurally valid but semantically wrong.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidEmail is returned when an email address does not have a valid shape.
	ErrInvalidEmail = errors.New("invalid email format")

	ErrInviteNotFound    = errors.New("invite not found")
	ErrInviteAlreadyUsed = errors.New("invite already used")
	ErrInviteExpired     = errors.New("invite expired")

	ErrAttendeeNotFound = errors.New("attendee not found for this event")
	// ErrInvalidToken is returned when a scanned value does not contain a token.
	ErrInvalidToken = errors.New("token is required")
)

// ValidationError reports the first failing rule of a submitted registration form.
// Nothing is persisted when it is returned.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError returns a *ValidationError with the given message.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotYetOpenError is returned by check-in while the event start time is still in the future.
type NotYetOpenError struct {
	StartsAt time.Time
}

func (e *NotYetOpenError) Error() string {
	return "check-in opens when the event starts"
}
