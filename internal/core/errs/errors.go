// Package errs defines the error kinds every board operation reports.
// Services convert backend failures into one of these at the call site so handlers
// can render them without inspecting driver errors.
package errs

import (
	"errors"
	"fmt"
)

// Reasons carried by AuthError
const (
	ReasonUserNotFound      = "user-not-found"
	ReasonWrongPassword     = "wrong-password"
	ReasonInvalidCredential = "invalid-credential"
	ReasonEmailInUse        = "email-already-in-use"
	ReasonSessionRequired   = "session-required"
	ReasonSessionExpired    = "session-expired"
)

// AuthError represents a failed sign-in, sign-up or session check
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// NewAuthError creates a new auth error
func NewAuthError(reason string) error {
	return &AuthError{Reason: reason}
}

// IsAuthError checks if error is an auth error
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// AuthReason returns the reason of an AuthError in err's chain, or ""
func AuthReason(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Reason
	}
	return ""
}

// ValidationError represents rejected input, detected before any backend call
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error (%s): %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// IsValidationError checks if error is a validation error
func IsValidationError(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}

// AuthorizationError represents an action the signed-in user may not perform
type AuthorizationError struct {
	Action string // e.g. "delete post"
	Actor  string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s is not allowed to %s", e.Actor, e.Action)
}

// NewAuthorizationError creates a new authorization error
func NewAuthorizationError(action, actor string) error {
	return &AuthorizationError{Action: action, Actor: actor}
}

// IsAuthorizationError checks if error is an authorization error
func IsAuthorizationError(err error) bool {
	var authzErr *AuthorizationError
	return errors.As(err, &authzErr)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string // e.g., "post"
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// UnavailableError wraps a network or service failure of a store or provider call.
// The operation is abandoned; callers show a retry-worthy message.
type UnavailableError struct {
	Err error
	Op  string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: backend unavailable: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// IsUnavailable checks if error is a backend failure
func IsUnavailable(err error) bool {
	var unavailable *UnavailableError
	return errors.As(err, &unavailable)
}

// Unavailable converts a backend failure for op into an UnavailableError.
// Errors that already belong to the taxonomy pass through unchanged; nil stays nil.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if Classified(err) {
		return err
	}
	return &UnavailableError{Op: op, Err: err}
}

// Classified reports whether err already is one of the kinds in this package
func Classified(err error) bool {
	return IsAuthError(err) ||
		IsValidationError(err) ||
		IsAuthorizationError(err) ||
		IsNotFound(err) ||
		IsUnavailable(err)
}
