// Package apperr defines the error kinds shared by the account service and
// their translation to client-visible HTTP responses. Callers match kinds with
// errors.Is; infrastructure failures additionally carry oops context for logs.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/samber/oops"
)

var (
	// ErrValidation marks malformed input rejected before touching the store or hasher.
	ErrValidation = errors.New("validation error")
	// ErrInvalidCredentials is the single rejection used for unknown email and wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized marks a missing, expired or dangling session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConflict marks a uniqueness violation reported by the store.
	ErrConflict = errors.New("conflict")
	// ErrEmailTaken is the conflict raised when an email is already registered.
	ErrEmailTaken = fmt.Errorf("email already registered: %w", ErrConflict)
	// ErrNotFound marks a lookup that matched nothing.
	ErrNotFound = errors.New("not found")
	// ErrStore marks connectivity or query failures of a persistent store.
	ErrStore = errors.New("store error")
	// ErrHashing marks an internal fault of the credential hasher.
	ErrHashing = errors.New("hashing failure")
)

// Client-visible reasons.
const (
	ReasonValidation         = "validation_error"
	ReasonInvalidCredentials = "invalid_credentials"
	ReasonUnauthorized       = "unauthorized"
	ReasonEmailTaken         = "email_taken"
	ReasonConflict           = "conflict"
	ReasonNotFound           = "not_found"
	ReasonInternal           = "internal_error"
)

// Validation returns a validation error carrying a client-safe message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Store wraps a driver error as a store failure with structured context.
func Store(domain, operation string, err error) error {
	if err == nil {
		return nil
	}
	return oops.Code("STORE_ERROR").
		In(domain).
		With("operation", operation).
		Wrap(fmt.Errorf("%w: %w", ErrStore, err))
}

// Hashing wraps a hasher fault with structured context.
func Hashing(operation string, err error) error {
	if err == nil {
		return nil
	}
	return oops.Code("HASHING_FAILURE").
		In("password").
		With("operation", operation).
		Wrap(fmt.Errorf("%w: %w", ErrHashing, err))
}

// HTTPStatus maps an error to the status code and reason a client may see.
// Unknown errors, store and hashing failures all collapse to internal_error.
func HTTPStatus(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, ReasonValidation
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, ReasonInvalidCredentials
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, ReasonUnauthorized
	case errors.Is(err, ErrEmailTaken):
		return http.StatusBadRequest, ReasonEmailTaken
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, ReasonConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, ReasonNotFound
	default:
		return http.StatusInternalServerError, ReasonInternal
	}
}

// Message returns the client-safe message for err. Only validation errors
// expose detail; everything else is reduced to its reason.
func Message(err error) string {
	if errors.Is(err, ErrValidation) {
		return err.Error()
	}
	_, reason := HTTPStatus(err)
	return reason
}
